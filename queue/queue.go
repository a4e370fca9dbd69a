// Package queue implements the broker-agnostic Work Queue contract of
// spec C8 and an AMQP adapter for it.
//
// Grounded on leaf-ai/studio-go-runner's go.mod pairing of
// github.com/streadway/amqp (wire protocol) with
// github.com/makasim/amqpextra (a supervised reconnecting
// consumer/publisher pool) — the same pairing spec §4.8's shutdown and
// cancellation-token requirements call for, since amqpextra's consumer
// already carries a context-cancellable Close.
package queue

import (
	"context"

	"github.com/pkg/errors"
)

// Message is one unit of work handed from one stage to the next.
type Message struct {
	JobID        string
	Stage        string
	CollectionID string
	ImageRef     string
	Body         []byte
	Attempt      int
}

// IdempotencyKey returns the {job_id, stage, collection_id|image_ref} key
// spec §4.8 requires handlers to be idempotent against.
func (m Message) IdempotencyKey() string {
	ref := m.CollectionID
	if m.ImageRef != "" {
		ref = m.ImageRef
	}

	return m.JobID + "|" + m.Stage + "|" + ref
}

// Outcome is a handler's disposition for one delivered message, per spec
// §4.8.
type Outcome int

// Recognized outcomes.
const (
	// Ack removes the message: it was processed successfully.
	Ack Outcome = iota
	// NackRequeue returns the message to the head of its queue for retry.
	NackRequeue
	// NackDiscard routes the message to the dead-letter endpoint.
	NackDiscard
)

// Handler processes one Message and reports its Outcome. Handlers MUST be
// idempotent, keyed by Message.IdempotencyKey.
type Handler func(ctx context.Context, msg Message) Outcome

// ConsumeOptions bounds in-flight work per consumer.
type ConsumeOptions struct {
	Prefetch int
	AutoAck  bool
}

// ErrScopeDisposed is returned by Publish/Consume once Close has run;
// in-flight handlers observing it MUST Nack-requeue without mutating
// anything (spec §4.8 "Shutdown").
var ErrScopeDisposed = errors.New("queue scope already disposed")

// Broker is the contract C8 names, independent of the underlying
// transport.
type Broker interface {
	Publish(ctx context.Context, routingKey string, msg Message) error
	Consume(ctx context.Context, queueName string, handler Handler, opts ConsumeOptions) error
	Close() error
}
