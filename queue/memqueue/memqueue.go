// Package memqueue is an in-process Broker used by tests that exercise
// job orchestration without a real AMQP cluster.
package memqueue

import (
	"context"
	"sync"

	"github.com/imagevault/core/queue"
)

// Broker is a minimal in-memory implementation of queue.Broker:
// publishing to a routing key appends to that queue's slice, and
// Consume drains whatever is currently queued once per call (tests drive
// delivery explicitly rather than relying on a background loop).
type Broker struct {
	mu     sync.Mutex
	queues map[string][]queue.Message
	closed bool
}

// New returns an empty Broker.
func New() *Broker {
	return &Broker{queues: map[string][]queue.Message{}}
}

// Publish appends msg to routingKey's queue.
func (b *Broker) Publish(_ context.Context, routingKey string, msg queue.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return queue.ErrScopeDisposed
	}

	b.queues[routingKey] = append(b.queues[routingKey], msg)

	return nil
}

// Drain removes and returns every message currently queued under
// routingKey, for test assertions.
func (b *Broker) Drain(routingKey string) []queue.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs := b.queues[routingKey]
	b.queues[routingKey] = nil

	return msgs
}

// Consume delivers every currently-queued message for queueName to
// handler once, honoring Ack/NackRequeue/NackDiscard by leaving requeued
// messages at the front of the queue.
func (b *Broker) Consume(ctx context.Context, queueName string, handler queue.Handler, _ queue.ConsumeOptions) error {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return queue.ErrScopeDisposed
		}

		msgs := b.queues[queueName]
		if len(msgs) == 0 {
			b.mu.Unlock()
			return nil
		}

		msg := msgs[0]
		b.queues[queueName] = msgs[1:]
		b.mu.Unlock()

		switch handler(ctx, msg) {
		case queue.NackRequeue:
			b.mu.Lock()
			b.queues[queueName] = append([]queue.Message{msg}, b.queues[queueName]...)
			b.mu.Unlock()

			return nil
		case queue.NackDiscard:
			b.mu.Lock()
			b.queues["dlq"] = append(b.queues["dlq"], msg)
			b.mu.Unlock()
		}
	}
}

// Close marks the broker disposed; subsequent Publish/Consume calls fail
// with queue.ErrScopeDisposed, matching spec §4.8's shutdown contract.
func (b *Broker) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	return nil
}
