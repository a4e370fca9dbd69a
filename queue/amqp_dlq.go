package queue

import (
	"context"
	"time"

	amqp "github.com/streadway/amqp"
	"github.com/pkg/errors"
)

// AMQPDrainer reads every message waiting on a classic AMQP queue bound
// to the dead-letter exchange, using a plain channel.Get loop rather than
// a long-lived consumer since draining is a bounded, one-shot startup
// operation.
type AMQPDrainer struct {
	conn  *amqp.Connection
	queue string
}

// NewAMQPDrainer builds a drainer over conn's dead-letter queue.
func NewAMQPDrainer(conn *amqp.Connection, queueName string) *AMQPDrainer {
	return &AMQPDrainer{conn: conn, queue: queueName}
}

// Drain pulls every ready message off the dead-letter queue within
// timeout, reading the message_kind header to classify each one.
func (d *AMQPDrainer) Drain(ctx context.Context, timeout time.Duration) ([]DrainedMessage, error) {
	ch, err := d.conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "opening channel for dlq drain")
	}
	defer ch.Close()

	deadline := time.Now().Add(timeout)

	var out []DrainedMessage

	for time.Now().Before(deadline) {
		delivery, ok, err := ch.Get(d.queue, false)
		if err != nil {
			return out, errors.Wrap(err, "reading dlq message")
		}

		if !ok {
			break
		}

		kind := headerString(delivery.Headers, "message_kind")

		out = append(out, DrainedMessage{
			Kind: kind,
			Msg: Message{
				JobID:        headerString(delivery.Headers, "job_id"),
				Stage:        headerString(delivery.Headers, "stage"),
				CollectionID: headerString(delivery.Headers, "collection_id"),
				ImageRef:     headerString(delivery.Headers, "image_ref"),
				Body:         delivery.Body,
			},
		})

		if err := delivery.Ack(false); err != nil {
			return out, errors.Wrap(err, "acking drained dlq message")
		}
	}

	return out, nil
}
