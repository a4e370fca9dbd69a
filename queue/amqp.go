package queue

import (
	"context"
	"sync"

	amqp "github.com/streadway/amqp"
	"github.com/makasim/amqpextra"
	"github.com/makasim/amqpextra/consumer"
	"github.com/makasim/amqpextra/publisher"
	"github.com/pkg/errors"

	"github.com/imagevault/core/logging"
)

var log = logging.Module("imagevault/queue")

// DeadLetterExchange is the RabbitMQ exchange NackDiscard routes into;
// it is the concrete backing for spec §4.7's "dead-letter endpoint".
const DeadLetterExchange = "imagevault.dlx"

// AMQPBroker is the streadway/amqp + makasim/amqpextra-backed Broker,
// using amqpextra's supervised dialer so a dropped connection is
// transparently redialed without the caller re-wiring consumers.
type AMQPBroker struct {
	dialer *amqpextra.Dialer
	pub    *publisher.Publisher

	mu     sync.Mutex
	closed bool
}

// DialAMQP connects to url and starts the supervised publisher used by
// Publish. Consume starts its own supervised consumer per call.
func DialAMQP(url string) (*AMQPBroker, error) {
	dialer, err := amqpextra.NewDialer(amqpextra.WithURL(url))
	if err != nil {
		return nil, errors.Wrap(err, "dialing amqp broker")
	}

	pub, err := dialer.Publisher()
	if err != nil {
		dialer.Close()
		return nil, errors.Wrap(err, "starting publisher")
	}

	return &AMQPBroker{dialer: dialer, pub: pub}, nil
}

// Publish sends msg durably to routingKey, at-least-once per spec §4.8.
func (b *AMQPBroker) Publish(ctx context.Context, routingKey string, msg Message) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()

	if closed {
		return ErrScopeDisposed
	}

	return b.pub.Publish(publisher.Message{
		Key: routingKey,
		Publishing: amqp.Publishing{
			Body:         msg.Body,
			DeliveryMode: amqp.Persistent,
			Headers: amqp.Table{
				"job_id":        msg.JobID,
				"message_kind":  msg.Stage,
				"stage":         msg.Stage,
				"collection_id": msg.CollectionID,
				"image_ref":     msg.ImageRef,
			},
		},
	})
}

// Consume starts a supervised consumer on queueName, bounding in-flight
// deliveries by opts.Prefetch and translating Handler outcomes into
// Ack/Nack(requeue) calls.
func (b *AMQPBroker) Consume(ctx context.Context, queueName string, handler Handler, opts ConsumeOptions) error {
	worker := consumer.WorkerFunc(func(ctx context.Context, d amqp.Delivery) interface{} {
		b.mu.Lock()
		closed := b.closed
		b.mu.Unlock()

		if closed {
			return d.Nack(false, true)
		}

		msg := Message{
			JobID:        headerString(d.Headers, "job_id"),
			Stage:        headerString(d.Headers, "stage"),
			CollectionID: headerString(d.Headers, "collection_id"),
			ImageRef:     headerString(d.Headers, "image_ref"),
			Body:         d.Body,
		}

		switch handler(ctx, msg) {
		case Ack:
			return d.Ack(false)
		case NackRequeue:
			return d.Nack(false, true)
		case NackDiscard:
			return d.Nack(false, false)
		default:
			return d.Nack(false, true)
		}
	})

	c := consumer.New(worker, queueName,
		consumer.WithPrefetchCount(opts.Prefetch),
	)

	consumerDialer, err := b.dialer.Consumer(c)
	if err != nil {
		return errors.Wrap(err, "starting consumer")
	}

	<-ctx.Done()
	consumerDialer.Close()

	return nil
}

// Close shuts down the publisher and dialer, marking the broker disposed
// so in-flight handlers observing it Nack-requeue without mutation (spec
// §4.8 "Shutdown").
func (b *AMQPBroker) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.pub.Close()
	b.dialer.Close()

	log(context.Background()).Infow("queue broker closed")

	return nil
}

// Drainer builds an AMQPDrainer against queueName, reusing the broker's
// own supervised connection rather than dialing a second one. It blocks
// until amqpextra hands back a live connection or the dialer is closed
// first, in which case it returns nil.
func (b *AMQPBroker) Drainer(queueName string) *AMQPDrainer {
	connCh, closeCh := b.dialer.ConnectionCh()

	select {
	case conn := <-connCh:
		return NewAMQPDrainer(conn.Connection, queueName)
	case <-closeCh:
		return nil
	}
}

func headerString(h amqp.Table, key string) string {
	v, ok := h[key]
	if !ok {
		return ""
	}

	s, _ := v.(string)

	return s
}
