package queue

import (
	"context"
	"time"
)

// RoutingKeyByKind is the static map spec §4.7's dead-letter recovery
// republishes against, keyed by the message_kind header each message
// carries.
var RoutingKeyByKind = map[string]string{
	"discover":  "imagevault.discover",
	"scan":      "imagevault.scan",
	"thumbnail": "imagevault.thumbnail",
	"cache":     "imagevault.cache",
}

// DrainedMessage is one message read back off the dead-letter endpoint
// during recovery.
type DrainedMessage struct {
	Kind string
	Msg  Message
}

// Drainer reads every message currently parked on the dead-letter
// endpoint without requeuing them onto their original queue.
type Drainer interface {
	Drain(ctx context.Context, timeout time.Duration) ([]DrainedMessage, error)
}

// RecoverDeadLetters implements spec §4.7's startup recovery: drain the
// dead-letter endpoint, republish each message to the canonical routing
// key for its kind (stripping prior failure annotations so it cannot
// re-enter the DLQ in a loop), and return a per-kind count for logging.
func RecoverDeadLetters(ctx context.Context, drainer Drainer, broker Broker, drainTimeout time.Duration) (map[string]int, error) {
	drained, err := drainer.Drain(ctx, drainTimeout)
	if err != nil {
		return nil, err
	}

	summary := map[string]int{}

	for _, d := range drained {
		routingKey, ok := RoutingKeyByKind[d.Kind]
		if !ok {
			routingKey = d.Kind
		}

		clean := d.Msg
		clean.Attempt = 0

		if err := broker.Publish(ctx, routingKey, clean); err != nil {
			log(ctx).Warnw("failed to republish dead-lettered message", "kind", d.Kind, "error", err)
			continue
		}

		summary[d.Kind]++
	}

	for kind, count := range summary {
		log(ctx).Infow("recovered dead-lettered messages", "kind", kind, "count", count)
	}

	return summary, nil
}
