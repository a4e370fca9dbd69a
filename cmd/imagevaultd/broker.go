package main

import "github.com/imagevault/core/queue"

// brokerOrNil dials url if set, logging and continuing without a broker
// on failure: a missing queue degrades generation to synchronous calls
// rather than blocking the whole daemon from starting.
func brokerOrNil(url string) queue.Broker {
	if url == "" {
		return nil
	}

	b, err := queue.DialAMQP(url)
	if err != nil {
		noteColor.Printf("amqp broker unavailable (%v), continuing without one\n", err) //nolint:errcheck

		return nil
	}

	return b
}
