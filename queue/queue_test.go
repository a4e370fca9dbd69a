package queue_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imagevault/core/queue"
	"github.com/imagevault/core/queue/memqueue"
)

func TestMessage_IdempotencyKey(t *testing.T) {
	m := queue.Message{JobID: "j1", Stage: "scan", CollectionID: "c1"}
	require.Equal(t, "j1|scan|c1", m.IdempotencyKey())

	withImage := queue.Message{JobID: "j1", Stage: "cache", CollectionID: "c1", ImageRef: "img1"}
	require.Equal(t, "j1|cache|img1", withImage.IdempotencyKey())
}

func TestMemBroker_PublishConsumeAck(t *testing.T) {
	ctx := context.Background()
	b := memqueue.New()

	require.NoError(t, b.Publish(ctx, "work", queue.Message{JobID: "j1", Stage: "scan"}))

	var handled []queue.Message
	err := b.Consume(ctx, "work", func(_ context.Context, msg queue.Message) queue.Outcome {
		handled = append(handled, msg)
		return queue.Ack
	}, queue.ConsumeOptions{})
	require.NoError(t, err)
	require.Len(t, handled, 1)

	require.Empty(t, b.Drain("work"))
}

func TestMemBroker_NackRequeueKeepsMessage(t *testing.T) {
	ctx := context.Background()
	b := memqueue.New()

	require.NoError(t, b.Publish(ctx, "work", queue.Message{JobID: "j1"}))

	attempts := 0
	_ = b.Consume(ctx, "work", func(_ context.Context, msg queue.Message) queue.Outcome {
		attempts++
		return queue.NackRequeue
	}, queue.ConsumeOptions{})

	require.Equal(t, 1, attempts)
	require.Len(t, b.Drain("work"), 1)
}

func TestMemBroker_NackDiscardRoutesToDLQ(t *testing.T) {
	ctx := context.Background()
	b := memqueue.New()

	require.NoError(t, b.Publish(ctx, "work", queue.Message{JobID: "j1"}))

	_ = b.Consume(ctx, "work", func(_ context.Context, msg queue.Message) queue.Outcome {
		return queue.NackDiscard
	}, queue.ConsumeOptions{})

	require.Len(t, b.Drain("dlq"), 1)
}

func TestMemBroker_ClosedRejectsPublish(t *testing.T) {
	ctx := context.Background()
	b := memqueue.New()
	require.NoError(t, b.Close())

	err := b.Publish(ctx, "work", queue.Message{})
	require.ErrorIs(t, err, queue.ErrScopeDisposed)
}
