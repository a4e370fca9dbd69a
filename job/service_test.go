package job_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imagevault/core/config"
	"github.com/imagevault/core/job"
	"github.com/imagevault/core/queue"
	"github.com/imagevault/core/store/memstore"
)

func TestService_RunSerializesWhenNotParallel(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	svc := job.NewService(s.Jobs(), config.Default(), 1)

	var running, maxRunning int32

	work := func(context.Context) error {
		n := atomic.AddInt32(&running, 1)
		if n > maxRunning {
			maxRunning = n
		}

		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)

		return nil
	}

	done := make(chan struct{}, 2)
	go func() { _ = svc.Run(ctx, work); done <- struct{}{} }()
	go func() { _ = svc.Run(ctx, work); done <- struct{}{} }()

	<-done
	<-done

	require.LessOrEqual(t, maxRunning, int32(1))
}

func TestService_ClampToSingleWorker_SerializesSubsequentRuns(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	cfg := config.Default()
	cfg.EnableParallelCacheProcessing = true
	svc := job.NewService(s.Jobs(), cfg, 3)

	var running, maxRunning int32

	work := func(context.Context) error {
		n := atomic.AddInt32(&running, 1)
		if n > maxRunning {
			maxRunning = n
		}

		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)

		return nil
	}

	before := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		go func() { _ = svc.Run(ctx, work); before <- struct{}{} }()
	}
	for i := 0; i < 3; i++ {
		<-before
	}
	require.Greater(t, maxRunning, int32(1))

	svc.ClampToSingleWorker()
	maxRunning = 0

	after := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		go func() { _ = svc.Run(ctx, work); after <- struct{}{} }()
	}
	for i := 0; i < 3; i++ {
		<-after
	}
	require.LessOrEqual(t, maxRunning, int32(1))
}

type noMessagesDrainer struct{}

func (noMessagesDrainer) Drain(context.Context, time.Duration) ([]queue.DrainedMessage, error) {
	return nil, nil
}

func TestService_StartBackgroundWithoutBrokerSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := memstore.New()
	svc := job.NewService(s.Jobs(), config.Default(), 1)

	err := svc.StartBackground(ctx, config.Default(), noMessagesDrainer{}, nil)
	require.NoError(t, err)
}
