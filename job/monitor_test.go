package job_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imagevault/core/job"
	"github.com/imagevault/core/store"
	"github.com/imagevault/core/store/memstore"
)

func init() {
	job.SetPollIntervalForTests(10 * time.Millisecond)
}

func TestMonitor_CompletesJobOnceTargetsReached(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := memstore.New()
	mgr := job.New(s.Jobs())

	j := job.NewJob(store.JobComposite, nil)
	j.Stages = map[string]store.StageState{"cache": {Name: "cache", Status: store.StagePending}}
	id, err := mgr.Submit(ctx, j)
	require.NoError(t, err)

	var calls int32
	targets := func(_ context.Context, _ store.ID) ([]job.Target, error) {
		n := atomic.AddInt32(&calls, 1)
		completed := 3
		if n == 1 {
			completed = 1
		}

		return []job.Target{{Stage: "cache", Completed: completed, Total: 3}}, nil
	}

	mgr.Monitor(ctx, id, "col-1", targets)

	got, ok, err := s.Jobs().Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, store.JobCompleted, got.Status)
}

func TestMonitor_StopsWhenJobCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	s := memstore.New()
	mgr := job.New(s.Jobs())

	j := job.NewJob(store.JobComposite, nil)
	j.Stages = map[string]store.StageState{"cache": {Name: "cache", Status: store.StagePending}}
	id, err := mgr.Submit(ctx, j)
	require.NoError(t, err)
	require.NoError(t, mgr.Cancel(ctx, id))

	calledAfterCancel := false
	targets := func(_ context.Context, _ store.ID) ([]job.Target, error) {
		calledAfterCancel = true
		return nil, nil
	}

	mgr.Monitor(ctx, id, "col-1", targets)

	require.False(t, calledAfterCancel)
}
