package job_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/imagevault/core/job"
	"github.com/imagevault/core/store"
	"github.com/imagevault/core/store/memstore"
)

func TestNewJob_PrePopulatesStagesForKind(t *testing.T) {
	j := job.NewJob(store.JobBulkAdd, nil)

	require.Equal(t, store.JobPending, j.Status)
	require.Len(t, j.Stages, 4)
	require.Equal(t, store.StagePending, j.Stages["scan"].Status)
}

func TestManager_StartTransitionsPendingToInProgress(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	mgr := job.New(s.Jobs())

	id, err := mgr.Submit(ctx, job.NewJob(store.JobThumbnailGeneration, nil))
	require.NoError(t, err)

	require.NoError(t, mgr.Start(ctx, id))

	got, ok, err := s.Jobs().Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, store.JobInProgress, got.Status)
}

func TestManager_AdvanceStageCompletesJobWhenAllStagesDone(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	mgr := job.New(s.Jobs())

	id, err := mgr.Submit(ctx, job.NewJob(store.JobCacheGeneration, nil))
	require.NoError(t, err)
	require.NoError(t, mgr.Start(ctx, id))

	require.NoError(t, mgr.AdvanceStage(ctx, id, "cache", store.StageCompleted, 10, 10, ""))

	got, ok, err := s.Jobs().Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, store.JobCompleted, got.Status)
}

func TestManager_AdvanceStageSkippedAfterCancel(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	mgr := job.New(s.Jobs())

	id, err := mgr.Submit(ctx, job.NewJob(store.JobCacheGeneration, nil))
	require.NoError(t, err)
	require.NoError(t, mgr.Cancel(ctx, id))

	require.NoError(t, mgr.AdvanceStage(ctx, id, "cache", store.StageCompleted, 10, 10, ""))

	got, ok, err := s.Jobs().Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, store.JobCancelled, got.Status)
	require.Equal(t, store.StagePending, got.Stages["cache"].Status)
}

func TestManager_FailRecordsErrorAndTransitions(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	mgr := job.New(s.Jobs())

	id, err := mgr.Submit(ctx, job.NewJob(store.JobCacheGeneration, nil))
	require.NoError(t, err)

	require.NoError(t, mgr.Fail(ctx, id, errors.New("disk full")))

	got, ok, err := s.Jobs().Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, store.JobFailed, got.Status)
	require.Len(t, got.ErrorLog, 1)
	require.Equal(t, "disk full", got.ErrorLog[0].Message)
}

func TestManager_RecordErrorAppendsWithoutFailingJob(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	mgr := job.New(s.Jobs())

	id, err := mgr.Submit(ctx, job.NewJob(store.JobCacheGeneration, nil))
	require.NoError(t, err)

	require.NoError(t, mgr.RecordError(ctx, id, "img-1.jpg", errors.New("corrupt file")))

	got, ok, err := s.Jobs().Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, store.JobPending, got.Status)
	require.Len(t, got.ErrorLog, 1)
	require.Equal(t, "img-1.jpg", got.ErrorLog[0].Item)
}
