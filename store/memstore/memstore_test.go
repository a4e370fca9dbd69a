package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imagevault/core/store"
	"github.com/imagevault/core/store/memstore"
)

func TestCollectionCreateGetByPath(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	id, err := s.Collections().Create(ctx, store.Collection{
		Name:       "A",
		SourcePath: "/lib/A",
		SourceKind: store.SourceFolder,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, ok, err := s.Collections().GetByPath(ctx, "/lib/A", store.SourceFolder)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, got.ID)

	_, ok, err = s.Collections().GetByPath(ctx, "/lib/A", store.SourceZip)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheFolderAdjustUsage(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	id, err := s.CacheFolders().Create(ctx, store.CacheFolder{Name: "F1", RootPath: "/mnt/f1", Priority: 10, Active: true})
	require.NoError(t, err)

	require.NoError(t, s.CacheFolders().AdjustUsage(ctx, id, 1024, 1))
	require.NoError(t, s.CacheFolders().AdjustUsage(ctx, id, 2048, 1))

	cf, ok, err := s.CacheFolders().GetByID(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 3072, cf.CurrentSizeBytes)
	require.EqualValues(t, 2, cf.CurrentFileCount)
}

func TestJobStageMonotoneCompletedItems(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	id, err := s.Jobs().Create(ctx, store.Job{Kind: store.JobCollectionScan, Status: store.JobPending})
	require.NoError(t, err)

	require.NoError(t, s.Jobs().UpdateStage(ctx, id, "scan", store.StageInProgress, 5, 10, ""))
	require.NoError(t, s.Jobs().UpdateStage(ctx, id, "scan", store.StageInProgress, 3, 10, ""))

	job, ok, err := s.Jobs().Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 5, job.Stages["scan"].CompletedItems)
}

func TestJobDeleteOlderThan_FreshJobSurvives(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	id, err := s.Jobs().Create(ctx, store.Job{Kind: store.JobDiscovery, Status: store.JobPending})
	require.NoError(t, err)
	require.NoError(t, s.Jobs().UpdateStatus(ctx, id, store.JobCompleted))

	n, err := s.Jobs().DeleteOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	_, ok, err := s.Jobs().Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCollectionRandomByIndex(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	var ids []store.ID
	for i := 0; i < 3; i++ {
		id, err := s.Collections().Create(ctx, store.Collection{Name: "c", SourcePath: "/x", SourceKind: store.SourceFolder})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	got, err := s.Collections().RandomByIndex(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, ids[1], got)

	_, err = s.Collections().RandomByIndex(ctx, 99)
	require.Error(t, err)
}
