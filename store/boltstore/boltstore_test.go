package boltstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imagevault/core/store"
	"github.com/imagevault/core/store/boltstore"
)

func openTestStore(t *testing.T) *boltstore.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "imagevault.db")

	s, err := boltstore.Open(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestCollectionCreateGetByPath(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

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
}

func TestCollectionRandomByIndexSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "imagevault.db")

	s, err := boltstore.Open(dbPath)
	require.NoError(t, err)

	var ids []store.ID
	for i := 0; i < 3; i++ {
		id, err := s.Collections().Create(ctx, store.Collection{Name: "c", SourcePath: "/x", SourceKind: store.SourceFolder})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, s.Close())

	reopened, err := boltstore.Open(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Collections().RandomByIndex(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, ids[2], got)
}

func TestCacheFolderAdjustUsageAndPick(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	lowPriority, err := s.CacheFolders().Create(ctx, store.CacheFolder{Name: "low", RootPath: "/mnt/low", Priority: 1, Active: true})
	require.NoError(t, err)

	highPriority, err := s.CacheFolders().Create(ctx, store.CacheFolder{Name: "high", RootPath: "/mnt/high", Priority: 10, Active: true})
	require.NoError(t, err)

	require.NoError(t, s.CacheFolders().AdjustUsage(ctx, lowPriority, 1024, 1))

	picked, ok, err := s.CacheFolders().PickForCollection(ctx, "")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, highPriority, picked)
}

func TestCacheFolderDeleteBlockedWhileBound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	folderID, err := s.CacheFolders().Create(ctx, store.CacheFolder{Name: "f", RootPath: "/mnt/f", Active: true})
	require.NoError(t, err)

	require.NoError(t, s.CacheFolders().Bind(ctx, "col-1", folderID))

	err = s.CacheFolders().Delete(ctx, folderID)
	require.Error(t, err)
}

func TestJobStageMonotoneCompletedItems(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.Jobs().Create(ctx, store.Job{Kind: store.JobCollectionScan, Status: store.JobPending})
	require.NoError(t, err)

	require.NoError(t, s.Jobs().UpdateStage(ctx, id, "scan", store.StageInProgress, 5, 10, ""))
	require.NoError(t, s.Jobs().UpdateStage(ctx, id, "scan", store.StageInProgress, 3, 10, ""))

	job, ok, err := s.Jobs().Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 5, job.Stages["scan"].CompletedItems)
}

func TestJobDeleteOlderThan_PastRetentionIsPruned(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id, err := s.Jobs().Create(ctx, store.Job{Kind: store.JobDiscovery, Status: store.JobPending})
	require.NoError(t, err)
	require.NoError(t, s.Jobs().UpdateStatus(ctx, id, store.JobCompleted))

	n, err := s.Jobs().DeleteOlderThan(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, ok, err := s.Jobs().Get(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestJobDeleteOlderThan_WithinRetentionSurvives(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

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
