package collection_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imagevault/core/collection"
	"github.com/imagevault/core/store"
	"github.com/imagevault/core/store/memstore"
)

func TestScan_FolderCollectionMaterializesImages(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "001.jpg"), []byte("aa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "002.png"), []byte("bbb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("skip"), 0o644))

	s := memstore.New()
	ctx := context.Background()

	colID, err := s.Collections().Create(ctx, store.Collection{SourcePath: root, SourceKind: store.SourceFolder, Active: true})
	require.NoError(t, err)

	col, _, err := s.Collections().GetByID(ctx, colID)
	require.NoError(t, err)

	result, err := collection.Scan(ctx, s.Images(), s.Collections(), col, false)
	require.NoError(t, err)
	require.Equal(t, 2, result.ImagesFound)
	require.Equal(t, 2, result.ImagesCreated)

	updated, _, err := s.Collections().GetByID(ctx, colID)
	require.NoError(t, err)
	require.Equal(t, 2, updated.Settings.TotalImages)
	require.NotNil(t, updated.Settings.LastScanned)
}

func TestScan_RepeatedScanWithoutForceSkipsExisting(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "001.jpg"), []byte("aa"), 0o644))

	s := memstore.New()
	ctx := context.Background()

	colID, err := s.Collections().Create(ctx, store.Collection{SourcePath: root, SourceKind: store.SourceFolder, Active: true})
	require.NoError(t, err)
	col, _, err := s.Collections().GetByID(ctx, colID)
	require.NoError(t, err)

	_, err = collection.Scan(ctx, s.Images(), s.Collections(), col, false)
	require.NoError(t, err)

	result, err := collection.Scan(ctx, s.Images(), s.Collections(), col, false)
	require.NoError(t, err)
	require.Equal(t, 1, result.ImagesFound)
	require.Equal(t, 0, result.ImagesCreated)
}
