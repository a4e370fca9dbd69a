package collection_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imagevault/core/collection"
	"github.com/imagevault/core/internal/archivevfs"
	"github.com/imagevault/core/store"
	"github.com/imagevault/core/store/memstore"
)

func TestFindCollections_EmptyRoot(t *testing.T) {
	root := t.TempDir()

	got, err := collection.FindCollections(context.Background(), root, collection.Options{IncludeSubfolders: true})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFindCollections_MixedParent(t *testing.T) {
	root := t.TempDir()

	mangaDir := filepath.Join(root, "Manga A")
	require.NoError(t, os.MkdirAll(mangaDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mangaDir, "001.jpg"), []byte("x"), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(root, "Manga B.cbz"), []byte("PK\x03\x04"), 0o644))

	emptyDir := filepath.Join(root, "NotAnImageFolder")
	require.NoError(t, os.MkdirAll(emptyDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(emptyDir, "readme.txt"), []byte("x"), 0o644))

	got, err := collection.FindCollections(context.Background(), root, collection.Options{IncludeSubfolders: true})
	require.NoError(t, err)

	var names []string
	for _, c := range got {
		names = append(names, c.DisplayName)
	}

	require.Contains(t, names, "Manga A")
	require.Contains(t, names, "Manga B.cbz")
	require.NotContains(t, names, "NotAnImageFolder")
}

func TestFindCollections_DangerousRootRejected(t *testing.T) {
	_, err := collection.FindCollections(context.Background(), `C:\Windows\System32`, collection.Options{
		DenyPrefixes: []string{`C:\Windows`},
	})
	require.ErrorIs(t, err, collection.ErrDangerousRoot)
}

func TestFindCollections_NestedDisplayNameJoinedWithDash(t *testing.T) {
	root := t.TempDir()

	nested := filepath.Join(root, "Series", "Volume 1")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "001.png"), []byte("x"), 0o644))

	got, err := collection.FindCollections(context.Background(), root, collection.Options{
		IncludeSubfolders: true,
		Prefix:            "[lib] ",
	})
	require.NoError(t, err)

	var names []string
	for _, c := range got {
		names = append(names, c.DisplayName)
	}

	require.Contains(t, names, "[lib] Series - Volume 1")
}

func TestIngest_DuplicateSuppression(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	c := collection.Candidate{DisplayName: "Manga A", Path: "/lib/Manga A", IsFolder: true}

	id1, err := collection.Ingest(ctx, s.Collections(), nil, c)
	require.NoError(t, err)

	id2, err := collection.Ingest(ctx, s.Collections(), nil, c)
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	count, err := s.Collections().Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestIngest_ArchiveKind(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	c := collection.Candidate{DisplayName: "Manga B", Path: "/lib/Manga B.cbz", Kind: archivevfs.KindZip}

	id, err := collection.Ingest(ctx, s.Collections(), nil, c)
	require.NoError(t, err)

	got, ok, err := s.Collections().GetByID(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, store.SourceZip, got.SourceKind)
}
