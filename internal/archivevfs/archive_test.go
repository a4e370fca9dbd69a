package archivevfs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imagevault/core/internal/archivevfs"
)

func TestKindFromExtension(t *testing.T) {
	cases := map[string]archivevfs.SourceKind{
		"book.cbz":      archivevfs.KindZip,
		"book.zip":      archivevfs.KindZip,
		"book.cbr":      archivevfs.KindRar,
		"book.rar":      archivevfs.KindRar,
		"archive.7z":    archivevfs.KindSevenZ,
		"archive.tar":   archivevfs.KindTar,
		"a.tar.gz":      archivevfs.KindTar,
		"a.tar.bz2":     archivevfs.KindTar,
	}

	for name, want := range cases {
		got, ok := archivevfs.KindFromExtension(name)
		require.True(t, ok, name)
		require.Equal(t, want, got, name)
	}

	_, ok := archivevfs.KindFromExtension("notes.txt")
	require.False(t, ok)
}

func TestVirtualPathRoundTrip(t *testing.T) {
	v := archivevfs.VirtualPath("/lib/book.cbz", "page-001.jpg")
	require.Equal(t, "/lib/book.cbz#page-001.jpg", v)

	archivePath, entry, ok := archivevfs.SplitVirtualPath(v)
	require.True(t, ok)
	require.Equal(t, "/lib/book.cbz", archivePath)
	require.Equal(t, "page-001.jpg", entry)
}

func TestSplitVirtualPath_NotAnArchiveRef(t *testing.T) {
	_, _, ok := archivevfs.SplitVirtualPath("/lib/folder/a1.jpg")
	require.False(t, ok)
}

func TestForKind_Registered(t *testing.T) {
	for _, k := range []archivevfs.SourceKind{archivevfs.KindZip, archivevfs.KindRar, archivevfs.KindSevenZ, archivevfs.KindTar} {
		_, err := archivevfs.ForKind(k)
		require.NoError(t, err)
	}
}

func TestForKind_Unsupported(t *testing.T) {
	_, err := archivevfs.ForKind("Unknown")
	require.Error(t, err)
}
