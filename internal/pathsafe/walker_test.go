package pathsafe_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imagevault/core/internal/pathsafe"
)

func TestIsDangerous_CaseInsensitivePrefix(t *testing.T) {
	deny := []string{`C:\Windows`}

	require.True(t, pathsafe.IsDangerous(`c:\windows\system32`, deny))
	require.True(t, pathsafe.IsDangerous(`C:\WINDOWS\system32`, deny))
	require.False(t, pathsafe.IsDangerous(`C:\Users\alice\photos`, deny))
}

func TestIsDangerous_SensitiveSubstring(t *testing.T) {
	require.True(t, pathsafe.IsDangerous(`/home/alice/Cache/thumbs`, nil))
	require.False(t, pathsafe.IsDangerous(`/home/alice/photos`, nil))
}

func TestWalk_SkipsHiddenAndDangerous(t *testing.T) {
	root := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "A"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "A", "a1.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "$RECYCLE.BIN"), 0o755))

	var names []string
	for e := range pathsafe.Walk(context.Background(), root, pathsafe.DefaultMaxDepth(true), nil) {
		names = append(names, e.Name)
	}

	require.Contains(t, names, "A")
	require.Contains(t, names, "a1.jpg")
	require.NotContains(t, names, ".git")
	require.NotContains(t, names, "HEAD")
	require.NotContains(t, names, "$RECYCLE.BIN")
}

func TestWalk_DepthCap(t *testing.T) {
	root := t.TempDir()

	dir := root
	for i := 0; i < 12; i++ {
		dir = filepath.Join(dir, "d")
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "deep.jpg"), []byte("x"), 0o644))

	var names []string
	for e := range pathsafe.Walk(context.Background(), root, pathsafe.DefaultMaxDepth(true), nil) {
		names = append(names, e.Name)
	}

	require.NotContains(t, names, "deep.jpg")
}

func TestWalk_DepthCapExactBoundary(t *testing.T) {
	root := t.TempDir()

	dir := root
	for i := 0; i < 9; i++ {
		dir = filepath.Join(dir, "d")
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}

	// dir is now 9 levels below root, so files placed directly inside it
	// land at Depth 10 (the boundary that must still be discovered) while
	// files one directory further land at Depth 11 and must not.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "atcap.jpg"), []byte("x"), 0o644))

	beyond := filepath.Join(dir, "d")
	require.NoError(t, os.MkdirAll(beyond, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(beyond, "overcap.jpg"), []byte("x"), 0o644))

	var names []string
	for e := range pathsafe.Walk(context.Background(), root, pathsafe.DefaultMaxDepth(true), nil) {
		names = append(names, e.Name)
	}

	require.Contains(t, names, "atcap.jpg")
	require.NotContains(t, names, "overcap.jpg")
}

func TestEnsureDirSafe_Idempotent(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "a", "b", "c")

	require.NoError(t, pathsafe.EnsureDirSafe(dir))
	require.NoError(t, pathsafe.EnsureDirSafe(dir))
	require.True(t, pathsafe.PathExistsSafe(dir))
}

func TestRemoveSafe_MissingIsNotError(t *testing.T) {
	require.NoError(t, pathsafe.RemoveSafe(filepath.Join(t.TempDir(), "missing")))
}
