package cachefolder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/imagevault/core/internal/pathsafe"
	"github.com/imagevault/core/store"
)

// Redistribute recomputes the optimal binding for collectionID and, if it
// differs from the current one, moves the collection's derivative
// directory to the new folder atomically (per-file when the move crosses
// a filesystem boundary), then updates the binding and both folders'
// accounting (spec §4.5 "Migration").
//
// A file lock scoped to the collection id serializes concurrent
// redistribute calls for the same collection, per spec §5's "exclusive
// lock scoped to the collection id" policy for binding updates.
func (e *Engine) Redistribute(ctx context.Context, collectionID store.ID, projectedSizeBytes int64) error {
	lockPath := filepath.Join(os.TempDir(), "imagevault-redistribute-"+string(collectionID)+".lock")

	fl := flock.New(lockPath)

	locked, err := fl.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return errors.Wrap(err, "acquiring redistribute lock")
	}

	if !locked {
		return errors.Errorf("redistribute already in progress for collection %q", collectionID)
	}
	defer fl.Unlock()

	currentFolderID, bound, err := e.folders.GetBinding(ctx, collectionID)
	if err != nil {
		return errors.Wrap(err, "reading current binding")
	}

	bestFolderID, err := e.Select(ctx, projectedSizeBytes)
	if err != nil {
		return err
	}

	if bound && bestFolderID == currentFolderID {
		return nil
	}

	currentFolder, ok, err := e.folders.GetByID(ctx, currentFolderID)
	if bound && err == nil && ok {
		bestFolder, _, ferr := e.folders.GetByID(ctx, bestFolderID)
		if ferr != nil {
			return errors.Wrap(ferr, "loading destination folder")
		}

		srcDir := pathsafe.JoinSafe(currentFolder.RootPath, string(collectionID))
		dstDir := pathsafe.JoinSafe(bestFolder.RootPath, string(collectionID))

		movedBytes, movedCount, merr := moveTree(srcDir, dstDir)
		if merr != nil {
			return errors.Wrap(merr, "moving derivative directory")
		}

		if err := e.folders.AdjustUsage(ctx, currentFolderID, -movedBytes, -movedCount); err != nil {
			return errors.Wrap(err, "debiting source folder")
		}

		if err := e.folders.AdjustUsage(ctx, bestFolderID, movedBytes, movedCount); err != nil {
			return errors.Wrap(err, "crediting destination folder")
		}
	}

	return e.folders.Bind(ctx, collectionID, bestFolderID)
}

// moveTree moves every file under src to dst, preferring os.Rename and
// falling back to a copy-then-remove per file when the move crosses a
// filesystem boundary (e.g. EXDEV), returning the total bytes and file
// count moved.
func moveTree(src, dst string) (bytes int64, count int64, err error) {
	if err := pathsafe.EnsureDirSafe(dst); err != nil {
		return 0, 0, err
	}

	entries, err := pathsafe.ReadDirSafe(src)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}

		return 0, 0, err
	}

	for _, e := range entries {
		srcPath := filepath.Join(src, e.Name())
		dstPath := filepath.Join(dst, e.Name())

		if e.IsDir() {
			subBytes, subCount, serr := moveTree(srcPath, dstPath)
			if serr != nil {
				return bytes, count, serr
			}

			bytes += subBytes
			count += subCount

			continue
		}

		info, serr := e.Info()
		if serr != nil {
			return bytes, count, serr
		}

		if err := moveFile(srcPath, dstPath); err != nil {
			return bytes, count, err
		}

		bytes += info.Size()
		count++
	}

	return bytes, count, pathsafe.RemoveSafe(src)
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	if err := out.Close(); err != nil {
		return err
	}

	return os.Remove(src)
}
