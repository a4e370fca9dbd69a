// Package cachefolder implements the Cache Placement Engine (spec C5):
// selecting which cache folder a collection's derivatives live under,
// resolving destination paths, and accounting size/file-count usage.
//
// Grounded on blob/filesystem/filesystem_storage.go
// (_seed/filesystem_storage.go.orig): the sharded-path resolution and
// os.Stat/os.Remove failure handling there is adapted wholesale into
// folder selection and "<root>/<collection_id>/" path resolution, with
// the sharding itself dropped since cache folders are addressed by
// collection id, not content hash.
package cachefolder

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/imagevault/core/internal/pathsafe"
	"github.com/imagevault/core/logging"
	"github.com/imagevault/core/store"
)

var log = logging.Module("imagevault/cachefolder")

// ErrNoCacheFolderAvailable is returned when no active cache folder passes
// the write-probe and size filter; the core MUST NOT fall back to an
// arbitrary local path (spec §4.5 step 5).
var ErrNoCacheFolderAvailable = errors.New("no cache folder available")

// networkDriveErrorSubstrings are the Windows network-drive failure
// signatures spec §4.5 names for the write-probe's retry policy.
var networkDriveErrorSubstrings = []string{
	"device not recognized", "unable to open for write", "network", "drive",
}

// Engine places collections onto cache folders and tracks their usage.
type Engine struct {
	folders store.CacheFolderStore
	probe   func(root string) error
}

// New builds an Engine backed by folders. A custom probe function may be
// supplied in tests; production callers should pass nil to use
// WriteProbe.
func New(folders store.CacheFolderStore, probe func(root string) error) *Engine {
	if probe == nil {
		probe = WriteProbe
	}

	return &Engine{folders: folders, probe: probe}
}

// WriteProbe creates a small file under root and removes it, retrying up
// to 3 times with 1s/2s/3s backoff when the failure looks like a
// transient Windows network-drive error (spec §4.5).
func WriteProbe(root string) error {
	var lastErr error

	backoffs := []time.Duration{0, time.Second, 2 * time.Second, 3 * time.Second}

	for attempt, wait := range backoffs {
		if attempt > 0 {
			time.Sleep(wait)
		}

		lastErr = tryWriteProbe(root)
		if lastErr == nil {
			return nil
		}

		if !isNetworkDriveError(lastErr) {
			return lastErr
		}

		log(context.Background()).Warnw("write-probe failed, retrying", "root", root, "attempt", attempt, "error", lastErr)
	}

	return lastErr
}

func tryWriteProbe(root string) error {
	if err := pathsafe.EnsureDirSafe(root); err != nil {
		return err
	}

	probePath := filepath.Join(root, ".imagevault-write-probe")

	if err := os.WriteFile(probePath, []byte("probe"), 0o644); err != nil {
		return err
	}

	return pathsafe.RemoveSafe(probePath)
}

func isNetworkDriveError(err error) bool {
	msg := strings.ToLower(err.Error())

	for _, sub := range networkDriveErrorSubstrings {
		if strings.Contains(msg, sub) {
			return true
		}
	}

	return false
}

// Select runs the first-write selection algorithm of spec §4.5: active,
// write-probe-passing folders with room for projectedWriteSize, sorted by
// priority desc, current size asc, then stable id, first wins.
func (e *Engine) Select(ctx context.Context, projectedWriteSize int64) (store.ID, error) {
	all, err := e.folders.List(ctx)
	if err != nil {
		return "", errors.Wrap(err, "listing cache folders")
	}

	var candidates []store.CacheFolder

	for _, f := range all {
		if !f.Active {
			continue
		}

		if f.MaxSizeBytes != nil && f.CurrentSizeBytes+projectedWriteSize > *f.MaxSizeBytes {
			continue
		}

		if err := e.probe(f.RootPath); err != nil {
			log(ctx).Warnw("cache folder failed write-probe, skipping", "folder", f.ID, "root", f.RootPath, "error", err)
			continue
		}

		candidates = append(candidates, f)
	}

	if len(candidates) == 0 {
		return "", ErrNoCacheFolderAvailable
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]

		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}

		if a.CurrentSizeBytes != b.CurrentSizeBytes {
			return a.CurrentSizeBytes < b.CurrentSizeBytes
		}

		return a.ID < b.ID
	})

	return candidates[0].ID, nil
}

// ResolveDestination binds collectionID to a cache folder if unbound
// (running Select on the caller's behalf) and returns the destination
// directory "<cache_folder.root>/<collection_id>/", created idempotently.
func (e *Engine) ResolveDestination(ctx context.Context, collectionID store.ID, projectedWriteSize int64) (string, store.ID, error) {
	folderID, ok, err := e.folders.GetBinding(ctx, collectionID)
	if err != nil {
		return "", "", errors.Wrap(err, "reading binding")
	}

	if !ok {
		folderID, err = e.Select(ctx, projectedWriteSize)
		if err != nil {
			return "", "", err
		}

		if err := e.folders.Bind(ctx, collectionID, folderID); err != nil {
			return "", "", errors.Wrap(err, "persisting binding")
		}
	}

	folder, ok, err := e.folders.GetByID(ctx, folderID)
	if err != nil {
		return "", "", errors.Wrap(err, "loading bound folder")
	}

	if !ok {
		return "", "", errors.Errorf("bound cache folder %q no longer exists", folderID)
	}

	dest := pathsafe.JoinSafe(folder.RootPath, string(collectionID))
	if err := pathsafe.EnsureDirSafe(dest); err != nil {
		return "", "", errors.Wrapf(err, "ensuring destination dir %q", dest)
	}

	return dest, folderID, nil
}

// RecordWrite reports a successful derivative write to the accounting API.
func (e *Engine) RecordWrite(ctx context.Context, folderID store.ID, size int64) error {
	log(ctx).Debugw("accounting write", "folder", folderID, "size", humanize.Bytes(uint64(size)))
	return e.folders.AdjustUsage(ctx, folderID, size, 1)
}

// RecordDelete reports a derivative delete to the accounting API.
func (e *Engine) RecordDelete(ctx context.Context, folderID store.ID, size int64) error {
	return e.folders.AdjustUsage(ctx, folderID, -size, -1)
}
