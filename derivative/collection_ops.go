package derivative

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/imagevault/core/cachefolder"
	"github.com/imagevault/core/internal/pathsafe"
	"github.com/imagevault/core/store"
)

// quality/format marker pattern used to recognize a generated cache file
// for the whole-collection overwrite sweep (spec §4.6): any file carrying
// a "_q<N>" or "_<format>" marker, excluding thumbnails and the cover.
var cacheMarkerSubstrings = []string{"_q", "_jpeg", "_webp", "_png"}

// ClearCollectionCache implements the overwrite=true whole-collection
// reset of spec §4.6: before regeneration, every file matching the cache
// marker pattern is removed (thumbnails and collection_thumbnail.* are
// preserved) and its size is reconciled off folderID's usage accounting,
// then every image record's cache_* fields are cleared.
func ClearCollectionCache(ctx context.Context, images store.ImageStore, collectionID store.ID, derivativeDir string, placement *cachefolder.Engine, folderID store.ID) error {
	entries, err := pathsafe.ReadDirSafe(derivativeDir)
	if err != nil {
		return nil // nothing generated yet for this collection
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		name := e.Name()
		if strings.HasPrefix(name, "collection_thumbnail.") || strings.HasSuffix(strings.TrimSuffix(name, filepath.Ext(name)), "_thumb") {
			continue
		}

		if !isGeneratedCacheFile(name) {
			continue
		}

		path := filepath.Join(derivativeDir, name)

		var size int64
		if fi, ok := pathsafe.StatSafe(path); ok {
			size = fi.Size()
		}

		if err := pathsafe.RemoveSafe(path); err != nil {
			return errors.Wrapf(err, "removing stale cache file %q", name)
		}

		if placement != nil && size > 0 {
			if err := placement.RecordDelete(ctx, folderID, size); err != nil {
				log(ctx).Warnw("accounting delete failed", "error", err)
			}
		}
	}

	all, err := images.ListByCollection(ctx, collectionID, store.Page{Number: 1, PageSize: 0}, store.SortSpec{Field: "relative_path", Ascending: true})
	if err != nil {
		return errors.Wrap(err, "listing images for cache clear")
	}

	for _, img := range all {
		img.CachePath = ""
		img.CacheFilename = ""
		img.CacheQuality = 0
		img.CacheFormat = ""
		img.CacheSize = 0
		img.CachedAt = nil
		img.CacheWidth = 0
		img.CacheHeight = 0

		if err := images.Update(ctx, img); err != nil {
			return errors.Wrapf(err, "clearing cache fields for image %q", img.ID)
		}
	}

	return nil
}

func isGeneratedCacheFile(name string) bool {
	for _, marker := range cacheMarkerSubstrings {
		if strings.Contains(name, marker) {
			return true
		}
	}

	return false
}
