package collection

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/imagevault/core/internal/archivevfs"
	"github.com/imagevault/core/internal/pathsafe"
	"github.com/imagevault/core/store"
)

// ScanResult reports how many images a scan found and materialized, for
// the "scan" stage's total_items bookkeeping (spec §4.7).
type ScanResult struct {
	ImagesFound   int
	ImagesCreated int
}

// Scan enumerates the images belonging to col — walking the filesystem
// for Folder collections, listing archive entries otherwise — and
// materializes an Image record for every one not already known. Existing
// records are left untouched unless forceRescan is set, in which case
// every image is re-probed for byte_size drift.
//
// This is the "scan" stage every non-Discovery job kind runs (spec
// Collection lifecycle: "mutated by scan (image list, counts)"); no
// single spec.md operation names it directly, so it is built against the
// image-record shape §3 already defines.
func Scan(ctx context.Context, images store.ImageStore, collections store.CollectionStore, col store.Collection, forceRescan bool) (ScanResult, error) {
	entries, err := listEntries(ctx, col)
	if err != nil {
		return ScanResult{}, errors.Wrap(err, "listing collection entries")
	}

	existing, err := images.ListByCollection(ctx, col.ID, store.Page{}, store.SortSpec{})
	if err != nil {
		return ScanResult{}, errors.Wrap(err, "loading existing images")
	}

	byPath := make(map[string]store.Image, len(existing))
	for _, img := range existing {
		byPath[img.RelativePath] = img
	}

	var result ScanResult

	for _, e := range entries {
		result.ImagesFound++

		existingImg, known := byPath[e.relativePath]
		if known && !forceRescan {
			continue
		}

		if known {
			existingImg.ByteSize = e.byteSize
			if err := images.Update(ctx, existingImg); err != nil {
				return result, errors.Wrapf(err, "updating image %q", e.relativePath)
			}

			continue
		}

		img := store.Image{
			CollectionID: col.ID,
			Filename:     filepath.Base(e.relativePath),
			RelativePath: e.relativePath,
			ByteSize:     e.byteSize,
			SourceFormat: strings.TrimPrefix(filepath.Ext(e.relativePath), "."),
		}

		if _, err := images.Create(ctx, img); err != nil {
			return result, errors.Wrapf(err, "creating image %q", e.relativePath)
		}

		result.ImagesCreated++
	}

	now := time.Now()
	col.Settings.TotalImages = result.ImagesFound
	col.Settings.LastScanned = &now

	if err := collections.Update(ctx, col); err != nil {
		return result, errors.Wrap(err, "updating collection scan settings")
	}

	return result, nil
}

type scannedEntry struct {
	relativePath string
	byteSize     int64
}

func listEntries(ctx context.Context, col store.Collection) ([]scannedEntry, error) {
	if col.SourceKind == store.SourceFolder {
		return listFolderEntries(ctx, col.SourcePath)
	}

	return listArchiveEntries(ctx, col)
}

func listFolderEntries(ctx context.Context, root string) ([]scannedEntry, error) {
	var entries []scannedEntry

	for e := range pathsafe.Walk(ctx, root, pathsafe.DefaultMaxDepth(true), nil) {
		if e.Kind != pathsafe.KindFile {
			continue
		}

		if !supportedImageExtensions[strings.ToLower(filepath.Ext(e.Name))] {
			continue
		}

		info, ok := pathsafe.StatSafe(e.AbsolutePath)
		size := int64(0)
		if ok {
			size = info.Size()
		}

		entries = append(entries, scannedEntry{relativePath: e.RelativePath, byteSize: size})
	}

	return entries, nil
}

func archiveKindFor(kind store.SourceKind) archivevfs.SourceKind {
	switch kind {
	case store.SourceZip:
		return archivevfs.KindZip
	case store.SourceSevenZ:
		return archivevfs.KindSevenZ
	case store.SourceRar:
		return archivevfs.KindRar
	case store.SourceTar:
		return archivevfs.KindTar
	default:
		return ""
	}
}

func listArchiveEntries(ctx context.Context, col store.Collection) ([]scannedEntry, error) {
	reader, err := archivevfs.ForKind(archiveKindFor(col.SourceKind))
	if err != nil {
		return nil, err
	}

	infos, err := reader.ListEntries(ctx, col.SourcePath)
	if err != nil {
		return nil, err
	}

	var entries []scannedEntry

	for info := range infos {
		if info.IsDirectory {
			continue
		}

		if !supportedImageExtensions[strings.ToLower(filepath.Ext(info.Name))] {
			continue
		}

		entries = append(entries, scannedEntry{
			relativePath: archivevfs.VirtualPath(col.SourcePath, info.Name),
			byteSize:     info.ByteSize,
		})
	}

	return entries, nil
}
