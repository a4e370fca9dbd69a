package collection

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/imagevault/core/store"
)

// Ingest persists a discovered Candidate as a store.Collection, performing
// the duplicate suppression spec §4.3 step 5 defers to ingestion time:
// (source_path, source_kind) uniquely identifies a collection, so an
// existing match is returned unchanged instead of inserted twice.
func Ingest(ctx context.Context, collections store.CollectionStore, libraryID *store.ID, c Candidate) (store.ID, error) {
	kind := store.SourceFolder
	if !c.IsFolder {
		switch c.Kind {
		case "Zip":
			kind = store.SourceZip
		case "SevenZ":
			kind = store.SourceSevenZ
		case "Rar":
			kind = store.SourceRar
		case "Tar":
			kind = store.SourceTar
		default:
			return "", errors.Errorf("unrecognized archive kind %q for %q", c.Kind, c.Path)
		}
	}

	existing, ok, err := collections.GetByPath(ctx, c.Path, kind)
	if err != nil {
		return "", errors.Wrap(err, "checking for existing collection")
	}

	if ok {
		return existing.ID, nil
	}

	now := time.Now()

	return collections.Create(ctx, store.Collection{
		Name:       c.DisplayName,
		SourcePath: c.Path,
		SourceKind: kind,
		LibraryID:  libraryID,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}
