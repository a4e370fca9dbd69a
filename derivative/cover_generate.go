package derivative

import (
	"context"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/imagevault/core/internal/imageproc"
	"github.com/imagevault/core/store"
)

const (
	coverWidth   = 800
	coverHeight  = 450
	coverQuality = 85
)

// GenerateCollectionCover picks the best cover candidate among images and
// writes collection_thumbnail.jpg into the collection's derivative
// directory, per spec §4.6/§6.
func (g *Generator) GenerateCollectionCover(ctx context.Context, col store.Collection, images []store.Image) error {
	best, ok := PickCoverImage(images)
	if !ok {
		return errors.New("no images available to select a cover from")
	}

	destDir, folderID, err := g.placement.ResolveDestination(ctx, col.ID, 1<<20)
	if err != nil {
		return errors.Wrap(err, "resolving cache destination for cover")
	}

	sourceBytes, err := imageproc.ReadFromSource(ctx, archiveKindOf(col.SourceKind), col.SourcePath, best.RelativePath)
	if err != nil {
		return errors.Wrap(err, "reading cover source image")
	}

	resized, err := g.processor.Resize(ctx, sourceBytes, imageproc.FitCover, coverWidth, coverHeight)
	if err != nil {
		return errors.Wrap(err, "resizing cover")
	}

	encoded, err := g.processor.Encode(ctx, resized, imageproc.FormatJPEG, coverQuality)
	if err != nil {
		return errors.Wrap(err, "encoding cover")
	}

	destPath := filepath.Join(destDir, "collection_thumbnail.jpg")

	if err := g.writeWithRetry(destPath, encoded); err != nil {
		return err
	}

	now := time.Now()
	col.Settings.LastScanned = &now

	if err := g.placement.RecordWrite(ctx, folderID, int64(len(encoded))); err != nil {
		log(ctx).Warnw("accounting write failed for cover", "error", err)
	}

	return errors.Wrap(g.collections.Update(ctx, col), "updating collection after cover generation")
}
