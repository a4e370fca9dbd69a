package derivative_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imagevault/core/cachefolder"
	"github.com/imagevault/core/derivative"
	"github.com/imagevault/core/internal/imageproc"
	"github.com/imagevault/core/store"
	"github.com/imagevault/core/store/memstore"
)

type fakeProcessor struct{}

func (fakeProcessor) Probe(ctx context.Context, data []byte, maxPixels int64, timeout time.Duration) (imageproc.Probe, error) {
	return imageproc.Probe{Width: 1920, Height: 1080, Format: "jpeg"}, nil
}

func (fakeProcessor) Resize(ctx context.Context, data []byte, fit imageproc.Fit, maxW, maxH int) ([]byte, error) {
	return []byte("resized-bytes"), nil
}

func (fakeProcessor) Encode(ctx context.Context, data []byte, format imageproc.Format, quality int) ([]byte, error) {
	return []byte("encoded-bytes-for-" + string(format)), nil
}

func setup(t *testing.T) (*memstore.Store, *cachefolder.Engine, *derivative.Generator, store.Collection) {
	t.Helper()

	s := memstore.New()
	root := t.TempDir()

	_, err := s.CacheFolders().Create(context.Background(), store.CacheFolder{Name: "f", RootPath: root, Priority: 1, Active: true})
	require.NoError(t, err)

	engine := cachefolder.New(s.CacheFolders(), func(string) error { return nil })
	gen := derivative.New(s.Images(), s.Collections(), engine, fakeProcessor{}, 10*time.Second, 268_000_000)

	sourceDir := t.TempDir()
	colID, err := s.Collections().Create(context.Background(), store.Collection{
		Name:       "Test Collection",
		SourcePath: sourceDir,
		SourceKind: store.SourceFolder,
		Active:     true,
	})
	require.NoError(t, err)

	col, _, err := s.Collections().GetByID(context.Background(), colID)
	require.NoError(t, err)

	return s, engine, gen, col
}

func TestGenerateOne_CacheVariant(t *testing.T) {
	ctx := context.Background()
	s, _, gen, col := setup(t)

	require.NoError(t, writeSourceFile(t, col.SourcePath, "page01.jpg"))

	imgID, err := s.Images().Create(ctx, store.Image{
		CollectionID: col.ID,
		Filename:     "page01.jpg",
		RelativePath: "page01.jpg",
		ByteSize:     2048,
	})
	require.NoError(t, err)

	img, _, err := s.Images().GetEmbedded(ctx, col.ID, imgID)
	require.NoError(t, err)

	err = gen.GenerateOne(ctx, col, img, derivative.Params{
		TargetFormat:  imageproc.FormatJPEG,
		TargetQuality: 85,
	})
	require.NoError(t, err)

	updated, _, err := s.Images().GetEmbedded(ctx, col.ID, imgID)
	require.NoError(t, err)
	require.NotNil(t, updated.CachedAt)
	require.Equal(t, "page01_q85_jpeg.jpg", updated.CacheFilename)
}

func TestGenerateOne_SkipsAlreadyCached(t *testing.T) {
	ctx := context.Background()
	s, _, gen, col := setup(t)

	require.NoError(t, writeSourceFile(t, col.SourcePath, "page01.jpg"))

	imgID, err := s.Images().Create(ctx, store.Image{
		CollectionID: col.ID,
		Filename:     "page01.jpg",
		RelativePath: "page01.jpg",
	})
	require.NoError(t, err)

	img, _, err := s.Images().GetEmbedded(ctx, col.ID, imgID)
	require.NoError(t, err)

	params := derivative.Params{TargetFormat: imageproc.FormatJPEG, TargetQuality: 85}
	require.NoError(t, gen.GenerateOne(ctx, col, img, params))

	cached, _, err := s.Images().GetEmbedded(ctx, col.ID, imgID)
	require.NoError(t, err)

	err = gen.GenerateOne(ctx, col, cached, params)
	require.ErrorIs(t, err, derivative.ErrAlreadyCached)
}

func TestGenerateOne_ThumbnailUsesCoverFit(t *testing.T) {
	ctx := context.Background()
	s, _, gen, col := setup(t)

	require.NoError(t, writeSourceFile(t, col.SourcePath, "page01.jpg"))

	imgID, err := s.Images().Create(ctx, store.Image{
		CollectionID: col.ID,
		Filename:     "page01.jpg",
		RelativePath: "page01.jpg",
	})
	require.NoError(t, err)

	img, _, err := s.Images().GetEmbedded(ctx, col.ID, imgID)
	require.NoError(t, err)

	err = gen.GenerateOne(ctx, col, img, derivative.Params{
		TargetFormat:  imageproc.FormatJPEG,
		TargetQuality: 80,
		IsThumbnail:   true,
		ThumbnailW:    300,
		ThumbnailH:    300,
	})
	require.NoError(t, err)

	updated, _, err := s.Images().GetEmbedded(ctx, col.ID, imgID)
	require.NoError(t, err)
	require.NotEmpty(t, updated.ThumbnailPath)
}

func writeSourceFile(t *testing.T, dir, name string) error {
	t.Helper()
	return os.WriteFile(filepath.Join(dir, name), []byte("fake-jpeg-bytes"), 0o644)
}
