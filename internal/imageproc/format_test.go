package imageproc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imagevault/core/internal/imageproc"
)

func TestCanonicalExtension(t *testing.T) {
	require.Equal(t, "jpg", imageproc.CanonicalExtension(imageproc.FormatJPEG, ".png"))
	require.Equal(t, "webp", imageproc.CanonicalExtension(imageproc.FormatWebP, ".jpg"))
	require.Equal(t, "png", imageproc.CanonicalExtension(imageproc.FormatPNG, ".jpg"))
	require.Equal(t, "png", imageproc.CanonicalExtension(imageproc.FormatOriginal, ".png"))
}

func TestParseFormat(t *testing.T) {
	require.Equal(t, imageproc.FormatJPEG, imageproc.ParseFormat("jpeg"))
	require.Equal(t, imageproc.FormatWebP, imageproc.ParseFormat("webp"))
	require.Equal(t, imageproc.FormatJPEG, imageproc.ParseFormat("unknown"))
}
