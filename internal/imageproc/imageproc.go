// Package imageproc implements the image processor abstraction of spec C4:
// probe, resize-with-fit, format-specific encode, and source extraction.
//
// Grounded on Skryldev/image-processor's single-purpose govips wrapper
// (its go.mod's sole direct dependency, alongside golang.org/x/image for
// format fallback) — govips's ExportParams maps directly onto the
// format-specific encoder switches spec §4.4 calls for (JPEG progressive +
// quality, WebP effort + smart subsampling).
package imageproc

import (
	"context"
	"sync"
	"time"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/pkg/errors"
)

// Fit enumerates the resize strategies spec §4.4 names.
type Fit int

// Fit strategies.
const (
	// FitInside scales down to fit within bounds, never enlarging.
	FitInside Fit = iota
	// FitCover scales and center-crops to exactly fill bounds.
	FitCover
)

// Format enumerates target encode formats.
type Format string

// Supported target formats.
const (
	FormatJPEG     Format = "jpeg"
	FormatWebP     Format = "webp"
	FormatPNG      Format = "png"
	FormatOriginal Format = "original"
)

// Probe result for an image buffer.
type Probe struct {
	Width           int
	Height          int
	Format          string
	Orientation     int
	ReportedQuality int
}

// Errors surfaced by probe/resize, matching spec §7's taxonomy.
var (
	ErrProbeTimeout = errors.New("image probe timed out")
	ErrProbeFailed  = errors.New("image probe failed")
	ErrInputTooLarge = errors.New("input exceeds configured pixel limit")
)

var vipsOnce sync.Once

// ensureVips starts libvips once per process, matching govips's documented
// startup contract; Shutdown is intentionally never called since the
// processor's lifetime equals the service's.
func ensureVips() {
	vipsOnce.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelWarning)
		vips.Startup(nil)
	})
}

// Processor is the C4 interface: probe/resize/encode. Reading from a
// source is the package function ReadFromSource.
type Processor interface {
	Probe(ctx context.Context, data []byte, maxPixels int64, timeout time.Duration) (Probe, error)
	Resize(ctx context.Context, data []byte, fit Fit, maxW, maxH int) ([]byte, error)
	Encode(ctx context.Context, data []byte, format Format, quality int) ([]byte, error)
}

// VipsProcessor is the govips-backed Processor implementation.
type VipsProcessor struct{}

// NewVipsProcessor returns a ready-to-use libvips-backed Processor.
func NewVipsProcessor() *VipsProcessor {
	ensureVips()
	return &VipsProcessor{}
}

// Probe decodes just enough of data to report dimensions/format, bounding
// wall-clock time at timeout (spec §4.4 default 10s) and rejecting inputs
// above maxPixels before a full decode is attempted.
func (p *VipsProcessor) Probe(ctx context.Context, data []byte, maxPixels int64, timeout time.Duration) (Probe, error) {
	type result struct {
		probe Probe
		err   error
	}

	ch := make(chan result, 1)

	go func() {
		img, err := vips.NewImageFromBuffer(data)
		if err != nil {
			ch <- result{err: errors.Wrap(ErrProbeFailed, err.Error())}
			return
		}
		defer img.Close()

		w, h := img.Width(), img.Height()
		if maxPixels > 0 && int64(w)*int64(h) > maxPixels {
			ch <- result{err: ErrInputTooLarge}
			return
		}

		ch <- result{probe: Probe{
			Width:       w,
			Height:      h,
			Format:      img.Format().FileExt(),
			Orientation: img.Orientation(),
		}}
	}()

	select {
	case <-ctx.Done():
		return Probe{}, ErrProbeTimeout
	case <-time.After(timeout):
		return Probe{}, ErrProbeTimeout
	case r := <-ch:
		return r.probe, r.err
	}
}

// Resize applies fit to data, bounding it to maxW x maxH. FitInside never
// enlarges; FitCover center-crops to fill the target exactly, used only
// for thumbnails per spec §4.6 ("NEVER resize the cache variant
// implicitly").
func (p *VipsProcessor) Resize(ctx context.Context, data []byte, fit Fit, maxW, maxH int) ([]byte, error) {
	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, errors.Wrap(ErrProbeFailed, err.Error())
	}
	defer img.Close()

	switch fit {
	case FitCover:
		if err := img.Thumbnail(maxW, maxH, vips.InterestingCentre); err != nil {
			return nil, errors.Wrap(err, "cover resize")
		}
	case FitInside:
		if img.Width() <= maxW && img.Height() <= maxH {
			// no-enlarge: inside fit is a no-op when already within bounds.
			buf, _, err := img.ExportNative()
			return buf, err
		}

		if err := img.Thumbnail(maxW, maxH, vips.InterestingNone); err != nil {
			return nil, errors.Wrap(err, "inside resize")
		}
	}

	buf, _, err := img.ExportNative()
	if err != nil {
		return nil, errors.Wrap(err, "exporting resized image")
	}

	return buf, nil
}

// Encode re-encodes data into format at quality, using the format-specific
// switches spec §4.4 calls out: JPEG gets progressive scan + the
// high-quality encoder path, WebP gets balanced effort with smart
// chroma subsampling.
func (p *VipsProcessor) Encode(ctx context.Context, data []byte, format Format, quality int) ([]byte, error) {
	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, errors.Wrap(ErrProbeFailed, err.Error())
	}
	defer img.Close()

	switch format {
	case FormatJPEG:
		buf, _, err := img.ExportJpeg(&vips.JpegExportParams{
			Quality:         quality,
			Interlace:       true, // progressive
			OptimizeCoding:  true,
			SubsampleMode:   vips.VipsForeignSubsampleAuto,
		})
		if err != nil {
			return nil, errors.Wrap(err, "encoding jpeg")
		}

		return buf, nil

	case FormatWebP:
		buf, _, err := img.ExportWebp(&vips.WebpExportParams{
			Quality:        quality,
			ReductionEffort: 4, // balanced effort
			SmartSubsample: true,
		})
		if err != nil {
			return nil, errors.Wrap(err, "encoding webp")
		}

		return buf, nil

	case FormatPNG:
		buf, _, err := img.ExportPng(&vips.PngExportParams{})
		if err != nil {
			return nil, errors.Wrap(err, "encoding png")
		}

		return buf, nil

	default:
		return nil, errors.Errorf("unsupported target format %q", format)
	}
}
