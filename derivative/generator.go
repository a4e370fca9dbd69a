// Package derivative implements the Derivative Generator (spec C6):
// per-image thumbnail and cache production, overwrite/skip rules, and
// collection cleanup.
//
// Grounded on cas/object_manager.go (_seed/object_manager.go.orig)'s
// "stats-tracked manager wrapping a storage and processing pipeline with
// an explicit write-then-verify lifecycle" shape, adapted here from
// content-addressed object writing to named derivative writing against a
// cache folder engine instead of a content store.
package derivative

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"

	"github.com/imagevault/core/cachefolder"
	"github.com/imagevault/core/internal/archivevfs"
	"github.com/imagevault/core/internal/imageproc"
	"github.com/imagevault/core/internal/pathsafe"
	"github.com/imagevault/core/logging"
	"github.com/imagevault/core/store"
)

var log = logging.Module("imagevault/derivative")

// ErrWriteVerificationFailed is returned when a written derivative's size
// does not match what was encoded, or the file is empty (spec §4.6 step
// 6).
var ErrWriteVerificationFailed = errors.New("write verification failed")

// ErrAlreadyCached signals a no-op skip: the destination exists and the
// store already records a cached_at for it (spec §4.6 step 2).
var ErrAlreadyCached = errors.New("already cached")

// defaultNetworkDriveRetryBackoff is used when a Generator is built with no
// explicit backoff schedule: up to 5 attempts with 1s/2s/4s backoff, capped.
var defaultNetworkDriveRetryBackoff = []time.Duration{0, time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}

// defaultNetworkDriveErrorThreshold is spec §4.6's "N" in "after N
// network-drive errors across a job (default 5), clamp concurrency to 1".
const defaultNetworkDriveErrorThreshold = 5

// Params describes one derivative generation request for a single image.
type Params struct {
	TargetFormat  imageproc.Format
	TargetQuality int
	Overwrite     bool
	ThumbnailW    int
	ThumbnailH    int
	IsThumbnail   bool
}

// Generator orchestrates C4 (image processing), C2 (archive extraction),
// and C5 (cache placement) to produce one derivative at a time.
type Generator struct {
	images       store.ImageStore
	collections  store.CollectionStore
	placement    *cachefolder.Engine
	processor    imageproc.Processor
	probeTimeout time.Duration
	maxPixels    int64

	retryBackoff               []time.Duration
	networkDriveErrorThreshold int
	networkDriveErrorsSeen     int
	onBudgetExceeded           func()
	budgetTripped              bool
}

// New builds a Generator using the default 5-attempt 1/2/4s-capped retry
// backoff and a 5-error network-drive budget. Use NewWithRetryPolicy to
// source these from config.Config instead.
func New(images store.ImageStore, collections store.CollectionStore, placement *cachefolder.Engine, processor imageproc.Processor, probeTimeout time.Duration, maxPixels int64) *Generator {
	return NewWithRetryPolicy(images, collections, placement, processor, probeTimeout, maxPixels, defaultNetworkDriveRetryBackoff, defaultNetworkDriveErrorThreshold)
}

// NewWithRetryPolicy builds a Generator with an explicit retry backoff
// schedule and network-drive error budget, the spec §4.6/§6-configurable
// "Retry" policy (config.Config's RetryBackoff and NetworkDriveErrorThreshold).
func NewWithRetryPolicy(images store.ImageStore, collections store.CollectionStore, placement *cachefolder.Engine, processor imageproc.Processor, probeTimeout time.Duration, maxPixels int64, retryBackoff []time.Duration, networkDriveErrorThreshold int) *Generator {
	if len(retryBackoff) == 0 {
		retryBackoff = defaultNetworkDriveRetryBackoff
	}

	if networkDriveErrorThreshold <= 0 {
		networkDriveErrorThreshold = defaultNetworkDriveErrorThreshold
	}

	return &Generator{
		images:                     images,
		collections:                collections,
		placement:                  placement,
		processor:                  processor,
		probeTimeout:               probeTimeout,
		maxPixels:                  maxPixels,
		retryBackoff:               retryBackoff,
		networkDriveErrorThreshold: networkDriveErrorThreshold,
	}
}

// OnNetworkDriveErrorBudgetExceeded registers fn to run exactly once, the
// first time this Generator's network-drive error count crosses its
// configured threshold. Callers wire this to job.Service.ClampToSingleWorker
// to enforce spec §4.6's concurrency clamp.
func (g *Generator) OnNetworkDriveErrorBudgetExceeded(fn func()) {
	g.onBudgetExceeded = fn
}

// GenerateOne runs the per-image algorithm of spec §4.6 for img under
// collection col, writing the result through the cache placement engine
// and updating the image record.
func (g *Generator) GenerateOne(ctx context.Context, col store.Collection, img store.Image, params Params) error {
	destDir, folderID, err := g.placement.ResolveDestination(ctx, col.ID, estimateProjectedSize(img))
	if err != nil {
		return errors.Wrap(err, "resolving cache destination")
	}

	ext := imageproc.CanonicalExtension(params.TargetFormat, filepath.Ext(img.Filename))
	filename := cacheFilename(img.Filename, params, ext)
	destPath := filepath.Join(destDir, filename)
	destPath = shortenIfNeeded(destPath)

	if !params.Overwrite && pathsafe.PathExistsSafe(destPath) && img.CachedAt != nil {
		return ErrAlreadyCached
	}

	sourceBytes, err := imageproc.ReadFromSource(ctx, archiveKindOf(col.SourceKind), col.SourcePath, img.RelativePath)
	if err != nil {
		return errors.Wrap(err, "reading source image")
	}

	probe, err := g.processor.Probe(ctx, sourceBytes, g.maxPixels, g.probeTimeout)
	if err != nil {
		return errors.Wrap(err, "probing source image")
	}

	var outBytes []byte
	outW, outH := probe.Width, probe.Height

	if params.TargetFormat == imageproc.FormatOriginal {
		outBytes = sourceBytes
	} else {
		if params.IsThumbnail {
			resized, err := g.processor.Resize(ctx, sourceBytes, imageproc.FitCover, params.ThumbnailW, params.ThumbnailH)
			if err != nil {
				return errors.Wrap(err, "resizing thumbnail")
			}

			sourceBytes = resized
			outW, outH = params.ThumbnailW, params.ThumbnailH
		}
		// Cache variants NEVER resize implicitly (spec §4.6 step 5):
		// only the thumbnail path above changes geometry.

		encoded, err := g.processor.Encode(ctx, sourceBytes, params.TargetFormat, params.TargetQuality)
		if err != nil {
			return errors.Wrap(err, "encoding derivative")
		}

		outBytes = encoded
	}

	if err := g.writeWithRetry(destPath, outBytes); err != nil {
		return err
	}

	if err := g.placement.RecordWrite(ctx, folderID, int64(len(outBytes))); err != nil {
		log(ctx).Warnw("accounting write failed", "error", err)
	}

	now := time.Now()

	if params.IsThumbnail {
		img.ThumbnailPath = destPath
	} else {
		img.CachePath = destDir
		img.CacheFilename = filename
		img.CacheQuality = params.TargetQuality
		img.CacheFormat = string(params.TargetFormat)
		img.CacheSize = int64(len(outBytes))
		img.CachedAt = &now
		img.CacheWidth = outW
		img.CacheHeight = outH
	}

	return errors.Wrap(g.images.Update(ctx, img), "updating image record")
}

// writeWithRetry writes data to path atomically, retrying on the
// network-drive error family per spec §4.6's "Retry" policy; the write
// probe is re-run on the 2nd attempt.
func (g *Generator) writeWithRetry(path string, data []byte) error {
	var lastErr error

	for attempt, wait := range g.retryBackoff {
		if attempt > 0 {
			time.Sleep(wait)
		}

		if attempt == 1 {
			if probeErr := cachefolder.WriteProbe(filepath.Dir(path)); probeErr != nil {
				lastErr = probeErr
				continue
			}
		}

		lastErr = atomicWriteAndVerify(path, data)
		if lastErr == nil {
			return nil
		}

		if !isRetryableWriteError(lastErr) {
			return lastErr
		}

		g.networkDriveErrorsSeen++
		g.checkBudget()
	}

	return errors.Wrapf(lastErr, "writing derivative %q", path)
}

// checkBudget trips onBudgetExceeded exactly once, the first time the
// network-drive error count reaches the configured threshold.
func (g *Generator) checkBudget() {
	if g.budgetTripped || g.onBudgetExceeded == nil {
		return
	}

	if g.networkDriveErrorsSeen >= g.networkDriveErrorThreshold {
		g.budgetTripped = true
		g.onBudgetExceeded()
	}
}

func atomicWriteAndVerify(path string, data []byte) error {
	if err := atomic.WriteFile(path, strings.NewReader(string(data))); err != nil {
		return err
	}

	fi, ok := pathsafe.StatSafe(path)
	if !ok || fi.Size() == 0 || fi.Size() != int64(len(data)) {
		_ = pathsafe.RemoveSafe(path)
		return ErrWriteVerificationFailed
	}

	return nil
}

func isRetryableWriteError(err error) bool {
	if errors.Is(err, ErrWriteVerificationFailed) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, sub := range []string{"device not recognized", "unable to open for write", "network", "drive"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}

	return false
}

// cacheFilename builds "<stem>[_q<quality>][_<format>].<ext>" per spec
// §4.6's naming convention.
func cacheFilename(sourceName string, params Params, ext string) string {
	stem := strings.TrimSuffix(sourceName, filepath.Ext(sourceName))

	if params.IsThumbnail {
		return stem + "_thumb." + ext
	}

	var b strings.Builder
	b.WriteString(stem)

	if params.TargetQuality > 0 && params.TargetFormat != imageproc.FormatOriginal {
		b.WriteString("_q")
		b.WriteString(strconv.Itoa(params.TargetQuality))
	}

	if params.TargetFormat != imageproc.FormatOriginal {
		b.WriteString("_")
		b.WriteString(string(params.TargetFormat))
	}

	b.WriteString(".")
	b.WriteString(ext)

	return b.String()
}

// shortenIfNeeded remaps path to a short-path form when it exceeds the
// platform-safe length spec §4.6 step 1 names, by hashing the filename
// portion down to a fixed-width stand-in while preserving its extension.
const platformSafePathLength = 240

func shortenIfNeeded(path string) string {
	if len(path) <= platformSafePathLength {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	short := fmt.Sprintf("%x", sumString(path))

	return filepath.Join(dir, short+ext)
}

func sumString(s string) uint32 {
	var h uint32 = 2166136261

	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}

	return h
}

// archiveKindOf maps a collection's store.SourceKind to the archivevfs
// kind its reader is registered under, returning "" for Folder
// collections (no archive reader applies).
func archiveKindOf(kind store.SourceKind) archivevfs.SourceKind {
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

func estimateProjectedSize(img store.Image) int64 {
	if img.ByteSize > 0 {
		return img.ByteSize
	}

	return 1 << 20
}
