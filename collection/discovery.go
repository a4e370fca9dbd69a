// Package collection implements collection discovery (spec C3): turning a
// parent root directory into a list of candidate collections without
// touching the metadata store. Grounded directly on spec §4.3, since no
// teacher source file enumerates image directories; the walk composition
// is built on internal/pathsafe's deny-list-aware walker.
package collection

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/imagevault/core/internal/archivevfs"
	"github.com/imagevault/core/internal/pathsafe"
	"github.com/imagevault/core/logging"
)

var log = logging.Module("imagevault/collection")

// ErrDangerousRoot is returned when parent_root fails the §4.1 safety
// check; discovery never walks a denied subtree.
var ErrDangerousRoot = errors.New("parent root is dangerous")

// maxImageSearchDepth is the "depth ≤ 3 from that directory" bound spec
// §4.3 step 3 names for deciding whether a folder qualifies as an image
// collection.
const maxImageSearchDepth = 3

// supportedImageExtensions is the set spec §4.3 names for folder
// candidates.
var supportedImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".tiff": true, ".svg": true,
}

// Candidate is one discovered collection site, not yet ingested.
type Candidate struct {
	DisplayName string
	Path        string
	Kind        archivevfs.SourceKind
	IsFolder    bool
}

// Options configures FindCollections.
type Options struct {
	IncludeSubfolders bool
	Prefix            string
	DenyPrefixes      []string
	MaxDepth          int // 0 selects pathsafe.DefaultMaxDepth(IncludeSubfolders)
}

// FindCollections walks parentRoot and reports every image-bearing folder
// and supported archive file it finds (spec §4.3). It is pure with
// respect to the metadata store: duplicate suppression against existing
// collections happens at ingestion, not here.
func FindCollections(ctx context.Context, parentRoot string, opts Options) ([]Candidate, error) {
	if pathsafe.IsDangerous(parentRoot, opts.DenyPrefixes) {
		return nil, errors.Wrapf(ErrDangerousRoot, "%q", parentRoot)
	}

	maxDepth := opts.MaxDepth
	if maxDepth == 0 {
		maxDepth = pathsafe.DefaultMaxDepth(opts.IncludeSubfolders)
	}

	var out []Candidate

	for entry := range pathsafe.Walk(ctx, parentRoot, maxDepth, opts.DenyPrefixes) {
		switch entry.Kind {
		case pathsafe.KindDir:
			if !dirHasImage(entry.AbsolutePath, opts.DenyPrefixes) {
				continue
			}

			out = append(out, Candidate{
				DisplayName: displayName(opts.Prefix, entry.RelativePath),
				Path:        entry.AbsolutePath,
				IsFolder:    true,
			})
		case pathsafe.KindFile:
			kind, ok := archivevfs.KindFromExtension(entry.Name)
			if !ok {
				continue
			}

			out = append(out, Candidate{
				DisplayName: displayName(opts.Prefix, entry.RelativePath),
				Path:        entry.AbsolutePath,
				Kind:        kind,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	log(ctx).Infow("discovery complete", "root", parentRoot, "candidates", len(out))

	return out, nil
}

// dirHasImage reports whether dir contains a supported image file within
// maxImageSearchDepth levels of itself.
func dirHasImage(dir string, denyPrefixes []string) bool {
	return hasImageAtDepth(dir, 0, denyPrefixes)
}

func hasImageAtDepth(dir string, depth int, denyPrefixes []string) bool {
	if depth > maxImageSearchDepth {
		return false
	}

	entries, err := pathsafe.ReadDirSafe(dir)
	if err != nil {
		return false
	}

	var subdirs []string

	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "$") {
			continue
		}

		abs := filepath.Join(dir, name)
		if pathsafe.IsDangerous(abs, denyPrefixes) {
			continue
		}

		if e.IsDir() {
			subdirs = append(subdirs, abs)
			continue
		}

		if supportedImageExtensions[strings.ToLower(filepath.Ext(name))] {
			return true
		}
	}

	for _, sub := range subdirs {
		if hasImageAtDepth(sub, depth+1, denyPrefixes) {
			return true
		}
	}

	return false
}

// displayName builds the " - "-joined, prefix-qualified nested name spec
// §4.3 step 3 requires.
func displayName(prefix, relativePath string) string {
	parts := strings.Split(filepath.ToSlash(relativePath), "/")
	joined := strings.Join(parts, " - ")

	if prefix == "" {
		return joined
	}

	return prefix + joined
}
