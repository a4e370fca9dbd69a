// Package archivevfs implements the archive reader abstraction of spec C2:
// uniform entry enumeration and extraction across the zip/cbz/7z/rar/cbr/
// tar family, addressed through the "<archive>#<entry>" virtual path shape.
//
// The registry-by-kind dispatch is grounded on
// blob/filesystem/filesystem_storage.go's single-purpose-storage-per-kind
// shape (_seed/filesystem_storage.go.orig): one small adapter type per
// backend, selected by a lookup keyed on the logical kind rather than by
// sniffing content.
package archivevfs

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// SourceKind enumerates the archive kinds spec §3 names for a collection's
// source_kind, restricted here to the archive-backed ones (Folder is not
// an archive kind and has no reader).
type SourceKind string

// Supported archive kinds.
const (
	KindZip    SourceKind = "Zip"
	KindSevenZ SourceKind = "SevenZ"
	KindRar    SourceKind = "Rar"
	KindTar    SourceKind = "Tar"
)

// ErrUnsupportedOrMissingSource is returned for a missing archive, missing
// entry, or unsupported kind, per spec §4.2.
var ErrUnsupportedOrMissingSource = errors.New("unsupported or missing archive source")

// EntryInfo describes one member of an archive.
type EntryInfo struct {
	Name        string
	ByteSize    int64
	IsDirectory bool
}

// Reader is implemented once per archive kind.
type Reader interface {
	// ListEntries lazily enumerates archivePath's members.
	ListEntries(ctx context.Context, archivePath string) (<-chan EntryInfo, error)
	// ReadEntry extracts one member's bytes for decoding downstream.
	ReadEntry(ctx context.Context, archivePath, entryName string) ([]byte, error)
}

// registry maps a SourceKind to its Reader implementation.
var registry = map[SourceKind]Reader{}

// Register installs a Reader for kind. Called from each backend's init,
// mirroring blob's registry-by-name pattern.
func Register(kind SourceKind, r Reader) {
	registry[kind] = r
}

// ForKind returns the Reader registered for kind, or
// ErrUnsupportedOrMissingSource if none is registered.
func ForKind(kind SourceKind) (Reader, error) {
	r, ok := registry[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedOrMissingSource, "kind %q", kind)
	}

	return r, nil
}

// KindFromExtension derives the archive SourceKind from a file extension
// per spec §4.3 step 4 (cbz -> Zip, cbr -> Rar, etc.). ok is false for an
// unrecognized extension.
func KindFromExtension(name string) (kind SourceKind, ok bool) {
	ext := strings.ToLower(name)

	switch {
	case strings.HasSuffix(ext, ".zip"), strings.HasSuffix(ext, ".cbz"):
		return KindZip, true
	case strings.HasSuffix(ext, ".rar"), strings.HasSuffix(ext, ".cbr"):
		return KindRar, true
	case strings.HasSuffix(ext, ".7z"):
		return KindSevenZ, true
	case strings.HasSuffix(ext, ".tar"), strings.HasSuffix(ext, ".tar.gz"), strings.HasSuffix(ext, ".tar.bz2"):
		return KindTar, true
	default:
		return "", false
	}
}

// VirtualPath builds the "<archive_path>#<entry_name>" form spec §4.2
// requires for referring to an image inside an archive.
func VirtualPath(archivePath, entryName string) string {
	return archivePath + "#" + entryName
}

// SplitVirtualPath reverses VirtualPath, reporting ok=false if v does not
// contain the "#" separator.
func SplitVirtualPath(v string) (archivePath, entryName string, ok bool) {
	idx := strings.LastIndex(v, "#")
	if idx < 0 {
		return "", "", false
	}

	return v[:idx], v[idx+1:], true
}
