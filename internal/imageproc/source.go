package imageproc

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/imagevault/core/internal/archivevfs"
	"github.com/imagevault/core/internal/pathsafe"
)

// ReadFromSource implements spec §4.4's read_from_source: for a Folder
// collection, imageRef is a path relative to sourcePath; for an
// archive-backed collection, imageRef is the "<archive_path>#<entry_name>"
// virtual path spec §4.2 defines, and sourcePath is ignored in favor of
// the archive path embedded in imageRef. Callers MUST treat the returned
// buffer as owned.
func ReadFromSource(ctx context.Context, kind archivevfs.SourceKind, sourcePath, imageRef string) ([]byte, error) {
	if kind == "" {
		full := pathsafe.JoinSafe(sourcePath, imageRef)

		data, err := os.ReadFile(full)
		if err != nil {
			return nil, errors.Wrapf(err, "reading source file %q", full)
		}

		return data, nil
	}

	archivePath, entryName, ok := archivevfs.SplitVirtualPath(imageRef)
	if !ok {
		archivePath, entryName = sourcePath, imageRef
	}

	reader, err := archivevfs.ForKind(kind)
	if err != nil {
		return nil, err
	}

	return reader.ReadEntry(ctx, archivePath, entryName)
}
