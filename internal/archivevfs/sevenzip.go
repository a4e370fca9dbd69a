package archivevfs

import (
	"bytes"
	"context"
	"io"

	"github.com/bodgit/sevenzip"
	"github.com/pkg/errors"
)

// sevenZipReader backs SourceKind SevenZ. bodgit/sevenzip is not present
// anywhere in the retrieval pack (no example repo needs 7z support); it is
// named directly here per the out-of-pack-dependency allowance recorded in
// DESIGN.md, since no archive library anywhere in the pack handles 7z.
type sevenZipReader struct{}

func (sevenZipReader) ListEntries(ctx context.Context, archivePath string) (<-chan EntryInfo, error) {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedOrMissingSource, "opening %q: %v", archivePath, err)
	}

	out := make(chan EntryInfo)

	go func() {
		defer close(out)
		defer r.Close()

		for _, f := range r.File {
			select {
			case <-ctx.Done():
				return
			case out <- EntryInfo{Name: f.Name, ByteSize: int64(f.UncompressedSize), IsDirectory: f.FileInfo().IsDir()}:
			}
		}
	}()

	return out, nil
}

func (sevenZipReader) ReadEntry(ctx context.Context, archivePath, entryName string) ([]byte, error) {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedOrMissingSource, "opening %q: %v", archivePath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != entryName {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "opening entry %q in %q", entryName, archivePath)
		}
		defer rc.Close()

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, rc); err != nil {
			return nil, errors.Wrapf(err, "extracting %q from %q", entryName, archivePath)
		}

		return buf.Bytes(), nil
	}

	return nil, errors.Wrapf(ErrUnsupportedOrMissingSource, "entry %q in %q", entryName, archivePath)
}

func init() {
	Register(KindSevenZ, sevenZipReader{})
}
