package archivevfs

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/nwaples/rardecode"
	"github.com/pkg/errors"
)

// rarReader implements Reader directly against nwaples/rardecode (the
// backend mholt/archiver/v3 itself delegates to for .rar/.cbr), since
// archiver/v3's Walker wraps it with the same Header-recovery quirk as
// zip/tar and gains nothing extra for a read-only, non-seekable format.
type rarReader struct{}

func (rarReader) ListEntries(ctx context.Context, archivePath string) (<-chan EntryInfo, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedOrMissingSource, "opening %q: %v", archivePath, err)
	}

	rr, err := rardecode.NewReader(f, "")
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(ErrUnsupportedOrMissingSource, "reading rar header %q: %v", archivePath, err)
	}

	out := make(chan EntryInfo)

	go func() {
		defer close(out)
		defer f.Close()

		for {
			hdr, err := rr.Next()
			if err == io.EOF {
				return
			}

			if err != nil {
				return
			}

			select {
			case <-ctx.Done():
				return
			case out <- EntryInfo{Name: hdr.Name, ByteSize: hdr.UnPackedSize, IsDirectory: hdr.IsDir}:
			}
		}
	}()

	return out, nil
}

func (rarReader) ReadEntry(ctx context.Context, archivePath, entryName string) ([]byte, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedOrMissingSource, "opening %q: %v", archivePath, err)
	}
	defer f.Close()

	rr, err := rardecode.NewReader(f, "")
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedOrMissingSource, "reading rar header %q: %v", archivePath, err)
	}

	for {
		hdr, err := rr.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, errors.Wrapf(err, "reading rar %q", archivePath)
		}

		if hdr.Name != entryName {
			continue
		}

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, rr); err != nil {
			return nil, errors.Wrapf(err, "extracting %q from %q", entryName, archivePath)
		}

		return buf.Bytes(), nil
	}

	return nil, errors.Wrapf(ErrUnsupportedOrMissingSource, "entry %q in %q", entryName, archivePath)
}

func init() {
	Register(KindRar, rarReader{})
}
