package archivevfs

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/mholt/archiver/v3"
	"github.com/pkg/errors"
)

// archiverReader adapts one of mholt/archiver/v3's format-specific Walker
// implementations (Zip, Tar, TarGz, TarBz2) to the Reader interface.
// archiver/v3 is the zip/tar-family backend named in SPEC_FULL.md §B.
type archiverReader struct {
	newWalker func(archivePath string) archiver.Walker
}

// tarWalkerFor picks the tar-family walker from the archive's suffix, so
// .tar.gz and .tar.bz2 files are decompressed before the tar stream is read.
func tarWalkerFor(archivePath string) archiver.Walker {
	lower := strings.ToLower(archivePath)

	switch {
	case strings.HasSuffix(lower, ".tar.gz"):
		return archiver.NewTarGz()
	case strings.HasSuffix(lower, ".tar.bz2"):
		return archiver.NewTarBz2()
	default:
		return archiver.NewTar()
	}
}

// headerName recovers the archive-relative member name from the
// format-specific header archiver/v3 stashes on File.Header: the embedded
// os.FileInfo's Name() only carries the base name, which would collide
// for same-named files in different subdirectories.
func headerName(f archiver.File) string {
	switch h := f.Header.(type) {
	case zip.FileHeader:
		return h.Name
	case *zip.FileHeader:
		return h.Name
	case tar.Header:
		return h.Name
	case *tar.Header:
		return h.Name
	default:
		return f.Name()
	}
}

func (a *archiverReader) ListEntries(ctx context.Context, archivePath string) (<-chan EntryInfo, error) {
	out := make(chan EntryInfo)

	go func() {
		defer close(out)

		_ = a.newWalker(archivePath).Walk(archivePath, func(f archiver.File) error {
			defer f.Close()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- EntryInfo{
				Name:        headerName(f),
				ByteSize:    f.Size(),
				IsDirectory: f.IsDir(),
			}:
			}

			return nil
		})
	}()

	return out, nil
}

var errFoundEntry = errors.New("archivevfs: entry found")

func (a *archiverReader) ReadEntry(ctx context.Context, archivePath, entryName string) ([]byte, error) {
	var buf bytes.Buffer

	found := false

	err := a.newWalker(archivePath).Walk(archivePath, func(f archiver.File) error {
		defer f.Close()

		if headerName(f) != entryName {
			return nil
		}

		if _, copyErr := io.Copy(&buf, f.ReadCloser); copyErr != nil {
			return copyErr
		}

		found = true

		return errFoundEntry
	})
	if err != nil && !errors.Is(err, errFoundEntry) {
		return nil, errors.Wrapf(err, "walking archive %q", archivePath)
	}

	if !found {
		return nil, errors.Wrapf(ErrUnsupportedOrMissingSource, "entry %q in %q", entryName, archivePath)
	}

	return buf.Bytes(), nil
}

func init() {
	Register(KindZip, &archiverReader{newWalker: func(string) archiver.Walker { return archiver.NewZip() }})
	Register(KindTar, &archiverReader{newWalker: tarWalkerFor})
}
