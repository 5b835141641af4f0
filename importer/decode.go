package importer

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

// decodeStream routes one input file to the right extraction strategy based
// on its suffix. Container formats (tar variants, zip) yield one payload
// per regular-file member; single-stream compression and passthrough yield
// exactly one payload. The most specific suffix wins, so a.tar.gz is a
// compressed tar rather than a gzipped single file.
func (imp *Importer) decodeStream(name string, r io.Reader) error {
	switch {
	case strings.HasSuffix(name, ".tar.bz2"):
		return imp.uploadTar(name, bzip2.NewReader(r))

	case strings.HasSuffix(name, ".tar.gz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return imp.archiveOpenFailed(name, err)
		}
		defer gz.Close()
		return imp.uploadTar(name, gz)

	case strings.HasSuffix(name, ".tar.xz"):
		xzr, err := xz.NewReader(r, 0)
		if err != nil {
			return imp.archiveOpenFailed(name, err)
		}
		return imp.uploadTar(name, xzr)

	case filepath.Ext(name) == ".zip":
		return imp.uploadZip(name, r)

	case filepath.Ext(name) == ".tar":
		return imp.uploadTar(name, r)

	case filepath.Ext(name) == ".bz2":
		return imp.uploadDecompressed(name, bzip2.NewReader(r))

	case filepath.Ext(name) == ".gz":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return imp.archiveOpenFailed(name, err)
		}
		defer gz.Close()
		return imp.uploadDecompressed(name, gz)

	case filepath.Ext(name) == ".xz":
		xzr, err := xz.NewReader(r, 0)
		if err != nil {
			return imp.archiveOpenFailed(name, err)
		}
		return imp.uploadDecompressed(name, xzr)

	default:
		return imp.uploadDecompressed(name, r)
	}
}

// uploadTar feeds every regular-file member of a tar stream to the upload
// sink. Directories, symlinks and other special entries are skipped.
func (imp *Importer) uploadTar(name string, r io.Reader) error {
	if imp.opts.Verbose {
		fmt.Fprintf(imp.out, "Uncompressing tar archive: %s\n", name)
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return imp.archiveOpenFailed(name, err)
		}

		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return imp.archiveOpenFailed(name, err)
		}

		imp.logUpload(hdr.Name, len(data))
		if err := imp.uploadBuffer(hdr.Name, data); err != nil {
			return err
		}
	}
}

// uploadZip iterates a zip sequentially via zipstream, which keeps the
// decoder working on plain io.Readers (no ReaderAt, so gs:// inputs work).
func (imp *Importer) uploadZip(name string, r io.Reader) error {
	if imp.opts.Verbose {
		fmt.Fprintf(imp.out, "Uncompressing ZIP archive: %s\n", name)
	}

	zs := zipstream.NewReader(r)
	for {
		hdr, err := zs.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return imp.archiveOpenFailed(name, err)
		}

		if hdr.FileInfo().IsDir() {
			continue
		}

		data, err := io.ReadAll(zs)
		if err != nil {
			return imp.archiveOpenFailed(name, err)
		}

		imp.logUpload(hdr.Name, len(data))
		if err := imp.uploadBuffer(hdr.Name, data); err != nil {
			return err
		}
	}
}

// uploadDecompressed reads the whole (possibly decompressed) stream as one
// payload and hands it to the upload sink.
func (imp *Importer) uploadDecompressed(name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return imp.archiveOpenFailed(name, err)
	}

	imp.logUpload(name, len(data))
	return imp.uploadBuffer(name, data)
}

// archiveOpenFailed applies the policy for a container that cannot be read:
// fatal by default, skip the remainder of the file under ignore-errors. The
// error counter is left alone in the skip case since no payload failed.
func (imp *Importer) archiveOpenFailed(name string, err error) error {
	if imp.opts.IgnoreErrors {
		if imp.opts.Verbose {
			fmt.Fprintf(imp.out, "  cannot read %s, ignoring it (%v)\n", name, err)
		}
		return nil
	}
	return fmt.Errorf("cannot read %s: %v", name, err)
}
