// Package importer implements the archive-aware ingestion pipeline behind
// the orthanc-import tool: it expands files and directories into candidate
// DICOM payloads, unwrapping tar/zip/gzip/bzip2/xz containers along the
// way, repairs missing identity tags, and uploads each payload to Orthanc
// while keeping per-run import accounting.
package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"

	"github.com/caretag/orthancimport/orthanc"
)

type Options struct {
	// Verbose enables per-file and per-archive-member progress output.
	Verbose bool

	// IgnoreErrors downgrades unreadable archives and non-DICOM payloads
	// from fatal to skipped-with-notice.
	IgnoreErrors bool
}

// Stats is the outcome of one import run.
type Stats struct {
	Instances   int // instances accepted by Orthanc
	Studies     int // distinct studies among the accepted instances
	JSONSkipped int // sidecar JSON files silently ignored
	Errors      int // payloads rejected locally or by the server
}

// Importer holds the state of a single run. It is not safe for concurrent
// use; the pipeline is strictly sequential.
type Importer struct {
	client *orthanc.Client
	opts   Options
	out    io.Writer

	// gsClient is initialized lazily on the first gs:// argument.
	gsClient *storage.Client

	seenStudies map[string]struct{}
	stats       Stats
}

func New(client *orthanc.Client, opts Options, out io.Writer) *Importer {
	return &Importer{
		client:      client,
		opts:        opts,
		out:         out,
		seenStudies: make(map[string]struct{}),
	}
}

func (imp *Importer) Stats() Stats {
	stats := imp.stats
	stats.Studies = len(imp.seenStudies)
	return stats
}

// ImportPath imports one positional argument: a regular file, a directory
// walked recursively in lexical order, or a gs:// object. A path that is
// none of these is an error regardless of the ignore-errors setting,
// because it indicates a mistyped argument rather than bad data.
func (imp *Importer) ImportPath(path string) error {
	if strings.HasPrefix(path, "gs://") {
		return imp.importGoogleStorageObject(path)
	}

	info, err := os.Stat(path)
	if err != nil || !(info.Mode().IsRegular() || info.IsDir()) {
		return fmt.Errorf("missing file or directory: %s", path)
	}

	if info.Mode().IsRegular() {
		return imp.decodeFile(path)
	}

	return filepath.Walk(path, func(sub string, info os.FileInfo, err error) error {
		if err != nil {
			return pfx.Err(err)
		}
		if info.IsDir() {
			return nil
		}
		return imp.decodeFile(sub)
	})
}

func (imp *Importer) decodeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	return imp.decodeStream(path, f)
}

// uploadBuffer is the upload sink: it classifies, repairs, and posts one
// payload, updating counters. Sidecar JSON is detected before tag repair
// so that metadata files are skipped no matter whether they arrived as
// top-level arguments or as archive members.
func (imp *Importer) uploadBuffer(name string, data []byte) error {
	if isJSON(data) {
		imp.stats.JSONSkipped++
		return nil
	}

	repaired, err := EnsureRequiredTags(data)
	if err != nil {
		imp.stats.Errors++
		if imp.opts.IgnoreErrors {
			if imp.opts.Verbose {
				fmt.Fprintln(imp.out, "  not a valid DICOM file, ignoring it")
			}
			return nil
		}
		return fmt.Errorf("%s is not a valid DICOM file: %v", name, err)
	}

	instance, err := imp.client.PostInstance(repaired)
	if err != nil {
		var uploadErr *orthanc.UploadError
		if !errors.As(err, &uploadErr) {
			// Transport-level failure, not a rejection by the server.
			return pfx.Err(err)
		}

		imp.stats.Errors++
		if imp.opts.IgnoreErrors {
			if imp.opts.Verbose {
				fmt.Fprintln(imp.out, "  not a valid DICOM file, ignoring it")
			}
		} else {
			fmt.Fprintf(imp.out, "There was an error uploading DICOM: %s\n", uploadErr.Body)
		}
		return nil
	}

	imp.stats.Instances++

	if _, seen := imp.seenStudies[instance.ParentStudy]; seen {
		return nil
	}
	imp.seenStudies[instance.ParentStudy] = struct{}{}

	return imp.printNewStudy(instance)
}

func (imp *Importer) printNewStudy(instance *orthanc.Instance) error {
	tags, err := imp.client.InstanceTagsShort(instance.ID)
	if err != nil {
		return pfx.Err(err)
	}

	fmt.Fprintln(imp.out, "")
	fmt.Fprintln(imp.out, "New imported study:")
	fmt.Fprintf(imp.out, "  Orthanc ID of the patient: %s\n", instance.ParentPatient)
	fmt.Fprintf(imp.out, "  Orthanc ID of the study: %s\n", instance.ParentStudy)
	fmt.Fprintf(imp.out, "  DICOM Patient ID: %s\n", tagOrEmpty(tags, "0010,0020"))
	fmt.Fprintf(imp.out, "  DICOM Study Instance UID: %s\n", tagOrEmpty(tags, "0020,000d"))
	fmt.Fprintln(imp.out, "")

	return nil
}

func tagOrEmpty(tags map[string]string, code string) string {
	if value, ok := tags[code]; ok {
		return value
	}
	return "(empty)"
}

// isJSON reports whether data is a well-formed JSON document. DICOM files
// never are, so this cheaply separates sidecar metadata from images.
func isJSON(data []byte) bool {
	var v interface{}
	return json.Unmarshal(data, &v) == nil
}

func (imp *Importer) logUpload(name string, size int) {
	if imp.opts.Verbose {
		fmt.Fprintf(imp.out, "Uploading: %s (%dMB)\n", name, size/(1024*1024))
	}
}
