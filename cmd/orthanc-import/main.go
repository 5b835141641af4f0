// Command orthanc-import bulk-imports DICOM files and archives into an
// Orthanc server through its REST API.
//
// Each positional argument may be a file, a directory (walked recursively),
// or a gs:// object. Archives (.zip, .tar, .tar.gz, .tar.bz2, .tar.xz) are
// unwrapped in memory, single-stream compression (.gz, .bz2, .xz) is
// undone, and anything else is uploaded as-is. Instances missing any of
// the four identity tags get placeholder values before upload.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/caretag/orthancimport/importer"
	"github.com/caretag/orthancimport/orthanc"
)

func main() {
	var url string
	var force, clear, verbose, ignoreErrors bool

	flag.StringVar(&url, "url", "http://localhost:8042", "URL to the REST API of the Orthanc server")
	flag.BoolVar(&force, "force", false, "Do not ask for confirmation before -clear")
	flag.BoolVar(&clear, "clear", false, "Remove the content of the Orthanc database before importing")
	flag.BoolVar(&verbose, "verbose", false, "Be verbose")
	flag.BoolVar(&ignoreErrors, "ignore-errors", false, "Do not stop if encountering non-DICOM files")
	flag.Parse()

	client := orthanc.NewClient(url)

	if clear {
		if !force && !confirmClear(url, os.Stdin, os.Stdout) {
			log.Fatalln("Aborted: the Orthanc database was not cleared and nothing was imported")
		}
		if err := clearOrthanc(client, os.Stdout); err != nil {
			log.Fatalln(err)
		}
	}

	imp := importer.New(client, importer.Options{
		Verbose:      verbose,
		IgnoreErrors: ignoreErrors,
	}, os.Stdout)

	for _, path := range flag.Args() {
		if err := imp.ImportPath(path); err != nil {
			log.Fatalln(err)
		}
	}

	printSummary(imp.Stats(), os.Stdout)
}

// confirmClear asks for explicit confirmation before wiping the store.
// Anything other than an affirmative answer, including EOF, declines.
func confirmClear(url string, in io.Reader, out io.Writer) bool {
	fmt.Fprintf(out, "This will delete every study on %s. Are you sure? [y/N] ", url)

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// clearOrthanc deletes every study on the server. Any failure aborts the
// whole run since a partially cleared store defeats the point of -clear.
func clearOrthanc(client *orthanc.Client, out io.Writer) error {
	fmt.Fprintln(out, "Removing the content of Orthanc")

	studies, err := client.ListStudies()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "  %d studies are being removed...\n", len(studies))

	for _, study := range studies {
		if err := client.DeleteStudy(study); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "Orthanc is now empty")
	fmt.Fprintln(out, "")

	return nil
}

func printSummary(stats importer.Stats, out io.Writer) {
	fmt.Fprintln(out, "")

	if stats.Errors == 0 {
		fmt.Fprintln(out, "SUCCESS:")
	} else {
		fmt.Fprintln(out, "WARNING:")
	}

	fmt.Fprintf(out, "  %d DICOM instances properly imported\n", stats.Instances)
	fmt.Fprintf(out, "  %d DICOM studies properly imported\n", stats.Studies)
	fmt.Fprintf(out, "  %d JSON files ignored\n", stats.JSONSkipped)
	fmt.Fprintf(out, "  Error in %d files\n", stats.Errors)
	fmt.Fprintln(out, "")
}
