package importer

import (
	"bytes"
	"sort"

	"github.com/carbocation/pfx"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// requiredTags are the identity fields every uploaded instance must carry
// so that Orthanc can place it in the patient/study/series hierarchy. A
// missing field is defaulted rather than rejected.
var requiredTags = []struct {
	Tag     tag.Tag
	Default string
}{
	{tag.PatientID, "0"},
	{tag.SOPInstanceUID, "0"},
	{tag.SeriesInstanceUID, "0"},
	{tag.StudyInstanceUID, "0"},
}

// EnsureRequiredTags parses data as a DICOM file, inserts a default value
// for each missing identity tag, and re-serializes. The input is returned
// re-encoded even when nothing was missing. A parse failure means the
// payload is not DICOM; the caller decides whether that aborts the run.
func EnsureRequiredTags(data []byte) ([]byte, error) {
	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		return nil, err
	}

	for _, required := range requiredTags {
		if _, err := ds.FindElementByTag(required.Tag); err == nil {
			continue
		}

		elem, err := dicom.NewElement(required.Tag, []string{required.Default})
		if err != nil {
			return nil, pfx.Err(err)
		}
		ds.Elements = append(ds.Elements, elem)
	}

	// DICOM data sets are ordered by tag; appended defaults must not land
	// after higher-numbered groups such as pixel data.
	sort.SliceStable(ds.Elements, func(i, j int) bool {
		a, b := ds.Elements[i].Tag, ds.Elements[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})

	var out bytes.Buffer
	if err := dicom.Write(&out, ds, dicom.SkipVRVerification()); err != nil {
		return nil, pfx.Err(err)
	}

	return out.Bytes(), nil
}
