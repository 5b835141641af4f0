package importer

import (
	"bytes"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func mustElement(t *testing.T, tg tag.Tag, value interface{}) *dicom.Element {
	t.Helper()

	elem, err := dicom.NewElement(tg, value)
	if err != nil {
		t.Fatalf("NewElement(%v): %v", tg, err)
	}
	return elem
}

// encodeDICOM serializes a minimal DICOM file carrying the given dataset
// elements plus the mandatory file meta group.
func encodeDICOM(t *testing.T, elems ...*dicom.Element) []byte {
	t.Helper()

	all := []*dicom.Element{
		mustElement(t, tag.FileMetaInformationVersion, []byte{0x00, 0x01}),
		mustElement(t, tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.7"}),
		mustElement(t, tag.MediaStorageSOPInstanceUID, []string{"1.2.3.4.5"}),
		mustElement(t, tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
	}
	all = append(all, elems...)

	var buf bytes.Buffer
	if err := dicom.Write(&buf, dicom.Dataset{Elements: all}, dicom.SkipVRVerification()); err != nil {
		t.Fatalf("writing test DICOM: %v", err)
	}
	return buf.Bytes()
}

// testDICOM builds a parseable instance for the given study and patient.
func testDICOM(t *testing.T, studyUID, sopUID, patientID string) []byte {
	t.Helper()

	return encodeDICOM(t,
		mustElement(t, tag.PatientID, []string{patientID}),
		mustElement(t, tag.SOPInstanceUID, []string{sopUID}),
		mustElement(t, tag.SeriesInstanceUID, []string{studyUID + ".1"}),
		mustElement(t, tag.StudyInstanceUID, []string{studyUID}),
	)
}

func tagString(t *testing.T, ds dicom.Dataset, tg tag.Tag) string {
	t.Helper()

	elem, err := ds.FindElementByTag(tg)
	if err != nil {
		t.Fatalf("tag %v missing after repair", tg)
	}
	return dicom.MustGetStrings(elem.Value)[0]
}

func TestEnsureRequiredTagsFillsMissing(t *testing.T) {
	for _, tc := range []struct {
		name  string
		elems []*dicom.Element
		want  map[tag.Tag]string
	}{
		{
			name:  "all missing",
			elems: nil,
			want: map[tag.Tag]string{
				tag.PatientID:         "0",
				tag.SOPInstanceUID:    "0",
				tag.SeriesInstanceUID: "0",
				tag.StudyInstanceUID:  "0",
			},
		},
		{
			name: "subset missing keeps originals",
			elems: []*dicom.Element{
				mustElement(t, tag.SOPInstanceUID, []string{"1.2.3"}),
				mustElement(t, tag.StudyInstanceUID, []string{"9.8.7"}),
			},
			want: map[tag.Tag]string{
				tag.PatientID:         "0",
				tag.SOPInstanceUID:    "1.2.3",
				tag.SeriesInstanceUID: "0",
				tag.StudyInstanceUID:  "9.8.7",
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			repaired, err := EnsureRequiredTags(encodeDICOM(t, tc.elems...))
			if err != nil {
				t.Fatalf("EnsureRequiredTags: %v", err)
			}

			ds, err := dicom.Parse(bytes.NewReader(repaired), int64(len(repaired)), nil)
			if err != nil {
				t.Fatalf("reparsing repaired output: %v", err)
			}

			for tg, want := range tc.want {
				if got := tagString(t, ds, tg); got != want {
					t.Errorf("tag %v: got %q, want %q", tg, got, want)
				}
			}
		})
	}
}

func TestEnsureRequiredTagsCompleteInputUnchanged(t *testing.T) {
	in := testDICOM(t, "1.2.840.1111", "1.2.840.2222", "PAT001")

	repaired, err := EnsureRequiredTags(in)
	if err != nil {
		t.Fatalf("EnsureRequiredTags: %v", err)
	}

	ds, err := dicom.Parse(bytes.NewReader(repaired), int64(len(repaired)), nil)
	if err != nil {
		t.Fatalf("reparsing repaired output: %v", err)
	}

	for tg, want := range map[tag.Tag]string{
		tag.PatientID:         "PAT001",
		tag.SOPInstanceUID:    "1.2.840.2222",
		tag.SeriesInstanceUID: "1.2.840.1111.1",
		tag.StudyInstanceUID:  "1.2.840.1111",
	} {
		if got := tagString(t, ds, tg); got != want {
			t.Errorf("tag %v: got %q, want %q", tg, got, want)
		}
	}
}

func TestEnsureRequiredTagsRejectsNonDICOM(t *testing.T) {
	for _, in := range [][]byte{
		[]byte("definitely not a dicom file"),
		[]byte(`{"PatientID": "not dicom either"}`),
		{},
	} {
		if _, err := EnsureRequiredTags(in); err == nil {
			t.Errorf("expected a parse error for %q", in)
		}
	}
}
