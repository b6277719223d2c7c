package msp

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ChrisMcGann/tagrecon/pkg/core"
)

const testMSP = `Name: scan=42/2
Comment: Parent=429.21 Source=run01 Index=42 RT=1234.5 Tags=PTI@226.1@148.1@1@2.5,tid@300.2@50.5@2
Num peaks: 3
100.1	200
226.1	1500	"b2/0.01"
330.2	0

Name: scan=43/3
MW: 1500.75
Comment: Parent=501.25
Num peaks: 1
500.0	10
`

func TestReader(t *testing.T) {
	reader := NewReader(strings.NewReader(testMSP), "default")

	var spectra []*core.Spectrum
	for reader.Next() {
		spectra = append(spectra, reader.Spectrum())
	}
	if err := reader.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spectra) != 2 {
		t.Fatalf("expected 2 spectra, got %d", len(spectra))
	}

	first := spectra[0]
	if diff := cmp.Diff(core.SpectrumID{Source: "run01", Index: 42, NativeID: "scan=42", Charge: 2}, first.ID); diff != "" {
		t.Errorf("ID mismatch (-want +got):\n%s", diff)
	}
	if first.PrecursorMZ != 429.21 {
		t.Errorf("PrecursorMZ = %v, want 429.21", first.PrecursorMZ)
	}
	wantMass := core.NeutralMassFromMZ(429.21, 2)
	if first.NeutralMass != wantMass {
		t.Errorf("NeutralMass = %v, want %v", first.NeutralMass, wantMass)
	}
	if first.RetentionTime == nil || *first.RetentionTime != 1234.5 {
		t.Errorf("RetentionTime = %v, want 1234.5", first.RetentionTime)
	}

	wantPeaks := []core.Peak{
		{MZ: 100.1, Intensity: 200},
		{MZ: 226.1, Intensity: 1500, Annotation: "b2"},
		{MZ: 330.2, Intensity: 0},
	}
	if diff := cmp.Diff(wantPeaks, first.Peaks); diff != "" {
		t.Errorf("peaks mismatch (-want +got):\n%s", diff)
	}

	wantTags := []core.TagInfo{
		{Tag: "PTI", NTerminusMass: 226.1, CTerminusMass: 148.1, Charge: 1, Score: 2.5},
		{Tag: "TID", NTerminusMass: 300.2, CTerminusMass: 50.5, Charge: 2},
	}
	if diff := cmp.Diff(wantTags, first.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}

	second := spectra[1]
	if second.NeutralMass != 1500.75 {
		t.Errorf("MW should take precedence, got %v", second.NeutralMass)
	}
	if second.ID.Source != "default" || second.ID.Index != 1 {
		t.Errorf("expected default source and running index, got %+v", second.ID)
	}
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    []core.TagInfo
		wantErr bool
	}{
		{
			name:  "single",
			value: "AAA@1@2@1",
			want:  []core.TagInfo{{Tag: "AAA", NTerminusMass: 1, CTerminusMass: 2, Charge: 1}},
		},
		{
			name:  "trailing comma",
			value: "AAA@1@2@1,",
			want:  []core.TagInfo{{Tag: "AAA", NTerminusMass: 1, CTerminusMass: 2, Charge: 1}},
		},
		{name: "too few fields", value: "AAA@1@2", wantErr: true},
		{name: "bad mass", value: "AAA@x@2@1", wantErr: true},
		{name: "bad charge", value: "AAA@1@2@z", wantErr: true},
		{name: "bad score", value: "AAA@1@2@1@s", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTags(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("ParseTags() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing charge", "Name: scan=1\nNum peaks: 0\n"},
		{"bad peak", "Name: scan=1/2\nNum peaks: 1\nabc\t1\n"},
		{"truncated peaks", "Name: scan=1/2\nNum peaks: 3\n100\t1\n"},
		{"bad parent", "Name: scan=1/2\nComment: Parent=x\nNum peaks: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewReader(strings.NewReader(tt.input), "")
			if reader.Next() {
				t.Fatal("expected Next() to fail")
			}
			if reader.Err() == nil {
				t.Error("expected an error")
			}
		})
	}
}
