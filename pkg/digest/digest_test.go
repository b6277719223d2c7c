package digest

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ChrisMcGann/tagrecon/pkg/core"
)

func sequences(peptides []core.DigestedPeptide) []string {
	var out []string
	for _, p := range peptides {
		out = append(out, p.Sequence)
	}
	return out
}

func TestDigest(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		protein string
		want    []string
	}{
		{
			name:    "fully specific trypsin",
			cfg:     Config{Rule: "trypsin", MinLength: 1, MaxLength: 20, MinTermini: 2},
			protein: "PEPKTIDERAAK",
			want:    []string{"PEPK", "TIDER", "AAK"},
		},
		{
			name:    "one missed cleavage",
			cfg:     Config{Rule: "trypsin", MinLength: 1, MaxLength: 20, MaxMissedCleavages: 1, MinTermini: 2},
			protein: "PEPKTIDERAAK",
			want:    []string{"PEPK", "PEPKTIDER", "TIDER", "TIDERAAK", "AAK"},
		},
		{
			name:    "proline blocks trypsin",
			cfg:     Config{Rule: "trypsin", MinLength: 1, MaxLength: 20, MinTermini: 2},
			protein: "AKPAR",
			want:    []string{"AKPAR"},
		},
		{
			name:    "trypsin/p ignores proline",
			cfg:     Config{Rule: "Trypsin/P", MinLength: 1, MaxLength: 20, MinTermini: 2},
			protein: "AKPAR",
			want:    []string{"AK", "PAR"},
		},
		{
			name:    "custom rule",
			cfg:     Config{Rule: "k|", MinLength: 1, MaxLength: 20, MinTermini: 2},
			protein: "AKPARK",
			want:    []string{"AK", "PARK"},
		},
		{
			name:    "initiator methionine",
			cfg:     Config{Rule: "trypsin", MinLength: 2, MaxLength: 20, MinTermini: 2},
			protein: "MAKAR",
			want:    []string{"MAK", "AK", "AR"},
		},
		{
			name:    "nonspecific",
			cfg:     Config{Rule: "no-cleavage", MinLength: 2, MaxLength: 3},
			protein: "ACDE",
			want:    []string{"AC", "ACD", "CD", "CDE", "DE"},
		},
		{
			name:    "semi specific",
			cfg:     Config{Rule: "no-cleavage", MinLength: 2, MaxLength: 3, MinTermini: 1},
			protein: "ACDE",
			want:    []string{"AC", "ACD", "CDE", "DE"},
		},
		{
			name:    "unknown residues are skipped",
			cfg:     Config{Rule: "no-cleavage", MinLength: 2, MaxLength: 2},
			protein: "ACXDE",
			want:    []string{"AC", "DE"},
		},
		{
			name:    "mass window",
			cfg:     Config{Rule: "trypsin", MinLength: 1, MaxLength: 20, MinMass: 400, MaxMass: 600, MinTermini: 2},
			protein: "PEPKTIDERAAK",
			want:    []string{"PEPK"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			got := sequences(d.Digest(core.Protein{Name: "p", Sequence: tt.protein}))
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Digest() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDigestFlags(t *testing.T) {
	d, err := New(Config{Rule: "trypsin", MinLength: 2, MaxLength: 20, MaxMissedCleavages: 1, MinTermini: 2})
	if err != nil {
		t.Fatal(err)
	}
	peptides := d.Digest(core.Protein{Sequence: "MAKAR"})

	type flags struct {
		Sequence                         string
		Offset, Missed                   int
		NProtein, CProtein, NSpec, CSpec bool
	}
	var got []flags
	for _, p := range peptides {
		got = append(got, flags{p.Sequence, p.Offset, p.MissedCleavages, p.NTerminusIsProtein, p.CTerminusIsProtein, p.NTerminusIsSpecific, p.CTerminusIsSpecific})
	}
	want := []flags{
		{"MAK", 0, 0, true, false, true, true},
		{"MAKAR", 0, 1, true, true, true, true},
		{"AK", 1, 0, false, false, true, true},
		{"AKAR", 1, 1, false, true, true, true},
		{"AR", 3, 0, false, true, true, true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing separator", Config{Rule: "KR", MinLength: 1, MaxLength: 10}},
		{"invalid residue", Config{Rule: "K1|", MinLength: 1, MaxLength: 10}},
		{"inverted lengths", Config{Rule: "trypsin", MinLength: 10, MaxLength: 5}},
		{"bad termini", Config{Rule: "trypsin", MinLength: 1, MaxLength: 5, MinTermini: 3}},
		{"negative missed", Config{Rule: "trypsin", MinLength: 1, MaxLength: 5, MaxMissedCleavages: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
