package score

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ChrisMcGann/tagrecon/pkg/core"
)

func TestPredict(t *testing.T) {
	acetyl := core.Modification{Name: "Acetyl", Mass: 42.010565, AvgMass: 42.0367}

	tests := []struct {
		name      string
		peptide   func() core.DigestedPeptide
		maxCharge int
		want      []float64
	}{
		{
			name:      "singly charged",
			peptide:   func() core.DigestedPeptide { return core.NewDigestedPeptide("GAK") },
			maxCharge: 1,
			want:      []float64{58.02874, 129.06585, 147.11280, 218.14992},
		},
		{
			name: "n-terminal modification shifts b ions",
			peptide: func() core.DigestedPeptide {
				p := core.NewDigestedPeptide("GAK")
				p.Mods.Add(core.NTerminus, acetyl)
				return p
			},
			maxCharge: 1,
			want:      []float64{100.03931, 147.11280, 171.07642, 218.14992},
		},
		{
			name:      "zero charge treated as one",
			peptide:   func() core.DigestedPeptide { return core.NewDigestedPeptide("GAK") },
			maxCharge: 0,
			want:      []float64{58.02874, 129.06585, 147.11280, 218.14992},
		},
		{
			name:      "single residue has no fragments",
			peptide:   func() core.DigestedPeptide { return core.NewDigestedPeptide("K") },
			maxCharge: 2,
			want:      nil,
		},
	}

	predictor := NewPredictor(core.Monoisotopic)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := predictor.Predict(tt.peptide(), tt.maxCharge)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-3), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Predict() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPredictChargeStates(t *testing.T) {
	ions := NewPredictor(core.Monoisotopic).Predict(core.NewDigestedPeptide("PEPTIDEK"), 2)
	if len(ions) != 2*7*2 {
		t.Fatalf("expected 28 ions, got %d", len(ions))
	}
	for i := 1; i < len(ions); i++ {
		if ions[i] < ions[i-1] {
			t.Fatalf("ions not sorted at %d", i)
		}
	}
}

func TestTailProbability(t *testing.T) {
	tests := []struct {
		N, K, n, k int
		want       float64
	}{
		{4, 2, 2, 2, 1.0 / 6},
		{4, 2, 2, 1, 5.0 / 6},
		{4, 2, 2, 0, 1},
		{10, 5, 3, 3, 10.0 / 120},
	}
	for _, tt := range tests {
		got := tailProbability(tt.N, tt.K, tt.n, tt.k)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("tailProbability(%d, %d, %d, %d) = %v, want %v", tt.N, tt.K, tt.n, tt.k, got, tt.want)
		}
	}
}

func TestHypergeometricScore(t *testing.T) {
	spec := &core.Spectrum{Peaks: []core.Peak{
		{MZ: 100, Intensity: 1},
		{MZ: 200, Intensity: 1},
		{MZ: 300, Intensity: 1},
		{MZ: 400, Intensity: 1},
		{MZ: 500, Intensity: 1},
	}}
	scorer := Hypergeometric{Tolerance: 0.5}

	two, matched := scorer.Score(spec, []float64{100.2, 200.3, 350, 600})
	if matched != 2 {
		t.Errorf("expected 2 matched ions, got %d", matched)
	}
	three, matched := scorer.Score(spec, []float64{100.2, 200.3, 299.6})
	if matched != 3 {
		t.Errorf("expected 3 matched ions, got %d", matched)
	}
	if !(three > two && two > 0) {
		t.Errorf("scores should grow with matches: two=%v three=%v", two, three)
	}

	if score, matched := scorer.Score(spec, []float64{150, 250}); score != 0 || matched != 0 {
		t.Errorf("no matches should score 0, got %v (%d)", score, matched)
	}
	if score, _ := scorer.Score(&core.Spectrum{}, []float64{100}); score != 0 {
		t.Errorf("empty spectrum should score 0, got %v", score)
	}
}
