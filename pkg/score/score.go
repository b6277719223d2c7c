// Package score predicts fragment ions for candidate peptides and scores
// them against query spectra.
package score

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/ChrisMcGann/tagrecon/pkg/core"
)

// Predictor computes b and y ion m/z values.
type Predictor struct {
	model core.MassModel
}

// NewPredictor returns a b/y ion predictor using the given mass model.
func NewPredictor(model core.MassModel) *Predictor {
	return &Predictor{model: model}
}

// Predict returns the sorted m/z values of every b and y ion of peptide at
// fragment charges 1 through maxCharge. Terminal modification masses are
// carried by the first b ion and the first y ion respectively.
func (p *Predictor) Predict(peptide core.DigestedPeptide, maxCharge int) []float64 {
	if maxCharge < 1 {
		maxCharge = 1
	}
	masses := peptide.ResidueMasses(p.model)
	n := len(peptide.Sequence)
	if n < 2 {
		return nil
	}

	ions := make([]float64, 0, 2*(n-1)*maxCharge)
	prefix := masses[0]
	suffix := core.WaterMass(p.model) + masses[n+1]
	for i := 1; i < n; i++ {
		prefix += masses[i]
		suffix += masses[n+1-i]
		for z := 1; z <= maxCharge; z++ {
			ions = append(ions, core.MZFromNeutralMass(prefix, z), core.MZFromNeutralMass(suffix, z))
		}
	}
	sort.Float64s(ions)
	return ions
}

// Hypergeometric scores a candidate by the probability of matching at least
// as many predicted ions by chance. The m/z range of the spectrum is divided
// into bins twice the fragment tolerance wide; peaks occupy bins and
// predicted ions draw from them.
type Hypergeometric struct {
	Tolerance float64
}

// Score returns -log10 of the hypergeometric tail probability and the number
// of predicted ions that matched a peak. Peaks must be sorted by m/z.
func (h Hypergeometric) Score(s *core.Spectrum, ions []float64) (float64, int) {
	peaks := s.Peaks
	if len(peaks) == 0 || len(ions) == 0 || h.Tolerance <= 0 {
		return 0, 0
	}

	low := peaks[0].MZ - h.Tolerance
	high := peaks[len(peaks)-1].MZ + h.Tolerance

	drawn, matched := 0, 0
	for _, ion := range ions {
		if ion < low || ion > high {
			continue
		}
		drawn++
		i := sort.Search(len(peaks), func(i int) bool { return peaks[i].MZ >= ion-h.Tolerance })
		if i < len(peaks) && peaks[i].MZ <= ion+h.Tolerance {
			matched++
		}
	}
	if matched == 0 {
		return 0, 0
	}

	bins := int(math.Ceil((high - low) / (2 * h.Tolerance)))
	successes := len(peaks)
	if bins < successes {
		bins = successes
	}
	if bins < drawn {
		bins = drawn
	}
	return -math.Log10(tailProbability(bins, successes, drawn, matched)), matched
}

// tailProbability returns P(X >= k) for X ~ Hypergeometric(N, K, n).
func tailProbability(N, K, n, k int) float64 {
	total := combin.LogGeneralizedBinomial(float64(N), float64(n))
	p := 0.0
	for j := k; j <= n && j <= K; j++ {
		if n-j > N-K {
			continue
		}
		p += math.Exp(combin.LogGeneralizedBinomial(float64(K), float64(j)) +
			combin.LogGeneralizedBinomial(float64(N-K), float64(n-j)) - total)
	}
	if p <= 0 {
		return math.SmallestNonzeroFloat64
	}
	if p > 1 {
		return 1
	}
	return p
}
