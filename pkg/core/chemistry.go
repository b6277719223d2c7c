// Package core provides chemistry calculations for peptide mass calculations
package core

import "math"

// Atomic masses (monoisotopic)
const (
	MassH = 1.0078250321
	MassC = 12.0000000000
	MassN = 14.0030740052
	MassO = 15.9949146221
	MassS = 31.9720706900
	MassP = 30.9737615100

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688

	// Mass difference between the C13 and C12 isotopes
	NeutronMass = 1.00335483778
)

// Atomic masses (average)
const (
	AvgMassH = 1.00794
	AvgMassC = 12.0107
	AvgMassN = 14.0067
	AvgMassO = 15.9994
	AvgMassS = 32.065
	AvgMassP = 30.973762
)

// MassModel selects monoisotopic or average masses.
type MassModel int

const (
	Monoisotopic MassModel = iota
	Average
)

func (m MassModel) String() string {
	if m == Average {
		return "average"
	}
	return "monoisotopic"
}

// Peptide terminus symbols used when a sequence is decorated with its termini.
const (
	NTerminusSymbol = '('
	CTerminusSymbol = ')'
)

// AminoAcidComposition stores elemental composition
type AminoAcidComposition struct {
	C, H, N, O, S int
}

// AminoAcidMasses maps amino acid one-letter codes to residue elemental composition
var AminoAcidMasses = map[rune]AminoAcidComposition{
	'A': {C: 3, H: 5, N: 1, O: 1, S: 0},
	'R': {C: 6, H: 12, N: 4, O: 1, S: 0},
	'N': {C: 4, H: 6, N: 2, O: 2, S: 0},
	'D': {C: 4, H: 5, N: 1, O: 3, S: 0},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'E': {C: 5, H: 7, N: 1, O: 3, S: 0},
	'Q': {C: 5, H: 8, N: 2, O: 2, S: 0},
	'G': {C: 2, H: 3, N: 1, O: 1, S: 0},
	'H': {C: 6, H: 7, N: 3, O: 1, S: 0},
	'I': {C: 6, H: 11, N: 1, O: 1, S: 0},
	'L': {C: 6, H: 11, N: 1, O: 1, S: 0},
	'K': {C: 6, H: 12, N: 2, O: 1, S: 0},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'F': {C: 9, H: 9, N: 1, O: 1, S: 0},
	'P': {C: 5, H: 7, N: 1, O: 1, S: 0},
	'S': {C: 3, H: 5, N: 1, O: 2, S: 0},
	'T': {C: 4, H: 7, N: 1, O: 2, S: 0},
	'W': {C: 11, H: 10, N: 2, O: 1, S: 0},
	'Y': {C: 9, H: 9, N: 1, O: 2, S: 0},
	'V': {C: 5, H: 9, N: 1, O: 1, S: 0},
}

// StandardAminoAcids lists the twenty residues in alphabetical order.
const StandardAminoAcids = "ACDEFGHIKLMNPQRSTVWY"

var (
	monoResidueMass [256]float64
	avgResidueMass  [256]float64
	knownResidue    [256]bool
)

func init() {
	for aa, comp := range AminoAcidMasses {
		monoResidueMass[aa] = comp.Mass(Monoisotopic)
		avgResidueMass[aa] = comp.Mass(Average)
		knownResidue[aa] = true
	}
}

// Mass returns the mass of the composition under the given model.
func (c AminoAcidComposition) Mass(model MassModel) float64 {
	if model == Average {
		return float64(c.C)*AvgMassC +
			float64(c.H)*AvgMassH +
			float64(c.N)*AvgMassN +
			float64(c.O)*AvgMassO +
			float64(c.S)*AvgMassS
	}
	return float64(c.C)*MassC +
		float64(c.H)*MassH +
		float64(c.N)*MassN +
		float64(c.O)*MassO +
		float64(c.S)*MassS
}

// ResidueMass returns the residue mass of an amino acid. Terminus symbols
// have zero mass and are reported as known.
func ResidueMass(aa byte, model MassModel) (float64, bool) {
	if aa == NTerminusSymbol || aa == CTerminusSymbol {
		return 0, true
	}
	if !knownResidue[aa] {
		return 0, false
	}
	if model == Average {
		return avgResidueMass[aa], true
	}
	return monoResidueMass[aa], true
}

// WaterMass returns the mass of H2O.
func WaterMass(model MassModel) float64 {
	if model == Average {
		return 2*AvgMassH + AvgMassO
	}
	return 2*MassH + MassO
}

// SequenceMass computes the neutral mass of an unmodified sequence.
// Unknown residues contribute nothing.
func SequenceMass(sequence string, model MassModel) float64 {
	mass := WaterMass(model)
	for i := 0; i < len(sequence); i++ {
		m, _ := ResidueMass(sequence[i], model)
		mass += m
	}
	return mass
}

// NeutralMassFromMZ converts a precursor m/z and charge to a neutral mass.
func NeutralMassFromMZ(mz float64, charge int) float64 {
	return mz*float64(charge) - float64(charge)*ProtonMass
}

// MZFromNeutralMass computes the m/z for a given charge state.
func MZFromNeutralMass(mass float64, charge int) float64 {
	// Calculate m/z: (mass + charge * proton) / charge
	return (mass + float64(charge)*ProtonMass) / float64(charge)
}

// RoundFloat rounds a float to n decimal places
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
