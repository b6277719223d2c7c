package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Sentinel positions of a ModificationMap.
const (
	NTerminus = math.MinInt32
	CTerminus = math.MaxInt32
)

// Modification is a mass delta applied at one position of a peptide.
type Modification struct {
	Name    string
	Mass    float64 // monoisotopic delta mass
	AvgMass float64 // average delta mass
}

// DeltaMass returns the delta mass under the given model.
func (m Modification) DeltaMass(model MassModel) float64 {
	if model == Average {
		return m.AvgMass
	}
	return m.Mass
}

// ModificationMap maps 0-based residue indices (and the NTerminus and
// CTerminus sentinels) to the modifications applied there. Reading a
// position that holds no modification yields an empty list.
type ModificationMap map[int][]Modification

// Add appends a modification at a position.
func (m ModificationMap) Add(pos int, mod Modification) {
	m[pos] = append(m[pos], mod)
}

// At returns the modifications at a position.
func (m ModificationMap) At(pos int) []Modification {
	return m[pos]
}

// MassAt returns the summed delta mass at a position.
func (m ModificationMap) MassAt(pos int, model MassModel) float64 {
	total := 0.0
	for _, mod := range m[pos] {
		total += mod.DeltaMass(model)
	}
	return total
}

// DeltaMass returns the summed delta mass of every modification.
func (m ModificationMap) DeltaMass(model MassModel) float64 {
	total := 0.0
	for pos := range m {
		total += m.MassAt(pos, model)
	}
	return total
}

// Len returns the number of modifications in the map.
func (m ModificationMap) Len() int {
	n := 0
	for _, mods := range m {
		n += len(mods)
	}
	return n
}

// Positions returns the occupied positions in ascending order.
func (m ModificationMap) Positions() []int {
	positions := make([]int, 0, len(m))
	for pos, mods := range m {
		if len(mods) > 0 {
			positions = append(positions, pos)
		}
	}
	sort.Ints(positions)
	return positions
}

// Clone returns an independent copy of the map.
func (m ModificationMap) Clone() ModificationMap {
	c := make(ModificationMap, len(m))
	for pos, mods := range m {
		if len(mods) == 0 {
			continue
		}
		c[pos] = append([]Modification(nil), mods...)
	}
	return c
}

// Protein is one entry of the sequence database.
type Protein struct {
	Name        string
	Description string
	Sequence    string
	Decoy       bool
}

// DigestedPeptide is a peptide produced by digesting a protein, together with
// the modifications applied to it.
type DigestedPeptide struct {
	Sequence        string
	Offset          int // 0-based offset within the parent protein
	MissedCleavages int

	NTerminusIsSpecific bool
	CTerminusIsSpecific bool
	NTerminusIsProtein  bool
	CTerminusIsProtein  bool

	Mods ModificationMap
}

// NewDigestedPeptide returns an unmodified peptide with no protein context.
func NewDigestedPeptide(sequence string) DigestedPeptide {
	return DigestedPeptide{
		Sequence:            sequence,
		NTerminusIsSpecific: true,
		CTerminusIsSpecific: true,
		Mods:                ModificationMap{},
	}
}

// Clone returns a copy that owns its modification map.
func (p DigestedPeptide) Clone() DigestedPeptide {
	c := p
	if p.Mods != nil {
		c.Mods = p.Mods.Clone()
	} else {
		c.Mods = ModificationMap{}
	}
	return c
}

// NTT returns the number of termini consistent with the digestion specificity.
func (p DigestedPeptide) NTT() int {
	n := 0
	if p.NTerminusIsSpecific {
		n++
	}
	if p.CTerminusIsSpecific {
		n++
	}
	return n
}

// SequenceWithTermini returns the sequence wrapped with terminus symbols.
func (p DigestedPeptide) SequenceWithTermini() string {
	return string(NTerminusSymbol) + p.Sequence + string(CTerminusSymbol)
}

// ModPosition converts an index into SequenceWithTermini to a ModificationMap
// position.
func (p DigestedPeptide) ModPosition(i int) int {
	switch {
	case i <= 0:
		return NTerminus
	case i > len(p.Sequence):
		return CTerminus
	default:
		return i - 1
	}
}

// ModMass returns the total delta mass of the applied modifications.
func (p DigestedPeptide) ModMass(model MassModel) float64 {
	if p.Mods == nil {
		return 0
	}
	return p.Mods.DeltaMass(model)
}

// NeutralMass returns the neutral mass including modifications.
func (p DigestedPeptide) NeutralMass(model MassModel) float64 {
	return SequenceMass(p.Sequence, model) + p.ModMass(model)
}

// ResidueMasses returns per-position masses of SequenceWithTermini with
// modification deltas folded in. The terminus entries hold only terminal
// modification masses.
func (p DigestedPeptide) ResidueMasses(model MassModel) []float64 {
	masses := make([]float64, len(p.Sequence)+2)
	masses[0] = p.Mods.MassAt(NTerminus, model)
	for i := 0; i < len(p.Sequence); i++ {
		m, _ := ResidueMass(p.Sequence[i], model)
		masses[i+1] = m + p.Mods.MassAt(i, model)
	}
	masses[len(masses)-1] = p.Mods.MassAt(CTerminus, model)
	return masses
}

// Interpretation renders the peptide with its monoisotopic modification
// masses inline, e.g. "(PVSPLLLASGM+16AR)". It is used for display and
// ordering only; masses are rounded, so it does not identify a result.
func (p DigestedPeptide) Interpretation() string {
	return p.InterpretationFor(Monoisotopic)
}

// InterpretationFor renders the peptide like Interpretation with the
// modification masses of the given model.
func (p DigestedPeptide) InterpretationFor(model MassModel) string {
	var b strings.Builder
	b.WriteByte(NTerminusSymbol)
	writeMods := func(pos int) {
		for _, mod := range p.Mods.At(pos) {
			fmt.Fprintf(&b, "%+.0f", math.Round(mod.DeltaMass(model)))
		}
	}
	writeMods(NTerminus)
	for i := 0; i < len(p.Sequence); i++ {
		b.WriteByte(p.Sequence[i])
		writeMods(i)
	}
	b.WriteByte(CTerminusSymbol)
	writeMods(CTerminus)
	return b.String()
}

// ModString returns the modifications in format "mass@pos;mass@pos;...".
// Terminal sentinels are written as -1 and len(sequence).
func (p DigestedPeptide) ModString() string {
	positions := p.Mods.Positions()
	if len(positions) == 0 {
		return ""
	}

	var parts []string
	for _, pos := range positions {
		at := pos
		switch pos {
		case NTerminus:
			at = -1
		case CTerminus:
			at = len(p.Sequence)
		}
		for _, mod := range p.Mods.At(pos) {
			parts = append(parts, fmt.Sprintf("%.6f@%d", mod.Mass, at))
		}
	}
	return strings.Join(parts, ";")
}
