// Package deltamass maps residual masses to the modifications and amino acid
// substitutions that could explain them.
package deltamass

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/ChrisMcGann/tagrecon/pkg/core"
)

// IsobaricCutoff is the smallest residue mass difference treated as a
// substitution. It excludes the isobaric L/I and near-isobaric K/Q pairs.
const IsobaricCutoff = 0.8

// DefaultTolerance is the mass tolerance of known modification lookups.
const DefaultTolerance = 0.5

// KnownMod is a modification from the reference database.
type KnownMod struct {
	Name    string
	Residue byte // residue, or a terminus symbol
	Mass    float64
	AvgMass float64
}

// DeltaMass returns the modification mass under the given model.
func (k KnownMod) DeltaMass(model core.MassModel) float64 {
	if model == core.Average {
		return k.AvgMass
	}
	return k.Mass
}

func (k KnownMod) String() string {
	return fmt.Sprintf("%s (%c)", k.Name, k.Residue)
}

// Substitution turns the database residue From into the observed residue To.
// Mass is what adding to From reproduces To, net of any static modification
// on From.
type Substitution struct {
	From  byte
	To    byte
	Mass  float64
	Score int
}

// Name renders the substitution as "From->To".
func (s Substitution) Name() string {
	return fmt.Sprintf("%c->%c", s.From, s.To)
}

// Mod returns the substitution as a dynamic modification on From.
func (s Substitution) Mod() core.DynamicMod {
	return core.DynamicMod{
		Name:    s.Name(),
		Unmod:   s.From,
		Mass:    s.Mass,
		AvgMass: s.Mass,
	}
}

// ScoreMatrix provides substitution log-odds scores.
type ScoreMatrix interface {
	Score(a, b byte) (int, bool)
}

// Options configures a Table.
type Options struct {
	Model           core.MassModel
	BlosumThreshold int
	Tolerance       float64 // known modification mass tolerance
}

// Table answers known modification and substitution lookups. It is read-only
// after construction.
type Table struct {
	model     core.MassModel
	tolerance float64
	known     []KnownMod
	subs      []Substitution
}

// NewTable indexes the known modifications and derives every substitution
// between standard residues whose score under matrix reaches the threshold.
// A nil matrix accepts every substitution with a score of zero.
func NewTable(known []KnownMod, matrix ScoreMatrix, static core.StaticModSet, opts Options) *Table {
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	t := &Table{
		model:     opts.Model,
		tolerance: opts.Tolerance,
		known:     append([]KnownMod(nil), known...),
	}
	sort.SliceStable(t.known, func(i, j int) bool {
		a, b := t.known[i].DeltaMass(t.model), t.known[j].DeltaMass(t.model)
		if a != b {
			return a < b
		}
		return t.known[i].Residue < t.known[j].Residue
	})

	aas := core.StandardAminoAcids
	for i := 0; i < len(aas); i++ {
		from := aas[i]
		fromMass, _ := core.ResidueMass(from, opts.Model)
		staticMass := 0.0
		if mod, ok := static.Find(from); ok {
			staticMass = mod.Mass
		}
		for j := 0; j < len(aas); j++ {
			to := aas[j]
			if from == to {
				continue
			}
			toMass, _ := core.ResidueMass(to, opts.Model)
			if math.Abs(fromMass-toMass) < IsobaricCutoff {
				continue
			}
			score := 0
			if matrix != nil {
				s, ok := matrix.Score(from, to)
				if !ok || s < opts.BlosumThreshold {
					continue
				}
				score = s
			}
			delta := fromMass - toMass + staticMass
			t.subs = append(t.subs, Substitution{
				From:  from,
				To:    to,
				Mass:  -delta,
				Score: score,
			})
		}
	}
	sort.SliceStable(t.subs, func(i, j int) bool {
		return t.subs[i].Mass < t.subs[j].Mass
	})
	return t
}

// Tolerance returns the known modification mass tolerance.
func (t *Table) Tolerance() float64 {
	return t.tolerance
}

// KnownModifications returns the known modifications whose mass equals mass
// within the table tolerance. Residues are compared only among mass-equal
// entries; a zero residue matches any.
func (t *Table) KnownModifications(mass float64, residue byte) []KnownMod {
	lo := sort.Search(len(t.known), func(i int) bool {
		return t.known[i].DeltaMass(t.model) >= mass-t.tolerance
	})
	var matches []KnownMod
	for i := lo; i < len(t.known); i++ {
		m := t.known[i].DeltaMass(t.model)
		if !scalar.EqualWithinAbs(m, mass, t.tolerance) {
			if m > mass {
				break
			}
			continue
		}
		if residue == 0 || t.known[i].Residue == residue {
			matches = append(matches, t.known[i])
		}
	}
	return matches
}

// Substitutions returns the substitutions whose mass is within tol of mass,
// ordered by mass.
func (t *Table) Substitutions(mass, tol float64) []Substitution {
	lo := sort.Search(len(t.subs), func(i int) bool {
		return t.subs[i].Mass >= mass-tol
	})
	var matches []Substitution
	for i := lo; i < len(t.subs) && t.subs[i].Mass <= mass+tol; i++ {
		matches = append(matches, t.subs[i])
	}
	return matches
}

// AllSubstitutions returns every substitution in the table, ordered by mass.
func (t *Table) AllSubstitutions() []Substitution {
	return t.subs
}
