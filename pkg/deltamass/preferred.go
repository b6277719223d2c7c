package deltamass

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ChrisMcGann/tagrecon/pkg/core"
	"github.com/ChrisMcGann/tagrecon/pkg/subset"
)

// Shift is a combination of preferred modifications and its total mass.
type Shift struct {
	Mass float64
	Mods core.DynamicModSet
}

// Name lists the combined modifications, e.g. "S+79.966,M+15.995".
func (s Shift) Name() string {
	parts := make([]string, 0, len(s.Mods))
	for _, mod := range s.Mods {
		parts = append(parts, fmt.Sprintf("%c%+.3f", mod.Unmod, mod.Mass))
	}
	return strings.Join(parts, ",")
}

// PreferredShifts indexes every combination of up to numCombinations
// preferred modifications by total mass.
type PreferredShifts struct {
	shifts []Shift
}

// NewPreferredShifts combines the vocabulary into all subsets of 1 to
// numCombinations modifications. Combinations of several modifications whose
// masses cancel to within a neutron mass are dropped.
func NewPreferredShifts(vocabulary core.DynamicModSet, numCombinations int, model core.MassModel) *PreferredShifts {
	p := &PreferredShifts{}
	if len(vocabulary) == 0 || numCombinations < 1 {
		return p
	}

	e := subset.New(len(vocabulary), 1, numCombinations, nil)
	for {
		indices := e.Subset()
		mods := make(core.DynamicModSet, 0, len(indices))
		total := 0.0
		for _, i := range indices {
			mods = append(mods, vocabulary[i-1])
			total += vocabulary[i-1].DeltaMass(model)
		}
		if len(mods) == 1 || math.Abs(total) > core.NeutronMass {
			p.shifts = append(p.shifts, Shift{Mass: total, Mods: mods})
		}
		if e.Next() == 0 {
			break
		}
	}
	sort.SliceStable(p.shifts, func(i, j int) bool {
		return p.shifts[i].Mass < p.shifts[j].Mass
	})
	return p
}

// Len returns the number of indexed combinations.
func (p *PreferredShifts) Len() int {
	return len(p.shifts)
}

// Matching returns the combinations whose total mass is within tol of mass.
func (p *PreferredShifts) Matching(mass, tol float64) []Shift {
	lo := sort.Search(len(p.shifts), func(i int) bool {
		return p.shifts[i].Mass >= mass-tol
	})
	var matches []Shift
	for i := lo; i < len(p.shifts) && p.shifts[i].Mass <= mass+tol; i++ {
		matches = append(matches, p.shifts[i])
	}
	return matches
}

// Contains reports whether any combination is within tol of mass.
func (p *PreferredShifts) Contains(mass, tol float64) bool {
	lo := sort.Search(len(p.shifts), func(i int) bool {
		return p.shifts[i].Mass >= mass-tol
	})
	return lo < len(p.shifts) && p.shifts[lo].Mass <= mass+tol
}
