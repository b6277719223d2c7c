// Package ptm enumerates the modified forms of a digested peptide.
//
// A Plan is built once per peptide: static modifications are applied, the
// sites eligible for every dynamic modification are collected and the worst
// case number of variants is computed. The plan is immutable; its variants
// are consumed through Iter, ModifiedIter or Variants.
package ptm

import (
	"math"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/ChrisMcGann/tagrecon/pkg/core"
	"github.com/ChrisMcGann/tagrecon/pkg/subset"
)

// Site is one (position, modification) pair a dynamic modification may
// occupy. Position indexes the terminus-decorated sequence.
type Site struct {
	Position int
	Mod      core.DynamicMod
}

// Plan holds everything needed to enumerate the variants of one peptide.
type Plan struct {
	base    core.DigestedPeptide
	sites   []Site
	maxMods int
	count   int
	skip    bool
}

// NewPlan applies static modifications to peptide, collects the sites
// eligible for the dynamic modifications and counts the variants carrying up
// to maxMods of them. When the count exceeds ceiling the plan is skipped; a
// ceiling of zero or less disables the guard.
func NewPlan(peptide core.DigestedPeptide, maxMods int, dynamic core.DynamicModSet, static core.StaticModSet, ceiling int) *Plan {
	if maxMods < 0 {
		maxMods = 0
	}
	base := ApplyStaticMods(peptide, static)
	sites := EligibleSites(base.SequenceWithTermini(), dynamic, 0, len(base.Sequence)+1)

	p := &Plan{
		base:    base,
		sites:   sites,
		maxMods: maxMods,
	}
	count, ok := variantCount(len(sites), 0, maxMods, ceiling)
	p.count = count
	p.skip = !ok
	return p
}

// ApplyStaticMods returns a copy of peptide with every static modification
// applied to each matching residue and terminus.
func ApplyStaticMods(peptide core.DigestedPeptide, static core.StaticModSet) core.DigestedPeptide {
	base := peptide.Clone()
	for _, mod := range static {
		switch mod.Residue {
		case core.NTerminusSymbol:
			base.Mods.Add(core.NTerminus, mod.Modification())
		case core.CTerminusSymbol:
			base.Mods.Add(core.CTerminus, mod.Modification())
		default:
			for i := 0; i < len(base.Sequence); i++ {
				if base.Sequence[i] == mod.Residue {
					base.Mods.Add(i, mod.Modification())
				}
			}
		}
	}
	return base
}

// TestSite reports whether mod may be placed at position pos of the
// terminus-decorated sequence seq. The residue must be the modification's
// unmodified residue and every adjacency filter must accept its neighbour;
// a filter that runs off either end of the sequence rejects the site.
func TestSite(seq string, pos int, mod core.DynamicMod) bool {
	if pos < 0 || pos >= len(seq) || seq[pos] != mod.Unmod {
		return false
	}
	for j := len(mod.NTerminalFilters) - 1; j >= 0; j-- {
		at := pos - (len(mod.NTerminalFilters) - j)
		if at < 0 || !mod.NTerminalFilters[j].Test(seq[at]) {
			return false
		}
	}
	for j, f := range mod.CTerminalFilters {
		at := pos + j + 1
		if at >= len(seq) || !f.Test(seq[at]) {
			return false
		}
	}
	return true
}

// EligibleSites collects the sites of seq within [start, end] (inclusive
// indices of the terminus-decorated sequence) where a dynamic modification
// may be placed, ordered by position and then by modification order.
func EligibleSites(seq string, dynamic core.DynamicModSet, start, end int) []Site {
	if start < 0 {
		start = 0
	}
	if end > len(seq)-1 {
		end = len(seq) - 1
	}
	var sites []Site
	for pos := start; pos <= end; pos++ {
		for _, mod := range dynamic {
			if TestSite(seq, pos, mod) {
				sites = append(sites, Site{Position: pos, Mod: mod})
			}
		}
	}
	return sites
}

// variantCount returns sum(C(m, k)) for k in [kmin, min(kmax, m)], computed
// in log space, and whether it stays within ceiling.
func variantCount(m, kmin, kmax, ceiling int) (int, bool) {
	if kmax > m {
		kmax = m
	}
	total := 0.0
	for k := kmin; k <= kmax; k++ {
		total += math.Exp(combin.LogGeneralizedBinomial(float64(m), float64(k)))
	}
	total = math.Round(total)
	if ceiling > 0 && total > float64(ceiling) {
		return 0, false
	}
	if total > math.MaxInt32 {
		return math.MaxInt32, true
	}
	return int(total), true
}

// Static returns a copy of the peptide carrying only its static modifications.
func (p *Plan) Static() core.DigestedPeptide {
	return p.base.Clone()
}

// Sites returns the eligible dynamic modification sites.
func (p *Plan) Sites() []Site {
	return p.sites
}

// Count returns the worst case number of variants, the static form included.
func (p *Plan) Count() int {
	return p.count
}

// Skipped reports whether the variant count exceeded the ceiling.
func (p *Plan) Skipped() bool {
	return p.skip
}

// Iter returns an iterator over the static form followed by every variant
// carrying dynamic modifications.
func (p *Plan) Iter() *Iterator {
	return newIterator(p.base, p.sites, 1, p.maxMods, p.skip, true)
}

// ModifiedIter returns an iterator over the variants carrying at least one
// dynamic modification.
func (p *Plan) ModifiedIter() *Iterator {
	return newIterator(p.base, p.sites, 1, p.maxMods, p.skip, false)
}

// Variants materializes the variants. With withStatic set the static form
// comes first; it is returned even when the plan was skipped.
func (p *Plan) Variants(withStatic bool) []core.DigestedPeptide {
	var variants []core.DigestedPeptide
	if withStatic {
		variants = append(variants, p.Static())
	}
	if p.skip {
		return variants
	}
	it := p.ModifiedIter()
	for it.Next() {
		variants = append(variants, it.Peptide())
	}
	return variants
}

// Iterator yields peptide variants one at a time.
type Iterator struct {
	base       core.DigestedPeptide
	sites      []Site
	enum       *subset.Enumerator
	withStatic bool
	started    bool
	done       bool
	index      int
	current    core.DigestedPeptide
}

func newIterator(base core.DigestedPeptide, sites []Site, minMods, maxMods int, skip, withStatic bool) *Iterator {
	it := &Iterator{
		base:       base,
		sites:      sites,
		withStatic: withStatic,
		done:       skip,
		index:      -1,
	}
	if maxMods > len(sites) {
		maxMods = len(sites)
	}
	if !skip && len(sites) > 0 && maxMods >= minMods && maxMods > 0 {
		groups := make([]int, len(sites))
		for i, s := range sites {
			groups[i] = s.Position
		}
		it.enum = subset.New(len(sites), minMods, maxMods, groups)
	}
	return it
}

// Next advances to the next variant and reports whether there is one.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	if it.withStatic {
		it.withStatic = false
		it.current = it.base.Clone()
		it.index++
		return true
	}
	if it.enum == nil {
		it.done = true
		return false
	}
	for {
		if it.started {
			if it.enum.Next() == 0 {
				it.done = true
				return false
			}
		}
		it.started = true
		if it.enum.Fit() {
			break
		}
	}
	it.current = it.base.Clone()
	for _, i := range it.enum.Subset() {
		site := it.sites[i-1]
		it.current.Mods.Add(it.current.ModPosition(site.Position), site.Mod.Modification())
	}
	it.index++
	return true
}

// Peptide returns the current variant. The caller owns the returned value.
func (it *Iterator) Peptide() core.DigestedPeptide {
	return it.current
}

// Index returns the 0-based index of the current variant.
func (it *Iterator) Index() int {
	return it.index
}

// MakePeptideVariants places between minMods and maxMods of the given
// modifications on peptide, restricted to positions [locStart, locEnd] of the
// terminus-decorated sequence. Existing modifications are kept. When minMods
// is zero the unmodified peptide comes first. Nothing is returned if the
// number of placements exceeds ceiling.
func MakePeptideVariants(peptide core.DigestedPeptide, minMods, maxMods int, mods core.DynamicModSet, locStart, locEnd, ceiling int) []core.DigestedPeptide {
	if minMods < 0 {
		minMods = 0
	}
	if maxMods < minMods {
		return nil
	}
	sites := EligibleSites(peptide.SequenceWithTermini(), mods, locStart, locEnd)
	if _, ok := variantCount(len(sites), minMods, maxMods, ceiling); !ok {
		return nil
	}

	var variants []core.DigestedPeptide
	if minMods == 0 {
		variants = append(variants, peptide.Clone())
		minMods = 1
	}
	if len(sites) < minMods {
		return variants
	}
	it := newIterator(peptide, sites, minMods, maxMods, false, false)
	for it.Next() {
		variants = append(variants, it.Peptide())
	}
	return variants
}
