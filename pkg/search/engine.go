// Package search matches candidate peptides to query spectra through their
// sequence tags and reconciles the residual precursor mass with known or
// unknown modifications.
package search

import (
	"io"
	"math"
	"sort"

	"github.com/ChrisMcGann/tagrecon/pkg/config"
	"github.com/ChrisMcGann/tagrecon/pkg/core"
	"github.com/ChrisMcGann/tagrecon/pkg/deltamass"
	"github.com/ChrisMcGann/tagrecon/pkg/ptm"
	"github.com/ChrisMcGann/tagrecon/pkg/score"
	"github.com/ChrisMcGann/tagrecon/pkg/tagindex"
)

// ParentMassErrorFallback is the largest residual precursor mass for which
// the unmodified candidate is scored regardless of tag evidence when blind
// or mutation searches are enabled.
const ParentMassErrorFallback = 5.0

// TerminalErrorResidues is how many residues CheckForTerminalErrors grows or
// trims a peptide terminus by.
const TerminalErrorResidues = 3

// UnknownModName names modifications placed by the blind search.
const UnknownModName = "unknown"

// IonPredictor computes the fragment ion m/z values of a peptide.
type IonPredictor interface {
	Predict(peptide core.DigestedPeptide, maxCharge int) []float64
}

// Scorer scores predicted fragment ions against a spectrum, returning the
// score and the number of matched ions. Implementations must be safe for
// concurrent use.
type Scorer interface {
	Score(s *core.Spectrum, ions []float64) (float64, int)
}

// Terminus selects a peptide terminus.
type Terminus int

const (
	NTerminus Terminus = iota
	CTerminus
)

func (t Terminus) String() string {
	if t == CTerminus {
		return "C-terminus"
	}
	return "N-terminus"
}

// Options supplies the collaborators of an Engine. Nil fields get defaults
// derived from the run configuration.
type Options struct {
	Table     *deltamass.Table
	Preferred *deltamass.PreferredShifts
	Predictor IonPredictor
	Scorer    Scorer
	Progress  io.Writer // worker status lines; nil discards them
}

// Engine scores candidate peptides against a fixed set of spectra. The tag
// index and spectrum tag lists are built once by NewEngine and only read
// afterwards; results are recorded on the spectra.
type Engine struct {
	cfg        *config.RunConfig
	model      core.MassModel
	proteins   []core.Protein
	spectra    []*core.Spectrum
	byMass     []int // spectrum indices ordered by neutral mass
	index      *tagindex.Index
	table      *deltamass.Table
	preferred  *deltamass.PreferredShifts
	predictor  IonPredictor
	scorer     Scorer
	progress   io.Writer
	maxPrecTol float64
}

// NewEngine indexes the spectrum tags and resets every spectrum's results.
func NewEngine(cfg *config.RunConfig, proteins []core.Protein, spectra []*core.Spectrum, opts Options) *Engine {
	model := cfg.MassModel()
	e := &Engine{
		cfg:       cfg,
		model:     model,
		proteins:  proteins,
		spectra:   spectra,
		index:     tagindex.Build(spectra, cfg.MaxTagDeviation()),
		table:     opts.Table,
		preferred: opts.Preferred,
		predictor: opts.Predictor,
		scorer:    opts.Scorer,
		progress:  opts.Progress,
	}
	if e.table == nil {
		e.table = deltamass.NewTable(nil, nil, cfg.Static(), deltamass.Options{Model: model, BlosumThreshold: cfg.BlosumThreshold})
	}
	if e.preferred == nil {
		e.preferred = deltamass.NewPreferredShifts(cfg.Preferred(), cfg.MaxNumPreferredDeltaMasses, model)
	}
	if e.predictor == nil {
		e.predictor = score.NewPredictor(model)
	}
	if e.scorer == nil {
		e.scorer = score.Hypergeometric{Tolerance: cfg.FragmentMzTolerance}
	}
	if e.progress == nil {
		e.progress = io.Discard
	}

	for _, tol := range cfg.PrecursorMassTolerance {
		e.maxPrecTol = math.Max(e.maxPrecTol, tol)
	}
	e.byMass = make([]int, len(spectra))
	for i, s := range spectra {
		s.InitResults(cfg.MaxResults)
		e.byMass[i] = i
	}
	sort.SliceStable(e.byMass, func(i, j int) bool {
		return spectra[e.byMass[i]].NeutralMass < spectra[e.byMass[j]].NeutralMass
	})
	return e
}

// Index returns the spectrum tag index.
func (e *Engine) Index() *tagindex.Index {
	return e.index
}

// Spectra returns the searched spectra.
func (e *Engine) Spectra() []*core.Spectrum {
	return e.spectra
}

// span is an inclusive range of terminus-decorated sequence indices.
type span struct {
	start, end int
}

type matchKey struct {
	spectrum int
	residual float64
	nMatch   bool
	cMatch   bool
}

// tagMatch accumulates the evidence of every candidate tag that matched a
// spectrum with the same terminal classification.
type tagMatch struct {
	key       matchKey
	terminus  Terminus // mismatched terminus when exactly one side differs
	loc       span
	tolerance float64 // violated terminal tolerance
}

type resultKey struct {
	spectrum int
	peptide  string
}

// query holds the state of one candidate peptide while it is compared to the
// spectra. It is owned by a single goroutine.
type query struct {
	e           *Engine
	candidate   core.DigestedPeptide
	protein     int
	decoy       bool
	mass        float64
	modMass     float64 // mass of the modifications already on candidate
	scoredUnmod map[int]bool
	scored      map[resultKey]bool
	comparisons int64
}

func (e *Engine) newQuery(candidate core.DigestedPeptide, proteinIndex int) *query {
	q := &query{
		e:           e,
		candidate:   candidate,
		protein:     proteinIndex,
		mass:        candidate.NeutralMass(e.model),
		modMass:     candidate.ModMass(e.model),
		scoredUnmod: make(map[int]bool),
		scored:      make(map[resultKey]bool),
	}
	if proteinIndex >= 0 && proteinIndex < len(e.proteins) {
		q.decoy = e.proteins[proteinIndex].Decoy
	}
	return q
}

// QuerySequence compares candidate, a peptide of protein proteinIndex, to
// every spectrum sharing one of its tags and returns the number of
// comparisons scored.
func (e *Engine) QuerySequence(candidate core.DigestedPeptide, proteinIndex int) int64 {
	q := e.newQuery(candidate, proteinIndex)
	seqLen := len(candidate.Sequence) + 2

	var touched []int
	seen := make(map[int]bool)
	var order []matchKey
	matches := make(map[matchKey]*tagMatch)

	for _, tag := range GetTagsFromSequence(candidate, e.cfg.TagLength, q.mass, e.model) {
		for _, entry := range e.index.Query(tag) {
			s := e.spectra[entry.Spectrum]
			if !seen[entry.Spectrum] {
				seen[entry.Spectrum] = true
				touched = append(touched, entry.Spectrum)
			}

			nTol := e.cfg.NTerminalTolerance(entry.Tag.Charge)
			cTol := e.cfg.CTerminalTolerance(entry.Tag.Charge)
			nMatch := math.Abs(entry.Tag.NTerminusMass-tag.NTerminusMass) <= nTol
			cMatch := math.Abs(entry.Tag.CTerminusMass-tag.CTerminusMass) <= cTol
			if !nMatch && !cMatch {
				continue
			}

			key := matchKey{
				spectrum: entry.Spectrum,
				residual: s.NeutralMass - q.mass,
				nMatch:   nMatch,
				cMatch:   cMatch,
			}
			m, ok := matches[key]
			switch {
			case nMatch && cMatch:
				if !ok {
					m = &tagMatch{key: key}
				}
			case !nMatch:
				// the unexplained mass lies before the tag
				loc := span{0, tag.Start - 1}
				if !ok {
					m = &tagMatch{key: key, terminus: NTerminus, loc: loc, tolerance: nTol}
				} else {
					m.loc.end = min(m.loc.end, loc.end)
					m.tolerance = math.Max(m.tolerance, nTol)
				}
			default:
				// the unexplained mass lies after the tag
				loc := span{tag.Start + len(tag.Tag), seqLen - 1}
				if !ok {
					m = &tagMatch{key: key, terminus: CTerminus, loc: loc, tolerance: cTol}
				} else {
					m.loc.start = max(m.loc.start, loc.start)
					m.tolerance = math.Max(m.tolerance, cTol)
				}
			}
			if !ok {
				matches[key] = m
				order = append(order, key)
			}
		}
	}

	for _, key := range order {
		m := matches[key]
		s := e.spectra[key.spectrum]
		precTol := e.cfg.PrecursorTolerance(s.ID.Charge)
		modMass := key.residual

		if key.nMatch && key.cMatch {
			if math.Abs(modMass) <= precTol {
				q.scoreUnmodified(key.spectrum)
			}
			continue
		}
		if !q.plausible(modMass, precTol) {
			continue
		}

		if q.resolveKnown(key.spectrum, modMass, m.loc, m.tolerance) > 0 && e.cfg.Mode() == config.ModeMutations {
			continue
		}
		unknownLoc := m.loc
		if m.terminus == NTerminus {
			unknownLoc.start = max(unknownLoc.start, 1)
		} else {
			unknownLoc.end = min(unknownLoc.end, seqLen-2)
		}
		q.resolveUnknown(key.spectrum, modMass, unknownLoc, m.terminus)
	}

	q.fallback(touched)
	return q.comparisons
}

// QueryByMass compares candidate to every spectrum whose precursor mass lies
// within the modification mass bounds, without tag evidence.
func (e *Engine) QueryByMass(candidate core.DigestedPeptide, proteinIndex int) int64 {
	q := e.newQuery(candidate, proteinIndex)
	seqLen := len(candidate.Sequence) + 2

	low := q.mass - e.cfg.MaxModificationMassMinus - e.maxPrecTol
	high := q.mass + e.cfg.MaxModificationMassPlus + e.maxPrecTol
	first := sort.Search(len(e.byMass), func(i int) bool {
		return e.spectra[e.byMass[i]].NeutralMass >= low
	})

	var touched []int
	for i := first; i < len(e.byMass); i++ {
		idx := e.byMass[i]
		s := e.spectra[idx]
		if s.NeutralMass > high {
			break
		}
		touched = append(touched, idx)

		precTol := e.cfg.PrecursorTolerance(s.ID.Charge)
		modMass := s.NeutralMass - q.mass
		if math.Abs(modMass) <= precTol {
			q.scoreUnmodified(idx)
			continue
		}
		if !q.plausible(modMass, precTol) {
			continue
		}
		if q.resolveKnown(idx, modMass, span{0, seqLen - 1}, precTol) > 0 && e.cfg.Mode() == config.ModeMutations {
			continue
		}
		q.resolveUnknown(idx, modMass, span{1, seqLen - 2}, NTerminus, CTerminus)
	}

	q.fallback(touched)
	return q.comparisons
}

// plausible reports whether modMass may be a real modification of the
// candidate: the search mode allows it, it lies within the configured
// bounds, exceeds the isotope error and does not cancel a modification the
// candidate already carries.
func (q *query) plausible(modMass, precTol float64) bool {
	cfg := q.e.cfg
	if cfg.Mode() == config.ModeOff {
		return false
	}
	if modMass > cfg.MaxModificationMassPlus || modMass < -cfg.MaxModificationMassMinus {
		return false
	}
	if math.Abs(modMass) <= math.Max(core.NeutronMass, precTol) {
		return false
	}
	for _, pos := range q.candidate.Mods.Positions() {
		if math.Abs(q.candidate.Mods.MassAt(pos, q.e.model)+modMass) <= precTol {
			return false
		}
	}
	if q.modMass != 0 && math.Abs(q.modMass+modMass) < math.Max(core.NeutronMass, precTol) {
		return false
	}
	return true
}

// interpretation is one set of known modifications explaining a residual.
type interpretation struct {
	name string
	mods core.DynamicModSet
}

// resolveKnown explains modMass with amino acid substitutions or preferred
// mass shifts placed within loc and scores every variant whose precursor
// mass stays within tolerance. It returns the number of variants scored.
func (q *query) resolveKnown(spectrum int, modMass float64, loc span, tol float64) int {
	e := q.e
	var interps []interpretation
	switch e.cfg.Mode() {
	case config.ModeMutations:
		for _, sub := range e.table.Substitutions(modMass, tol) {
			interps = append(interps, interpretation{name: sub.Name(), mods: core.DynamicModSet{sub.Mod()}})
		}
	case config.ModePreferredDeltaMasses:
		for _, shift := range e.preferred.Matching(modMass, tol) {
			interps = append(interps, interpretation{name: shift.Name(), mods: shift.Mods})
		}
	default:
		return 0
	}

	s := e.spectra[spectrum]
	precTol := e.cfg.PrecursorTolerance(s.ID.Charge)
	scored := 0
	for _, interp := range interps {
		k := len(interp.mods)
		for _, v := range ptm.MakePeptideVariants(q.candidate, k, k, interp.mods, loc.start, loc.end, e.cfg.MaxNumPeptideVariants) {
			if math.Abs(s.NeutralMass-v.NeutralMass(e.model)) > precTol {
				continue
			}
			result := q.newResult(spectrum, v)
			result.ModMass = v.ModMass(e.model) - q.modMass
			result.Annotations = []string{interp.name}
			if q.add(spectrum, result) {
				scored++
			}
		}
	}
	return scored
}

// resolveUnknown localizes an unknown modification of mass modMass to every
// residue within loc and keeps the best scoring placements. Each listed
// terminus must pass CheckForTerminalErrors first.
func (q *query) resolveUnknown(spectrum int, modMass float64, loc span, termini ...Terminus) {
	e := q.e
	mode := e.cfg.Mode()
	if mode != config.ModeBlindPTMs && mode != config.ModeMutations {
		return
	}
	if math.Abs(modMass) < e.cfg.MinModificationMass || loc.start > loc.end {
		return
	}

	s := e.spectra[spectrum]
	precTol := e.cfg.PrecursorTolerance(s.ID.Charge)
	protein := ""
	if q.protein >= 0 && q.protein < len(e.proteins) {
		protein = e.proteins[q.protein].Sequence
	}
	for _, t := range termini {
		if !CheckForTerminalErrors(protein, q.candidate, modMass, precTol, t, e.model) {
			return
		}
	}

	seq := q.candidate.SequenceWithTermini()
	var mods core.DynamicModSet
	seenResidue := make(map[byte]bool)
	for i := loc.start; i <= loc.end && i < len(seq); i++ {
		if seenResidue[seq[i]] {
			continue
		}
		seenResidue[seq[i]] = true
		mods = append(mods, core.DynamicMod{Name: UnknownModName, Unmod: seq[i], Mass: modMass, AvgMass: modMass})
	}

	var results []core.SearchResult
	for _, v := range ptm.MakePeptideVariants(q.candidate, 1, 1, mods, loc.start, loc.end, e.cfg.MaxNumPeptideVariants) {
		result := q.newResult(spectrum, v)
		result.ModMass = v.ModMass(e.model) - q.modMass
		for _, known := range e.table.KnownModifications(modMass, unknownResidue(v)) {
			result.Annotations = append(result.Annotations, known.Name)
		}
		results = append(results, result)
	}
	if len(results) == 0 {
		return
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Better(results[j])
	})
	best := results[0].Score
	for i, result := range results {
		if i >= e.cfg.MaxAmbResultsForBlindMods || result.Score < best {
			break
		}
		q.add(spectrum, result)
	}
}

// unknownResidue returns the residue carrying the unknown modification.
func unknownResidue(v core.DigestedPeptide) byte {
	for _, pos := range v.Mods.Positions() {
		for _, mod := range v.Mods.At(pos) {
			if mod.Name != UnknownModName {
				continue
			}
			switch pos {
			case core.NTerminus:
				return core.NTerminusSymbol
			case core.CTerminus:
				return core.CTerminusSymbol
			default:
				return v.Sequence[pos]
			}
		}
	}
	return 0
}

// fallback scores the unmodified candidate against touched spectra whose
// residual is within ParentMassErrorFallback.
func (q *query) fallback(touched []int) {
	mode := q.e.cfg.Mode()
	if mode != config.ModeBlindPTMs && mode != config.ModeMutations {
		return
	}
	for _, idx := range touched {
		if math.Abs(q.e.spectra[idx].NeutralMass-q.mass) <= ParentMassErrorFallback {
			q.scoreUnmodified(idx)
		}
	}
}

// scoreUnmodified scores the candidate itself, at most once per spectrum.
func (q *query) scoreUnmodified(spectrum int) {
	if q.scoredUnmod[spectrum] {
		return
	}
	q.scoredUnmod[spectrum] = true
	q.add(spectrum, q.newResult(spectrum, q.candidate))
}

// newResult predicts and scores peptide against a spectrum and counts the
// comparison. Only the count takes the spectrum lock.
func (q *query) newResult(spectrum int, peptide core.DigestedPeptide) core.SearchResult {
	e := q.e
	s := e.spectra[spectrum]
	ions := e.predictor.Predict(peptide, max(1, s.ID.Charge-1))

	result := core.NewSearchResult(peptide)
	result.Interpretation = peptide.InterpretationFor(e.model)
	result.Score, result.MatchedIons = e.scorer.Score(s, ions)
	result.PredictedIons = len(ions)
	result.MassError = s.NeutralMass - peptide.NeutralMass(e.model)
	result.Loci = []core.ProteinLocus{{Index: q.protein, Offset: peptide.Offset}}
	result.Decoy = q.decoy
	s.CountComparison(q.decoy)
	q.comparisons++
	return result
}

// add records a result on its spectrum unless this query already recorded
// the same peptide there.
func (q *query) add(spectrum int, result core.SearchResult) bool {
	key := resultKey{spectrum: spectrum, peptide: result.Key()}
	if q.scored[key] {
		return false
	}
	q.scored[key] = true
	q.e.spectra[spectrum].AddResult(result)
	return true
}

// CheckForTerminalErrors reports whether modMass is a plausible modification
// at a peptide terminus rather than a digestion error: it returns false when
// the mass, after adding any terminal modification, matches growing the
// terminus by up to TerminalErrorResidues protein residues (positive
// masses) or trimming as many peptide residues (negative masses).
func CheckForTerminalErrors(protein string, candidate core.DigestedPeptide, modMass, tol float64, terminus Terminus, model core.MassModel) bool {
	seq := candidate.Sequence
	if terminus == NTerminus {
		modMass += candidate.Mods.MassAt(core.NTerminus, model)
	} else {
		modMass += candidate.Mods.MassAt(core.CTerminus, model)
	}

	cumulative := 0.0
	if modMass > 0 {
		for i := 1; i <= TerminalErrorResidues; i++ {
			pos := candidate.Offset - i
			if terminus == CTerminus {
				pos = candidate.Offset + len(seq) + i - 1
			}
			if pos < 0 || pos >= len(protein) {
				break
			}
			m, _ := core.ResidueMass(protein[pos], model)
			cumulative += m
			if math.Abs(modMass-cumulative) <= tol {
				return false
			}
		}
		return true
	}

	for i := 0; i < TerminalErrorResidues && i < len(seq)-1; i++ {
		pos := i
		if terminus == CTerminus {
			pos = len(seq) - 1 - i
		}
		m, _ := core.ResidueMass(seq[pos], model)
		cumulative += m
		if math.Abs(modMass+cumulative) <= tol {
			return false
		}
	}
	return true
}
