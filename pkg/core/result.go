package core

import (
	"math"
	"sort"
)

// DefaultMaxResults is the number of results a spectrum retains when no
// explicit capacity was set.
const DefaultMaxResults = 5

// ProteinLocus locates a peptide within the protein database.
type ProteinLocus struct {
	Index  int
	Offset int
}

// SearchResult is a candidate peptide scored against a spectrum.
type SearchResult struct {
	Peptide        DigestedPeptide
	Interpretation string
	Score          float64
	MatchedIons    int
	PredictedIons  int
	NTT            int
	ModMass        float64 // modification mass relative to the searched candidate
	MassError      float64 // observed minus predicted precursor mass
	Loci           []ProteinLocus
	Decoy          bool
	Annotations    []string // known modifications consistent with ModMass
}

// NewSearchResult starts a result for a peptide.
func NewSearchResult(peptide DigestedPeptide) SearchResult {
	return SearchResult{
		Peptide:        peptide,
		Interpretation: peptide.Interpretation(),
		NTT:            peptide.NTT(),
	}
}

// Key identifies the result's peptide: its sequence and the full precision
// masses and positions of its modifications.
func (r SearchResult) Key() string {
	return r.Peptide.Sequence + "|" + r.Peptide.ModString()
}

// Better reports whether r ranks ahead of other: higher score first, then
// the smaller absolute modification mass, then the interpretation string.
func (r SearchResult) Better(other SearchResult) bool {
	if r.Score != other.Score {
		return r.Score > other.Score
	}
	if a, b := math.Abs(r.ModMass), math.Abs(other.ModMass); a != b {
		return a < b
	}
	if r.Interpretation != other.Interpretation {
		return r.Interpretation < other.Interpretation
	}
	return r.Key() < other.Key()
}

// ResultSet keeps the best distinct results for one spectrum.
type ResultSet struct {
	max     int
	results []SearchResult
}

// NewResultSet creates a result set holding at most max results.
func NewResultSet(max int) *ResultSet {
	if max < 1 {
		max = 1
	}
	return &ResultSet{max: max}
}

// Add inserts a result. A result whose Key is already present merges its
// protein loci into the retained one.
func (rs *ResultSet) Add(result SearchResult) {
	if result.Interpretation == "" {
		result.Interpretation = result.Peptide.Interpretation()
	}
	key := result.Key()
	for i := range rs.results {
		existing := &rs.results[i]
		if existing.Key() != key {
			continue
		}
		loci := mergeLoci(existing.Loci, result.Loci)
		if result.Better(*existing) {
			*existing = result
		}
		existing.Loci = loci
		existing.Decoy = existing.Decoy && result.Decoy
		rs.sort()
		return
	}

	if len(rs.results) == rs.max && !result.Better(rs.results[len(rs.results)-1]) {
		return
	}
	rs.results = append(rs.results, result)
	rs.sort()
	if len(rs.results) > rs.max {
		rs.results = rs.results[:rs.max]
	}
}

// Len returns the number of retained results.
func (rs *ResultSet) Len() int {
	return len(rs.results)
}

// Ranked returns a copy of the retained results, best first.
func (rs *ResultSet) Ranked() []SearchResult {
	return append([]SearchResult(nil), rs.results...)
}

func (rs *ResultSet) sort() {
	sort.SliceStable(rs.results, func(i, j int) bool {
		return rs.results[i].Better(rs.results[j])
	})
}

func mergeLoci(a, b []ProteinLocus) []ProteinLocus {
	seen := make(map[ProteinLocus]bool, len(a)+len(b))
	merged := make([]ProteinLocus, 0, len(a)+len(b))
	for _, l := range append(append([]ProteinLocus(nil), a...), b...) {
		if seen[l] {
			continue
		}
		seen[l] = true
		merged = append(merged, l)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Index == merged[j].Index {
			return merged[i].Offset < merged[j].Offset
		}
		return merged[i].Index < merged[j].Index
	})
	return merged
}
