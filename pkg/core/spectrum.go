// Package core provides the intermediate representation (IR) models and validation logic
// for query spectra, peptides and search results used by TagRecon.
package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// SpectrumID identifies a query spectrum.
type SpectrumID struct {
	Source   string // source file or run name
	Index    int    // index of the spectrum within its source
	NativeID string
	Charge   int
}

func (id SpectrumID) String() string {
	if id.NativeID != "" {
		return fmt.Sprintf("%s.%s.%d", id.Source, id.NativeID, id.Charge)
	}
	return fmt.Sprintf("%s.%d.%d", id.Source, id.Index, id.Charge)
}

// Peak represents a single m/z, intensity pair with optional metadata.
type Peak struct {
	MZ         float64
	Intensity  float64
	Annotation string // Ion annotation (e.g., "y3", "b2^2")
	Charge     int    // Fragment charge (if available)
}

// TagInfo is a short sequence tag with the masses flanking it. Spectrum tags
// carry the charge state of the fragment ions they were read from; peptide
// tags carry the index of the tag within the terminus-decorated sequence.
type TagInfo struct {
	Tag           string
	NTerminusMass float64
	CTerminusMass float64
	Start         int
	Charge        int
	Score         float64
}

// Spectrum represents a single query spectrum with its extracted tags and the
// results scored against it. Results and comparison counters are guarded by
// an internal mutex so workers may score concurrently.
type Spectrum struct {
	// Required fields
	ID          SpectrumID
	PrecursorMZ float64 // Precursor m/z
	NeutralMass float64 // Observed neutral precursor mass
	Peaks       []Peak  // Fragment peaks
	Tags        []TagInfo

	// Optional metadata
	RetentionTime *float64
	Title         string

	// Internal tracking
	SourceFile   string
	SourceFormat string

	mu                   sync.Mutex
	results              *ResultSet
	numTargetComparisons int64
	numDecoyComparisons  int64
}

// ValidationError represents an error found during validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that a spectrum meets all requirements for searching.
func (s *Spectrum) Validate() error {
	var errs []string

	// Required fields
	if s.ID.Charge <= 0 {
		errs = append(errs, "charge must be positive")
	}
	if s.NeutralMass <= 0 {
		errs = append(errs, "precursor mass must be positive")
	}
	if len(s.Peaks) == 0 {
		errs = append(errs, "at least one peak is required")
	}

	// Validate peaks
	for i, peak := range s.Peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
		if peak.MZ <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d m/z must be positive", i))
		}
		if peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d intensity must be non-negative", i))
		}
	}

	// Check if peaks are sorted
	if !s.ArePeaksSorted() {
		errs = append(errs, "peaks must be sorted by m/z")
	}

	for i, tag := range s.Tags {
		if tag.Tag == "" {
			errs = append(errs, fmt.Sprintf("tag %d is empty", i))
		}
		if tag.Charge <= 0 {
			errs = append(errs, fmt.Sprintf("tag %d charge must be positive", i))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Spectrum",
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// ArePeaksSorted checks if peaks are sorted by m/z in ascending order.
func (s *Spectrum) ArePeaksSorted() bool {
	for i := 1; i < len(s.Peaks); i++ {
		if s.Peaks[i].MZ < s.Peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// SortPeaks sorts peaks by m/z in ascending order.
func (s *Spectrum) SortPeaks() {
	sort.Slice(s.Peaks, func(i, j int) bool {
		return s.Peaks[i].MZ < s.Peaks[j].MZ
	})
}

// Name returns the spectrum name in format "Source.Index.Charge"
func (s *Spectrum) Name() string {
	return s.ID.String()
}

// InitResults resets the result set to hold at most maxResults entries.
func (s *Spectrum) InitResults(maxResults int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = NewResultSet(maxResults)
	s.numTargetComparisons = 0
	s.numDecoyComparisons = 0
}

// CountComparison records that a target or decoy peptide was scored
// against the spectrum, whether or not its result is kept.
func (s *Spectrum) CountComparison(decoy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if decoy {
		s.numDecoyComparisons++
	} else {
		s.numTargetComparisons++
	}
}

// AddResult offers the result to the result set.
func (s *Spectrum) AddResult(result SearchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		s.results = NewResultSet(DefaultMaxResults)
	}
	s.results.Add(result)
}

// Results returns a ranked copy of the retained results.
func (s *Spectrum) Results() []SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		return nil
	}
	return s.results.Ranked()
}

// Comparisons returns the number of target and decoy comparisons made.
func (s *Spectrum) Comparisons() (target, decoy int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numTargetComparisons, s.numDecoyComparisons
}
