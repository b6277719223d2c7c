package sqlite

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TopResult is the best ranked result of one spectrum.
type TopResult struct {
	Spectrum       string
	Charge         int
	Interpretation string
	Score          float64
	ModMass        float64
	Decoy          bool
	Annotations    []string
	Peaks          []float64 // spectrum m/z values
}

// Summary describes a results database.
type Summary struct {
	Version     int
	Created     string
	Description string
	Proteins    int
	Spectra     int
	Identified  int // spectra with at least one result
	Targets     int // identified spectra whose top result is a target
	Decoys      int
	Modified    int // top results carrying a modification mass
	Annotations map[string]int
	Stats       *StoredStats
	Top         []TopResult
}

// StoredStats are the search statistics recorded by Finalize.
type StoredStats struct {
	Proteins     int
	Peptides     int64
	Variants     int64
	SkippedPlans int64
	Comparisons  int64
	Workers      int
	Elapsed      time.Duration
}

// SortedAnnotations returns the annotation names by descending count.
func (s *Summary) SortedAnnotations() []string {
	names := make([]string, 0, len(s.Annotations))
	for name := range s.Annotations {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.Annotations[names[i]] != s.Annotations[names[j]] {
			return s.Annotations[names[i]] > s.Annotations[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// ReadSummary opens a results database written by Writer and summarizes
// the top ranked result of every spectrum.
func ReadSummary(path string) (*Summary, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	s := &Summary{Annotations: make(map[string]int)}

	err = db.QueryRow(`SELECT version, CreationDate, Description FROM HeaderTable LIMIT 1`).
		Scan(&s.Version, &s.Created, &s.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if err := db.QueryRow(`SELECT COUNT(*) FROM ProteinTable`).Scan(&s.Proteins); err != nil {
		return nil, fmt.Errorf("failed to count proteins: %w", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM SpectrumTable`).Scan(&s.Spectra); err != nil {
		return nil, fmt.Errorf("failed to count spectra: %w", err)
	}

	var stats StoredStats
	var elapsed float64
	err = db.QueryRow(`
		SELECT Proteins, Peptides, Variants, SkippedPlans, Comparisons, Workers, ElapsedSeconds
		FROM SearchStatsTable LIMIT 1
	`).Scan(&stats.Proteins, &stats.Peptides, &stats.Variants, &stats.SkippedPlans, &stats.Comparisons, &stats.Workers, &elapsed)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("failed to read search statistics: %w", err)
	default:
		stats.Elapsed = time.Duration(elapsed * float64(time.Second))
		s.Stats = &stats
	}

	rows, err := db.Query(`
		SELECT sp.Source, sp.SpectrumIndex, sp.NativeId, sp.Charge, sp.blobMass,
		       r.Interpretation, r.Score, r.ModMass, r.Decoy, r.Annotations
		FROM ResultTable r
		JOIN SpectrumTable sp ON sp.SpectrumId = r.SpectrumId
		WHERE r.Rank = 1
		ORDER BY sp.SpectrumId
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			source, nativeID, annotations string
			index                         int
			blob                          []byte
			top                           TopResult
		)
		err := rows.Scan(&source, &index, &nativeID, &top.Charge, &blob,
			&top.Interpretation, &top.Score, &top.ModMass, &top.Decoy, &annotations)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if nativeID != "" {
			top.Spectrum = fmt.Sprintf("%s.%s.%d", source, nativeID, top.Charge)
		} else {
			top.Spectrum = fmt.Sprintf("%s.%d.%d", source, index, top.Charge)
		}
		top.Peaks = decodePeaksFloat64(blob)
		if annotations != "" {
			top.Annotations = strings.Split(annotations, ";")
		}

		s.Identified++
		if top.Decoy {
			s.Decoys++
		} else {
			s.Targets++
		}
		if top.ModMass != 0 {
			s.Modified++
		}
		for _, a := range top.Annotations {
			s.Annotations[a]++
		}
		s.Top = append(s.Top, top)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	return s, nil
}
