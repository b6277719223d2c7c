// Package sqlite provides SQLite database writing for search results
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/tagrecon/pkg/core"
	"github.com/ChrisMcGann/tagrecon/pkg/search"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// SchemaVersion is written to HeaderTable
	SchemaVersion = 1
)

// Writer handles writing spectra and their ranked results to a SQLite
// database file. Every insert runs in a single transaction committed by
// Finalize.
type Writer struct {
	db           *sql.DB
	tx           *sql.Tx
	outputPath   string
	proteinStmt  *sql.Stmt
	spectrumStmt *sql.Stmt
	resultStmt   *sql.Stmt
	locusStmt    *sql.Stmt
	spectrumID   int
	resultID     int
	closed       bool
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		spectrumID: 1,
		resultID:   1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	w.tx, err = db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := w.prepareStatements(); err != nil {
		w.tx.Rollback()
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ProteinTable (
		ProteinId INTEGER PRIMARY KEY,
		Name TEXT,
		Description TEXT,
		Decoy BOOL
	);

	CREATE TABLE IF NOT EXISTS SpectrumTable (
		SpectrumId INTEGER PRIMARY KEY,
		Source TEXT,
		SpectrumIndex INTEGER,
		NativeId TEXT,
		Title TEXT,
		Charge INTEGER,
		PrecursorMz DOUBLE,
		NeutralMass DOUBLE,
		RetentionTime DOUBLE,
		NumPeaks INTEGER,
		NumTags INTEGER,
		TargetComparisons INTEGER,
		DecoyComparisons INTEGER,
		blobMass BLOB,
		blobIntensity BLOB
	);

	CREATE TABLE IF NOT EXISTS ResultTable (
		ResultId INTEGER PRIMARY KEY,
		SpectrumId INTEGER REFERENCES SpectrumTable(SpectrumId),
		Rank INTEGER,
		Sequence TEXT,
		Interpretation TEXT,
		Mods TEXT,
		Score DOUBLE,
		MatchedIons INTEGER,
		PredictedIons INTEGER,
		NTT INTEGER,
		ModMass DOUBLE,
		MassError DOUBLE,
		Decoy BOOL,
		Annotations TEXT
	);

	CREATE TABLE IF NOT EXISTS LocusTable (
		ResultId INTEGER REFERENCES ResultTable(ResultId),
		ProteinId INTEGER REFERENCES ProteinTable(ProteinId),
		Offset INTEGER
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		Description TEXT
	);

	CREATE TABLE IF NOT EXISTS SearchStatsTable (
		Proteins INTEGER,
		Peptides INTEGER,
		Variants INTEGER,
		SkippedPlans INTEGER,
		Comparisons INTEGER,
		Workers INTEGER,
		ElapsedSeconds DOUBLE
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.proteinStmt, err = w.tx.Prepare(`
		INSERT INTO ProteinTable (ProteinId, Name, Description, Decoy)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare protein statement: %w", err)
	}

	w.spectrumStmt, err = w.tx.Prepare(`
		INSERT INTO SpectrumTable (
			SpectrumId, Source, SpectrumIndex, NativeId, Title, Charge,
			PrecursorMz, NeutralMass, RetentionTime, NumPeaks, NumTags,
			TargetComparisons, DecoyComparisons, blobMass, blobIntensity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare spectrum statement: %w", err)
	}

	w.resultStmt, err = w.tx.Prepare(`
		INSERT INTO ResultTable (
			ResultId, SpectrumId, Rank, Sequence, Interpretation, Mods,
			Score, MatchedIons, PredictedIons, NTT, ModMass, MassError,
			Decoy, Annotations
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare result statement: %w", err)
	}

	w.locusStmt, err = w.tx.Prepare(`
		INSERT INTO LocusTable (ResultId, ProteinId, Offset) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare locus statement: %w", err)
	}

	return nil
}

// WriteProteins writes the protein database. ProteinId is the protein's
// index plus one, matching the indices held by result loci.
func (w *Writer) WriteProteins(proteins []core.Protein) error {
	for i, p := range proteins {
		if _, err := w.proteinStmt.Exec(i+1, p.Name, p.Description, p.Decoy); err != nil {
			return fmt.Errorf("failed to insert protein %s: %w", p.Name, err)
		}
	}
	return nil
}

// WriteSpectrum writes a single spectrum with its ranked results
func (w *Writer) WriteSpectrum(spec *core.Spectrum) error {
	// Ensure peaks are sorted
	if !spec.ArePeaksSorted() {
		spec.SortPeaks()
	}

	// Encode peaks as binary blobs (little-endian float64)
	mzBlob := encodePeaksFloat64(spec.Peaks, true)   // m/z values
	intBlob := encodePeaksFloat64(spec.Peaks, false) // intensity values

	// Handle optional retention time
	var rt interface{} = nil
	if spec.RetentionTime != nil {
		rt = *spec.RetentionTime
	}

	target, decoy := spec.Comparisons()
	_, err := w.spectrumStmt.Exec(
		w.spectrumID,
		spec.ID.Source,
		spec.ID.Index,
		spec.ID.NativeID,
		spec.Title,
		spec.ID.Charge,
		spec.PrecursorMZ,
		spec.NeutralMass,
		rt,
		len(spec.Peaks),
		len(spec.Tags),
		target,
		decoy,
		mzBlob,
		intBlob,
	)
	if err != nil {
		return fmt.Errorf("failed to insert spectrum %s: %w", spec.Name(), err)
	}

	for rank, result := range spec.Results() {
		if err := w.writeResult(rank+1, result); err != nil {
			return fmt.Errorf("spectrum %s: %w", spec.Name(), err)
		}
	}

	w.spectrumID++
	return nil
}

func (w *Writer) writeResult(rank int, result core.SearchResult) error {
	_, err := w.resultStmt.Exec(
		w.resultID,
		w.spectrumID,
		rank,
		result.Peptide.Sequence,
		result.Interpretation,
		result.Peptide.ModString(),
		result.Score,
		result.MatchedIons,
		result.PredictedIons,
		result.NTT,
		result.ModMass,
		result.MassError,
		result.Decoy,
		strings.Join(result.Annotations, ";"),
	)
	if err != nil {
		return fmt.Errorf("failed to insert result %s: %w", result.Interpretation, err)
	}

	for _, locus := range result.Loci {
		if _, err := w.locusStmt.Exec(w.resultID, locus.Index+1, locus.Offset); err != nil {
			return fmt.Errorf("failed to insert locus: %w", err)
		}
	}

	w.resultID++
	return nil
}

// encodePeaksFloat64 encodes peak data as little-endian float64 blob
func encodePeaksFloat64(peaks []core.Peak, useMZ bool) []byte {
	buf := make([]byte, len(peaks)*8)
	for i, peak := range peaks {
		var value float64
		if useMZ {
			value = peak.MZ
		} else {
			value = peak.Intensity
		}
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(value))
	}
	return buf
}

// decodePeaksFloat64 reverses encodePeaksFloat64
func decodePeaksFloat64(blob []byte) []float64 {
	values := make([]float64, len(blob)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return values
}

// Finalize writes the header and search statistics, commits the
// transaction and closes the database. stats may be nil.
func (w *Writer) Finalize(stats *search.Stats, description string) error {
	if w.closed {
		return nil
	}
	w.closed = true

	_, err := w.tx.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, Description)
		VALUES (?, ?, ?)
	`, SchemaVersion, time.Now().Format(headerDateFormat), description)
	if err != nil {
		w.abort()
		return fmt.Errorf("failed to insert header: %w", err)
	}

	if stats != nil {
		_, err = w.tx.Exec(`
			INSERT INTO SearchStatsTable (Proteins, Peptides, Variants, SkippedPlans, Comparisons, Workers, ElapsedSeconds)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, stats.Proteins, stats.Peptides, stats.Variants, stats.SkippedPlans, stats.Comparisons, stats.Workers, stats.Elapsed.Seconds())
		if err != nil {
			w.abort()
			return fmt.Errorf("failed to insert search statistics: %w", err)
		}
	}

	w.closeStatements()
	if err := w.tx.Commit(); err != nil {
		w.db.Close()
		return fmt.Errorf("failed to commit results: %w", err)
	}

	// Close database
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close finalizes the database without search statistics
func (w *Writer) Close() error {
	return w.Finalize(nil, "")
}

func (w *Writer) closeStatements() {
	for _, stmt := range []*sql.Stmt{w.proteinStmt, w.spectrumStmt, w.resultStmt, w.locusStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
}

func (w *Writer) abort() {
	w.closeStatements()
	w.tx.Rollback()
	w.db.Close()
}
