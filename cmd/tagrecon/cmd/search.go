package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/tagrecon/pkg/config"
	"github.com/ChrisMcGann/tagrecon/pkg/core"
	"github.com/ChrisMcGann/tagrecon/pkg/deltamass"
	"github.com/ChrisMcGann/tagrecon/pkg/digest"
	"github.com/ChrisMcGann/tagrecon/pkg/filter"
	"github.com/ChrisMcGann/tagrecon/pkg/reader/blosum"
	"github.com/ChrisMcGann/tagrecon/pkg/reader/fasta"
	"github.com/ChrisMcGann/tagrecon/pkg/reader/msp"
	"github.com/ChrisMcGann/tagrecon/pkg/reader/unimod"
	"github.com/ChrisMcGann/tagrecon/pkg/search"
	"github.com/ChrisMcGann/tagrecon/pkg/writer/sqlite"
)

var (
	// Flags for search command
	fastaFile  string
	outputFile string
)

var searchCmd = &cobra.Command{
	Use:   "search [flags] spectra.msp...",
	Short: "Search tagged spectra against a protein database",
	Long: `Search query spectra with extracted sequence tags against the peptides of a
FASTA protein database and write ranked results to a SQLite database.

Examples:
  # Blind search for unknown modifications
  tagrecon search --fasta human.fasta --out results.db run01.msp

  # Search for amino acid substitutions scored by BLOSUM62
  tagrecon search --fasta human.fasta --out results.db --mode mutations run01.msp

  # Explain mass shifts with phosphorylation and oxidation only
  tagrecon search --fasta human.fasta --out results.db --mode preferreddeltamasses \
      --preferred-mods "[STY] 79.966 M 15.995" run01.msp`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&fastaFile, "fasta", "d", "", "Protein database in FASTA format (required)")
	searchCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output database file (required)")
	addSearchFlags(searchCmd.Flags())

	searchCmd.MarkFlagRequired("fasta")
	searchCmd.MarkFlagRequired("out")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	proteins, err := fasta.ReadAll(fastaFile, cfg.DecoyPrefix)
	if err != nil {
		return err
	}
	if len(proteins) == 0 {
		return fmt.Errorf("no proteins in %s", fastaFile)
	}
	decoys := 0
	for _, p := range proteins {
		if p.Decoy {
			decoys++
		}
	}
	fmt.Printf("Read %d proteins (%d decoys) from %s\n", len(proteins), decoys, fastaFile)

	filterConfig := &filter.Config{
		TopN:            cfg.MaxPeakCount,
		IntensityCutoff: cfg.IntensityCutoff,
		MaxTagCount:     cfg.MaxTagCount,
	}
	var spectra []*core.Spectrum
	skipped := 0
	for _, path := range args {
		read, bad, err := readSpectra(path, filterConfig)
		if err != nil {
			return err
		}
		fmt.Printf("Read %d spectra from %s\n", len(read), path)
		spectra = append(spectra, read...)
		skipped += bad
	}
	if len(spectra) == 0 {
		return fmt.Errorf("no valid spectra to search")
	}

	table, err := buildTable(cfg)
	if err != nil {
		return err
	}

	digester, err := digest.New(digest.Config{
		Rule:               cfg.CleavageRules,
		MinLength:          cfg.MinPeptideLength,
		MaxLength:          cfg.MaxPeptideLength,
		MaxMissedCleavages: cfg.NumMaxMissedCleavages,
		MinTermini:         cfg.NumMinTerminiCleavages,
		MinMass:            cfg.MinPeptideMass,
		MaxMass:            cfg.MaxPeptideMass,
		Model:              cfg.MassModel(),
	})
	if err != nil {
		return fmt.Errorf("invalid digestion settings: %w", err)
	}

	// Create SQLite writer before the search so an unwritable path fails fast
	writer, err := sqlite.NewWriter(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	engine := search.NewEngine(cfg, proteins, spectra, search.Options{
		Table:    table,
		Progress: os.Stdout,
	})
	fmt.Printf("Indexed %d tags from %d spectra\n", engine.Index().Len(), len(spectra))
	fmt.Printf("Mode: %s\n", cfg.Mode())
	if len(cfg.Dynamic()) > 0 {
		fmt.Printf("Dynamic modifications: %s\n", cfg.Dynamic())
	}
	if len(cfg.Static()) > 0 {
		fmt.Printf("Static modifications: %s\n", cfg.Static())
	}

	stats := engine.Run(digester)

	if err := writer.WriteProteins(proteins); err != nil {
		return err
	}
	identified := 0
	for _, spec := range engine.Spectra() {
		if len(spec.Results()) > 0 {
			identified++
		}
		if err := writer.WriteSpectrum(spec); err != nil {
			return fmt.Errorf("failed to write spectrum %s: %w", spec.Name(), err)
		}
	}

	description := fmt.Sprintf("tagrecon search of %s against %s (%s)", strings.Join(args, ", "), fastaFile, cfg.Mode())
	if err := writer.Finalize(&stats, description); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}

	fmt.Printf("\nSearch complete!\n")
	fmt.Printf("Proteins: %d with %d workers in %s\n", stats.Proteins, stats.Workers, stats.Elapsed.Round(time.Millisecond))
	fmt.Printf("Peptides: %d (%d variants, %d comparisons)\n", stats.Peptides, stats.Variants, stats.Comparisons)
	if stats.SkippedPlans > 0 {
		fmt.Printf("Searched unmodified: %d peptides over the variant limit\n", stats.SkippedPlans)
	}
	fmt.Printf("Spectra with results: %d of %d\n", identified, len(spectra))
	if skipped > 0 {
		fmt.Printf("Skipped: %d spectra (validation errors)\n", skipped)
	}
	fmt.Printf("Output: %s\n", outputFile)

	return nil
}

// readSpectra reads, filters and validates the spectra of one MSP file. It
// returns the valid spectra and the number skipped.
func readSpectra(path string, filterConfig *filter.Config) ([]*core.Spectrum, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open spectra file: %w", err)
	}
	defer f.Close()

	source := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	reader := msp.NewReader(f, source)

	var spectra []*core.Spectrum
	skipped := 0
	for reader.Next() {
		spec := reader.Spectrum()
		spec.SourceFile = path
		filterConfig.Apply(spec)

		if err := spec.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: invalid spectrum %s: %v\n", spec.Name(), err)
			skipped++
			continue
		}
		if len(spec.Tags) == 0 {
			fmt.Fprintf(os.Stderr, "Warning: spectrum %s has no tags\n", spec.Name())
		}
		spectra = append(spectra, spec)
	}
	if err := reader.Err(); err != nil {
		return nil, 0, fmt.Errorf("error reading %s: %w", path, err)
	}
	return spectra, skipped, nil
}

// buildTable loads the known modifications and the substitution matrix.
func buildTable(cfg *config.RunConfig) (*deltamass.Table, error) {
	mods, err := unimod.Load(cfg.UnimodXML)
	if err != nil {
		return nil, err
	}
	matrix, err := blosum.Load(cfg.Blosum)
	if err != nil {
		return nil, err
	}
	return deltamass.NewTable(unimod.KnownMods(mods, false), matrix, cfg.Static(), deltamass.Options{
		Model:           cfg.MassModel(),
		BlosumThreshold: cfg.BlosumThreshold,
	}), nil
}
