// Package cmd provides CLI command implementations
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ChrisMcGann/tagrecon/pkg/config"
	"github.com/ChrisMcGann/tagrecon/pkg/core"
)

var (
	// Shared by every command
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "tagrecon",
	Short: "TagRecon - tag-based peptide identification",
	Long: `TagRecon matches peptides from a protein database to tandem mass spectra
through short sequence tags and reconciles the unexplained precursor mass
with amino acid substitutions, preferred modifications or unknown
modifications placed on the most likely residue.

Options may be given on the command line or in a configuration file
(--config) whose keys are the option names, e.g. PrecursorMassTolerance.`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (YAML, TOML, JSON or INI)")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(variantsCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(summarizeCmd)
}

// configFlag maps a command line flag to the configuration key it sets.
type configFlag struct {
	name  string
	key   string
	usage string
}

var (
	toleranceFlags = []configFlag{
		{"precursor-tolerance", "PrecursorMassTolerance", "Precursor mass tolerance per charge state in Da"},
		{"n-tolerance", "NTerminalMassTolerance", "N-terminal tag flank tolerance per tag charge in Da"},
		{"c-tolerance", "CTerminalMassTolerance", "C-terminal tag flank tolerance per tag charge in Da"},
	}
	modFlags = []configFlag{
		{"dynamic-mods", "DynamicMods", `Dynamic modifications as "motif char mass" triples`},
		{"static-mods", "StaticMods", `Static modifications as "residue mass" pairs`},
		{"preferred-mods", "PreferredDeltaMasses", `Preferred mass shifts as "motif mass" pairs`},
		{"modifications-csv", "ModificationsCSV", "CSV of named modification masses"},
	}
)

// addModFlags registers the modification and variant options.
func addModFlags(fs *pflag.FlagSet) {
	for _, f := range modFlags {
		fs.String(f.name, "", f.usage)
	}
	fs.Int("max-dynamic-mods", 2, "Maximum dynamic modifications per peptide")
	fs.Int("max-variants", 1000000, "Peptides with more variants are searched unmodified (0 = no limit)")
	fs.Bool("avg-mass", false, "Use average instead of monoisotopic masses")
}

// addSearchFlags registers every search option.
func addSearchFlags(fs *pflag.FlagSet) {
	addModFlags(fs)
	fs.StringSlice("precursor-tolerance", []string{"1.5", "2.5", "3.5"}, toleranceFlags[0].usage)
	fs.StringSlice("n-tolerance", []string{"0.75", "1.0", "1.25"}, toleranceFlags[1].usage)
	fs.StringSlice("c-tolerance", []string{"0.5", "0.75", "1.0"}, toleranceFlags[2].usage)
	fs.String("mode", "blindptms", "Unknown mass shift search mode: off, blindptms, mutations or preferreddeltamasses")
	fs.Float64("max-mod-plus", 300, "Largest positive mass shift considered")
	fs.Float64("max-mod-minus", 150, "Largest negative mass shift considered")
	fs.Float64("min-mod", 0, "Smallest unknown modification mass placed")
	fs.Int("blosum-threshold", 0, "Minimum substitution score")
	fs.String("blosum", "", "Substitution matrix file (default: embedded BLOSUM62)")
	fs.String("unimod", "", "Unimod XML file (default: embedded common modifications)")
	fs.Int("max-ambiguous", 2, "Maximum equally scored placements kept for an unknown modification")
	fs.Int("max-preferred", 1, "Maximum preferred modifications combined into one mass shift")
	fs.Bool("mass-recon", false, "Compare peptides to every spectrum within the mass shift bounds")
	fs.Int("tag-length", 3, "Sequence tag length")
	fs.Int("max-results", core.DefaultMaxResults, "Results kept per spectrum")
	fs.Float64("fragment-tolerance", 0.5, "Fragment m/z tolerance")
	fs.String("decoy-prefix", "rev_", "Protein name prefix marking decoys")
	fs.Int("workers", 0, "Number of search workers (0 = all CPUs)")
	fs.Float64("status-interval", 5, "Seconds between progress lines (0 = none)")
	fs.String("cleavage-rules", "trypsin/p", `Protease name or custom "after|notbefore" rule`)
	fs.Int("min-length", 5, "Minimum peptide length")
	fs.Int("max-length", 40, "Maximum peptide length")
	fs.Int("missed-cleavages", 2, "Maximum missed cleavages")
	fs.Int("min-termini", 2, "Termini that must be cleavage sites (0-2)")
	fs.Float64("min-mass", 0, "Minimum peptide mass")
	fs.Float64("max-mass", 10000, "Maximum peptide mass")
	fs.Int("top-n", 100, "Keep only the N most intense peaks (0 = no limit)")
	fs.Float64("cutoff", 0, "Intensity cutoff as % of base peak (0 = no cutoff)")
	fs.Int("max-tags", 0, "Keep only the N best scoring tags per spectrum (0 = no limit)")
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"max-dynamic-mods":   "MaxDynamicMods",
	"max-variants":       "MaxNumPeptideVariants",
	"avg-mass":           "UseAvgMassOfSequences",
	"mode":               "UnknownMassShiftSearchMode",
	"max-mod-plus":       "MaxModificationMassPlus",
	"max-mod-minus":      "MaxModificationMassMinus",
	"min-mod":            "MinModificationMass",
	"blosum-threshold":   "BlosumThreshold",
	"blosum":             "Blosum",
	"unimod":             "UnimodXML",
	"max-ambiguous":      "MaxAmbResultsForBlindMods",
	"max-preferred":      "MaxNumPreferredDeltaMasses",
	"mass-recon":         "MassReconMode",
	"tag-length":         "TagLength",
	"max-results":        "MaxResults",
	"fragment-tolerance": "FragmentMzTolerance",
	"decoy-prefix":       "DecoyPrefix",
	"workers":            "NumWorkers",
	"status-interval":    "StatusUpdateFrequency",
	"cleavage-rules":     "CleavageRules",
	"min-length":         "MinPeptideLength",
	"max-length":         "MaxPeptideLength",
	"missed-cleavages":   "NumMaxMissedCleavages",
	"min-termini":        "NumMinTerminiCleavages",
	"min-mass":           "MinPeptideMass",
	"max-mass":           "MaxPeptideMass",
	"top-n":              "MaxPeakCount",
	"cutoff":             "IntensityCutoff",
	"max-tags":           "MaxTagCount",
}

func init() {
	for _, f := range append(toleranceFlags, modFlags...) {
		flagKeys[f.name] = f.key
	}
}

// loadConfig builds the run configuration from defaults, the --config file
// and the flags of fs that were set explicitly.
func loadConfig(fs *pflag.FlagSet) (*config.RunConfig, error) {
	v := viper.New()
	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("failed to bind flag --%s: %w", f.Name, err)
		}
	})
	if bindErr != nil {
		return nil, bindErr
	}

	if configFile != "" {
		return config.LoadFile(v, configFile)
	}
	return config.Load(v)
}

// parsePeptide reads a plain peptide sequence from the command line.
func parsePeptide(arg string) (core.DigestedPeptide, error) {
	seq := strings.ToUpper(strings.TrimSpace(arg))
	if seq == "" {
		return core.DigestedPeptide{}, fmt.Errorf("empty peptide sequence")
	}
	for i := 0; i < len(seq); i++ {
		if _, ok := core.ResidueMass(seq[i], core.Monoisotopic); !ok {
			return core.DigestedPeptide{}, fmt.Errorf("peptide %s: unknown residue %q at position %d", seq, seq[i], i+1)
		}
	}
	return core.NewDigestedPeptide(seq), nil
}
