// Package config holds the run-wide search settings that are unmarshalled
// from viper (see: cmd/tagrecon/cmd). A RunConfig is built once per run and
// passed to every component; it is never modified afterwards.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/ChrisMcGann/tagrecon/pkg/core"
)

// MassShiftMode selects how an unexplained residual mass is resolved.
type MassShiftMode int

const (
	// ModeOff scores only candidates whose flanking masses both match.
	ModeOff MassShiftMode = iota
	// ModeBlindPTMs localizes the residual as an unknown modification.
	ModeBlindPTMs
	// ModeMutations explains the residual with amino acid substitutions and
	// falls back to blind localization.
	ModeMutations
	// ModePreferredDeltaMasses explains the residual with combinations of
	// preferred modifications.
	ModePreferredDeltaMasses
)

var modeNames = map[string]MassShiftMode{
	"off":                  ModeOff,
	"blindptms":            ModeBlindPTMs,
	"mutations":            ModeMutations,
	"preferreddeltamasses": ModePreferredDeltaMasses,
}

func (m MassShiftMode) String() string {
	for name, mode := range modeNames {
		if mode == m {
			return name
		}
	}
	return fmt.Sprintf("MassShiftMode(%d)", int(m))
}

// ParseMassShiftMode parses a mode name case-insensitively.
func ParseMassShiftMode(s string) (MassShiftMode, error) {
	mode, ok := modeNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return ModeOff, fmt.Errorf("unknown mass shift search mode '%s', must be off, blindptms, mutations or preferreddeltamasses", s)
	}
	return mode, nil
}

// RunConfig is the root-level settings struct and is a mix of settings from
// an optional config file and those available from the command line.
type RunConfig struct {
	// the maximum number of dynamic modifications on one peptide variant
	MaxDynamicMods int `mapstructure:"MaxDynamicMods"`
	// peptides with more candidate variants than this are searched unmodified
	MaxNumPeptideVariants int `mapstructure:"MaxNumPeptideVariants"`

	// tolerances indexed by charge state minus one; the last entry serves
	// higher charges
	PrecursorMassTolerance []float64 `mapstructure:"PrecursorMassTolerance"`
	NTerminalMassTolerance []float64 `mapstructure:"NTerminalMassTolerance"`
	CTerminalMassTolerance []float64 `mapstructure:"CTerminalMassTolerance"`

	MaxModificationMassPlus  float64 `mapstructure:"MaxModificationMassPlus"`
	MaxModificationMassMinus float64 `mapstructure:"MaxModificationMassMinus"`
	MinModificationMass      float64 `mapstructure:"MinModificationMass"`

	UnknownMassShiftSearchMode string `mapstructure:"UnknownMassShiftSearchMode"`
	BlosumThreshold            int    `mapstructure:"BlosumThreshold"`
	MaxAmbResultsForBlindMods  int    `mapstructure:"MaxAmbResultsForBlindMods"`
	UseAvgMassOfSequences      bool   `mapstructure:"UseAvgMassOfSequences"`
	MassReconMode              bool   `mapstructure:"MassReconMode"`
	TagLength                  int    `mapstructure:"TagLength"`
	MaxResults                 int    `mapstructure:"MaxResults"`

	DynamicMods                string `mapstructure:"DynamicMods"`
	StaticMods                 string `mapstructure:"StaticMods"`
	PreferredDeltaMasses       string `mapstructure:"PreferredDeltaMasses"`
	MaxNumPreferredDeltaMasses int    `mapstructure:"MaxNumPreferredDeltaMasses"`
	ModificationsCSV           string `mapstructure:"ModificationsCSV"`

	DecoyPrefix         string  `mapstructure:"DecoyPrefix"`
	FragmentMzTolerance float64 `mapstructure:"FragmentMzTolerance"`

	NumWorkers            int     `mapstructure:"NumWorkers"`
	WorkerMultiplier      int     `mapstructure:"WorkerMultiplier"`
	StatusUpdateFrequency float64 `mapstructure:"StatusUpdateFrequency"`

	Blosum    string `mapstructure:"Blosum"`
	UnimodXML string `mapstructure:"UnimodXML"`

	// digestion
	CleavageRules          string  `mapstructure:"CleavageRules"`
	MinPeptideLength       int     `mapstructure:"MinPeptideLength"`
	MaxPeptideLength       int     `mapstructure:"MaxPeptideLength"`
	NumMaxMissedCleavages  int     `mapstructure:"NumMaxMissedCleavages"`
	NumMinTerminiCleavages int     `mapstructure:"NumMinTerminiCleavages"`
	MinPeptideMass         float64 `mapstructure:"MinPeptideMass"`
	MaxPeptideMass         float64 `mapstructure:"MaxPeptideMass"`

	// query spectrum preprocessing
	MaxPeakCount    int     `mapstructure:"MaxPeakCount"`
	IntensityCutoff float64 `mapstructure:"IntensityCutoff"`
	MaxTagCount     int     `mapstructure:"MaxTagCount"`

	mode      MassShiftMode
	modDB     *core.ModDatabase
	dynamic   core.DynamicModSet
	static    core.StaticModSet
	preferred core.DynamicModSet
}

// Defaults maps every option to its default value.
var Defaults = map[string]interface{}{
	"MaxDynamicMods":             2,
	"MaxNumPeptideVariants":      1000000,
	"PrecursorMassTolerance":     []float64{1.5, 2.5, 3.5},
	"NTerminalMassTolerance":     []float64{0.75, 1.0, 1.25},
	"CTerminalMassTolerance":     []float64{0.5, 0.75, 1.0},
	"MaxModificationMassPlus":    300.0,
	"MaxModificationMassMinus":   150.0,
	"MinModificationMass":        0.0,
	"UnknownMassShiftSearchMode": "blindptms",
	"BlosumThreshold":            0,
	"MaxAmbResultsForBlindMods":  2,
	"UseAvgMassOfSequences":      false,
	"MassReconMode":              false,
	"TagLength":                  3,
	"MaxResults":                 core.DefaultMaxResults,
	"DynamicMods":                "",
	"StaticMods":                 "",
	"PreferredDeltaMasses":       "",
	"MaxNumPreferredDeltaMasses": 1,
	"ModificationsCSV":           "",
	"DecoyPrefix":                "rev_",
	"FragmentMzTolerance":        0.5,
	"NumWorkers":                 0,
	"WorkerMultiplier":           1,
	"StatusUpdateFrequency":      5.0,
	"Blosum":                     "",
	"UnimodXML":                  "",
	"CleavageRules":              "trypsin/p",
	"MinPeptideLength":           5,
	"MaxPeptideLength":           40,
	"NumMaxMissedCleavages":      2,
	"NumMinTerminiCleavages":     2,
	"MinPeptideMass":             0.0,
	"MaxPeptideMass":             10000.0,
	"MaxPeakCount":               100,
	"IntensityCutoff":            0.0,
	"MaxTagCount":                0,
}

// SetDefaults registers Defaults on v.
func SetDefaults(v *viper.Viper) {
	for key, value := range Defaults {
		v.SetDefault(key, value)
	}
}

// Default returns a validated configuration holding only default values.
func Default() *RunConfig {
	v := viper.New()
	cfg, err := Load(v)
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load builds a RunConfig from v. Defaults are registered first; values
// already set on v (config file, bound flags) take precedence. The
// modification motifs are parsed and the result is validated.
func Load(v *viper.Viper) (*RunConfig, error) {
	SetDefaults(v)

	var c RunConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile reads a config file into v and builds a RunConfig from it.
func LoadFile(v *viper.Viper, path string) (*RunConfig, error) {
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Load(v)
}

func (c *RunConfig) init() error {
	if err := c.Validate(); err != nil {
		return err
	}

	mode, err := ParseMassShiftMode(c.UnknownMassShiftSearchMode)
	if err != nil {
		return &core.ValidationError{Field: "UnknownMassShiftSearchMode", Message: err.Error()}
	}
	c.mode = mode

	c.modDB = core.DefaultModDatabase()
	if c.ModificationsCSV != "" {
		f, err := os.Open(c.ModificationsCSV)
		if err != nil {
			return fmt.Errorf("failed to open modifications file: %w", err)
		}
		defer f.Close()
		if err := c.modDB.LoadFromCSV(f); err != nil {
			return fmt.Errorf("failed to load modifications from %s: %w", c.ModificationsCSV, err)
		}
	}

	if c.dynamic, err = core.ParseDynamicMods(c.DynamicMods, c.modDB); err != nil {
		return fmt.Errorf("invalid DynamicMods: %w", err)
	}
	if c.static, err = core.ParseStaticMods(c.StaticMods, c.modDB); err != nil {
		return fmt.Errorf("invalid StaticMods: %w", err)
	}
	if c.preferred, err = core.ParsePreferredMods(c.PreferredDeltaMasses, c.modDB); err != nil {
		return fmt.Errorf("invalid PreferredDeltaMasses: %w", err)
	}
	if c.mode == ModePreferredDeltaMasses && len(c.preferred) == 0 {
		return &core.ValidationError{Field: "PreferredDeltaMasses", Message: "required by the preferreddeltamasses search mode"}
	}
	return nil
}

// Validate rejects impossible settings.
func (c *RunConfig) Validate() error {
	var errs []string

	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}
	checkTolerances := func(name string, tols []float64) {
		if len(tols) == 0 {
			errs = append(errs, name+" requires at least one value")
		}
		for _, tol := range tols {
			if tol < 0 {
				errs = append(errs, name+" values must be non-negative")
				break
			}
		}
	}

	check(c.MaxDynamicMods >= 0, "MaxDynamicMods must be non-negative")
	check(c.MaxNumPeptideVariants >= 0, "MaxNumPeptideVariants must be non-negative")
	checkTolerances("PrecursorMassTolerance", c.PrecursorMassTolerance)
	checkTolerances("NTerminalMassTolerance", c.NTerminalMassTolerance)
	checkTolerances("CTerminalMassTolerance", c.CTerminalMassTolerance)
	check(c.MaxModificationMassPlus >= 0, "MaxModificationMassPlus must be non-negative")
	check(c.MaxModificationMassMinus >= 0, "MaxModificationMassMinus must be non-negative")
	check(c.MinModificationMass >= 0, "MinModificationMass must be non-negative")
	check(c.MaxAmbResultsForBlindMods >= 1, "MaxAmbResultsForBlindMods must be at least 1")
	check(c.TagLength >= 1, "TagLength must be at least 1")
	check(c.MaxResults >= 1, "MaxResults must be at least 1")
	check(c.MaxNumPreferredDeltaMasses >= 1, "MaxNumPreferredDeltaMasses must be at least 1")
	check(c.FragmentMzTolerance > 0, "FragmentMzTolerance must be positive")
	check(c.NumWorkers >= 0, "NumWorkers must be non-negative")
	check(c.WorkerMultiplier >= 1, "WorkerMultiplier must be at least 1")
	check(c.MinPeptideLength >= 1, "MinPeptideLength must be at least 1")
	check(c.MaxPeptideLength >= c.MinPeptideLength, "MaxPeptideLength must not be below MinPeptideLength")
	check(c.NumMaxMissedCleavages >= 0, "NumMaxMissedCleavages must be non-negative")
	check(c.NumMinTerminiCleavages >= 0 && c.NumMinTerminiCleavages <= 2, "NumMinTerminiCleavages must be 0, 1 or 2")
	check(c.MaxPeptideMass >= c.MinPeptideMass, "MaxPeptideMass must not be below MinPeptideMass")
	check(c.MaxPeakCount >= 0, "MaxPeakCount must be non-negative")
	check(c.IntensityCutoff >= 0 && c.IntensityCutoff <= 100, "IntensityCutoff must be a percentage")

	if len(errs) > 0 {
		return &core.ValidationError{
			Field:   "RunConfig",
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

// Mode returns the parsed unknown mass shift search mode.
func (c *RunConfig) Mode() MassShiftMode { return c.mode }

// MassModel returns the mass model used for peptide masses.
func (c *RunConfig) MassModel() core.MassModel {
	if c.UseAvgMassOfSequences {
		return core.Average
	}
	return core.Monoisotopic
}

// ModDatabase returns the named modification database.
func (c *RunConfig) ModDatabase() *core.ModDatabase { return c.modDB }

// Dynamic returns the parsed dynamic modifications.
func (c *RunConfig) Dynamic() core.DynamicModSet { return c.dynamic }

// Static returns the parsed static modifications.
func (c *RunConfig) Static() core.StaticModSet { return c.static }

// Preferred returns the parsed preferred mass shift vocabulary.
func (c *RunConfig) Preferred() core.DynamicModSet { return c.preferred }

// PrecursorTolerance returns the precursor mass tolerance for a charge state.
func (c *RunConfig) PrecursorTolerance(charge int) float64 {
	return byCharge(c.PrecursorMassTolerance, charge)
}

// NTerminalTolerance returns the N-terminal flanking mass tolerance for a
// fragment charge state.
func (c *RunConfig) NTerminalTolerance(charge int) float64 {
	return byCharge(c.NTerminalMassTolerance, charge)
}

// CTerminalTolerance returns the C-terminal flanking mass tolerance for a
// fragment charge state.
func (c *RunConfig) CTerminalTolerance(charge int) float64 {
	return byCharge(c.CTerminalMassTolerance, charge)
}

// MaxTagDeviation is the combined flanking mass deviation admitted by the
// tag index.
func (c *RunConfig) MaxTagDeviation() float64 {
	if c.MaxModificationMassPlus > c.MaxModificationMassMinus {
		return c.MaxModificationMassPlus
	}
	return c.MaxModificationMassMinus
}

// Workers returns the number of search workers.
func (c *RunConfig) Workers() int {
	if c.NumWorkers > 0 {
		return c.NumWorkers
	}
	return runtime.NumCPU() * c.WorkerMultiplier
}

func byCharge(values []float64, charge int) float64 {
	if len(values) == 0 {
		return 0
	}
	i := charge - 1
	if i < 0 {
		i = 0
	}
	if i >= len(values) {
		i = len(values) - 1
	}
	return values[i]
}
