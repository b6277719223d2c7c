package search

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"

	"github.com/ChrisMcGann/tagrecon/pkg/config"
	"github.com/ChrisMcGann/tagrecon/pkg/core"
	"github.com/ChrisMcGann/tagrecon/pkg/deltamass"
	"github.com/ChrisMcGann/tagrecon/pkg/digest"
	"github.com/ChrisMcGann/tagrecon/pkg/score"
)

const (
	testProtein = "GGKPEPTIDEKAAR"
	phospho     = 79.966331
)

func testConfig(t *testing.T, settings map[string]interface{}) *config.RunConfig {
	t.Helper()
	v := viper.New()
	for key, value := range settings {
		v.Set(key, value)
	}
	cfg, err := config.Load(v)
	if err != nil {
		t.Fatalf("config.Load() error: %v", err)
	}
	return cfg
}

// candidatePeptide returns PEPTIDEK as digested from testProtein.
func candidatePeptide() core.DigestedPeptide {
	p := core.NewDigestedPeptide("PEPTIDEK")
	p.Offset = 3
	return p
}

// observed builds a charge 2 spectrum whose peaks are the b and y ions of
// truth and whose tags are the tags of truth starting at the given offsets.
func observed(truth core.DigestedPeptide, starts ...int) *core.Spectrum {
	model := core.Monoisotopic
	mass := truth.NeutralMass(model)
	s := &core.Spectrum{
		ID:          core.SpectrumID{Source: "test", Charge: 2},
		NeutralMass: mass,
	}
	for _, mz := range score.NewPredictor(model).Predict(truth, 1) {
		s.Peaks = append(s.Peaks, core.Peak{MZ: mz, Intensity: 100})
	}
	tags := GetTagsFromSequence(truth, 3, mass, model)
	for _, start := range starts {
		tag := tags[start]
		tag.Charge = 1
		s.Tags = append(s.Tags, tag)
	}
	return s
}

func phosphoT() core.DigestedPeptide {
	p := candidatePeptide()
	p.Mods.Add(3, core.Modification{Name: "Phospho", Mass: phospho, AvgMass: phospho})
	return p
}

func phosphoTable() *deltamass.Table {
	known := []deltamass.KnownMod{
		{Name: "Phospho", Residue: 'S', Mass: phospho, AvgMass: 79.9799},
		{Name: "Phospho", Residue: 'T', Mass: phospho, AvgMass: 79.9799},
		{Name: "Phospho", Residue: 'Y', Mass: phospho, AvgMass: 79.9799},
	}
	return deltamass.NewTable(known, nil, nil, deltamass.Options{})
}

func interpretations(results []core.SearchResult) []string {
	var out []string
	for _, r := range results {
		out = append(out, r.Interpretation)
	}
	return out
}

func TestGetTagsFromSequence(t *testing.T) {
	model := core.Monoisotopic
	peptide := core.NewDigestedPeptide("QAKDRDNYKMNVLMK")
	peptide.Mods.Add(core.NTerminus, core.Modification{Mass: 42.010565, AvgMass: 42.0367})
	peptide.Mods.Add(9, core.Modification{Mass: 15.994915, AvgMass: 15.9994})
	mass := peptide.NeutralMass(model)
	masses := peptide.ResidueMasses(model)

	tags := GetTagsFromSequence(peptide, 3, mass, model)
	if len(tags) != len(peptide.Sequence)+2-3+1 {
		t.Fatalf("expected %d tags, got %d", len(peptide.Sequence)+2-3+1, len(tags))
	}
	if tags[0].Tag != "(QA" || tags[len(tags)-1].Tag != "MK)" {
		t.Errorf("unexpected boundary tags %q, %q", tags[0].Tag, tags[len(tags)-1].Tag)
	}

	for i, tag := range tags {
		if tag.Start != i {
			t.Errorf("tag %d has start %d", i, tag.Start)
		}
		tagMass := masses[i] + masses[i+1] + masses[i+2]
		total := tag.NTerminusMass + tag.CTerminusMass + tagMass + core.WaterMass(model)
		if math.Abs(total-mass) > 1e-9 {
			t.Errorf("tag %s: flanks and tag sum to %v, want %v", tag.Tag, total, mass)
		}
	}

	if tags := GetTagsFromSequence(core.NewDigestedPeptide("AK"), 5, 100, model); tags != nil {
		t.Errorf("expected no tags longer than the sequence, got %v", tags)
	}
}

func TestQuerySequenceBothMatchScoresOnce(t *testing.T) {
	modes := []struct {
		name     string
		settings map[string]interface{}
	}{
		{"off", map[string]interface{}{"UnknownMassShiftSearchMode": "off"}},
		{"blindptms", map[string]interface{}{"UnknownMassShiftSearchMode": "blindptms"}},
		{"mutations", map[string]interface{}{"UnknownMassShiftSearchMode": "mutations"}},
		{"preferreddeltamasses", map[string]interface{}{
			"UnknownMassShiftSearchMode": "preferreddeltamasses",
			"PreferredDeltaMasses":       "M 15.994915",
		}},
	}

	for _, mode := range modes {
		t.Run(mode.name, func(t *testing.T) {
			cfg := testConfig(t, mode.settings)
			candidate := candidatePeptide()
			spectrum := observed(candidate, 2, 3, 4)
			engine := NewEngine(cfg, []core.Protein{{Name: "p", Sequence: testProtein}}, []*core.Spectrum{spectrum}, Options{})

			if n := engine.QuerySequence(candidate, 0); n != 1 {
				t.Errorf("QuerySequence() scored %d comparisons, want 1", n)
			}
			target, decoy := spectrum.Comparisons()
			if target != 1 || decoy != 0 {
				t.Errorf("comparisons = (%d, %d), want (1, 0)", target, decoy)
			}

			results := spectrum.Results()
			if len(results) != 1 {
				t.Fatalf("expected 1 result, got %d", len(results))
			}
			got := results[0]
			if got.Interpretation != "(PEPTIDEK)" || got.MassError != 0 || got.ModMass != 0 {
				t.Errorf("unexpected result %+v", got)
			}
			if diff := cmp.Diff([]core.ProteinLocus{{Index: 0, Offset: 3}}, got.Loci); diff != "" {
				t.Errorf("loci mismatch (-want +got):\n%s", diff)
			}
			if got.MatchedIons != 14 || got.Score <= 0 {
				t.Errorf("expected every ion to match with a positive score, got %d ions score %v", got.MatchedIons, got.Score)
			}
		})
	}
}

func TestQuerySequenceUnknownModification(t *testing.T) {
	cfg := testConfig(t, map[string]interface{}{"UnknownMassShiftSearchMode": "blindptms"})
	candidate := candidatePeptide()
	// IDE follows the phosphorylated T, so only its N-terminal flank differs
	spectrum := observed(phosphoT(), 5)
	engine := NewEngine(cfg, []core.Protein{{Name: "p", Sequence: testProtein}}, []*core.Spectrum{spectrum}, Options{Table: phosphoTable()})

	// P, E, P and T precede the tag
	if n := engine.QuerySequence(candidate, 0); n != 4 {
		t.Errorf("QuerySequence() scored %d placements, want 4", n)
	}
	// every placement counts, including the ones not kept
	if target, decoy := spectrum.Comparisons(); target != 4 || decoy != 0 {
		t.Errorf("comparisons = (%d, %d), want (4, 0)", target, decoy)
	}

	results := spectrum.Results()
	if diff := cmp.Diff([]string{"(PEPT+80IDEK)"}, interpretations(results)); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
	if math.Abs(results[0].ModMass-phospho) > 1e-6 {
		t.Errorf("ModMass = %v, want %v", results[0].ModMass, phospho)
	}
	if diff := cmp.Diff([]string{"Phospho"}, results[0].Annotations); diff != "" {
		t.Errorf("annotations mismatch (-want +got):\n%s", diff)
	}
}

func TestQuerySequenceTiedPlacements(t *testing.T) {
	tests := []struct {
		maxAmbiguous int
		want         []string
	}{
		{1, []string{"(P+80EPTIDEK)"}},
		{2, []string{"(P+80EPTIDEK)", "(PE+80PTIDEK)"}},
		{3, []string{"(P+80EPTIDEK)", "(PE+80PTIDEK)", "(PEP+80TIDEK)"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("max %d", tt.maxAmbiguous), func(t *testing.T) {
			cfg := testConfig(t, map[string]interface{}{
				"UnknownMassShiftSearchMode": "blindptms",
				"MaxAmbResultsForBlindMods":  tt.maxAmbiguous,
			})
			// without peaks every placement scores zero
			spectrum := observed(phosphoT(), 5)
			spectrum.Peaks = nil
			proteins := []core.Protein{{Name: "rev_p", Sequence: testProtein, Decoy: true}}
			engine := NewEngine(cfg, proteins, []*core.Spectrum{spectrum}, Options{Table: phosphoTable()})

			n := engine.QuerySequence(candidatePeptide(), 0)
			if n != 4 {
				t.Errorf("QuerySequence() scored %d placements, want 4", n)
			}
			if target, decoy := spectrum.Comparisons(); target != 0 || decoy != n {
				t.Errorf("comparisons = (%d, %d), want (0, %d)", target, decoy, n)
			}
			if diff := cmp.Diff(tt.want, interpretations(spectrum.Results())); diff != "" {
				t.Errorf("results mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQuerySequenceCancellingResidual(t *testing.T) {
	phosphoOxE := phosphoT()
	phosphoOxE.Mods.Add(1, core.Modification{Mass: 15.994915, AvgMass: 15.9994})

	tests := []struct {
		name      string
		candidate core.DigestedPeptide
		truth     core.DigestedPeptide
		want      int64
	}{
		{"residual removes the phosphate", phosphoT(), candidatePeptide(), 0},
		{"residual removes every modification", phosphoOxE, candidatePeptide(), 0},
		{"residual adds a phosphate", candidatePeptide(), phosphoT(), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, map[string]interface{}{"UnknownMassShiftSearchMode": "blindptms"})
			spectrum := observed(tt.truth, 5)
			engine := NewEngine(cfg, []core.Protein{{Sequence: testProtein}}, []*core.Spectrum{spectrum}, Options{Table: phosphoTable()})

			if n := engine.QuerySequence(tt.candidate, 0); n != tt.want {
				t.Errorf("QuerySequence() scored %d comparisons, want %d", n, tt.want)
			}
			if tt.want == 0 && len(spectrum.Results()) != 0 {
				t.Errorf("expected no results, got %v", interpretations(spectrum.Results()))
			}
		})
	}
}

func TestQuerySequenceMutationsFallback(t *testing.T) {
	tests := []struct {
		name  string
		truth core.DigestedPeptide
		want  []string
		n     int64
	}{
		// no single substitution of P, E or T adds 80 Da
		{"unknown modification placed", phosphoT(), []string{"(PEPT+80IDEK)"}, 4},
		{"substitution explains the residual", core.NewDigestedPeptide("PEPSIDEK"), []string{"(PEPT-14IDEK)", "(PE-14PTIDEK)"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, map[string]interface{}{"UnknownMassShiftSearchMode": "mutations"})
			spectrum := observed(tt.truth, 5)
			engine := NewEngine(cfg, []core.Protein{{Sequence: testProtein}}, []*core.Spectrum{spectrum}, Options{})

			if n := engine.QuerySequence(candidatePeptide(), 0); n != tt.n {
				t.Errorf("QuerySequence() scored %d comparisons, want %d", n, tt.n)
			}
			if diff := cmp.Diff(tt.want, interpretations(spectrum.Results())); diff != "" {
				t.Errorf("results mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQuerySequenceKnownModifications(t *testing.T) {
	t.Run("preferred mass shift", func(t *testing.T) {
		cfg := testConfig(t, map[string]interface{}{
			"UnknownMassShiftSearchMode": "preferreddeltamasses",
			"PreferredDeltaMasses":       "T 79.966331",
		})
		spectrum := observed(phosphoT(), 5)
		engine := NewEngine(cfg, []core.Protein{{Sequence: testProtein}}, []*core.Spectrum{spectrum}, Options{})

		if n := engine.QuerySequence(candidatePeptide(), 0); n != 1 {
			t.Errorf("QuerySequence() scored %d variants, want 1", n)
		}
		results := spectrum.Results()
		if diff := cmp.Diff([]string{"(PEPT+80IDEK)"}, interpretations(results)); diff != "" {
			t.Fatalf("results mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"T+79.966"}, results[0].Annotations); diff != "" {
			t.Errorf("annotations mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("substitution", func(t *testing.T) {
		cfg := testConfig(t, map[string]interface{}{"UnknownMassShiftSearchMode": "mutations"})
		truth := core.NewDigestedPeptide("PEPSIDEK")
		spectrum := observed(truth, 5)
		engine := NewEngine(cfg, []core.Protein{{Sequence: testProtein}}, []*core.Spectrum{spectrum}, Options{})

		// T->S on T and E->D on E explain -14.016 before the tag
		if n := engine.QuerySequence(candidatePeptide(), 0); n != 2 {
			t.Errorf("QuerySequence() scored %d variants, want 2", n)
		}
		results := spectrum.Results()
		if diff := cmp.Diff([]string{"(PEPT-14IDEK)", "(PE-14PTIDEK)"}, interpretations(results)); diff != "" {
			t.Fatalf("results mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"T->S"}, results[0].Annotations); diff != "" {
			t.Errorf("annotations mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("off ignores mismatches", func(t *testing.T) {
		cfg := testConfig(t, map[string]interface{}{"UnknownMassShiftSearchMode": "off"})
		spectrum := observed(phosphoT(), 5)
		engine := NewEngine(cfg, []core.Protein{{Sequence: testProtein}}, []*core.Spectrum{spectrum}, Options{})

		if n := engine.QuerySequence(candidatePeptide(), 0); n != 0 {
			t.Errorf("QuerySequence() scored %d comparisons, want 0", n)
		}
		if len(spectrum.Results()) != 0 {
			t.Errorf("expected no results, got %v", interpretations(spectrum.Results()))
		}
	})
}

func TestQuerySequenceParentMassFallback(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		nShift float64
		cShift float64
		want   int
	}{
		{"blind with c-terminal mismatch", "blindptms", 0, 2, 1},
		{"mutations with both mismatched", "mutations", 2, 2, 1},
		{"off", "off", 0, 2, 0},
		{"preferred", "preferreddeltamasses", 0, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, map[string]interface{}{
				"UnknownMassShiftSearchMode": tt.mode,
				"PreferredDeltaMasses":       "M 15.994915",
			})
			candidate := candidatePeptide()
			spectrum := observed(candidate, 3)
			spectrum.NeutralMass += 2
			spectrum.Tags[0].NTerminusMass += tt.nShift
			spectrum.Tags[0].CTerminusMass += tt.cShift
			engine := NewEngine(cfg, []core.Protein{{Sequence: testProtein}}, []*core.Spectrum{spectrum}, Options{})

			engine.QuerySequence(candidate, 0)
			results := spectrum.Results()
			if len(results) != tt.want {
				t.Fatalf("expected %d results, got %v", tt.want, interpretations(results))
			}
			if tt.want > 0 && (results[0].Interpretation != "(PEPTIDEK)" || math.Abs(results[0].MassError-2) > 1e-9) {
				t.Errorf("unexpected fallback result %+v", results[0])
			}
		})
	}
}

func TestQueryByMass(t *testing.T) {
	cfg := testConfig(t, map[string]interface{}{
		"UnknownMassShiftSearchMode": "blindptms",
		"MassReconMode":              true,
	})
	candidate := candidatePeptide()
	unmodified := observed(candidate)
	modified := observed(phosphoT())
	distant := observed(candidate)
	distant.NeutralMass += 400

	spectra := []*core.Spectrum{distant, modified, unmodified}
	engine := NewEngine(cfg, []core.Protein{{Sequence: testProtein}}, spectra, Options{Table: phosphoTable()})

	// one unmodified comparison plus eight unknown placements
	if n := engine.QueryByMass(candidate, 0); n != 9 {
		t.Errorf("QueryByMass() scored %d comparisons, want 9", n)
	}
	if got := interpretations(unmodified.Results()); !cmp.Equal(got, []string{"(PEPTIDEK)"}) {
		t.Errorf("unmodified spectrum results %v", got)
	}
	if got := interpretations(modified.Results()); !cmp.Equal(got, []string{"(PEPT+80IDEK)"}) {
		t.Errorf("modified spectrum results %v", got)
	}
	if got := distant.Results(); len(got) != 0 {
		t.Errorf("spectrum outside the mass window has results %v", interpretations(got))
	}
}

func TestCheckForTerminalErrors(t *testing.T) {
	const bsa = "MKWVTFISSAYSRGVFRRDTHKAVTKYTSSKSSL"
	inner := core.NewDigestedPeptide("WVTFISSAYSR")
	inner.Offset = 2
	first := core.NewDigestedPeptide("MKWVTFISSAYSR")

	tests := []struct {
		name     string
		peptide  core.DigestedPeptide
		mass     float64
		terminus Terminus
		want     bool
	}{
		{"N grows by MK", inner, 259.1, NTerminus, false},
		{"N growth leaves error", inner, 250.1, NTerminus, true},
		{"N loses WV", inner, -285.1, NTerminus, false},
		{"N loss leaves error", inner, -280.1, NTerminus, true},
		{"C grows by GV", first, 156, CTerminus, false},
		{"C growth leaves error", first, 154, CTerminus, true},
		{"C loses R", first, -156.1, CTerminus, false},
		{"C loss leaves error", first, -154.1, CTerminus, true},
		{"protein N-terminus cannot grow", first, 154, NTerminus, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckForTerminalErrors(bsa, tt.peptide, tt.mass, 1.25, tt.terminus, core.Monoisotopic)
			if got != tt.want {
				t.Errorf("CheckForTerminalErrors(%s, %v, %s) = %v, want %v", tt.peptide.Sequence, tt.mass, tt.terminus, got, tt.want)
			}
		})
	}
}

func TestRun(t *testing.T) {
	cfg := testConfig(t, map[string]interface{}{
		"NumWorkers":             2,
		"NumMinTerminiCleavages": 2,
	})
	proteins := []core.Protein{
		{Name: "p1", Sequence: testProtein},
		{Name: "rev_p2", Sequence: "AAAAAAAR", Decoy: true},
	}
	spectrum := observed(candidatePeptide(), 2, 3, 4)
	engine := NewEngine(cfg, proteins, []*core.Spectrum{spectrum}, Options{})

	digester, err := digest.New(digest.Config{
		Rule:               cfg.CleavageRules,
		MinLength:          cfg.MinPeptideLength,
		MaxLength:          cfg.MaxPeptideLength,
		MaxMissedCleavages: cfg.NumMaxMissedCleavages,
		MinTermini:         cfg.NumMinTerminiCleavages,
		MaxMass:            cfg.MaxPeptideMass,
	})
	if err != nil {
		t.Fatal(err)
	}

	stats := engine.Run(digester)
	if stats.Proteins != 2 || stats.Workers != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Peptides == 0 || stats.Variants != stats.Peptides || stats.Comparisons == 0 {
		t.Errorf("unexpected stats %+v", stats)
	}

	results := spectrum.Results()
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if results[0].Interpretation != "(PEPTIDEK)" {
		t.Errorf("best result = %s, want (PEPTIDEK)", results[0].Interpretation)
	}
	if diff := cmp.Diff([]core.ProteinLocus{{Index: 0, Offset: 3}}, results[0].Loci); diff != "" {
		t.Errorf("loci mismatch (-want +got):\n%s", diff)
	}
}
