// Package digest enumerates the peptides a protease produces from a protein.
package digest

import (
	"fmt"
	"strings"

	"github.com/ChrisMcGann/tagrecon/pkg/core"
)

// Named cleavage rules in "cleave-after|not-before" form.
var namedRules = map[string]string{
	"trypsin":      "KR|P",
	"trypsin/p":    "KR|",
	"lys-c":        "K|P",
	"lys-c/p":      "K|",
	"arg-c":        "R|P",
	"asp-n":        "|D",
	"chymotrypsin": "FWYL|P",
	"no-cleavage":  "",
}

// Config holds digestion configuration
type Config struct {
	Rule               string // named rule or custom "XY|Z"
	MinLength          int
	MaxLength          int
	MaxMissedCleavages int
	MinTermini         int // number of termini that must be cleavage sites (0-2)
	MinMass            float64
	MaxMass            float64 // 0 = no limit
	Model              core.MassModel
}

// Digester enumerates digested peptides under one configuration.
type Digester struct {
	cfg       Config
	after     [256]bool // residues cleaved after
	before    [256]bool // residues cleaved before
	notBefore [256]bool // residues that block a cleavage when they follow
	noCleave  bool
}

// New parses the cleavage rule and returns a Digester.
func New(cfg Config) (*Digester, error) {
	if cfg.MinLength < 1 {
		cfg.MinLength = 1
	}
	if cfg.MaxLength < cfg.MinLength {
		return nil, fmt.Errorf("maximum peptide length %d is below minimum %d", cfg.MaxLength, cfg.MinLength)
	}
	if cfg.MinTermini < 0 || cfg.MinTermini > 2 {
		return nil, fmt.Errorf("minimum termini cleavages must be between 0 and 2, got %d", cfg.MinTermini)
	}
	if cfg.MaxMissedCleavages < 0 {
		return nil, fmt.Errorf("maximum missed cleavages must be non-negative, got %d", cfg.MaxMissedCleavages)
	}

	d := &Digester{cfg: cfg}
	rule := strings.ToLower(strings.TrimSpace(cfg.Rule))
	if named, ok := namedRules[rule]; ok {
		rule = named
	} else {
		rule = strings.ToUpper(strings.TrimSpace(cfg.Rule))
	}
	if rule == "" {
		d.noCleave = true
		return d, nil
	}

	left, right, ok := strings.Cut(rule, "|")
	if !ok {
		return nil, fmt.Errorf("invalid cleavage rule '%s', expected 'XY|Z'", cfg.Rule)
	}
	if left == "" {
		// "|D" cleaves before D
		for i := 0; i < len(right); i++ {
			if err := checkResidue(right[i], cfg.Rule); err != nil {
				return nil, err
			}
			d.before[right[i]] = true
		}
		return d, nil
	}
	for i := 0; i < len(left); i++ {
		if err := checkResidue(left[i], cfg.Rule); err != nil {
			return nil, err
		}
		d.after[left[i]] = true
	}
	for i := 0; i < len(right); i++ {
		if err := checkResidue(right[i], cfg.Rule); err != nil {
			return nil, err
		}
		d.notBefore[right[i]] = true
	}
	return d, nil
}

func checkResidue(r byte, rule string) error {
	if _, ok := core.AminoAcidMasses[rune(r)]; !ok {
		return fmt.Errorf("invalid residue '%c' in cleavage rule '%s'", r, rule)
	}
	return nil
}

// Sites returns, for every boundary 0..len(seq), whether the protease cuts
// there. Boundary p lies between seq[p-1] and seq[p]; the protein termini
// are always sites.
func (d *Digester) Sites(seq string) []bool {
	sites := make([]bool, len(seq)+1)
	sites[0] = true
	sites[len(seq)] = true
	if d.noCleave {
		return sites
	}
	for p := 1; p < len(seq); p++ {
		prev, next := seq[p-1], seq[p]
		if d.after[prev] && !d.notBefore[next] {
			sites[p] = true
		}
		if d.before[next] {
			sites[p] = true
		}
	}
	return sites
}

// Digest returns every peptide of protein satisfying the length, mass,
// missed cleavage and specificity constraints. Peptides containing unknown
// residues are skipped. A leading methionine may be clipped: the boundary
// after it counts as specific but never as a missed cleavage.
func (d *Digester) Digest(protein core.Protein) []core.DigestedPeptide {
	seq := protein.Sequence
	n := len(seq)
	if n == 0 {
		return nil
	}

	rule := d.Sites(seq)
	specific := append([]bool(nil), rule...)
	if n > 1 && seq[0] == 'M' {
		specific[1] = true
	}

	var peptides []core.DigestedPeptide
	for begin := 0; begin < n; begin++ {
		nSpecific := specific[begin]
		if d.cfg.MinTermini == 2 && !nSpecific {
			continue
		}

		missed := 0
		for end := begin + 1; end <= n && end-begin <= d.cfg.MaxLength; end++ {
			if end-1 > begin && rule[end-1] {
				missed++
			}
			if missed > d.cfg.MaxMissedCleavages {
				break
			}
			if !known(seq[end-1]) {
				break
			}
			if end-begin < d.cfg.MinLength {
				continue
			}

			cSpecific := specific[end]
			ntt := 0
			if nSpecific {
				ntt++
			}
			if cSpecific {
				ntt++
			}
			if ntt < d.cfg.MinTermini {
				continue
			}

			sequence := seq[begin:end]
			mass := core.SequenceMass(sequence, d.cfg.Model)
			if mass < d.cfg.MinMass || (d.cfg.MaxMass > 0 && mass > d.cfg.MaxMass) {
				continue
			}

			peptides = append(peptides, core.DigestedPeptide{
				Sequence:            sequence,
				Offset:              begin,
				MissedCleavages:     missed,
				NTerminusIsSpecific: nSpecific,
				CTerminusIsSpecific: cSpecific,
				NTerminusIsProtein:  begin == 0,
				CTerminusIsProtein:  end == n,
				Mods:                core.ModificationMap{},
			})
		}
	}
	return peptides
}

func known(r byte) bool {
	_, ok := core.ResidueMass(r, core.Monoisotopic)
	return ok && r != core.NTerminusSymbol && r != core.CTerminusSymbol
}
