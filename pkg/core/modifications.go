// Package core provides modification parsing and management
package core

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ModDatabase stores modification definitions
type ModDatabase struct {
	mods map[string]float64 // name -> mass shift
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		mods: make(map[string]float64),
	}
}

// LoadFromCSV loads modifications from a CSV file (format: mod,massshift,aa)
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// Skip header line
	if scanner.Scan() {
		// header line
	}

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}

		modName := strings.TrimSpace(parts[0])
		massStr := strings.TrimSpace(parts[1])

		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}

		db.mods[modName] = mass
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// GetMass returns the mass shift for a modification name
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	mass, ok := db.mods[name]
	return mass, ok
}

// Add adds or updates a modification
func (db *ModDatabase) Add(name string, mass float64) {
	db.mods[name] = mass
}

// Len returns the number of named modifications.
func (db *ModDatabase) Len() int {
	return len(db.mods)
}

// resolveMass parses a mass token that is either a number or a known
// modification name.
func (db *ModDatabase) resolveMass(token string) (float64, error) {
	mass, err := strconv.ParseFloat(token, 64)
	if err == nil {
		return mass, nil
	}
	if db != nil {
		if m, ok := db.GetMass(token); ok {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown modification '%s'", token)
}

// ResidueFilter is a set of residues (including terminus symbols) accepted
// at one motif position.
type ResidueFilter struct {
	accept [256]bool
}

// NewResidueFilter accepts the given residues, or every standard residue and
// terminus symbol except them when negate is set.
func NewResidueFilter(residues string, negate bool) ResidueFilter {
	var f ResidueFilter
	if negate {
		for _, r := range []byte(StandardAminoAcids + string(NTerminusSymbol) + string(CTerminusSymbol)) {
			f.accept[r] = true
		}
	}
	for i := 0; i < len(residues); i++ {
		f.accept[residues[i]] = !negate
	}
	return f
}

// Test reports whether the residue passes the filter.
func (f ResidueFilter) Test(r byte) bool {
	return f.accept[r]
}

// Residues returns the accepted residues in byte order.
func (f ResidueFilter) Residues() string {
	var b strings.Builder
	for r := 0; r < len(f.accept); r++ {
		if f.accept[r] {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

func (f ResidueFilter) String() string {
	residues := f.Residues()
	if len(residues) == 1 {
		return residues
	}
	return "[" + residues + "]"
}

// DynamicMod is a variable modification that may or may not be present on
// an occurrence of its residue.
type DynamicMod struct {
	Name       string
	Unmod      byte // unmodified residue, or a terminus symbol
	UserChar   byte
	UniqueChar byte
	Mass       float64
	AvgMass    float64

	// Filters over the neighbours of the modified residue. NTerminalFilters
	// are ordered from the N-terminus towards the residue; CTerminalFilters
	// from the residue towards the C-terminus.
	NTerminalFilters []ResidueFilter
	CTerminalFilters []ResidueFilter
}

// Modification returns the map entry for the modification.
func (d DynamicMod) Modification() Modification {
	return Modification{Name: d.Name, Mass: d.Mass, AvgMass: d.AvgMass}
}

// DeltaMass returns the modification mass under the given model.
func (d DynamicMod) DeltaMass(model MassModel) float64 {
	if model == Average {
		return d.AvgMass
	}
	return d.Mass
}

// Motif renders the residue with its filters in configuration syntax.
func (d DynamicMod) Motif() string {
	var b strings.Builder
	for _, f := range d.NTerminalFilters {
		b.WriteString(f.String())
	}
	b.WriteByte(d.Unmod)
	if len(d.CTerminalFilters) > 0 {
		b.WriteByte('!')
		for _, f := range d.CTerminalFilters {
			b.WriteString(f.String())
		}
	}
	return b.String()
}

// DynamicModSet is an ordered collection of dynamic modifications.
type DynamicModSet []DynamicMod

func (s DynamicModSet) String() string {
	parts := make([]string, 0, len(s))
	for _, mod := range s {
		parts = append(parts, fmt.Sprintf("%s %c %g", mod.Motif(), mod.UserChar, mod.Mass))
	}
	return strings.Join(parts, " ")
}

const uniqueModChars = "*#@^~$%&+=<>?abcdefghijklmnopqrstuvwxyz0123456789"

// ParseDynamicMods parses "motif char mass" triples, e.g.
// "M * 15.996 (Q @ -17.03 [KR] # Acetyl". Motif elements are residues,
// [..] classes, {..} negated classes, and the ( and ) peptide termini. A '!'
// after an element marks it as the modified one, otherwise the last element
// is modified.
func ParseDynamicMods(cfg string, db *ModDatabase) (DynamicModSet, error) {
	fields := strings.Fields(cfg)
	if len(fields)%3 != 0 {
		return nil, fmt.Errorf("dynamic mods %q: expected triples of 'motif char mass'", cfg)
	}
	var set DynamicModSet
	for i := 0; i < len(fields); i += 3 {
		if len(fields[i+1]) != 1 {
			return nil, fmt.Errorf("dynamic mods: modification char %q must be a single character", fields[i+1])
		}
		mods, err := parseMotifMods(fields[i], fields[i+1][0], fields[i+2], db)
		if err != nil {
			return nil, err
		}
		set = append(set, mods...)
	}
	return set.assignUniqueChars()
}

// ParsePreferredMods parses "motif mass" pairs without modification chars,
// e.g. "[STY] 79.966 M 15.995".
func ParsePreferredMods(cfg string, db *ModDatabase) (DynamicModSet, error) {
	fields := strings.Fields(cfg)
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("preferred mass shifts %q: expected pairs of 'motif mass'", cfg)
	}
	var set DynamicModSet
	for i := 0; i < len(fields); i += 2 {
		mods, err := parseMotifMods(fields[i], 0, fields[i+1], db)
		if err != nil {
			return nil, err
		}
		set = append(set, mods...)
	}
	return set.assignUniqueChars()
}

func (s DynamicModSet) assignUniqueChars() (DynamicModSet, error) {
	if len(s) > len(uniqueModChars) {
		return nil, fmt.Errorf("too many dynamic modifications (%d), at most %d are supported", len(s), len(uniqueModChars))
	}
	for i := range s {
		s[i].UniqueChar = uniqueModChars[i]
	}
	return s, nil
}

func parseMotifMods(motif string, userChar byte, massToken string, db *ModDatabase) ([]DynamicMod, error) {
	mass, err := db.resolveMass(massToken)
	if err != nil {
		return nil, fmt.Errorf("motif %q: %w", motif, err)
	}
	filters, modIndex, err := parseMotif(motif)
	if err != nil {
		return nil, err
	}

	name := massToken
	if _, err := strconv.ParseFloat(massToken, 64); err == nil {
		name = ""
	}

	residues := filters[modIndex].Residues()
	mods := make([]DynamicMod, 0, len(residues))
	for i := 0; i < len(residues); i++ {
		mods = append(mods, DynamicMod{
			Name:             name,
			Unmod:            residues[i],
			UserChar:         userChar,
			Mass:             mass,
			AvgMass:          mass,
			NTerminalFilters: append([]ResidueFilter(nil), filters[:modIndex]...),
			CTerminalFilters: append([]ResidueFilter(nil), filters[modIndex+1:]...),
		})
	}
	return mods, nil
}

func parseMotif(motif string) ([]ResidueFilter, int, error) {
	var filters []ResidueFilter
	modIndex := -1
	for i := 0; i < len(motif); i++ {
		c := motif[i]
		switch {
		case c == '[' || c == '{':
			closing := byte(']')
			if c == '{' {
				closing = '}'
			}
			end := strings.IndexByte(motif[i+1:], closing)
			if end < 0 {
				return nil, 0, fmt.Errorf("motif %q: unterminated residue class", motif)
			}
			class := motif[i+1 : i+1+end]
			if err := checkResidues(motif, class); err != nil {
				return nil, 0, err
			}
			filters = append(filters, NewResidueFilter(class, c == '{'))
			i += end + 1
		case c == '!':
			if len(filters) == 0 || modIndex >= 0 {
				return nil, 0, fmt.Errorf("motif %q: misplaced '!'", motif)
			}
			modIndex = len(filters) - 1
		default:
			if err := checkResidues(motif, string(c)); err != nil {
				return nil, 0, err
			}
			filters = append(filters, NewResidueFilter(string(c), false))
		}
	}
	if len(filters) == 0 {
		return nil, 0, fmt.Errorf("empty motif")
	}
	if modIndex < 0 {
		modIndex = len(filters) - 1
	}
	return filters, modIndex, nil
}

func checkResidues(motif, residues string) error {
	for i := 0; i < len(residues); i++ {
		r := residues[i]
		if r == NTerminusSymbol || r == CTerminusSymbol {
			continue
		}
		if _, ok := AminoAcidMasses[rune(r)]; !ok {
			return fmt.Errorf("motif %q: unknown residue '%c'", motif, r)
		}
	}
	return nil
}

// StaticMod is applied to every occurrence of its residue.
type StaticMod struct {
	Residue byte // residue, or a terminus symbol
	Mass    float64
}

// Modification returns the map entry for the modification.
func (s StaticMod) Modification() Modification {
	return Modification{Mass: s.Mass, AvgMass: s.Mass}
}

// StaticModSet is an ordered collection of static modifications.
type StaticModSet []StaticMod

// Find returns the first static modification on a residue.
func (s StaticModSet) Find(r byte) (StaticMod, bool) {
	for _, mod := range s {
		if mod.Residue == r {
			return mod, true
		}
	}
	return StaticMod{}, false
}

func (s StaticModSet) String() string {
	parts := make([]string, 0, len(s))
	for _, mod := range s {
		parts = append(parts, fmt.Sprintf("%c %g", mod.Residue, mod.Mass))
	}
	return strings.Join(parts, " ")
}

// ParseStaticMods parses "residue mass" pairs, e.g. "C 57.021464" or
// "C Carbamidomethyl".
func ParseStaticMods(cfg string, db *ModDatabase) (StaticModSet, error) {
	fields := strings.Fields(cfg)
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("static mods %q: expected pairs of 'residue mass'", cfg)
	}
	var set StaticModSet
	for i := 0; i < len(fields); i += 2 {
		if len(fields[i]) != 1 {
			return nil, fmt.Errorf("static mods: residue %q must be a single character", fields[i])
		}
		if err := checkResidues(fields[i], fields[i]); err != nil {
			return nil, err
		}
		mass, err := db.resolveMass(fields[i+1])
		if err != nil {
			return nil, fmt.Errorf("static mods: %w", err)
		}
		set = append(set, StaticMod{Residue: fields[i][0], Mass: mass})
	}
	return set, nil
}

// DefaultModDatabase returns a ModDatabase pre-loaded with common modifications
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()

	// Common modifications from unimod
	db.Add("Acetyl", 42.010565)
	db.Add("Amidated", -0.984016)
	db.Add("Biotin", 226.077598)
	db.Add("Carbamidomethyl", 57.021464)
	db.Add("Carbamyl", 43.005814)
	db.Add("Carboxymethyl", 58.005479)
	db.Add("Deamidated", 0.984016)
	db.Add("Met->Hse", -29.992806)
	db.Add("Met->Hsl", -48.003371)
	db.Add("Phospho", 79.966331)
	db.Add("Dehydrated", -18.010565)
	db.Add("Glu->pyro-Glu", -18.010565)
	db.Add("Gln->pyro-Glu", -17.026549)
	db.Add("Cation:Na", 21.981943)
	db.Add("Methyl", 14.01565)
	db.Add("Oxidation", 15.994915)
	db.Add("Dimethyl", 28.0313)
	db.Add("Trimethyl", 42.04695)
	db.Add("Sulfo", 79.956815)
	db.Add("Hex", 162.052824)
	db.Add("HexNAc", 203.079373)
	db.Add("Propionyl", 56.026215)
	db.Add("TMT6plex", 229.162932)
	db.Add("TMTpro", 304.207146)
	db.Add("iTRAQ4plex", 144.102063)
	db.Add("iTRAQ8plex", 304.205360)

	return db
}
