// Package unimod reads modification definitions from Unimod XML. A small
// set of common modifications is embedded as the default database.
package unimod

import (
	_ "embed"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/ChrisMcGann/tagrecon/pkg/core"
	"github.com/ChrisMcGann/tagrecon/pkg/deltamass"
)

//go:embed common.xml
var commonXML string

// Specificity is one site a modification may occupy.
type Specificity struct {
	Site           string `xml:"site,attr"`
	Position       string `xml:"position,attr"`
	Classification string `xml:"classification,attr"`
	Hidden         bool   `xml:"hidden,attr"`
}

// Modification is one Unimod record.
type Modification struct {
	Title         string        `xml:"title,attr"`
	FullName      string        `xml:"full_name,attr"`
	RecordID      int           `xml:"record_id,attr"`
	Specificities []Specificity `xml:"specificity"`
	Delta         struct {
		MonoMass    float64 `xml:"mono_mass,attr"`
		AvgMass     float64 `xml:"avge_mass,attr"`
		Composition string  `xml:"composition,attr"`
	} `xml:"delta"`
}

type document struct {
	Modifications []Modification `xml:"modifications>mod"`
}

// Read decodes the modifications of a Unimod XML document.
func Read(reader io.Reader) ([]Modification, error) {
	var doc document
	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel
	if err := d.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode unimod XML: %w", err)
	}
	return doc.Modifications, nil
}

// Default returns the embedded common modifications.
func Default() []Modification {
	mods, err := Read(strings.NewReader(commonXML))
	if err != nil {
		panic(fmt.Sprintf("unimod: embedded modifications are invalid: %v", err))
	}
	return mods
}

// Load reads the Unimod XML file at path, or returns the embedded
// modifications when path is empty.
func Load(path string) ([]Modification, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open unimod file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// KnownMods flattens modifications into one entry per distinct site.
// Sites "N-term" and "C-term" map to the peptide terminus symbols. Hidden
// specificities are skipped unless includeHidden is set.
func KnownMods(mods []Modification, includeHidden bool) []deltamass.KnownMod {
	var known []deltamass.KnownMod
	for _, mod := range mods {
		seen := make(map[byte]bool)
		for _, spec := range mod.Specificities {
			if spec.Hidden && !includeHidden {
				continue
			}
			residue, ok := siteResidue(spec.Site)
			if !ok || seen[residue] {
				continue
			}
			seen[residue] = true
			known = append(known, deltamass.KnownMod{
				Name:    mod.Title,
				Residue: residue,
				Mass:    mod.Delta.MonoMass,
				AvgMass: mod.Delta.AvgMass,
			})
		}
	}
	return known
}

func siteResidue(site string) (byte, bool) {
	switch site {
	case "N-term":
		return core.NTerminusSymbol, true
	case "C-term":
		return core.CTerminusSymbol, true
	}
	if len(site) == 1 {
		if _, ok := core.AminoAcidMasses[rune(site[0])]; ok {
			return site[0], true
		}
	}
	return 0, false
}
