// Package tagindex indexes the sequence tags extracted from query spectra.
package tagindex

import (
	"math"
	"sort"

	"github.com/ChrisMcGann/tagrecon/pkg/core"
)

// Entry is one spectrum tag held by the index.
type Entry struct {
	Spectrum int // index into the spectra the index was built from
	Tag      core.TagInfo
}

// Index maps a tag string to its spectrum tags ordered by N-terminal mass.
// It is read-only once built and safe for concurrent queries.
type Index struct {
	maxDeviation float64
	byTag        map[string][]Entry
	size         int
}

// Build indexes the tags of every spectrum. Two tags match when their
// strings are equal and the summed absolute deviation of their flanking
// masses is at most maxDeviation.
func Build(spectra []*core.Spectrum, maxDeviation float64) *Index {
	ix := &Index{
		maxDeviation: maxDeviation,
		byTag:        make(map[string][]Entry),
	}
	for i, s := range spectra {
		for _, tag := range s.Tags {
			ix.byTag[tag.Tag] = append(ix.byTag[tag.Tag], Entry{Spectrum: i, Tag: tag})
			ix.size++
		}
	}
	for _, entries := range ix.byTag {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Tag.NTerminusMass < entries[j].Tag.NTerminusMass
		})
	}
	return ix
}

// MaxDeviation returns the combined flanking mass tolerance.
func (ix *Index) MaxDeviation() float64 {
	return ix.maxDeviation
}

// Len returns the number of indexed tags.
func (ix *Index) Len() int {
	return ix.size
}

// Query returns the spectrum tags matching a candidate peptide tag.
func (ix *Index) Query(tag core.TagInfo) []Entry {
	entries := ix.byTag[tag.Tag]
	if len(entries) == 0 {
		return nil
	}
	lo := sort.Search(len(entries), func(i int) bool {
		return entries[i].Tag.NTerminusMass >= tag.NTerminusMass-ix.maxDeviation
	})
	var matches []Entry
	for i := lo; i < len(entries); i++ {
		e := entries[i]
		dn := math.Abs(e.Tag.NTerminusMass - tag.NTerminusMass)
		if dn > ix.maxDeviation {
			break
		}
		if dn+math.Abs(e.Tag.CTerminusMass-tag.CTerminusMass) <= ix.maxDeviation {
			matches = append(matches, e)
		}
	}
	return matches
}
