// Package filter provides peak and tag preprocessing for query spectra
package filter

import (
	"sort"

	"github.com/ChrisMcGann/tagrecon/pkg/core"
)

// Config holds filtering configuration
type Config struct {
	TopN            int     // Keep only top N most intense peaks (0 = no limit)
	IntensityCutoff float64 // Keep only peaks above this % of base peak (0 = no cutoff)
	MaxTagCount     int     // Keep only the N best scoring tags (0 = no limit)
}

// Apply applies all configured filters to a spectrum
func (c *Config) Apply(spec *core.Spectrum) {
	RemoveZeroIntensityPeaks(spec)

	// Apply intensity filters
	if c.IntensityCutoff > 0 {
		c.filterByIntensity(spec)
	}

	// Apply top-N filter
	if c.TopN > 0 {
		c.filterTopN(spec)
	}

	if c.MaxTagCount > 0 {
		c.filterTags(spec)
	}

	// Ensure peaks are sorted after all filtering
	spec.SortPeaks()
}

// filterByIntensity removes peaks below the intensity cutoff percentage
func (c *Config) filterByIntensity(spec *core.Spectrum) {
	if len(spec.Peaks) == 0 {
		return
	}

	// Find maximum intensity
	maxIntensity := 0.0
	for _, peak := range spec.Peaks {
		if peak.Intensity > maxIntensity {
			maxIntensity = peak.Intensity
		}
	}

	// Calculate threshold
	threshold := (c.IntensityCutoff / 100.0) * maxIntensity

	// Filter peaks
	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if peak.Intensity >= threshold {
			filtered = append(filtered, peak)
		}
	}

	spec.Peaks = filtered
}

// filterTopN keeps only the N most intense peaks
func (c *Config) filterTopN(spec *core.Spectrum) {
	if len(spec.Peaks) <= c.TopN {
		return
	}

	// Create a copy and sort by intensity descending
	peaks := make([]core.Peak, len(spec.Peaks))
	copy(peaks, spec.Peaks)

	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Intensity > peaks[j].Intensity
	})

	// Keep only top N
	spec.Peaks = peaks[:c.TopN]
}

// filterTags keeps the best scoring tags, preserving their original order
func (c *Config) filterTags(spec *core.Spectrum) {
	if len(spec.Tags) <= c.MaxTagCount {
		return
	}

	order := make([]int, len(spec.Tags))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return spec.Tags[order[i]].Score > spec.Tags[order[j]].Score
	})
	keep := order[:c.MaxTagCount]
	sort.Ints(keep)

	tags := make([]core.TagInfo, 0, len(keep))
	for _, i := range keep {
		tags = append(tags, spec.Tags[i])
	}
	spec.Tags = tags
}

// RemoveZeroIntensityPeaks removes peaks with zero or negative intensity
func RemoveZeroIntensityPeaks(spec *core.Spectrum) {
	var filtered []core.Peak
	for _, peak := range spec.Peaks {
		if peak.Intensity > 0 {
			filtered = append(filtered, peak)
		}
	}
	spec.Peaks = filtered
}
