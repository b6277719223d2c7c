package cmd

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/tagrecon/pkg/reader/msp"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a query spectra file",
	Long: `Validate that an MSP query spectra file is properly formatted and that every
spectrum carries a charge, a precursor mass, sorted peaks and well-formed
tags. Prints the charge distribution and m/z range of the file.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open spectra file: %w", err)
	}
	defer f.Close()

	reader := msp.NewReader(f, path)
	var (
		count, invalid, untagged, peaks, tags int
		charges                               = make(map[int]int)
		minMZ, maxMZ                          = math.Inf(1), math.Inf(-1)
	)
	for reader.Next() {
		spec := reader.Spectrum()
		count++
		if !spec.ArePeaksSorted() {
			spec.SortPeaks()
		}
		if err := spec.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: invalid spectrum %s: %v\n", spec.Name(), err)
			invalid++
			continue
		}
		charges[spec.ID.Charge]++
		peaks += len(spec.Peaks)
		tags += len(spec.Tags)
		if len(spec.Tags) == 0 {
			untagged++
		}
		minMZ = math.Min(minMZ, spec.Peaks[0].MZ)
		maxMZ = math.Max(maxMZ, spec.Peaks[len(spec.Peaks)-1].MZ)
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}

	fmt.Printf("File: %s\n", path)
	fmt.Printf("Spectra: %d (%d valid)\n", count, count-invalid)
	if valid := count - invalid; valid > 0 {
		fmt.Printf("Peaks per spectrum: %.1f\n", float64(peaks)/float64(valid))
		fmt.Printf("Tags per spectrum: %.1f (%d without tags)\n", float64(tags)/float64(valid), untagged)
		fmt.Printf("Fragment m/z range: %.4f - %.4f\n", minMZ, maxMZ)

		var states []int
		for z := range charges {
			states = append(states, z)
		}
		sort.Ints(states)
		for _, z := range states {
			fmt.Printf("Charge %d: %d\n", z, charges[z])
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d spectra are invalid", invalid, count)
	}
	return nil
}
