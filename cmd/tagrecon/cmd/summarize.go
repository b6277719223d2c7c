package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/tagrecon/pkg/writer/sqlite"
)

var (
	// Flags for summarize command
	listTop        int
	maxAnnotations int
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a results database",
	Long: `Print summary statistics about a results database written by the search
command: identified spectra, target and decoy counts, the most frequent
modification annotations and the recorded search statistics.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().IntVar(&listTop, "list", 0, "Also list the top result of the first N spectra")
	summarizeCmd.Flags().IntVar(&maxAnnotations, "annotations", 10, "Number of modification annotations to show")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	s, err := sqlite.ReadSummary(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Database: %s (schema %d, created %s)\n", args[0], s.Version, s.Created)
	if s.Description != "" {
		fmt.Printf("Description: %s\n", s.Description)
	}
	fmt.Printf("Proteins: %d\n", s.Proteins)
	fmt.Printf("Spectra: %d (%d with results)\n", s.Spectra, s.Identified)
	fmt.Printf("Top results: %d targets, %d decoys, %d modified\n", s.Targets, s.Decoys, s.Modified)

	if st := s.Stats; st != nil {
		fmt.Printf("Search: %d proteins, %d peptides, %d variants, %d comparisons, %d workers, %s\n",
			st.Proteins, st.Peptides, st.Variants, st.Comparisons, st.Workers, st.Elapsed)
	}

	names := s.SortedAnnotations()
	if len(names) > 0 {
		fmt.Printf("\nAnnotations:\n")
		for i, name := range names {
			if i >= maxAnnotations {
				fmt.Printf("  ... %d more\n", len(names)-i)
				break
			}
			fmt.Printf("  %-30s %d\n", name, s.Annotations[name])
		}
	}

	if listTop > 0 {
		fmt.Printf("\nTop results:\n")
		for i, top := range s.Top {
			if i >= listTop {
				break
			}
			kind := "target"
			if top.Decoy {
				kind = "decoy"
			}
			fmt.Printf("  %-30s %4d peaks  %-40s %8.3f %+9.3f %-6s %s\n",
				top.Spectrum, len(top.Peaks), top.Interpretation, top.Score, top.ModMass, kind, strings.Join(top.Annotations, ","))
		}
	}
	return nil
}
