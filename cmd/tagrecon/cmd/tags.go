package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/tagrecon/pkg/ptm"
	"github.com/ChrisMcGann/tagrecon/pkg/search"
)

var tagsCmd = &cobra.Command{
	Use:   "tags [flags] PEPTIDE...",
	Short: "Print the sequence tags of peptides",
	Long: `Print each sequence tag of a peptide with its N- and C-terminal flanking
masses, as they are matched against spectrum tags during a search. Static
modifications are applied first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTags,
}

func init() {
	addModFlags(tagsCmd.Flags())
	tagsCmd.Flags().Int("tag-length", 3, "Sequence tag length")
}

func runTags(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	model := cfg.MassModel()

	for _, arg := range args {
		peptide, err := parsePeptide(arg)
		if err != nil {
			return err
		}
		peptide = ptm.ApplyStaticMods(peptide, cfg.Static())
		mass := peptide.NeutralMass(model)
		fmt.Printf("%s (%.4f Da)\n", peptide.InterpretationFor(model), mass)
		for _, tag := range search.GetTagsFromSequence(peptide, cfg.TagLength, mass, model) {
			fmt.Printf("  %-3d %-*s %10.4f %10.4f\n", tag.Start, cfg.TagLength, tag.Tag, tag.NTerminusMass, tag.CTerminusMass)
		}
	}
	return nil
}
