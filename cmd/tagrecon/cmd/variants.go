package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/tagrecon/pkg/ptm"
)

var variantsCmd = &cobra.Command{
	Use:   "variants [flags] PEPTIDE...",
	Short: "List the modified variants of peptides",
	Long: `List every variant of each peptide produced by the configured static and
dynamic modifications, in the order the search enumerates them.

Examples:
  tagrecon variants --dynamic-mods "M * 15.995 [STY] # 79.966" PVSPLLLASGMAR`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVariants,
}

func init() {
	addModFlags(variantsCmd.Flags())
}

func runVariants(cmd *cobra.Command, args []string) error {
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
		plan := ptm.NewPlan(peptide, cfg.MaxDynamicMods, cfg.Dynamic(), cfg.Static(), cfg.MaxNumPeptideVariants)
		fmt.Printf("%s: %d sites, %d variants\n", peptide.Sequence, len(plan.Sites()), plan.Count())
		if plan.Skipped() {
			fmt.Printf("  over the limit of %d variants; searched unmodified\n", cfg.MaxNumPeptideVariants)
		}
		for _, v := range plan.Variants(true) {
			fmt.Printf("  %-40s %.4f\n", v.InterpretationFor(model), v.NeutralMass(model))
		}
	}
	return nil
}
