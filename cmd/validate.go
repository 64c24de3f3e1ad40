package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/basebox/internal/build"
)

var validateCmd = &cobra.Command{
	Use:   "validate -f <recipe>",
	Short: "Check a recipe without building it",
	Long: `Parses a recipe, checks its settings and the shell syntax of every step,
and prints the build it describes. Nothing is booted.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

var validateFile string

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "Recipe file (YAML)")
	_ = validateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	r, err := build.LoadRecipe(validateFile)
	if err != nil {
		return err
	}
	cfg, err := r.Config()
	if err != nil {
		return err
	}

	base := cfg.Base
	if base == "" {
		base = current().Config.DefaultBase + " (default)"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Recipe:  %s\n", validateFile)
	if cfg.Name != "" {
		fmt.Fprintf(out, "Box:     %s\n", cfg.Name)
	}
	if cfg.Output != "" {
		fmt.Fprintf(out, "Package: %s\n", cfg.Output)
	}
	fmt.Fprintf(out, "Base:    %s\n", base)
	fmt.Fprintf(out, "Steps:   %d\n", len(r.Steps))
	for _, s := range cfg.Modify {
		fmt.Fprintf(out, "Modify:  %s\n", s)
	}

	logSuccess("Recipe is valid")
	return nil
}
