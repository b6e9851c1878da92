package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/rulesmith/internal/rules"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate an exported rule against a subject's facts",
	Long: `Reads a rule (the exported JSON document) and a facts file mapping each
data source to that subject's rows, and prints the match result as JSON.`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().String("rule", "", "rule JSON file (required)")
	evaluateCmd.Flags().String("facts", "", "facts JSON file: {\"<source>\": [{...row...}]} (required)")
	evaluateCmd.Flags().String("as-of", "", "evaluation date, YYYY-MM-DD (default today)")
	evaluateCmd.MarkFlagRequired("rule")
	evaluateCmd.MarkFlagRequired("facts")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	rulePath, _ := cmd.Flags().GetString("rule")
	factsPath, _ := cmd.Flags().GetString("facts")
	asOfRaw, _ := cmd.Flags().GetString("as-of")

	asOf := time.Now()
	if asOfRaw != "" {
		asOf, err = time.Parse("2006-01-02", asOfRaw)
		if err != nil {
			return fmt.Errorf("invalid --as-of %q: %w", asOfRaw, err)
		}
	}

	ruleData, err := os.ReadFile(rulePath)
	if err != nil {
		return fmt.Errorf("failed to read rule: %w", err)
	}
	rs, err := rules.DecodeRuleSet(ruleData)
	if err != nil {
		return err
	}
	// Rules may come from outside this tool; resolve references before compiling.
	rs, err = a.validator.Validate(rs, a.registry)
	if err != nil {
		return err
	}
	compiled, err := rules.Compile(rs, a.registry, a.cfg.Schema.DateFields)
	if err != nil {
		return err
	}

	factsData, err := os.ReadFile(factsPath)
	if err != nil {
		return fmt.Errorf("failed to read facts: %w", err)
	}
	var facts rules.Facts
	if err := json.Unmarshal(factsData, &facts); err != nil {
		return fmt.Errorf("invalid facts file: %w", err)
	}

	result := rules.Evaluate(compiled, facts, asOf)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
