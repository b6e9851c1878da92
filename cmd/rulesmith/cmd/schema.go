package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/rulesmith/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the data sources rules may reference",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.logger.Sync()

		out := cmd.OutOrStdout()
		for _, src := range a.registry.Snapshot() {
			fmt.Fprintf(out, "%s\n  fields: %s\n", src.Name, strings.Join(src.Fields, ", "))
			if df := schema.DateField(a.registry, src.Name, a.cfg.Schema.DateFields); df != "" {
				fmt.Fprintf(out, "  date field: %s\n", df)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
