package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/rulesmith/internal/conversation"
	"github.com/solatis/rulesmith/internal/types"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect recorded generation attempts",
	Long: `Lists generation attempts from the audit database. With --session, every
attempt of that session oldest first; with --summary, counts per outcome;
otherwise the most recent attempts.`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().String("session", "", "list the attempts of one session")
	auditCmd.Flags().Int("recent", 20, "number of recent attempts to list")
	auditCmd.Flags().Bool("summary", false, "count attempts per outcome")
}

func runAudit(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	store, closeDB, err := a.openAudit()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if summary, _ := cmd.Flags().GetBool("summary"); summary {
		counts, err := store.OutcomeCounts(ctx)
		if err != nil {
			return err
		}
		return writeOutcomeCounts(out, counts)
	}

	var attempts []conversation.Attempt
	if raw, _ := cmd.Flags().GetString("session"); raw != "" {
		id, err := types.ParseSessionID(raw)
		if err != nil {
			return err
		}
		attempts, err = store.ListBySession(ctx, id)
		if err != nil {
			return err
		}
	} else {
		limit, _ := cmd.Flags().GetInt("recent")
		attempts, err = store.Recent(ctx, limit)
		if err != nil {
			return err
		}
	}
	return writeAttempts(out, attempts)
}

func writeAttempts(out io.Writer, attempts []conversation.Attempt) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tSESSION\tPHASE\tOUTCOME\tRULES\tMS\tMODEL\tERROR")
	for _, at := range attempts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			at.CreatedAt.Format("2006-01-02 15:04:05"),
			at.SessionID,
			at.Phase,
			at.Outcome,
			at.RuleCount,
			at.Duration.Milliseconds(),
			at.Model,
			at.Error,
		)
	}
	return w.Flush()
}

func writeOutcomeCounts(out io.Writer, counts map[conversation.Outcome]int) error {
	outcomes := make([]string, 0, len(counts))
	for o := range counts {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OUTCOME\tATTEMPTS")
	for _, o := range outcomes {
		fmt.Fprintf(w, "%s\t%d\n", o, counts[conversation.Outcome(o)])
	}
	return w.Flush()
}
