package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/astra-mentor/astra/internal/daemon"
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show (max 100)")
	rootCmd.AddCommand(historyCmd)
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <user>",
	Short: "Show a child's recent XP log",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	txs, err := d.Engine.History(cmd.Context(), args[0], historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(txs) == 0 {
		fmt.Fprintf(out, "No XP yet for %s.\n", args[0])
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tXP\tSKILL\tREASON")
	for _, tx := range txs {
		skill := "-"
		if tx.SkillAffected != nil {
			skill = string(*tx.SkillAffected)
		}
		fmt.Fprintf(w, "%s\t+%d\t%s\t%s\n", tx.CreatedAt.Local().Format("2006-01-02 15:04"), tx.Amount, skill, tx.Reason)
	}
	return w.Flush()
}
