package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/astra-mentor/astra/internal/daemon"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats <user>",
	Short: "Show a child's level, streak, skills, and badges",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	dash, err := d.Engine.Dashboard(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	s := dash.Stats
	fmt.Fprintf(out, "%s: level %d, %d XP total\n", s.UserID, s.CurrentLevel, s.TotalXPEarned)
	fmt.Fprintf(out, "  %s %d / %d XP to level %d\n",
		renderBar(dash.Progress.Percentage), dash.Progress.Current, dash.Progress.Required, s.CurrentLevel+1)
	fmt.Fprintf(out, "  streak %d day(s), longest %d\n", s.CurrentStreak, s.LongestStreak)

	logged, err := d.DB.XPTotal(cmd.Context(), s.UserID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  ledger %d XP logged\n", logged)
	if logged != s.TotalXPEarned {
		fmt.Fprintf(out, "  warning: ledger and stats disagree by %d XP\n", s.TotalXPEarned-logged)
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SKILL\tLEVEL\tXP")
	for _, sk := range dash.Skills {
		fmt.Fprintf(w, "%s\t%d\t%d / %d\n", sk.SkillName, sk.CurrentLevel, sk.XPInLevel, sk.XPToNextLevel)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nBadges: %d of %d earned\n", len(dash.EarnedBadges), len(dash.AllBadges))
	for _, b := range dash.EarnedBadges {
		fmt.Fprintf(out, "  %s %s (%s)\n", b.Badge.Icon, b.Badge.Name, b.EarnedAt.Format("2006-01-02"))
	}
	return nil
}
