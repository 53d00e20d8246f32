package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/astra-mentor/astra/internal/daemon"
	"github.com/astra-mentor/astra/internal/domain"
)

func init() {
	awardCmd.Flags().StringVar(&awardUser, "user", "", "Child user id (required)")
	awardCmd.Flags().Int64Var(&awardAmount, "amount", 0, "XP to award, a positive integer (required)")
	awardCmd.Flags().StringVar(&awardReason, "reason", "Manual award", "Reason recorded in the XP log")
	awardCmd.Flags().StringVar(&awardSkill, "skill", "", "Skill to credit: communication, problem_solving, leadership")
	_ = awardCmd.MarkFlagRequired("user")
	_ = awardCmd.MarkFlagRequired("amount")
	rootCmd.AddCommand(awardCmd)
}

var (
	awardUser   string
	awardAmount int64
	awardReason string
	awardSkill  string
)

var awardCmd = &cobra.Command{
	Use:   "award",
	Short: "Award XP to a child",
	Example: `  astra award --user kid-1 --amount 25 --reason "Session complete"
  astra award --user kid-1 --amount 10 --skill leadership`,
	RunE: runAward,
}

func runAward(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	var skill *domain.SkillName
	if awardSkill != "" {
		s := domain.SkillName(awardSkill)
		skill = &s
	}

	res, err := d.Engine.AwardXP(cmd.Context(), awardUser, awardAmount, awardReason, skill)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "+%d XP for %s (total %d, level %d)\n", awardAmount, awardUser, res.NewXP, res.NewLevel)
	if res.LeveledUp {
		fmt.Fprintf(out, "Level up! Now level %d\n", res.NewLevel)
	}
	if len(res.BadgesEarned) > 0 {
		fmt.Fprintf(out, "New badges: %s\n", strings.Join(res.BadgesEarned, ", "))
	}
	return nil
}
