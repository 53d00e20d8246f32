package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/astra-mentor/astra/internal/daemon"
)

func init() {
	rootCmd.AddCommand(badgesCmd)
}

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "List the badge catalog",
	RunE:  runBadges,
}

func runBadges(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	defs, err := d.Engine.Catalog(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tREQUIREMENT")
	for _, b := range defs {
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s >= %d\n",
			b.ID, b.Icon, b.Name, b.Category, b.RequirementType, b.RequirementValue)
	}
	return w.Flush()
}
