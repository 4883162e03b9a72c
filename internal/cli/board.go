package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"goalboard.org/internal/goals"
)

// NewBoardCommand renders the group board: one column per member, in
// first-appearance order, each goal with its progress.
func NewBoardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Show the shared board of the selected group",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.close()

			group, err := app.sessions.RequireGroup()
			if err != nil {
				return friendlyError(err)
			}
			ctx, err := app.authedContext(cmd.Context())
			if err != nil {
				return friendlyError(err)
			}

			list, err := app.svc.ListGroupGoals(ctx, group.ID)
			if err != nil {
				return friendlyError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "== %s ==\n", group.Name)
			columns := goals.Board(list)
			if len(columns) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "The board is empty.")
				return nil
			}
			for _, col := range columns {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", col.Owner.Name)
				for _, goal := range col.Goals {
					fmt.Fprintf(cmd.OutOrStdout(), "  %3d%%  %s [%s]\n",
						goals.Progress(goal), goal.Title, goal.Status)
				}
			}
			return nil
		},
	}
}
