package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"goalboard.org/internal/goals"
)

// NewGoalCommand groups the goal subcommands.
func NewGoalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Manage your big goals and their checklist items",
	}
	cmd.AddCommand(newGoalAddCommand(rootOpts))
	cmd.AddCommand(newGoalListCommand(rootOpts))
	cmd.AddCommand(newGoalToggleCommand(rootOpts))
	cmd.AddCommand(newGoalDeleteCommand(rootOpts))
	return cmd
}

func newGoalAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		category    string
		description string
		startDate   string
		dueDate     string
		smallTitles []string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a big goal with small checklist goals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.close()

			ctx, err := app.authedContext(cmd.Context())
			if err != nil {
				return friendlyError(err)
			}

			in := goals.GoalInput{
				Category:    goals.Category(category),
				Title:       args[0],
				Description: description,
				StartDate:   startDate,
				DueDate:     dueDate,
			}
			for _, title := range smallTitles {
				in.SmallGoals = append(in.SmallGoals, goals.SmallGoalInput{Title: title})
			}

			goal, err := app.svc.CreateGoal(ctx, in)
			if err != nil {
				return friendlyError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %q (%s) with %d small goals.\n",
				goal.Title, goal.ID, len(goal.SmallGoals))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", string(goals.CategoryPersonal),
		fmt.Sprintf("goal category %v", goals.Categories))
	cmd.Flags().StringVar(&description, "description", "", "goal description")
	cmd.Flags().StringVar(&startDate, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&dueDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringArrayVar(&smallTitles, "small", nil, "small goal title (repeatable)")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func newGoalListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the goals visible in the selected group",
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
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No goals in this group yet.")
				return nil
			}
			for _, goal := range list {
				owner := goal.UserID
				if goal.Owner != nil {
					owner = goal.Owner.Name
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s [%s] %d%%  — %s\n",
					goal.ID, goal.Title, goal.Status, goals.Progress(goal), owner)
				for _, sg := range goal.SmallGoals {
					mark := " "
					if sg.Status == goals.SmallGoalCompleted {
						mark = "x"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "    [%s] %s  %s\n", mark, sg.ID, sg.Title)
				}
			}
			return nil
		},
	}
}

func newGoalToggleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <goal-id> <small-goal-id>",
		Short: "Toggle a small goal between pending and completed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.close()

			ctx, err := app.authedContext(cmd.Context())
			if err != nil {
				return friendlyError(err)
			}

			goal, err := app.svc.GetGoal(ctx, args[0])
			if err != nil {
				return friendlyError(err)
			}
			next := goals.SmallGoalCompleted
			for _, sg := range goal.SmallGoals {
				if sg.ID == args[1] && sg.Status == goals.SmallGoalCompleted {
					next = goals.SmallGoalPending
				}
			}

			sg, err := app.svc.UpdateSmallGoal(ctx, args[0], args[1], goals.SmallGoalPatch{Status: &next})
			if err != nil {
				return friendlyError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s.\n", sg.Title, sg.Status)
			return nil
		},
	}
}

func newGoalDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <goal-id>",
		Short: "Delete one of your goals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.close()

			ctx, err := app.authedContext(cmd.Context())
			if err != nil {
				return friendlyError(err)
			}
			if err := app.svc.DeleteGoal(ctx, args[0]); err != nil {
				return friendlyError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Goal deleted.")
			return nil
		},
	}
}
