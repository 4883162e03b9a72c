package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewGroupCommand groups the membership subcommands.
func NewGroupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Create, join and select groups",
	}
	cmd.AddCommand(newGroupCreateCommand(rootOpts))
	cmd.AddCommand(newGroupListCommand(rootOpts))
	cmd.AddCommand(newGroupJoinCommand(rootOpts))
	cmd.AddCommand(newGroupSelectCommand(rootOpts))
	return cmd
}

func newGroupCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group and select it",
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
			group, err := app.svc.CreateGroup(ctx, args[0], description)
			if err != nil {
				return friendlyError(err)
			}
			if err := app.sessions.SelectGroup(cmd.Context(), group); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Group %q created. Invite code: %s\n", group.Name, group.InviteCode)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "group description")
	return cmd
}

func newGroupListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your groups",
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
			list, err := app.svc.ListGroups(ctx)
			if err != nil {
				return friendlyError(err)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "You are not in any group yet.")
				return nil
			}
			selected := ""
			if g := app.sessions.CurrentGroup(); g != nil {
				selected = g.ID
			}
			for _, g := range list {
				marker := " "
				if g.ID == selected {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s  (%d members, invite %s)\n",
					marker, g.ID, g.Name, len(g.MemberIDs), g.InviteCode)
			}
			return nil
		},
	}
}

func newGroupJoinCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "join <invite-code>",
		Short: "Join a group by invite code and select it",
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
			group, err := app.svc.JoinGroup(ctx, args[0])
			if err != nil {
				return friendlyError(err)
			}
			if err := app.sessions.SelectGroup(cmd.Context(), group); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Joined %q (%d members).\n", group.Name, len(group.MemberIDs))
			return nil
		},
	}
}

func newGroupSelectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "select <group-id>",
		Short: "Select the active group",
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
			group, err := app.svc.GetGroup(ctx, args[0])
			if err != nil {
				return friendlyError(err)
			}
			if err := app.sessions.SelectGroup(cmd.Context(), group); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selected %q.\n", group.Name)
			return nil
		},
	}
}
