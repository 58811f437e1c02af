package cli

import (
	"github.com/spf13/cobra"
)

func teamsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "teams",
		Aliases: []string{"team"},
		Short:   "Manage teams and memberships",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List your teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			teams, err := app.client().Teams(cmd.Context())
			if err != nil {
				return err
			}
			printTeams(app.Out, teams)
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a team; you become its admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			team, err := app.client().CreateTeam(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			app.printf("Created team %s (%s)\n", team.Name, team.ID)
			return nil
		},
	}

	members := &cobra.Command{
		Use:   "members <team-id>",
		Short: "List memberships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := app.client().Members(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printMembers(app.Out, list)
			return nil
		},
	}

	var role string
	invite := &cobra.Command{
		Use:   "invite <team-id> <email>",
		Short: "Add a registered user to a team",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.client().Invite(cmd.Context(), args[0], args[1], role)
			if err != nil {
				return err
			}
			app.printf("Added %s as %v (membership %s)\n", args[1], m.Roles, m.ID)
			return nil
		},
	}
	invite.Flags().StringVar(&role, "role", "member", "member or admin")

	setRole := &cobra.Command{
		Use:   "role <team-id> <membership-id> <role>",
		Short: "Change a member's role",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := app.client().SetRole(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			app.printf("Membership %s now has roles %v\n", m.ID, m.Roles)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <team-id> <membership-id>",
		Short: "Remove a membership",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.client().RemoveMember(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			app.printf("Removed membership %s\n", args[1])
			return nil
		},
	}

	cmd.AddCommand(list, create, members, invite, setRole, remove)
	return cmd
}
