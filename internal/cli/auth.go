package cli

import (
	"github.com/spf13/cobra"

	"github.com/taskflow/backend/api/transport"
	"github.com/taskflow/backend/pkg/client"
)

func registerCmd(app *App) *cobra.Command {
	var req transport.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := app.client().Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			app.printf("Registered %s <%s>. Sign in with `taskflow login`.\n", user.Name, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "password")
	cmd.Flags().StringVar(&req.ConfirmPassword, "confirm", "", "password confirmation")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func loginCmd(app *App) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := app.client()
			token, err := c.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := app.Tokens.Set(app.tokenKey(), token.Token); err != nil {
				return err
			}
			app.printf("Signed in, session valid until %s\n", token.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd(app *App) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			revoked := 1
			if all {
				revoked, err = app.client().LogoutAll(cmd.Context())
			} else {
				err = app.client().Logout(cmd.Context())
			}
			if err != nil && !client.IsUnauthorized(err) {
				return err
			}
			if err := app.Tokens.Delete(app.tokenKey()); err != nil {
				return err
			}
			if all {
				app.printf("Signed out of %d sessions\n", revoked)
				return nil
			}
			app.printf("Signed out\n")
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "revoke every session of this account")
	return cmd
}

func whoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := app.client().Account(cmd.Context())
			if err != nil {
				return err
			}
			app.printf("%s <%s> (%s)\n", user.Name, user.Email, user.ID)
			return nil
		},
	}
}
