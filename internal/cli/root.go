// Package cli implements the taskflow command line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/taskflow/backend/internal/credential"
	"github.com/taskflow/backend/pkg/client"
)

// Exit codes returned by Run.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitAuth    = 2
	ExitBackend = 3
)

// TokenStore persists session tokens between invocations.
type TokenStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// App carries the dependencies shared by all commands.
type App struct {
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	Dir    string
	Logger *zap.Logger

	// Tokens defaults to the system keyring under Dir.
	Tokens TokenStore
	// ClientOptions are appended when building API clients.
	ClientOptions []client.Option

	viper *viper.Viper
	cfg   *Config
}

func (a *App) setup(cmd *cobra.Command) error {
	if a.Logger == nil {
		a.Logger = zap.NewNop()
	}
	if a.Dir == "" {
		a.Dir = DefaultDir()
	}
	a.viper = newViper(a.Dir)
	if flag := cmd.Flags().Lookup("endpoint"); flag != nil {
		if err := a.viper.BindPFlag("endpoint", flag); err != nil {
			return err
		}
	}
	cfg, err := LoadConfig(a.viper)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.Tokens == nil {
		store, err := credential.Open(a.Dir)
		if err != nil {
			return err
		}
		a.Tokens = store
	}
	return nil
}

func (a *App) tokenKey() string {
	return "session:" + a.cfg.Endpoint
}

// client builds an API client carrying the stored token, if any.
func (a *App) client() *client.Client {
	opts := append([]client.Option{}, a.ClientOptions...)
	token, err := a.Tokens.Get(a.tokenKey())
	switch {
	case err == nil:
		opts = append(opts, client.WithToken(token))
	case !errors.Is(err, credential.ErrNotFound):
		a.Logger.Warn("reading stored token failed", zap.Error(err))
	}
	return client.New(a.cfg.Endpoint, opts...)
}

func (a *App) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.Out, format, args...)
}

// NewRootCommand assembles the command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "taskflow",
		Short:         "TaskFlow command line client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&app.Dir, "config-dir", app.Dir, "configuration directory (default ~/.taskflow)")
	root.PersistentFlags().String("endpoint", "", "API endpoint, overrides the config file")

	root.AddCommand(
		configCmd(app),
		registerCmd(app),
		loginCmd(app),
		logoutCmd(app),
		whoamiCmd(app),
		projectsCmd(app),
		tasksCmd(app),
		commentsCmd(app),
		teamsCmd(app),
		watchCmd(app),
	)
	return root
}

// Run executes the CLI and maps failures onto exit codes. An expired
// session drops the stored token and asks the user to sign in again.
func Run(ctx context.Context, app *App, args []string) int {
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	if client.IsUnauthorized(err) {
		if app.Tokens != nil && app.cfg != nil {
			_ = app.Tokens.Delete(app.tokenKey())
		}
		fmt.Fprintln(app.Err, "Error: not signed in or session expired, run `taskflow login`")
		return ExitAuth
	}
	fmt.Fprintln(app.Err, "Error:", err)
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 500 {
		return ExitBackend
	}
	return ExitError
}

// NewApp returns an App bound to the process streams.
func NewApp(logger *zap.Logger) *App {
	return &App{
		In:     os.Stdin,
		Out:    os.Stdout,
		Err:    os.Stderr,
		Logger: logger,
	}
}

func configCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change CLI configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			app.printf("endpoint: %s\nconfig:   %s\n", app.cfg.Endpoint, app.viper.ConfigFileUsed())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "endpoint <url>",
		Short: "Set the API endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.cfg.Endpoint = args[0]
			if err := SaveConfig(app.Dir, app.cfg); err != nil {
				return err
			}
			app.printf("endpoint set to %s\n", args[0])
			return nil
		},
	})
	return cmd
}
