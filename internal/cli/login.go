package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type Login struct {
	app *App
}

func NewLoginCommand(app *App) *cobra.Command {
	login := &Login{app: app}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to play",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "offline USERNAME",
			Short: "Play offline under the given name",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return login.Offline(cmd, args[0])
			},
		},
		&cobra.Command{
			Use:   "msa",
			Short: "Log in with a Microsoft account",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return login.Microsoft(cmd)
			},
		},
	)

	return cmd
}

func (l *Login) Offline(cmd *cobra.Command, username string) error {
	if err := l.app.state.Auth.LoginOffline(cmd.Context(), username); err != nil {
		return err
	}
	return l.printAccount(cmd)
}

func (l *Login) Microsoft(cmd *cobra.Command) error {
	if err := l.app.state.Auth.LoginMicrosoft(cmd.Context()); err != nil {
		return err
	}
	return l.printAccount(cmd)
}

// printAccount reads the configuration back from the host, which is what
// every other client sees after the login.
func (l *Login) printAccount(cmd *cobra.Command) error {
	cfg, sub, err := l.app.state.Config.Load(cmd.Context())
	if err != nil {
		return err
	}
	l.app.state.Track(sub)

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", cfg.Authentication.Username())
	return nil
}

func NewLogoutCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the current account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			_, sub, err := app.state.Config.Load(ctx)
			if err != nil {
				return err
			}
			app.state.Track(sub)

			if err := app.state.Config.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
