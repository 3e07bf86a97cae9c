package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/kofuk/premises-launcher/internal/config"
	"github.com/kofuk/premises-launcher/internal/host"
	"github.com/kofuk/premises-launcher/internal/rpc"
	"github.com/kofuk/premises-launcher/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

// App is what every subcommand works with. The host connection and the
// stores are set up before a subcommand runs and torn down after it.
type App struct {
	Config *config.Config

	host  *host.Client
	state *store.AppState
}

func (a *App) connect(ctx context.Context) error {
	network, address := a.Config.HostEndpoint()

	c, err := rpc.Dial(ctx, network, address, a.Config.DialTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to the launcher host at %s: %w", address, err)
	}
	slog.Debug("Connected to the launcher host", slog.String("address", address))

	a.host = host.NewClient(c)
	a.state = store.NewAppState(a.host)
	return nil
}

func (a *App) close() {
	if a.state != nil {
		a.state.Close()
		a.state = nil
	}
	if a.host != nil {
		a.host.Close()
		a.host = nil
	}
}

func isatty() bool {
	_, err := unix.IoctlGetTermios(syscall.Stdout, unix.TCGETS)
	return err == nil
}

func NewRootCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "launcherctl",
		Short:         "Command line front end of the premises launcher",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.connect(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.close()
		},
	}

	cmd.AddCommand(
		NewStatusCommand(app),
		NewWatchCommand(app),
		NewLogsCommand(app),
		NewLoginCommand(app),
		NewLogoutCommand(app),
		NewStartCommand(app),
		NewConfigCommand(app),
		NewRPCCommand(app),
	)

	return cmd
}

func Run(ctx context.Context, cfg *config.Config, args []string) int {
	app := &App{Config: cfg}
	defer app.close()

	cmd := NewRootCommand(app)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, host.Reason(err))
		return 1
	}

	return 0
}
