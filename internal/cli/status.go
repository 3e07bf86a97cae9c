package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/kofuk/premises-launcher/internal/entity/launcher"
	"github.com/spf13/cobra"
)

type Status struct {
	app *App
}

func NewStatusCommand(app *App) *cobra.Command {
	status := &Status{app: app}

	return &cobra.Command{
		Use:   "status",
		Short: "Show the game status and launcher configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return status.Run(cmd)
		},
	}
}

func (s *Status) Run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	state := s.app.state

	game, sub, err := state.GameStatus.Load(ctx)
	if err != nil {
		return err
	}
	state.Track(sub)

	cfg, sub, err := state.Config.Load(ctx)
	if err != nil {
		return err
	}
	state.Track(sub)

	info, sub, err := state.ModpackInfo.Load(ctx)
	if err != nil {
		return err
	}
	state.Track(sub)

	memory, sub, err := state.SystemMemory.Load(ctx)
	if err != nil {
		return err
	}
	state.Track(sub)

	writeStatus(cmd.OutOrStdout(), game, cfg, info, memory)
	return nil
}

func writeStatus(w io.Writer, game launcher.GameStatus, cfg launcher.LauncherConfig, info *launcher.ModpackInfo, memory uint64) {
	fmt.Fprintf(w, "Game:     %s\n", game)

	switch {
	case !cfg.IsLoggedIn():
		fmt.Fprintln(w, "Account:  not logged in")
	case cfg.Authentication.IsOnline():
		fmt.Fprintf(w, "Account:  %s (Microsoft)\n", cfg.Authentication.Username())
	default:
		fmt.Fprintf(w, "Account:  %s (offline)\n", cfg.Authentication.Username())
	}

	if memory > 0 {
		fmt.Fprintf(w, "Memory:   %d MiB of %d MiB\n", cfg.MemoryMax, memory/1024/1024)
	} else {
		fmt.Fprintf(w, "Memory:   %d MiB\n", cfg.MemoryMax)
	}

	if len(cfg.Providers) > 0 {
		fmt.Fprintf(w, "Sources:  %s\n", strings.Join(cfg.Providers, ", "))
	}

	if info == nil {
		return
	}
	fmt.Fprintf(w, "Modpack:  Minecraft %s, Forge %s\n", info.MinecraftVersion, info.ForgeVersion)
	for _, opt := range info.Optionals {
		mark := " "
		if cfg.IsSelected(opt.ID) {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%s] %s (%s)\n", mark, opt.Name, opt.ID)
	}
}
