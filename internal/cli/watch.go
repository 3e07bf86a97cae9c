package cli

import (
	"context"
	"fmt"

	"github.com/kofuk/premises-launcher/internal/entity/launcher"
	"github.com/kofuk/premises-launcher/internal/rpc"
	"github.com/kofuk/premises-launcher/internal/store"
	"github.com/spf13/cobra"
)

type Watch struct {
	app *App
}

func NewWatchCommand(app *App) *cobra.Command {
	watch := &Watch{app: app}

	return &cobra.Command{
		Use:   "watch",
		Short: "Print every state change until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch.Run(cmd)
		},
	}
}

func (w *Watch) Run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	state := w.app.state

	// Subscribers run on the connection's read loop, so printing is handed
	// to this goroutine.
	box := newOutbox(256)
	send := func(line string) {
		box.send(message{text: line})
	}

	state.Track(state.GameStatus.Subscribe(func(status launcher.GameStatus) {
		send("status: " + status.String())
	}))
	state.Track(state.Progress.Subscribe(func(progress *launcher.Progress) {
		if progress != nil {
			send(formatProgress(progress))
		}
	}))
	state.Track(state.Config.Subscribe(func(cfg launcher.LauncherConfig) {
		if cfg.IsLoggedIn() {
			send("account: " + cfg.Authentication.Username())
		} else {
			send("account: -")
		}
	}))
	state.Track(state.SystemMemory.Subscribe(func(memory uint64) {
		if memory != 0 {
			send(fmt.Sprintf("memory: %d MiB", memory/1024/1024))
		}
	}))
	state.Track(state.ModpackInfo.Subscribe(func(info *launcher.ModpackInfo) {
		if info != nil {
			send(fmt.Sprintf("modpack: Minecraft %s, Forge %s", info.MinecraftVersion, info.ForgeVersion))
		}
	}))
	watchLog := func(logs *store.LogStore, prefix string) {
		var prev []string
		state.Track(logs.Subscribe(func(next []string) {
			for _, line := range newLines(prev, next) {
				send(prefix + line)
			}
			prev = next
		}))
	}
	watchLog(state.LauncherLogs, "launcher: ")
	watchLog(state.GameLogs, "game: ")

	followCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-w.app.host.Done():
			stop()
		case <-followCtx.Done():
		}
	}()

	follow(followCtx, cmd.OutOrStdout(), box, false)

	select {
	case <-w.app.host.Done():
		return rpc.ErrClosed
	default:
		return nil
	}
}

func formatProgress(p *launcher.Progress) string {
	return fmt.Sprintf("%s %3.0f%%", p.Status, p.Ratio()*100)
}
