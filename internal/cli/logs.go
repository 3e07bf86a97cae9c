package cli

import (
	"fmt"
	"io"

	"github.com/kofuk/premises-launcher/internal/rpc"
	"github.com/kofuk/premises-launcher/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
)

type Logs struct {
	app    *App
	Game   bool
	Follow bool
}

func NewLogsCommand(app *App) *cobra.Command {
	logs := &Logs{app: app}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the launcher log, or the game log with --game",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return logs.Run(cmd)
		},
	}

	flags := cmd.Flags()

	flags.BoolVarP(&logs.Game, "game", "g", false, "Print the game log instead of the launcher log")
	flags.BoolVarP(&logs.Follow, "follow", "f", false, "Keep printing lines as they arrive")

	return cmd
}

func (l *Logs) store() *store.LogStore {
	if l.Game {
		return l.app.state.GameLogs
	}
	return l.app.state.LauncherLogs
}

func (l *Logs) Run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	logs := l.store()

	lines, sub, err := logs.Load(ctx)
	if err != nil {
		return err
	}
	l.app.state.Track(sub)

	writeLines(w, lines)
	if !l.Follow {
		return nil
	}

	updates := make(chan []string, 1)
	l.app.state.Track(logs.Subscribe(func(lines []string) {
		// Only the newest buffer matters; drop an unread older one.
		select {
		case <-updates:
		default:
		}
		updates <- lines
	}))

	prev := lines
	for {
		select {
		case next := <-updates:
			writeLines(w, newLines(prev, next))
			prev = next
		case <-ctx.Done():
			return nil
		case <-l.app.host.Done():
			return rpc.ErrClosed
		}
	}
}

func writeLines(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

// newLines returns the lines of next that were not in prev. next is prev with
// lines appended and, once the buffer is full, some dropped from the front.
func newLines(prev, next []string) []string {
	for shift := 0; shift < len(prev); shift++ {
		kept := prev[shift:]
		if len(kept) <= len(next) && slices.Equal(kept, next[:len(kept)]) {
			return next[len(kept):]
		}
	}
	return next
}
