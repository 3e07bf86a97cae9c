package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kofuk/premises-launcher/internal/entity/launcher"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type Start struct {
	app *App
}

func NewStartCommand(app *App) *cobra.Command {
	start := &Start{app: app}

	return &cobra.Command{
		Use:   "start",
		Short: "Start the game and follow it until it exits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return start.Run(cmd)
		},
	}
}

func (s *Start) Run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	state := s.app.state

	status, sub, err := state.GameStatus.Load(ctx)
	if err != nil {
		return err
	}
	state.Track(sub)
	if status.IsRunning() {
		return fmt.Errorf("cannot start: game is %s", status)
	}

	box := s.subscribe()

	followCtx, stop := context.WithCancel(ctx)
	defer stop()

	var eg errgroup.Group

	eg.Go(func() error {
		follow(followCtx, cmd.OutOrStdout(), box, isatty())
		return nil
	})

	eg.Go(func() error {
		defer stop()
		return state.GameStatus.StartGame(ctx)
	})

	return eg.Wait()
}

type message struct {
	text string
	// transient messages are overwritten by the next one on a terminal.
	transient bool
	// dropped counts the messages lost right before this one.
	dropped int
}

// outbox queues messages without blocking the sender. Messages that do not
// fit are counted so the reader can report the gap.
type outbox struct {
	m        sync.Mutex
	messages chan message
	dropped  int
}

func newOutbox(size int) *outbox {
	return &outbox{messages: make(chan message, size)}
}

func (o *outbox) send(msg message) {
	o.m.Lock()
	defer o.m.Unlock()

	msg.dropped = o.dropped
	select {
	case o.messages <- msg:
		o.dropped = 0
	default:
		o.dropped++
	}
}

// takeDropped returns the messages lost after the last queued one.
func (o *outbox) takeDropped() int {
	o.m.Lock()
	defer o.m.Unlock()

	n := o.dropped
	o.dropped = 0
	return n
}

// subscribe turns progress, game log and status updates into messages. The
// subscriptions live until the state is closed.
func (s *Start) subscribe() *outbox {
	state := s.app.state

	box := newOutbox(256)
	send := box.send

	var lastProgress string
	state.Track(state.Progress.Subscribe(func(progress *launcher.Progress) {
		if progress == nil {
			return
		}
		if text := formatProgress(progress); text != lastProgress {
			lastProgress = text
			send(message{text: text, transient: true})
		}
	}))

	var prev []string
	state.Track(state.GameLogs.Subscribe(func(next []string) {
		for _, line := range newLines(prev, next) {
			send(message{text: line})
		}
		prev = next
	}))

	state.Track(state.GameStatus.Subscribe(func(status launcher.GameStatus) {
		send(message{text: "status: " + status.String()})
	}))

	return box
}

// follow prints messages until ctx is done, then prints what is left.
func follow(ctx context.Context, w io.Writer, box *outbox, tty bool) {
	inProgress := false
	reportDropped := func(n int) {
		if n == 0 {
			return
		}
		if inProgress {
			fmt.Fprintln(w)
			inProgress = false
		}
		fmt.Fprintf(w, "(%d messages dropped)\n", n)
	}
	write := func(msg message) {
		reportDropped(msg.dropped)
		switch {
		case msg.transient && tty:
			fmt.Fprintf(w, "\r\033[K%s", msg.text)
			inProgress = true
			return
		case inProgress:
			fmt.Fprintln(w)
			inProgress = false
		}
		fmt.Fprintln(w, msg.text)
	}

	for {
		select {
		case msg := <-box.messages:
			write(msg)
		case <-ctx.Done():
			for {
				select {
				case msg := <-box.messages:
					write(msg)
				default:
					reportDropped(box.takeDropped())
					if inProgress {
						fmt.Fprintln(w)
					}
					return
				}
			}
		}
	}
}
