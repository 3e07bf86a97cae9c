package store

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/kofuk/premises-launcher/internal/entity/launcher"
	"github.com/kofuk/premises-launcher/internal/host"
)

var (
	ErrGameRunning  = errors.New("game is already running")
	ErrStartPending = errors.New("game start is already in progress")
)

// GameStatusStore mirrors the host's game status. The status is only ever
// changed by the host; StartGame merely asks for it.
type GameStatusStore struct {
	*Cell[launcher.GameStatus]

	h        host.Host
	starting atomic.Bool
}

func NewGameStatusStore(h host.Host) *GameStatusStore {
	return &GameStatusStore{
		Cell: NewCell(h, CellOptions[launcher.GameStatus]{
			Name:        "game_status",
			Default:     launcher.GameIdle,
			FetchMethod: host.MethodGetGameStatus,
			Event:       host.EventGameStatus,
		}),
		h: h,
	}
}

func (s *GameStatusStore) IsRunning() bool {
	return s.Get().IsRunning()
}

// Starting reports whether a start_game request is in flight.
func (s *GameStatusStore) Starting() bool {
	return s.starting.Load()
}

// StartGame asks the host to start the game. At most one request is in
// flight at a time; the guard is released once the host answers, whatever
// the answer is.
func (s *GameStatusStore) StartGame(ctx context.Context) error {
	if s.IsRunning() {
		return ErrGameRunning
	}
	if !s.starting.CompareAndSwap(false, true) {
		return ErrStartPending
	}
	defer s.starting.Store(false)

	return s.h.Invoke(ctx, host.MethodStartGame, nil, nil)
}
