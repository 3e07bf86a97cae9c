package store

import (
	"sync"

	"github.com/kofuk/premises-launcher/internal/entity/launcher"
	"github.com/kofuk/premises-launcher/internal/host"
)

// AppState owns every store of one host connection. It is created at the
// composition root and handed to UI code explicitly.
type AppState struct {
	GameStatus   *GameStatusStore
	Config       *ConfigStore
	Progress     *Cell[*launcher.Progress]
	ModpackInfo  *Cell[*launcher.ModpackInfo]
	SystemMemory *Cell[uint64]
	LauncherLogs *LogStore
	GameLogs     *LogStore
	Auth         *Auth

	m      sync.Mutex
	subs   []*Subscription
	closed bool
}

func NewAppState(h host.Host) *AppState {
	modpack := NewCell(h, CellOptions[*launcher.ModpackInfo]{
		Name:        "modpack_info",
		FetchMethod: host.MethodFetchModpackInfo,
	})
	memory := NewCell(h, CellOptions[uint64]{
		Name:        "system_memory",
		FetchMethod: host.MethodGetSystemMemory,
	})

	return &AppState{
		GameStatus: NewGameStatusStore(h),
		Config:     NewConfigStore(h, modpack, memory),
		Progress: NewCell(h, CellOptions[*launcher.Progress]{
			Name:  "progress",
			Event: host.EventUpdateProgress,
		}),
		ModpackInfo:  modpack,
		SystemMemory: memory,
		LauncherLogs: NewLauncherLogStore(h),
		GameLogs:     NewGameLogStore(h),
		Auth:         NewAuth(h),
	}
}

// Track ties sub to the lifetime of the state. A sub tracked after Close is
// closed right away.
func (s *AppState) Track(sub *Subscription) *Subscription {
	s.m.Lock()
	defer s.m.Unlock()

	if s.closed {
		sub.Close()
		return sub
	}
	s.subs = append(s.subs, sub)
	return sub
}

// Open keeps every store open until Close, so values are fetched and kept
// current even when nobody else subscribes.
func (s *AppState) Open() {
	keep := func(sub *Subscription) {
		s.Track(sub)
	}

	keep(s.GameStatus.Subscribe(func(launcher.GameStatus) {}))
	keep(s.Config.Subscribe(func(launcher.LauncherConfig) {}))
	keep(s.Progress.Subscribe(func(*launcher.Progress) {}))
	keep(s.ModpackInfo.Subscribe(func(*launcher.ModpackInfo) {}))
	keep(s.SystemMemory.Subscribe(func(uint64) {}))
	keep(s.LauncherLogs.Subscribe(func([]string) {}))
	keep(s.GameLogs.Subscribe(func([]string) {}))
}

// Close releases every tracked subscription.
func (s *AppState) Close() {
	s.m.Lock()
	subs := s.subs
	s.subs = nil
	s.closed = true
	s.m.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
