package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/kofuk/premises-launcher/internal/entity/launcher"
	"github.com/kofuk/premises-launcher/internal/host"
)

var (
	ErrInvalidMemory = errors.New("invalid memory size")
	ErrUnknownOption = errors.New("unknown optional")
)

// ConfigStore is the writable launcher config cell. Writes are applied
// locally first and then sent to the host; a failed write is reported but
// not rolled back, the next launcher_config_update corrects it.
type ConfigStore struct {
	*Cell[launcher.LauncherConfig]

	h       host.Host
	modpack *Cell[*launcher.ModpackInfo]
	memory  *Cell[uint64]
}

func NewConfigStore(h host.Host, modpack *Cell[*launcher.ModpackInfo], memory *Cell[uint64]) *ConfigStore {
	return &ConfigStore{
		Cell: NewCell(h, CellOptions[launcher.LauncherConfig]{
			Name:        "launcher_config",
			Default:     launcher.DefaultLauncherConfig(),
			FetchMethod: host.MethodGetLauncherConfig,
			Event:       host.EventLauncherConfigUpdate,
		}),
		h:       h,
		modpack: modpack,
		memory:  memory,
	}
}

func (s *ConfigStore) Set(ctx context.Context, cfg launcher.LauncherConfig) error {
	s.publish(cfg.Clone())

	return s.h.Invoke(ctx, host.MethodSetLauncherConfig, host.SetLauncherConfigInput{Config: cfg}, nil)
}

// Update applies fn to a copy of the latest config and stores the result.
func (s *ConfigStore) Update(ctx context.Context, fn func(cfg launcher.LauncherConfig) launcher.LauncherConfig) error {
	return s.Set(ctx, fn(s.Get().Clone()))
}

func (s *ConfigStore) Logout(ctx context.Context) error {
	return s.Update(ctx, launcher.LauncherConfig.WithoutAuthentication)
}

func (s *ConfigStore) SetMemoryMax(ctx context.Context, mib int) error {
	if mib <= 0 {
		return fmt.Errorf("%w: %d MiB", ErrInvalidMemory, mib)
	}
	if total := s.memory.Get(); total != 0 && uint64(mib)<<20 > total {
		return fmt.Errorf("%w: %d MiB exceeds system memory", ErrInvalidMemory, mib)
	}

	return s.Update(ctx, func(cfg launcher.LauncherConfig) launcher.LauncherConfig {
		cfg.MemoryMax = mib
		return cfg
	})
}

// ToggleOption selects or unselects a modpack optional. Selecting one drops
// the selected optionals it is incompatible with.
func (s *ConfigStore) ToggleOption(ctx context.Context, id string, selected bool) error {
	info := s.modpack.Get()
	if selected && info != nil && info.Optional(id) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownOption, id)
	}

	return s.Update(ctx, func(cfg launcher.LauncherConfig) launcher.LauncherConfig {
		if selected {
			return cfg.SelectOption(id, info)
		}
		return cfg.UnselectOption(id)
	})
}
