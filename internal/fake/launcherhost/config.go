package launcherhost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/google/uuid"
	"github.com/kofuk/premises-launcher/internal/entity/launcher"
	"github.com/kofuk/premises-launcher/internal/host"
	"github.com/kofuk/premises-launcher/internal/kvs"
	"github.com/kofuk/premises-launcher/internal/rpc"
)

func (h *Host) defaultConfig() launcher.LauncherConfig {
	return launcher.LauncherConfig{
		MemoryMax: launcher.HostDefaultMemoryMax,
		Providers: append([]string(nil), h.defaultProviders...),
	}
}

// withDefaults fills the fields left empty by a client with the host
// defaults.
func (h *Host) withDefaults(cfg launcher.LauncherConfig) (launcher.LauncherConfig, error) {
	result := cfg.Clone()
	if err := mergo.Merge(&result, h.defaultConfig()); err != nil {
		return launcher.LauncherConfig{}, err
	}
	return result, nil
}

// loadConfig must be called with h.m held.
func (h *Host) loadConfig(ctx context.Context) (launcher.LauncherConfig, error) {
	if h.config != nil {
		return h.config.Clone(), nil
	}

	var cfg launcher.LauncherConfig
	if err := h.kvs.Get(ctx, configKey, &cfg); err != nil {
		if !errors.Is(err, kvs.ErrNotFound) {
			return launcher.LauncherConfig{}, err
		}
		cfg = h.defaultConfig()
	}

	cfg, err := h.withDefaults(cfg)
	if err != nil {
		return launcher.LauncherConfig{}, err
	}
	h.config = &cfg

	return cfg.Clone(), nil
}

// saveConfig must be called with h.m held.
func (h *Host) saveConfig(ctx context.Context, cfg launcher.LauncherConfig) error {
	if err := h.kvs.Set(ctx, configKey, cfg, 0); err != nil {
		return fmt.Errorf("failed to save launcher config: %w", err)
	}
	h.config = &cfg
	return nil
}

// updateConfig applies fn to the stored config, saves it and pushes the result
// to every client.
func (h *Host) updateConfig(ctx context.Context, fn func(cfg launcher.LauncherConfig) (launcher.LauncherConfig, error)) error {
	h.configM.Lock()
	defer h.configM.Unlock()

	h.m.Lock()
	cfg, err := h.loadConfig(ctx)
	if err != nil {
		h.m.Unlock()
		return err
	}
	cfg, err = fn(cfg)
	if err != nil {
		h.m.Unlock()
		return err
	}
	if err := h.saveConfig(ctx, cfg); err != nil {
		h.m.Unlock()
		return err
	}
	h.m.Unlock()

	h.emit(ctx, host.EventLauncherConfigUpdate, cfg)
	return nil
}

func (h *Host) handleGetLauncherConfig(ctx context.Context, req *rpc.AbstractRequest) (any, error) {
	h.m.Lock()
	defer h.m.Unlock()

	return h.loadConfig(ctx)
}

func (h *Host) handleSetLauncherConfig(ctx context.Context, req *rpc.AbstractRequest) (any, error) {
	var input struct {
		Config launcher.LauncherConfig `json:"config"`
	}
	if err := req.Bind(&input); err != nil {
		return nil, err
	}

	return nil, h.updateConfig(ctx, func(launcher.LauncherConfig) (launcher.LauncherConfig, error) {
		return h.withDefaults(input.Config)
	})
}

func OfflineUUID(username string) string {
	return uuid.NewMD5(uuid.NameSpaceDNS, []byte("OfflinePlayer:"+username)).String()
}

func (h *Host) handleLoginOffline(ctx context.Context, req *rpc.AbstractRequest) (any, error) {
	var input host.LoginOfflineInput
	if err := req.Bind(&input); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, errors.New("username must not be empty")
	}

	if err := h.updateConfig(ctx, func(cfg launcher.LauncherConfig) (launcher.LauncherConfig, error) {
		cfg.Authentication = launcher.NewOfflineAuthentication(username, OfflineUUID(username))
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	h.launcherLog("Logged in as %s (offline)", username)
	return nil, nil
}

// handleLoginMsa issues made up tokens; there is no Microsoft sign in here.
func (h *Host) handleLoginMsa(ctx context.Context, req *rpc.AbstractRequest) (any, error) {
	now := h.now()
	msa := launcher.MsaAuthentication{
		Username:          "Player",
		UUID:              uuid.NewString(),
		MojToken:          uuid.NewString(),
		MojExpirationDate: now.Add(24 * time.Hour).UnixMilli(),
		MsaAccessToken:    uuid.NewString(),
		MsaRefreshToken:   uuid.NewString(),
		MsaExpirationDate: now.Add(time.Hour).UnixMilli(),
	}

	if err := h.updateConfig(ctx, func(cfg launcher.LauncherConfig) (launcher.LauncherConfig, error) {
		cfg.Authentication = launcher.NewMsaAuthentication(msa)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	h.launcherLog("Logged in as %s (Microsoft)", msa.Username)
	return nil, nil
}

var errNothingToSweep = errors.New("nothing to sweep")

// sweepSessions logs out a Microsoft session whose tokens have expired.
func (h *Host) sweepSessions(ctx context.Context) error {
	err := h.updateConfig(ctx, func(cfg launcher.LauncherConfig) (launcher.LauncherConfig, error) {
		auth := cfg.Authentication
		if auth == nil || auth.Msa == nil || !auth.Msa.ExpiredMsa(h.now()) {
			return cfg, errNothingToSweep
		}
		return cfg.WithoutAuthentication(), nil
	})
	if errors.Is(err, errNothingToSweep) {
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("Microsoft session expired")
	h.launcherLog("Microsoft session expired, logged out")
	return nil
}
