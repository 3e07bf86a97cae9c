package launcherhost

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kofuk/premises-launcher/internal/entity/launcher"
	"github.com/kofuk/premises-launcher/internal/host"
	"github.com/kofuk/premises-launcher/internal/mc/launchermeta"
	"github.com/kofuk/premises-launcher/internal/rpc"
)

var ErrGameRunning = errors.New("game is already running")

type VersionResolver interface {
	Resolve(ctx context.Context, id string) (*launchermeta.VersionMetaData, error)
}

type downloadStep struct {
	status string
	total  int
}

var downloadSteps = []downloadStep{
	{status: "Downloading libraries", total: 4},
	{status: "Downloading assets", total: 6},
	{status: "Installing Forge", total: 2},
}

var gameStartLog = []string{
	"Setting user: %s",
	"Backend library: LWJGL version 3.3.1 SNAPSHOT",
	"Reloading ResourceManager: vanilla, mod_resources",
	"Sound engine started",
	"Created: 1024x512x4 minecraft:textures/atlas/blocks.png-atlas",
}

var gameStopLog = []string{
	"Stopping!",
	"Sound engine stopped",
}

func (h *Host) gameLog(thread, level, message string) {
	h.Log(host.LogGame, fmt.Sprintf("[%s] [%s/%s]: %s", h.now().Format(time.TimeOnly), thread, level, message))
}

func (h *Host) setStatus(ctx context.Context, status launcher.GameStatus) {
	h.m.Lock()
	h.status = status
	h.m.Unlock()

	h.emit(ctx, host.EventGameStatus, status)
}

func (h *Host) sleep(ctx context.Context) error {
	if h.stepDelay <= 0 {
		return nil
	}

	t := time.NewTimer(h.stepDelay)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) resolveVersion(ctx context.Context) error {
	if h.versions == nil || h.modpack == nil {
		return nil
	}

	info, err := h.modpack.Fetch(ctx)
	if err != nil {
		return err
	}

	meta, err := h.versions.Resolve(ctx, info.MinecraftVersion)
	if err != nil {
		return err
	}
	h.launcherLog("Resolved Minecraft %s: Java %d, %d libraries", meta.ID, meta.JavaVersion.Major, len(meta.Libraries))

	return nil
}

func (h *Host) handleGetGameStatus(ctx context.Context, req *rpc.AbstractRequest) (any, error) {
	h.m.Lock()
	defer h.m.Unlock()

	return h.status, nil
}

// handleStartGame walks through a whole game session and answers once the
// game has exited, like the real launcher.
func (h *Host) handleStartGame(ctx context.Context, req *rpc.AbstractRequest) (any, error) {
	h.m.Lock()
	if h.status.IsRunning() {
		h.m.Unlock()
		return nil, ErrGameRunning
	}
	h.status = launcher.GameDownloading
	cfg, err := h.loadConfig(ctx)
	h.m.Unlock()
	if err != nil {
		h.setStatus(ctx, launcher.GameIdle)
		return nil, err
	}
	h.emit(ctx, host.EventGameStatus, launcher.GameDownloading)

	defer func() {
		h.emit(ctx, host.EventUpdateProgress, nil)
		h.setStatus(ctx, launcher.GameIdle)
	}()

	if !cfg.IsLoggedIn() {
		h.launcherLog("Failed to launch the game: not logged in")
		return nil, errors.New("not logged in")
	}

	if err := h.resolveVersion(ctx); err != nil {
		h.launcherLog("Failed to launch the game: %v", err)
		return nil, err
	}

	h.launcherLog("Preparing game with %d MiB of memory", cfg.MemoryMax)
	for _, step := range downloadSteps {
		for i := 1; i <= step.total; i++ {
			h.emit(ctx, host.EventUpdateProgress, launcher.Progress{
				Status:  step.status,
				Current: float64(i),
				Total:   float64(step.total),
			})
			if err := h.sleep(ctx); err != nil {
				return nil, err
			}
		}
		h.launcherLog("%s: done", step.status)
	}
	h.emit(ctx, host.EventUpdateProgress, nil)

	h.setStatus(ctx, launcher.GamePlaying)
	h.launcherLog("Launching game")
	for i, line := range gameStartLog {
		if i == 0 {
			line = fmt.Sprintf(line, cfg.Authentication.Username())
		}
		h.gameLog("Render thread", "INFO", line)
		if err := h.sleep(ctx); err != nil {
			return nil, err
		}
	}
	for _, opt := range cfg.SelectedOptions {
		h.gameLog("Render thread", "INFO", fmt.Sprintf("Loaded optional mod %s", opt))
	}
	for _, line := range gameStopLog {
		h.gameLog("Render thread", "INFO", line)
	}

	h.launcherLog("Game exited successfully")
	return nil, nil
}

func (h *Host) handleGetLauncherLogsCache(ctx context.Context, req *rpc.AbstractRequest) (any, error) {
	return h.logs[host.LogLauncher].Cache(), nil
}

func (h *Host) handleGetLogs(ctx context.Context, req *rpc.AbstractRequest) (any, error) {
	var input host.GetLogsInput
	if err := req.Bind(&input); err != nil {
		return nil, err
	}

	buf, ok := h.logs[input.ID]
	if !ok {
		return nil, fmt.Errorf("unknown log: %s", input.ID)
	}
	return buf.Cache(), nil
}

func (h *Host) handleFetchModpackInfo(ctx context.Context, req *rpc.AbstractRequest) (any, error) {
	if h.modpack == nil {
		return nil, ErrNoModpackSource
	}
	return h.modpack.Fetch(ctx)
}

func (h *Host) handleGetSystemMemory(ctx context.Context, req *rpc.AbstractRequest) (any, error) {
	return h.systemMemory()
}
