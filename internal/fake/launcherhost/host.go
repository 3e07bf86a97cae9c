package launcherhost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kofuk/premises-launcher/internal/entity/launcher"
	"github.com/kofuk/premises-launcher/internal/host"
	"github.com/kofuk/premises-launcher/internal/kvs"
	"github.com/kofuk/premises-launcher/internal/rpc"
	"github.com/mackerelio/go-osstat/memory"
	"github.com/robfig/cron/v3"
)

const configKey = "launcher:config"

// Host is a stand-in for the native launcher backend. It serves the same
// requests and pushes the same events, with canned game behaviour.
type Host struct {
	server   *rpc.Server
	store    kvs.Store
	kvs      kvs.KeyValueStore
	modpack  ModpackProvider
	versions VersionResolver

	defaultProviders []string
	stepDelay        time.Duration
	flushInterval    time.Duration
	systemMemory     func() (uint64, error)
	now              func() time.Time

	// configM orders config writes together with their broadcasts.
	configM sync.Mutex

	m      sync.Mutex
	config *launcher.LauncherConfig
	status launcher.GameStatus

	logs map[string]*LogBuffer
}

type Option func(h *Host)

func WithStore(store kvs.Store) Option {
	return func(h *Host) {
		h.store = store
	}
}

func WithModpackProvider(provider ModpackProvider) Option {
	return func(h *Host) {
		h.modpack = provider
	}
}

// WithVersionResolver makes every game start resolve the modpack's Minecraft
// version first.
func WithVersionResolver(resolver VersionResolver) Option {
	return func(h *Host) {
		h.versions = resolver
	}
}

func WithDefaultProviders(providers []string) Option {
	return func(h *Host) {
		h.defaultProviders = providers
	}
}

// WithStepDelay sets the pause between the steps of a simulated game run.
func WithStepDelay(delay time.Duration) Option {
	return func(h *Host) {
		h.stepDelay = delay
	}
}

func WithFlushInterval(interval time.Duration) Option {
	return func(h *Host) {
		h.flushInterval = interval
	}
}

func WithSystemMemory(fn func() (uint64, error)) Option {
	return func(h *Host) {
		h.systemMemory = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Host) {
		h.now = now
	}
}

func readSystemMemory() (uint64, error) {
	stat, err := memory.Get()
	if err != nil {
		return 0, err
	}
	return stat.Total, nil
}

func New(opts ...Option) *Host {
	h := &Host{
		server:        rpc.NewServer(),
		stepDelay:     500 * time.Millisecond,
		flushInterval: 50 * time.Millisecond,
		systemMemory:  readSystemMemory,
		now:           time.Now,
		status:        launcher.GameIdle,
		logs: map[string]*LogBuffer{
			host.LogGame:     {},
			host.LogLauncher: {},
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.store == nil {
		h.store = kvs.NewFile(filepath.Join(os.TempDir(), "premises-launcher-host"))
	}
	h.kvs = kvs.New(h.store)

	h.registerMethods()

	return h
}

func (h *Host) registerMethods() {
	h.server.RegisterMethod(host.MethodLoginOffline, h.handleLoginOffline)
	h.server.RegisterMethod(host.MethodLoginMsa, h.handleLoginMsa)
	h.server.RegisterMethod(host.MethodGetGameStatus, h.handleGetGameStatus)
	h.server.RegisterMethod(host.MethodStartGame, h.handleStartGame)
	h.server.RegisterMethod(host.MethodGetLauncherConfig, h.handleGetLauncherConfig)
	h.server.RegisterMethod(host.MethodSetLauncherConfig, h.handleSetLauncherConfig)
	h.server.RegisterMethod(host.MethodGetLauncherLogsCache, h.handleGetLauncherLogsCache)
	h.server.RegisterMethod(host.MethodGetLogs, h.handleGetLogs)
	h.server.RegisterMethod(host.MethodFetchModpackInfo, h.handleFetchModpackInfo)
	h.server.RegisterMethod(host.MethodGetSystemMemory, h.handleGetSystemMemory)
}

func (h *Host) emit(ctx context.Context, event string, payload any) {
	h.server.Broadcast(ctx, host.NotifyEventEmit, host.EventEmitInput{
		Event:   event,
		Payload: payload,
	})
}

// Log appends lines to one of the log buffers. They are pushed to the
// clients by the flusher.
func (h *Host) Log(id string, lines ...string) {
	if buf, ok := h.logs[id]; ok {
		buf.Append(lines...)
	}
}

func (h *Host) launcherLog(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Info(msg)
	h.Log(host.LogLauncher, fmt.Sprintf("[%s] [launcher/INFO]: %s", h.now().Format(time.TimeOnly), msg))
}

var logEvents = map[string]string{
	host.LogGame:     host.EventLog,
	host.LogLauncher: host.EventLauncherLog,
}

func (h *Host) flushLogs(ctx context.Context) {
	for id, buf := range h.logs {
		if lines := buf.Drain(); len(lines) > 0 {
			h.emit(ctx, logEvents[id], lines)
		}
	}
}

func (h *Host) runLogFlusher(ctx context.Context) {
	ticker := time.NewTicker(h.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.flushLogs(context.Background())
			return
		case <-ticker.C:
			h.flushLogs(ctx)
		}
	}
}

func (h *Host) runSessionSweeper(ctx context.Context) {
	c := cron.New(cron.WithLocation(time.UTC))
	c.AddFunc("@every 1m", func() {
		if err := h.sweepSessions(ctx); err != nil {
			slog.Error("Failed to sweep sessions", slog.Any("error", err))
		}
	})
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
}

// Serve runs the host on l until ctx is done.
func (h *Host) Serve(ctx context.Context, l net.Listener) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.runLogFlusher(ctx)
	}()
	go func() {
		defer wg.Done()
		h.runSessionSweeper(ctx)
	}()
	defer wg.Wait()

	h.launcherLog("Host started on %s", l.Addr())

	if err := h.server.Serve(ctx, l); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (h *Host) Start(ctx context.Context, network, address string) error {
	l, cleanup, err := rpc.Listen(network, address)
	if err != nil {
		return err
	}
	defer cleanup()

	return h.Serve(ctx, l)
}
