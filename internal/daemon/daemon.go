package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"cloudpush/internal/bus"
	"cloudpush/internal/config"
	"cloudpush/internal/delivery"
	"cloudpush/internal/events"
	"cloudpush/internal/logging"
	"cloudpush/internal/notifications"
	"cloudpush/internal/payload"
	"cloudpush/internal/plugin"
	"cloudpush/internal/preflight"
	"cloudpush/internal/state"
	"cloudpush/internal/stats"
)

// ConfigLoader re-reads configuration for Reload.
type ConfigLoader func() (*config.Config, error)

// Daemon owns the host side of cloudpush: the state store, the event bus,
// the current plugin and the HTTP API. Only one instance may run per state
// directory.
type Daemon struct {
	logger *slog.Logger
	store  *state.Store
	stats  *stats.Store
	bus    *bus.Bus
	load   ConfigLoader

	cfg    atomic.Pointer[config.Config]
	plugin atomic.Pointer[plugin.Plugin]

	reloadMu sync.Mutex

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool   `json:"running"`
	Enabled      bool   `json:"enabled"`
	Configured   bool   `json:"configured"`
	StateDBPath  string `json:"stateDbPath"`
	LockFilePath string `json:"lockFilePath"`
	APIAddress   string `json:"apiAddress,omitempty"`
}

// New constructs a daemon with initialized dependencies. load may be nil, in
// which case Reload fails.
func New(cfg *config.Config, store *state.Store, logger *slog.Logger, load ConfigLoader) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		stats:    stats.NewStore(store),
		bus:      bus.New(logger),
		load:     load,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.cfg.Store(cfg)
	d.plugin.Store(d.buildPlugin(cfg, logger))

	forward := bus.HandlerFunc(d.dispatch)
	d.bus.Subscribe(events.TypeNotification, forward)
	d.bus.Subscribe(events.TypePluginAction, forward)

	api, err := newAPIServer(d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

func (d *Daemon) buildPlugin(cfg *config.Config, logger *slog.Logger) *plugin.Plugin {
	settings := plugin.SettingsFromConfig(cfg)
	return plugin.New(settings, plugin.Deps{
		Builder:  payload.NewBuilder(d.store, logger),
		Engine:   delivery.NewEngine(settings.Delivery, d.stats, logger),
		Stats:    d.stats,
		Notifier: notifications.NewService(cfg),
		Logger:   logger,
	})
}

// dispatch hands bus events to whichever plugin is current.
func (d *Daemon) dispatch(ctx context.Context, env events.Envelope) {
	if p := d.plugin.Load(); p != nil {
		p.HandleEvent(ctx, env)
	}
}

// Start acquires the daemon lock, runs preflight checks and starts the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another cloudpush daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.runPreflight(d.ctx)

	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start api: %w", err)
	}

	d.running.Store(true)
	settings := d.plugin.Load().Settings()
	d.logger.Info("cloudpush daemon started",
		logging.String("lock", d.lockPath),
		logging.Bool("enabled", settings.Enabled),
		logging.Bool("configured", settings.Delivery.Configured()),
	)
	return nil
}

func (d *Daemon) runPreflight(ctx context.Context) {
	for _, result := range preflight.RunAll(ctx, d.cfg.Load()) {
		if result.Passed {
			d.logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "pushes may fail until resolved"),
		)
	}
}

// Stop cancels in-flight deliveries, shuts down the API and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("cloudpush daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Publish dispatches env on the bus and returns the number of handlers run.
func (d *Daemon) Publish(ctx context.Context, env events.Envelope) int {
	return d.bus.Publish(ctx, env)
}

// Reload re-reads configuration and swaps in a plugin built from it. The
// running plugin is never mutated. Path changes need a restart.
func (d *Daemon) Reload(ctx context.Context) error {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()

	if d.load == nil {
		return errors.New("reload unavailable: no config source")
	}
	cfg, err := d.load()
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("reload config: %w", err)
	}

	prev := d.cfg.Load()
	if prev != nil && (prev.Paths.StateDir != cfg.Paths.StateDir || prev.Paths.APIBind != cfg.Paths.APIBind) {
		d.logger.Warn("path changes take effect after restart",
			logging.String("state_dir", cfg.Paths.StateDir),
			logging.String("api_bind", cfg.Paths.APIBind),
		)
	}

	d.cfg.Store(cfg)
	next := d.buildPlugin(cfg, d.logger)
	d.plugin.Store(next)

	settings := next.Settings()
	logging.WithContext(ctx, d.logger).Info("configuration reloaded",
		logging.Bool("enabled", settings.Enabled),
		logging.Bool("configured", settings.Delivery.Configured()),
		logging.Int("retry_times", settings.Delivery.MaxRetries),
	)
	return nil
}

// Probe runs the connectivity probe with the current settings.
func (d *Daemon) Probe(ctx context.Context) delivery.ProbeResult {
	return d.plugin.Load().Probe(ctx)
}

// Stats returns the persisted delivery counters.
func (d *Daemon) Stats(ctx context.Context) (stats.Counters, error) {
	return d.stats.Stats(ctx)
}

// Recent returns up to limit recent pushes, newest first.
func (d *Daemon) Recent(ctx context.Context, limit int) ([]stats.RecentPushRecord, error) {
	return d.stats.Recent(ctx, limit)
}

// AddHistory registers a transfer-history record.
func (d *Daemon) AddHistory(ctx context.Context, rec state.TransferHistoryRecord) (state.TransferHistoryRecord, error) {
	return d.store.AddTransferHistory(ctx, rec)
}

// ListHistory returns the newest transfer-history records.
func (d *Daemon) ListHistory(ctx context.Context, limit int) ([]state.TransferHistoryRecord, error) {
	return d.store.ListTransferHistory(ctx, limit)
}

// Config returns the configuration currently in effect.
func (d *Daemon) Config() *config.Config {
	return d.cfg.Load()
}

// APIAddress returns the address the API listens on, or "" before Start.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	settings := d.plugin.Load().Settings()
	return Status{
		Running:      d.running.Load(),
		Enabled:      settings.Enabled,
		Configured:   settings.Delivery.Configured(),
		StateDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		APIAddress:   d.api.address(),
	}
}
