package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"cloudpush/internal/config"
	"cloudpush/internal/daemon"
	"cloudpush/internal/logging"
	"cloudpush/internal/state"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// ConfigPath is re-read on SIGHUP and POST /api/reload.
	ConfigPath  string
	LogLevel    string
	Development bool
}

// Run starts the cloudpush daemon and blocks until SIGINT/SIGTERM or ctx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()
	logStartup(logger.Logger, cfg, opts.ConfigPath)

	store, err := state.Open(cfg)
	if err != nil {
		logger.Error("open state store", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, store, logger.Logger, loader(opts.ConfigPath))
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	// Written only once the instance lock is held.
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-signalCtx.Done():
			logger.Info("cloudpush daemon shutting down")
			return nil
		case <-hup:
			if err := d.Reload(signalCtx); err != nil {
				logging.WarnWithContext(logger.Logger, "configuration reload failed", "reload_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "previous configuration stays in effect"),
				)
			}
		}
	}
}

func newLogger(cfg *config.Config, opts Options) (*logging.Logger, error) {
	effective := *cfg
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		effective.Logging.Level = level
	}
	if opts.Development {
		return logging.New(logging.Options{
			Level:       effective.Logging.Level,
			Format:      effective.Logging.Format,
			Development: true,
		})
	}
	return logging.NewFromConfig(&effective)
}

func loader(path string) daemon.ConfigLoader {
	return func() (*config.Config, error) {
		cfg, _, _, err := config.Load(path)
		return cfg, err
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logStartup(logger *slog.Logger, cfg *config.Config, configPath string) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("config_path", configPath),
		logging.Bool("enabled", cfg.Uploader.Enabled),
		logging.Bool("api_url_present", cfg.Uploader.APIURL != ""),
		logging.Bool("api_token_present", cfg.Uploader.APIToken != ""),
		logging.Bool("only_success", cfg.Uploader.OnlySuccess),
		logging.Int("retry_times", cfg.Uploader.RetryTimes),
		logging.Int("timeout_seconds", cfg.Uploader.Timeout),
		logging.Bool("ntfy_configured", cfg.Notifications.NtfyTopic != ""),
		logging.String("api_bind", cfg.Paths.APIBind),
	)
}
