package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"cloudpush/internal/api"
	"cloudpush/internal/config"
	"cloudpush/internal/state"
)

const clientTimeout = 10 * time.Second

type commandContext struct {
	configFlag *string
	apiFlag    *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) apiAddress(cfg *config.Config) string {
	if c.apiFlag != nil {
		if addr := strings.TrimSpace(*c.apiFlag); addr != "" {
			return addr
		}
	}
	return cfg.Paths.APIBind
}

// client returns an API client for the daemon. timeout overrides the default
// per-request limit when positive.
func (c *commandContext) client(timeout time.Duration) (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = clientTimeout
	}
	return api.NewClient(c.apiAddress(cfg), cfg.Paths.APIToken, timeout), nil
}

// withStore opens the state database directly for commands that can work
// without a daemon.
func (c *commandContext) withStore(fn func(*state.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := state.Open(cfg)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func daemonUnavailable(err error) bool {
	return errors.Is(err, api.ErrDaemonUnavailable)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
