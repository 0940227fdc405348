// Package cmd holds the codex-usage commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leiske/codex-usage/pkg/config"
	"github.com/leiske/codex-usage/pkg/logger"
	"github.com/leiske/codex-usage/pkg/render"
	"github.com/leiske/codex-usage/pkg/store"
	"github.com/leiske/codex-usage/pkg/usage"
)

// ExitError ends the process with Code. Msg, when set, is printed to stderr.
type ExitError struct {
	Code int
	Msg  string
}

func (e *ExitError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Msg
}

func fail(format string, args ...any) error {
	return &ExitError{Code: 1, Msg: fmt.Sprintf(format, args...)}
}

// usageFetcher is satisfied by *usage.Client.
type usageFetcher interface {
	Fetch(ctx context.Context, req usage.Request) (*usage.Snapshot, error)
}

var (
	getenv          = os.Getenv // can be overridden in tests
	now             = time.Now
	terminalColumns = render.StdoutColumns
)

// NewStoresFunc builds the store chain; can be overridden in tests
var NewStoresFunc = newStoresDefault

func newStoresDefault(cfg *config.Config) ([]store.Store, error) {
	opts, err := cfg.StoreOptions(getenv)
	if err != nil {
		return nil, err
	}
	return store.New(opts)
}

// NewFetcherFunc builds the usage client; can be overridden in tests
var NewFetcherFunc = newFetcherDefault

func newFetcherDefault(cfg *config.Config) usageFetcher {
	return usage.NewClient(usage.ClientConfig{Timeout: cfg.Timeout, Retry: cfg.Retry})
}

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// configFrom returns the configuration loaded by Prepare, or the defaults.
func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok && cfg != nil {
		return cfg
	}
	return config.DefaultConfig()
}

// Prepare loads the configuration, applies environment and flag overrides
// and attaches the config and logger to the command context. It is the root
// command's PersistentPreRunE.
func Prepare(c *cobra.Command, _ []string) error {
	v := viper.GetViper()
	if err := config.BindEnv(v); err != nil {
		return err
	}

	path := v.GetString("config")
	explicit := v.IsSet("config")
	if path == "" {
		// an unresolvable default just means no config file
		path, _ = config.DefaultPath(getenv)
	}

	cfg, err := config.LoadConfig(path, explicit)
	if err != nil {
		return err
	}
	if err := config.ApplyOverrides(cfg, v); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.New(c.ErrOrStderr(), cfg.Debug)
	ctx = logger.WithContext(ctx, log)
	ctx = withConfig(ctx, cfg)
	c.SetContext(ctx)

	log.Debug(ctx, "configuration loaded", "path", path, "stores", cfg.Stores)
	return nil
}

// setup returns the config and store chain for a command invocation.
func setup(c *cobra.Command) (context.Context, *config.Config, []store.Store, error) {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := configFrom(ctx)
	stores, err := NewStoresFunc(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to set up stores: %w", err)
	}
	return ctx, cfg, stores, nil
}
