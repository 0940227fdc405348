// Package config loads codex-usage settings from an optional TOML file and
// overlays environment variables and command-line flags through viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/leiske/codex-usage/pkg/auth"
	"github.com/leiske/codex-usage/pkg/render"
	"github.com/leiske/codex-usage/pkg/store"
	"github.com/leiske/codex-usage/pkg/usage"
)

// EnvPrefix prefixes every environment override, e.g. CODEX_USAGE_RETRY.
const EnvPrefix = "CODEX_USAGE"

// FileName is the config file name inside the application config directory.
const FileName = "config.toml"

// Keys shared by the TOML file, viper and flags.
const (
	KeyUsageURL      = "usage_url"
	KeyStores        = "stores"
	KeyAuthFile      = "auth_file"
	KeyBarWidth      = "bar_width"
	KeyTimeout       = "timeout"
	KeyRetry         = "retry"
	KeyWatchSchedule = "watch_schedule"
	KeyDebug         = "debug"
	KeyVerbose       = "verbose"
)

// Config represents the codex-usage configuration
type Config struct {
	// UsageURL is queried when the credential does not carry its own URL.
	UsageURL string `toml:"usage_url" json:"usage_url" yaml:"usage_url"`
	// Stores lists backend kinds in priority order.
	Stores []string `toml:"stores" json:"stores" yaml:"stores"`
	// AuthFile overrides the file backend's path.
	AuthFile      string        `toml:"auth_file" json:"auth_file,omitempty" yaml:"auth_file,omitempty"`
	BarWidth      int           `toml:"bar_width" json:"bar_width" yaml:"bar_width"`
	Timeout       time.Duration `toml:"timeout" json:"timeout" yaml:"timeout"`
	Retry         int           `toml:"retry" json:"retry" yaml:"retry"`
	WatchSchedule string        `toml:"watch_schedule" json:"watch_schedule" yaml:"watch_schedule"`
	Debug         bool          `toml:"debug" json:"debug" yaml:"debug"`
	Verbose       bool          `toml:"verbose" json:"verbose" yaml:"verbose"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	stores := make([]string, 0, len(store.DefaultKinds))
	for _, k := range store.DefaultKinds {
		stores = append(stores, string(k))
	}
	return &Config{
		UsageURL:      auth.DefaultUsageURL,
		Stores:        stores,
		BarWidth:      render.PreferredWidth,
		Timeout:       usage.DefaultTimeout,
		Retry:         0,
		WatchSchedule: "@every 5m",
	}
}

// DefaultPath returns config.toml inside the application config directory.
func DefaultPath(getenv func(string) string) (string, error) {
	dir, err := store.ConfigDir(getenv)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// LoadConfig reads a TOML file over the defaults. A missing file is only an
// error when required is set, i.e. the path was given explicitly.
func LoadConfig(path string, required bool) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown keys in config %s: %s", path, strings.Join(keys, ", "))
	}

	return cfg, nil
}

// BindEnv registers the environment overrides on v.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// usage_url also honours the variable used with CHATGPT_AUTHORIZATION.
	if err := v.BindEnv(KeyUsageURL, EnvPrefix+"_URL", auth.EnvUsageURL); err != nil {
		return fmt.Errorf("failed to bind %s: %w", KeyUsageURL, err)
	}
	return nil
}

// ApplyOverrides copies every key explicitly set in v (environment or
// changed flags) onto cfg, then validates the result.
func ApplyOverrides(cfg *Config, v *viper.Viper) error {
	if v.IsSet(KeyUsageURL) {
		cfg.UsageURL = v.GetString(KeyUsageURL)
	}
	if v.IsSet(KeyStores) {
		cfg.Stores = stringList(v.Get(KeyStores))
	}
	if v.IsSet(KeyAuthFile) {
		cfg.AuthFile = v.GetString(KeyAuthFile)
	}
	if v.IsSet(KeyBarWidth) {
		cfg.BarWidth = v.GetInt(KeyBarWidth)
	}
	if v.IsSet(KeyTimeout) {
		cfg.Timeout = v.GetDuration(KeyTimeout)
	}
	if v.IsSet(KeyRetry) {
		cfg.Retry = v.GetInt(KeyRetry)
	}
	if v.IsSet(KeyWatchSchedule) {
		cfg.WatchSchedule = v.GetString(KeyWatchSchedule)
	}
	if v.IsSet(KeyDebug) {
		cfg.Debug = v.GetBool(KeyDebug)
	}
	if v.IsSet(KeyVerbose) {
		cfg.Verbose = v.GetBool(KeyVerbose)
	}
	return cfg.Validate()
}

// stringList accepts a list or a comma separated string.
func stringList(raw any) []string {
	var parts []string
	switch t := raw.(type) {
	case []string:
		parts = t
	case []any:
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
	case string:
		parts = strings.Split(t, ",")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks value ranges and parses the store list and schedule.
func (c *Config) Validate() error {
	if _, err := c.StoreKinds(); err != nil {
		return err
	}
	if c.BarWidth < 0 {
		return fmt.Errorf("bar_width must not be negative, got %d", c.BarWidth)
	}
	if c.Retry < 0 {
		return fmt.Errorf("retry must not be negative, got %d", c.Retry)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if _, err := cron.ParseStandard(c.WatchSchedule); err != nil {
		return fmt.Errorf("invalid watch_schedule %q: %w", c.WatchSchedule, err)
	}
	return nil
}

// StoreKinds parses Stores. An empty list yields the default order.
func (c *Config) StoreKinds() ([]store.Kind, error) {
	if len(c.Stores) == 0 {
		return store.DefaultKinds, nil
	}
	kinds := make([]store.Kind, 0, len(c.Stores))
	for _, s := range c.Stores {
		k, err := store.ParseKind(s)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// StoreOptions builds the options for store.New.
func (c *Config) StoreOptions(getenv func(string) string) (store.Options, error) {
	kinds, err := c.StoreKinds()
	if err != nil {
		return store.Options{}, err
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	return store.Options{
		Kinds: kinds,
		File:  store.FileOptions{Path: c.AuthFile, Getenv: getenv},
	}, nil
}
