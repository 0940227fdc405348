package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leiske/codex-usage/pkg/config"
	"github.com/leiske/codex-usage/pkg/store"
)

func newPrepareCommand(t *testing.T) *cobra.Command {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	c := &cobra.Command{Use: "test"}
	c.Flags().String("config", "", "")
	require.NoError(t, viper.BindPFlag("config", c.Flags().Lookup("config")))
	c.SetErr(&bytes.Buffer{})
	c.SetContext(context.Background())
	return c
}

func TestPrepare_ExplicitConfig(t *testing.T) {
	stubEnv(t, nil)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("stores = [\"file\"]\nbar_width = 30\n"), 0600))
	t.Setenv("CODEX_USAGE_RETRY", "2")

	c := newPrepareCommand(t)
	require.NoError(t, c.Flags().Set("config", path))
	require.NoError(t, Prepare(c, nil))

	cfg := configFrom(c.Context())
	assert.Equal(t, []string{"file"}, cfg.Stores)
	assert.Equal(t, 30, cfg.BarWidth)
	assert.Equal(t, 2, cfg.Retry)
}

func TestPrepare_MissingExplicitConfig(t *testing.T) {
	stubEnv(t, nil)
	c := newPrepareCommand(t)
	require.NoError(t, c.Flags().Set("config", filepath.Join(t.TempDir(), "nope.toml")))
	assert.Error(t, Prepare(c, nil))
}

func TestPrepare_DefaultsWithoutConfigFile(t *testing.T) {
	stubEnv(t, map[string]string{"XDG_CONFIG_HOME": t.TempDir()})
	c := newPrepareCommand(t)
	require.NoError(t, Prepare(c, nil))
	assert.Equal(t, config.DefaultConfig(), configFrom(c.Context()))
}

func TestConfigFrom_Default(t *testing.T) {
	assert.Equal(t, config.DefaultConfig(), configFrom(context.Background()))
}

func TestSetup_UsesStoreFactory(t *testing.T) {
	orig := NewStoresFunc
	t.Cleanup(func() { NewStoresFunc = orig })

	mem := &memStore{kind: store.KindPass, available: true}
	var gotCfg *config.Config
	NewStoresFunc = func(cfg *config.Config) ([]store.Store, error) {
		gotCfg = cfg
		return []store.Store{mem}, nil
	}

	c := &cobra.Command{}
	cfg := config.DefaultConfig()
	cfg.Retry = 4
	c.SetContext(withConfig(context.Background(), cfg))

	_, got, stores, err := setup(c)
	require.NoError(t, err)
	assert.Same(t, cfg, got)
	assert.Same(t, cfg, gotCfg)
	assert.Equal(t, []store.Store{mem}, stores)

	NewStoresFunc = func(*config.Config) ([]store.Store, error) { return nil, errBoom }
	_, _, _, err = setup(c)
	assert.ErrorIs(t, err, errBoom)
}
