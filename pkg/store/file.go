package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/leiske/codex-usage/pkg/auth"
	"github.com/leiske/codex-usage/pkg/utils"
)

// EnvHome overrides the directory holding the credential file.
const EnvHome = "CODEX_USAGE_HOME"

const (
	appDirName   = "codex-usage"
	authFileName = "auth.json"
)

// FileOptions configures a FileStore.
type FileOptions struct {
	// Path overrides the resolved credential file location.
	Path string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// FileStore keeps the record as a plain JSON file readable only by its
// owner. It is always available and acts as the last resort in the chain.
type FileStore struct {
	path string
}

// NewFileStore resolves the credential file path and returns a FileStore.
func NewFileStore(opts FileOptions) (*FileStore, error) {
	path := opts.Path
	if path == "" {
		var err error
		path, err = DefaultAuthPath(opts.Getenv)
		if err != nil {
			return nil, err
		}
	}
	return &FileStore{path: path}, nil
}

// ConfigDir returns the application config directory:
// $CODEX_USAGE_HOME, else $XDG_CONFIG_HOME/codex-usage, else
// $HOME/.config/codex-usage.
func ConfigDir(getenv func(string) string) (string, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if dir := strings.TrimSpace(getenv(EnvHome)); dir != "" {
		return filepath.Clean(dir), nil
	}
	if xdg := strings.TrimSpace(getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appDirName), nil
	}
	home := strings.TrimSpace(getenv("HOME"))
	if home == "" {
		return "", errors.New("cannot determine config dir (HOME is not set)")
	}
	return filepath.Join(home, ".config", appDirName), nil
}

// DefaultAuthPath returns the credential file inside ConfigDir.
func DefaultAuthPath(getenv func(string) string) (string, error) {
	dir, err := ConfigDir(getenv)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, authFileName), nil
}

// Path returns the credential file location.
func (s *FileStore) Path() string { return s.path }

// Kind implements Store.
func (s *FileStore) Kind() Kind { return KindFile }

// Label implements Store.
func (s *FileStore) Label() string { return fmt.Sprintf("file (%s)", s.path) }

// IsAvailable implements Store.
func (s *FileStore) IsAvailable(context.Context) bool { return true }

// Get implements Store.
func (s *FileStore) Get(context.Context) (*auth.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read auth file %s: %w", s.path, err)
	}
	return auth.DecodeRecord(data, s.Label())
}

// Set writes the record pretty-printed with a trailing newline, mode 0600.
func (s *FileStore) Set(_ context.Context, rec *auth.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := utils.WriteJSONFile(s.path, rec, utils.SecretJSONWriteOptions()); err != nil {
		return fmt.Errorf("failed to write auth file: %w", err)
	}
	return nil
}

// Clear implements Store.
func (s *FileStore) Clear(context.Context) error {
	return utils.RemoveIfExists(s.path)
}
