package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/leiske/codex-usage/pkg/utils"
)

// DefaultUsageURL is the endpoint queried when neither the environment nor a
// stored record names one.
const DefaultUsageURL = "https://chatgpt.com/backend-api/wham/usage"

// Environment variables read by FromEnv.
const (
	EnvAuthorization = "CHATGPT_AUTHORIZATION"
	EnvCookie        = "CHATGPT_COOKIE"
	EnvUsageURL      = "CHATGPT_WHAM_URL"
)

// ErrCodexAuthNotFound is returned when the Codex CLI auth file does not exist.
var ErrCodexAuthNotFound = errors.New("codex auth file not found")

// Getenv matches os.Getenv so tests can supply a fixed environment.
type Getenv func(string) string

// FromEnv builds a transient record from CHATGPT_* variables. It returns nil
// when CHATGPT_AUTHORIZATION is unset or blank. defaultURL is used when
// CHATGPT_WHAM_URL is unset.
func FromEnv(getenv Getenv, defaultURL string) *Record {
	if getenv == nil {
		getenv = os.Getenv
	}
	authorization := strings.TrimSpace(getenv(EnvAuthorization))
	if authorization == "" {
		return nil
	}

	url := strings.TrimSpace(getenv(EnvUsageURL))
	if url == "" {
		url = defaultURL
	}

	return &Record{
		URL:     url,
		Headers: map[string]string{HeaderAuthorization: authorization},
		Cookie:  strings.TrimSpace(getenv(EnvCookie)),
	}
}

// CodexAuth is the bearer token taken from the Codex CLI auth file.
type CodexAuth struct {
	Path          string
	Authorization string
}

// Record wraps the token in a transient record for url.
func (c *CodexAuth) Record(url string) *Record {
	return &Record{
		URL:     url,
		Headers: map[string]string{HeaderAuthorization: c.Authorization},
	}
}

// DefaultCodexAuthPath returns $CODEX_HOME/auth.json, else
// $HOME/.codex/auth.json.
func DefaultCodexAuthPath(getenv Getenv) (string, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if home := strings.TrimSpace(getenv("CODEX_HOME")); home != "" {
		return filepath.Join(strings.TrimRight(home, "/"), "auth.json"), nil
	}
	home := strings.TrimSpace(getenv("HOME"))
	if home == "" {
		return "", fmt.Errorf("cannot determine codex auth path (set CODEX_HOME or HOME)")
	}
	return filepath.Join(strings.TrimRight(home, "/"), ".codex", "auth.json"), nil
}

type codexAuthFile struct {
	Tokens *struct {
		IDToken     any `json:"id_token"`
		AccessToken any `json:"access_token"`
	} `json:"tokens"`
}

// LoadCodexAuth reads the Codex CLI auth file at path. tokens.id_token is
// preferred over tokens.access_token.
func LoadCodexAuth(path string) (*CodexAuth, error) {
	var f codexAuthFile
	if err := utils.ReadJSONFile(path, &f); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCodexAuthNotFound, path)
		}
		return nil, fmt.Errorf("invalid codex auth file: %w", err)
	}

	token := ""
	if f.Tokens != nil {
		token = trimmedString(f.Tokens.IDToken)
		if token == "" {
			token = trimmedString(f.Tokens.AccessToken)
		}
	}
	if token == "" {
		return nil, fmt.Errorf("invalid codex auth file at %s: missing tokens.id_token or tokens.access_token", path)
	}

	return &CodexAuth{Path: path, Authorization: "Bearer " + token}, nil
}

func trimmedString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
