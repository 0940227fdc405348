package store

import (
	"context"
	"strings"

	"github.com/leiske/codex-usage/pkg/auth"
	"github.com/leiske/codex-usage/pkg/logger"
)

const (
	secretToolBin     = "secret-tool"
	secretToolService = "codex-usage"
	secretToolAccount = "default"
	secretToolLabel   = "codex-usage auth"
)

// Probe output meaning the binary exists but no Secret Service is reachable,
// typical on headless machines and WSL.
var secretServiceDownPatterns = []string{
	"no such secret service",
	"couldn't connect",
	"could not connect",
	"cannot autolaunch",
	"dbus",
}

// Clear output meaning there was nothing to remove.
var secretToolAbsentPatterns = []string{
	"not found",
	"no such",
	"does not exist",
}

// SecretToolStore keeps the record in the desktop keyring through
// libsecret's secret-tool CLI.
type SecretToolStore struct {
	runner Runner
}

// NewSecretToolStore creates a SecretToolStore. A nil runner runs real processes.
func NewSecretToolStore(runner Runner) *SecretToolStore {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &SecretToolStore{runner: runner}
}

// Kind implements Store.
func (s *SecretToolStore) Kind() Kind { return KindSecretTool }

// Label implements Store.
func (s *SecretToolStore) Label() string { return "secret-tool" }

// IsAvailable looks up an attribute pair that never exists. A clean miss
// proves both the binary and the Secret Service work.
func (s *SecretToolStore) IsAvailable(ctx context.Context) bool {
	r := s.runner.Run(ctx, nil, secretToolBin, "lookup", "service", "codex-usage-probe", "account", "probe")
	if r.NotFound || r.Code == CodeNotFound {
		return false
	}
	if r.Code == 0 {
		return true
	}

	msg := strings.TrimSpace(r.Stderr)
	if msg == "" {
		// lookup exits non-zero without output when the item is missing
		return true
	}

	log := logger.FromContext(ctx)
	if containsAny(msg, secretServiceDownPatterns) {
		log.Debug(ctx, "secret service not reachable", "exit", r.Code)
	} else {
		log.Debug(ctx, "secret-tool probe failed", "exit", r.Code)
	}
	return false
}

// Get implements Store.
func (s *SecretToolStore) Get(ctx context.Context) (*auth.Record, error) {
	r := s.runner.Run(ctx, nil, secretToolBin, "lookup", "service", secretToolService, "account", secretToolAccount)
	if r.Code != 0 {
		logger.FromContext(ctx).Debug(ctx, "secret-tool lookup returned nothing", "exit", r.Code)
		return nil, nil
	}
	raw := strings.TrimSpace(r.Stdout)
	if raw == "" {
		return nil, nil
	}
	return auth.DecodeRecord([]byte(raw), s.Label())
}

// Set implements Store.
func (s *SecretToolStore) Set(ctx context.Context, rec *auth.Record) error {
	data, err := rec.Encode()
	if err != nil {
		return err
	}
	r := s.runner.Run(ctx, append(data, '\n'),
		secretToolBin, "store", "--label="+secretToolLabel, "service", secretToolService, "account", secretToolAccount)
	if r.Code != 0 {
		return operationError("secret-tool store", r)
	}
	return nil
}

// Clear implements Store.
func (s *SecretToolStore) Clear(ctx context.Context) error {
	r := s.runner.Run(ctx, nil, secretToolBin, "clear", "service", secretToolService, "account", secretToolAccount)
	if r.Code == 0 {
		return nil
	}
	msg := diagnostic(r)
	if msg == "" || containsAny(msg, secretToolAbsentPatterns) {
		return nil
	}
	return operationError("secret-tool clear", r)
}
