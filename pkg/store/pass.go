package store

import (
	"context"
	"strings"

	"github.com/leiske/codex-usage/pkg/auth"
	"github.com/leiske/codex-usage/pkg/logger"
)

const (
	passBin   = "pass"
	passEntry = "codex-usage/default"
)

// pass ls output meaning the password store has never been initialised.
var passUninitialisedPatterns = []string{
	"password store is empty",
	"pass init",
}

// pass rm output meaning there was nothing to remove.
var passAbsentPatterns = []string{
	"is not in the password store",
}

// PassStore keeps the record as a multi-line entry in the standard unix
// password manager.
type PassStore struct {
	runner Runner
}

// NewPassStore creates a PassStore. A nil runner runs real processes.
func NewPassStore(runner Runner) *PassStore {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PassStore{runner: runner}
}

// Kind implements Store.
func (s *PassStore) Kind() Kind { return KindPass }

// Label implements Store.
func (s *PassStore) Label() string { return "pass" }

// IsAvailable requires a working pass binary and an initialised store.
func (s *PassStore) IsAvailable(ctx context.Context) bool {
	r := s.runner.Run(ctx, nil, passBin, "--version")
	if r.NotFound || r.Code != 0 {
		return false
	}

	// Without a gpg-id every insert fails, so an uninitialised store is
	// reported as unavailable up front.
	ls := s.runner.Run(ctx, nil, passBin, "ls")
	if ls.Code != 0 || containsAny(ls.Stdout+ls.Stderr, passUninitialisedPatterns) {
		logger.FromContext(ctx).Debug(ctx, "pass store not initialised", "exit", ls.Code)
		return false
	}
	return true
}

// Get implements Store.
func (s *PassStore) Get(ctx context.Context) (*auth.Record, error) {
	r := s.runner.Run(ctx, nil, passBin, "show", passEntry)
	if r.Code != 0 {
		logger.FromContext(ctx).Debug(ctx, "pass show returned nothing", "exit", r.Code)
		return nil, nil
	}
	raw := strings.TrimSpace(r.Stdout)
	if raw == "" {
		return nil, nil
	}
	return auth.DecodeRecord([]byte(raw), s.Label())
}

// Set implements Store.
func (s *PassStore) Set(ctx context.Context, rec *auth.Record) error {
	data, err := rec.Encode()
	if err != nil {
		return err
	}
	r := s.runner.Run(ctx, append(data, '\n'), passBin, "insert", "-m", "-f", passEntry)
	if r.Code != 0 {
		return operationError("pass insert", r)
	}
	return nil
}

// Clear implements Store.
func (s *PassStore) Clear(ctx context.Context) error {
	r := s.runner.Run(ctx, nil, passBin, "rm", "-f", passEntry)
	if r.Code == 0 || containsAny(r.Stderr, passAbsentPatterns) {
		return nil
	}
	return operationError("pass rm", r)
}
