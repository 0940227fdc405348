// Package store persists a single credential record in one of several
// secret backends and sequences operations across a priority-ordered list
// of them.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/leiske/codex-usage/pkg/auth"
)

// Kind identifies a backend implementation.
type Kind string

const (
	KindSecretTool Kind = "secret-tool"
	KindPass       Kind = "pass"
	KindFile       Kind = "file"
)

// Store is one place a credential record can live. Implementations are
// stateless handles: every call re-invokes the underlying mechanism.
type Store interface {
	// Kind returns the backend variant.
	Kind() Kind

	// Label returns a human readable name for messages.
	Label() string

	// IsAvailable reports whether the backend is usable right now.
	// It never fails; problems reaching the backend mean false.
	IsAvailable(ctx context.Context) bool

	// Get returns the stored record.
	// Returns nil, nil if nothing is stored.
	// Returns nil, error if an entry exists but cannot be read or validated.
	Get(ctx context.Context) (*auth.Record, error)

	// Set replaces the stored record.
	Set(ctx context.Context, rec *auth.Record) error

	// Clear removes the stored record. Clearing an empty slot succeeds.
	Clear(ctx context.Context) error
}

// ParseKind maps a configured backend name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSecretTool, KindPass, KindFile:
		return k, nil
	default:
		return "", fmt.Errorf("unknown store kind %q (want secret-tool, pass or file)", s)
	}
}

// containsAny reports whether s contains any of the patterns, ignoring case.
func containsAny(s string, patterns []string) bool {
	low := strings.ToLower(s)
	for _, p := range patterns {
		if strings.Contains(low, p) {
			return true
		}
	}
	return false
}

// diagnostic picks the captured output worth showing in an error message.
func diagnostic(r Result) string {
	if msg := strings.TrimSpace(r.Stderr); msg != "" {
		return msg
	}
	return strings.TrimSpace(r.Stdout)
}

// operationError formats a failed backend call.
func operationError(op string, r Result) error {
	if msg := diagnostic(r); msg != "" {
		return fmt.Errorf("%s failed: %s", op, msg)
	}
	return fmt.Errorf("%s failed (exit %d)", op, r.Code)
}
