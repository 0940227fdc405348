package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leiske/codex-usage/pkg/auth"
	"github.com/leiske/codex-usage/pkg/store"
	"github.com/leiske/codex-usage/pkg/usage"
)

// memStore is an in-memory store.Store.
type memStore struct {
	kind      store.Kind
	available bool
	record    *auth.Record
	getErr    error
	setErr    error
	clearErr  error
}

func (m *memStore) Kind() store.Kind { return m.kind }

func (m *memStore) Label() string { return string(m.kind) }

func (m *memStore) IsAvailable(context.Context) bool { return m.available }

func (m *memStore) Get(context.Context) (*auth.Record, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.record.Clone(), nil
}

func (m *memStore) Set(_ context.Context, rec *auth.Record) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.record = rec.Clone()
	return nil
}

func (m *memStore) Clear(context.Context) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.record = nil
	return nil
}

// fakeFetcher records the request and returns canned results.
type fakeFetcher struct {
	snap *usage.Snapshot
	err  error
	got  *usage.Request
}

func (f *fakeFetcher) Fetch(_ context.Context, req usage.Request) (*usage.Snapshot, error) {
	f.got = &req
	return f.snap, f.err
}

var errBoom = errors.New("boom")

func testSnapshot() *usage.Snapshot {
	return &usage.Snapshot{
		Primary:   usage.Window{UsedPercent: 12, ResetAfterSeconds: 620},
		Secondary: usage.Window{UsedPercent: 98, ResetAfterSeconds: 90061},
	}
}

func testRecord(url string) *auth.Record {
	return &auth.Record{
		URL:        url,
		Headers:    map[string]string{"authorization": "Bearer secret_token_value", "user-agent": "UA"},
		Cookie:     "session=abc",
		ImportedAt: 1700000000,
	}
}

// stubEnv replaces the package environment and clock for one test.
func stubEnv(t *testing.T, env map[string]string) {
	t.Helper()
	origEnv, origNow, origCols := getenv, now, terminalColumns
	getenv = func(k string) string { return env[k] }
	now = func() time.Time { return time.Unix(1700000000, 0) }
	terminalColumns = func() int { return 0 }
	t.Cleanup(func() {
		getenv, now, terminalColumns = origEnv, origNow, origCols
	})
}

// exitMessage asserts err is an *ExitError and returns its message.
func exitMessage(t *testing.T, err error) string {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected *ExitError, got %v", err)
	return exitErr.Msg
}
