package store

import (
	"context"
	"errors"
	"strings"

	"github.com/leiske/codex-usage/pkg/auth"
)

// call records one invocation seen by fakeRunner.
type call struct {
	argv  []string
	stdin string
}

// fakeRunner answers by matching the joined argv against its responses.
type fakeRunner struct {
	responses map[string]Result
	fallback  Result
	calls     []call
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: map[string]Result{}}
}

func (f *fakeRunner) on(cmdline string, r Result) *fakeRunner {
	f.responses[cmdline] = r
	return f
}

func (f *fakeRunner) Run(_ context.Context, stdin []byte, argv ...string) Result {
	f.calls = append(f.calls, call{argv: argv, stdin: string(stdin)})
	if r, ok := f.responses[strings.Join(argv, " ")]; ok {
		return r
	}
	return f.fallback
}

func (f *fakeRunner) commandLines() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, strings.Join(c.argv, " "))
	}
	return out
}

// fakeStore is an in-memory Store with scriptable failures.
type fakeStore struct {
	kind        Kind
	label       string
	available   bool
	record      *auth.Record
	getErr      error
	setErr      error
	clearErr    error
	getCalls    int
	setCalls    int
	clearCalls  int
	probeCalled int
}

func (f *fakeStore) Kind() Kind    { return f.kind }
func (f *fakeStore) Label() string { return f.label }

func (f *fakeStore) IsAvailable(context.Context) bool {
	f.probeCalled++
	return f.available
}

func (f *fakeStore) Get(context.Context) (*auth.Record, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.record.Clone(), nil
}

func (f *fakeStore) Set(_ context.Context, rec *auth.Record) error {
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	f.record = rec.Clone()
	return nil
}

func (f *fakeStore) Clear(context.Context) error {
	f.clearCalls++
	if f.clearErr != nil {
		return f.clearErr
	}
	f.record = nil
	return nil
}

func sampleRecord() *auth.Record {
	return &auth.Record{
		URL:        "https://chatgpt.com/backend-api/wham/usage",
		Headers:    map[string]string{"authorization": "Bearer T", "accept": "*/*"},
		Cookie:     "a=b",
		ImportedAt: 1700000000,
	}
}

var errBoom = errors.New("boom")
