package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leiske/codex-usage/pkg/config"
	"github.com/leiske/codex-usage/pkg/store"
	"github.com/leiske/codex-usage/pkg/usage"
)

func expectedBars() string {
	return "5-hour [" + strings.Repeat("#", 3) + strings.Repeat("-", 21) + "] 12% (resets in 10m 20s)\n" +
		"Weekly [" + strings.Repeat("#", 24) + "] 98% (resets in 1d 1h)\n"
}

func TestRunUsage_StoredAuthAgainstServer(t *testing.T) {
	stubEnv(t, map[string]string{"HOME": t.TempDir()})

	var gotAuth, gotCookie, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCookie = r.Header.Get("Cookie")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"rate_limit":{
			"primary_window":{"used_percent":12,"reset_after_seconds":620},
			"secondary_window":{"used_percent":98,"reset_after_seconds":90061}}}`)
	}))
	defer server.Close()

	stores := []store.Store{
		&memStore{kind: store.KindSecretTool},
		&memStore{kind: store.KindPass, available: true, record: testRecord(server.URL)},
	}
	cfg := config.DefaultConfig()
	client := usage.NewClient(usage.ClientConfig{Timeout: 5 * time.Second})

	var stdout bytes.Buffer
	require.NoError(t, runUsage(context.Background(), cfg, stores, client, &stdout))

	assert.Equal(t, expectedBars(), stdout.String())
	assert.Equal(t, "Bearer secret_token_value", gotAuth)
	assert.Equal(t, "session=abc", gotCookie)
	assert.Equal(t, "UA", gotUA)
}

func TestRunUsage_EnvBeatsStores(t *testing.T) {
	stubEnv(t, map[string]string{
		"CHATGPT_AUTHORIZATION": "Bearer from_env",
		"CHATGPT_COOKIE":        "c=1",
		"CHATGPT_WHAM_URL":      "https://env.test/usage",
	})
	mem := &memStore{kind: store.KindPass, available: true, getErr: errBoom}
	fetcher := &fakeFetcher{snap: testSnapshot()}

	var stdout bytes.Buffer
	require.NoError(t, runUsage(context.Background(), config.DefaultConfig(), []store.Store{mem}, fetcher, &stdout))

	require.NotNil(t, fetcher.got)
	assert.Equal(t, "https://env.test/usage", fetcher.got.URL)
	assert.Equal(t, "Bearer from_env", fetcher.got.Authorization)
	assert.Equal(t, "c=1", fetcher.got.Cookie)
	assert.Equal(t, expectedBars(), stdout.String())
}

func TestRunUsage_CodexAuthFile(t *testing.T) {
	codexHome := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(codexHome, "auth.json"),
		[]byte(`{"tokens":{"id_token":"idtok","access_token":"acctok"}}`), 0600))
	stubEnv(t, map[string]string{"CODEX_HOME": codexHome})

	fetcher := &fakeFetcher{snap: testSnapshot()}
	cfg := config.DefaultConfig()
	cfg.UsageURL = "https://config.test/usage"

	var stdout bytes.Buffer
	require.NoError(t, runUsage(context.Background(), cfg, []store.Store{&memStore{kind: store.KindFile, available: true}}, fetcher, &stdout))

	require.NotNil(t, fetcher.got)
	assert.Equal(t, "Bearer idtok", fetcher.got.Authorization)
	assert.Equal(t, "https://config.test/usage", fetcher.got.URL)
	assert.Empty(t, fetcher.got.Cookie)
}

func TestRunUsage_MissingAuth(t *testing.T) {
	home := t.TempDir()
	stubEnv(t, map[string]string{"HOME": home})
	fetcher := &fakeFetcher{}

	var stdout bytes.Buffer
	err := runUsage(context.Background(), config.DefaultConfig(), []store.Store{&memStore{kind: store.KindFile, available: true}}, fetcher, &stdout)

	msg := exitMessage(t, err)
	assert.Contains(t, msg, "Missing auth to query usage")
	assert.Contains(t, msg, "codex-usage import")
	assert.Contains(t, msg, filepath.Join(home, ".codex", "auth.json"))
	assert.Nil(t, fetcher.got)
	assert.Empty(t, stdout.String())
}

func TestRunUsage_StoredAuthWithoutAuthorization(t *testing.T) {
	stubEnv(t, nil)
	rec := testRecord("https://x.test")
	delete(rec.Headers, "authorization")
	mem := &memStore{kind: store.KindPass, available: true, record: rec}

	err := runUsage(context.Background(), config.DefaultConfig(), []store.Store{mem}, &fakeFetcher{}, &bytes.Buffer{})
	assert.Equal(t, "Stored auth missing authorization. Re-run: codex-usage import", exitMessage(t, err))
}

func TestRunUsage_StoreReadError(t *testing.T) {
	stubEnv(t, nil)
	mem := &memStore{kind: store.KindPass, available: true, getErr: errBoom}

	err := runUsage(context.Background(), config.DefaultConfig(), []store.Store{mem}, &fakeFetcher{}, &bytes.Buffer{})
	msg := exitMessage(t, err)
	assert.Contains(t, msg, "Failed to read stored auth")
	assert.Contains(t, msg, "boom")
}

func TestRunUsage_AuthExpired(t *testing.T) {
	stubEnv(t, nil)
	mem := &memStore{kind: store.KindPass, available: true, record: testRecord("https://x.test/usage")}
	fetcher := &fakeFetcher{err: &usage.AuthExpiredError{
		RequestInfo: usage.RequestInfo{URL: "https://x.test/usage", HeaderNames: []string{"authorization", "cookie"}},
		Status:      403,
		APICode:     "token_expired",
	}}

	err := runUsage(context.Background(), config.DefaultConfig(), []store.Store{mem}, fetcher, &bytes.Buffer{})
	msg := exitMessage(t, err)
	assert.Contains(t, msg, "Auth expired")
	assert.Contains(t, msg, "HTTP 403")
	assert.Contains(t, msg, "token_expired")
	assert.NotContains(t, msg, "debug:")
}

func TestDescribeFetchError(t *testing.T) {
	info := usage.RequestInfo{URL: "https://x.test/usage", HeaderNames: []string{"accept", "authorization"}}

	tests := []struct {
		name  string
		err   error
		debug bool
		want  string
	}{
		{
			name: "expired without code",
			err:  &usage.AuthExpiredError{RequestInfo: info, Status: 401},
			want: "Auth expired (HTTP 401). Re-run: codex-usage import",
		},
		{
			name:  "expired with debug",
			err:   &usage.AuthExpiredError{RequestInfo: info, Status: 403, APICode: "token_expired"},
			debug: true,
			want: "Auth expired (HTTP 403, API code: token_expired). Re-run: codex-usage import\n" +
				"debug: url=https://x.test/usage\n" +
				"debug: status=403\n" +
				"debug: headers=accept,authorization",
		},
		{
			name: "timeout",
			err:  &usage.TimeoutError{RequestInfo: info, Timeout: "15s"},
			want: "Request timed out.",
		},
		{
			name: "status",
			err:  &usage.HTTPStatusError{RequestInfo: info, Status: 502},
			want: "Request failed (HTTP 502).",
		},
		{
			name: "unexpected",
			err:  &usage.UnexpectedResponseError{RequestInfo: info, Reason: "missing rate_limit.primary_window.used_percent"},
			want: "Unexpected response shape. Try re-importing auth.",
		},
		{
			name: "other",
			err:  errBoom,
			want: "Failed to fetch usage: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitMessage(t, describeFetchError(tt.err, tt.debug)))
		})
	}
}

func TestDescribeFetchError_UnexpectedDebug(t *testing.T) {
	err := &usage.UnexpectedResponseError{
		RequestInfo: usage.RequestInfo{URL: "https://x.test/usage"},
		Reason:      "response is not valid JSON",
	}
	msg := exitMessage(t, describeFetchError(err, true))
	assert.Contains(t, msg, "debug: unexpected JSON: response is not valid JSON")
	assert.Contains(t, msg, "debug: url=https://x.test/usage")
	assert.NotContains(t, msg, "debug: status=")
}

func TestRunUsage_NarrowTerminal(t *testing.T) {
	stubEnv(t, map[string]string{"CHATGPT_AUTHORIZATION": "Bearer x"})
	terminalColumns = func() int { return 50 }

	var stdout bytes.Buffer
	require.NoError(t, runUsage(context.Background(), config.DefaultConfig(), nil, &fakeFetcher{snap: testSnapshot()}, &stdout))

	first := strings.SplitN(stdout.String(), "\n", 2)[0]
	assert.Contains(t, first, "["+strings.Repeat("#", 1)+strings.Repeat("-", 9)+"]")
}
