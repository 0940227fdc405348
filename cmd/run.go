package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leiske/codex-usage/pkg/auth"
	"github.com/leiske/codex-usage/pkg/config"
	"github.com/leiske/codex-usage/pkg/logger"
	"github.com/leiske/codex-usage/pkg/render"
	"github.com/leiske/codex-usage/pkg/store"
	"github.com/leiske/codex-usage/pkg/usage"
)

const reimportHint = "Re-run: codex-usage import"

// RunUsage is the root command: resolve a credential, fetch usage and
// print the two bars.
func RunUsage(c *cobra.Command, _ []string) error {
	ctx, cfg, stores, err := setup(c)
	if err != nil {
		return err
	}
	return runUsage(ctx, cfg, stores, NewFetcherFunc(cfg), c.OutOrStdout())
}

// credential is a resolved record and where it came from.
type credential struct {
	source string
	record *auth.Record
}

func (cr *credential) request() usage.Request {
	return usage.Request{
		URL:           cr.record.URL,
		Authorization: cr.record.Authorization(),
		Cookie:        cr.record.Cookie,
		Headers:       cr.record.OtherHeaders(),
	}
}

func runUsage(ctx context.Context, cfg *config.Config, stores []store.Store, fetcher usageFetcher, stdout io.Writer) error {
	cred, err := resolveCredential(ctx, cfg, stores)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Debug(ctx, "resolved credential", "source", cred.source, "url", cred.record.URL)

	snap, err := fetcher.Fetch(ctx, cred.request())
	if err != nil {
		return describeFetchError(err, cfg.Debug)
	}

	width := render.ComputeBarWidth(terminalColumns(), cfg.BarWidth)
	_, err = fmt.Fprintln(stdout, render.Bars(snap, render.Options{Width: width, Verbose: cfg.Verbose, Now: now()}))
	return err
}

// resolveCredential tries CHATGPT_* variables, then the store chain, then
// the Codex CLI auth file.
func resolveCredential(ctx context.Context, cfg *config.Config, stores []store.Store) (*credential, error) {
	if rec := auth.FromEnv(getenv, cfg.UsageURL); rec != nil {
		return &credential{source: "environment", record: rec}, nil
	}

	sel, err := store.GetFirstAuth(ctx, stores)
	if err != nil {
		return nil, fail("Failed to read stored auth: %v\n%s", err, reimportHint)
	}
	if sel != nil {
		if sel.Record.Authorization() == "" {
			return nil, fail("Stored auth missing authorization. %s", reimportHint)
		}
		return &credential{source: sel.Store.Label(), record: sel.Record}, nil
	}

	codexPath, pathErr := auth.DefaultCodexAuthPath(getenv)
	if pathErr == nil {
		codex, err := auth.LoadCodexAuth(codexPath)
		switch {
		case err == nil:
			return &credential{source: "codex (" + codex.Path + ")", record: codex.Record(cfg.UsageURL)}, nil
		case !errors.Is(err, auth.ErrCodexAuthNotFound):
			return nil, fail("%v", err)
		}
	}

	msg := "Missing auth to query usage. Run: codex-usage import < curl.txt"
	if pathErr == nil {
		msg += "\nExpected Codex auth file: " + codexPath
	}
	return nil, fail("%s", msg)
}

// describeFetchError turns a fetch failure into the message shown to the
// user. Debug mode appends the URL, status and header names.
func describeFetchError(err error, debug bool) error {
	var (
		expired    *usage.AuthExpiredError
		status     *usage.HTTPStatusError
		timeout    *usage.TimeoutError
		unexpected *usage.UnexpectedResponseError
	)

	var (
		lines []string
		info  *usage.RequestInfo
		code  int
	)
	switch {
	case errors.As(err, &expired):
		head := "Auth expired (HTTP " + strconv.Itoa(expired.Status)
		if expired.APICode != "" {
			head += ", API code: " + expired.APICode
		}
		lines = append(lines, head+"). "+reimportHint)
		info, code = &expired.RequestInfo, expired.Status
	case errors.As(err, &timeout):
		lines = append(lines, "Request timed out.")
		info = &timeout.RequestInfo
	case errors.As(err, &status):
		head := "Request failed (HTTP " + strconv.Itoa(status.Status)
		if status.APICode != "" {
			head += ", API code: " + status.APICode
		}
		lines = append(lines, head+").")
		info, code = &status.RequestInfo, status.Status
	case errors.As(err, &unexpected):
		lines = append(lines, "Unexpected response shape. Try re-importing auth.")
		if debug {
			lines = append(lines, "debug: "+unexpected.Error())
		}
		info = &unexpected.RequestInfo
	default:
		return fail("Failed to fetch usage: %v", err)
	}

	if debug && info != nil {
		if info.URL != "" {
			lines = append(lines, "debug: url="+info.URL)
		}
		if code != 0 {
			lines = append(lines, "debug: status="+strconv.Itoa(code))
		}
		if len(info.HeaderNames) > 0 {
			lines = append(lines, "debug: headers="+strings.Join(info.HeaderNames, ","))
		}
	}
	return fail("%s", strings.Join(lines, "\n"))
}
