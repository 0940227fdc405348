package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/leiske/codex-usage/pkg/auth"
	"github.com/leiske/codex-usage/pkg/curl"
	"github.com/leiske/codex-usage/pkg/logger"
	"github.com/leiske/codex-usage/pkg/store"
)

var importFromClipboard bool

// ReadClipboardFunc reads the system clipboard; can be overridden in tests
var ReadClipboardFunc = clipboard.ReadAll

var ImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import auth from a DevTools \"Copy as cURL\" capture",
	Long: `Import auth from a browser DevTools "Copy as cURL" capture.

Only the URL, cookie and an allow-list of headers are kept:
  authorization, user-agent, accept, referer,
  oai-device-id, oai-client-version, oai-client-build-number

The record is written to the first available store in priority order
(secret-tool, pass, file), falling back to the next store on failure.

Examples:
  # Import from a saved capture
  codex-usage import < curl.txt

  # Import straight from the clipboard
  codex-usage import --clipboard`,
	Args: cobra.NoArgs,
	RunE: runImportCmd,
}

func init() {
	ImportCmd.Flags().BoolVar(&importFromClipboard, "clipboard", false, "Read the capture from the system clipboard instead of stdin")
}

func runImportCmd(c *cobra.Command, _ []string) error {
	ctx, _, stores, err := setup(c)
	if err != nil {
		return err
	}

	var input string
	if importFromClipboard {
		input, err = ReadClipboardFunc()
		if err != nil {
			return fail("Failed to read clipboard: %v", err)
		}
	} else {
		data, err := io.ReadAll(c.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		input = string(data)
	}

	return runImport(ctx, input, stores, c.OutOrStdout(), c.ErrOrStderr())
}

func runImport(ctx context.Context, input string, stores []store.Store, stdout, stderr io.Writer) error {
	log := logger.FromContext(ctx)

	if strings.TrimSpace(input) == "" {
		return fail("No input. Pipe a DevTools 'Copy as cURL' into stdin.")
	}

	capture, err := curl.Parse(input)
	if err != nil {
		return fail("Import failed: %v", err)
	}

	rec, err := auth.NewRecord(capture, now())
	if err != nil {
		if errors.Is(err, auth.ErrMissingAuthorization) {
			return fail("Import failed: missing authorization header in cURL input.")
		}
		return fail("Import failed: %v", err)
	}

	previous, err := store.GetFirstAuth(ctx, stores)
	if err != nil {
		log.Warn(ctx, "could not read previous auth for comparison", "error", err)
	}

	res, err := store.SetWithFallback(ctx, stores, rec)
	if err != nil {
		var setErr *store.SetError
		if errors.As(err, &setErr) {
			msg := "Import failed: " + setErr.Error()
			for _, f := range setErr.Failures {
				msg += "\n  " + f.String()
			}
			return fail("%s", msg)
		}
		return fail("Import failed: %v", err)
	}

	fmt.Fprintf(stdout, "Imported auth to %s\n", res.Store.Label())
	fmt.Fprintf(stdout, "Headers: %s\n", strings.Join(rec.HeaderNames(), ", "))
	if rec.Cookie != "" {
		fmt.Fprintln(stdout, "Cookie: yes")
	} else {
		fmt.Fprintln(stdout, "Cookie: no")
	}

	if previous != nil {
		diff, err := recordDiff(previous.Record, rec, previous.Store.Label())
		if err != nil {
			log.Warn(ctx, "could not compare with previous auth", "error", err)
		} else if diff == "" {
			fmt.Fprintln(stdout, "Unchanged since previous import.")
		} else {
			fmt.Fprint(stdout, "Changes since previous import:\n"+diff)
		}
	}
	fmt.Fprintln(stdout, "Run `codex-usage` to see the latest usage.")

	if res.UsedFallback {
		for _, f := range res.Failures {
			fmt.Fprintf(stderr, "NOTE: %s failed (%v); fell back to %s.\n", f.Store.Label(), f.Err, res.Store.Label())
		}
	}
	if res.Store.Kind() == store.KindFile {
		fmt.Fprintln(stderr, "WARNING: auth stored unencrypted in a file (mode 0600). Treat it like a password.")
	}
	return nil
}

// recordDiff compares redacted summaries of two records. Values are shown
// only as short fingerprints.
func recordDiff(before, after *auth.Record, beforeLabel string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(redactedSummary(before)),
		B:        difflib.SplitLines(redactedSummary(after)),
		FromFile: "previous (" + beforeLabel + ")",
		ToFile:   "imported",
		Context:  1,
	})
}

func redactedSummary(rec *auth.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "url: %s\n", rec.URL)
	for _, name := range rec.HeaderNames() {
		fmt.Fprintf(&b, "header %s: %s\n", name, fingerprint(rec.Headers[name]))
	}
	if rec.Cookie != "" {
		fmt.Fprintf(&b, "cookie: %s\n", fingerprint(rec.Cookie))
	}
	return b.String()
}

func fingerprint(value string) string {
	sum := sha256.Sum256([]byte(value))
	return "sha256:" + hex.EncodeToString(sum[:4])
}
