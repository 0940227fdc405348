package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leiske/codex-usage/pkg/store"
)

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored auth from every available store",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		ctx, _, stores, err := setup(c)
		if err != nil {
			return err
		}
		return runLogout(ctx, stores, c.OutOrStdout(), c.ErrOrStderr())
	},
}

func runLogout(ctx context.Context, stores []store.Store, stdout, stderr io.Writer) error {
	res := store.ClearAllAvailable(ctx, stores)

	cleared := make([]string, 0, len(res.Cleared))
	for _, s := range res.Cleared {
		cleared = append(cleared, string(s.Kind()))
	}
	if len(cleared) == 0 {
		cleared = append(cleared, "none")
	}
	fmt.Fprintf(stdout, "Cleared: %s\n", strings.Join(cleared, ", "))

	if len(res.Failed) == 0 {
		return nil
	}

	failed := make([]string, 0, len(res.Failed))
	for _, f := range res.Failed {
		failed = append(failed, string(f.Store.Kind()))
		fmt.Fprintf(stderr, "%s\n", f.String())
	}
	fmt.Fprintf(stdout, "Failed: %s\n", strings.Join(failed, ", "))
	return &ExitError{Code: 1}
}
