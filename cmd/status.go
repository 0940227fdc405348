package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leiske/codex-usage/pkg/auth"
	"github.com/leiske/codex-usage/pkg/config"
	"github.com/leiske/codex-usage/pkg/logger"
	"github.com/leiske/codex-usage/pkg/render"
	"github.com/leiske/codex-usage/pkg/store"
)

var statusOutput string

var StatusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"store-status"},
	Short:   "Show which stores are available and which one holds auth",
	Args:    cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		ctx, cfg, stores, err := setup(c)
		if err != nil {
			return err
		}
		report := collectStatus(ctx, cfg, stores)
		return writeStatus(c.OutOrStdout(), report, statusOutput)
	},
}

func init() {
	StatusCmd.Flags().StringVarP(&statusOutput, "output", "o", "text", "Output format: text, json or yaml")
}

type storeStatus struct {
	Kind      string `json:"kind" yaml:"kind"`
	Label     string `json:"label" yaml:"label"`
	Available bool   `json:"available" yaml:"available"`
	HasAuth   bool   `json:"has_auth" yaml:"has_auth"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

type statusReport struct {
	Stores   []storeStatus `json:"stores" yaml:"stores"`
	FilePath string        `json:"file_path" yaml:"file_path"`
	// Active is the store holding auth, else the one an import would use.
	Active       string     `json:"active" yaml:"active"`
	ImportedAt   *time.Time `json:"imported_at,omitempty" yaml:"imported_at,omitempty"`
	TokenExpires *time.Time `json:"token_expires,omitempty" yaml:"token_expires,omitempty"`
}

func collectStatus(ctx context.Context, cfg *config.Config, stores []store.Store) *statusReport {
	log := logger.FromContext(ctx)
	report := &statusReport{Stores: make([]storeStatus, 0, len(stores))}

	var (
		active         *auth.Record
		firstAvailable string
	)
	for _, s := range stores {
		st := storeStatus{Kind: string(s.Kind()), Label: s.Label()}
		if s.IsAvailable(ctx) {
			st.Available = true
			if firstAvailable == "" {
				firstAvailable = st.Kind
			}
			rec, err := s.Get(ctx)
			if err != nil {
				// unreadable data counts as no auth
				log.Warn(ctx, "failed to read store", "store", s.Kind(), "error", err)
				st.Error = err.Error()
			}
			st.HasAuth = rec != nil
			if rec != nil && report.Active == "" {
				report.Active = st.Kind
				active = rec
			}
		}
		report.Stores = append(report.Stores, st)
	}

	if report.Active == "" {
		report.Active = firstAvailable
	}
	if report.Active == "" {
		report.Active = "none"
	}

	switch fs := store.FindFile(stores); {
	case fs != nil:
		report.FilePath = fs.Path()
	case cfg.AuthFile != "":
		report.FilePath = cfg.AuthFile
	default:
		report.FilePath, _ = store.DefaultAuthPath(getenv)
	}

	if active != nil {
		imported := active.ImportedTime()
		report.ImportedAt = &imported
		if exp, ok := auth.TokenExpiry(active.Authorization()); ok {
			report.TokenExpires = &exp
		}
	}
	return report
}

func writeStatus(w io.Writer, report *statusReport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode status: %w", err)
		}
		return enc.Close()
	case "text", "":
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}

	for _, st := range report.Stores {
		switch {
		case !st.Available:
			fmt.Fprintf(w, "%s: unavailable\n", st.Kind)
		case st.HasAuth:
			fmt.Fprintf(w, "%s: available (has auth)\n", st.Kind)
		default:
			fmt.Fprintf(w, "%s: available\n", st.Kind)
		}
	}
	fmt.Fprintf(w, "file_path: %s\n", report.FilePath)
	fmt.Fprintf(w, "active: %s\n", report.Active)
	if report.ImportedAt != nil {
		fmt.Fprintf(w, "imported_at: %s\n", render.FormatLocalTimestamp(*report.ImportedAt))
	}
	if report.TokenExpires != nil {
		left := report.TokenExpires.Sub(now())
		if left <= 0 {
			fmt.Fprintf(w, "token_expires: %s (expired)\n", render.FormatLocalTimestamp(*report.TokenExpires))
		} else {
			fmt.Fprintf(w, "token_expires: %s (in %s)\n", render.FormatLocalTimestamp(*report.TokenExpires), render.FormatDuration(left.Seconds()))
		}
	}
	return nil
}
