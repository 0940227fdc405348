package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leiske/codex-usage/cmd"
	"github.com/leiske/codex-usage/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "codex-usage",
	Short: "Show ChatGPT Codex rate-limit usage",
	Long: `Show ChatGPT Codex rate-limit usage as two bars: the 5-hour window and
the weekly window.

Auth is taken from, in order:
  CHATGPT_AUTHORIZATION (with optional CHATGPT_COOKIE, CHATGPT_WHAM_URL)
  the first store holding an imported record (see: codex-usage import)
  the Codex CLI auth file ($CODEX_HOME/auth.json or ~/.codex/auth.json)`,
	Args:              cobra.NoArgs,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: cmd.Prepare,
	RunE:              cmd.RunUsage,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file path (default $XDG_CONFIG_HOME/codex-usage/config.toml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Print debug logs and request details on failure")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show the local reset time for each window")
	rootCmd.PersistentFlags().Int("retry", 0, "Extra attempts after a 5xx or network failure")

	// Bind flags to viper
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		log.Printf("Failed to bind config flag: %v", err)
	}
	if err := viper.BindPFlag(config.KeyDebug, rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		log.Printf("Failed to bind debug flag: %v", err)
	}
	if err := viper.BindPFlag(config.KeyVerbose, rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		log.Printf("Failed to bind verbose flag: %v", err)
	}
	if err := viper.BindPFlag(config.KeyRetry, rootCmd.PersistentFlags().Lookup("retry")); err != nil {
		log.Printf("Failed to bind retry flag: %v", err)
	}

	rootCmd.AddCommand(cmd.ImportCmd)
	rootCmd.AddCommand(cmd.LogoutCmd)
	rootCmd.AddCommand(cmd.StatusCmd)
	rootCmd.AddCommand(cmd.WatchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Msg != "" {
				fmt.Fprintln(os.Stderr, exitErr.Msg)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
