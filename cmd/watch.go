package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leiske/codex-usage/pkg/config"
	"github.com/leiske/codex-usage/pkg/logger"
	"github.com/leiske/codex-usage/pkg/render"
)

var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-render usage on a schedule until interrupted",
	Long: `Render usage once, then again on every tick of a cron schedule.

The schedule accepts standard five-field cron expressions and descriptors
such as "@every 5m" or "@hourly".`,
	Args: cobra.NoArgs,
	RunE: func(c *cobra.Command, _ []string) error {
		ctx, cfg, stores, err := setup(c)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		fetcher := NewFetcherFunc(cfg)
		stdout, stderr := c.OutOrStdout(), c.ErrOrStderr()
		tick := func(ctx context.Context) error {
			return runUsage(ctx, cfg, stores, fetcher, stdout)
		}
		return runWatch(ctx, cfg.WatchSchedule, tick, stdout, stderr)
	},
}

func init() {
	WatchCmd.Flags().String("schedule", "", "Cron schedule (default from config, \"@every 5m\")")
	if err := viper.BindPFlag(config.KeyWatchSchedule, WatchCmd.Flags().Lookup("schedule")); err != nil {
		log.Printf("Failed to bind schedule flag: %v", err)
	}
}

// runWatch renders once, then on every tick of schedule until ctx is done.
// Failed renders are reported and watching continues.
func runWatch(ctx context.Context, schedule string, tick func(context.Context) error, stdout, stderr io.Writer) error {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return fail("Invalid schedule %q: %v", schedule, err)
	}

	renderOnce := func() {
		fmt.Fprintf(stdout, "== %s ==\n", render.FormatLocalTimestamp(now()))
		if err := tick(ctx); err != nil {
			fmt.Fprintln(stderr, err)
		}
	}

	renderOnce()

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(sched, cron.FuncJob(renderOnce))
	c.Start()
	logger.FromContext(ctx).Debug(ctx, "watching usage", "schedule", schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
