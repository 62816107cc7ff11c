package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ceue-certificates/certgen/internal/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run generate on the configured cron schedule",
	Long: `Stays in the foreground and runs a full generate batch whenever
schedule.cron fires (in schedule.timezone). Set schedule.run_on_start to also
run once immediately. Stops on SIGINT or SIGTERM after the current batch.

With --next N it only prints the next N run times and exits.`,
	RunE: runSchedule,
}

var nextRuns int

// printNextRuns lists the upcoming firing times of the configured schedule
func printNextRuns(cmd *cobra.Command, n int, from time.Time) error {
	for i := 0; i < n; i++ {
		next, err := scheduler.NextExecution(cfg.Schedule.Cron, cfg.Schedule.Timezone, from)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), next.Format(time.RFC3339))
		from = next
	}
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	if err := applyBatchFlags(cmd, cfg); err != nil {
		return err
	}
	if nextRuns > 0 {
		return printNextRuns(cmd, nextRuns, time.Now())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	job := func(ctx context.Context) error {
		summary, err := runBatch(ctx, a.service, cfg, logger)
		if summary != nil {
			printSummary(cmd.OutOrStdout(), summary)
		}
		return err
	}

	manager, err := scheduler.NewManager(cfg.Schedule, job, logger)
	if err != nil {
		return err
	}
	if err := manager.Start(ctx); err != nil {
		return err
	}
	logger.Info("Waiting for next run", zap.Time("next", manager.Next()))

	<-ctx.Done()
	logger.Info("Received shutdown signal")
	manager.Stop()
	return nil
}
