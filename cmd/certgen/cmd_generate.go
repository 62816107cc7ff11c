package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ceue-certificates/certgen/internal/certificates"
	"ceue-certificates/certgen/internal/config"
	"ceue-certificates/certgen/internal/reports/export"
)

var summaryPath string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render one certificate per roster row",
	Long: `Loads the roster and the template, fills the template for every row and
renders it to PDF in the output directory.

When storage, delivery or the registry are configured, every certificate is
also uploaded, e-mailed to the member and recorded.

Exits non-zero when any row failed.`,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if err := applyBatchFlags(cmd, cfg); err != nil {
		return err
	}
	if cmd.Flags().Changed("summary") {
		cfg.Output.Summary = summaryPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := runBatch(ctx, a.service, cfg, logger)
	if summary != nil {
		printSummary(cmd.OutOrStdout(), summary)
	}
	return err
}

// runBatch loads inputs, generates and writes the summary file
func runBatch(ctx context.Context, service *certificates.Service, c *config.Config, logger *zap.Logger) (*certificates.RunSummary, error) {
	tpl, records, err := loadBatch(c)
	if err != nil {
		return nil, err
	}
	params, err := c.RunParameters(time.Now())
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded roster",
		zap.String("roster", c.Input.Roster),
		zap.String("template", c.Run.Template),
		zap.Int("records", len(records)))

	summary, runErr := service.Generate(ctx, tpl, records, params)
	if summary == nil {
		return nil, runErr
	}

	if c.Output.Summary != "" {
		if err := export.SaveSummary(c.Output.Summary, summary); err != nil {
			return summary, errors.Join(runErr, err)
		}
		logger.Info("Wrote run summary", zap.String("path", c.Output.Summary))
	}
	return summary, runErr
}

func printSummary(w io.Writer, summary *certificates.RunSummary) {
	fmt.Fprintf(w, "Run %s: %d issued, %d failed\n", summary.RunID, summary.Succeeded, summary.Failed)
	for _, err := range summary.Errors() {
		fmt.Fprintf(w, "  %v\n", err)
	}
}
