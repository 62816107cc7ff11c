package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ceue-certificates/certgen/internal/certificates"
	"ceue-certificates/certgen/internal/roster"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the values each roster row would produce",
	Long: `Derives the certificate values for every roster row without rendering.

Rows that cannot be derived and rows whose month total is not positive are
listed after the table.`,
	RunE: runPreview,
}

func runPreview(cmd *cobra.Command, args []string) error {
	if err := applyBatchFlags(cmd, cfg); err != nil {
		return err
	}

	records, err := roster.Load(cfg.Input.Roster, cfg.Input.Options)
	if err != nil {
		return err
	}
	params, err := cfg.RunParameters(time.Now())
	if err != nil {
		return err
	}

	// Preview never renders, so no engine is wired.
	service := certificates.NewService(nil, nil, nil, nil, cfg.ServiceOptions(), logger)
	results := service.Preview(records, params)

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tSTUDENT\tCARD\tMONTHS\tHOURS")
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n", r.Row, r.Student, r.Card, r.Months, r.Hours)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(out, "error: %v\n", r.Err)
		case r.Months <= 0:
			fmt.Fprintf(out, "warning: row %d (%s): %d months\n", r.Row, r.Student, r.Months)
		}
	}
	return nil
}
