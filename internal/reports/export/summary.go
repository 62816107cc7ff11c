package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ceue-certificates/certgen/internal/certificates"
)

// SummaryColumns are the headers of a run summary
var SummaryColumns = []string{
	"Linha", "Estudante", "Cartão", "Meses", "Horas", "Situação", "Etapa", "Erro", "Arquivo", "URL",
}

// summaryRow flattens one result in SummaryColumns order
func summaryRow(r certificates.Result) []any {
	errText := ""
	if r.Err != nil {
		errText = r.Err.Error()
	}
	return []any{
		r.Row,
		r.Student,
		r.Card,
		r.Months,
		r.Hours,
		string(r.Status()),
		string(r.FailedStage()),
		errText,
		r.Output,
		r.ObjectURL,
	}
}

// WriteSummaryCSV writes one line per result
func WriteSummaryCSV(w io.Writer, summary *certificates.RunSummary, options CSVOptions) error {
	exporter := NewCSVExporter(w, options)
	if err := exporter.WriteHeader(SummaryColumns); err != nil {
		return err
	}
	for _, r := range summary.Results {
		if err := exporter.WriteRow(summaryRow(r)); err != nil {
			return err
		}
	}
	return exporter.Flush()
}

// WriteSummaryExcel writes the summary to a workbook
func WriteSummaryExcel(w io.Writer, summary *certificates.RunSummary, options ExcelOptions) error {
	exporter, err := NewExcelExporter(options)
	if err != nil {
		return err
	}
	defer exporter.Close()

	if err := exporter.WriteHeader(SummaryColumns); err != nil {
		return err
	}
	for _, r := range summary.Results {
		if err := exporter.WriteRow(summaryRow(r), r.Err != nil); err != nil {
			return err
		}
	}
	return exporter.WriteTo(w)
}

// SaveSummary writes the summary to path, as a workbook for .xlsx and as
// CSV otherwise
func SaveSummary(path string, summary *certificates.RunSummary) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create summary directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		err = WriteSummaryExcel(f, summary, DefaultExcelOptions())
	default:
		err = WriteSummaryCSV(f, summary, DefaultCSVOptions())
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to write summary %s: %w", path, err)
	}
	return f.Close()
}
