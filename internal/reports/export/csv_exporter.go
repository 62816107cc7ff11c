package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
	"unicode/utf8"
)

// utf8BOM lets spreadsheet apps detect UTF-8 in accented names
const utf8BOM = "\ufeff"

// CSVExporter writes summary rows as delimited text
type CSVExporter struct {
	out     io.Writer
	writer  *csv.Writer
	options CSVOptions
	started bool
}

// CSVOptions configures CSV export behavior
type CSVOptions struct {
	Delimiter     string `json:"delimiter" yaml:"delimiter"`
	IncludeHeader bool   `json:"include_header" yaml:"include_header"`
	WriteBOM      bool   `json:"write_bom" yaml:"write_bom"`
	TimeLayout    string `json:"time_layout" yaml:"time_layout"`
}

// DefaultCSVOptions returns comma-separated output with a header and BOM
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:     ",",
		IncludeHeader: true,
		WriteBOM:      true,
		TimeLayout:    time.RFC3339,
	}
}

// NewCSVExporter creates a new CSV exporter
func NewCSVExporter(w io.Writer, options CSVOptions) *CSVExporter {
	writer := csv.NewWriter(w)
	if d, _ := utf8.DecodeRuneInString(options.Delimiter); d != utf8.RuneError {
		writer.Comma = d
	}

	return &CSVExporter{out: w, writer: writer, options: options}
}

// start emits the BOM ahead of the first record
func (e *CSVExporter) start() error {
	if e.started {
		return nil
	}
	e.started = true
	if !e.options.WriteBOM {
		return nil
	}
	if _, err := io.WriteString(e.out, utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}
	return nil
}

// WriteHeader writes the header row unless disabled
func (e *CSVExporter) WriteHeader(columns []string) error {
	if err := e.start(); err != nil {
		return err
	}
	if !e.options.IncludeHeader {
		return nil
	}
	if err := e.writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// WriteRow writes one record
func (e *CSVExporter) WriteRow(row []any) error {
	if err := e.start(); err != nil {
		return err
	}
	record := make([]string, len(row))
	for i, val := range row {
		record[i] = e.format(val)
	}
	if err := e.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

// Flush writes any buffered data to the underlying writer
func (e *CSVExporter) Flush() error {
	e.writer.Flush()
	return e.writer.Error()
}

// format renders nil and the zero time as empty cells
func (e *CSVExporter) format(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(e.options.TimeLayout)
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
