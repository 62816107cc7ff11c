package export

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter writes rows to a single-sheet workbook
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
	row     int
	widths  map[int]float64

	failureStyle int
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	SheetName    string            `json:"sheet_name" yaml:"sheet_name"`
	FreezeHeader bool              `json:"freeze_header" yaml:"freeze_header"`
	AutoFilter   bool              `json:"auto_filter" yaml:"auto_filter"`
	AutoWidth    bool              `json:"auto_width" yaml:"auto_width"`
	HeaderStyle  *ExcelStyleConfig `json:"header_style,omitempty" yaml:"header_style,omitempty"`
	FailureFill  string            `json:"failure_fill,omitempty" yaml:"failure_fill,omitempty"`
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool   `json:"font_bold" yaml:"font_bold"`
	FontSize  int    `json:"font_size" yaml:"font_size"`
	FontColor string `json:"font_color" yaml:"font_color"`
	FillColor string `json:"fill_color" yaml:"fill_color"`
	Alignment string `json:"alignment" yaml:"alignment"` // left, center, right
	Border    bool   `json:"border" yaml:"border"`
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:    "Certificados",
		FreezeHeader: true,
		AutoFilter:   true,
		AutoWidth:    true,
		FailureFill:  "F8CBAD",
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "4472C4",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
	}
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(options ExcelOptions) (*ExcelExporter, error) {
	file := excelize.NewFile()
	if err := file.SetSheetName(file.GetSheetName(0), options.SheetName); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	return &ExcelExporter{
		file:    file,
		options: options,
		widths:  make(map[int]float64),
	}, nil
}

// WriteHeader writes the styled header row
func (e *ExcelExporter) WriteHeader(columns []string) error {
	sheet := e.options.SheetName

	styleID := 0
	if e.options.HeaderStyle != nil {
		id, err := e.createStyle(e.options.HeaderStyle)
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		styleID = id
	}

	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = c
		e.track(i, c)
	}
	if err := e.file.SetSheetRow(sheet, "A1", &values); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if styleID > 0 {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		if err := e.file.SetCellStyle(sheet, "A1", last, styleID); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	if e.options.FreezeHeader {
		if err := e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return fmt.Errorf("failed to freeze header: %w", err)
		}
	}
	if e.options.AutoFilter {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		if err := e.file.AutoFilter(sheet, "A1:"+last, nil); err != nil {
			return fmt.Errorf("failed to add filter: %w", err)
		}
	}

	e.row = 1
	return nil
}

// WriteRow appends a data row. Failed rows get the failure fill.
func (e *ExcelExporter) WriteRow(values []any, failed bool) error {
	e.row++
	cell, _ := excelize.CoordinatesToCellName(1, e.row)
	if err := e.file.SetSheetRow(e.options.SheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", e.row, err)
	}
	for i, v := range values {
		e.track(i, fmt.Sprint(v))
	}

	if failed && e.options.FailureFill != "" {
		if e.failureStyle == 0 {
			id, err := e.createStyle(&ExcelStyleConfig{FillColor: e.options.FailureFill})
			if err != nil {
				return fmt.Errorf("failed to create failure style: %w", err)
			}
			e.failureStyle = id
		}
		last, _ := excelize.CoordinatesToCellName(len(values), e.row)
		if err := e.file.SetCellStyle(e.options.SheetName, cell, last, e.failureStyle); err != nil {
			return fmt.Errorf("failed to style row %d: %w", e.row, err)
		}
	}
	return nil
}

// track records the widest value seen per column
func (e *ExcelExporter) track(col int, s string) {
	if !e.options.AutoWidth {
		return
	}
	// Rough estimate: 1 character = 1.2 units of width
	w := float64(utf8.RuneCountInString(s)) * 1.2
	if w > e.widths[col] {
		e.widths[col] = w
	}
}

func (e *ExcelExporter) applyWidths() error {
	for col, width := range e.widths {
		name, _ := excelize.ColumnNumberToName(col + 1)
		// Min width 10, max width 60
		if width < 10 {
			width = 10
		}
		if width > 60 {
			width = 60
		}
		if err := e.file.SetColWidth(e.options.SheetName, name, name, width); err != nil {
			return err
		}
	}
	return nil
}

// WriteTo writes the workbook to w
func (e *ExcelExporter) WriteTo(w io.Writer) error {
	if err := e.applyWidths(); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	return e.file.Write(w)
}

// Close closes the workbook
func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

// createStyle creates an Excel style from config
func (e *ExcelExporter) createStyle(config *ExcelStyleConfig) (int, error) {
	style := &excelize.Style{}

	if config.FontBold || config.FontSize > 0 || config.FontColor != "" {
		style.Font = &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		}
	}

	if config.FillColor != "" {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{config.FillColor},
		}
	}

	switch config.Alignment {
	case "left", "center", "right":
		style.Alignment = &excelize.Alignment{Horizontal: config.Alignment}
	}

	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		}
	}

	return e.file.NewStyle(style)
}
