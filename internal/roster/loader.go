// Package roster reads the certificate roster (one row per student) from
// CSV or Excel files exported from the CEUE membership form.
package roster

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"ceue-certificates/certgen/internal/certificates"
)

var (
	ErrMissingColumn     = errors.New("missing required column")
	ErrUnsupportedFormat = errors.New("unsupported roster format")
	ErrEmptyRoster       = errors.New("roster has no header row")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Columns maps record fields to header names in the roster
type Columns struct {
	FullName   string `json:"full_name" yaml:"full_name"`
	Course     string `json:"course" yaml:"course"`
	CardNumber string `json:"card_number" yaml:"card_number"`
	Sector     string `json:"sector" yaml:"sector"`
	EntryMonth string `json:"entry_month" yaml:"entry_month"`
	ExitMonth  string `json:"exit_month" yaml:"exit_month"`
	Gender     string `json:"gender" yaml:"gender"`
	Email      string `json:"email" yaml:"email"`
}

// DefaultColumns returns the headers of the membership form export
func DefaultColumns() Columns {
	return Columns{
		FullName:   "Nome Completo",
		Course:     "Curso",
		CardNumber: "Cartão UFRGS",
		Sector:     "Setor do CEUE",
		EntryMonth: "Mês que entrou no CEUE",
		ExitMonth:  "Mês que saiu do CEUE",
		Gender:     "G",
		Email:      "Endereço de e-mail",
	}
}

// Options configures roster parsing
type Options struct {
	Columns   Columns `json:"columns" yaml:"columns"`
	Delimiter string  `json:"delimiter" yaml:"delimiter"`
	Sheet     string  `json:"sheet,omitempty" yaml:"sheet,omitempty"`
}

// DefaultOptions returns comma-separated input with the form's headers
func DefaultOptions() Options {
	return Options{
		Columns:   DefaultColumns(),
		Delimiter: ",",
	}
}

// Load reads the roster at path, choosing the parser by extension
func Load(path string, opts Options) ([]certificates.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return ReadCSV(bytes.NewReader(data), opts)
	case ".tsv":
		opts.Delimiter = "\t"
		return ReadCSV(bytes.NewReader(data), opts)
	case ".xlsx", ".xlsm":
		return ReadXLSX(bytes.NewReader(data), opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadCSV parses a delimited roster. A UTF-8 byte order mark is ignored.
func ReadCSV(r io.Reader, opts Options) ([]certificates.Record, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, utf8BOM) {
		_, _ = br.Discard(3)
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	if opts.Delimiter != "" {
		d, _ := utf8.DecodeRuneInString(opts.Delimiter)
		reader.Comma = d
	}
	// Leading-space trimming would swallow empty tab-separated fields.
	reader.TrimLeadingSpace = !unicode.IsSpace(reader.Comma)

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv roster: %w", err)
	}
	return fromRows(rows, opts.Columns)
}

// ReadXLSX parses the named sheet, or the first one
func ReadXLSX(r io.Reader, opts Options) ([]certificates.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx roster: %w", err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, fmt.Errorf("xlsx roster has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return fromRows(rows, opts.Columns)
}

// fromRows maps the header row onto cols and converts every non-empty
// data row. Rows are numbered from 1, excluding the header.
func fromRows(rows [][]string, cols Columns) ([]certificates.Record, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyRoster
	}

	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		key := normalizeHeader(h)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	required := []string{cols.FullName, cols.Course, cols.CardNumber, cols.EntryMonth, cols.ExitMonth}
	var missing []string
	for _, name := range required {
		if _, ok := index[normalizeHeader(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	field := func(row []string, name string) string {
		if name == "" {
			return ""
		}
		i, ok := index[normalizeHeader(name)]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]certificates.Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		records = append(records, certificates.Record{
			Row:        n + 1,
			FullName:   field(row, cols.FullName),
			Course:     field(row, cols.Course),
			CardNumber: field(row, cols.CardNumber),
			Sector:     field(row, cols.Sector),
			EntryMonth: field(row, cols.EntryMonth),
			ExitMonth:  field(row, cols.ExitMonth),
			Gender:     field(row, cols.Gender),
			Email:      field(row, cols.Email),
		})
	}
	return records, nil
}

// normalizeHeader trims and case-folds a header; form exports leave
// trailing spaces on some titles.
func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
