package certificates

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"ceue-certificates/certgen/pkg/locale"
)

// =====================================================
// Errors
// =====================================================

var (
	ErrMissingField      = errors.New("required field is empty")
	ErrInvalidCardNumber = errors.New("card number is not numeric")
	ErrInvalidMonth      = errors.New("entry month is not an integer")
	ErrRecordsFailed     = errors.New("one or more records failed")
)

// Stage names the step of the per-record pipeline that failed
type Stage string

const (
	StageDerive  Stage = "derive"
	StageMerge   Stage = "merge"
	StageRender  Stage = "render"
	StagePublish Stage = "publish"
	StageDeliver Stage = "deliver"
	StageRecord  Stage = "record"
)

// RecordError locates a failure in the input table
type RecordError struct {
	Row   int
	Name  string
	Stage Stage
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("row %d (%s): %s failed: %v", e.Row, e.Name, e.Stage, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// =====================================================
// Input
// =====================================================

// Record is one row of the roster. Month fields keep their raw text; the
// exit month in particular is often blank or "N/A".
type Record struct {
	Row        int    `json:"row"`
	FullName   string `json:"full_name"`
	Course     string `json:"course"`
	CardNumber string `json:"card_number"`
	Sector     string `json:"sector"`
	EntryMonth string `json:"entry_month"`
	ExitMonth  string `json:"exit_month"`
	Gender     string `json:"gender"`
	Email      string `json:"email,omitempty"`
}

// UnmarshalJSON also takes the card number and the months as JSON numbers,
// which is how spreadsheet exports usually send them.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	aux := struct {
		*plain
		CardNumber cellText `json:"card_number"`
		EntryMonth cellText `json:"entry_month"`
		ExitMonth  cellText `json:"exit_month"`
	}{
		plain:      (*plain)(r),
		CardNumber: cellText(r.CardNumber),
		EntryMonth: cellText(r.EntryMonth),
		ExitMonth:  cellText(r.ExitMonth),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.CardNumber = string(aux.CardNumber)
	r.EntryMonth = string(aux.EntryMonth)
	r.ExitMonth = string(aux.ExitMonth)
	return nil
}

// cellText is a JSON string or number kept as text
type cellText string

func (t *cellText) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = cellText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected a string or a number, got %s", data)
	}
	*t = cellText(n.String())
	return nil
}

// DefaultMaleMarker is the gender column value that selects masculine articles
const DefaultMaleMarker = "H"

// RunParameters are fixed for a whole batch
type RunParameters struct {
	WeeklyHours  int
	Year         int
	Director     string
	DocumentDate string
	Locale       locale.Locale
	MaleMarker   string
}

// NewRunParameters formats the document date in loc
func NewRunParameters(weeklyHours, year int, director string, date time.Time, loc locale.Locale) RunParameters {
	return RunParameters{
		WeeklyHours:  weeklyHours,
		Year:         year,
		Director:     director,
		DocumentDate: loc.LongDate(date),
		Locale:       loc,
		MaleMarker:   DefaultMaleMarker,
	}
}

// =====================================================
// Placeholder values
// =====================================================

// Placeholder keys understood by the merger
const (
	KeyArticle      = "o/a"
	KeyArticleUpper = "O/A"
	KeyStudent      = "estudante"
	KeyCourse       = "curso"
	KeyCard         = "cartao"
	KeySector       = "setor"
	KeyWeeklyHours  = "horas_semanais"
	KeyTotalMonths  = "meses_total"
	KeyTotalHours   = "horas_totais"
	KeyYear         = "ano"
	KeyDocumentDate = "data_documento"
	KeyDirector     = "diretor"
)

// Keys returns every placeholder key in sorted order
func Keys() []string {
	keys := []string{
		KeyArticle, KeyArticleUpper, KeyStudent, KeyCourse, KeyCard, KeySector,
		KeyWeeklyHours, KeyTotalMonths, KeyTotalHours, KeyYear, KeyDocumentDate, KeyDirector,
	}
	sort.Strings(keys)
	return keys
}

// Values maps placeholder names to string or int values
type Values map[string]any

// Token returns the placeholder text for key, e.g. "{{ curso }}"
func Token(key string) string {
	return "{{ " + key + " }}"
}

func (v Values) intValue(key string) int {
	if n, ok := v[key].(int); ok {
		return n
	}
	return 0
}

func (v Values) stringValue(key string) string {
	if s, ok := v[key].(string); ok {
		return s
	}
	return ""
}

// =====================================================
// Output
// =====================================================

// Status of a processed record
type Status string

const (
	StatusIssued Status = "issued"
	StatusFailed Status = "failed"
)

// Result is the outcome of one record
type Result struct {
	Row        int    `json:"row"`
	Student    string `json:"student"`
	Card       string `json:"card,omitempty"`
	Months     int    `json:"months"`
	Hours      int    `json:"hours"`
	Output     string `json:"output,omitempty"`
	MergedPath string `json:"merged_path,omitempty"`
	ObjectURL  string `json:"object_url,omitempty"`
	Delivered  bool   `json:"delivered"`
	Values     Values `json:"values,omitempty"`
	Err        error  `json:"-"`
}

// Status reports whether the record produced a certificate
func (r Result) Status() Status {
	if r.Err != nil {
		return StatusFailed
	}
	return StatusIssued
}

// FailedStage returns the failing stage, or "" on success
func (r Result) FailedStage() Stage {
	var recErr *RecordError
	if errors.As(r.Err, &recErr) {
		return recErr.Stage
	}
	return ""
}

// RunSummary aggregates a batch
type RunSummary struct {
	RunID      uuid.UUID `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
}

// Errors returns the per-record errors in input order
func (s *RunSummary) Errors() []error {
	var errs []error
	for _, r := range s.Results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
