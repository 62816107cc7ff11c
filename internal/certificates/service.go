package certificates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"ceue-certificates/certgen/internal/delivery"
	"ceue-certificates/certgen/internal/registry"
	"ceue-certificates/certgen/pkg/docx"
	"ceue-certificates/certgen/pkg/pdf"
	"ceue-certificates/certgen/pkg/storage"
)

// DefaultPattern is the output file name used by the CEUE forms
const DefaultPattern = "Declaração de Créditos Complementares - " + storage.NamePlaceholder + ".pdf"

// Mailer delivers rendered certificates
type Mailer interface {
	Send(ctx context.Context, msg *delivery.Message) (string, error)
}

// Options controls where and how a batch is written
type Options struct {
	OutputDir  string
	Pattern    string
	Workers    int
	KeepMerged bool
	Subject    string
	Body       string
}

// DefaultOptions returns sequential processing into ./output
func DefaultOptions() Options {
	d := delivery.DefaultConfig()
	return Options{
		OutputDir: "output",
		Pattern:   DefaultPattern,
		Workers:   1,
		Subject:   d.Subject,
		Body:      d.Body,
	}
}

// Service runs certificate batches
type Service struct {
	renderer  pdf.Renderer
	publisher storage.Publisher
	mailer    Mailer
	registry  registry.Repository
	options   Options
	logger    *zap.Logger
}

// NewService creates a certificate service. Publisher, mailer and registry
// are optional and may be nil.
func NewService(
	renderer pdf.Renderer,
	publisher storage.Publisher,
	mailer Mailer,
	repo registry.Repository,
	options Options,
	logger *zap.Logger,
) *Service {
	if options.Workers < 1 {
		options.Workers = 1
	}
	if options.Pattern == "" {
		options.Pattern = DefaultPattern
	}
	return &Service{
		renderer:  renderer,
		publisher: publisher,
		mailer:    mailer,
		registry:  repo,
		options:   options,
		logger:    logger,
	}
}

// Registry returns the issuance repository, or nil
func (s *Service) Registry() registry.Repository {
	return s.registry
}

// =====================================================
// Batch Operations
// =====================================================

// Generate produces one certificate per record. A failing record does not
// stop the others; the returned summary holds every outcome in input order
// and the error wraps ErrRecordsFailed when any record failed. Only a
// cancelled context or an unusable output directory aborts the batch.
func (s *Service) Generate(ctx context.Context, tpl *docx.Document, records []Record, params RunParameters) (*RunSummary, error) {
	if err := storage.EnsureDir(s.options.OutputDir); err != nil {
		return nil, err
	}

	summary := &RunSummary{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
		Results:   make([]Result, len(records)),
	}

	s.logger.Info("Starting certificate run",
		zap.String("run_id", summary.RunID.String()),
		zap.Int("records", len(records)),
		zap.Int("workers", s.options.Workers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.options.Workers)
	for i := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			summary.Results[i] = s.process(gctx, summary.RunID, tpl, records[i], params)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("certificate run interrupted: %w", err)
	}

	summary.FinishedAt = time.Now()
	for _, r := range summary.Results {
		if r.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}

	s.logger.Info("Certificate run completed",
		zap.String("run_id", summary.RunID.String()),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)))

	if summary.Failed > 0 {
		return summary, fmt.Errorf("%d of %d records: %w", summary.Failed, len(records), ErrRecordsFailed)
	}
	return summary, nil
}

// process runs derive, merge, render, publish, deliver and record for one row
func (s *Service) process(ctx context.Context, runID uuid.UUID, tpl *docx.Document, rec Record, params RunParameters) Result {
	res := Result{Row: rec.Row, Student: strings.TrimSpace(rec.FullName)}
	log := s.logger.With(
		zap.String("run_id", runID.String()),
		zap.Int("row", rec.Row),
		zap.String("student", res.Student))

	fail := func(stage Stage, err error) Result {
		res.Err = &RecordError{Row: rec.Row, Name: res.Student, Stage: stage, Err: err}
		log.Error("Certificate failed", zap.String("stage", string(stage)), zap.Error(err))
		s.record(ctx, runID, rec, params, res, log)
		return res
	}

	values, err := Derive(rec, params)
	if err != nil {
		return fail(StageDerive, err)
	}
	res.Values = values
	res.Student = values.stringValue(KeyStudent)
	res.Card = values.stringValue(KeyCard)
	res.Months = values.intValue(KeyTotalMonths)
	res.Hours = values.intValue(KeyTotalHours)
	if res.Months <= 0 {
		log.Warn("Non-positive month total, check entry and exit months",
			zap.Int("months", res.Months),
			zap.String("entry_month", rec.EntryMonth),
			zap.String("exit_month", rec.ExitMonth))
	}

	merged, err := Merge(tpl, values)
	if err != nil {
		return fail(StageMerge, err)
	}

	// Names come from the raw column so re-runs keep the same files.
	res.Output = storage.OutputPath(s.options.OutputDir, s.options.Pattern, rec.FullName)
	if s.options.KeepMerged {
		res.MergedPath = strings.TrimSuffix(res.Output, filepath.Ext(res.Output)) + ".docx"
		if err := merged.Save(res.MergedPath); err != nil {
			return fail(StageMerge, err)
		}
	}

	if err := s.renderer.Render(ctx, merged, res.Output); err != nil {
		return fail(StageRender, err)
	}
	log.Info("Certificate rendered", zap.String("output", res.Output))

	if s.publisher != nil || (s.mailer != nil && strings.TrimSpace(rec.Email) != "") {
		data, err := os.ReadFile(res.Output)
		if err != nil {
			return fail(StageRender, fmt.Errorf("failed to read rendered file: %w", err))
		}

		if s.publisher != nil {
			key := path.Join(runID.String(), filepath.Base(res.Output))
			url, err := s.publisher.Publish(ctx, key, bytes.NewReader(data), "application/pdf")
			if err != nil {
				return fail(StagePublish, err)
			}
			res.ObjectURL = url
		}

		if s.mailer != nil && strings.TrimSpace(rec.Email) != "" {
			if _, err := s.mailer.Send(ctx, &delivery.Message{
				To:      []string{strings.TrimSpace(rec.Email)},
				Subject: MergeText(s.options.Subject, values),
				Body:    MergeText(s.options.Body, values),
				Attachments: []delivery.Attachment{{
					Name:        filepath.Base(res.Output),
					Data:        data,
					ContentType: "application/pdf",
				}},
			}); err != nil {
				return fail(StageDeliver, err)
			}
			res.Delivered = true
		}
	}

	if err := s.record(ctx, runID, rec, params, res, log); err != nil {
		res.Err = &RecordError{Row: rec.Row, Name: res.Student, Stage: StageRecord, Err: err}
	}
	return res
}

// record stores the outcome in the registry when one is configured
func (s *Service) record(ctx context.Context, runID uuid.UUID, rec Record, params RunParameters, res Result, log *zap.Logger) error {
	if s.registry == nil {
		return nil
	}

	issuance := &registry.Issuance{
		RunID:      runID,
		Row:        rec.Row,
		Student:    res.Student,
		Card:       res.Card,
		Course:     strings.TrimSpace(rec.Course),
		Sector:     strings.TrimSpace(rec.Sector),
		Months:     res.Months,
		Hours:      res.Hours,
		Year:       params.Year,
		Status:     string(res.Status()),
		Stage:      string(res.FailedStage()),
		OutputPath: res.Output,
		ObjectURL:  res.ObjectURL,
	}
	if res.Err != nil {
		issuance.Error = res.Err.Error()
	}
	if res.Values != nil {
		raw, err := json.Marshal(res.Values)
		if err != nil {
			return fmt.Errorf("failed to encode values: %w", err)
		}
		issuance.Values = datatypes.JSON(raw)
	}

	if err := s.registry.Save(ctx, issuance); err != nil {
		log.Error("Failed to record issuance", zap.Error(err))
		return err
	}
	return nil
}

// =====================================================
// Single Record Operations
// =====================================================

// Preview derives values for every record without rendering anything
func (s *Service) Preview(records []Record, params RunParameters) []Result {
	results := make([]Result, len(records))
	for i, rec := range records {
		res := Result{Row: rec.Row, Student: strings.TrimSpace(rec.FullName)}
		values, err := Derive(rec, params)
		if err != nil {
			res.Err = &RecordError{Row: rec.Row, Name: res.Student, Stage: StageDerive, Err: err}
		} else {
			res.Values = values
			res.Student = values.stringValue(KeyStudent)
			res.Card = values.stringValue(KeyCard)
			res.Months = values.intValue(KeyTotalMonths)
			res.Hours = values.intValue(KeyTotalHours)
		}
		results[i] = res
	}
	return results
}

// RenderOne merges and renders a single record into dst without publishing,
// delivering or recording it
func (s *Service) RenderOne(ctx context.Context, tpl *docx.Document, rec Record, params RunParameters, dst string) (Values, error) {
	name := strings.TrimSpace(rec.FullName)

	values, err := Derive(rec, params)
	if err != nil {
		return nil, &RecordError{Row: rec.Row, Name: name, Stage: StageDerive, Err: err}
	}
	merged, err := Merge(tpl, values)
	if err != nil {
		return nil, &RecordError{Row: rec.Row, Name: name, Stage: StageMerge, Err: err}
	}
	if err := s.renderer.Render(ctx, merged, dst); err != nil {
		return nil, &RecordError{Row: rec.Row, Name: name, Stage: StageRender, Err: err}
	}
	return values, nil
}
