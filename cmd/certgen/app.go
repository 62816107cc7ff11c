package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ceue-certificates/certgen/internal/certificates"
	"ceue-certificates/certgen/internal/config"
	"ceue-certificates/certgen/internal/delivery"
	"ceue-certificates/certgen/internal/registry"
	"ceue-certificates/certgen/internal/roster"
	"ceue-certificates/certgen/pkg/docx"
	"ceue-certificates/certgen/pkg/pdf"
	"ceue-certificates/certgen/pkg/storage"
)

// batchFlags override the matching config values when set
type batchFlags struct {
	roster   string
	template string
	output   string
	renderer string
	workers  int
	year     int
}

var batch batchFlags

func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&batch.roster, "roster", "r", "", "Roster file (.csv, .tsv or .xlsx)")
	cmd.Flags().StringVarP(&batch.template, "template", "t", "", "Certificate template (.docx)")
	cmd.Flags().StringVarP(&batch.output, "output", "o", "", "Output directory")
	cmd.Flags().StringVar(&batch.renderer, "renderer", "", "PDF engine: libreoffice or fpdf")
	cmd.Flags().IntVarP(&batch.workers, "workers", "w", 0, "Records processed concurrently")
	cmd.Flags().IntVar(&batch.year, "year", 0, "Year printed on the certificates")
}

// applyBatchFlags copies explicitly set flags over the loaded config
func applyBatchFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("roster") {
		c.Input.Roster = batch.roster
	}
	if flags.Changed("template") {
		c.Run.Template = batch.template
	}
	if flags.Changed("output") {
		c.Output.Dir = batch.output
	}
	if flags.Changed("renderer") {
		c.Renderer.Engine = batch.renderer
	}
	if flags.Changed("workers") {
		c.Output.Workers = batch.workers
	}
	if flags.Changed("year") {
		c.Run.Year = batch.year
	}
	return c.Validate()
}

// newRenderer builds the configured engine. LibreOffice shares one user
// profile, so it is serialized unless renderer.concurrent is set.
func newRenderer(c *config.Config, logger *zap.Logger) (pdf.Renderer, error) {
	var r pdf.Renderer
	switch c.Renderer.Engine {
	case config.EngineFpdf:
		r = pdf.NewFpdf(c.Renderer.Fpdf)
	case config.EngineLibreOffice:
		lo, err := pdf.NewLibreOffice(c.Renderer.Binary, logger)
		if err != nil {
			return nil, err
		}
		logger.Debug("Using LibreOffice", zap.String("binary", lo.Binary()))
		r = lo
	default:
		return nil, fmt.Errorf("unknown renderer %q", c.Renderer.Engine)
	}

	if !c.Renderer.Concurrent {
		r = pdf.Serialized(r)
	}
	return r, nil
}

// app holds the wired service and what must be closed with it
type app struct {
	service *certificates.Service
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// newApp wires the renderer and the optional publisher, mailer and registry
func newApp(ctx context.Context, c *config.Config, logger *zap.Logger) (*app, error) {
	renderer, err := newRenderer(c, logger)
	if err != nil {
		return nil, err
	}

	a := &app{}

	var publisher storage.Publisher
	if c.Storage.S3.Bucket != "" {
		p, err := storage.NewS3Publisher(ctx, c.Storage.S3, logger)
		if err != nil {
			return nil, err
		}
		publisher = p
		logger.Info("Publishing to S3", zap.String("bucket", c.Storage.S3.Bucket))
	}

	var mailer certificates.Mailer
	if c.Delivery.Enabled {
		m, err := delivery.NewMailer(ctx, c.Delivery, logger)
		if err != nil {
			return nil, err
		}
		mailer = m
		logger.Info("E-mail delivery enabled", zap.String("from", c.Delivery.FromAddress))
	}

	var repo registry.Repository
	if c.Registry.DSN != "" {
		r, err := registry.Open(c.Registry.DSN)
		if err != nil {
			return nil, err
		}
		repo = r
		a.closers = append(a.closers, r.Close)
	}

	a.service = certificates.NewService(renderer, publisher, mailer, repo, c.ServiceOptions(), logger)
	return a, nil
}

// loadBatch reads the template and the roster named in the config
func loadBatch(c *config.Config) (*docx.Document, []certificates.Record, error) {
	tpl, err := docx.Open(c.Run.Template)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open template: %w", err)
	}
	records, err := roster.Load(c.Input.Roster, c.Input.Options)
	if err != nil {
		return nil, nil, err
	}
	return tpl, records, nil
}
