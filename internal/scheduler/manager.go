package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled certificate run
type Job func(ctx context.Context) error

// Config configures the schedule
type Config struct {
	Cron       string `json:"cron" yaml:"cron"`
	Timezone   string `json:"timezone" yaml:"timezone"`
	RunOnStart bool   `json:"run_on_start" yaml:"run_on_start"`
}

// DefaultConfig runs at 08:00 on the first day of every month, São Paulo time
func DefaultConfig() Config {
	return Config{
		Cron:     "0 8 1 * *",
		Timezone: "America/Sao_Paulo",
	}
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Manager runs a job on a cron schedule. Overlapping runs are skipped.
type Manager struct {
	cron     *cron.Cron
	chain    cron.Chain
	job      Job
	config   Config
	location *time.Location
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	entryID cron.EntryID
	wg      sync.WaitGroup
	runs    int
}

// NewManager validates the schedule and builds a stopped manager
func NewManager(config Config, job Job, logger *zap.Logger) (*Manager, error) {
	if err := ValidateCronExpression(config.Cron); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", config.Cron, err)
	}

	loc := time.UTC
	if config.Timezone != "" {
		l, err := time.LoadLocation(config.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
		}
		loc = l
	}

	cronLogger := cronLogger{logger.Sugar()}
	return &Manager{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(parser),
			cron.WithLogger(cronLogger),
		),
		chain:    cron.NewChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		job:      job,
		config:   config,
		location: loc,
		logger:   logger,
	}, nil
}

// Start schedules the job. ctx is handed to every run; cancelling it
// aborts a run in progress but does not stop the schedule.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("schedule manager already running")
	}

	// The run on start shares the wrapped job so it counts as running
	// for SkipIfStillRunning.
	job := m.chain.Then(cron.FuncJob(func() { m.execute(ctx) }))
	entryID, err := m.cron.AddJob(m.config.Cron, job)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	m.entryID = entryID
	m.running = true

	m.logger.Info("Starting schedule manager",
		zap.String("cron", m.config.Cron),
		zap.String("description", DescribeCronExpression(m.config.Cron)),
		zap.String("timezone", m.location.String()))

	m.cron.Start()

	if m.config.RunOnStart {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			job.Run()
		}()
	}
	return nil
}

// Stop stops the schedule and waits for running jobs
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	m.logger.Info("Stopping schedule manager")

	<-m.cron.Stop().Done()
	m.wg.Wait()
}

// Next returns the next scheduled run, or the zero time when stopped
func (m *Manager) Next() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return time.Time{}
	}
	return m.cron.Entry(m.entryID).Next
}

// Runs returns how many runs have finished
func (m *Manager) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// execute runs the job once
func (m *Manager) execute(ctx context.Context) {
	started := time.Now()
	m.logger.Info("Executing scheduled run")

	err := m.job(ctx)

	m.mu.Lock()
	m.runs++
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("Scheduled run failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(started)))
		return
	}
	m.logger.Info("Scheduled run completed",
		zap.Duration("duration", time.Since(started)))
}

// NextExecution returns the next time expr fires after from in timezone
func NextExecution(expr, timezone string, from time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	schedule, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule.Next(from.In(loc)), nil
}

// ValidateCronExpression validates a cron expression
func ValidateCronExpression(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

// DescribeCronExpression returns a human-readable description of a cron expression
func DescribeCronExpression(expr string) string {
	switch expr {
	case "0 * * * *", "@hourly":
		return "Every hour"
	case "0 0 * * *", "@daily", "@midnight":
		return "Every day at midnight"
	case "0 0 * * 0", "@weekly":
		return "Every Sunday at midnight"
	case "0 0 1 * *", "@monthly":
		return "First day of every month at midnight"
	case "0 8 1 * *":
		return "First day of every month at 8:00 AM"
	case "0 9 * * 1-5":
		return "Every weekday at 9:00 AM"
	default:
		return expr
	}
}

// cronLogger routes cron's own logging through zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
