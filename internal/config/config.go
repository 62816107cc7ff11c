package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"ceue-certificates/certgen/internal/certificates"
	"ceue-certificates/certgen/internal/delivery"
	"ceue-certificates/certgen/internal/roster"
	"ceue-certificates/certgen/internal/scheduler"
	"ceue-certificates/certgen/pkg/locale"
	"ceue-certificates/certgen/pkg/pdf"
	"ceue-certificates/certgen/pkg/storage"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CERTGEN_"

// DateLayout is the layout of run.document_date
const DateLayout = "2006-01-02"

// Renderer engines
const (
	EngineLibreOffice = "libreoffice"
	EngineFpdf        = "fpdf"
)

// Config represents the application configuration
type Config struct {
	Run      RunConfig        `json:"run" yaml:"run"`
	Input    InputConfig      `json:"input" yaml:"input"`
	Output   OutputConfig     `json:"output" yaml:"output"`
	Renderer RendererConfig   `json:"renderer" yaml:"renderer"`
	Storage  StorageConfig    `json:"storage" yaml:"storage"`
	Delivery delivery.Config  `json:"delivery" yaml:"delivery"`
	Registry RegistryConfig   `json:"registry" yaml:"registry"`
	Server   ServerConfig     `json:"server" yaml:"server"`
	Security SecurityConfig   `json:"security" yaml:"security"`
	Schedule scheduler.Config `json:"schedule" yaml:"schedule"`
	Logging  LoggingConfig    `json:"logging" yaml:"logging"`
}

// RunConfig holds the batch-wide certificate values
type RunConfig struct {
	Template     string `json:"template" yaml:"template"`
	WeeklyHours  int    `json:"weekly_hours" yaml:"weekly_hours"`
	Year         int    `json:"year" yaml:"year"`
	Director     string `json:"director" yaml:"director"`
	DocumentDate string `json:"document_date,omitempty" yaml:"document_date,omitempty"` // YYYY-MM-DD, empty means today
	Locale       string `json:"locale" yaml:"locale"`
	MaleMarker   string `json:"male_marker" yaml:"male_marker"`
}

// InputConfig locates the roster
type InputConfig struct {
	Roster  string         `json:"roster" yaml:"roster"`
	Options roster.Options `json:"options" yaml:"options"`
}

// OutputConfig controls where and how certificates are written
type OutputConfig struct {
	Dir        string `json:"dir" yaml:"dir"`
	Pattern    string `json:"pattern" yaml:"pattern"`
	Workers    int    `json:"workers" yaml:"workers"`
	KeepMerged bool   `json:"keep_merged" yaml:"keep_merged"`
	Summary    string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// RendererConfig selects the PDF engine
type RendererConfig struct {
	Engine     string      `json:"engine" yaml:"engine"`
	Binary     string      `json:"binary,omitempty" yaml:"binary,omitempty"`
	Concurrent bool        `json:"concurrent" yaml:"concurrent"`
	Fpdf       pdf.Options `json:"fpdf" yaml:"fpdf"`
}

// StorageConfig configures publishing. An empty bucket disables it.
type StorageConfig struct {
	S3 storage.S3Options `json:"s3" yaml:"s3"`
}

// RegistryConfig configures the issuance registry. An empty DSN disables it.
type RegistryConfig struct {
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string        `json:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl" yaml:"token_ttl"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level" yaml:"level"`
	Development bool   `json:"development" yaml:"development"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Template:    "template.docx",
			WeeklyHours: 4,
			Year:        time.Now().Year(),
			Director:    "Sara Vitória Vale Ferreira",
			Locale:      "pt-BR",
			MaleMarker:  certificates.DefaultMaleMarker,
		},
		Input: InputConfig{
			Roster:  "roster.csv",
			Options: roster.DefaultOptions(),
		},
		Output: OutputConfig{
			Dir:     "output",
			Pattern: certificates.DefaultPattern,
			Workers: 1,
		},
		Renderer: RendererConfig{
			Engine: EngineLibreOffice,
			Fpdf:   pdf.DefaultOptions(),
		},
		Storage: StorageConfig{
			S3: storage.S3Options{Prefix: "certificados"},
		},
		Delivery: delivery.DefaultConfig(),
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  2 * time.Minute,
		},
		Security: SecurityConfig{
			TokenTTL: 24 * time.Hour,
		},
		Schedule: scheduler.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from .env, file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := unmarshal(configPath, data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func unmarshal(path string, data []byte, config *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	case ".json":
		return json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

func overrideWithEnv(config *Config) error {
	strs := map[string]*string{
		"TEMPLATE":             &config.Run.Template,
		"DIRECTOR":             &config.Run.Director,
		"DOCUMENT_DATE":        &config.Run.DocumentDate,
		"LOCALE":               &config.Run.Locale,
		"MALE_MARKER":          &config.Run.MaleMarker,
		"ROSTER":               &config.Input.Roster,
		"OUTPUT_DIR":           &config.Output.Dir,
		"OUTPUT_PATTERN":       &config.Output.Pattern,
		"SUMMARY":              &config.Output.Summary,
		"RENDERER":             &config.Renderer.Engine,
		"SOFFICE":              &config.Renderer.Binary,
		"S3_BUCKET":            &config.Storage.S3.Bucket,
		"S3_PREFIX":            &config.Storage.S3.Prefix,
		"S3_REGION":            &config.Storage.S3.Region,
		"S3_ENDPOINT":          &config.Storage.S3.Endpoint,
		"S3_ACCESS_KEY_ID":     &config.Storage.S3.AccessKeyID,
		"S3_SECRET_ACCESS_KEY": &config.Storage.S3.SecretAccessKey,
		"SES_REGION":           &config.Delivery.Region,
		"MAIL_FROM":            &config.Delivery.FromAddress,
		"REGISTRY_DSN":         &config.Registry.DSN,
		"SERVER_HOST":          &config.Server.Host,
		"JWT_SECRET":           &config.Security.JWTSecret,
		"SCHEDULE_CRON":        &config.Schedule.Cron,
		"SCHEDULE_TIMEZONE":    &config.Schedule.Timezone,
		"LOG_LEVEL":            &config.Logging.Level,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WEEKLY_HOURS": &config.Run.WeeklyHours,
		"YEAR":         &config.Run.Year,
		"WORKERS":      &config.Output.Workers,
		"SERVER_PORT":  &config.Server.Port,
	}
	for name, dst := range ints {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"KEEP_MERGED":       &config.Output.KeepMerged,
		"RENDER_CONCURRENT": &config.Renderer.Concurrent,
		"DELIVERY_ENABLED":  &config.Delivery.Enabled,
		"RUN_ON_START":      &config.Schedule.RunOnStart,
		"LOG_DEVELOPMENT":   &config.Logging.Development,
	}
	for name, dst := range bools {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
	}
	return nil
}

// Validate checks the configuration for values no run can work with
func (c *Config) Validate() error {
	var errs []error

	if c.Run.WeeklyHours <= 0 {
		errs = append(errs, fmt.Errorf("run.weekly_hours must be positive"))
	}
	if c.Run.Year <= 0 {
		errs = append(errs, fmt.Errorf("run.year must be positive"))
	}
	if strings.TrimSpace(c.Run.Director) == "" {
		errs = append(errs, fmt.Errorf("run.director is required"))
	}
	if strings.TrimSpace(c.Run.MaleMarker) == "" {
		errs = append(errs, fmt.Errorf("run.male_marker is required"))
	}
	if _, err := locale.Parse(c.Run.Locale); err != nil {
		errs = append(errs, fmt.Errorf("run.locale: %w", err))
	}
	if c.Run.DocumentDate != "" {
		if _, err := time.Parse(DateLayout, c.Run.DocumentDate); err != nil {
			errs = append(errs, fmt.Errorf("run.document_date must be YYYY-MM-DD: %w", err))
		}
	}

	if c.Output.Workers < 1 {
		errs = append(errs, fmt.Errorf("output.workers must be at least 1"))
	}
	if !strings.Contains(c.Output.Pattern, storage.NamePlaceholder) {
		errs = append(errs, fmt.Errorf("output.pattern must contain %s", storage.NamePlaceholder))
	}

	switch c.Renderer.Engine {
	case EngineLibreOffice, EngineFpdf:
	default:
		errs = append(errs, fmt.Errorf("renderer.engine must be %s or %s, got %q", EngineLibreOffice, EngineFpdf, c.Renderer.Engine))
	}

	if c.Delivery.Enabled && c.Delivery.FromAddress == "" {
		errs = append(errs, fmt.Errorf("delivery.from_address is required when delivery is enabled"))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	if c.Schedule.Cron != "" {
		if err := scheduler.ValidateCronExpression(c.Schedule.Cron); err != nil {
			errs = append(errs, fmt.Errorf("schedule.cron: %w", err))
		}
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// RunParameters builds the batch parameters, dating the document today
// unless run.document_date is set
func (c *Config) RunParameters(now time.Time) (certificates.RunParameters, error) {
	loc, err := locale.Parse(c.Run.Locale)
	if err != nil {
		return certificates.RunParameters{}, err
	}

	date := now
	if c.Run.DocumentDate != "" {
		date, err = time.Parse(DateLayout, c.Run.DocumentDate)
		if err != nil {
			return certificates.RunParameters{}, fmt.Errorf("invalid document date: %w", err)
		}
	}

	params := certificates.NewRunParameters(c.Run.WeeklyHours, c.Run.Year, c.Run.Director, date, loc)
	params.MaleMarker = strings.TrimSpace(c.Run.MaleMarker)
	return params, nil
}

// ServiceOptions maps the output and delivery sections onto the service
func (c *Config) ServiceOptions() certificates.Options {
	return certificates.Options{
		OutputDir:  c.Output.Dir,
		Pattern:    c.Output.Pattern,
		Workers:    c.Output.Workers,
		KeepMerged: c.Output.KeepMerged,
		Subject:    c.Delivery.Subject,
		Body:       c.Delivery.Body,
	}
}

// NewLogger builds the zap logger for the logging section. verbose forces
// debug level.
func (c *LoggingConfig) NewLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	if verbose {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zc.Level = level
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zc.Build()
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
