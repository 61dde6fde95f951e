package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig    `toml:"logging"`
	Providers   ProvidersConfig  `toml:"providers"`
	Batch       BatchConfig      `toml:"batch"`
	Extraction  ExtractionConfig `toml:"extraction"`
	Output      OutputConfig     `toml:"output"`
	Storage     StorageConfig    `toml:"storage"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"` // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`                                       // "stdout", "file"
	TimeFormat string   `toml:"time_format"`                                  // Time format for console logs (default: "15:04:05")
}

type ProvidersConfig struct {
	Ninjas NinjasConfig `toml:"ninjas"`
	SEC    SECConfig    `toml:"sec"`
	EODHD  EODHDConfig  `toml:"eodhd"`
}

// NinjasConfig configures the API Ninjas price and filing-index client
type NinjasConfig struct {
	APIKey    string `toml:"api_key"`                          // Prefer API_NINJAS_KEY env or .api_ninjas_key file
	BaseURL   string `toml:"base_url" validate:"required,url"` // API root, without /v1
	Timeout   string `toml:"timeout" validate:"required"`      // e.g. "30s"
	RateLimit string `toml:"rate_limit" validate:"required"`   // Minimum spacing between calls to this host
}

// SECConfig configures the filing content downloader
type SECConfig struct {
	UserAgent string `toml:"user_agent" validate:"required"` // SEC requires a contact in the user agent
	Timeout   string `toml:"timeout" validate:"required"`    // e.g. "60s"
	RateLimit string `toml:"rate_limit" validate:"required"` // Minimum spacing between downloads
	CacheTTL  string `toml:"cache_ttl"`                      // Content cache lifetime, "" disables caching
}

// EODHDConfig configures the fallback quote source. It is used only when APIKey is set.
type EODHDConfig struct {
	APIKey    string `toml:"api_key"` // Typically "{EODHD_API_KEY}"
	BaseURL   string `toml:"base_url" validate:"omitempty,url"`
	Exchange  string `toml:"exchange"` // Exchange suffix appended to tickers, e.g. "US"
	Timeout   string `toml:"timeout"`
	RateLimit string `toml:"rate_limit"`
}

// BatchConfig controls the batch orchestrator
type BatchConfig struct {
	TickersFile  string `toml:"tickers_file" validate:"required"`
	MaxWorkers   int    `toml:"max_workers" validate:"min=1,max=20"`
	MonthsBack   int    `toml:"months_back" validate:"min=1,max=120"`
	MinInterval  string `toml:"min_interval" validate:"required"` // Global gate between any two external calls
	SaveEvery    int    `toml:"save_every" validate:"min=1"`      // Persist progress every N completions
	MaxRetries   int    `toml:"max_retries" validate:"min=0,max=10"`
	BaseDelay    string `toml:"base_delay" validate:"required"`
	DrainTimeout string `toml:"drain_timeout"` // How long in-flight tickers may finish after a signal
	Schedule     string `toml:"schedule"`      // Cron (with seconds); empty = run once
	ResumeFrom   string `toml:"resume_from"`
	MaxTickers   int    `toml:"max_tickers" validate:"min=0"`
	Fresh        bool   `toml:"fresh"` // Ignore persisted progress
}

// ExtractionConfig holds the plausibility thresholds. These are empirical and kept configurable.
type ExtractionConfig struct {
	MinPrice            float64 `toml:"min_price" validate:"gt=0"`
	MaxPrice            float64 `toml:"max_price" validate:"gtfield=MinPrice"`
	MinUpside           float64 `toml:"min_upside" validate:"gte=0"`
	MaxUpside           float64 `toml:"max_upside" validate:"gtfield=MinUpside"`
	MinTargets          int     `toml:"min_targets" validate:"min=1"`
	HighUpsideThreshold float64 `toml:"high_upside_threshold"` // Percent; results strictly above go to the high list
	SnippetRadius       int     `toml:"snippet_radius" validate:"min=0"`
}

type OutputConfig struct {
	Dir          string `toml:"dir" validate:"required"`
	ProgressFile string `toml:"progress_file" validate:"required"`
	LogFile      string `toml:"log_file" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents the result archive database
type BadgerConfig struct {
	Enabled        bool   `toml:"enabled"`
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Providers: ProvidersConfig{
			Ninjas: NinjasConfig{
				BaseURL:   "https://api.api-ninjas.com",
				Timeout:   "30s",
				RateLimit: "1s",
			},
			SEC: SECConfig{
				UserAgent: "psuscan (admin@example.com)", // SEC rejects anonymous agents
				Timeout:   "60s",
				RateLimit: "2s",
				CacheTTL:  "30m",
			},
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				Exchange:  "US",
				Timeout:   "30s",
				RateLimit: "1s",
			},
		},
		Batch: BatchConfig{
			TickersFile:  "tickers.txt",
			MaxWorkers:   3,
			MonthsBack:   3,
			MinInterval:  "3s",
			SaveEvery:    10,
			MaxRetries:   3,
			BaseDelay:    "2s",
			DrainTimeout: "30s",
		},
		Extraction: ExtractionConfig{
			MinPrice:            5.00,
			MaxPrice:            500.00,
			MinUpside:           0.10,
			MaxUpside:           10.0,
			MinTargets:          2,
			HighUpsideThreshold: 40.0,
			SnippetRadius:       500,
		},
		Output: OutputConfig{
			Dir:          "output",
			ProgressFile: "batch_progress.json",
			LogFile:      "batch_processing.log",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Enabled: true,
				Path:    "./data/results",
			},
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> .env -> env
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// .env is optional; existing environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PSUSCAN_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("PSUSCAN_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
	if output := os.Getenv("PSUSCAN_LOG_OUTPUT"); output != "" {
		parts := strings.Split(output, ",")
		config.Logging.Output = nil
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				config.Logging.Output = append(config.Logging.Output, p)
			}
		}
	}

	if baseURL := os.Getenv("PSUSCAN_NINJAS_BASE_URL"); baseURL != "" {
		config.Providers.Ninjas.BaseURL = baseURL
	}
	if ua := os.Getenv("PSUSCAN_SEC_USER_AGENT"); ua != "" {
		config.Providers.SEC.UserAgent = ua
	}
	if key := os.Getenv("PSUSCAN_EODHD_API_KEY"); key != "" {
		config.Providers.EODHD.APIKey = key
	}

	if file := os.Getenv("PSUSCAN_TICKERS_FILE"); file != "" {
		config.Batch.TickersFile = file
	}
	if workers := os.Getenv("PSUSCAN_MAX_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Batch.MaxWorkers = w
		}
	}
	if months := os.Getenv("PSUSCAN_MONTHS_BACK"); months != "" {
		if m, err := strconv.Atoi(months); err == nil {
			config.Batch.MonthsBack = m
		}
	}
	if interval := os.Getenv("PSUSCAN_MIN_INTERVAL"); interval != "" {
		config.Batch.MinInterval = interval
	}
	if schedule := os.Getenv("PSUSCAN_SCHEDULE"); schedule != "" {
		config.Batch.Schedule = schedule
	}

	if dir := os.Getenv("PSUSCAN_OUTPUT_DIR"); dir != "" {
		config.Output.Dir = dir
	}

	if path := os.Getenv("PSUSCAN_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if enabled := os.Getenv("PSUSCAN_BADGER_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Storage.Badger.Enabled = b
		}
	}
}

// FlagOverrides carries command-line values; zero values leave config untouched
type FlagOverrides struct {
	Workers     int
	ResumeFrom  string
	MaxTickers  int
	MonthsBack  int
	TickersFile string
	Schedule    string
	Fresh       bool
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, flags FlagOverrides) {
	if flags.Workers > 0 {
		config.Batch.MaxWorkers = flags.Workers
	}
	if flags.ResumeFrom != "" {
		config.Batch.ResumeFrom = strings.ToUpper(strings.TrimSpace(flags.ResumeFrom))
	}
	if flags.MaxTickers > 0 {
		config.Batch.MaxTickers = flags.MaxTickers
	}
	if flags.MonthsBack > 0 {
		config.Batch.MonthsBack = flags.MonthsBack
	}
	if flags.TickersFile != "" {
		config.Batch.TickersFile = flags.TickersFile
	}
	if flags.Schedule != "" {
		config.Batch.Schedule = flags.Schedule
	}
	if flags.Fresh {
		config.Batch.Fresh = true
	}
}

// apiKeyFile is the legacy location used when no env var or config value is set
const apiKeyFile = ".api_ninjas_key"

// ResolveAPIKey resolves the API Ninjas key.
// Resolution order: API_NINJAS_KEY env -> PSUSCAN_NINJAS_API_KEY env -> config -> .api_ninjas_key file -> error
func ResolveAPIKey(configFallback string) (string, error) {
	for _, name := range []string{"API_NINJAS_KEY", "PSUSCAN_NINJAS_API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	if data, err := os.ReadFile(apiKeyFile); err == nil {
		if key := strings.TrimSpace(string(data)); key != "" {
			return key, nil
		}
	}

	return "", fmt.Errorf("API Ninjas key not found in environment, config, or %s", apiKeyFile)
}

var configValidator = validator.New()

// Validate checks struct constraints, duration strings and the optional schedule
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"providers.ninjas.timeout":    c.Providers.Ninjas.Timeout,
		"providers.ninjas.rate_limit": c.Providers.Ninjas.RateLimit,
		"providers.sec.timeout":       c.Providers.SEC.Timeout,
		"providers.sec.rate_limit":    c.Providers.SEC.RateLimit,
		"batch.min_interval":          c.Batch.MinInterval,
		"batch.base_delay":            c.Batch.BaseDelay,
	}
	if c.Providers.SEC.CacheTTL != "" {
		durations["providers.sec.cache_ttl"] = c.Providers.SEC.CacheTTL
	}
	if c.Batch.DrainTimeout != "" {
		durations["batch.drain_timeout"] = c.Batch.DrainTimeout
	}
	if c.Providers.EODHD.APIKey != "" {
		durations["providers.eodhd.timeout"] = c.Providers.EODHD.Timeout
		durations["providers.eodhd.rate_limit"] = c.Providers.EODHD.RateLimit
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %q: %w", key, value, err)
		}
	}

	if c.Batch.Schedule != "" {
		if err := ValidateSchedule(c.Batch.Schedule); err != nil {
			return err
		}
	}

	return nil
}

// ScheduleParser parses six-field cron expressions (seconds first)
var ScheduleParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule validates a cron schedule expression and ensures a minimum one-hour spacing.
// A full batch run takes hours, so sub-hourly schedules only ever skip.
func ValidateSchedule(schedule string) error {
	sched, err := ScheduleParser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	first := sched.Next(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	second := sched.Next(first)
	if second.Sub(first) < time.Hour {
		return fmt.Errorf("schedule interval must be at least 1 hour, got %s", second.Sub(first))
	}

	return nil
}

// ParseDuration parses a duration string, returning fallback when empty or invalid
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ProgressPath returns the progress file location inside the output directory
// unless the configured name is already absolute or contains a directory.
func (c *Config) ProgressPath() string {
	return resolveOutputPath(c.Output.Dir, c.Output.ProgressFile)
}

// LogPath returns the human-readable event log location
func (c *Config) LogPath() string {
	return resolveOutputPath(c.Output.Dir, c.Output.LogFile)
}

func resolveOutputPath(dir, name string) string {
	if filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) {
		return name
	}
	return filepath.Join(dir, name)
}
