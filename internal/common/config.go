package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

const appDirName = "usagebar"

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Browser     BrowserConfig   `toml:"browser"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Refresh     RefreshConfig   `toml:"refresh"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	CredentialsPath string        `toml:"credentials_path"` // JSON credential bundle; empty = user config dir
	History         HistoryConfig `toml:"history"`
}

// HistoryConfig controls the snapshot history database
type HistoryConfig struct {
	Enabled        bool   `toml:"enabled"`
	Path           string `toml:"path"`             // Database directory path
	Retention      string `toml:"retention"`        // e.g. "720h"; empty or "0" keeps everything
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // default "15:04:05"
}

// BrowserConfig drives the scripted browser used for fetches
type BrowserConfig struct {
	BaseURL           string `toml:"base_url"`
	CookieDomain      string `toml:"cookie_domain"`
	UserAgent         string `toml:"user_agent"`
	Headless          bool   `toml:"headless"`
	NoSandbox         bool   `toml:"no_sandbox"`
	NavigationTimeout string `toml:"navigation_timeout"` // e.g. "30s"
	IdleConnections   int    `toml:"idle_connections"`   // max in-flight requests considered idle
	IdleDuration      string `toml:"idle_duration"`      // e.g. "500ms"
	ProbeOnStartup    bool   `toml:"probe_on_startup"`   // fail serve when no browser can be started
}

type SchedulerConfig struct {
	Interval     string `toml:"interval"`      // cron expression, e.g. "@every 1m"
	FetchTimeout string `toml:"fetch_timeout"` // whole-cycle bound, e.g. "90s"
}

// RefreshConfig limits manual refresh requests
type RefreshConfig struct {
	MinInterval string `toml:"min_interval"` // e.g. "5s"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8787,
			Host: "localhost",
		},
		Storage: StorageConfig{
			CredentialsPath: DefaultCredentialsPath(),
			History: HistoryConfig{
				Enabled:   true,
				Path:      filepath.Join(DefaultDataDir(), "history"),
				Retention: "720h", // 30 days
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Browser: BrowserConfig{
			BaseURL:           "https://claude.ai",
			CookieDomain:      ".claude.ai",
			Headless:          true,
			NoSandbox:         true,
			NavigationTimeout: "30s",
			IdleConnections:   2,
			IdleDuration:      "500ms",
			ProbeOnStartup:    true,
		},
		Scheduler: SchedulerConfig{
			Interval:     "@every 1m",
			FetchTimeout: "90s",
		},
		Refresh: RefreshConfig{
			MinInterval: "5s",
		},
	}
}

// DefaultDataDir returns the per-user application directory, or the working
// directory when the platform has no user config location.
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "."
	}
	return filepath.Join(dir, appDirName)
}

// DefaultCredentialsPath returns where the credential bundle lives by default
func DefaultCredentialsPath() string {
	return filepath.Join(DefaultDataDir(), "config.json")
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier ones; CLI flags are applied afterwards by ApplyFlagOverrides.
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

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides applies USAGEBAR_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("USAGEBAR_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("USAGEBAR_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("USAGEBAR_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if path := os.Getenv("USAGEBAR_CREDENTIALS_PATH"); path != "" {
		config.Storage.CredentialsPath = path
	}
	if path := os.Getenv("USAGEBAR_HISTORY_PATH"); path != "" {
		config.Storage.History.Path = path
	}
	if enabled := os.Getenv("USAGEBAR_HISTORY_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Storage.History.Enabled = b
		}
	}

	if level := os.Getenv("USAGEBAR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("USAGEBAR_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("USAGEBAR_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if baseURL := os.Getenv("USAGEBAR_BROWSER_BASE_URL"); baseURL != "" {
		config.Browser.BaseURL = baseURL
	}
	if headless := os.Getenv("USAGEBAR_BROWSER_HEADLESS"); headless != "" {
		if b, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = b
		}
	}
	if noSandbox := os.Getenv("USAGEBAR_BROWSER_NO_SANDBOX"); noSandbox != "" {
		if b, err := strconv.ParseBool(noSandbox); err == nil {
			config.Browser.NoSandbox = b
		}
	}

	if interval := os.Getenv("USAGEBAR_SCHEDULER_INTERVAL"); interval != "" {
		config.Scheduler.Interval = interval
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if err := ValidateSchedule(c.Scheduler.Interval); err != nil {
		return fmt.Errorf("scheduler.interval: %w", err)
	}

	durations := map[string]string{
		"browser.navigation_timeout": c.Browser.NavigationTimeout,
		"browser.idle_duration":      c.Browser.IdleDuration,
		"scheduler.fetch_timeout":    c.Scheduler.FetchTimeout,
		"refresh.min_interval":       c.Refresh.MinInterval,
		"storage.history.retention":  c.Storage.History.Retention,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: invalid duration %q", name, value)
		}
	}

	if c.Browser.IdleConnections < 0 {
		return fmt.Errorf("browser.idle_connections must not be negative")
	}
	return nil
}

// ValidateSchedule validates a cron expression. Descriptors such as
// "@every 1m" and "@hourly" are accepted alongside 5-field expressions.
func ValidateSchedule(schedule string) error {
	if strings.TrimSpace(schedule) == "" {
		return fmt.Errorf("schedule is empty")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// durationOr parses value, returning fallback when empty or invalid
func durationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func (c BrowserConfig) NavigationTimeoutDuration() time.Duration {
	return durationOr(c.NavigationTimeout, 30*time.Second)
}

func (c BrowserConfig) IdleDurationValue() time.Duration {
	return durationOr(c.IdleDuration, 500*time.Millisecond)
}

func (c SchedulerConfig) FetchTimeoutDuration() time.Duration {
	return durationOr(c.FetchTimeout, 90*time.Second)
}

func (c RefreshConfig) MinIntervalDuration() time.Duration {
	return durationOr(c.MinInterval, 5*time.Second)
}

// RetentionDuration returns zero when history is kept forever
func (c HistoryConfig) RetentionDuration() time.Duration {
	return durationOr(c.Retention, 0)
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
