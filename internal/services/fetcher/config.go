package fetcher

import (
	"strings"
	"time"

	"github.com/ternarybob/usagebar/internal/interfaces"
)

const (
	// DefaultBaseURL is the service hosting the usage endpoint
	DefaultBaseURL = "https://claude.ai"

	// DefaultUserAgent is a current desktop Chrome string; the endpoint rejects automation user agents
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36"

	DefaultNavigationTimeout = 30 * time.Second
	DefaultIdleConnections   = 2
	DefaultIdleDuration      = 500 * time.Millisecond

	maxDiagnosticLength = 500
)

// BaselineHeaders identify the web client on every request. Bundle headers override them.
var BaselineHeaders = map[string]string{
	"anthropic-client-platform": "web_claude_ai",
	"anthropic-client-sha":      "unknown",
	"anthropic-client-version":  "1.0.0",
}

// Config controls how the scripted browser is launched and driven
type Config struct {
	BaseURL           string
	UserAgent         string
	Headless          bool
	NoSandbox         bool
	NavigationTimeout time.Duration
	IdleConnections   int
	IdleDuration      time.Duration

	// ScreenshotPath, when set, receives a PNG of the page after a failed fetch
	ScreenshotPath string
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		UserAgent:         DefaultUserAgent,
		Headless:          true,
		NoSandbox:         true,
		NavigationTimeout: DefaultNavigationTimeout,
		IdleConnections:   DefaultIdleConnections,
		IdleDuration:      DefaultIdleDuration,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = d.NavigationTimeout
	}
	if c.IdleConnections < 0 {
		c.IdleConnections = d.IdleConnections
	}
	if c.IdleDuration <= 0 {
		c.IdleDuration = d.IdleDuration
	}
	return c
}

func (c Config) browserOptions() interfaces.BrowserOptions {
	return interfaces.BrowserOptions{
		Headless:        c.Headless,
		NoSandbox:       c.NoSandbox,
		UserAgent:       c.UserAgent,
		IdleConnections: c.IdleConnections,
		IdleDuration:    c.IdleDuration,
	}
}

// UsageURL returns the usage endpoint for an organization
func (c Config) UsageURL(orgID string) string {
	return c.BaseURL + "/api/organizations/" + orgID + "/usage"
}

// MergeHeaders overlays bundle headers on the baseline set. Header names
// compare case-insensitively, and the bundle's spelling wins on collision.
func MergeHeaders(baseline, bundle map[string]string) map[string]string {
	merged := make(map[string]string, len(baseline)+len(bundle))
	for name, value := range baseline {
		merged[name] = value
	}
	for name, value := range bundle {
		for existing := range merged {
			if existing != name && strings.EqualFold(existing, name) {
				delete(merged, existing)
			}
		}
		merged[name] = value
	}
	return merged
}
