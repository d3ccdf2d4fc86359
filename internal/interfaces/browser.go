package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/usagebar/internal/models"
)

// BrowserOptions configures one scripted browser instance
type BrowserOptions struct {
	Headless  bool
	NoSandbox bool
	UserAgent string

	// Network-idle settle heuristic: navigation completes once no more than
	// IdleConnections requests are in flight for IdleDuration.
	IdleConnections int
	IdleDuration    time.Duration
}

// NavigationResult describes the main document response of a navigation
type NavigationResult struct {
	URL        string
	Status     int
	StatusText string
}

// BrowserLauncher starts isolated browser instances
type BrowserLauncher interface {
	Launch(ctx context.Context, opts BrowserOptions) (BrowserSession, error)
}

// BrowserSession is one browser instance with a single page.
// Close must be called on every exit path.
type BrowserSession interface {
	SetUserAgent(ctx context.Context, userAgent string) error
	SetCookies(ctx context.Context, cookies []models.Cookie) error
	SetExtraHeaders(ctx context.Context, headers map[string]string) error

	// Navigate loads url and waits for the network to settle. A non-nil
	// result may accompany an error when a response arrived before the failure.
	Navigate(ctx context.Context, url string) (*NavigationResult, error)

	// Content returns the rendered page markup
	Content(ctx context.Context) (string, error)

	// ResponseBody returns the raw body of the main document response
	ResponseBody(ctx context.Context) ([]byte, error)

	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}
