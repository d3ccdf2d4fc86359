package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/usagebar/internal/interfaces"
	"github.com/ternarybob/usagebar/internal/models"
)

// ChromeLauncher starts a dedicated headless Chrome per session via chromedp
type ChromeLauncher struct {
	logger arbor.ILogger
}

// NewChromeLauncher creates a chromedp launcher
func NewChromeLauncher(logger arbor.ILogger) *ChromeLauncher {
	return &ChromeLauncher{logger: logger}
}

// Launch starts a browser process and opens one page. Cancelling ctx kills the process.
func (l *ChromeLauncher) Launch(ctx context.Context, opts interfaces.BrowserOptions) (interfaces.BrowserSession, error) {
	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", opts.NoSandbox),
		chromedp.Flag("disable-setuid-sandbox", opts.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(opts.UserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	s := &chromeSession{
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		opts:            opts,
		tracker:         newIdleTracker(),
		logger:          l.logger,
	}
	chromedp.ListenTarget(browserCtx, s.onEvent)

	// first Run starts the browser process
	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	l.logger.Debug().Dur("startup_time", time.Since(startTime)).Bool("headless", opts.Headless).Msg("Browser instance started")
	return s, nil
}

type chromeSession struct {
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	opts            interfaces.BrowserOptions
	tracker         *idleTracker
	logger          arbor.ILogger

	mu         sync.Mutex
	navigating bool
	document   *network.Response
	documentID network.RequestID

	closeOnce sync.Once
	closeErr  error
}

func (s *chromeSession) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		s.tracker.begin(string(e.RequestID))
	case *network.EventLoadingFinished:
		s.tracker.end(string(e.RequestID))
	case *network.EventLoadingFailed:
		s.tracker.end(string(e.RequestID))
	case *network.EventResponseReceived:
		if e.Type != network.ResourceTypeDocument {
			return
		}
		s.mu.Lock()
		if s.navigating && s.document == nil {
			s.document = e.Response
			s.documentID = e.RequestID
		}
		s.mu.Unlock()
	}
}

// bind derives a chromedp context from the browser that honours ctx's
// deadline and cancellation without closing the browser when it ends.
func (s *chromeSession) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.browserCtx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		parentCancel := cancel
		cancel = func() {
			cancelDeadline()
			parentCancel()
		}
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := s.bind(ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) SetUserAgent(ctx context.Context, userAgent string) error {
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return emulation.SetUserAgentOverride(userAgent).Do(ctx)
	}))
}

func (s *chromeSession) SetCookies(ctx context.Context, cookies []models.Cookie) error {
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			if err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				Do(ctx); err != nil {
				return fmt.Errorf("cookie %s: %w", c.Name, err)
			}
		}
		s.logger.Debug().Int("cookie_count", len(cookies)).Msg("Cookies injected into browser")
		return nil
	}))
}

func (s *chromeSession) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	h := make(network.Headers, len(headers))
	for name, value := range headers {
		h[name] = value
	}
	return s.run(ctx, network.SetExtraHTTPHeaders(h))
}

func (s *chromeSession) Navigate(ctx context.Context, url string) (*interfaces.NavigationResult, error) {
	s.mu.Lock()
	s.navigating = true
	s.document = nil
	s.documentID = ""
	s.mu.Unlock()

	err := s.run(ctx, chromedp.Navigate(url))
	if err == nil {
		err = s.tracker.waitIdle(ctx, s.opts.IdleConnections, s.opts.IdleDuration)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigating = false

	if s.document == nil {
		return nil, err
	}
	return &interfaces.NavigationResult{
		URL:        s.document.URL,
		Status:     int(s.document.Status),
		StatusText: s.document.StatusText,
	}, err
}

func (s *chromeSession) Content(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (s *chromeSession) ResponseBody(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	id := s.documentID
	s.mu.Unlock()
	if id == "" {
		return nil, errors.New("no document response recorded")
	}

	var body []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(id).Do(ctx)
		return err
	}))
	return body, err
}

func (s *chromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close shuts the browser down and waits for the process to exit
func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		err := chromedp.Cancel(s.browserCtx)
		s.browserCancel()
		s.allocatorCancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// idleTracker counts in-flight requests for the network-idle heuristic
type idleTracker struct {
	mu       sync.Mutex
	inflight map[string]struct{}
	poll     time.Duration
}

func newIdleTracker() *idleTracker {
	return &idleTracker{
		inflight: make(map[string]struct{}),
		poll:     50 * time.Millisecond,
	}
}

func (t *idleTracker) begin(id string) {
	t.mu.Lock()
	t.inflight[id] = struct{}{}
	t.mu.Unlock()
}

func (t *idleTracker) end(id string) {
	t.mu.Lock()
	delete(t.inflight, id)
	t.mu.Unlock()
}

func (t *idleTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// waitIdle returns once at most maxInflight requests have been in flight
// continuously for quiet, or when ctx ends.
func (t *idleTracker) waitIdle(ctx context.Context, maxInflight int, quiet time.Duration) error {
	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	var idleSince time.Time
	for {
		now := time.Now()
		if t.count() <= maxInflight {
			if idleSince.IsZero() {
				idleSince = now
			}
			if now.Sub(idleSince) >= quiet {
				return nil
			}
		} else {
			idleSince = time.Time{}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
