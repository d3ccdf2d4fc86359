// Package fetchertest provides an in-memory browser for tests that exercise
// the fetch path without Chrome.
package fetchertest

import (
	"context"
	"sync"

	"github.com/ternarybob/usagebar/internal/interfaces"
	"github.com/ternarybob/usagebar/internal/models"
)

// Page is what the fake browser serves for every navigation
type Page struct {
	Status  int
	Content string
	Body    []byte
}

// Launcher hands out sessions that serve the current Page
type Launcher struct {
	mu       sync.Mutex
	page     Page
	launched int
	closed   int
	cookies  []models.Cookie
	urls     []string
}

// NewLauncher serves page until SetPage is called
func NewLauncher(page Page) *Launcher {
	return &Launcher{page: page}
}

// JSONPage wraps a JSON document the way Chrome's viewer renders it
func JSONPage(doc string) Page {
	return Page{
		Status:  200,
		Content: `<html><head></head><body><pre>` + doc + `</pre></body></html>`,
		Body:    []byte(doc),
	}
}

// SetPage changes the page served by later navigations
func (l *Launcher) SetPage(page Page) {
	l.mu.Lock()
	l.page = page
	l.mu.Unlock()
}

// Launched returns how many sessions were started
func (l *Launcher) Launched() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launched
}

// Open returns how many sessions are still open
func (l *Launcher) Open() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launched - l.closed
}

// URLs returns every navigated URL in order
func (l *Launcher) URLs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.urls...)
}

// Cookies returns the cookies installed by the last session
func (l *Launcher) Cookies() []models.Cookie {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cookies
}

func (l *Launcher) Launch(ctx context.Context, opts interfaces.BrowserOptions) (interfaces.BrowserSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched++
	return &session{launcher: l, page: l.page}, nil
}

type session struct {
	launcher *Launcher
	page     Page
	once     sync.Once
}

func (s *session) SetUserAgent(ctx context.Context, userAgent string) error { return nil }

func (s *session) SetCookies(ctx context.Context, cookies []models.Cookie) error {
	s.launcher.mu.Lock()
	s.launcher.cookies = cookies
	s.launcher.mu.Unlock()
	return nil
}

func (s *session) SetExtraHeaders(ctx context.Context, headers map[string]string) error { return nil }

func (s *session) Navigate(ctx context.Context, url string) (*interfaces.NavigationResult, error) {
	s.launcher.mu.Lock()
	s.launcher.urls = append(s.launcher.urls, url)
	s.launcher.mu.Unlock()
	return &interfaces.NavigationResult{URL: url, Status: s.page.Status}, nil
}

func (s *session) Content(ctx context.Context) (string, error) { return s.page.Content, nil }

func (s *session) ResponseBody(ctx context.Context) ([]byte, error) { return s.page.Body, nil }

func (s *session) Screenshot(ctx context.Context) ([]byte, error) { return nil, nil }

func (s *session) Close() error {
	s.once.Do(func() {
		s.launcher.mu.Lock()
		s.launcher.closed++
		s.launcher.mu.Unlock()
	})
	return nil
}
