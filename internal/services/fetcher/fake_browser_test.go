package fetcher

import (
	"context"
	"errors"
	"sync"

	"github.com/ternarybob/usagebar/internal/interfaces"
	"github.com/ternarybob/usagebar/internal/models"
)

// fakeLauncher records every session it hands out
type fakeLauncher struct {
	mu        sync.Mutex
	launchErr error
	newPage   func() *fakeSession
	sessions  []*fakeSession
	opts      []interfaces.BrowserOptions
}

func (l *fakeLauncher) Launch(ctx context.Context, opts interfaces.BrowserOptions) (interfaces.BrowserSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opts = append(l.opts, opts)
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	s := l.newPage()
	l.sessions = append(l.sessions, s)
	return s, nil
}

func (l *fakeLauncher) last() *fakeSession {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessions[len(l.sessions)-1]
}

// fakeSession simulates one page load
type fakeSession struct {
	status     int
	content    string
	body       []byte
	navErr     error
	contentErr error
	blockNav   bool
	cookieErr  error

	userAgent string
	cookies   []models.Cookie
	headers   map[string]string
	visited   string
	closed    bool
	closeErr  error
}

func (s *fakeSession) SetUserAgent(ctx context.Context, userAgent string) error {
	s.userAgent = userAgent
	return nil
}

func (s *fakeSession) SetCookies(ctx context.Context, cookies []models.Cookie) error {
	if s.cookieErr != nil {
		return s.cookieErr
	}
	s.cookies = cookies
	return nil
}

func (s *fakeSession) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	s.headers = headers
	return nil
}

func (s *fakeSession) Navigate(ctx context.Context, url string) (*interfaces.NavigationResult, error) {
	s.visited = url
	if s.blockNav {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.navErr != nil && s.status == 0 {
		return nil, s.navErr
	}
	return &interfaces.NavigationResult{URL: url, Status: s.status}, s.navErr
}

func (s *fakeSession) Content(ctx context.Context) (string, error) {
	return s.content, s.contentErr
}

func (s *fakeSession) ResponseBody(ctx context.Context) ([]byte, error) {
	if s.body == nil {
		return nil, errors.New("no body")
	}
	return s.body, nil
}

func (s *fakeSession) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("png"), nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return s.closeErr
}
