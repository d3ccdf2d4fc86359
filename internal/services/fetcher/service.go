package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/usagebar/internal/interfaces"
	"github.com/ternarybob/usagebar/internal/models"
)

// Service fetches usage snapshots by replaying a credential bundle through a
// scripted browser. Every fetch launches its own browser instance and closes
// it before returning.
type Service struct {
	config   Config
	launcher interfaces.BrowserLauncher
	logger   arbor.ILogger
}

// NewService creates a fetcher. A nil launcher uses chromedp.
func NewService(config Config, launcher interfaces.BrowserLauncher, logger arbor.ILogger) *Service {
	if launcher == nil {
		launcher = NewChromeLauncher(logger)
	}
	return &Service{
		config:   config.withDefaults(),
		launcher: launcher,
		logger:   logger,
	}
}

var _ interfaces.UsageFetcher = (*Service)(nil)

// Fetch retrieves the current usage snapshot for bundle
func (s *Service) Fetch(ctx context.Context, bundle *models.CredentialBundle) (snap *models.UsageSnapshot, err error) {
	fetchID := uuid.New().String()
	logger := s.logger.WithCorrelationId(fetchID)
	started := time.Now()
	target := s.config.UsageURL(bundle.OrganizationID)

	logger.Debug().
		Str("url", target).
		Int("cookies", len(bundle.Cookies)).
		Strs("headers", bundle.HeaderNames()).
		Msg("Starting usage fetch")

	session, err := s.launcher.Launch(ctx, s.config.browserOptions())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to launch browser")
		return nil, &FetchError{Kind: KindBrowser, Err: err}
	}
	defer func() {
		if err != nil && s.config.ScreenshotPath != "" {
			s.saveScreenshot(session, logger)
		}
		if closeErr := session.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("Failed to close browser")
		}
		logger.Debug().Dur("duration", time.Since(started)).Bool("success", err == nil).Msg("Browser closed")
	}()

	if err := s.prepare(ctx, session, bundle); err != nil {
		logger.Error().Err(err).Msg("Failed to prepare browser session")
		return nil, &FetchError{Kind: KindBrowser, Err: err}
	}

	navCtx, cancel := context.WithTimeout(ctx, s.config.NavigationTimeout)
	defer cancel()

	nav, navErr := session.Navigate(navCtx, target)
	if nav != nil && nav.Status != 0 && nav.Status != http.StatusOK {
		fetchErr := &FetchError{Kind: KindHTTPStatus, Status: nav.Status, Body: s.diagnosticText(ctx, session)}
		logger.Warn().Int("status", nav.Status).Str("response", fetchErr.Body).Msg("Usage endpoint returned non-200 status")
		return nil, fetchErr
	}
	if navErr != nil {
		if errors.Is(navErr, context.DeadlineExceeded) {
			navErr = fmt.Errorf("navigation timed out after %s: %w", s.config.NavigationTimeout, navErr)
		}
		logger.Error().Err(navErr).Str("url", target).Msg("Navigation failed")
		return nil, &FetchError{Kind: KindNetwork, Err: navErr}
	}
	if nav == nil || nav.Status == 0 {
		logger.Error().Str("url", target).Msg("No document response observed")
		return nil, &FetchError{Kind: KindNetwork, Err: errors.New("no response received")}
	}

	snap, err = s.readSnapshot(ctx, session, logger)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("org_id", bundle.OrganizationID).
		Int("windows", len(snap.Windows())).
		Dur("duration", time.Since(started)).
		Msg("Usage fetched")

	return snap, nil
}

func (s *Service) prepare(ctx context.Context, session interfaces.BrowserSession, bundle *models.CredentialBundle) error {
	if err := session.SetUserAgent(ctx, s.config.UserAgent); err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}
	if err := session.SetCookies(ctx, bundle.Cookies); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	if err := session.SetExtraHeaders(ctx, MergeHeaders(BaselineHeaders, bundle.Headers)); err != nil {
		return fmt.Errorf("set headers: %w", err)
	}
	return nil
}

// readSnapshot prefers JSON wrapped in the browser's <pre> viewer and falls
// back to the raw response body.
func (s *Service) readSnapshot(ctx context.Context, session interfaces.BrowserSession, logger arbor.ILogger) (*models.UsageSnapshot, error) {
	content, err := session.Content(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to read page content, using response body")
	} else if jsonText, ok := extractPreJSON(content); ok {
		return decodeSnapshot([]byte(jsonText))
	}

	body, err := session.ResponseBody(ctx)
	if err != nil {
		return nil, &FetchError{Kind: KindJSONDecode, Err: fmt.Errorf("read response body: %w", err)}
	}
	return decodeSnapshot(body)
}

func (s *Service) diagnosticText(ctx context.Context, session interfaces.BrowserSession) string {
	if body, err := session.ResponseBody(ctx); err == nil && len(body) > 0 {
		return describeBody(string(body))
	}
	if content, err := session.Content(ctx); err == nil {
		return describeBody(content)
	}
	return ""
}

func (s *Service) saveScreenshot(session interfaces.BrowserSession, logger arbor.ILogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	png, err := session.Screenshot(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to capture screenshot")
		return
	}
	if err := os.WriteFile(s.config.ScreenshotPath, png, 0644); err != nil {
		logger.Warn().Err(err).Str("path", s.config.ScreenshotPath).Msg("Failed to write screenshot")
		return
	}
	logger.Info().Str("path", s.config.ScreenshotPath).Msg("Screenshot saved")
}

// Probe launches and closes a browser to verify the engine is usable
func (s *Service) Probe(ctx context.Context) error {
	started := time.Now()
	session, err := s.launcher.Launch(ctx, s.config.browserOptions())
	if err != nil {
		return fmt.Errorf("browser engine unavailable: %w", err)
	}
	if err := session.Close(); err != nil {
		return fmt.Errorf("browser engine failed to close: %w", err)
	}
	s.logger.Debug().Dur("startup_time", time.Since(started)).Msg("Browser engine probe succeeded")
	return nil
}
