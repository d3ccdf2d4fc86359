package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/usagebar/internal/common"
	"github.com/ternarybob/usagebar/internal/handlers"
	"github.com/ternarybob/usagebar/internal/interfaces"
	"github.com/ternarybob/usagebar/internal/services/credentials"
	"github.com/ternarybob/usagebar/internal/services/curl"
	"github.com/ternarybob/usagebar/internal/services/fetcher"
	"github.com/ternarybob/usagebar/internal/services/monitor"
	"github.com/ternarybob/usagebar/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	CredentialStore *credentials.FileStore
	StorageManager  *badger.Manager           // nil when history is disabled or unavailable
	HistoryStorage  interfaces.HistoryStorage // nil when history is disabled or unavailable

	// Services
	SettingsService *credentials.Service
	FetcherService  *fetcher.Service
	MonitorService  *monitor.Service

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	SettingsHandler *handlers.SettingsHandler
	UsageHandler    *handlers.UsageHandler

	launcher interfaces.BrowserLauncher
}

// Option customises App construction
type Option func(*App)

// WithBrowserLauncher replaces the chromedp launcher
func WithBrowserLauncher(launcher interfaces.BrowserLauncher) Option {
	return func(a *App) {
		a.launcher = launcher
	}
}

// New wires the application. History storage failures are logged and the
// app continues without history.
func New(cfg *common.Config, logger arbor.ILogger, opts ...Option) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	for _, opt := range opts {
		opt(app)
	}

	app.initStorage()

	if err := app.initServices(); err != nil {
		app.closeStorage()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Debug().
		Str("credentials_path", app.CredentialStore.Path()).
		Bool("configured", app.CredentialStore.Exists()).
		Bool("history", app.HistoryStorage != nil).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initStorage() {
	a.CredentialStore = credentials.NewFileStore(a.Config.Storage.CredentialsPath, a.Logger)

	history := &a.Config.Storage.History
	if !history.Enabled {
		a.Logger.Debug().Msg("Usage history disabled")
		return
	}

	manager, err := badger.NewManager(a.Logger, history)
	if err != nil {
		a.Logger.Warn().Err(err).Str("path", history.Path).Msg("Usage history unavailable, continuing without it")
		return
	}
	a.StorageManager = manager
	a.HistoryStorage = manager.HistoryStorage()
}

// FetcherConfig maps the [browser] section onto the fetcher
func FetcherConfig(cfg *common.Config) fetcher.Config {
	b := cfg.Browser
	return fetcher.Config{
		BaseURL:           b.BaseURL,
		UserAgent:         b.UserAgent,
		Headless:          b.Headless,
		NoSandbox:         b.NoSandbox,
		NavigationTimeout: b.NavigationTimeoutDuration(),
		IdleConnections:   b.IdleConnections,
		IdleDuration:      b.IdleDurationValue(),
	}
}

func (a *App) initServices() error {
	if err := common.ValidateSchedule(a.Config.Scheduler.Interval); err != nil {
		return fmt.Errorf("scheduler.interval: %w", err)
	}

	parser := curl.NewParser(a.Config.Browser.CookieDomain)
	a.SettingsService = credentials.NewService(parser, a.CredentialStore, a.Logger)

	a.FetcherService = fetcher.NewService(FetcherConfig(a.Config), a.launcher, a.Logger)

	a.MonitorService = monitor.NewService(
		a.CredentialStore,
		a.FetcherService,
		a.HistoryStorage,
		monitor.Config{
			Schedule:         a.Config.Scheduler.Interval,
			FetchTimeout:     a.Config.Scheduler.FetchTimeoutDuration(),
			HistoryRetention: a.Config.Storage.History.RetentionDuration(),
		},
		a.Logger,
	)

	// New credentials take effect immediately rather than on the next tick
	a.SettingsService.OnSaved(a.MonitorService.TriggerRefresh)

	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.SettingsHandler = handlers.NewSettingsHandler(a.SettingsService, a.Logger)
	a.UsageHandler = handlers.NewUsageHandler(
		a.MonitorService,
		a.HistoryStorage,
		a.Config.Refresh.MinIntervalDuration(),
		a.Logger,
	)
}

// Close stops the monitor, waiting up to 10s for an in-flight fetch, and
// closes storage.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.MonitorService != nil {
		if err := a.MonitorService.Stop(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Monitor did not stop cleanly")
		}
	}

	return a.closeStorage()
}

func (a *App) closeStorage() error {
	if a.StorageManager == nil {
		return nil
	}
	if err := a.StorageManager.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	a.Logger.Debug().Msg("Storage closed")
	return nil
}
