// Package monitor owns the usage display state and the recurring fetch schedule.
//
// The state container has a single writer (the fetch cycle) and any number of
// readers through State. Fetches never overlap: scheduled ticks that fire during
// a fetch are skipped, and manual refreshes join the fetch already in flight.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/singleflight"

	"github.com/ternarybob/usagebar/internal/interfaces"
	"github.com/ternarybob/usagebar/internal/models"
	"github.com/ternarybob/usagebar/internal/services/credentials"
	"github.com/ternarybob/usagebar/internal/services/fetcher"
)

const (
	DefaultSchedule     = "@every 1m"
	DefaultFetchTimeout = 90 * time.Second

	refreshKey = "usage"
)

// Config controls the refresh schedule
type Config struct {
	// Schedule is a cron expression; "@every <duration>" gives a fixed interval
	Schedule string

	// FetchTimeout bounds a whole cycle, including browser start-up
	FetchTimeout time.Duration

	// HistoryRetention prunes history older than this after each record. Zero keeps everything.
	HistoryRetention time.Duration
}

// Service runs fetch cycles and holds the last result
type Service struct {
	store   interfaces.CredentialStore
	fetcher interfaces.UsageFetcher
	history interfaces.HistoryStorage
	logger  arbor.ILogger
	config  Config
	now     func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	state models.UsageState

	runMu   sync.Mutex
	cron    *cron.Cron
	running bool
	stopped bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates a monitor. history may be nil.
func NewService(store interfaces.CredentialStore, usageFetcher interfaces.UsageFetcher, history interfaces.HistoryStorage, config Config, logger arbor.ILogger) *Service {
	if config.Schedule == "" {
		config.Schedule = DefaultSchedule
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultFetchTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:   store,
		fetcher: usageFetcher,
		history: history,
		logger:  logger,
		config:  config,
		now:     time.Now,
		state:   models.UsageState{Configured: store.Exists()},
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// State returns a copy of the current display state
func (s *Service) State() models.UsageState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Refresh runs one fetch cycle, or waits for the one already in flight, and
// returns the resulting state. The cycle itself is detached from ctx: if ctx
// ends first, Refresh returns the current state and the cycle carries on.
// After Stop it returns the current state without fetching.
func (s *Service) Refresh(ctx context.Context) models.UsageState {
	if !s.track() {
		return s.State()
	}

	ch := s.group.DoChan(refreshKey, func() (interface{}, error) {
		return s.runCycle(), nil
	})

	select {
	case res := <-ch:
		s.wg.Done()
		if res.Shared {
			s.logger.Debug().Msg("Refresh joined in-flight fetch")
		}
		return res.Val.(models.UsageState)
	case <-ctx.Done():
		// Stop still waits for the cycle
		go func() {
			<-ch
			s.wg.Done()
		}()
		return s.State()
	}
}

// track registers a caller with the stop wait group unless the monitor is stopped
func (s *Service) track() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

// TriggerRefresh starts a refresh in the background
func (s *Service) TriggerRefresh() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.stopped {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Refresh(s.baseCtx)
	}()
}

// Start performs the initial fetch in the background and arms the schedule
func (s *Service) Start() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running {
		return fmt.Errorf("monitor already running")
	}
	if s.stopped {
		return fmt.Errorf("monitor has been stopped")
	}

	schedule, err := cron.ParseStandard(s.config.Schedule)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.config.Schedule, err)
	}

	logger := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s.cron.Schedule(schedule, cron.FuncJob(s.tick))
	s.cron.Start()
	s.running = true

	s.logger.Info().Str("schedule", s.config.Schedule).Msg("Usage monitor started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Refresh(s.baseCtx)
	}()

	return nil
}

// Stop halts the schedule and waits for in-flight work. When ctx ends first
// the running fetch is cancelled, which closes its browser.
func (s *Service) Stop(ctx context.Context) error {
	s.runMu.Lock()
	if s.stopped {
		s.runMu.Unlock()
		return nil
	}
	s.stopped = true
	var cronDone context.Context
	if s.running {
		cronDone = s.cron.Stop()
		s.running = false
	}
	s.runMu.Unlock()

	done := make(chan struct{})
	go func() {
		if cronDone != nil {
			<-cronDone.Done()
		}
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		s.cancel()
	case <-ctx.Done():
		s.logger.Warn().Msg("Timed out waiting for in-flight fetch, cancelling")
		err = ctx.Err()
		s.cancel()
		// the cancelled cycle returns promptly; storage must not close under it
		<-done
	}

	s.logger.Info().Msg("Usage monitor stopped")
	return err
}

func (s *Service) tick() {
	s.logger.Debug().Msg("Scheduled refresh")
	s.Refresh(s.baseCtx)
}

// runCycle is the single writer of s.state
func (s *Service) runCycle() (result models.UsageState) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("PANIC RECOVERED in fetch cycle")
			result = s.finish(func(st *models.UsageState) {
				st.Snapshot = nil
				st.Error = fmt.Sprintf("internal error: %v", r)
				st.ErrorKind = models.ErrorKindBrowser
				st.Status = 0
			})
		}
	}()

	s.update(func(st *models.UsageState) { st.InFlight = true })

	// Loaded fresh every cycle so saved credentials apply without a restart
	bundle, ok := s.store.Load()
	if !ok {
		s.logger.Info().Str("path", s.store.Path()).Msg("No credentials configured, skipping fetch")
		return s.finish(func(st *models.UsageState) {
			st.Snapshot = nil
			st.Error = credentials.ErrConfigMissing.Error()
			st.ErrorKind = models.ErrorKindConfigMissing
			st.Status = 0
			st.Configured = false
		})
	}

	ctx, cancel := context.WithTimeout(s.baseCtx, s.config.FetchTimeout)
	defer cancel()

	snap, err := s.fetcher.Fetch(ctx, bundle)
	if err != nil {
		kind, status := classify(err)
		s.logger.Warn().Err(err).Str("kind", kind).Msg("Usage fetch failed")
		return s.finish(func(st *models.UsageState) {
			st.Snapshot = nil
			st.Error = err.Error()
			st.ErrorKind = kind
			st.Status = status
			st.Configured = true
		})
	}

	fetchedAt := s.now()
	state := s.finish(func(st *models.UsageState) {
		st.Snapshot = snap
		st.Error = ""
		st.ErrorKind = ""
		st.Status = 0
		st.Configured = true
		st.UpdatedAt = fetchedAt
	})

	s.recordHistory(bundle.OrganizationID, snap, fetchedAt)
	return state
}

func (s *Service) update(fn func(st *models.UsageState)) {
	s.mu.Lock()
	fn(&s.state)
	s.mu.Unlock()
}

// finish applies the cycle outcome and clears the in-flight flag
func (s *Service) finish(fn func(st *models.UsageState)) models.UsageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.state.InFlight = false
	s.state.CheckedAt = s.now()
	return s.state
}

func (s *Service) recordHistory(orgID string, snap *models.UsageSnapshot, fetchedAt time.Time) {
	if s.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record := models.NewUsageRecord(uuid.New().String(), orgID, snap, fetchedAt)
	if err := s.history.Record(ctx, record); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record usage history")
		return
	}

	if s.config.HistoryRetention > 0 {
		removed, err := s.history.Prune(ctx, fetchedAt.Add(-s.config.HistoryRetention))
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to prune usage history")
		} else if removed > 0 {
			s.logger.Debug().Int("removed", removed).Msg("Pruned usage history")
		}
	}
}

// classify maps a fetch error to the error kind shown to presentation surfaces
func classify(err error) (string, int) {
	var fetchErr *fetcher.FetchError
	if errors.As(err, &fetchErr) {
		return string(fetchErr.Kind), fetchErr.Status
	}
	return models.ErrorKindNetwork, 0
}
