package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/usagebar/internal/interfaces"
	"github.com/ternarybob/usagebar/internal/models"
	"github.com/ternarybob/usagebar/internal/services/fetcher"
)

type fakeStore struct {
	mu     sync.Mutex
	bundle *models.CredentialBundle
	loads  int
}

func (s *fakeStore) Save(bundle *models.CredentialBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundle = bundle
	return nil
}

func (s *fakeStore) Load() (*models.CredentialBundle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return s.bundle, s.bundle != nil
}

func (s *fakeStore) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bundle != nil
}

func (s *fakeStore) Path() string { return "/tmp/usagebar/config.json" }

type fetchResult struct {
	raw string
	err error
}

// fakeFetcher returns queued results in order, repeating the last one
type fakeFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int32
	gate    chan struct{}
	started chan struct{}
	orgIDs  []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, bundle *models.CredentialBundle) (*models.UsageSnapshot, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, &fetcher.FetchError{Kind: fetcher.KindNetwork, Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.orgIDs = append(f.orgIDs, bundle.OrganizationID)
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	if res.err != nil {
		return nil, res.err
	}
	return models.NewUsageSnapshot([]byte(res.raw))
}

type fakeHistory struct {
	mu      sync.Mutex
	records []*models.UsageRecord
	cutoffs []time.Time
}

func (h *fakeHistory) Record(ctx context.Context, record *models.UsageRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record)
	return nil
}

func (h *fakeHistory) List(ctx context.Context, limit int) ([]*models.UsageRecord, error) {
	return nil, nil
}

func (h *fakeHistory) Prune(ctx context.Context, before time.Time) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cutoffs = append(h.cutoffs, before)
	return 0, nil
}

func configuredStore() *fakeStore {
	return &fakeStore{bundle: &models.CredentialBundle{
		OrganizationID: "abc-123",
		Cookies:        []models.Cookie{{Name: "sessionKey", Value: "sk-xyz"}},
	}}
}

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func newTestService(store *fakeStore, f *fakeFetcher, history *fakeHistory, config Config) *Service {
	var h interfaces.HistoryStorage
	if history != nil {
		h = history
	}
	svc := NewService(store, f, h, config, arbor.NewLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestRefresh_Success(t *testing.T) {
	history := &fakeHistory{}
	f := &fakeFetcher{results: []fetchResult{{raw: `{"five_hour":{"utilization":8},"seven_day":{"utilization":40}}`}}}
	svc := newTestService(configuredStore(), f, history, Config{HistoryRetention: 24 * time.Hour})

	assert.True(t, svc.State().Loading())

	state := svc.Refresh(context.Background())
	require.NotNil(t, state.Snapshot)
	assert.Empty(t, state.Error)
	assert.True(t, state.Configured)
	assert.False(t, state.InFlight)
	assert.Equal(t, fixedNow, state.UpdatedAt)
	assert.Equal(t, float64(8), state.Snapshot.Utilization(models.WindowFiveHour))
	assert.Equal(t, state, svc.State())

	require.Len(t, history.records, 1)
	assert.Equal(t, "abc-123", history.records[0].OrganizationID)
	assert.Equal(t, float64(40), history.records[0].SevenDay)
	assert.NotEmpty(t, history.records[0].ID)
	assert.Equal(t, []time.Time{fixedNow.Add(-24 * time.Hour)}, history.cutoffs)
}

func TestRefresh_ConfigMissing(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{{raw: `{}`}}}
	svc := newTestService(&fakeStore{}, f, nil, Config{})

	state := svc.Refresh(context.Background())
	assert.Nil(t, state.Snapshot)
	assert.Equal(t, models.ErrorKindConfigMissing, state.ErrorKind)
	assert.True(t, state.NeedsSettings())
	assert.False(t, state.Configured)
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.calls))
}

func TestRefresh_ErrorReplacesSnapshot(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{
		{raw: `{"five_hour":{"utilization":8}}`},
		{err: &fetcher.FetchError{Kind: fetcher.KindHTTPStatus, Status: 403}},
		{raw: `{"five_hour":{"utilization":9}}`},
	}}
	svc := newTestService(configuredStore(), f, nil, Config{})

	first := svc.Refresh(context.Background())
	require.NotNil(t, first.Snapshot)

	second := svc.Refresh(context.Background())
	assert.Nil(t, second.Snapshot)
	assert.Equal(t, models.ErrorKindHTTPStatus, second.ErrorKind)
	assert.Equal(t, 403, second.Status)
	assert.Contains(t, second.Error, "403")
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	// the next attempt retries unconditionally
	third := svc.Refresh(context.Background())
	require.NotNil(t, third.Snapshot)
	assert.Empty(t, third.Error)
	assert.Equal(t, float64(9), third.Snapshot.Utilization(models.WindowFiveHour))
}

func TestRefresh_UntypedErrorIsNetwork(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{{err: errors.New("boom")}}}
	svc := newTestService(configuredStore(), f, nil, Config{})

	state := svc.Refresh(context.Background())
	assert.Equal(t, models.ErrorKindNetwork, state.ErrorKind)
}

func TestRefresh_CredentialsLoadedEachCycle(t *testing.T) {
	store := configuredStore()
	f := &fakeFetcher{results: []fetchResult{{raw: `{}`}}}
	svc := newTestService(store, f, nil, Config{})

	svc.Refresh(context.Background())
	require.NoError(t, store.Save(&models.CredentialBundle{
		OrganizationID: "def-456",
		Cookies:        []models.Cookie{{Name: "sessionKey", Value: "sk-new"}},
	}))
	svc.Refresh(context.Background())

	assert.Equal(t, []string{"abc-123", "def-456"}, f.orgIDs)
	assert.Equal(t, 2, store.loads)
}

func TestRefresh_CoalescesConcurrentCalls(t *testing.T) {
	f := &fakeFetcher{
		results: []fetchResult{{raw: `{"five_hour":{"utilization":8}}`}},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 10),
	}
	svc := newTestService(configuredStore(), f, nil, Config{})

	results := make(chan models.UsageState, 3)
	go func() { results <- svc.Refresh(context.Background()) }()
	<-f.started

	assert.True(t, svc.State().InFlight)

	go func() { results <- svc.Refresh(context.Background()) }()
	go func() { results <- svc.Refresh(context.Background()) }()

	// give the joiners time to attach to the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(f.gate)

	for i := 0; i < 3; i++ {
		state := <-results
		require.NotNil(t, state.Snapshot)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.calls))
}

func TestRefresh_CallerContextEnds(t *testing.T) {
	f := &fakeFetcher{
		results: []fetchResult{{raw: `{}`}},
		gate:    make(chan struct{}),
	}
	svc := newTestService(configuredStore(), f, nil, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	state := svc.Refresh(ctx)
	assert.True(t, state.InFlight)

	close(f.gate)
	require.Eventually(t, func() bool { return svc.State().Snapshot != nil }, time.Second, 5*time.Millisecond)
}

func TestStartAndStop(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{{raw: `{"seven_day":{"utilization":12}}`}}}
	svc := newTestService(configuredStore(), f, nil, Config{Schedule: "@every 1h"})

	require.NoError(t, svc.Start())
	assert.Error(t, svc.Start())

	require.Eventually(t, func() bool { return svc.State().Snapshot != nil }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, svc.Stop(ctx))
	assert.Error(t, svc.Start())
}

func TestStart_InvalidSchedule(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{{raw: `{}`}}}
	svc := newTestService(configuredStore(), f, nil, Config{Schedule: "every minute"})
	assert.Error(t, svc.Start())
}

func TestStop_CancelsInFlightFetchOnTimeout(t *testing.T) {
	f := &fakeFetcher{
		results: []fetchResult{{raw: `{}`}},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	svc := newTestService(configuredStore(), f, nil, Config{Schedule: "@every 1h"})
	require.NoError(t, svc.Start())
	<-f.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Stop(ctx), context.DeadlineExceeded)

	// Stop returns only once the cancelled cycle has finished
	st := svc.State()
	assert.False(t, st.InFlight)
	assert.Equal(t, models.ErrorKindNetwork, st.ErrorKind)
}

func TestStop_WaitsForCycleOfAbandonedCaller(t *testing.T) {
	f := &fakeFetcher{
		results: []fetchResult{{raw: `{"five_hour":{"utilization":3}}`}},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	history := &fakeHistory{}
	svc := newTestService(configuredStore(), f, history, Config{})

	callerCtx, cancelCaller := context.WithCancel(context.Background())
	returned := make(chan struct{})
	go func() {
		svc.Refresh(callerCtx)
		close(returned)
	}()
	<-f.started
	cancelCaller()
	<-returned

	stopped := make(chan error, 1)
	go func() { stopped <- svc.Stop(context.Background()) }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a fetch cycle was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.gate)
	require.NoError(t, <-stopped)

	history.mu.Lock()
	defer history.mu.Unlock()
	assert.Len(t, history.records, 1)
}

func TestRefresh_AfterStopDoesNotFetch(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{{raw: `{}`}}}
	svc := newTestService(configuredStore(), f, nil, Config{})
	require.NoError(t, svc.Stop(context.Background()))

	svc.Refresh(context.Background())
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.calls))
}

func TestTriggerRefresh(t *testing.T) {
	f := &fakeFetcher{results: []fetchResult{{raw: `{"five_hour":{"utilization":3}}`}}}
	svc := newTestService(configuredStore(), f, nil, Config{})

	svc.TriggerRefresh()
	require.Eventually(t, func() bool { return svc.State().Snapshot != nil }, time.Second, 5*time.Millisecond)

	require.NoError(t, svc.Stop(context.Background()))
	svc.TriggerRefresh()
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.calls))
}

func TestFormatKeysAndValues(t *testing.T) {
	assert.Equal(t, "now=1 entry=2", formatKeysAndValues([]interface{}{"now", 1, "entry", 2}))
	assert.Equal(t, "odd", formatKeysAndValues([]interface{}{"odd"}))
}
