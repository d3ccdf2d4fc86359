package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/usagebar/internal/interfaces"
	"github.com/ternarybob/usagebar/internal/models"
	"github.com/ternarybob/usagebar/internal/services/presentation"
)

const maxHistoryLimit = 1000

// UsageHandler serves the current usage state, its rendered display, manual
// refresh and history.
type UsageHandler struct {
	monitor UsageMonitor
	history interfaces.HistoryStorage
	limiter *rate.Limiter
	logger  arbor.ILogger
	now     func() time.Time
}

// NewUsageHandler creates the handler. history may be nil when disabled;
// minRefreshInterval spaces out manual refreshes.
func NewUsageHandler(monitor UsageMonitor, history interfaces.HistoryStorage, minRefreshInterval time.Duration, logger arbor.ILogger) *UsageHandler {
	limit := rate.Inf
	if minRefreshInterval > 0 {
		limit = rate.Every(minRefreshInterval)
	}
	return &UsageHandler{
		monitor: monitor,
		history: history,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		now:     time.Now,
	}
}

type usageResponse struct {
	Snapshot   json.RawMessage      `json:"snapshot,omitempty"`
	Windows    []models.UsageWindow `json:"windows,omitempty"`
	Error      string               `json:"error,omitempty"`
	ErrorKind  string               `json:"error_kind,omitempty"`
	Status     int                  `json:"status,omitempty"`
	Configured bool                 `json:"configured"`
	InFlight   bool                 `json:"in_flight"`
	UpdatedAt  *time.Time           `json:"updated_at,omitempty"`
	CheckedAt  *time.Time           `json:"checked_at,omitempty"`
}

func newUsageResponse(state models.UsageState) usageResponse {
	resp := usageResponse{
		Error:      state.Error,
		ErrorKind:  state.ErrorKind,
		Status:     state.Status,
		Configured: state.Configured,
		InFlight:   state.InFlight,
	}
	if state.Snapshot != nil {
		resp.Snapshot = state.Snapshot.Raw()
		resp.Windows = state.Snapshot.Windows()
	}
	if !state.UpdatedAt.IsZero() {
		t := state.UpdatedAt
		resp.UpdatedAt = &t
	}
	if !state.CheckedAt.IsZero() {
		t := state.CheckedAt
		resp.CheckedAt = &t
	}
	return resp
}

// GetUsageHandler returns the last snapshot or error
func (h *UsageHandler) GetUsageHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, newUsageResponse(h.monitor.State()))
}

// DisplayHandler returns the rendered title and menu lines
func (h *UsageHandler) DisplayHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, presentation.Render(h.monitor.State(), h.now()))
}

// RefreshHandler runs a manual refresh, joining any fetch already in flight,
// and returns the resulting state.
func (h *UsageHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	reservation := h.limiter.Reserve()
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
		WriteError(w, http.StatusTooManyRequests, "Refresh requested too frequently")
		return
	}

	h.logger.Debug().Msg("Manual refresh requested")
	WriteJSON(w, http.StatusOK, newUsageResponse(h.monitor.Refresh(r.Context())))
}

// HistoryHandler returns recent successful snapshots, newest first
func (h *UsageHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if h.history == nil {
		WriteError(w, http.StatusNotFound, "History is disabled")
		return
	}

	records, err := h.history.List(r.Context(), GetLimitParam(r, 100, maxHistoryLimit))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list usage history")
		WriteError(w, http.StatusInternalServerError, "Failed to list usage history")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}
