package handlers

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

// maxCurlBodySize bounds a pasted command; copied requests are a few KB
const maxCurlBodySize = 256 * 1024

// SettingsHandler serves the settings entry points
type SettingsHandler struct {
	settings SettingsService
	logger   arbor.ILogger
}

func NewSettingsHandler(settings SettingsService, logger arbor.ILogger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		logger:   logger,
	}
}

type curlRequest struct {
	Curl string `json:"curl"`
}

// SaveCurlHandler accepts a copied curl command as plain text or as {"curl": "..."}
// and responds with the save result.
func (h *SettingsHandler) SaveCurlHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCurlBodySize))
	if err != nil {
		WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}

	raw := string(body)
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "application/json" {
		var req curlRequest
		if err := json.Unmarshal(body, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		raw = req.Curl
	}

	if strings.TrimSpace(raw) == "" {
		WriteError(w, http.StatusBadRequest, "curl command is required")
		return
	}

	result := h.settings.SaveCurlSettings(raw)
	if !result.Success {
		WriteJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	h.logger.Info().Msg("Credentials saved via API")
	WriteJSON(w, http.StatusOK, result)
}

type settingsStatus struct {
	Configured     bool       `json:"configured"`
	Invalid        bool       `json:"invalid,omitempty"` // file present but unreadable or failing validation
	OrganizationID string     `json:"org_id,omitempty"`
	CookieNames    []string   `json:"cookie_names,omitempty"`
	HeaderNames    []string   `json:"header_names,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// StatusHandler reports whether usable credentials are configured, matching
// what the monitor will load. Only cookie and header names are returned, never values.
func (h *SettingsHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	bundle, ok := h.settings.Bundle()
	status := settingsStatus{Configured: ok}
	if !ok {
		status.Invalid = h.settings.HasConfig()
	} else {
		status.OrganizationID = bundle.OrganizationID
		status.CookieNames = bundle.CookieNames()
		status.HeaderNames = bundle.HeaderNames()
		if !bundle.UpdatedAt.IsZero() {
			updated := bundle.UpdatedAt
			status.UpdatedAt = &updated
		}
	}

	WriteJSON(w, http.StatusOK, status)
}
