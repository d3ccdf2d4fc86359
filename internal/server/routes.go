package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Settings (credential capture)
	mux.HandleFunc("/api/settings/curl", s.app.SettingsHandler.SaveCurlHandler) // POST - raw curl text or {"curl": "..."}
	mux.HandleFunc("/api/settings/status", s.app.SettingsHandler.StatusHandler) // GET - configured flag, names only

	// Usage
	mux.HandleFunc("/api/usage", s.app.UsageHandler.GetUsageHandler)        // GET - snapshot or error
	mux.HandleFunc("/api/usage/display", s.app.UsageHandler.DisplayHandler) // GET - title and menu lines
	mux.HandleFunc("/api/usage/refresh", s.app.UsageHandler.RefreshHandler) // POST - coalesced manual refresh
	mux.HandleFunc("/api/usage/history", s.app.UsageHandler.HistoryHandler) // GET - ?limit=N

	// System
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)

	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
