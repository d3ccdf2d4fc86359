package handlers

import (
	"context"

	"github.com/ternarybob/usagebar/internal/models"
	"github.com/ternarybob/usagebar/internal/services/credentials"
)

// SettingsService is the settings entry point used by the settings routes.
type SettingsService interface {
	SaveCurlSettings(raw string) credentials.SaveResult
	HasConfig() bool
	Bundle() (*models.CredentialBundle, bool)
}

// UsageMonitor exposes the current usage state and manual refresh.
type UsageMonitor interface {
	State() models.UsageState
	Refresh(ctx context.Context) models.UsageState
}
