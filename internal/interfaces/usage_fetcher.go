package interfaces

import (
	"context"

	"github.com/ternarybob/usagebar/internal/models"
)

// UsageFetcher retrieves one usage snapshot using a credential bundle
type UsageFetcher interface {
	Fetch(ctx context.Context, bundle *models.CredentialBundle) (*models.UsageSnapshot, error)
}
