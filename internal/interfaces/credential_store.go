package interfaces

import "github.com/ternarybob/usagebar/internal/models"

// CredentialStore persists the single credential bundle of this installation
type CredentialStore interface {
	// Save overwrites the stored bundle, stamping UpdatedAt
	Save(bundle *models.CredentialBundle) error

	// Load returns the stored bundle. ok is false when the file is missing,
	// unreadable, corrupt or fails validation; Load never returns an error.
	Load() (bundle *models.CredentialBundle, ok bool)

	// Exists reports whether a credentials file is present
	Exists() bool

	// Path returns the location of the credentials file
	Path() string
}
