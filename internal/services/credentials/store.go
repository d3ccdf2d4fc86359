package credentials

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/usagebar/internal/interfaces"
	"github.com/ternarybob/usagebar/internal/models"
)

// FileStore keeps the credential bundle as a JSON document on disk.
// Writes are full-file overwrites.
type FileStore struct {
	path   string
	logger arbor.ILogger
	now    func() time.Time
}

// NewFileStore creates a store backed by path
func NewFileStore(path string, logger arbor.ILogger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger,
		now:    time.Now,
	}
}

var _ interfaces.CredentialStore = (*FileStore)(nil)

// Path returns the credentials file location
func (s *FileStore) Path() string {
	return s.path
}

// Exists reports whether the credentials file is present
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Save validates the bundle, stamps UpdatedAt and overwrites the file.
// The caller's bundle is not modified.
func (s *FileStore) Save(bundle *models.CredentialBundle) error {
	if err := Validate(bundle); err != nil {
		return err
	}

	stored := *bundle
	stored.UpdatedAt = s.now().UTC()
	if stored.Headers == nil {
		stored.Headers = map[string]string{}
	}

	data, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return &IOError{Op: "encode", Path: s.path, Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &IOError{Op: "mkdir", Path: dir, Err: err}
	}

	s.logger.Debug().Str("path", s.path).Msg("Saving credentials")

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}

	s.logger.Info().
		Str("path", s.path).
		Str("org_id", stored.OrganizationID).
		Strs("cookies", stored.CookieNames()).
		Int("headers", len(stored.Headers)).
		Msg("Credentials saved")

	return nil
}

// Load reads the bundle. Missing, corrupt or invalid files all report ok=false.
func (s *FileStore) Load() (*models.CredentialBundle, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug().Str("path", s.path).Msg("Credentials file does not exist yet")
		} else {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to read credentials file")
		}
		return nil, false
	}

	var bundle models.CredentialBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Credentials file is corrupt, treating as not configured")
		return nil, false
	}
	if bundle.Headers == nil {
		bundle.Headers = map[string]string{}
	}

	if err := Validate(&bundle); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Stored credentials are invalid, treating as not configured")
		return nil, false
	}

	return &bundle, true
}
