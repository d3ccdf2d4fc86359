package credentials

import (
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/usagebar/internal/interfaces"
	"github.com/ternarybob/usagebar/internal/models"
)

// CommandParser turns pasted command text into a bundle
type CommandParser interface {
	Parse(raw string) (*models.CredentialBundle, error)
}

// SaveResult is returned to the settings UI so it can render an inline error
type SaveResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Service is the settings entry point: parse and persist, and report configuration
type Service struct {
	parser CommandParser
	store  interfaces.CredentialStore
	logger arbor.ILogger

	mu      sync.Mutex
	onSaved []func()
}

// NewService creates the settings service
func NewService(parser CommandParser, store interfaces.CredentialStore, logger arbor.ILogger) *Service {
	return &Service{
		parser: parser,
		store:  store,
		logger: logger,
	}
}

// OnSaved registers a callback invoked after every successful save
func (s *Service) OnSaved(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSaved = append(s.onSaved, fn)
}

// SaveCurlSettings parses raw command text and persists the resulting bundle.
// Parse and persistence failures are reported in the result, never returned.
func (s *Service) SaveCurlSettings(raw string) SaveResult {
	bundle, err := s.parser.Parse(raw)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to parse curl command")
		return SaveResult{Success: false, Error: err.Error()}
	}

	if err := s.store.Save(bundle); err != nil {
		s.logger.Error().Err(err).Str("path", s.store.Path()).Msg("Failed to save credentials")
		return SaveResult{Success: false, Error: err.Error()}
	}

	s.mu.Lock()
	callbacks := append([]func(){}, s.onSaved...)
	s.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}

	return SaveResult{Success: true}
}

// HasConfig reports whether credentials have been saved
func (s *Service) HasConfig() bool {
	return s.store.Exists()
}

// Bundle loads the current bundle; ok is false when not configured
func (s *Service) Bundle() (*models.CredentialBundle, bool) {
	return s.store.Load()
}
