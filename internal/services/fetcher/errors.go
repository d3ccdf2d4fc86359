package fetcher

import (
	"fmt"

	"github.com/ternarybob/usagebar/internal/models"
)

// ErrorKind classifies fetch failures
type ErrorKind string

const (
	KindNetwork    ErrorKind = ErrorKind(models.ErrorKindNetwork)
	KindHTTPStatus ErrorKind = ErrorKind(models.ErrorKindHTTPStatus)
	KindJSONDecode ErrorKind = ErrorKind(models.ErrorKindJSONDecode)
	// KindBrowser means the browser engine could not be started or driven
	KindBrowser ErrorKind = ErrorKind(models.ErrorKindBrowser)
)

// FetchError is returned for every failed fetch
type FetchError struct {
	Kind   ErrorKind
	Status int    // set for KindHTTPStatus
	Body   string // best-effort response text, truncated
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		if e.Body != "" {
			return fmt.Sprintf("failed to fetch usage: HTTP status %d: %s", e.Status, e.Body)
		}
		return fmt.Sprintf("failed to fetch usage: HTTP status %d", e.Status)
	default:
		if e.Err != nil {
			return fmt.Sprintf("failed to fetch usage (%s): %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("failed to fetch usage (%s)", e.Kind)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
