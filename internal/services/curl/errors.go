package curl

import "errors"

var (
	// ErrOrganizationIDNotFound means no organizations/<id>/usage URL was present
	ErrOrganizationIDNotFound = errors.New("organization id not found")
	// ErrNoCookies means the -b cookie argument was absent or held no usable pairs
	ErrNoCookies = errors.New("no cookies found")
	// ErrSessionKeyMissing means cookies were found but none was named sessionKey
	ErrSessionKeyMissing = errors.New("sessionKey missing")
)

// ParseError reports command text that cannot produce a valid credential bundle.
// The message is user-correctable and shown verbatim in the settings UI.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
