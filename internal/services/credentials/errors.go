package credentials

import "errors"

// ErrConfigMissing means no credentials have been saved yet; the UI should open settings
var ErrConfigMissing = errors.New("credentials not configured: paste a curl command in settings")

// IOError reports a failure persisting the credentials file
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}
