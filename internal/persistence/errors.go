package persistence

import (
	"errors"
	"fmt"
)

// ErrMalformedDocument is wrapped by LoadError when a document exists but is
// not a JSON array of appointment objects.
var ErrMalformedDocument = errors.New("persistence: malformed appointments document")

// LoadError reports a document that could not be read or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("persistence: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SaveError reports a document that could not be written.
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("persistence: save %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
