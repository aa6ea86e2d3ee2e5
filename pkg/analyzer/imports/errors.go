package imports

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation is wrapped by every InvariantError.
var ErrInvariantViolation = errors.New("invariant violation")

// InvariantError reports an internal inconsistency in the analysis of one
// file. The file is left untouched; other files are unaffected.
type InvariantError struct {
	Path   string
	Detail string
}

func (e *InvariantError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrInvariantViolation, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, ErrInvariantViolation, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

// withPath attaches a file path to an invariant error.
func withPath(err error, path string) error {
	var ie *InvariantError
	if errors.As(err, &ie) && ie.Path == "" {
		ie.Path = path
	}
	return err
}
