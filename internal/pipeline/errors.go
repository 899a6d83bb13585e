package pipeline

import (
	"errors"
	"fmt"
)

// ErrSuffixMismatch is reported for paths that do not carry the image suffix.
var ErrSuffixMismatch = errors.New("file does not have the image suffix")

// DecodeError reports an image that could not be read or decoded.
type DecodeError struct {
	Image string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Image, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IntegrateError reports a decoded image the integrator rejected, for
// example because its shape does not match the mask.
type IntegrateError struct {
	Image string
	Err   error
}

func (e *IntegrateError) Error() string {
	return fmt.Sprintf("integrating %s: %v", e.Image, e.Err)
}

func (e *IntegrateError) Unwrap() error { return e.Err }

// WriteError reports a pattern file that could not be written.
type WriteError struct {
	Pattern string
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Pattern, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
