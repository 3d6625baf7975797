package codec

import (
	"errors"
	"fmt"
)

// ErrMalformedPayload is the root of every decoding failure. Callers match it
// with errors.Is regardless of the concrete error type.
var ErrMalformedPayload = errors.New("malformed payload")

// LengthError reports a buffer whose size does not fit the expected layout.
type LengthError struct {
	Value string // decoded value name, e.g. "heart rate measurement"
	Want  string // human-readable expectation, e.g. "7 or 8"
	Got   int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("%s: %v: expected %s bytes, got %d", e.Value, ErrMalformedPayload, e.Want, e.Got)
}

func (e *LengthError) Unwrap() error { return ErrMalformedPayload }

// FieldError reports a field whose content is outside its valid range.
type FieldError struct {
	Value string
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v: %s: %s", e.Value, ErrMalformedPayload, e.Field, e.Msg)
}

func (e *FieldError) Unwrap() error { return ErrMalformedPayload }

func lengthError(value, want string, got int) error {
	return &LengthError{Value: value, Want: want, Got: got}
}

// need returns a LengthError when buf holds fewer than n bytes after offset.
func need(value string, buf []byte, offset, n int) error {
	if len(buf) < offset+n {
		return lengthError(value, fmt.Sprintf("at least %d", offset+n), len(buf))
	}
	return nil
}
