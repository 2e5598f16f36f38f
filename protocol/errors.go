package protocol

import "fmt"

// RangeError reports a numeric value that cannot be represented on the
// wire without loss: integers outside the 64-bit signed range, non-finite
// doubles, and tagged numbers that overflow their declared width.
type RangeError struct {
	Message string
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	return "range error: " + e.Message
}

// DecodeError reports a malformed tagged value encountered while decoding
// a wire payload. Malformed tags fail loudly rather than falling back to
// the raw string.
type DecodeError struct {
	Tag     string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("decode %s: %s", e.Tag, e.Message)
	}
	return "decode: " + e.Message
}

// Unwrap returns the underlying cause error.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// UnsupportedTypeError reports a Go value with no tagged representation.
type UnsupportedTypeError struct {
	GoType string
}

// Error implements the error interface.
func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("cannot encode value of type %s", e.GoType)
}
