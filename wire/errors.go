package wire

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel causes carried by EncodeError and DecodeError; match them with errors.Is.
var (
	ErrUnexpectedEOF      = errors.New("unexpected EOF")
	ErrVarintTooLong      = errors.New("varint too long")
	ErrOutOfRange         = errors.New("value out of range")
	ErrInvalidWireType    = errors.New("invalid wire type")
	ErrInvalidFieldNumber = errors.New("invalid field number")
	ErrNegativeSize       = errors.New("negative size")
	ErrGroupMismatch      = errors.New("group end tag mismatch")
	ErrLengthMismatch     = errors.New("message length mismatch")
	ErrUnexpectedEndGroup = errors.New("unexpected end-group tag")
	ErrRecursionLimit     = errors.New("recursion limit exceeded")
	ErrMissingRequired    = errors.New("missing required fields")
)

// EncodeError reports a value that cannot be serialized.
type EncodeError struct {
	Msg string
	Err error
}

func (e *EncodeError) Error() string { return e.Msg }

// Unwrap returns the sentinel cause.
func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports malformed wire data.
type DecodeError struct {
	Msg string
	Err error
}

func (e *DecodeError) Error() string { return e.Msg }

// Unwrap returns the sentinel cause.
func (e *DecodeError) Unwrap() error { return e.Err }

func encodeErrorf(cause error, format string, args ...interface{}) *EncodeError {
	return &EncodeError{Msg: fmt.Sprintf(format, args...), Err: cause}
}

func decodeErrorf(cause error, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Msg: fmt.Sprintf(format, args...), Err: cause}
}

// NewEncodeError builds an EncodeError for callers outside this package.
func NewEncodeError(cause error, format string, args ...interface{}) error {
	return encodeErrorf(cause, format, args...)
}

// NewDecodeError builds a DecodeError for callers outside this package.
func NewDecodeError(cause error, format string, args ...interface{}) error {
	return decodeErrorf(cause, format, args...)
}

// IsDecodeError reports whether err is, or wraps, a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsEncodeError reports whether err is, or wraps, an EncodeError.
func IsEncodeError(err error) bool {
	var ee *EncodeError
	return errors.As(err, &ee)
}

// FieldError represents an encoding/decoding error with a field path.
type FieldError struct {
	FieldPath []string // e.g., ["field_args", "input", "target_location", "latitude"]
	Err       error    // underlying error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if len(e.FieldPath) == 0 {
		return e.Err.Error()
	}

	return fmt.Sprintf("error at proto path %s: %v", strings.Join(e.FieldPath, "."), e.Err)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for compatibility.
func (e *FieldError) Is(target error) bool {
	_, ok := target.(*FieldError)
	return ok
}

// WrapField prefixes the field path of err with fieldName, flattening nested FieldErrors.
func WrapField(err error, fieldName string) error {
	if err == nil {
		return nil
	}

	if fe, ok := err.(*FieldError); ok {
		return &FieldError{
			FieldPath: append([]string{fieldName}, fe.FieldPath...),
			Err:       fe.Err,
		}
	}

	return &FieldError{
		FieldPath: []string{fieldName},
		Err:       err,
	}
}
