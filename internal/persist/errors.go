package persist

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes persistence errors.
type ErrorCode string

const (
	// ErrCodeLoadFailed indicates the backend could not be read.
	ErrCodeLoadFailed ErrorCode = "LOAD_FAILED"

	// ErrCodeSaveFailed indicates the backend could not be written.
	ErrCodeSaveFailed ErrorCode = "SAVE_FAILED"

	// ErrCodeDecodeFailed indicates stored data could not be turned back
	// into content.
	ErrCodeDecodeFailed ErrorCode = "DECODE_FAILED"

	// ErrCodeClosed indicates the Persister or backend was already closed.
	ErrCodeClosed ErrorCode = "CLOSED"
)

// Error is returned by Persister and backend operations.
type Error struct {
	Code    ErrorCode
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (backend=%s)", e.Code, e.Backend)
	}
	return fmt.Sprintf("%s: %v (backend=%s)", e.Code, e.Err, e.Backend)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, backend string, err error) *Error {
	return &Error{Code: code, Backend: backend, Err: err}
}

// IsCode reports whether err is, or wraps, an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsClosed reports whether err was caused by using a closed Persister or
// backend.
func IsClosed(err error) bool {
	return IsCode(err, ErrCodeClosed)
}

var errNotWatcher = errors.New("backend does not support watching")

// wrapError keeps an *Error from a backend as is and wraps anything else.
func wrapError(code ErrorCode, backend string, err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	return newError(code, backend, err)
}
