// Package domainerrors defines the coded error vocabulary shared by every
// layer. Services wrap infrastructure errors with a code, transports map
// codes onto wire-level error shapes, and callers branch on codes with
// HasCode instead of matching message strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers and transports.
type Code string

const (
	// CodeValidation marks malformed or missing caller input. Never retried.
	CodeValidation Code = "validation_error"
	// CodeAccessDenied marks a trust-gate rejection. Never retried, never
	// reveals what data exists.
	CodeAccessDenied Code = "access_denied"
	// CodeNotFound marks a missing entity.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a state conflict (e.g. invalid status transition).
	CodeConflict Code = "conflict"
	// CodeUnavailable marks a remote endpoint that stayed unreachable after
	// the retry budget was spent.
	CodeUnavailable Code = "unavailable"
	// CodeProtocol marks a malformed remote response.
	CodeProtocol Code = "protocol_error"
	// CodeStorage marks a state-store write the backend rejected.
	CodeStorage Code = "storage_error"
	// CodeTimeout marks a deadline expiry.
	CodeTimeout Code = "timeout"
	// CodeInternal marks everything the caller cannot act on.
	CodeInternal Code = "internal_error"
)

// Error couples a code with a human-readable message and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err
// returns nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
	}
	return false
}

// CodeOf extracts the outermost code, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the outermost coded message, or err.Error() for
// uncoded errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// ToHTTPStatus maps a code to the HTTP status a JSON transport should use.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeAccessDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeProtocol:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
