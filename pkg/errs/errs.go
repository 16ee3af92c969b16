// Package errs holds the typed errors raised by ez-admin services.
//
// Business code raises *Error carrying a registered code; failures decoded
// from a remote envelope surface as *RemoteError; request binding failures
// surface as *ValidationError. Only the boundary layer turns them into
// envelopes.
package errs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Goden-Gun/ezadmin/pkg/codes"
)

// Error is a business error tagged with a registered code.
type Error struct {
	code    codes.ErrorCode
	message string
	cause   error
}

// New creates an error that uses the code's default message.
func New(code codes.ErrorCode) *Error {
	return &Error{code: code, message: code.Message}
}

// Newf creates an error with a formatted message.
func Newf(code codes.ErrorCode, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// WithMessage creates an error with an overriding message.
func WithMessage(code codes.ErrorCode, msg string) *Error {
	if msg == "" {
		msg = code.Message
	}
	return &Error{code: code, message: msg}
}

// Wrap attaches cause to a coded error.
func Wrap(code codes.ErrorCode, cause error) *Error {
	return &Error{code: code, message: code.Message, cause: cause}
}

// Wrapf attaches cause with a formatted message.
func Wrapf(code codes.ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...), cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%d: %s (%v)", e.code.Numeric, e.message, e.cause)
	}
	return fmt.Sprintf("%d: %s", e.code.Numeric, e.message)
}

func (e *Error) Unwrap() error              { return e.cause }
func (e *Error) Code() int                  { return e.code.Numeric }
func (e *Error) ErrorCode() codes.ErrorCode { return e.code }
func (e *Error) Message() string            { return e.message }
func (e *Error) NeedsAlert() bool           { return e.code.NeedsAlert() }
func (e *Error) Severity() codes.Severity   { return e.code.Severity() }

// Is matches another *Error by numeric code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.code.Numeric == e.code.Numeric
	}
	return false
}

// RemoteError is a business failure reported by a remote service envelope.
// Code and message are carried verbatim.
type RemoteError struct {
	Code    int
	Message string
	TraceID string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// Retryable is always false: the remote already processed the request.
func (e *RemoteError) Retryable() bool { return false }

func (e *RemoteError) Severity() codes.Severity { return codes.SeverityOf(e.Code) }

func (e *RemoteError) NeedsAlert() bool {
	s := e.Severity()
	return s == codes.SeverityServer || s == codes.SeverityThirdParty
}

// FieldError is a single rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates per-field violations.
type ValidationError struct {
	Fields []FieldError
}

// NewValidation builds a single-message validation error.
func NewValidation(field, msg string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: msg}}}
}

func (e *ValidationError) Messages() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Message)
	}
	return out
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return codes.ErrValidation.Message
	}
	return strings.Join(e.Messages(), "; ")
}

// Sentinels shared across services. Compare with errors.Is or Is.
var (
	ErrServiceUnavailable  = New(codes.ErrServiceUnavailable)
	ErrNotLoggedIn         = New(codes.ErrUnauthorized)
	ErrBadCredentials      = New(codes.ErrBadCredentials)
	ErrUserDisabled        = New(codes.ErrUserDisabled)
	ErrInvalidRefreshToken = New(codes.ErrInvalidRefreshToken)
	ErrTokenInvalid        = New(codes.ErrTokenInvalid)
	ErrTokenExpired        = New(codes.ErrTokenExpired)
	ErrTokenMissing        = New(codes.ErrTokenMissing)
	ErrPermissionDenied    = New(codes.ErrPermissionDenied)
)

// CodeOf returns the numeric code carried by err, or the internal-error code.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return codes.ErrValidation.Numeric
	}
	return codes.ErrInternal.Numeric
}

// Is reports whether err carries code, locally raised or remote.
func Is(err error, code codes.ErrorCode) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code.Numeric && (asError(err) || asRemote(err) || asValidation(err))
}

func asError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

func asRemote(err error) bool {
	var e *RemoteError
	return errors.As(err, &e)
}

func asValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}
