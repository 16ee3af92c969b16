// Package envelope defines the uniform result wrapper returned by every
// service boundary.
package envelope

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Goden-Gun/ezadmin/pkg/codes"
)

// SuccessMessage is the default message of a successful result.
const SuccessMessage = "success"

// Result is the success/failure envelope. Fields are unexported so that the
// factories below stay the only way to build one.
type Result[T any] struct {
	success   bool
	code      int
	message   string
	data      T
	timestamp int64
	traceID   string
}

// wire is the JSON shape shared by every service.
type wire[T any] struct {
	Success   bool   `json:"success"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      T      `json:"data"`
	Timestamp int64  `json:"timestamp"`
	TraceID   string `json:"traceId"`
}

func newResult[T any](code int, message string, data T) Result[T] {
	return Result[T]{
		success:   code == codes.SuccessCode,
		code:      code,
		message:   message,
		data:      data,
		timestamp: time.Now().UnixMilli(),
		traceID:   NewTraceID(),
	}
}

// NewTraceID returns a 16 hex char opaque id.
func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// OK wraps data in a success result.
func OK[T any](data T) Result[T] {
	return newResult(codes.SuccessCode, SuccessMessage, data)
}

// OKWithMessage wraps data in a success result with a custom message.
func OKWithMessage[T any](message string, data T) Result[T] {
	return newResult(codes.SuccessCode, message, data)
}

// Fail builds a failure result from a registered code.
func Fail[T any](code codes.ErrorCode) Result[T] {
	return FailCode[T](code.Numeric, code.Message)
}

// FailWithMessage builds a failure result with an overriding message.
func FailWithMessage[T any](code codes.ErrorCode, message string) Result[T] {
	return FailCode[T](code.Numeric, message)
}

// FailCode builds a failure result from a raw numeric code. A failure can
// never carry SuccessCode; it is coerced to the internal-error code.
func FailCode[T any](code int, message string) Result[T] {
	if code == codes.SuccessCode {
		code = codes.ErrInternal.Numeric
	}
	if message == "" {
		message = codes.MessageOf(code)
	}
	var zero T
	return newResult(code, message, zero)
}

// FailDefault builds a failure with the generic internal-error code.
func FailDefault[T any](message string) Result[T] {
	return FailCode[T](codes.ErrInternal.Numeric, message)
}

func (r Result[T]) Success() bool    { return r.success }
func (r Result[T]) Code() int        { return r.code }
func (r Result[T]) Message() string  { return r.message }
func (r Result[T]) Data() T          { return r.data }
func (r Result[T]) Timestamp() int64 { return r.timestamp }
func (r Result[T]) TraceID() string  { return r.traceID }

// WithTraceID returns a copy stamped with an inbound trace id.
func (r Result[T]) WithTraceID(traceID string) Result[T] {
	if traceID == "" {
		return r
	}
	r.traceID = traceID
	return r
}

// Erase converts the payload to any, for writers that do not know T.
func (r Result[T]) Erase() Result[any] {
	return Result[any]{
		success:   r.success,
		code:      r.code,
		message:   r.message,
		data:      r.data,
		timestamp: r.timestamp,
		traceID:   r.traceID,
	}
}

// MarshalJSON writes data as null on failure, whatever T is.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if !r.success {
		return json.Marshal(wire[any]{
			Success:   false,
			Code:      r.code,
			Message:   r.message,
			Timestamp: r.timestamp,
			TraceID:   r.traceID,
		})
	}
	return json.Marshal(wire[T]{
		Success:   r.success,
		Code:      r.code,
		Message:   r.message,
		Data:      r.data,
		Timestamp: r.timestamp,
		TraceID:   r.traceID,
	})
}

func (r *Result[T]) UnmarshalJSON(b []byte) error {
	var w wire[T]
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = Result[T]{
		success:   w.Success,
		code:      w.Code,
		message:   w.Message,
		data:      w.Data,
		timestamp: w.Timestamp,
		traceID:   w.TraceID,
	}
	return nil
}
