package rpc

import (
	"fmt"
	"net/http"
)

// Kind tells transport failures apart.
type Kind int

const (
	// KindStatus: the remote answered with a status >= 400.
	KindStatus Kind = iota + 1
	// KindNetwork: the request never produced a response.
	KindNetwork
	// KindTimeout: connect or read deadline elapsed.
	KindTimeout
	// KindDecode: the body was not a valid envelope.
	KindDecode
	// KindEmpty: the remote returned no result where one was required.
	KindEmpty
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindDecode:
		return "decode"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// TransportError is a failure below the envelope layer. Fallbacks and the
// circuit breaker react to it; business errors never take this shape.
type TransportError struct {
	Kind       Kind
	Method     string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	target := e.URL
	if e.Method != "" {
		target = e.Method + " " + e.URL
	}
	switch {
	case e.Kind == KindStatus:
		return fmt.Sprintf("rpc %s: status %d %s", target, e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("rpc %s: %s: %v", target, e.Kind, e.Err)
	default:
		return fmt.Sprintf("rpc %s: %s", target, e.Kind)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether repeating an idempotent call could succeed.
// 4xx statuses are permanent.
func (e *TransportError) Retryable() bool {
	if e.Kind == KindStatus {
		return e.StatusCode >= 500
	}
	return true
}
