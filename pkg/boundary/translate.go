// Package boundary converts every error that reaches a service edge into a
// result envelope. It is the only place where errors become envelopes.
package boundary

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/eapache/go-resiliency/breaker"

	"github.com/Goden-Gun/ezadmin/pkg/codes"
	"github.com/Goden-Gun/ezadmin/pkg/envelope"
	"github.com/Goden-Gun/ezadmin/pkg/errs"
	log "github.com/Goden-Gun/ezadmin/pkg/logger"
	"github.com/Goden-Gun/ezadmin/pkg/rpc"
	"github.com/Goden-Gun/ezadmin/pkg/tracing"
)

// SanitizedMessage replaces the detail of unexpected errors sent to callers.
const SanitizedMessage = "internal server error"

// Kind tags the error families the translator handles.
type Kind int

const (
	KindUnknown Kind = iota
	KindBusiness
	KindRemote
	KindValidation
	KindMethodNotAllowed
	KindMediaType
	KindRouteNotFound
	KindTransport
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindBusiness:
		return "business"
	case KindRemote:
		return "remote"
	case KindValidation:
		return "validation"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindMediaType:
		return "media_type"
	case KindRouteNotFound:
		return "route_not_found"
	case KindTransport:
		return "transport"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// RouteNotFoundError is raised when no route matches the request path.
type RouteNotFoundError struct {
	Method string
	Path   string
}

func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route for %s %s", e.Method, e.Path)
}

// MethodNotAllowedError is raised when the path exists under other methods.
type MethodNotAllowedError struct {
	Method string
	Path   string
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("method %s not supported on %s", e.Method, e.Path)
}

// MediaTypeError is raised for bodies that are not application/json.
type MediaTypeError struct {
	ContentType string
}

func (e *MediaTypeError) Error() string {
	return fmt.Sprintf("media type %q not supported", e.ContentType)
}

// Classify tags err. Typed errors win over the context/transport errors they
// may wrap.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		ve  *errs.ValidationError
		be  *errs.Error
		re  *errs.RemoteError
		rnf *RouteNotFoundError
		mna *MethodNotAllowedError
		mte *MediaTypeError
		te  *rpc.TransportError
		ne  net.Error
	)
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &be):
		return KindBusiness
	case errors.As(err, &re):
		return KindRemote
	case errors.As(err, &rnf):
		return KindRouteNotFound
	case errors.As(err, &mna):
		return KindMethodNotAllowed
	case errors.As(err, &mte):
		return KindMediaType
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &te),
		errors.Is(err, breaker.ErrBreakerOpen),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &ne):
		return KindTransport
	default:
		return KindUnknown
	}
}

// Translate maps err to a failure envelope and logs it at the level its
// family calls for. It never panics.
func Translate(ctx context.Context, err error, uri string) (res envelope.Result[any]) {
	defer func() {
		if rec := recover(); rec != nil {
			log.WithTrace(ctx).WithFields(log.Fields{"uri": uri, "panic": rec}).Error("boundary: translate panicked")
			res = envelope.FailWithMessage[any](codes.ErrInternal, SanitizedMessage)
		}
		res = res.WithTraceID(tracing.RequestIDFrom(ctx))
	}()

	entry := log.WithTrace(ctx).WithField("uri", uri)
	switch Classify(err) {
	case KindBusiness:
		var be *errs.Error
		errors.As(err, &be)
		logCoded(entry, be.Code(), be.NeedsAlert(), err)
		return envelope.FailWithMessage[any](be.ErrorCode(), be.Message())
	case KindRemote:
		var re *errs.RemoteError
		errors.As(err, &re)
		logCoded(entry, re.Code, re.NeedsAlert(), err)
		return envelope.FailCode[any](re.Code, re.Message)
	case KindValidation:
		var ve *errs.ValidationError
		errors.As(err, &ve)
		entry.WithField("fields", ve.Messages()).Debug("validation failed")
		return envelope.FailWithMessage[any](codes.ErrValidation, ve.Error())
	case KindMethodNotAllowed:
		entry.WithError(err).Debug("method not allowed")
		return envelope.Fail[any](codes.ErrMethodNotSupported)
	case KindMediaType:
		entry.WithError(err).Debug("unsupported media type")
		return envelope.Fail[any](codes.ErrMediaTypeUnsupported)
	case KindRouteNotFound:
		entry.WithError(err).Debug("route not found")
		return envelope.Fail[any](codes.ErrRouteNotFound)
	case KindCanceled:
		entry.WithError(err).Debug("request canceled by caller")
		return envelope.Fail[any](codes.ErrSystemBusy)
	case KindTransport:
		code := codes.ErrServiceUnavailable
		if isTimeout(err) {
			code = codes.ErrThirdPartyTimeout
		}
		entry.WithError(err).WithFields(log.Fields{"code": code.Numeric, "alert": true}).Error("downstream unavailable")
		return envelope.Fail[any](code)
	default:
		entry.WithError(err).WithField("alert", true).Errorf("unhandled error: %+v", err)
		return envelope.FailWithMessage[any](codes.ErrInternal, SanitizedMessage)
	}
}

func logCoded(entry *log.Entry, code int, alert bool, err error) {
	entry = entry.WithError(err).WithField("code", code)
	if alert {
		entry.WithField("alert", true).Error("business error")
		return
	}
	entry.Info("business error")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te *rpc.TransportError
	if errors.As(err, &te) && te.Kind == rpc.KindTimeout {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
