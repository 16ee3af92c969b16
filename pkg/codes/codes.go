// Package codes is the shared error-code catalogue used by every ez-admin service.
//
// Codes are 7 digits: the first digit is the severity (1 client, 2 server,
// 3 third party), digits 2-4 name the owning service and digits 5-7 the
// specific condition. Success is signalled by the flat SuccessCode.
package codes

import (
	"fmt"
	"sort"
)

// SuccessCode is the only code that marks an envelope as successful.
const SuccessCode = 200

// UnknownMessage is returned for codes missing from the registry.
const UnknownMessage = "unknown error"

// Severity classifies who caused an error.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityClient
	SeverityServer
	SeverityThirdParty
)

func (s Severity) String() string {
	switch s {
	case SeverityClient:
		return "client"
	case SeverityServer:
		return "server"
	case SeverityThirdParty:
		return "third_party"
	default:
		return "unknown"
	}
}

// Classify maps the leading digit of a code to its severity.
func Classify(digit int) Severity {
	switch digit {
	case 1:
		return SeverityClient
	case 2:
		return SeverityServer
	case 3:
		return SeverityThirdParty
	default:
		return SeverityUnknown
	}
}

// FirstDigit returns the most significant decimal digit of code.
func FirstDigit(code int) int {
	if code < 0 {
		code = -code
	}
	for code >= 10 {
		code /= 10
	}
	return code
}

// SeverityOf classifies an arbitrary numeric code.
func SeverityOf(code int) Severity {
	return Classify(FirstDigit(code))
}

// ErrorCode represents structured errors shared across services.
type ErrorCode struct {
	Numeric int
	Symbol  string
	Message string
}

// Severity is derived from the leading digit, never stored.
func (c ErrorCode) Severity() Severity { return SeverityOf(c.Numeric) }

// NeedsAlert reports whether server-side alerting should fire.
func (c ErrorCode) NeedsAlert() bool {
	s := c.Severity()
	return s == SeverityServer || s == SeverityThirdParty
}

// ServiceID returns digits 2-4 of a 7-digit code.
func (c ErrorCode) ServiceID() int { return (c.Numeric / 1000) % 1000 }

// Detail returns digits 5-7 of a 7-digit code.
func (c ErrorCode) Detail() int { return c.Numeric % 1000 }

func (c ErrorCode) String() string {
	return fmt.Sprintf("%d(%s)", c.Numeric, c.Symbol)
}

// Owning service identifiers (digits 2-4).
const (
	ServiceGlobal = 0
	ServiceIAM    = 100
	ServiceSystem = 200
	ServiceWechat = 900
	ServiceSMS    = 902
	ServiceOSS    = 903
)

var (
	// global client errors
	ErrBadRequest           = ErrorCode{Numeric: 1000001, Symbol: "BAD_REQUEST", Message: "bad request"}
	ErrValidation           = ErrorCode{Numeric: 1000002, Symbol: "PARAM_VALIDATION_ERROR", Message: "parameter validation failed"}
	ErrOperationUnsupported = ErrorCode{Numeric: 1000003, Symbol: "OPERATION_NOT_SUPPORTED", Message: "operation not supported"}
	ErrMethodNotSupported   = ErrorCode{Numeric: 1000004, Symbol: "METHOD_NOT_SUPPORTED", Message: "request method not supported"}
	ErrMediaTypeUnsupported = ErrorCode{Numeric: 1000005, Symbol: "MEDIA_TYPE_NOT_SUPPORTED", Message: "media type not supported"}
	ErrRouteNotFound        = ErrorCode{Numeric: 1000006, Symbol: "ROUTE_NOT_FOUND", Message: "route not found"}

	// authentication / authorization
	ErrUnauthorized     = ErrorCode{Numeric: 1000100, Symbol: "UNAUTHORIZED", Message: "not logged in"}
	ErrTokenInvalid     = ErrorCode{Numeric: 1000101, Symbol: "TOKEN_INVALID", Message: "token invalid"}
	ErrTokenExpired     = ErrorCode{Numeric: 1000102, Symbol: "TOKEN_EXPIRED", Message: "token expired"}
	ErrTokenMissing     = ErrorCode{Numeric: 1000103, Symbol: "TOKEN_MISSING", Message: "token missing"}
	ErrForbidden        = ErrorCode{Numeric: 1000104, Symbol: "FORBIDDEN", Message: "forbidden"}
	ErrPermissionDenied = ErrorCode{Numeric: 1000105, Symbol: "PERMISSION_DENIED", Message: "permission denied"}

	// global server errors
	ErrInternal           = ErrorCode{Numeric: 2000000, Symbol: "INTERNAL_ERROR", Message: "internal server error"}
	ErrSystemBusy         = ErrorCode{Numeric: 2000001, Symbol: "SYSTEM_BUSY", Message: "system busy, try again later"}
	ErrServiceUnavailable = ErrorCode{Numeric: 2000002, Symbol: "SERVICE_UNAVAILABLE", Message: "service temporarily unavailable"}
	ErrDatabase           = ErrorCode{Numeric: 2000003, Symbol: "DATABASE_ERROR", Message: "database operation failed"}
	ErrCache              = ErrorCode{Numeric: 2000004, Symbol: "CACHE_ERROR", Message: "cache operation failed"}

	// third party
	ErrThirdParty        = ErrorCode{Numeric: 3000000, Symbol: "THIRD_PARTY_SERVICE_ERROR", Message: "third-party service call failed"}
	ErrThirdPartyTimeout = ErrorCode{Numeric: 3000001, Symbol: "THIRD_PARTY_SERVICE_TIMEOUT", Message: "third-party service timed out"}

	// iam
	ErrUserNotFound        = ErrorCode{Numeric: 1100001, Symbol: "USER_NOT_FOUND", Message: "user not found"}
	ErrBadCredentials      = ErrorCode{Numeric: 1100002, Symbol: "USER_PASSWORD_ERROR", Message: "invalid username or password"}
	ErrUserDisabled        = ErrorCode{Numeric: 1100003, Symbol: "USER_DISABLED", Message: "user is disabled"}
	ErrInvalidRefreshToken = ErrorCode{Numeric: 1100010, Symbol: "REFRESH_TOKEN_INVALID", Message: "invalid refresh token"}

	// system
	ErrDataNotFound      = ErrorCode{Numeric: 1200001, Symbol: "DATA_NOT_FOUND", Message: "data not found"}
	ErrDataAlreadyExists = ErrorCode{Numeric: 1200002, Symbol: "DATA_ALREADY_EXISTS", Message: "data already exists"}
	ErrRoleHasUsers      = ErrorCode{Numeric: 1200201, Symbol: "ROLE_HAS_USERS", Message: "role still has users"}
)

var catalogue = []ErrorCode{
	ErrBadRequest,
	ErrValidation,
	ErrOperationUnsupported,
	ErrMethodNotSupported,
	ErrMediaTypeUnsupported,
	ErrRouteNotFound,
	ErrUnauthorized,
	ErrTokenInvalid,
	ErrTokenExpired,
	ErrTokenMissing,
	ErrForbidden,
	ErrPermissionDenied,
	ErrInternal,
	ErrSystemBusy,
	ErrServiceUnavailable,
	ErrDatabase,
	ErrCache,
	ErrThirdParty,
	ErrThirdPartyTimeout,
	ErrUserNotFound,
	ErrBadCredentials,
	ErrUserDisabled,
	ErrInvalidRefreshToken,
	ErrDataNotFound,
	ErrDataAlreadyExists,
	ErrRoleHasUsers,
}

// registry indexes the catalogue by numeric code; read it through Lookup or All.
var registry = buildRegistry(catalogue)

func buildRegistry(list []ErrorCode) map[int]ErrorCode {
	reg := make(map[int]ErrorCode, len(list))
	for _, c := range list {
		if _, dup := reg[c.Numeric]; dup {
			panic(fmt.Sprintf("codes: duplicate error code %d", c.Numeric))
		}
		reg[c.Numeric] = c
	}
	return reg
}

// Lookup returns the registered code, if any.
func Lookup(code int) (ErrorCode, bool) {
	c, ok := registry[code]
	return c, ok
}

// MessageOf returns the registered message or UnknownMessage.
func MessageOf(code int) string {
	if c, ok := registry[code]; ok {
		return c.Message
	}
	return UnknownMessage
}

// All returns the catalogue ordered by code.
func All() []ErrorCode {
	out := make([]ErrorCode, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Numeric < out[j].Numeric })
	return out
}
