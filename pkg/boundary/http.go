package boundary

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Goden-Gun/ezadmin/pkg/envelope"
	log "github.com/Goden-Gun/ezadmin/pkg/logger"
	"github.com/Goden-Gun/ezadmin/pkg/tracing"
)

// Handler is an endpoint that returns its payload or an error; Wrap turns
// either into an envelope.
type Handler func(w http.ResponseWriter, r *http.Request) (any, error)

// StatusFor returns the HTTP status written for a failure kind. Business,
// validation and internal failures travel as 200 so that remote decoders
// treat any non-2xx status as a transport problem.
func StatusFor(k Kind) int {
	switch k {
	case KindRouteNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindMediaType:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusOK
	}
}

// Wrap adapts h to net/http.
func Wrap(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := h(w, r)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		res := envelope.OK(data).WithTraceID(tracing.RequestIDFrom(r.Context()))
		writeJSON(w, http.StatusOK, res)
	}
}

// WriteError translates err and writes the failure envelope.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	res := Translate(r.Context(), err, r.URL.Path)
	writeJSON(w, StatusFor(Classify(err)), res)
}

// NotFound is installed as the router's not-found handler.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, &RouteNotFoundError{Method: r.Method, Path: r.URL.Path})
}

// MethodNotAllowed is installed as the router's 405 handler.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, &MethodNotAllowedError{Method: r.Method, Path: r.URL.Path})
}

// RequestID propagates X-Request-Id and W3C trace context, generating an id
// when the caller sent none.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := tracing.ExtractHTTP(r.Context(), r.Header)
		id := tracing.RequestIDFrom(ctx)
		if id == "" {
			id = envelope.NewTraceID()
			ctx = tracing.WithRequestID(ctx, id)
		}
		w.Header().Set(tracing.HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Recoverer turns handler panics into the sanitized internal-error envelope.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				WriteError(w, r, fmt.Errorf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Install wires the envelope middlewares and fallback handlers into r.
// Call it before registering routes.
func Install(r chi.Router) {
	r.Use(RequestID, Recoverer)
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)
}

// BindJSON enforces application/json, decodes the body into dst and
// validates it.
func BindJSON(r *http.Request, dst any) error {
	ct := r.Header.Get("Content-Type")
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil || mt != "application/json" {
		return &MediaTypeError{ContentType: ct}
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return malformedBody(err)
	}
	return Validate(dst)
}

func writeJSON(w http.ResponseWriter, status int, res envelope.Result[any]) {
	w.Header().Set("Content-Type", "application/json")
	if id := res.TraceID(); id != "" && w.Header().Get(tracing.HeaderRequestID) == "" {
		w.Header().Set(tracing.HeaderRequestID, id)
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.WithError(err).Warn("boundary: write response failed")
	}
}
