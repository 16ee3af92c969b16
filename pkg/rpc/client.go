// Package rpc is the HTTP/JSON client used for service-to-service calls.
// Responses are result envelopes; callers only ever see the unwrapped
// payload, a *errs.RemoteError, or a *TransportError.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	log "github.com/Goden-Gun/ezadmin/pkg/logger"
	"github.com/Goden-Gun/ezadmin/pkg/tracing"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 30 * time.Second
	DefaultMaxAttempts    = 3

	maxBodyBytes = 4 << 20
)

// Options configures a Client. Both timeouts are always applied; zero values
// take the defaults.
type Options struct {
	// Service names the remote in logs and spans.
	Service        string
	BaseURL        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// MaxAttempts bounds RetryGet.
	MaxAttempts uint
	// RetryInitialInterval is the first RetryGet backoff step.
	RetryInitialInterval time.Duration
}

func (o *Options) applyDefaults() {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RetryInitialInterval <= 0 {
		o.RetryInitialInterval = 100 * time.Millisecond
	}
	if o.Service == "" {
		o.Service = "remote"
	}
}

// Client issues envelope calls against one remote service.
type Client struct {
	opts   Options
	base   string
	http   *http.Client
	tracer trace.Tracer
}

// New builds a client with its own transport so connect and read timeouts
// are enforced independently.
func New(opts Options) *Client {
	opts.applyDefaults()
	dialer := &net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Client{
		opts: opts,
		base: strings.TrimRight(opts.BaseURL, "/"),
		http: &http.Client{
			Transport: transport,
			Timeout:   opts.ConnectTimeout + opts.ReadTimeout,
		},
		tracer: tracing.Tracer("ezadmin/rpc"),
	}
}

// Service returns the configured remote name.
func (c *Client) Service() string { return c.opts.Service }

// Do performs one call and returns the raw status and body. Context
// cancellation by the caller is returned as the context error, not as a
// TransportError, so fallbacks can tell the two apart.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (int, []byte, error) {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	ctx, span := c.tracer.Start(ctx, c.opts.Service+" "+method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("http.url", target))

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("rpc: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("rpc: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tracing.InjectHTTP(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return 0, nil, c.classify(ctx, method, target, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		span.RecordError(err)
		return resp.StatusCode, nil, c.classify(ctx, method, target, err)
	}
	return resp.StatusCode, raw, nil
}

func (c *Client) classify(ctx context.Context, method, target string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("rpc %s %s: %w", method, target, ctx.Err())
	}
	kind := KindNetwork
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = KindTimeout
	}
	return &TransportError{Kind: kind, Method: method, URL: target, Err: err}
}

// Get calls GET path and decodes the payload.
func Get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	return call[T](ctx, c, http.MethodGet, path, query, nil)
}

// Post calls POST path with a JSON body and decodes the payload.
func Post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return call[T](ctx, c, http.MethodPost, path, nil, body)
}

// Put calls PUT path with a JSON body and expects no payload.
func Put(ctx context.Context, c *Client, path string, body any) error {
	return callVoid(ctx, c, http.MethodPut, path, body)
}

// PostVoid calls POST path and expects no payload.
func PostVoid(ctx context.Context, c *Client, path string, body any) error {
	return callVoid(ctx, c, http.MethodPost, path, body)
}

// RetryGet is Get for idempotent reads: retryable transport failures are
// retried with exponential backoff up to MaxAttempts. Business errors and
// 4xx statuses return at once.
func RetryGet[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.RetryInitialInterval
	bo.MaxInterval = c.opts.ReadTimeout

	op := func() (T, error) {
		v, err := Get[T](ctx, c, path, query)
		if err == nil {
			return v, nil
		}
		var te *TransportError
		if errors.As(err, &te) && te.Retryable() {
			return v, err
		}
		return v, backoff.Permanent(err)
	}
	notify := func(err error, next time.Duration) {
		log.WithTrace(ctx).WithError(err).WithFields(log.Fields{
			"service": c.opts.Service,
			"path":    path,
			"retry":   next.String(),
		}).Warn("rpc: retrying idempotent call")
	}
	v, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.opts.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return v, err
}

func call[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) (T, error) {
	status, raw, err := c.Do(ctx, method, path, query, body)
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := Decode[T](status, raw)
	return v, c.annotate(method, path, err)
}

func callVoid(ctx context.Context, c *Client, method, path string, body any) error {
	status, raw, err := c.Do(ctx, method, path, nil, body)
	if err != nil {
		return err
	}
	return c.annotate(method, path, DecodeVoid(status, raw))
}

func (c *Client) annotate(method, path string, err error) error {
	var te *TransportError
	if errors.As(err, &te) && te.URL == "" {
		te.Method = method
		te.URL = c.base + path
	}
	return err
}
