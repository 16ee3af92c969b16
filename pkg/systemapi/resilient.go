package systemapi

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/eapache/go-resiliency/breaker"

	"github.com/Goden-Gun/ezadmin/pkg/rpc"
)

// BreakerOptions tunes the circuit around system-service calls.
type BreakerOptions struct {
	// ErrorThreshold transport failures open the circuit.
	ErrorThreshold int
	// SuccessThreshold half-open successes close it again.
	SuccessThreshold int
	// Timeout is how long the circuit stays open.
	Timeout time.Duration
}

func NewBreaker(o BreakerOptions) *breaker.Breaker {
	if o.ErrorThreshold <= 0 {
		o.ErrorThreshold = 5
	}
	if o.SuccessThreshold <= 0 {
		o.SuccessThreshold = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	return breaker.New(o.ErrorThreshold, o.SuccessThreshold, o.Timeout)
}

// FallbackFactory builds the degraded client for a given cause.
type FallbackFactory func(cause error) Client

// ResilientClient routes calls through a circuit breaker and switches to the
// fallback only when the transport failed. Business errors pass through
// untouched and never count against the breaker.
type ResilientClient struct {
	primary  Client
	fallback FallbackFactory
	breaker  *breaker.Breaker
}

func NewResilientClient(primary Client, fallback FallbackFactory, b *breaker.Breaker) *ResilientClient {
	if fallback == nil {
		fallback = Fallback
	}
	if b == nil {
		b = NewBreaker(BreakerOptions{})
	}
	return &ResilientClient{primary: primary, fallback: fallback, breaker: b}
}

func (c *ResilientClient) AuthenticateUser(ctx context.Context, req AuthenticateRequest) (*UserAuthentication, error) {
	return dispatch(ctx, c,
		func(cl Client) (*UserAuthentication, error) { return cl.AuthenticateUser(ctx, req) })
}

func (c *ResilientClient) GetAllRolePermissions(ctx context.Context) ([]RolePermission, error) {
	return dispatch(ctx, c,
		func(cl Client) ([]RolePermission, error) { return cl.GetAllRolePermissions(ctx) })
}

func (c *ResilientClient) GetUserRoles(ctx context.Context, userID int64) (*UserRoles, error) {
	return dispatch(ctx, c,
		func(cl Client) (*UserRoles, error) { return cl.GetUserRoles(ctx, userID) })
}

func dispatch[T any](ctx context.Context, c *ResilientClient, call func(Client) (T, error)) (T, error) {
	var (
		out     T
		passErr error
	)
	err := c.breaker.Run(func() error {
		v, err := call(c.primary)
		if err != nil && !IsTransportFailure(err) {
			passErr = err
			return nil
		}
		out = v
		return err
	})
	if passErr != nil {
		var zero T
		return zero, passErr
	}
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		// the caller is gone; a fallback value would be discarded
		var zero T
		return zero, err
	}
	return call(c.fallback(err))
}

// IsTransportFailure reports whether err means the call itself could not be
// completed, as opposed to a decoded business failure.
func IsTransportFailure(err error) bool {
	if err == nil {
		return false
	}
	var te *rpc.TransportError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, breaker.ErrBreakerOpen) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
