package systemapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eapache/go-resiliency/breaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Goden-Gun/ezadmin/pkg/codes"
	"github.com/Goden-Gun/ezadmin/pkg/errs"
	"github.com/Goden-Gun/ezadmin/pkg/rpc"
)

type stubClient struct {
	calls int32
	err   error
	perms []RolePermission
}

func (s *stubClient) AuthenticateUser(ctx context.Context, req AuthenticateRequest) (*UserAuthentication, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return &UserAuthentication{UserID: 1, Username: req.Username, Status: StatusActive}, nil
}

func (s *stubClient) GetAllRolePermissions(ctx context.Context) ([]RolePermission, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.perms, s.err
}

func (s *stubClient) GetUserRoles(ctx context.Context, userID int64) (*UserRoles, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return &UserRoles{UserID: userID, RoleIDs: []int64{1}, RoleLabels: []string{"admin"}}, nil
}

var outage = &rpc.TransportError{Kind: rpc.KindNetwork, Err: errors.New("connection refused")}

func TestFallbackOnTransportFailure(t *testing.T) {
	c := NewResilientClient(&stubClient{err: outage}, Fallback, nil)
	ctx := context.Background()

	perms, err := c.GetAllRolePermissions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, perms)
	assert.Empty(t, perms)

	roles, err := c.GetUserRoles(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), roles.UserID)
	assert.Empty(t, roles.RoleIDs)
	assert.Empty(t, roles.RoleLabels)
	assert.True(t, roles.Degraded)

	_, err = c.AuthenticateUser(ctx, AuthenticateRequest{Username: "admin", Password: "x"})
	assert.ErrorIs(t, err, errs.ErrServiceUnavailable)
	assert.ErrorIs(t, err, outage)
}

func TestBusinessErrorBypassesFallbackAndBreaker(t *testing.T) {
	remote := &errs.RemoteError{Code: codes.ErrBadCredentials.Numeric, Message: "invalid username or password"}
	stub := &stubClient{err: remote}
	c := NewResilientClient(stub, Fallback, NewBreaker(BreakerOptions{ErrorThreshold: 1, Timeout: time.Minute}))

	for i := 0; i < 3; i++ {
		_, err := c.AuthenticateUser(context.Background(), AuthenticateRequest{Username: "admin"})
		var re *errs.RemoteError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, codes.ErrBadCredentials.Numeric, re.Code)
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&stub.calls))
}

func TestBreakerOpensAfterTransportFailures(t *testing.T) {
	stub := &stubClient{err: outage}
	c := NewResilientClient(stub, Fallback, NewBreaker(BreakerOptions{ErrorThreshold: 2, Timeout: time.Minute}))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := c.GetAllRolePermissions(ctx)
		require.NoError(t, err)
	}
	// the open circuit short-circuits the primary
	assert.EqualValues(t, 2, atomic.LoadInt32(&stub.calls))
}

func TestCanceledCallerGetsNoFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var fallbackUsed bool
	factory := func(cause error) Client {
		fallbackUsed = true
		return Fallback(cause)
	}
	c := NewResilientClient(&stubClient{err: outage}, factory, nil)

	_, err := c.GetAllRolePermissions(ctx)
	require.Error(t, err)
	assert.False(t, fallbackUsed)

	c = NewResilientClient(&stubClient{err: context.Canceled}, factory, nil)
	_, err = c.GetAllRolePermissions(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, fallbackUsed)
}

func TestIsTransportFailure(t *testing.T) {
	assert.True(t, IsTransportFailure(outage))
	assert.True(t, IsTransportFailure(breaker.ErrBreakerOpen))
	assert.True(t, IsTransportFailure(context.DeadlineExceeded))
	assert.False(t, IsTransportFailure(&errs.RemoteError{Code: 1100002}))
	assert.False(t, IsTransportFailure(context.Canceled))
	assert.False(t, IsTransportFailure(nil))
}

func TestHTTPClientAgainstServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(PathUserRoles, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("userId"))
		_, _ = w.Write([]byte(`{"success":true,"code":200,"message":"success","data":{"userId":5,"roleIds":[1,2],"roleLabels":["admin","ops"]}}`))
	})
	mux.HandleFunc(PathAuthenticate, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"code":1100002,"message":"invalid username or password","data":null}`))
	})
	mux.HandleFunc(PathAllRolePermissions, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	hc := NewHTTPClient(rpc.New(rpc.Options{BaseURL: srv.URL, MaxAttempts: 1}))
	c := NewResilientClient(hc, Fallback, nil)
	ctx := context.Background()

	roles, err := c.GetUserRoles(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, roles.RoleIDs)

	_, err = c.AuthenticateUser(ctx, AuthenticateRequest{Username: "admin", Password: "bad"})
	assert.True(t, errs.Is(err, codes.ErrBadCredentials))

	perms, err := c.GetAllRolePermissions(ctx)
	require.NoError(t, err)
	assert.Empty(t, perms)
}
