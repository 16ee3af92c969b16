package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Goden-Gun/ezadmin/pkg/codes"
	"github.com/Goden-Gun/ezadmin/pkg/errs"
	"github.com/Goden-Gun/ezadmin/pkg/systemapi"
)

const testSecret = "test-secret-0123456789"

type stubUsers struct {
	users map[string]*systemapi.UserAuthentication
}

func (s *stubUsers) AuthenticateUser(_ context.Context, req systemapi.AuthenticateRequest) (*systemapi.UserAuthentication, error) {
	u, ok := s.users[req.Username]
	if !ok {
		return nil, &errs.RemoteError{Code: codes.ErrBadCredentials.Numeric, Message: codes.ErrBadCredentials.Message}
	}
	cp := *u
	return &cp, nil
}

func (s *stubUsers) GetAllRolePermissions(context.Context) ([]systemapi.RolePermission, error) {
	return nil, nil
}

func (s *stubUsers) GetUserRoles(_ context.Context, userID int64) (*systemapi.UserRoles, error) {
	return &systemapi.UserRoles{UserID: userID}, nil
}

type stubLoader struct {
	mu    sync.Mutex
	calls  []int64
	err    error
	onLoad func()
}

func (l *stubLoader) LoadUser(_ context.Context, userID int64) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, userID)
	if l.onLoad != nil {
		l.onLoad()
	}
	return nil, l.err
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	issuer  *Issuer
	mr      *miniredis.Miniredis
	refresh *RedisRefreshStore
	loader  *stubLoader
	clock   *fakeClock
}

func hash(t *testing.T, plain string) string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(b)
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	users := &stubUsers{users: map[string]*systemapi.UserAuthentication{
		"admin":  {UserID: 1, Username: "admin", Status: systemapi.StatusActive, Password: hash(t, "admin123")},
		"frozen": {UserID: 2, Username: "frozen", Status: 0, Password: hash(t, "frozen123")},
	}}
	h := &harness{
		mr:      mr,
		refresh: NewRedisRefreshStore(client, ""),
		loader:  &stubLoader{},
		clock:   &fakeClock{t: time.Now().Truncate(time.Second)},
	}
	if cfg.Secret == "" {
		cfg.Secret = testSecret
	}
	issuer, err := NewIssuer(cfg, Deps{
		Users:     users,
		Refresh:   h.refresh,
		Blocklist: NewRedisAccessBlocklist(client, ""),
		Versions:  NewRedisSessionVersionStore(client, ""),
		Loader:    h.loader,
		Now:       h.clock.Now,
	})
	require.NoError(t, err)
	h.issuer = issuer
	return h
}

func TestNewIssuerRequiresSecretAndStores(t *testing.T) {
	_, err := NewIssuer(Config{}, Deps{})
	assert.Error(t, err)
	_, err = NewIssuer(Config{Secret: testSecret}, Deps{})
	assert.Error(t, err)
}

func TestLoginIssuesBearerPair(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	pair, err := h.issuer.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(7200), pair.ExpiresIn)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	p, err := h.issuer.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.UserID)
	assert.Equal(t, "admin", p.Username)
	assert.Equal(t, h.clock.Now().Add(DefaultAccessTTL).Unix(), p.ExpiresAt.Unix())

	claims, err := ParseRefreshToken(pair.RefreshToken, h.issuer.Config(), h.clock.Now())
	require.NoError(t, err)
	rec, err := h.refresh.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, claims.ID, rec.JTI)
	assert.True(t, h.mr.Exists("auth:refresh:1"))

	assert.Equal(t, []int64{1}, h.loader.calls)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	for _, tc := range []struct{ name, user, pass string }{
		{"wrong password", "admin", "nope"},
		{"unknown user", "ghost", "admin123"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.issuer.Login(ctx, tc.user, tc.pass)
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrBadCredentials)
			var e *errs.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, codes.SeverityClient, e.Severity())
		})
	}
	assert.False(t, h.mr.Exists("auth:refresh:1"))
	assert.Empty(t, h.loader.calls)
}

func TestLoginRejectsDisabledUser(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.issuer.Login(context.Background(), "frozen", "frozen123")
	assert.ErrorIs(t, err, errs.ErrUserDisabled)
	assert.False(t, h.mr.Exists("auth:refresh:2"))
}

func TestLoginSurvivesWarmupFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.loader.err = errors.New("redis down")
	pair, err := h.issuer.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestLoginAbandonedRequestGetsNoToken(t *testing.T) {
	h := newHarness(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pair, err := h.issuer.Login(ctx, "admin", "admin123")
	assert.Nil(t, pair)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, h.mr.Exists("auth:refresh:1"))
}

func TestLoginCanceledDuringWarmupKeepsActiveSession(t *testing.T) {
	h := newHarness(t, Config{})
	first, err := h.issuer.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h.loader.onLoad = cancel
	pair, err := h.issuer.Login(ctx, "admin", "admin123")
	assert.Nil(t, pair)
	assert.ErrorIs(t, err, context.Canceled)

	h.loader.onLoad = nil
	h.clock.Advance(time.Second)
	_, err = h.issuer.Refresh(context.Background(), first.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshRotatesPair(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	first, err := h.issuer.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	second, err := h.issuer.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(7200), second.ExpiresIn)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	p, err := h.issuer.Verify(ctx, second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Username)
	assert.Equal(t, h.clock.Now().Add(DefaultAccessTTL).Unix(), p.ExpiresAt.Unix())

	claims, err := ParseRefreshToken(second.RefreshToken, h.issuer.Config(), h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, h.clock.Now().Add(DefaultRefreshTTL).Unix(), claims.ExpiresAt.Unix())

	_, err = h.issuer.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, errs.ErrInvalidRefreshToken)
}

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	h := newHarness(t, Config{})
	pair, err := h.issuer.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := h.issuer.Refresh(context.Background(), pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success, fail := 0, 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		require.ErrorIs(t, err, errs.ErrInvalidRefreshToken)
		fail++
	}
	assert.Equal(t, 1, success)
	assert.Equal(t, n-1, fail)
}

func TestRefreshRejectsMalformedTokens(t *testing.T) {
	h := newHarness(t, Config{})
	pair, err := h.issuer.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":      "not-a-jwt",
		"empty":        "",
		"access token": pair.AccessToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.issuer.Refresh(context.Background(), tok)
			assert.ErrorIs(t, err, errs.ErrInvalidRefreshToken)
		})
	}

	other := newHarness(t, Config{Secret: "another-secret-abcdef"})
	_, err = other.issuer.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, errs.ErrInvalidRefreshToken)
}

func TestRefreshNeverExtendsSessionLifetime(t *testing.T) {
	h := newHarness(t, Config{MaxSessionLifetime: 10 * time.Hour})
	ctx := context.Background()
	login := h.clock.Now()
	pair, err := h.issuer.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	h.clock.Advance(9 * time.Hour)
	next, err := h.issuer.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	claims, err := ParseRefreshToken(next.RefreshToken, h.issuer.Config(), h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, login.Add(10*time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.Equal(t, login.Unix(), claims.AuthTime)

	h.clock.Advance(time.Hour)
	_, err = h.issuer.Refresh(ctx, next.RefreshToken)
	assert.ErrorIs(t, err, errs.ErrInvalidRefreshToken)
}

func TestLogout(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	assert.ErrorIs(t, h.issuer.Logout(ctx), errs.ErrNotLoggedIn)

	pair, err := h.issuer.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	p, err := h.issuer.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, h.issuer.Logout(WithPrincipal(ctx, p)))

	_, err = h.issuer.Verify(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, errs.ErrTokenInvalid)
	_, err = h.issuer.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, errs.ErrInvalidRefreshToken)
	assert.False(t, h.mr.Exists("auth:refresh:1"))
}

func TestKillSessionsInvalidatesOutstandingTokens(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	pair, err := h.issuer.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	require.NoError(t, h.issuer.KillSessions(ctx, 1))

	_, err = h.issuer.Verify(ctx, pair.AccessToken)
	assert.True(t, errs.Is(err, codes.ErrTokenInvalid))
	_, err = h.issuer.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, errs.ErrInvalidRefreshToken)

	again, err := h.issuer.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	_, err = h.issuer.Verify(ctx, again.AccessToken)
	assert.NoError(t, err)
}

func TestVerifyExpiredAndMissing(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	_, err := h.issuer.Verify(ctx, "")
	assert.ErrorIs(t, err, errs.ErrTokenMissing)

	pair, err := h.issuer.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	h.clock.Advance(DefaultAccessTTL + time.Second)
	_, err = h.issuer.Verify(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, errs.ErrTokenExpired)
}

func TestRotateRequiresPresentedJTI(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisRefreshStore(client, "x:")
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	err := store.Rotate(ctx, 9, "a", RefreshRecord{JTI: "b", ExpiresAt: exp})
	assert.ErrorIs(t, err, ErrRefreshConflict)

	require.NoError(t, store.Save(ctx, 9, RefreshRecord{JTI: "a", ExpiresAt: exp}))
	require.NoError(t, store.Rotate(ctx, 9, "a", RefreshRecord{JTI: "b", ExpiresAt: exp}))
	assert.ErrorIs(t, store.Rotate(ctx, 9, "a", RefreshRecord{JTI: "c", ExpiresAt: exp}), ErrRefreshConflict)

	rec, err := store.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "b", rec.JTI)
	assert.Greater(t, mr.TTL("x:9"), time.Duration(0))
}
