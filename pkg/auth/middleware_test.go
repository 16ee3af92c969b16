package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Goden-Gun/ezadmin/pkg/boundary"
	"github.com/Goden-Gun/ezadmin/pkg/codes"
)

type staticPermissions map[int64][]string

func (s staticPermissions) Permissions(_ context.Context, userID int64) ([]string, error) {
	return s[userID], nil
}

type envelopeBody struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func newProtectedRouter(issuer *Issuer, perms PermissionSource) *chi.Mux {
	r := chi.NewRouter()
	boundary.Install(r)
	r.Use(Authenticate(issuer))
	r.Get("/open", boundary.Wrap(func(w http.ResponseWriter, r *http.Request) (any, error) {
		_, ok := PrincipalFrom(r.Context())
		return map[string]bool{"authenticated": ok}, nil
	}))
	r.With(RequireLogin).Get("/me", boundary.Wrap(func(w http.ResponseWriter, r *http.Request) (any, error) {
		p, _ := PrincipalFrom(r.Context())
		return map[string]any{"userId": p.UserID}, nil
	}))
	r.With(RequirePermission(perms, "iam:cache:manage")).Get("/admin", boundary.Wrap(func(w http.ResponseWriter, r *http.Request) (any, error) {
		return "ok", nil
	}))
	return r
}

func serve(t *testing.T, h http.Handler, path, token string) envelopeBody {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body envelopeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestMiddlewareChain(t *testing.T) {
	h := newHarness(t, Config{})
	pair, err := h.issuer.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	router := newProtectedRouter(h.issuer, staticPermissions{1: {"iam:cache:manage"}})

	body := serve(t, router, "/open", "")
	assert.True(t, body.Success)
	assert.JSONEq(t, `{"authenticated":false}`, string(body.Data))

	body = serve(t, router, "/me", "")
	assert.Equal(t, codes.ErrUnauthorized.Numeric, body.Code)

	body = serve(t, router, "/me", pair.AccessToken)
	assert.True(t, body.Success)
	assert.JSONEq(t, `{"userId":1}`, string(body.Data))

	body = serve(t, router, "/admin", pair.AccessToken)
	assert.True(t, body.Success)

	body = serve(t, router, "/open", "forged.token.value")
	assert.Equal(t, codes.ErrTokenInvalid.Numeric, body.Code)
}

func TestRequirePermissionDenies(t *testing.T) {
	h := newHarness(t, Config{})
	pair, err := h.issuer.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	router := newProtectedRouter(h.issuer, staticPermissions{1: {"user:read"}})
	body := serve(t, router, "/admin", pair.AccessToken)
	assert.False(t, body.Success)
	assert.Equal(t, codes.ErrPermissionDenied.Numeric, body.Code)
}

func TestBearerToken(t *testing.T) {
	tok, ok := bearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)
	_, ok = bearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = bearerToken("Bearer ")
	assert.False(t, ok)
}
