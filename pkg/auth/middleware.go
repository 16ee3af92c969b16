package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/Goden-Gun/ezadmin/pkg/boundary"
	"github.com/Goden-Gun/ezadmin/pkg/codes"
	"github.com/Goden-Gun/ezadmin/pkg/errs"
)

// PermissionSource resolves a user's aggregated permissions.
type PermissionSource interface {
	Permissions(ctx context.Context, userID int64) ([]string, error)
}

// Authenticate resolves the bearer token into a Principal. Requests without
// an Authorization header pass through anonymous; a present but invalid
// token is rejected.
func Authenticate(issuer *Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := bearerToken(header)
			if !ok {
				boundary.WriteError(w, r, errs.ErrTokenInvalid)
				return
			}
			p, err := issuer.Verify(r.Context(), token)
			if err != nil {
				boundary.WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireLogin rejects anonymous requests.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFrom(r.Context()); !ok {
			boundary.WriteError(w, r, errs.ErrNotLoggedIn)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission rejects callers whose cached permissions lack perm.
func RequirePermission(source PermissionSource, perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				boundary.WriteError(w, r, errs.ErrNotLoggedIn)
				return
			}
			perms, err := source.Permissions(r.Context(), p.UserID)
			if err != nil {
				boundary.WriteError(w, r, err)
				return
			}
			if !slices.Contains(perms, perm) {
				boundary.WriteError(w, r, errs.Newf(codes.ErrPermissionDenied, "permission denied: %s", perm))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearer):])
	return token, token != ""
}
