package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Goden-Gun/ezadmin/pkg/codes"
	"github.com/Goden-Gun/ezadmin/pkg/errs"
	log "github.com/Goden-Gun/ezadmin/pkg/logger"
	"github.com/Goden-Gun/ezadmin/pkg/systemapi"
)

// PermissionLoader warms the permission cache for a freshly logged-in user.
type PermissionLoader interface {
	LoadUser(ctx context.Context, userID int64) ([]string, error)
}

// Deps are the collaborators of an Issuer. Loader is optional.
type Deps struct {
	Users     systemapi.Client
	Passwords PasswordVerifier
	Refresh   RefreshStore
	Blocklist AccessTokenBlocklist
	Versions  SessionVersionStore
	Loader    PermissionLoader
	Now       func() time.Time
}

// Issuer issues, rotates and revokes credential pairs.
//
// A principal has at most one live refresh token: login overwrites it,
// refresh swaps it with compare-and-swap, logout and KillSessions drop it.
type Issuer struct {
	cfg       Config
	users     systemapi.Client
	passwords PasswordVerifier
	refresh   RefreshStore
	blocklist AccessTokenBlocklist
	versions  SessionVersionStore
	loader    PermissionLoader
	now       func() time.Time
}

func NewIssuer(cfg Config, deps Deps) (*Issuer, error) {
	cfg.Defaults()
	if cfg.Secret == "" {
		return nil, errEmptySecret
	}
	if deps.Users == nil || deps.Refresh == nil || deps.Blocklist == nil || deps.Versions == nil {
		return nil, errors.New("auth: users, refresh store, blocklist and session versions are required")
	}
	if deps.Passwords == nil {
		deps.Passwords = BcryptVerifier{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Issuer{
		cfg:       cfg,
		users:     deps.Users,
		passwords: deps.Passwords,
		refresh:   deps.Refresh,
		blocklist: deps.Blocklist,
		versions:  deps.Versions,
		loader:    deps.Loader,
		now:       deps.Now,
	}, nil
}

func (i *Issuer) Config() Config { return i.cfg }

// Login authenticates username/password and issues a new pair.
func (i *Issuer) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := i.users.AuthenticateUser(ctx, systemapi.AuthenticateRequest{Username: username, Password: password})
	if err != nil {
		if errs.Is(err, codes.ErrBadCredentials) || errs.Is(err, codes.ErrUserNotFound) {
			return nil, errs.ErrBadCredentials
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errs.ErrBadCredentials
	}
	if err := i.passwords.Verify(user.Password, password); err != nil {
		if !errors.Is(err, ErrPasswordMismatch) {
			log.WithTrace(ctx).WithError(err).WithField("user_id", user.UserID).Warn("auth: password hash check failed")
		}
		return nil, errs.ErrBadCredentials
	}
	if !user.Active() {
		return nil, errs.ErrUserDisabled
	}

	version, err := i.versions.Current(ctx, user.UserID)
	if err != nil {
		return nil, errs.Wrap(codes.ErrCache, fmt.Errorf("session version: %w", err))
	}
	now := i.now()
	pair, rec, err := i.issue(user.UserID, user.Username, version, now, now)
	if err != nil {
		return nil, err
	}
	if i.loader != nil {
		if _, err := i.loader.LoadUser(ctx, user.UserID); err != nil {
			log.WithTrace(ctx).WithError(err).WithField("user_id", user.UserID).Warn("auth: permission warm-up failed")
		}
	}
	// an abandoned login must not replace the active refresh record
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := i.refresh.Save(ctx, user.UserID, rec); err != nil {
		return nil, errs.Wrap(codes.ErrCache, fmt.Errorf("save refresh record: %w", err))
	}

	log.WithTrace(ctx).WithFields(log.Fields{"user_id": user.UserID, "username": user.Username}).Info("auth: login")
	return pair, nil
}

// Refresh swaps a valid refresh token for a new pair. Of concurrent
// refreshes presenting the same token, exactly one succeeds.
func (i *Issuer) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	now := i.now()
	claims, err := ParseRefreshToken(refreshToken, i.cfg, now)
	if err != nil {
		return nil, errs.Wrap(codes.ErrInvalidRefreshToken, err)
	}
	authTime := time.Unix(claims.AuthTime, 0)
	if claims.AuthTime <= 0 {
		authTime = claims.IssuedAt.Time
	}
	if i.cfg.MaxSessionLifetime > 0 && !now.Before(authTime.Add(i.cfg.MaxSessionLifetime)) {
		return nil, errs.Wrap(codes.ErrInvalidRefreshToken, errors.New("session lifetime exceeded"))
	}

	version, err := i.versions.Current(ctx, claims.UserID)
	if err != nil {
		return nil, errs.Wrap(codes.ErrCache, fmt.Errorf("session version: %w", err))
	}
	pair, rec, err := i.issue(claims.UserID, claims.Username, version, authTime, now)
	if err != nil {
		return nil, err
	}
	if err := i.refresh.Rotate(ctx, claims.UserID, claims.ID, rec); err != nil {
		if errors.Is(err, ErrRefreshConflict) {
			log.WithTrace(ctx).WithField("user_id", claims.UserID).Info("auth: stale refresh token presented")
			return nil, errs.Wrap(codes.ErrInvalidRefreshToken, err)
		}
		return nil, errs.Wrap(codes.ErrCache, fmt.Errorf("rotate refresh record: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes the caller's access token and refresh record.
func (i *Issuer) Logout(ctx context.Context) error {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return errs.ErrNotLoggedIn
	}
	if err := i.blocklist.Block(ctx, p.TokenID, p.ExpiresAt.Sub(i.now())); err != nil {
		return errs.Wrap(codes.ErrCache, fmt.Errorf("block access token: %w", err))
	}
	if err := i.refresh.Revoke(ctx, p.UserID); err != nil {
		return errs.Wrap(codes.ErrCache, fmt.Errorf("revoke refresh record: %w", err))
	}
	log.WithTrace(ctx).WithField("user_id", p.UserID).Info("auth: logout")
	return nil
}

// KillSessions invalidates every outstanding token of userID.
func (i *Issuer) KillSessions(ctx context.Context, userID int64) error {
	if _, err := i.versions.Bump(ctx, userID); err != nil {
		return errs.Wrap(codes.ErrCache, fmt.Errorf("bump session version: %w", err))
	}
	if err := i.refresh.Revoke(ctx, userID); err != nil {
		return errs.Wrap(codes.ErrCache, fmt.Errorf("revoke refresh record: %w", err))
	}
	log.WithTrace(ctx).WithField("user_id", userID).Info("auth: sessions killed")
	return nil
}

// Verify checks an access token and resolves its principal.
func (i *Issuer) Verify(ctx context.Context, accessToken string) (*Principal, error) {
	if accessToken == "" {
		return nil, errs.ErrTokenMissing
	}
	claims, err := ParseAccessToken(accessToken, i.cfg, i.now())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.Wrap(codes.ErrTokenExpired, err)
		}
		return nil, errs.Wrap(codes.ErrTokenInvalid, err)
	}
	blocked, err := i.blocklist.IsBlocked(ctx, claims.ID)
	if err != nil {
		return nil, errs.Wrap(codes.ErrCache, fmt.Errorf("check blocklist: %w", err))
	}
	if blocked {
		return nil, errs.ErrTokenInvalid
	}
	version, err := i.versions.Current(ctx, claims.UserID)
	if err != nil {
		return nil, errs.Wrap(codes.ErrCache, fmt.Errorf("session version: %w", err))
	}
	if version != claims.SessionVersion {
		return nil, errs.WithMessage(codes.ErrTokenInvalid, "session has been terminated")
	}
	return &Principal{
		UserID:         claims.UserID,
		Username:       claims.Username,
		TokenID:        claims.ID,
		SessionVersion: claims.SessionVersion,
		ExpiresAt:      claims.ExpiresAt.Time,
	}, nil
}

func (i *Issuer) issue(userID int64, username string, version int64, authTime, now time.Time) (*TokenPair, RefreshRecord, error) {
	access, err := signAccess(i.cfg, userID, username, version, now)
	if err != nil {
		return nil, RefreshRecord{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := signRefresh(i.cfg, userID, username, authTime, now)
	if err != nil {
		return nil, RefreshRecord{}, fmt.Errorf("sign refresh token: %w", err)
	}
	pair := &TokenPair{
		AccessToken:  access.token,
		RefreshToken: refresh.token,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(i.cfg.AccessTTL / time.Second),
	}
	rec := RefreshRecord{
		JTI:       refresh.jti,
		IssuedAt:  now,
		ExpiresAt: refresh.expiresAt,
		AuthTime:  authTime,
	}
	return pair, rec, nil
}
