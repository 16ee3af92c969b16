package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeBearer  = "Bearer"
	tokenUseAccess   = "access"
	tokenUseRefresh  = "refresh"
	signingAlgorithm = "HS256"
)

var (
	errEmptySecret   = errors.New("jwt secret is empty")
	errWrongTokenUse = errors.New("invalid token type")
	errMissingJTI    = errors.New("missing token id")
)

// AccessClaims represents access token claims.
type AccessClaims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	// SessionVersion must match the principal's current version; bumping it
	// invalidates every access token issued before.
	SessionVersion int64  `json:"session_version"`
	TokenType      string `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims represents refresh token claims.
type RefreshClaims struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"type"`
	// AuthTime is the unix second of the original login; rotation keeps it.
	AuthTime int64 `json:"auth_time"`
	jwt.RegisteredClaims
}

// TokenPair is the credential pair handed to clients.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type signedToken struct {
	token     string
	jti       string
	expiresAt time.Time
}

func signAccess(cfg Config, userID int64, username string, version int64, now time.Time) (signedToken, error) {
	jti := uuid.NewString()
	exp := now.Add(cfg.AccessTTL)
	claims := AccessClaims{
		UserID:         userID,
		Username:       username,
		SessionVersion: version,
		TokenType:      tokenUseAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   strconv.FormatInt(userID, 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := signClaims(claims, cfg)
	return signedToken{token: tok, jti: jti, expiresAt: exp}, err
}

// refreshExpiry never lets a refresh token outlive the session cap.
func refreshExpiry(cfg Config, authTime, now time.Time) time.Time {
	exp := now.Add(cfg.RefreshTTL)
	if cfg.MaxSessionLifetime > 0 {
		if limit := authTime.Add(cfg.MaxSessionLifetime); exp.After(limit) {
			exp = limit
		}
	}
	return exp
}

func signRefresh(cfg Config, userID int64, username string, authTime, now time.Time) (signedToken, error) {
	jti := uuid.NewString()
	exp := refreshExpiry(cfg, authTime, now)
	claims := RefreshClaims{
		UserID:    userID,
		Username:  username,
		TokenType: tokenUseRefresh,
		AuthTime:  authTime.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   strconv.FormatInt(userID, 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := signClaims(claims, cfg)
	return signedToken{token: tok, jti: jti, expiresAt: exp}, err
}

// ParseAccessToken validates signature, expiry and token use.
func ParseAccessToken(tokenStr string, cfg Config, now time.Time) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := parse(tokenStr, claims, cfg, now); err != nil {
		return nil, err
	}
	if claims.TokenType != tokenUseAccess {
		return nil, errWrongTokenUse
	}
	if claims.ID == "" {
		return nil, errMissingJTI
	}
	return claims, nil
}

// ParseRefreshToken validates signature, expiry and token use.
func ParseRefreshToken(tokenStr string, cfg Config, now time.Time) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := parse(tokenStr, claims, cfg, now); err != nil {
		return nil, err
	}
	if claims.TokenType != tokenUseRefresh {
		return nil, errWrongTokenUse
	}
	if claims.ID == "" {
		return nil, errMissingJTI
	}
	return claims, nil
}

func parse(tokenStr string, claims jwt.Claims, cfg Config, now time.Time) error {
	if cfg.Secret == "" {
		return errEmptySecret
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingAlgorithm}),
		jwt.WithLeeway(cfg.ClockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("invalid token")
	}
	return nil
}

func signClaims(claims jwt.Claims, cfg Config) (string, error) {
	if cfg.Secret == "" {
		return "", errEmptySecret
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}
