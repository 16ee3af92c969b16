package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRefreshConflict means the presented refresh token is no longer the
// principal's active one: already rotated, revoked, or never issued.
var ErrRefreshConflict = errors.New("refresh token superseded")

// RefreshRecord is the single active refresh token of a principal.
type RefreshRecord struct {
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
	AuthTime  time.Time
}

// RefreshStore keeps exactly one active refresh record per principal.
type RefreshStore interface {
	// Save overwrites any previous record (login).
	Save(ctx context.Context, userID int64, rec RefreshRecord) error
	// Rotate replaces the record only if its jti equals presentedJTI;
	// otherwise it returns ErrRefreshConflict and changes nothing.
	Rotate(ctx context.Context, userID int64, presentedJTI string, next RefreshRecord) error
	Revoke(ctx context.Context, userID int64) error
}

// AccessTokenBlocklist abstracts revoked access tokens.
type AccessTokenBlocklist interface {
	Block(ctx context.Context, jti string, ttl time.Duration) error
	IsBlocked(ctx context.Context, jti string) (bool, error)
}

// rotateScript swaps the record atomically when the stored jti matches.
// KEYS[1] record key; ARGV: presented jti, new jti, issued_at, expires_at,
// auth_time, ttl millis.
var rotateScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'jti')
if (not cur) or cur ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'jti', ARGV[2], 'issued_at', ARGV[3], 'expires_at', ARGV[4], 'auth_time', ARGV[5])
redis.call('PEXPIRE', KEYS[1], ARGV[6])
return 1
`)

// RedisRefreshStore stores refresh records as hashes auth:refresh:{userId}.
type RedisRefreshStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisRefreshStore(client redis.Cmdable, prefix string) *RedisRefreshStore {
	if client == nil {
		return nil
	}
	if prefix == "" {
		prefix = DefaultRefreshStorePrefix
	}
	return &RedisRefreshStore{client: client, prefix: prefix}
}

func (s *RedisRefreshStore) Save(ctx context.Context, userID int64, rec RefreshRecord) error {
	if s == nil || rec.JTI == "" {
		return fmt.Errorf("refresh store not configured")
	}
	key := s.key(userID)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"jti", rec.JTI,
			"issued_at", rec.IssuedAt.Unix(),
			"expires_at", rec.ExpiresAt.Unix(),
			"auth_time", rec.AuthTime.Unix(),
		)
		p.PExpire(ctx, key, ttlUntil(rec.ExpiresAt))
		return nil
	})
	return err
}

func (s *RedisRefreshStore) Rotate(ctx context.Context, userID int64, presentedJTI string, next RefreshRecord) error {
	if s == nil || presentedJTI == "" || next.JTI == "" {
		return fmt.Errorf("refresh store not configured")
	}
	ok, err := rotateScript.Run(ctx, s.client, []string{s.key(userID)},
		presentedJTI,
		next.JTI,
		next.IssuedAt.Unix(),
		next.ExpiresAt.Unix(),
		next.AuthTime.Unix(),
		ttlUntil(next.ExpiresAt).Milliseconds(),
	).Int()
	if err != nil {
		return err
	}
	if ok != 1 {
		return ErrRefreshConflict
	}
	return nil
}

func (s *RedisRefreshStore) Revoke(ctx context.Context, userID int64) error {
	if s == nil {
		return fmt.Errorf("refresh store not configured")
	}
	return s.client.Del(ctx, s.key(userID)).Err()
}

// Get returns the active record, or nil when there is none.
func (s *RedisRefreshStore) Get(ctx context.Context, userID int64) (*RefreshRecord, error) {
	vals, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, err
	}
	if vals["jti"] == "" {
		return nil, nil
	}
	return &RefreshRecord{
		JTI:       vals["jti"],
		IssuedAt:  unixField(vals["issued_at"]),
		ExpiresAt: unixField(vals["expires_at"]),
		AuthTime:  unixField(vals["auth_time"]),
	}, nil
}

func (s *RedisRefreshStore) key(userID int64) string {
	return s.prefix + strconv.FormatInt(userID, 10)
}

// RedisAccessBlocklist stores revoked access JTI with TTL.
type RedisAccessBlocklist struct {
	client redis.Cmdable
	prefix string
}

func NewRedisAccessBlocklist(client redis.Cmdable, prefix string) *RedisAccessBlocklist {
	if client == nil {
		return nil
	}
	if prefix == "" {
		prefix = DefaultAccessBlocklistPrefix
	}
	return &RedisAccessBlocklist{client: client, prefix: prefix}
}

func (b *RedisAccessBlocklist) Block(ctx context.Context, jti string, ttl time.Duration) error {
	if b == nil || jti == "" {
		return fmt.Errorf("blocklist not configured")
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return b.client.Set(ctx, b.key(jti), "1", ttl).Err()
}

func (b *RedisAccessBlocklist) IsBlocked(ctx context.Context, jti string) (bool, error) {
	if b == nil || jti == "" {
		return false, nil
	}
	res, err := b.client.Exists(ctx, b.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return res > 0, nil
}

func (b *RedisAccessBlocklist) key(jti string) string {
	return b.prefix + jti
}

func ttlUntil(t time.Time) time.Duration {
	d := time.Until(t)
	if d < time.Second {
		d = time.Second
	}
	return d
}

func unixField(v string) time.Time {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(n, 0)
}
