package auth

import "time"

const (
	// DefaultAccessBlocklistPrefix is the Redis key prefix for revoked access JTIs.
	DefaultAccessBlocklistPrefix = "auth:access:block:"
	// DefaultRefreshStorePrefix is the Redis key prefix for per-user refresh records.
	DefaultRefreshStorePrefix = "auth:refresh:"
	// DefaultSessionVersionPrefix is the Redis key prefix for session versions.
	DefaultSessionVersionPrefix = "auth:session:ver:"

	DefaultAccessTTL  = 7200 * time.Second
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Config controls JWT signing and validation.
// Secret: shared HS256 key. MaxSessionLifetime caps how long refresh
// rotation can extend a session past its original login (0 = unbounded).
type Config struct {
	Secret               string
	Issuer               string
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	MaxSessionLifetime   time.Duration
	ClockSkew            time.Duration
	BlocklistPrefix      string
	RefreshStorePrefix   string
	SessionVersionPrefix string
}

// Defaults fills zero values.
func (c *Config) Defaults() {
	if c.AccessTTL <= 0 {
		c.AccessTTL = DefaultAccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = DefaultRefreshTTL
	}
	if c.MaxSessionLifetime < 0 {
		c.MaxSessionLifetime = 0
	}
	if c.ClockSkew < 0 {
		c.ClockSkew = 0
	}
	if c.BlocklistPrefix == "" {
		c.BlocklistPrefix = DefaultAccessBlocklistPrefix
	}
	if c.RefreshStorePrefix == "" {
		c.RefreshStorePrefix = DefaultRefreshStorePrefix
	}
	if c.SessionVersionPrefix == "" {
		c.SessionVersionPrefix = DefaultSessionVersionPrefix
	}
}
