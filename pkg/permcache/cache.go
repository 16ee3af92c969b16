// Package permcache keeps role permissions, user roles and aggregated user
// permissions in a shared store so that authorization never calls
// system-service on the request path.
package permcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Goden-Gun/ezadmin/pkg/systemapi"
)

const DefaultPrefix = "iam:"

const (
	rolePermsKey = "role:perms:"
	userRolesKey = "user:roles:"
	userPermsKey = "user:perms:"
)

// Options controls key layout and expiry. A zero TTL stores without expiry.
type Options struct {
	Prefix  string
	RoleTTL time.Duration
	UserTTL time.Duration
}

// Cache is the typed view over Store.
type Cache struct {
	store Store
	opts  Options
}

func NewCache(store Store, opts Options) *Cache {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	return &Cache{store: store, opts: opts}
}

func (c *Cache) RolePermissionsKey(roleID int64) string {
	return c.opts.Prefix + rolePermsKey + strconv.FormatInt(roleID, 10)
}

func (c *Cache) UserRolesKey(userID int64) string {
	return c.opts.Prefix + userRolesKey + strconv.FormatInt(userID, 10)
}

func (c *Cache) UserPermissionsKey(userID int64) string {
	return c.opts.Prefix + userPermsKey + strconv.FormatInt(userID, 10)
}

func (c *Cache) CacheRolePermissions(ctx context.Context, roleID int64, perms []string) error {
	return c.put(ctx, c.RolePermissionsKey(roleID), nonNil(perms), c.opts.RoleTTL)
}

// GetRolePermissions returns found=false on a miss. An empty slice with
// found=true means the role holds no permissions.
func (c *Cache) GetRolePermissions(ctx context.Context, roleID int64) ([]string, bool, error) {
	var perms []string
	found, err := c.get(ctx, c.RolePermissionsKey(roleID), &perms)
	if !found || err != nil {
		return nil, found, err
	}
	return nonNil(perms), true, nil
}

func (c *Cache) CacheUserRoles(ctx context.Context, roles *systemapi.UserRoles) error {
	if roles == nil {
		return fmt.Errorf("permcache: nil user roles")
	}
	return c.put(ctx, c.UserRolesKey(roles.UserID), roles, c.opts.UserTTL)
}

func (c *Cache) GetUserRoles(ctx context.Context, userID int64) (*systemapi.UserRoles, bool, error) {
	var roles systemapi.UserRoles
	found, err := c.get(ctx, c.UserRolesKey(userID), &roles)
	if !found || err != nil {
		return nil, found, err
	}
	return &roles, true, nil
}

func (c *Cache) CacheUserPermissions(ctx context.Context, userID int64, perms []string) error {
	return c.put(ctx, c.UserPermissionsKey(userID), nonNil(perms), c.opts.UserTTL)
}

func (c *Cache) GetUserPermissions(ctx context.Context, userID int64) ([]string, bool, error) {
	var perms []string
	found, err := c.get(ctx, c.UserPermissionsKey(userID), &perms)
	if !found || err != nil {
		return nil, found, err
	}
	return nonNil(perms), true, nil
}

// EvictRole drops one role entry. Evicting an absent role is a no-op.
func (c *Cache) EvictRole(ctx context.Context, roleID int64) error {
	return c.store.Delete(ctx, c.RolePermissionsKey(roleID))
}

// EvictUser drops the user's roles and aggregated permissions.
func (c *Cache) EvictUser(ctx context.Context, userID int64) error {
	return c.store.Delete(ctx, c.UserRolesKey(userID), c.UserPermissionsKey(userID))
}

// EvictAllUserPermissions drops every aggregate, returning how many were
// removed. Aggregates are rebuilt lazily.
func (c *Cache) EvictAllUserPermissions(ctx context.Context) (int, error) {
	keys, err := c.store.ScanPrefix(ctx, c.opts.Prefix+userPermsKey)
	if err != nil {
		return 0, err
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// RoleIDs lists the roles currently cached.
func (c *Cache) RoleIDs(ctx context.Context) ([]int64, error) {
	prefix := c.opts.Prefix + rolePermsKey
	keys, err := c.store.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(keys))
	for _, k := range keys {
		id, err := strconv.ParseInt(strings.TrimPrefix(k, prefix), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Cache) put(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("permcache: encode %s: %w", key, err)
	}
	return c.store.Set(ctx, key, string(raw), ttl)
}

func (c *Cache) get(ctx context.Context, key string, dst any) (bool, error) {
	raw, found, err := c.store.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("permcache: decode %s: %w", key, err)
	}
	return true, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
