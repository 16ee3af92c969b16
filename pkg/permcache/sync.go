package permcache

import (
	"context"
	"sort"

	log "github.com/Goden-Gun/ezadmin/pkg/logger"
	"github.com/Goden-Gun/ezadmin/pkg/systemapi"
)

// Report summarizes one RefreshAll run.
type Report struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Pruned    int `json:"pruned"`
	// UsersInvalidated counts dropped permission aggregates.
	UsersInvalidated int  `json:"usersInvalidated"`
	Skipped          bool `json:"skipped"`
}

// Synchronizer copies authorization data from system-service into the cache.
type Synchronizer struct {
	client systemapi.Client
	cache  *Cache
}

// NewSynchronizer expects client to be the resilient system-service client,
// so outages surface as empty results rather than errors.
func NewSynchronizer(client systemapi.Client, cache *Cache) *Synchronizer {
	return &Synchronizer{client: client, cache: cache}
}

func (s *Synchronizer) Cache() *Cache { return s.cache }

// RefreshAll writes every role's permissions through to the cache. One
// entry failing never aborts the batch. An empty source result is skipped,
// since during an outage it would wipe valid entries.
func (s *Synchronizer) RefreshAll(ctx context.Context) (Report, error) {
	var rep Report
	roles, err := s.client.GetAllRolePermissions(ctx)
	if err != nil {
		return rep, err
	}
	if len(roles) == 0 {
		log.WithTrace(ctx).Warn("permcache: source returned no role permissions, refresh skipped")
		rep.Skipped = true
		return rep, nil
	}

	live := make(map[int64]struct{}, len(roles))
	for _, r := range roles {
		rep.Total++
		live[r.RoleID] = struct{}{}
		if err := s.cache.CacheRolePermissions(ctx, r.RoleID, r.Permissions); err != nil {
			rep.Failed++
			log.WithTrace(ctx).WithError(err).WithField("role_id", r.RoleID).Error("permcache: cache role permissions failed")
			continue
		}
		rep.Succeeded++
	}

	cached, err := s.cache.RoleIDs(ctx)
	if err != nil {
		log.WithTrace(ctx).WithError(err).Warn("permcache: list cached roles failed, prune skipped")
	}
	for _, id := range cached {
		if _, ok := live[id]; ok {
			continue
		}
		if err := s.cache.EvictRole(ctx, id); err != nil {
			log.WithTrace(ctx).WithError(err).WithField("role_id", id).Warn("permcache: prune stale role failed")
			continue
		}
		rep.Pruned++
	}

	if n, err := s.cache.EvictAllUserPermissions(ctx); err != nil {
		log.WithTrace(ctx).WithError(err).Warn("permcache: invalidate user aggregates failed")
	} else {
		rep.UsersInvalidated = n
	}

	log.WithTrace(ctx).WithFields(log.Fields{
		"total":     rep.Total,
		"succeeded": rep.Succeeded,
		"failed":    rep.Failed,
		"pruned":    rep.Pruned,
	}).Info("permcache: role permissions refreshed")
	return rep, nil
}

// LoadUser caches the user's roles and the union of their permissions,
// read from the role cache. Roles missing from the cache are fetched once
// through the client. Degraded or partial results are returned but never
// cached, so the next read rebuilds them from the source.
func (s *Synchronizer) LoadUser(ctx context.Context, userID int64) ([]string, error) {
	roles, err := s.client.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = &systemapi.UserRoles{UserID: userID}
	}
	roles.UserID = userID
	if roles.Degraded {
		log.WithTrace(ctx).WithField("user_id", userID).Warn("permcache: degraded user roles, cache write skipped")
		return []string{}, nil
	}
	if err := s.cache.CacheUserRoles(ctx, roles); err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	var missing []int64
	for _, roleID := range roles.RoleIDs {
		perms, found, err := s.cache.GetRolePermissions(ctx, roleID)
		if err != nil {
			return nil, err
		}
		if !found {
			missing = append(missing, roleID)
			continue
		}
		for _, p := range perms {
			set[p] = struct{}{}
		}
	}
	complete := true
	if len(missing) > 0 {
		complete = s.fillMissingRoles(ctx, userID, missing, set)
	}

	perms := make([]string, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Strings(perms)

	if !complete {
		return perms, nil
	}
	if err := s.cache.CacheUserPermissions(ctx, userID, perms); err != nil {
		return nil, err
	}
	log.WithTrace(ctx).WithFields(log.Fields{
		"user_id":     userID,
		"roles":       len(roles.RoleIDs),
		"permissions": len(perms),
		"role_misses": len(missing),
	}).Debug("permcache: user permissions loaded")
	return perms, nil
}

// fillMissingRoles reads the full role table once and writes the missing
// roles through. It reports whether the aggregate in set is complete. An
// empty table is not authoritative: it is what the fallback returns.
func (s *Synchronizer) fillMissingRoles(ctx context.Context, userID int64, missing []int64, set map[string]struct{}) bool {
	all, err := s.client.GetAllRolePermissions(ctx)
	if err != nil || len(all) == 0 {
		log.WithTrace(ctx).WithError(err).WithFields(log.Fields{
			"user_id":  userID,
			"role_ids": missing,
		}).Warn("permcache: role permissions not cached, aggregate left uncached")
		return false
	}
	byID := make(map[int64]systemapi.RolePermission, len(all))
	for _, r := range all {
		byID[r.RoleID] = r
	}
	for _, roleID := range missing {
		r, ok := byID[roleID]
		if !ok {
			// removed upstream; contributes nothing
			continue
		}
		if err := s.cache.CacheRolePermissions(ctx, roleID, r.Permissions); err != nil {
			log.WithTrace(ctx).WithError(err).WithField("role_id", roleID).Warn("permcache: cache role permissions failed")
		}
		for _, p := range r.Permissions {
			set[p] = struct{}{}
		}
	}
	return true
}

// Permissions returns the user's aggregated permissions, loading them on a
// cache miss.
func (s *Synchronizer) Permissions(ctx context.Context, userID int64) ([]string, error) {
	perms, found, err := s.cache.GetUserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if found {
		return perms, nil
	}
	return s.LoadUser(ctx, userID)
}

// InvalidateRole drops a role entry and every aggregate that may include it.
func (s *Synchronizer) InvalidateRole(ctx context.Context, roleID int64) error {
	if err := s.cache.EvictRole(ctx, roleID); err != nil {
		return err
	}
	_, err := s.cache.EvictAllUserPermissions(ctx)
	return err
}

// Boot runs RefreshAll at process start. Failures are logged; startup
// continues with whatever the cache already holds.
func (s *Synchronizer) Boot(ctx context.Context) {
	rep, err := s.RefreshAll(ctx)
	if err != nil {
		log.Alert(ctx).WithError(err).Error("permcache: boot refresh failed")
		return
	}
	if rep.Failed > 0 {
		log.WithTrace(ctx).WithField("failed", rep.Failed).Warn("permcache: boot refresh partially failed")
	}
}

// ApplyRole writes a role's new permissions through and drops the
// aggregates that were built from the old ones.
func (s *Synchronizer) ApplyRole(ctx context.Context, roleID int64, perms []string) error {
	if err := s.cache.CacheRolePermissions(ctx, roleID, perms); err != nil {
		return err
	}
	_, err := s.cache.EvictAllUserPermissions(ctx)
	return err
}

// EvictUser drops the user's cached roles and permissions.
func (s *Synchronizer) EvictUser(ctx context.Context, userID int64) error {
	return s.cache.EvictUser(ctx, userID)
}
