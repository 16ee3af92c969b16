package system

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/Goden-Gun/ezadmin/pkg/auth"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	users     map[int64]User
	roles     map[int64]Role
	rolePerms map[int64][]string
	userRoles map[int64][]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[int64]User),
		roles:     make(map[int64]Role),
		rolePerms: make(map[int64][]string),
		userRoles: make(map[int64][]int64),
	}
}

// NewSeededMemoryStore returns a store holding the default admin account
// (admin / admin123) with the super-admin role.
func NewSeededMemoryStore() (*MemoryStore, error) {
	hash, err := auth.HashPassword("admin123")
	if err != nil {
		return nil, err
	}
	s := NewMemoryStore()
	s.PutRole(Role{ID: 1, Label: "super_admin", Name: "超级管理员"},
		"iam:cache:manage", "system:user:read", "system:user:write", "system:role:read", "system:role:write")
	s.PutRole(Role{ID: 2, Label: "auditor", Name: "审计员"}, "system:user:read", "system:role:read")
	s.PutUser(User{ID: 1, Username: "admin", Nickname: "管理员", PasswordHash: hash, Status: StatusActive}, 1)
	return s, nil
}

// PutUser inserts or replaces u; a zero ID is assigned.
func (s *MemoryStore) PutUser(u User, roleIDs ...int64) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.allocID()
	}
	s.nextID = max(s.nextID, u.ID)
	s.users[u.ID] = u
	s.userRoles[u.ID] = slices.Clone(roleIDs)
	return u
}

// PutRole inserts or replaces r together with its permissions.
func (s *MemoryStore) PutRole(r Role, perms ...string) Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		r.ID = s.allocID()
	}
	s.nextID = max(s.nextID, r.ID)
	s.roles[r.ID] = r
	s.rolePerms[r.ID] = slices.Clone(perms)
	return r
}

func (s *MemoryStore) allocID() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) UserByUsername(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UserByID(_ context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) RoleIDsByUser(_ context.Context, userID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := slices.Clone(s.userRoles[userID])
	slices.Sort(ids)
	return ids, nil
}

func (s *MemoryStore) RolesByIDs(_ context.Context, ids []int64) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Role, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.roles[id]; ok {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b Role) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) AllRolePermissions(_ context.Context) ([]RoleGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RoleGrant, 0, len(s.roles))
	for id, r := range s.roles {
		perms := slices.Clone(s.rolePerms[id])
		if perms == nil {
			perms = []string{}
		}
		out = append(out, RoleGrant{Role: r, Permissions: perms})
	}
	slices.SortFunc(out, func(a, b RoleGrant) int { return cmp.Compare(a.Role.ID, b.Role.ID) })
	return out, nil
}

func (s *MemoryStore) SetRolePermissions(_ context.Context, roleID int64, perms []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return ErrNotFound
	}
	s.rolePerms[roleID] = slices.Clone(perms)
	return nil
}

func (s *MemoryStore) AssignUserRoles(_ context.Context, userID int64, roleIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return ErrNotFound
	}
	for _, id := range roleIDs {
		if _, ok := s.roles[id]; !ok {
			return ErrNotFound
		}
	}
	s.userRoles[userID] = slices.Clone(roleIDs)
	return nil
}

func (s *MemoryStore) SetUserStatus(_ context.Context, userID int64, status int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	s.users[userID] = u
	return nil
}
