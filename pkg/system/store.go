// Package system implements system-service: the source of truth for users,
// roles and role permissions, queried by iam-service over HTTP and mutated
// through admin routes that publish change events.
package system

import (
	"context"
	"errors"
)

// Account status values.
const (
	StatusDisabled = 0
	StatusActive   = 1
)

// ErrNotFound is returned by a Store when the addressed row does not exist.
var ErrNotFound = errors.New("system: not found")

type User struct {
	ID           int64
	Username     string
	Nickname     string
	PasswordHash string
	Status       int
}

type Role struct {
	ID    int64
	Label string
	Name  string
}

// RoleGrant is a role together with its permission set.
type RoleGrant struct {
	Role        Role
	Permissions []string
}

// Store persists users, roles and their relations.
type Store interface {
	UserByUsername(ctx context.Context, username string) (*User, error)
	UserByID(ctx context.Context, id int64) (*User, error)
	RoleIDsByUser(ctx context.Context, userID int64) ([]int64, error)
	RolesByIDs(ctx context.Context, ids []int64) ([]Role, error)
	AllRolePermissions(ctx context.Context) ([]RoleGrant, error)
	// SetRolePermissions replaces the role's permission set.
	SetRolePermissions(ctx context.Context, roleID int64, perms []string) error
	// AssignUserRoles replaces the user's roles; unknown roles yield ErrNotFound.
	AssignUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
	SetUserStatus(ctx context.Context, userID int64, status int) error
}
