// Package systemapi is the iam-service view of system-service: the wire
// types of its internal queries, an HTTP client, the fallback used during
// outages and the circuit-breaking wrapper that chooses between them.
package systemapi

import "context"

// Internal routes served by system-service.
const (
	PathAuthenticate       = "/api/v1/system/user/authenticate"
	PathAllRolePermissions = "/api/v1/system/role/permissions"
	PathUserRoles          = "/api/v1/system/user/roles"
)

// StatusActive marks an enabled account.
const StatusActive = 1

type AuthenticateRequest struct {
	Username string `json:"username" validate:"required,notblank"`
	Password string `json:"password" validate:"required,notblank"`
}

// UserAuthentication carries the stored password hash, never plaintext.
type UserAuthentication struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Status   int    `json:"status"`
	Password string `json:"password"`
}

// Active reports whether the account may log in.
func (u *UserAuthentication) Active() bool { return u != nil && u.Status == StatusActive }

type RolePermission struct {
	RoleID      int64    `json:"roleId"`
	RoleLabel   string   `json:"roleLabel"`
	Permissions []string `json:"permissions"`
}

type UserRoles struct {
	UserID     int64    `json:"userId"`
	RoleIDs    []int64  `json:"roleIds"`
	RoleLabels []string `json:"roleLabels"`
	// Degraded marks a value made up by the fallback; it must not be cached.
	Degraded bool `json:"-"`
}

// Client is the set of system-service queries iam-service depends on.
type Client interface {
	AuthenticateUser(ctx context.Context, req AuthenticateRequest) (*UserAuthentication, error)
	GetAllRolePermissions(ctx context.Context) ([]RolePermission, error)
	GetUserRoles(ctx context.Context, userID int64) (*UserRoles, error)
}
