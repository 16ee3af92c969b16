package systemapi

import (
	"context"

	"github.com/Goden-Gun/ezadmin/pkg/codes"
	"github.com/Goden-Gun/ezadmin/pkg/errs"
	log "github.com/Goden-Gun/ezadmin/pkg/logger"
)

type fallback struct {
	cause error
}

// Fallback returns the degraded Client used when system-service cannot be
// reached. Reads degrade to empty values; authentication fails with
// ErrServiceUnavailable because a success cannot be fabricated. Degraded
// user roles carry the Degraded flag.
func Fallback(cause error) Client {
	return &fallback{cause: cause}
}

func (f *fallback) AuthenticateUser(ctx context.Context, req AuthenticateRequest) (*UserAuthentication, error) {
	f.logCause(ctx, "AuthenticateUser", log.Fields{"username": req.Username})
	return nil, errs.Wrap(codes.ErrServiceUnavailable, f.cause)
}

func (f *fallback) GetAllRolePermissions(ctx context.Context) ([]RolePermission, error) {
	f.logCause(ctx, "GetAllRolePermissions", nil)
	return []RolePermission{}, nil
}

func (f *fallback) GetUserRoles(ctx context.Context, userID int64) (*UserRoles, error) {
	f.logCause(ctx, "GetUserRoles", log.Fields{"user_id": userID})
	return &UserRoles{UserID: userID, RoleIDs: []int64{}, RoleLabels: []string{}, Degraded: true}, nil
}

func (f *fallback) logCause(ctx context.Context, op string, fields log.Fields) {
	e := log.WithTrace(ctx).WithError(f.cause).WithFields(log.Fields{
		"service": "system-service",
		"op":      op,
		"alert":   true,
	})
	if fields != nil {
		e = e.WithFields(fields)
	}
	e.Error("system-service unavailable, fallback engaged")
}
