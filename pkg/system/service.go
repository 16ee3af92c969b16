package system

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/Goden-Gun/ezadmin/pkg/codes"
	"github.com/Goden-Gun/ezadmin/pkg/errs"
	"github.com/Goden-Gun/ezadmin/pkg/events"
	log "github.com/Goden-Gun/ezadmin/pkg/logger"
	"github.com/Goden-Gun/ezadmin/pkg/systemapi"
)

// Service answers iam-service queries and applies admin mutations.
type Service struct {
	store     Store
	publisher events.Publisher
}

func NewService(store Store, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{store: store, publisher: publisher}
}

// Authenticate looks up the account by username and returns the stored
// hash; iam-service verifies the password. Unknown usernames are reported
// as bad credentials so that accounts cannot be enumerated.
func (s *Service) Authenticate(ctx context.Context, req systemapi.AuthenticateRequest) (*systemapi.UserAuthentication, error) {
	u, err := s.store.UserByUsername(ctx, req.Username)
	if errors.Is(err, ErrNotFound) {
		return nil, errs.ErrBadCredentials
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &systemapi.UserAuthentication{
		UserID:   u.ID,
		Username: u.Username,
		Nickname: u.Nickname,
		Status:   u.Status,
		Password: u.PasswordHash,
	}, nil
}

func (s *Service) AllRolePermissions(ctx context.Context) ([]systemapi.RolePermission, error) {
	grants, err := s.store.AllRolePermissions(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	out := make([]systemapi.RolePermission, 0, len(grants))
	for _, g := range grants {
		perms := g.Permissions
		if perms == nil {
			perms = []string{}
		}
		out = append(out, systemapi.RolePermission{RoleID: g.Role.ID, RoleLabel: g.Role.Label, Permissions: perms})
	}
	return out, nil
}

func (s *Service) UserRoles(ctx context.Context, userID int64) (*systemapi.UserRoles, error) {
	if _, err := s.store.UserByID(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errs.Newf(codes.ErrUserNotFound, "user %d not found", userID)
		}
		return nil, storeErr(err)
	}
	ids, err := s.store.RoleIDsByUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	roles, err := s.store.RolesByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr(err)
	}
	out := &systemapi.UserRoles{UserID: userID, RoleIDs: []int64{}, RoleLabels: []string{}}
	for _, r := range roles {
		out.RoleIDs = append(out.RoleIDs, r.ID)
		out.RoleLabels = append(out.RoleLabels, r.Label)
	}
	return out, nil
}

// SetRolePermissions replaces a role's permissions and announces the new set.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, perms []string) ([]string, error) {
	perms = normalizePermissions(perms)
	if err := s.store.SetRolePermissions(ctx, roleID, perms); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errs.Newf(codes.ErrDataNotFound, "role %d not found", roleID)
		}
		return nil, storeErr(err)
	}
	s.publish(ctx, events.RolePermissionsChanged(roleID, perms))
	return perms, nil
}

func (s *Service) AssignUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	roleIDs = slices.Compact(slices.Sorted(slices.Values(roleIDs)))
	if err := s.store.AssignUserRoles(ctx, userID, roleIDs); err != nil {
		if errors.Is(err, ErrNotFound) {
			return errs.Newf(codes.ErrDataNotFound, "user %d or one of its roles not found", userID)
		}
		return storeErr(err)
	}
	s.publish(ctx, events.UserRolesChanged(userID))
	return nil
}

// DisableUser blocks further logins and terminates the user's sessions.
func (s *Service) DisableUser(ctx context.Context, userID int64) error {
	if err := s.store.SetUserStatus(ctx, userID, StatusDisabled); err != nil {
		if errors.Is(err, ErrNotFound) {
			return errs.Newf(codes.ErrUserNotFound, "user %d not found", userID)
		}
		return storeErr(err)
	}
	s.publish(ctx, events.UserDisabled(userID))
	return nil
}

// publish never fails the mutation: the row is already committed and the
// iam-service cache admin routes can repair a missed event.
func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		log.Alert(ctx).WithError(err).WithFields(log.Fields{
			"type": ev.Type,
			"key":  ev.Key(),
		}).Error("system: change event not published")
	}
}

func storeErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errs.Wrap(codes.ErrDatabase, err)
}

func normalizePermissions(perms []string) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
