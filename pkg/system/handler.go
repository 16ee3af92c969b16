package system

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Goden-Gun/ezadmin/pkg/boundary"
	"github.com/Goden-Gun/ezadmin/pkg/errs"
	"github.com/Goden-Gun/ezadmin/pkg/systemapi"
)

// Admin routes.
const (
	PathRolePermissions = "/api/v1/system/role/{roleId}/permissions"
	PathUserRoleAssign  = "/api/v1/system/user/{userId}/roles"
	PathUserDisable     = "/api/v1/system/user/{userId}/disable"
)

type setPermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required,dive,notblank,max=128"`
}

type assignRolesRequest struct {
	RoleIDs []int64 `json:"roleIds" validate:"required,dive,gt=0"`
}

// NewRouter mounts the internal query routes and the admin routes.
func NewRouter(svc *Service) *chi.Mux {
	r := chi.NewRouter()
	boundary.Install(r)

	r.Post(systemapi.PathAuthenticate, boundary.Wrap(func(w http.ResponseWriter, r *http.Request) (any, error) {
		var req systemapi.AuthenticateRequest
		if err := boundary.BindJSON(r, &req); err != nil {
			return nil, err
		}
		return svc.Authenticate(r.Context(), req)
	}))

	r.Get(systemapi.PathAllRolePermissions, boundary.Wrap(func(w http.ResponseWriter, r *http.Request) (any, error) {
		return svc.AllRolePermissions(r.Context())
	}))

	r.Get(systemapi.PathUserRoles, boundary.Wrap(func(w http.ResponseWriter, r *http.Request) (any, error) {
		userID, err := parseID("userId", r.URL.Query().Get("userId"))
		if err != nil {
			return nil, err
		}
		return svc.UserRoles(r.Context(), userID)
	}))

	r.Put(PathRolePermissions, boundary.Wrap(func(w http.ResponseWriter, r *http.Request) (any, error) {
		roleID, err := parseID("roleId", chi.URLParam(r, "roleId"))
		if err != nil {
			return nil, err
		}
		var req setPermissionsRequest
		if err := boundary.BindJSON(r, &req); err != nil {
			return nil, err
		}
		perms, err := svc.SetRolePermissions(r.Context(), roleID, req.Permissions)
		if err != nil {
			return nil, err
		}
		return systemapi.RolePermission{RoleID: roleID, Permissions: perms}, nil
	}))

	r.Put(PathUserRoleAssign, boundary.Wrap(func(w http.ResponseWriter, r *http.Request) (any, error) {
		userID, err := parseID("userId", chi.URLParam(r, "userId"))
		if err != nil {
			return nil, err
		}
		var req assignRolesRequest
		if err := boundary.BindJSON(r, &req); err != nil {
			return nil, err
		}
		if err := svc.AssignUserRoles(r.Context(), userID, req.RoleIDs); err != nil {
			return nil, err
		}
		return svc.UserRoles(r.Context(), userID)
	}))

	r.Post(PathUserDisable, boundary.Wrap(func(w http.ResponseWriter, r *http.Request) (any, error) {
		userID, err := parseID("userId", chi.URLParam(r, "userId"))
		if err != nil {
			return nil, err
		}
		return nil, svc.DisableUser(r.Context(), userID)
	}))

	return r
}

func parseID(field, raw string) (int64, error) {
	if raw == "" {
		return 0, errs.NewValidation(field, field+" must not be blank")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.NewValidation(field, field+" must be a positive integer")
	}
	return id, nil
}
