// Package iam mounts the iam-service HTTP surface: the credential routes,
// the permission-cache admin routes and the caller's own permissions.
package iam

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Goden-Gun/ezadmin/pkg/auth"
	"github.com/Goden-Gun/ezadmin/pkg/boundary"
	"github.com/Goden-Gun/ezadmin/pkg/codes"
	"github.com/Goden-Gun/ezadmin/pkg/errs"
	log "github.com/Goden-Gun/ezadmin/pkg/logger"
	"github.com/Goden-Gun/ezadmin/pkg/permcache"
)

// PermCacheManage guards the cache admin routes.
const PermCacheManage = "iam:cache:manage"

type loginRequest struct {
	Username string `json:"username" validate:"required,notblank,max=64"`
	Password string `json:"password" validate:"required,notblank,max=128"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required,notblank"`
}

type permissionsView struct {
	UserID      int64    `json:"userId"`
	Username    string   `json:"username"`
	Permissions []string `json:"permissions"`
}

type handler struct {
	issuer *auth.Issuer
	sync   *permcache.Synchronizer
}

// NewRouter builds the iam-service router.
func NewRouter(issuer *auth.Issuer, sync *permcache.Synchronizer) *chi.Mux {
	h := &handler{issuer: issuer, sync: sync}

	r := chi.NewRouter()
	boundary.Install(r)
	r.Use(auth.Authenticate(issuer))

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", boundary.Wrap(h.login))
		r.Post("/refresh-token", boundary.Wrap(h.refresh))
		r.Post("/logout", boundary.Wrap(h.logout))
	})

	r.Route("/api/v1/iam", func(r chi.Router) {
		r.With(auth.RequireLogin).Get("/me/permissions", boundary.Wrap(h.myPermissions))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequirePermission(sync, PermCacheManage))
			r.Post("/cache/role-permissions/refresh", boundary.Wrap(h.refreshRolePermissions))
			r.Delete("/cache/role-permissions/{roleId}", boundary.Wrap(h.evictRole))
			r.Delete("/cache/user/{userId}", boundary.Wrap(h.evictUser))
		})
	})
	return r
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) (any, error) {
	var req loginRequest
	if err := boundary.BindJSON(r, &req); err != nil {
		return nil, err
	}
	return h.issuer.Login(r.Context(), req.Username, req.Password)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) (any, error) {
	var req refreshRequest
	if err := boundary.BindJSON(r, &req); err != nil {
		return nil, err
	}
	return h.issuer.Refresh(r.Context(), req.RefreshToken)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) (any, error) {
	return nil, h.issuer.Logout(r.Context())
}

func (h *handler) myPermissions(w http.ResponseWriter, r *http.Request) (any, error) {
	p, _ := auth.PrincipalFrom(r.Context())
	perms, err := h.sync.Permissions(r.Context(), p.UserID)
	if err != nil {
		return nil, cacheErr(err)
	}
	if perms == nil {
		perms = []string{}
	}
	return permissionsView{UserID: p.UserID, Username: p.Username, Permissions: perms}, nil
}

func (h *handler) refreshRolePermissions(w http.ResponseWriter, r *http.Request) (any, error) {
	rep, err := h.sync.RefreshAll(r.Context())
	if err != nil {
		return nil, cacheErr(err)
	}
	log.WithTrace(r.Context()).WithFields(log.Fields{
		"total":     rep.Total,
		"succeeded": rep.Succeeded,
		"failed":    rep.Failed,
		"pruned":    rep.Pruned,
	}).Info("iam: role permissions refreshed")
	return rep, nil
}

func (h *handler) evictRole(w http.ResponseWriter, r *http.Request) (any, error) {
	roleID, err := pathID(r, "roleId")
	if err != nil {
		return nil, err
	}
	if err := h.sync.InvalidateRole(r.Context(), roleID); err != nil {
		return nil, cacheErr(err)
	}
	return nil, nil
}

func (h *handler) evictUser(w http.ResponseWriter, r *http.Request) (any, error) {
	userID, err := pathID(r, "userId")
	if err != nil {
		return nil, err
	}
	if err := h.sync.EvictUser(r.Context(), userID); err != nil {
		return nil, cacheErr(err)
	}
	return nil, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.NewValidation(name, name+" must be a positive integer")
	}
	return id, nil
}

// cacheErr tags raw Redis failures; coded errors pass through.
func cacheErr(err error) error {
	if errs.CodeOf(err) != codes.ErrInternal.Numeric {
		return err
	}
	return errs.Wrap(codes.ErrCache, err)
}
