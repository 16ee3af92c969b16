package systemapi

import (
	"context"
	"net/url"
	"strconv"

	"github.com/Goden-Gun/ezadmin/pkg/rpc"
)

// HTTPClient calls system-service over the envelope transport.
type HTTPClient struct {
	rpc *rpc.Client
}

func NewHTTPClient(c *rpc.Client) *HTTPClient {
	return &HTTPClient{rpc: c}
}

// AuthenticateUser is not retried: credential checks are not blindly repeated.
func (c *HTTPClient) AuthenticateUser(ctx context.Context, req AuthenticateRequest) (*UserAuthentication, error) {
	return rpc.Post[*UserAuthentication](ctx, c.rpc, PathAuthenticate, req)
}

func (c *HTTPClient) GetAllRolePermissions(ctx context.Context) ([]RolePermission, error) {
	return rpc.RetryGet[[]RolePermission](ctx, c.rpc, PathAllRolePermissions, nil)
}

func (c *HTTPClient) GetUserRoles(ctx context.Context, userID int64) (*UserRoles, error) {
	q := url.Values{"userId": {strconv.FormatInt(userID, 10)}}
	return rpc.RetryGet[*UserRoles](ctx, c.rpc, PathUserRoles, q)
}
