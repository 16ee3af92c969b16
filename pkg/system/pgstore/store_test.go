package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Goden-Gun/ezadmin/pkg/system"
)

// Runs against a disposable database named by EZADMIN_TEST_POSTGRES_DSN.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("EZADMIN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("EZADMIN_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `DROP TABLE IF EXISTS sys_user_role, sys_role_permission, sys_role, sys_user`)
	require.NoError(t, err)
	s := New(pool)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestSchemaStatements(t *testing.T) {
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS sys_user ")
	assert.Contains(t, schemaSQL, "sys_user_role")
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SeedAdmin(ctx, "hash", []string{"iam:cache:manage", "system:user:read"}))
	require.NoError(t, s.SeedAdmin(ctx, "hash", []string{"iam:cache:manage"}))

	u, err := s.UserByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "hash", u.PasswordHash)
	assert.Equal(t, system.StatusActive, u.Status)

	_, err = s.UserByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, system.ErrNotFound)

	ids, err := s.RoleIDsByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	grants, err := s.AllRolePermissions(ctx)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, []string{"iam:cache:manage", "system:user:read"}, grants[0].Permissions)

	require.NoError(t, s.SetRolePermissions(ctx, ids[0], nil))
	grants, err = s.AllRolePermissions(ctx)
	require.NoError(t, err)
	assert.Empty(t, grants[0].Permissions)
	assert.ErrorIs(t, s.SetRolePermissions(ctx, 9999, []string{"x"}), system.ErrNotFound)

	assert.ErrorIs(t, s.AssignUserRoles(ctx, u.ID, []int64{ids[0], 9999}), system.ErrNotFound)
	require.NoError(t, s.AssignUserRoles(ctx, u.ID, nil))
	ids, err = s.RoleIDsByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, s.SetUserStatus(ctx, u.ID, system.StatusDisabled))
	u, err = s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, system.StatusDisabled, u.Status)
	assert.ErrorIs(t, s.SetUserStatus(ctx, 9999, 0), system.ErrNotFound)
}
