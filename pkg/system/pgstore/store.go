// Package pgstore is the PostgreSQL implementation of system.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Goden-Gun/ezadmin/pkg/system"
)

//go:embed migrations/schema.sql
var schemaSQL string

// Store persists users and roles in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ system.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate ensures the required tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SeedAdmin creates the super-admin role and the admin account when absent.
func (s *Store) SeedAdmin(ctx context.Context, passwordHash string, perms []string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var roleID int64
		err := tx.QueryRow(ctx, `
INSERT INTO sys_role (label, name) VALUES ('super_admin', '超级管理员')
ON CONFLICT (label) DO UPDATE SET label = EXCLUDED.label
RETURNING id`).Scan(&roleID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO sys_role_permission (role_id, permission)
SELECT $1, p FROM unnest($2::text[]) AS p
ON CONFLICT DO NOTHING`, roleID, perms); err != nil {
			return err
		}
		var userID int64
		err = tx.QueryRow(ctx, `
INSERT INTO sys_user (username, nickname, password_hash, status) VALUES ('admin', '管理员', $1, 1)
ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
RETURNING id`, passwordHash).Scan(&userID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO sys_user_role (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roleID)
		return err
	})
}

const userColumns = `id, username, nickname, password_hash, status`

func (s *Store) UserByUsername(ctx context.Context, username string) (*system.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM sys_user WHERE username = $1`, username)
	return scanUser(row)
}

func (s *Store) UserByID(ctx context.Context, id int64) (*system.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM sys_user WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) RoleIDsByUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT role_id FROM sys_user_role WHERE user_id = $1 ORDER BY role_id`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (s *Store) RolesByIDs(ctx context.Context, ids []int64) ([]system.Role, error) {
	if len(ids) == 0 {
		return []system.Role{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, label, name FROM sys_role WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (system.Role, error) {
		var r system.Role
		err := row.Scan(&r.ID, &r.Label, &r.Name)
		return r, err
	})
}

func (s *Store) AllRolePermissions(ctx context.Context) ([]system.RoleGrant, error) {
	const query = `
SELECT r.id, r.label, r.name,
       COALESCE(array_agg(p.permission ORDER BY p.permission) FILTER (WHERE p.permission IS NOT NULL), '{}')
FROM sys_role r
LEFT JOIN sys_role_permission p ON p.role_id = r.id
GROUP BY r.id, r.label, r.name
ORDER BY r.id
`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (system.RoleGrant, error) {
		var g system.RoleGrant
		err := row.Scan(&g.Role.ID, &g.Role.Label, &g.Role.Name, &g.Permissions)
		return g, err
	})
}

func (s *Store) SetRolePermissions(ctx context.Context, roleID int64, perms []string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE sys_role SET updated_at = now() WHERE id = $1`, roleID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return system.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM sys_role_permission WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		if len(perms) == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `
INSERT INTO sys_role_permission (role_id, permission)
SELECT $1, p FROM unnest($2::text[]) AS p
ON CONFLICT DO NOTHING`, roleID, perms)
		return err
	})
}

func (s *Store) AssignUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	roleIDs = slices.Compact(slices.Sorted(slices.Values(roleIDs)))
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE sys_user SET updated_at = now() WHERE id = $1`, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return system.ErrNotFound
		}
		if len(roleIDs) > 0 {
			var known int
			if err := tx.QueryRow(ctx, `SELECT count(*) FROM sys_role WHERE id = ANY($1)`, roleIDs).Scan(&known); err != nil {
				return err
			}
			if known != len(roleIDs) {
				return system.ErrNotFound
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM sys_user_role WHERE user_id = $1`, userID); err != nil {
			return err
		}
		if len(roleIDs) == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `
INSERT INTO sys_user_role (user_id, role_id)
SELECT $1, r FROM unnest($2::bigint[]) AS r`, userID, roleIDs)
		return err
	})
}

func (s *Store) SetUserStatus(ctx context.Context, userID int64, status int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sys_user SET status = $2, updated_at = now() WHERE id = $1`, userID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return system.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*system.User, error) {
	var u system.User
	if err := row.Scan(&u.ID, &u.Username, &u.Nickname, &u.PasswordHash, &u.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, system.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
