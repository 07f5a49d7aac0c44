package postgres

import (
	"context"

	"github.com/jwalitptl/practice-api/internal/model"
	"github.com/jwalitptl/practice-api/internal/repository"
)

type rolePermissionRepository struct {
	BaseRepository
}

func NewRolePermissionRepository(base BaseRepository) repository.RolePermissionRepository {
	return &rolePermissionRepository{base}
}

func (r *rolePermissionRepository) ListByRole(ctx context.Context, role model.Role) ([]model.PermissionCode, error) {
	query := `SELECT permission FROM role_permissions WHERE role = $1 ORDER BY permission`

	codes := []model.PermissionCode{}
	if err := r.selectAll(ctx, r.db, "list role permissions", &codes, query, role); err != nil {
		return nil, mapError("list role permissions", "role permission", err)
	}
	return codes, nil
}

func (r *rolePermissionRepository) List(ctx context.Context) ([]model.RolePermission, error) {
	query := `SELECT role, permission FROM role_permissions ORDER BY role, permission`

	rows := []model.RolePermission{}
	if err := r.selectAll(ctx, r.db, "list role permissions", &rows, query); err != nil {
		return nil, mapError("list role permissions", "role permission", err)
	}
	return rows, nil
}

// Grant is idempotent.
func (r *rolePermissionRepository) Grant(ctx context.Context, role model.Role, permission model.PermissionCode) error {
	query := `
		INSERT INTO role_permissions (role, permission)
		VALUES ($1, $2)
		ON CONFLICT (role, permission) DO NOTHING
	`
	if _, err := r.exec(ctx, r.db, "grant permission", query, role, permission); err != nil {
		return mapError("grant permission", "role permission", err)
	}
	return nil
}

func (r *rolePermissionRepository) Revoke(ctx context.Context, role model.Role, permission model.PermissionCode) error {
	query := `DELETE FROM role_permissions WHERE role = $1 AND permission = $2`
	return r.execOne(ctx, r.db, "revoke permission", "role permission", query, role, permission)
}
