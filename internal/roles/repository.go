package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-admin/meridian-admin/internal/platform/db"
	"github.com/meridian-admin/meridian-admin/internal/shared"
)

const roleColumns = `id, name, data_scope, status, COALESCE(remark, ''), created_at`

// Repository provides PostgreSQL backed persistence for roles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ByID fetches a role by primary key.
func (r *Repository) ByID(ctx context.Context, id int64) (*Role, error) {
	return r.one(ctx, `SELECT `+roleColumns+` FROM sys_role WHERE id = $1`, id)
}

// ByName fetches a role by unique name.
func (r *Repository) ByName(ctx context.Context, name string) (*Role, error) {
	return r.one(ctx, `SELECT `+roleColumns+` FROM sys_role WHERE name = $1`, name)
}

// Exists reports whether the role id is present.
func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sys_role WHERE id = $1`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("roles: exists: %w", err)
	}
	return n > 0, nil
}

// Create inserts the role.
func (r *Repository) Create(ctx context.Context, role *Role) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sys_role (name, data_scope, status, remark, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NOW())
		 RETURNING id, created_at`,
		role.Name, role.DataScope, role.Status, role.Remark,
	).Scan(&role.ID, &role.CreatedAt)
	if err != nil {
		return wrapUniqueViolation(err)
	}
	return nil
}

// Update rewrites the mutable fields.
func (r *Repository) Update(ctx context.Context, role *Role) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sys_role SET name = $2, data_scope = $3, status = $4, remark = NULLIF($5, '')
		 WHERE id = $1`,
		role.ID, role.Name, role.DataScope, role.Status, role.Remark)
	if err != nil {
		return 0, wrapUniqueViolation(err)
	}
	return tag.RowsAffected(), nil
}

// ReplaceMenus swaps the menu assignment for the role.
func (r *Repository) ReplaceMenus(ctx context.Context, roleID int64, menuIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sys_role_menu WHERE role_id = $1`, roleID); err != nil {
			return fmt.Errorf("roles: clear menus: %w", err)
		}
		for _, menuID := range menuIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO sys_role_menu (role_id, menu_id) VALUES ($1, $2)`, roleID, menuID); err != nil {
				return fmt.Errorf("roles: attach menu: %w", err)
			}
		}
		return nil
	})
}

// MenuIDs loads the menu assignment.
func (r *Repository) MenuIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT menu_id FROM sys_role_menu WHERE role_id = $1 ORDER BY menu_id`, roleID)
	if err != nil {
		return nil, fmt.Errorf("roles: menus: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("roles: scan menu: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UserCount reports how many users hold the role.
func (r *Repository) UserCount(ctx context.Context, roleID int64) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sys_user_role WHERE role_id = $1`, roleID).Scan(&n); err != nil {
		return 0, fmt.Errorf("roles: user count: %w", err)
	}
	return n, nil
}

// Delete removes the role together with its menu and user links.
func (r *Repository) Delete(ctx context.Context, id int64) (int64, error) {
	var affected int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sys_role_menu WHERE role_id = $1`, id); err != nil {
			return fmt.Errorf("roles: delete menus: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM sys_user_role WHERE role_id = $1`, id); err != nil {
			return fmt.Errorf("roles: delete members: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM sys_role WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("roles: delete: %w", err)
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}

// List pages through roles, optionally filtered by name substring.
func (r *Repository) List(ctx context.Context, name string, filters shared.PageFilters) ([]Role, shared.PagingInfo, error) {
	filters = filters.Normalize(20, 100)
	query := `SELECT ` + roleColumns + ` FROM sys_role WHERE 1=1`
	args := []any{}
	if name != "" {
		args = append(args, "%"+name+"%")
		query += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}
	args = append(args, filters.PageSize+1, filters.Offset())
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.PagingInfo{}, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()

	var result []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, shared.PagingInfo{}, err
		}
		result = append(result, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.PagingInfo{}, err
	}

	paging := shared.PagingInfo{Page: filters.Page, PageSize: filters.PageSize}
	if len(result) > filters.PageSize {
		result = result[:filters.PageSize]
		paging.HasNext = true
	}
	return result, paging, nil
}

func (r *Repository) one(ctx context.Context, query string, arg any) (*Role, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return role, nil
}

func scanRole(row pgx.Row) (*Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.DataScope, &role.Status, &role.Remark, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("roles: scan: %w", err)
	}
	return &role, nil
}

func wrapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return fmt.Errorf("roles: write: %w", err)
}
