package menus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-admin/meridian-admin/internal/shared"
)

const menuColumns = `id, title, name, parent_id, sort, COALESCE(icon, ''), COALESCE(path, ''),
	menu_type, COALESCE(component, ''), COALESCE(perms, ''), status, show, cache,
	COALESCE(remark, ''), created_at`

// Repository provides PostgreSQL backed persistence for menus. Permission
// lookups for concurrent requests with the same role set are collapsed
// through a singleflight group.
type Repository struct {
	pool  *pgxpool.Pool
	group singleflight.Group
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ByID fetches a menu by primary key.
func (r *Repository) ByID(ctx context.Context, id int64) (*Menu, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+menuColumns+` FROM sys_menu WHERE id = $1`, id)
	m, err := scanMenu(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// Exists reports whether the menu id is present.
func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sys_menu WHERE id = $1`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("menus: exists: %w", err)
	}
	return n > 0, nil
}

// All loads every menu ordered for tree assembly.
func (r *Repository) All(ctx context.Context) ([]Menu, error) {
	return r.query(ctx, `SELECT `+menuColumns+` FROM sys_menu ORDER BY sort, id`)
}

// ByRoleIDs loads the menus assigned to any of the given roles.
func (r *Repository) ByRoleIDs(ctx context.Context, roleIDs []int64) ([]Menu, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	return r.query(ctx,
		`SELECT DISTINCT m.id, m.title, m.name, m.parent_id, m.sort,
		 COALESCE(m.icon, ''), COALESCE(m.path, ''), m.menu_type,
		 COALESCE(m.component, ''), COALESCE(m.perms, ''), m.status, m.show,
		 m.cache, COALESCE(m.remark, ''), m.created_at
		 FROM sys_menu m
		 JOIN sys_role_menu rm ON rm.menu_id = m.id
		 WHERE rm.role_id = ANY($1) AND m.status = 1
		 ORDER BY m.sort, m.id`, roleIDs)
}

// ChildCount reports how many menus reference id as parent.
func (r *Repository) ChildCount(ctx context.Context, id int64) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sys_menu WHERE parent_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("menus: child count: %w", err)
	}
	return n, nil
}

// Parents returns the id to parent mapping for cycle detection.
func (r *Repository) Parents(ctx context.Context) (map[int64]*int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, parent_id FROM sys_menu`)
	if err != nil {
		return nil, fmt.Errorf("menus: parents: %w", err)
	}
	defer rows.Close()

	parents := make(map[int64]*int64)
	for rows.Next() {
		var id int64
		var parent *int64
		if err := rows.Scan(&id, &parent); err != nil {
			return nil, fmt.Errorf("menus: scan parent: %w", err)
		}
		parents[id] = parent
	}
	return parents, rows.Err()
}

// Create inserts the menu.
func (r *Repository) Create(ctx context.Context, m *Menu) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sys_menu (title, name, parent_id, sort, icon, path, menu_type, component, perms, status, show, cache, remark, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12, NULLIF($13, ''), NOW())
		 RETURNING id, created_at`,
		m.Title, m.Name, m.ParentID, m.Sort, m.Icon, m.Path, m.MenuType,
		m.Component, m.Perms, m.Status, m.Show, m.Cache, m.Remark,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return wrapUniqueViolation(err)
	}
	return nil
}

// Update rewrites the mutable fields.
func (r *Repository) Update(ctx context.Context, m *Menu) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sys_menu SET title = $2, name = $3, parent_id = $4, sort = $5,
		 icon = NULLIF($6, ''), path = NULLIF($7, ''), menu_type = $8,
		 component = NULLIF($9, ''), perms = NULLIF($10, ''), status = $11,
		 show = $12, cache = $13, remark = NULLIF($14, '')
		 WHERE id = $1`,
		m.ID, m.Title, m.Name, m.ParentID, m.Sort, m.Icon, m.Path, m.MenuType,
		m.Component, m.Perms, m.Status, m.Show, m.Cache, m.Remark)
	if err != nil {
		return 0, wrapUniqueViolation(err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes the menu and its role links.
func (r *Repository) Delete(ctx context.Context, id int64) (int64, error) {
	if _, err := r.pool.Exec(ctx, `DELETE FROM sys_role_menu WHERE menu_id = $1`, id); err != nil {
		return 0, fmt.Errorf("menus: delete links: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM sys_menu WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("menus: delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PermissionsFor returns the perms strings of enabled button menus reachable
// from the given roles. Concurrent identical lookups share one query.
func (r *Repository) PermissionsFor(ctx context.Context, roleIDs []int64, roleNames []string) ([]string, error) {
	key := permsKey(roleIDs, roleNames)
	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.permissionsFor(ctx, roleIDs, roleNames)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (r *Repository) permissionsFor(ctx context.Context, roleIDs []int64, roleNames []string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT m.perms FROM sys_menu m
		 JOIN sys_role_menu rm ON rm.menu_id = m.id
		 JOIN sys_role r ON r.id = rm.role_id
		 WHERE (r.id = ANY($1) OR r.name = ANY($2))
		   AND r.status = 1 AND m.status = 1 AND m.perms IS NOT NULL`,
		roleIDs, roleNames)
	if err != nil {
		return nil, fmt.Errorf("menus: permissions: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("menus: scan perms: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func permsKey(roleIDs []int64, roleNames []string) string {
	var b strings.Builder
	for _, id := range roleIDs {
		b.WriteString(strconv.FormatInt(id, 10))
		b.WriteByte(',')
	}
	b.WriteByte('|')
	for _, name := range roleNames {
		b.WriteString(name)
		b.WriteByte(',')
	}
	return b.String()
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]Menu, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("menus: query: %w", err)
	}
	defer rows.Close()

	var result []Menu
	for rows.Next() {
		m, err := scanMenu(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	return result, rows.Err()
}

func scanMenu(row pgx.Row) (*Menu, error) {
	var m Menu
	err := row.Scan(&m.ID, &m.Title, &m.Name, &m.ParentID, &m.Sort, &m.Icon, &m.Path,
		&m.MenuType, &m.Component, &m.Perms, &m.Status, &m.Show, &m.Cache,
		&m.Remark, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("menus: scan: %w", err)
	}
	return &m, nil
}

func wrapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return fmt.Errorf("menus: write: %w", err)
}
