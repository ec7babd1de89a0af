package depts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-admin/meridian-admin/internal/shared"
)

const deptColumns = `id, name, parent_id, sort, COALESCE(leader, ''), COALESCE(phone, ''),
	COALESCE(email, ''), status, created_at`

// Repository provides PostgreSQL backed persistence for departments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ByID fetches a department by primary key.
func (r *Repository) ByID(ctx context.Context, id int64) (*Dept, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+deptColumns+` FROM sys_dept WHERE id = $1`, id)
	d, err := scanDept(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// Exists reports whether the department id is present.
func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sys_dept WHERE id = $1`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("depts: exists: %w", err)
	}
	return n > 0, nil
}

// All loads every department ordered for tree assembly.
func (r *Repository) All(ctx context.Context) ([]Dept, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+deptColumns+` FROM sys_dept ORDER BY sort, id`)
	if err != nil {
		return nil, fmt.Errorf("depts: list: %w", err)
	}
	defer rows.Close()

	var result []Dept
	for rows.Next() {
		d, err := scanDept(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

// ChildCount reports how many departments reference id as parent.
func (r *Repository) ChildCount(ctx context.Context, id int64) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sys_dept WHERE parent_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("depts: child count: %w", err)
	}
	return n, nil
}

// UserCount reports how many users belong to the department.
func (r *Repository) UserCount(ctx context.Context, id int64) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sys_user WHERE dept_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("depts: user count: %w", err)
	}
	return n, nil
}

// Parents returns the id to parent mapping for cycle detection.
func (r *Repository) Parents(ctx context.Context) (map[int64]*int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, parent_id FROM sys_dept`)
	if err != nil {
		return nil, fmt.Errorf("depts: parents: %w", err)
	}
	defer rows.Close()

	parents := make(map[int64]*int64)
	for rows.Next() {
		var id int64
		var parent *int64
		if err := rows.Scan(&id, &parent); err != nil {
			return nil, fmt.Errorf("depts: scan parent: %w", err)
		}
		parents[id] = parent
	}
	return parents, rows.Err()
}

// Create inserts the department.
func (r *Repository) Create(ctx context.Context, d *Dept) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sys_dept (name, parent_id, sort, leader, phone, email, status, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, NOW())
		 RETURNING id, created_at`,
		d.Name, d.ParentID, d.Sort, d.Leader, d.Phone, d.Email, d.Status,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return wrapUniqueViolation(err)
	}
	return nil
}

// Update rewrites the mutable fields.
func (r *Repository) Update(ctx context.Context, d *Dept) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sys_dept SET name = $2, parent_id = $3, sort = $4,
		 leader = NULLIF($5, ''), phone = NULLIF($6, ''), email = NULLIF($7, ''), status = $8
		 WHERE id = $1`,
		d.ID, d.Name, d.ParentID, d.Sort, d.Leader, d.Phone, d.Email, d.Status)
	if err != nil {
		return 0, wrapUniqueViolation(err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes the department.
func (r *Repository) Delete(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sys_dept WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("depts: delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanDept(row pgx.Row) (*Dept, error) {
	var d Dept
	err := row.Scan(&d.ID, &d.Name, &d.ParentID, &d.Sort, &d.Leader, &d.Phone,
		&d.Email, &d.Status, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("depts: scan: %w", err)
	}
	return &d, nil
}

func wrapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return fmt.Errorf("depts: write: %w", err)
}
