package dicts

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

const typeColumns = `id, name, code, status, COALESCE(remark, ''), created_at`

const dataColumns = `id, label, value, sort, status, COALESCE(remark, ''), type_id, created_at`

// Repository provides PostgreSQL backed persistence for dictionaries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TypeByID fetches a dictionary type by primary key.
func (r *Repository) TypeByID(ctx context.Context, id int64) (*DictType, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+typeColumns+` FROM sys_dict_type WHERE id = $1`, id)
	return scanType(row)
}

// TypeByCode fetches a dictionary type by unique code.
func (r *Repository) TypeByCode(ctx context.Context, code string) (*DictType, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+typeColumns+` FROM sys_dict_type WHERE code = $1`, code)
	return scanType(row)
}

// TypeExists reports whether the dictionary type id is present.
func (r *Repository) TypeExists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sys_dict_type WHERE id = $1`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("dicts: type exists: %w", err)
	}
	return n > 0, nil
}

// CreateType inserts the dictionary type.
func (r *Repository) CreateType(ctx context.Context, t *DictType) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sys_dict_type (name, code, status, remark, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NOW())
		 RETURNING id, created_at`,
		t.Name, t.Code, t.Status, t.Remark,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return wrapUniqueViolation(err)
	}
	return nil
}

// UpdateType rewrites the mutable fields.
func (r *Repository) UpdateType(ctx context.Context, t *DictType) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sys_dict_type SET name = $2, code = $3, status = $4, remark = NULLIF($5, '')
		 WHERE id = $1`,
		t.ID, t.Name, t.Code, t.Status, t.Remark)
	if err != nil {
		return 0, wrapUniqueViolation(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteType removes the dictionary type together with its entries.
func (r *Repository) DeleteType(ctx context.Context, id int64) (int64, error) {
	var affected int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sys_dict_data WHERE type_id = $1`, id); err != nil {
			return fmt.Errorf("dicts: delete entries: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM sys_dict_type WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("dicts: delete type: %w", err)
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}

// ListTypes pages through dictionary types, optionally filtered by name or
// code substring.
func (r *Repository) ListTypes(ctx context.Context, name, code string, filters shared.PageFilters) ([]DictType, shared.PagingInfo, error) {
	filters = filters.Normalize(20, 100)
	query := `SELECT ` + typeColumns + ` FROM sys_dict_type WHERE 1=1`
	args := []any{}
	if name != "" {
		args = append(args, "%"+name+"%")
		query += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}
	if code != "" {
		args = append(args, "%"+code+"%")
		query += fmt.Sprintf(" AND code ILIKE $%d", len(args))
	}
	args = append(args, filters.PageSize+1, filters.Offset())
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.PagingInfo{}, fmt.Errorf("dicts: list types: %w", err)
	}
	defer rows.Close()

	var result []DictType
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, shared.PagingInfo{}, err
		}
		result = append(result, *t)
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

// DataByID fetches a dictionary entry by primary key.
func (r *Repository) DataByID(ctx context.Context, id int64) (*DictData, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+dataColumns+` FROM sys_dict_data WHERE id = $1`, id)
	return scanData(row)
}

// DataByLabel fetches a dictionary entry by unique label.
func (r *Repository) DataByLabel(ctx context.Context, label string) (*DictData, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+dataColumns+` FROM sys_dict_data WHERE label = $1`, label)
	return scanData(row)
}

// CreateData inserts the dictionary entry.
func (r *Repository) CreateData(ctx context.Context, d *DictData) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO sys_dict_data (label, value, sort, status, remark, type_id, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NOW())
		 RETURNING id, created_at`,
		d.Label, d.Value, d.Sort, d.Status, d.Remark, d.TypeID,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return wrapUniqueViolation(err)
	}
	return nil
}

// UpdateData rewrites the mutable fields.
func (r *Repository) UpdateData(ctx context.Context, d *DictData) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sys_dict_data SET label = $2, value = $3, sort = $4, status = $5,
			remark = NULLIF($6, ''), type_id = $7
		 WHERE id = $1`,
		d.ID, d.Label, d.Value, d.Sort, d.Status, d.Remark, d.TypeID)
	if err != nil {
		return 0, wrapUniqueViolation(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteData removes the dictionary entry.
func (r *Repository) DeleteData(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sys_dict_data WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("dicts: delete entry: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListData pages through entries, optionally narrowed to one type and
// filtered by label substring or status.
func (r *Repository) ListData(ctx context.Context, typeID int64, label string, status *int, filters shared.PageFilters) ([]DictData, shared.PagingInfo, error) {
	filters = filters.Normalize(20, 100)
	query := `SELECT ` + dataColumns + ` FROM sys_dict_data WHERE 1=1`
	args := []any{}
	if typeID > 0 {
		args = append(args, typeID)
		query += fmt.Sprintf(" AND type_id = $%d", len(args))
	}
	if label != "" {
		args = append(args, "%"+label+"%")
		query += fmt.Sprintf(" AND label ILIKE $%d", len(args))
	}
	if status != nil {
		args = append(args, *status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, filters.PageSize+1, filters.Offset())
	query += fmt.Sprintf(" ORDER BY sort, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.PagingInfo{}, fmt.Errorf("dicts: list entries: %w", err)
	}
	defer rows.Close()

	var result []DictData
	for rows.Next() {
		d, err := scanData(rows)
		if err != nil {
			return nil, shared.PagingInfo{}, err
		}
		result = append(result, *d)
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

func scanType(row pgx.Row) (*DictType, error) {
	var t DictType
	err := row.Scan(&t.ID, &t.Name, &t.Code, &t.Status, &t.Remark, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("dicts: scan type: %w", err)
	}
	return &t, nil
}

func scanData(row pgx.Row) (*DictData, error) {
	var d DictData
	err := row.Scan(&d.ID, &d.Label, &d.Value, &d.Sort, &d.Status, &d.Remark, &d.TypeID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("dicts: scan entry: %w", err)
	}
	return &d, nil
}

func wrapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return fmt.Errorf("dicts: write: %w", err)
}
