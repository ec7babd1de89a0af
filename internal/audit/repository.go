package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-admin/meridian-admin/internal/shared"
)

// Repository provides PostgreSQL backed persistence for audit trails.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertOpera stores one operation record.
func (r *Repository) InsertOpera(ctx context.Context, entry OperaLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sys_opera_log (username, method, path, status, ip, user_agent, cost_ms, created_at)
		 VALUES (NULLIF($1, ''), $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)`,
		entry.Username, entry.Method, entry.Path, entry.Status, entry.IP,
		entry.UserAgent, entry.CostMs, createdAt(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("audit: insert opera log: %w", err)
	}
	return nil
}

// InsertLogin stores one login record.
func (r *Repository) InsertLogin(ctx context.Context, entry LoginLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sys_login_log (username, ip, user_agent, success, msg, created_at)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, NULLIF($5, ''), $6)`,
		entry.Username, entry.IP, entry.UserAgent, entry.Success, entry.Msg,
		createdAt(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("audit: insert login log: %w", err)
	}
	return nil
}

// ListOpera pages through operation records, newest first, optionally
// filtered by username.
func (r *Repository) ListOpera(ctx context.Context, username string, filters shared.PageFilters) ([]OperaLog, shared.PagingInfo, error) {
	filters = filters.Normalize(20, 100)
	query := `SELECT id, COALESCE(username, ''), method, path, status, COALESCE(ip, ''),
		COALESCE(user_agent, ''), cost_ms, created_at FROM sys_opera_log WHERE 1=1`
	args := []any{}
	if username != "" {
		args = append(args, username)
		query += fmt.Sprintf(" AND username = $%d", len(args))
	}
	args = append(args, filters.PageSize+1, filters.Offset())
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.PagingInfo{}, fmt.Errorf("audit: list opera: %w", err)
	}
	defer rows.Close()

	var result []OperaLog
	for rows.Next() {
		var e OperaLog
		if err := rows.Scan(&e.ID, &e.Username, &e.Method, &e.Path, &e.Status,
			&e.IP, &e.UserAgent, &e.CostMs, &e.CreatedAt); err != nil {
			return nil, shared.PagingInfo{}, fmt.Errorf("audit: scan opera: %w", err)
		}
		result = append(result, e)
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

// ListLogin pages through login records, newest first.
func (r *Repository) ListLogin(ctx context.Context, username string, filters shared.PageFilters) ([]LoginLog, shared.PagingInfo, error) {
	filters = filters.Normalize(20, 100)
	query := `SELECT id, username, COALESCE(ip, ''), COALESCE(user_agent, ''), success,
		COALESCE(msg, ''), created_at FROM sys_login_log WHERE 1=1`
	args := []any{}
	if username != "" {
		args = append(args, username)
		query += fmt.Sprintf(" AND username = $%d", len(args))
	}
	args = append(args, filters.PageSize+1, filters.Offset())
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.PagingInfo{}, fmt.Errorf("audit: list login: %w", err)
	}
	defer rows.Close()

	var result []LoginLog
	for rows.Next() {
		var e LoginLog
		if err := rows.Scan(&e.ID, &e.Username, &e.IP, &e.UserAgent, &e.Success,
			&e.Msg, &e.CreatedAt); err != nil {
			return nil, shared.PagingInfo{}, fmt.Errorf("audit: scan login: %w", err)
		}
		result = append(result, e)
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

// PruneBefore deletes records older than the cutoff from both trails.
func (r *Repository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"sys_opera_log", "sys_login_log"} {
		tag, err := r.pool.Exec(ctx, `DELETE FROM `+table+` WHERE created_at < $1`, cutoff)
		if err != nil {
			return total, fmt.Errorf("audit: prune %s: %w", table, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
