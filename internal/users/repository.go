package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-admin/meridian-admin/internal/platform/db"
	"github.com/meridian-admin/meridian-admin/internal/shared"
)

const userColumns = `id, uuid, username, nickname, password, email,
	COALESCE(phone, ''), COALESCE(avatar, ''), is_superuser, is_staff,
	is_multi_login, status, dept_id, join_time, last_login_time`

// Repository provides PostgreSQL backed persistence for user accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ByID fetches a user by primary key.
func (r *Repository) ByID(ctx context.Context, id int64) (*User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM sys_user WHERE id = $1`, id)
}

// ByUsername fetches a user by unique username.
func (r *Repository) ByUsername(ctx context.Context, username string) (*User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM sys_user WHERE username = $1`, username)
}

// ByUUID fetches a user by stable external identifier.
func (r *Repository) ByUUID(ctx context.Context, uuid string) (*User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM sys_user WHERE uuid = $1`, uuid)
}

// EmailTaken reports whether the email is already registered.
func (r *Repository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sys_user WHERE email = $1`, email).Scan(&n); err != nil {
		return false, fmt.Errorf("users: check email: %w", err)
	}
	return n > 0, nil
}

// Create inserts the account and its role memberships in one transaction.
func (r *Repository) Create(ctx context.Context, u *User, roleIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO sys_user (uuid, username, nickname, password, email, phone, is_superuser, is_staff, is_multi_login, status, dept_id, join_time)
			 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, NOW())
			 RETURNING id, join_time`,
			u.UUID, u.Username, u.Nickname, u.PasswordHash, u.Email, u.Phone,
			u.IsSuperuser, u.IsStaff, u.IsMultiLogin, u.Status, u.DeptID,
		).Scan(&u.ID, &u.JoinTime)
		if err != nil {
			return wrapUniqueViolation(err)
		}
		for _, roleID := range roleIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO sys_user_role (user_id, role_id) VALUES ($1, $2)`, u.ID, roleID); err != nil {
				return fmt.Errorf("users: attach role: %w", err)
			}
		}
		u.RoleIDs = roleIDs
		return nil
	})
}

// Update rewrites profile fields and replaces role memberships.
func (r *Repository) Update(ctx context.Context, u *User, roleIDs []int64) (int64, error) {
	var affected int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE sys_user SET username = $2, nickname = $3, email = $4, phone = NULLIF($5, ''), dept_id = $6
			 WHERE id = $1`,
			u.ID, u.Username, u.Nickname, u.Email, u.Phone, u.DeptID)
		if err != nil {
			return wrapUniqueViolation(err)
		}
		affected = tag.RowsAffected()
		if _, err := tx.Exec(ctx, `DELETE FROM sys_user_role WHERE user_id = $1`, u.ID); err != nil {
			return fmt.Errorf("users: clear roles: %w", err)
		}
		for _, roleID := range roleIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO sys_user_role (user_id, role_id) VALUES ($1, $2)`, u.ID, roleID); err != nil {
				return fmt.Errorf("users: attach role: %w", err)
			}
		}
		return nil
	})
	return affected, err
}

// UpdateAvatar sets the avatar path.
func (r *Repository) UpdateAvatar(ctx context.Context, id int64, avatar string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE sys_user SET avatar = NULLIF($2, '') WHERE id = $1`, id, avatar)
	if err != nil {
		return 0, fmt.Errorf("users: update avatar: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ResetPassword replaces the stored hash.
func (r *Repository) ResetPassword(ctx context.Context, id int64, hash string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE sys_user SET password = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return 0, fmt.Errorf("users: reset password: %w", err)
	}
	return tag.RowsAffected(), nil
}

// TouchLogin records the last login time.
func (r *Repository) TouchLogin(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `UPDATE sys_user SET last_login_time = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("users: touch login: %w", err)
	}
	return nil
}

// ToggleSuperuser flips the superuser flag and returns the affected count.
func (r *Repository) ToggleSuperuser(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE sys_user SET is_superuser = NOT is_superuser WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("users: toggle superuser: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ToggleActive flips the account status between enabled and disabled.
func (r *Repository) ToggleActive(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sys_user SET status = CASE status WHEN 1 THEN 0 ELSE 1 END WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("users: toggle active: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes the account and its role memberships.
func (r *Repository) Delete(ctx context.Context, id int64) (int64, error) {
	var affected int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sys_user_role WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("users: delete roles: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM sys_user WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("users: delete: %w", err)
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}

// List pages through users, optionally filtered by username substring.
func (r *Repository) List(ctx context.Context, username string, filters shared.PageFilters) ([]User, shared.PagingInfo, error) {
	filters = filters.Normalize(20, 100)
	query := `SELECT ` + userColumns + ` FROM sys_user WHERE 1=1`
	args := []any{}
	if username != "" {
		args = append(args, "%"+username+"%")
		query += fmt.Sprintf(" AND username ILIKE $%d", len(args))
	}
	args = append(args, filters.PageSize+1, filters.Offset())
	query += fmt.Sprintf(" ORDER BY join_time DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.PagingInfo{}, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, shared.PagingInfo{}, err
		}
		result = append(result, *u)
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

// Roles loads the role ids and names directly assigned to the user.
func (r *Repository) Roles(ctx context.Context, userID int64) ([]int64, []string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.name FROM sys_role r
		 JOIN sys_user_role ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1 AND r.status = 1
		 ORDER BY r.id`, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("users: roles: %w", err)
	}
	defer rows.Close()

	var ids []int64
	var names []string
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, nil, fmt.Errorf("users: scan role: %w", err)
		}
		ids = append(ids, id)
		names = append(names, name)
	}
	return ids, names, rows.Err()
}

func (r *Repository) one(ctx context.Context, query string, arg any) (*User, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var lastLogin *time.Time
	err := row.Scan(&u.ID, &u.UUID, &u.Username, &u.Nickname, &u.PasswordHash, &u.Email,
		&u.Phone, &u.Avatar, &u.IsSuperuser, &u.IsStaff, &u.IsMultiLogin, &u.Status,
		&u.DeptID, &u.JoinTime, &lastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("users: scan: %w", err)
	}
	u.LastLoginTime = lastLogin
	return &u, nil
}

func wrapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return fmt.Errorf("users: write: %w", err)
}
