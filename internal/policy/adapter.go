package policy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const adapterTimeout = 10 * time.Second

// pgxAdapter persists casbin rules in the sys_casbin_rule table. Each row is
// (ptype, v0..v5); a unique index over the full tuple backs rule uniqueness
// at the storage layer.
type pgxAdapter struct {
	pool *pgxpool.Pool
}

var (
	_ persist.Adapter      = (*pgxAdapter)(nil)
	_ persist.BatchAdapter = (*pgxAdapter)(nil)
)

func newPgxAdapter(pool *pgxpool.Pool) *pgxAdapter {
	return &pgxAdapter{pool: pool}
}

// LoadPolicy loads all rules from storage into the model.
func (a *pgxAdapter) LoadPolicy(m model.Model) error {
	ctx, cancel := context.WithTimeout(context.Background(), adapterTimeout)
	defer cancel()

	rows, err := a.pool.Query(ctx, `SELECT ptype, v0, v1, v2, v3, v4, v5 FROM sys_casbin_rule ORDER BY id`)
	if err != nil {
		return fmt.Errorf("policy: load: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ptype string
		values := make([]*string, 6)
		if err := rows.Scan(&ptype, &values[0], &values[1], &values[2], &values[3], &values[4], &values[5]); err != nil {
			return fmt.Errorf("policy: load scan: %w", err)
		}
		line := []string{ptype}
		for _, v := range values {
			if v == nil || *v == "" {
				break
			}
			line = append(line, *v)
		}
		if err := persist.LoadPolicyArray(line, m); err != nil {
			return fmt.Errorf("policy: load line: %w", err)
		}
	}
	return rows.Err()
}

// SavePolicy rewrites the whole table from the model inside one transaction.
func (a *pgxAdapter) SavePolicy(m model.Model) error {
	ctx, cancel := context.WithTimeout(context.Background(), adapterTimeout)
	defer cancel()

	tx, err := a.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("policy: save begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM sys_casbin_rule`); err != nil {
		return fmt.Errorf("policy: save truncate: %w", err)
	}
	for _, section := range []string{"p", "g"} {
		for ptype, ast := range m[section] {
			for _, rule := range ast.Policy {
				if err := insertRule(ctx, tx, ptype, rule); err != nil {
					return err
				}
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("policy: save commit: %w", err)
	}
	return nil
}

// AddPolicy inserts a single rule row.
func (a *pgxAdapter) AddPolicy(_ string, ptype string, rule []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), adapterTimeout)
	defer cancel()
	return insertRule(ctx, a.pool, ptype, rule)
}

// AddPolicies inserts rules as one transaction.
func (a *pgxAdapter) AddPolicies(_ string, ptype string, rules [][]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), adapterTimeout)
	defer cancel()

	tx, err := a.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("policy: add batch begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	for _, rule := range rules {
		if err := insertRule(ctx, tx, ptype, rule); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("policy: add batch commit: %w", err)
	}
	return nil
}

// RemovePolicy deletes a single rule row.
func (a *pgxAdapter) RemovePolicy(_ string, ptype string, rule []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), adapterTimeout)
	defer cancel()

	query, args := deleteQuery(ptype, rule)
	if _, err := a.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("policy: remove: %w", err)
	}
	return nil
}

// RemovePolicies deletes rules as one transaction.
func (a *pgxAdapter) RemovePolicies(_ string, ptype string, rules [][]string) error {
	ctx, cancel := context.WithTimeout(context.Background(), adapterTimeout)
	defer cancel()

	tx, err := a.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("policy: remove batch begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	for _, rule := range rules {
		query, args := deleteQuery(ptype, rule)
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("policy: remove batch: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("policy: remove batch commit: %w", err)
	}
	return nil
}

// RemoveFilteredPolicy deletes rules matching the populated fields starting
// at fieldIndex. Empty field values act as wildcards.
func (a *pgxAdapter) RemoveFilteredPolicy(_ string, ptype string, fieldIndex int, fieldValues ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), adapterTimeout)
	defer cancel()

	var sb strings.Builder
	sb.WriteString(`DELETE FROM sys_casbin_rule WHERE ptype = $1`)
	args := []any{ptype}
	for i, v := range fieldValues {
		if v == "" {
			continue
		}
		args = append(args, v)
		fmt.Fprintf(&sb, " AND v%d = $%d", fieldIndex+i, len(args))
	}
	if _, err := a.pool.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("policy: remove filtered: %w", err)
	}
	return nil
}

// execer is satisfied by both pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertRule(ctx context.Context, db execer, ptype string, rule []string) error {
	values := make([]any, 6)
	for i := range values {
		if i < len(rule) {
			values[i] = rule[i]
		} else {
			values[i] = ""
		}
	}
	_, err := db.Exec(ctx,
		`INSERT INTO sys_casbin_rule (ptype, v0, v1, v2, v3, v4, v5) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (ptype, v0, v1, v2, v3, v4, v5) DO NOTHING`,
		append([]any{ptype}, values...)...)
	if err != nil {
		return fmt.Errorf("policy: insert rule: %w", err)
	}
	return nil
}

func deleteQuery(ptype string, rule []string) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`DELETE FROM sys_casbin_rule WHERE ptype = $1`)
	args := []any{ptype}
	for i, v := range rule {
		args = append(args, v)
		fmt.Fprintf(&sb, " AND v%d = $%d", i, len(args))
	}
	return sb.String(), args
}
