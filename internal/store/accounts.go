package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

const accountColumns = `id, owner, name, institution, type, currency, account_number,
	current_balance, credit_limit, is_active, created_at, updated_at`

// Account returns the account with id.
func (q *Queries) Account(ctx context.Context, id string) (model.Account, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return a, err
}

// FindAccount returns the oldest active account the owner holds at institution.
func (q *Queries) FindAccount(ctx context.Context, owner, institution string) (model.Account, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts
		WHERE owner = ? AND institution = ? AND is_active = 1
		ORDER BY created_at, id LIMIT 1`, owner, institution)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("account at %s for %s: %w", institution, owner, ErrNotFound)
	}
	return a, err
}

// ListAccounts returns accounts ordered by creation. An empty owner lists everyone's.
func (q *Queries) ListAccounts(ctx context.Context, owner string, includeInactive bool) ([]model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE (? = '' OR owner = ?)`
	if !includeInactive {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY created_at, id`

	rows, err := q.q.QueryContext(ctx, query, owner, owner)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertAccount stores a new account.
func (q *Queries) InsertAccount(ctx context.Context, a model.Account) error {
	_, err := q.q.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Owner, a.Name, a.Institution, string(a.Type), a.Currency, a.AccountNumber,
		a.CurrentBalance.String(), a.CreditLimit.String(), boolInt(a.Active),
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// SetBalance overwrites the cached balance.
func (q *Queries) SetBalance(ctx context.Context, id string, balance decimal.Decimal, now time.Time) error {
	return q.updateAccount(ctx, id, `current_balance = ?`, balance.String(), now)
}

// SetActive toggles the soft-delete flag.
func (q *Queries) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	return q.updateAccount(ctx, id, `is_active = ?`, boolInt(active), now)
}

func (q *Queries) updateAccount(ctx context.Context, id, set string, value any, now time.Time) error {
	res, err := q.q.ExecContext(ctx, `UPDATE accounts SET `+set+`, updated_at = ? WHERE id = ?`,
		value, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("update account %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (model.Account, error) {
	var (
		a                model.Account
		typ              string
		balance, limit   string
		active           int
		created, updated string
	)
	err := s.Scan(&a.ID, &a.Owner, &a.Name, &a.Institution, &typ, &a.Currency, &a.AccountNumber,
		&balance, &limit, &active, &created, &updated)
	if err != nil {
		return model.Account{}, err
	}
	a.Type = model.AccountType(typ)
	a.Active = active == 1
	if a.CurrentBalance, err = decimal.NewFromString(balance); err != nil {
		return model.Account{}, fmt.Errorf("account %s balance %q: %w", a.ID, balance, err)
	}
	if a.CreditLimit, err = decimal.NewFromString(limit); err != nil {
		return model.Account{}, fmt.Errorf("account %s credit limit %q: %w", a.ID, limit, err)
	}
	a.CreatedAt = parseTime(created)
	a.UpdatedAt = parseTime(updated)
	return a, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
