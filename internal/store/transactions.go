package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/model"
)

const transactionColumns = `seq, id, account_id, date, amount, direction, description,
	description_hash, natural_key, cheque_number, branch_code, post_date, value_date,
	reported_balance, category, category_confidence, category_source, corrected_by_user,
	dialect, created_at`

// TxFilter narrows transaction queries. Zero fields do not filter.
type TxFilter struct {
	AccountID     string
	Owner         string
	Direction     model.Direction
	Since         time.Time // inclusive
	Until         time.Time // inclusive
	Category      string
	Uncategorized bool
}

func (f TxFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.AccountID != "" {
		conds = append(conds, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Owner != "" {
		conds = append(conds, "account_id IN (SELECT id FROM accounts WHERE owner = ?)")
		args = append(args, f.Owner)
	}
	if f.Direction != "" {
		conds = append(conds, "direction = ?")
		args = append(args, string(f.Direction))
	}
	if !f.Since.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, f.Since.Format(model.DateLayout))
	}
	if !f.Until.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, f.Until.Format(model.DateLayout))
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.Uncategorized {
		conds = append(conds, "(category = '' OR category = ?)")
		args = append(args, model.Uncategorized)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// HasMatch reports whether the account already holds a transaction with the
// same date, amount and direction.
func (q *Queries) HasMatch(ctx context.Context, accountID string, date time.Time, amount decimal.Decimal, dir model.Direction) (bool, error) {
	var one int
	err := q.q.QueryRowContext(ctx, `SELECT 1 FROM transactions
		WHERE account_id = ? AND date = ? AND amount = ? AND direction = ? LIMIT 1`,
		accountID, date.Format(model.DateLayout), id.CanonicalAmount(amount), string(dir)).Scan(&one)
	return exists(err)
}

// HasNaturalKey reports whether the account already holds a transaction with key.
func (q *Queries) HasNaturalKey(ctx context.Context, accountID, key string) (bool, error) {
	var one int
	err := q.q.QueryRowContext(ctx, `SELECT 1 FROM transactions
		WHERE account_id = ? AND natural_key = ? LIMIT 1`, accountID, key).Scan(&one)
	return exists(err)
}

func exists(err error) (bool, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("duplicate lookup: %w", err)
	}
	return true, nil
}

// InsertTransaction stores t and sets its Seq.
func (q *Queries) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	var reported any
	if t.ReportedBalance != nil {
		reported = t.ReportedBalance.String()
	}
	res, err := q.q.ExecContext(ctx, `INSERT INTO transactions (
			id, account_id, date, amount, direction, description, description_hash, natural_key,
			cheque_number, branch_code, post_date, value_date, reported_balance,
			category, category_confidence, category_source, corrected_by_user, dialect, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.Date.Format(model.DateLayout), id.CanonicalAmount(t.Amount), string(t.Direction),
		t.Description, t.DescriptionHash, t.NaturalKey,
		t.Reference.ChequeNumber, t.Reference.BranchCode,
		optionalDate(t.Reference.PostDate), optionalDate(t.Reference.ValueDate), reported,
		t.Category, t.CategoryConfidence.String(), string(t.CategorySource), boolInt(t.CorrectedByUser),
		t.Dialect, formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	t.Seq = seq
	return nil
}

// Transaction returns one transaction by ID.
func (q *Queries) Transaction(ctx context.Context, txnID string) (model.Transaction, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, txnID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", txnID, ErrNotFound)
	}
	return t, err
}

// ListTransactions returns matching transactions newest first (date, then
// insertion order). A limit of zero returns every row.
func (q *Queries) ListTransactions(ctx context.Context, f TxFilter, limit, offset int) ([]model.Transaction, error) {
	where, args := f.where()
	query := `SELECT ` + transactionColumns + ` FROM transactions` + where + ` ORDER BY date DESC, seq DESC`
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountTransactions counts matching transactions.
func (q *Queries) CountTransactions(ctx context.Context, f TxFilter) (int, error) {
	where, args := f.where()
	var n int
	if err := q.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// Totals are the credit and debit sums over a set of transactions.
type Totals struct {
	Credits decimal.Decimal
	Debits  decimal.Decimal
	Count   int
}

// Net returns credits minus debits.
func (t Totals) Net() decimal.Decimal {
	return t.Credits.Sub(t.Debits)
}

// SumTransactions adds up matching transactions in exact decimal arithmetic.
func (q *Queries) SumTransactions(ctx context.Context, f TxFilter) (Totals, error) {
	where, args := f.where()
	rows, err := q.q.QueryContext(ctx, `SELECT amount, direction FROM transactions`+where, args...)
	if err != nil {
		return Totals{}, fmt.Errorf("sum transactions: %w", err)
	}
	defer rows.Close()

	totals := Totals{Credits: decimal.Zero, Debits: decimal.Zero}
	for rows.Next() {
		var raw, dir string
		if err := rows.Scan(&raw, &dir); err != nil {
			return Totals{}, fmt.Errorf("sum transactions: %w", err)
		}
		amt, err := decimal.NewFromString(raw)
		if err != nil {
			return Totals{}, fmt.Errorf("sum transactions: amount %q: %w", raw, err)
		}
		if model.Direction(dir) == model.Debit {
			totals.Debits = totals.Debits.Add(amt)
		} else {
			totals.Credits = totals.Credits.Add(amt)
		}
		totals.Count++
	}
	return totals, rows.Err()
}

// SetUserCategory records a user's category choice. It is never overwritten
// by automatic categorization afterwards.
func (q *Queries) SetUserCategory(ctx context.Context, txnID, category string) error {
	res, err := q.q.ExecContext(ctx, `UPDATE transactions
		SET category = ?, category_confidence = '1', category_source = ?, corrected_by_user = 1
		WHERE id = ?`, category, string(model.CategoryUser), txnID)
	if err != nil {
		return fmt.Errorf("set category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set category: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", txnID, ErrNotFound)
	}
	return nil
}

// SetAutoCategory stores an automatic category unless the row was corrected
// by a user or categorized by the statement itself. It reports whether the
// row changed.
func (q *Queries) SetAutoCategory(ctx context.Context, txnID, category string, confidence decimal.Decimal) (bool, error) {
	res, err := q.q.ExecContext(ctx, `UPDATE transactions
		SET category = ?, category_confidence = ?, category_source = ?
		WHERE id = ? AND corrected_by_user = 0 AND category_source != ?`,
		category, confidence.String(), string(model.CategoryAuto), txnID, string(model.CategoryStatement))
	if err != nil {
		return false, fmt.Errorf("set category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set category: %w", err)
	}
	return n > 0, nil
}

// ListRecategorizable returns the rows automatic categorization may touch.
func (q *Queries) ListRecategorizable(ctx context.Context, f TxFilter) ([]model.Transaction, error) {
	where, args := f.where()
	if where == "" {
		where = " WHERE "
	} else {
		where += " AND "
	}
	where += "corrected_by_user = 0 AND category_source != ?"
	args = append(args, string(model.CategoryStatement))

	rows, err := q.q.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions`+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(s scanner) (model.Transaction, error) {
	var (
		t                          model.Transaction
		date, amount, dir, created string
		postDate, valueDate        sql.NullString
		reported                   sql.NullString
		confidence, source         string
		corrected                  int
	)
	err := s.Scan(&t.Seq, &t.ID, &t.AccountID, &date, &amount, &dir, &t.Description,
		&t.DescriptionHash, &t.NaturalKey, &t.Reference.ChequeNumber, &t.Reference.BranchCode,
		&postDate, &valueDate, &reported, &t.Category, &confidence, &source, &corrected,
		&t.Dialect, &created)
	if err != nil {
		return model.Transaction{}, err
	}

	if t.Date, err = time.Parse(model.DateLayout, date); err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %s date %q: %w", t.ID, date, err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %s amount %q: %w", t.ID, amount, err)
	}
	t.Direction = model.Direction(dir)
	t.Reference.PostDate = scanDate(postDate)
	t.Reference.ValueDate = scanDate(valueDate)
	if reported.Valid {
		if bal, err := decimal.NewFromString(reported.String); err == nil {
			t.ReportedBalance = &bal
		}
	}
	t.CategoryConfidence, _ = decimal.NewFromString(confidence)
	t.CategorySource = model.CategorySource(source)
	t.CorrectedByUser = corrected == 1
	t.CreatedAt = parseTime(created)
	return t, nil
}

func optionalDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(model.DateLayout)
}

func scanDate(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(model.DateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}
