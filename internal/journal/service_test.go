package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

var fixedNow = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

func openDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "tally.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestService(db *store.DB, policy DedupPolicy) *Service {
	return NewService(db, Options{Policy: policy, Now: func() time.Time { return fixedNow }})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cand(line int, d time.Time, amount string, dir model.Direction, desc string) model.Candidate {
	return model.Candidate{Line: line, Date: d, Amount: dec(amount), Direction: dir, Description: desc}
}

func seedAccount(t *testing.T, db *store.DB, owner string, active bool) model.Account {
	t.Helper()
	a := model.Account{
		ID:          id.NewAccountID(),
		Owner:       owner,
		Name:        "Canara Savings",
		Institution: "Canara Bank",
		Type:        model.AccountTypeSavings,
		Currency:    "INR",
		Active:      active,
		CreatedAt:   fixedNow,
		UpdatedAt:   fixedNow,
	}
	require.NoError(t, db.Queries().InsertAccount(context.Background(), a))
	return a
}

func storedBalance(t *testing.T, db *store.DB, accountID string) decimal.Decimal {
	t.Helper()
	a, err := db.Queries().Account(context.Background(), accountID)
	require.NoError(t, err)
	return a.CurrentBalance
}

func storedCount(t *testing.T, db *store.DB, accountID string) int {
	t.Helper()
	n, err := db.Queries().CountTransactions(context.Background(), store.TxFilter{AccountID: accountID})
	require.NoError(t, err)
	return n
}

func TestCommitInsertsAndMovesBalance(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	acct := seedAccount(t, db, "asha", true)
	svc := newTestService(db, PolicyLoose)

	res, err := svc.Commit(ctx, Target{AccountID: acct.ID, Owner: "asha", Dialect: "canara"}, []model.Candidate{
		cand(2, date(2024, 3, 1), "1250.50", model.Debit, "UPI/AMAZON"),
		cand(3, date(2024, 3, 2), "50000", model.Credit, "SALARY MARCH"),
		cand(4, date(2024, 3, 3), "320", model.Debit, "ATM WDL"),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Inserted)
	assert.Zero(t, res.Duplicates)
	assert.Zero(t, res.Invalid)
	assert.False(t, res.Created)
	assert.True(t, dec("48429.5").Equal(res.Account.CurrentBalance), res.Account.CurrentBalance.String())
	assert.True(t, dec("48429.5").Equal(storedBalance(t, db, acct.ID)))

	txns, err := db.Queries().ListTransactions(ctx, store.TxFilter{AccountID: acct.ID}, 0, 0)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	for _, txn := range txns {
		assert.NotEmpty(t, txn.ID)
		assert.Equal(t, "canara", txn.Dialect)
		assert.Equal(t, id.NaturalKey(acct.ID, txn.Date, txn.Amount, txn.Direction, txn.Description), txn.NaturalKey)
		assert.Equal(t, fixedNow, txn.CreatedAt)
	}
}

func TestCommitCreditThenDebitReturnsToZero(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	acct := seedAccount(t, db, "asha", true)
	svc := newTestService(db, PolicyLoose)

	_, err := svc.Commit(ctx, Target{AccountID: acct.ID}, []model.Candidate{
		cand(2, date(2024, 3, 1), "500", model.Credit, "REFUND"),
	})
	require.NoError(t, err)
	assert.True(t, dec("500").Equal(storedBalance(t, db, acct.ID)))

	_, err = svc.Commit(ctx, Target{AccountID: acct.ID}, []model.Candidate{
		cand(2, date(2024, 3, 2), "500", model.Debit, "CHARGEBACK"),
	})
	require.NoError(t, err)
	assert.True(t, storedBalance(t, db, acct.ID).IsZero())
}

func TestCommitSameStatementTwice(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	acct := seedAccount(t, db, "asha", true)
	svc := newTestService(db, PolicyLoose)
	batch := []model.Candidate{
		cand(2, date(2024, 3, 1), "1250.50", model.Debit, "UPI/AMAZON"),
		cand(3, date(2024, 3, 2), "50000", model.Credit, "SALARY MARCH"),
	}

	first, err := svc.Commit(ctx, Target{AccountID: acct.ID}, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	second, err := svc.Commit(ctx, Target{AccountID: acct.ID}, batch)
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 2, second.Duplicates)
	assert.True(t, first.Account.CurrentBalance.Equal(second.Account.CurrentBalance))
	assert.Equal(t, 2, storedCount(t, db, acct.ID))
}

func TestCommitDuplicateWithinBatch(t *testing.T) {
	db := openDB(t)
	acct := seedAccount(t, db, "asha", true)
	svc := newTestService(db, PolicyLoose)

	res, err := svc.Commit(context.Background(), Target{AccountID: acct.ID}, []model.Candidate{
		cand(2, date(2024, 3, 1), "100", model.Debit, "TEA"),
		cand(3, date(2024, 3, 1), "100.00", model.Debit, "TEA"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Duplicates)
	assert.True(t, dec("-100").Equal(storedBalance(t, db, acct.ID)))
}

func TestCommitDedupPolicy(t *testing.T) {
	batch := []model.Candidate{
		cand(2, date(2024, 3, 5), "200", model.Debit, "UPI/SWIGGY"),
		cand(3, date(2024, 3, 5), "200", model.Debit, "UPI/ZOMATO"),
	}

	tests := []struct {
		policy     DedupPolicy
		inserted   int
		duplicates int
	}{
		{PolicyLoose, 1, 1},
		{PolicyStrict, 2, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			db := openDB(t)
			acct := seedAccount(t, db, "asha", true)
			svc := newTestService(db, tt.policy)
			assert.Equal(t, tt.policy, svc.Policy())

			res, err := svc.Commit(context.Background(), Target{AccountID: acct.ID}, batch)
			require.NoError(t, err)
			assert.Equal(t, tt.inserted, res.Inserted)
			assert.Equal(t, tt.duplicates, res.Duplicates)
		})
	}
}

func TestCommitStrictIgnoresDescriptionFormatting(t *testing.T) {
	db := openDB(t)
	acct := seedAccount(t, db, "asha", true)
	svc := newTestService(db, PolicyStrict)

	res, err := svc.Commit(context.Background(), Target{AccountID: acct.ID}, []model.Candidate{
		cand(2, date(2024, 3, 5), "200", model.Debit, "UPI/SWIGGY  Order"),
		cand(3, date(2024, 3, 5), "200", model.Debit, "upi/swiggy order"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Duplicates)
}

func TestCommitCountsInvalidCandidates(t *testing.T) {
	db := openDB(t)
	acct := seedAccount(t, db, "asha", true)
	svc := newTestService(db, PolicyLoose)

	res, err := svc.Commit(context.Background(), Target{AccountID: acct.ID}, []model.Candidate{
		cand(2, date(2024, 3, 1), "0", model.Debit, "ZERO"),
		cand(3, date(2024, 3, 1), "-5", model.Debit, "NEGATIVE"),
		cand(4, date(2024, 3, 1), "10", model.Credit, "   "),
		cand(5, time.Time{}, "10", model.Credit, "NO DATE"),
		cand(6, date(2024, 3, 1), "10", model.Credit, "OK"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 4, res.Invalid)
	require.Len(t, res.Invalids, 4)
	assert.True(t, errors.Is(res.Invalids[0], ErrInvalidAmount))
	assert.Equal(t, "description", res.Invalids[2].Field)
	assert.Equal(t, 5, res.Invalids[3].Line)
	assert.True(t, dec("10").Equal(storedBalance(t, db, acct.ID)))
}

func TestCommitCreatesAccountFromInstitution(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	svc := newTestService(db, PolicyLoose)
	target := Target{Owner: "asha", Institution: "HDFC Bank", AccountType: model.AccountTypeSavings}

	first, err := svc.Commit(ctx, target, []model.Candidate{
		cand(2, date(2024, 3, 1), "1234", model.Debit, "SWIGGY"),
	})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "HDFC Bank Account", first.Account.Name)
	assert.Equal(t, "INR", first.Account.Currency)
	assert.Equal(t, "asha", first.Account.Owner)

	second, err := svc.Commit(ctx, target, []model.Candidate{
		cand(2, date(2024, 3, 2), "25000", model.Credit, "NEFT"),
	})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Account.ID, second.Account.ID)
	assert.True(t, dec("23766").Equal(second.Account.CurrentBalance))
}

func TestCommitAccountErrors(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	svc := newTestService(db, PolicyLoose)
	inactive := seedAccount(t, db, "asha", false)
	other := seedAccount(t, db, "ravi", true)
	batch := []model.Candidate{cand(2, date(2024, 3, 1), "10", model.Debit, "X")}

	tests := []struct {
		name   string
		target Target
		want   error
	}{
		{"missing", Target{AccountID: "does-not-exist", Owner: "asha"}, ErrAccountNotFound},
		{"inactive", Target{AccountID: inactive.ID, Owner: "asha"}, ErrAccountInactive},
		{"other owner", Target{AccountID: other.ID, Owner: "asha"}, ErrAccountNotFound},
		{"no institution", Target{Owner: "asha"}, ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Commit(ctx, tt.target, batch)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.want), err.Error())
			assert.False(t, errors.Is(err, ErrPersistence))
		})
	}
	assert.Zero(t, storedCount(t, db, inactive.ID))
}

func TestCommitRollsBackOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tally.db")
	db, err := store.Open(ctx, path, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	acct := seedAccount(t, db, "asha", true)

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.ExecContext(ctx, `CREATE TRIGGER fail_on_boom BEFORE INSERT ON transactions
		WHEN NEW.description = 'BOOM'
		BEGIN SELECT RAISE(ABORT, 'boom'); END`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	svc := newTestService(db, PolicyLoose)
	res, err := svc.Commit(ctx, Target{AccountID: acct.ID}, []model.Candidate{
		cand(2, date(2024, 3, 1), "100", model.Credit, "FIRST"),
		cand(3, date(2024, 3, 2), "200", model.Credit, "SECOND"),
		cand(4, date(2024, 3, 3), "300", model.Credit, "BOOM"),
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrPersistence))

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "insert line 4", pe.Op)

	assert.Zero(t, storedCount(t, db, acct.ID))
	assert.True(t, storedBalance(t, db, acct.ID).IsZero())
}

func TestCommitConcurrentSameAccount(t *testing.T) {
	db := openDB(t)
	acct := seedAccount(t, db, "asha", true)
	svc := newTestService(db, PolicyLoose)

	var batch []model.Candidate
	for i := 1; i <= 20; i++ {
		batch = append(batch, cand(i+1, date(2024, 3, i), fmt.Sprintf("%d", i*10), model.Credit, "DEPOSIT"))
	}

	const workers = 6
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Commit(context.Background(), Target{AccountID: acct.ID}, batch)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inserted += res.Inserted
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, inserted)
	assert.Equal(t, 20, storedCount(t, db, acct.ID))
	assert.True(t, dec("2100").Equal(storedBalance(t, db, acct.ID)))
}

func TestCommitConcurrentAccounts(t *testing.T) {
	db := openDB(t)
	svc := newTestService(db, PolicyLoose)
	accts := []model.Account{
		seedAccount(t, db, "asha", true),
		seedAccount(t, db, "asha", true),
		seedAccount(t, db, "asha", true),
	}

	var wg sync.WaitGroup
	for _, a := range accts {
		a := a
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Commit(context.Background(), Target{AccountID: a.ID}, []model.Candidate{
				cand(2, date(2024, 3, 1), "75", model.Debit, "FEE"),
				cand(3, date(2024, 3, 2), "25", model.Credit, "CASHBACK"),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, a := range accts {
		assert.True(t, dec("-50").Equal(storedBalance(t, db, a.ID)))
	}
}

func TestCommitCanceledContext(t *testing.T) {
	db := openDB(t)
	acct := seedAccount(t, db, "asha", true)
	svc := newTestService(db, PolicyLoose)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Commit(ctx, Target{AccountID: acct.ID}, []model.Candidate{
		cand(2, date(2024, 3, 1), "10", model.Credit, "X"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.Zero(t, storedCount(t, db, acct.ID))
}
