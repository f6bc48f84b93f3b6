// Package journal commits parsed statement rows to the ledger exactly once.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/logger"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

var (
	// ErrAccountNotFound means the target account does not exist for the owner.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountInactive means the target account has been deactivated.
	ErrAccountInactive = errors.New("account is inactive")
	// ErrPersistence matches every PersistenceError.
	ErrPersistence = errors.New("persistence failure")
)

// PersistenceError reports a store failure. The whole commit was rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPersistence) true for any PersistenceError.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// DedupPolicy selects what makes two rows the same transaction.
type DedupPolicy string

const (
	// PolicyLoose treats rows with the same date, amount and direction as
	// duplicates. Reformatted descriptions in repeated exports are tolerated;
	// two genuine same-day payments of the same amount collapse into one.
	PolicyLoose DedupPolicy = "loose"
	// PolicyStrict also compares the description hash.
	PolicyStrict DedupPolicy = "strict"
)

// Options configure a Service.
type Options struct {
	Policy DedupPolicy
	Now    func() time.Time
}

// Service commits candidates to accounts.
type Service struct {
	db     *store.DB
	policy DedupPolicy
	now    func() time.Time
	locks  *keyedLocks
}

// NewService creates a journal Service.
func NewService(db *store.DB, opts Options) *Service {
	if opts.Policy == "" {
		opts.Policy = PolicyLoose
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{db: db, policy: opts.Policy, now: opts.Now, locks: newKeyedLocks()}
}

// Policy returns the dedup policy in force.
func (s *Service) Policy() DedupPolicy {
	return s.policy
}

// Target names the account a batch belongs to. With no AccountID the
// owner's active account at Institution is used, or created.
type Target struct {
	AccountID   string
	Owner       string
	Institution string
	AccountType model.AccountType
	Currency    string
	Dialect     string
}

// CommitResult summarizes one commit.
type CommitResult struct {
	Account    model.Account // balance as committed
	Created    bool          // account was created by this commit
	Inserted   int
	Duplicates int
	Invalid    int
	Invalids   []ValidationError
}

// Commit stores every new, valid candidate and moves the account balance by
// their signed amounts in one unit of work. Duplicates and invalid
// candidates are counted and skipped. On error nothing is applied.
func (s *Service) Commit(ctx context.Context, target Target, candidates []model.Candidate) (*CommitResult, error) {
	unlock := s.locks.lock(lockKey(target))
	defer unlock()

	var res *CommitResult
	err := s.db.Write(ctx, func(q *store.Queries) error {
		res = &CommitResult{}
		now := s.now().UTC()

		acct, created, err := s.resolveAccount(ctx, q, target, now)
		if err != nil {
			return err
		}
		res.Created = created

		balance := acct.CurrentBalance
		for _, c := range candidates {
			if verrs := ValidateCandidate(c); len(verrs) > 0 {
				res.Invalid++
				res.Invalids = append(res.Invalids, verrs...)
				continue
			}

			dup, err := s.isDuplicate(ctx, q, acct.ID, c)
			if err != nil {
				return &PersistenceError{Op: "duplicate lookup", Err: err}
			}
			if dup {
				res.Duplicates++
				continue
			}

			txn := newTransaction(acct.ID, c, target.Dialect, now)
			if err := q.InsertTransaction(ctx, &txn); err != nil {
				return &PersistenceError{Op: fmt.Sprintf("insert line %d", c.Line), Err: err}
			}
			balance = balance.Add(txn.Signed())
			res.Inserted++
		}

		if res.Inserted > 0 {
			if err := q.SetBalance(ctx, acct.ID, balance, now); err != nil {
				return &PersistenceError{Op: "update balance", Err: err}
			}
		}
		acct.CurrentBalance = balance
		res.Account = acct
		return nil
	})
	if err != nil {
		var pe *PersistenceError
		if errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrAccountInactive) || errors.As(err, &pe) {
			return nil, err
		}
		return nil, &PersistenceError{Op: "commit", Err: err}
	}

	log := logger.FromContext(ctx)

	log.Info().
		Str("account_id", res.Account.ID).
		Int("inserted", res.Inserted).
		Int("duplicates", res.Duplicates).
		Int("invalid", res.Invalid).
		Str("balance", res.Account.CurrentBalance.StringFixed(2)).
		Msg("batch committed")
	return res, nil
}

func (s *Service) resolveAccount(ctx context.Context, q *store.Queries, target Target, now time.Time) (model.Account, bool, error) {
	if target.AccountID != "" {
		acct, err := q.Account(ctx, target.AccountID)
		if errors.Is(err, store.ErrNotFound) {
			return model.Account{}, false, fmt.Errorf("%w: %s", ErrAccountNotFound, target.AccountID)
		}
		if err != nil {
			return model.Account{}, false, &PersistenceError{Op: "load account", Err: err}
		}
		if target.Owner != "" && acct.Owner != target.Owner {
			return model.Account{}, false, fmt.Errorf("%w: %s", ErrAccountNotFound, target.AccountID)
		}
		if !acct.Active {
			return model.Account{}, false, fmt.Errorf("%w: %s", ErrAccountInactive, target.AccountID)
		}
		return acct, false, nil
	}

	if target.Institution == "" {
		return model.Account{}, false, fmt.Errorf("%w: no account id or institution given", ErrAccountNotFound)
	}
	acct, err := q.FindAccount(ctx, target.Owner, target.Institution)
	if err == nil {
		return acct, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.Account{}, false, &PersistenceError{Op: "find account", Err: err}
	}

	acct = model.Account{
		ID:          id.NewAccountID(),
		Owner:       target.Owner,
		Name:        target.Institution + " Account",
		Institution: target.Institution,
		Type:        target.AccountType,
		Currency:    target.Currency,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !acct.Type.Valid() {
		acct.Type = model.AccountTypeSavings
	}
	if acct.Currency == "" {
		acct.Currency = "INR"
	}
	if err := q.InsertAccount(ctx, acct); err != nil {
		return model.Account{}, false, &PersistenceError{Op: "create account", Err: err}
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("account_id", acct.ID).
		Str("institution", acct.Institution).
		Msg("account created for first statement")
	return acct, true, nil
}

func (s *Service) isDuplicate(ctx context.Context, q *store.Queries, accountID string, c model.Candidate) (bool, error) {
	if s.policy == PolicyStrict {
		key := id.NaturalKey(accountID, c.Date, c.Amount, c.Direction, c.Description)
		return q.HasNaturalKey(ctx, accountID, key)
	}
	return q.HasMatch(ctx, accountID, c.Date, c.Amount, c.Direction)
}

func newTransaction(accountID string, c model.Candidate, dialect string, now time.Time) model.Transaction {
	desc := strings.TrimSpace(c.Description)
	return model.Transaction{
		ID:                 id.NewTransactionID(),
		AccountID:          accountID,
		Date:               c.Date,
		Amount:             c.Amount,
		Direction:          c.Direction,
		Description:        desc,
		DescriptionHash:    id.DescriptionHash(desc),
		NaturalKey:         id.NaturalKey(accountID, c.Date, c.Amount, c.Direction, desc),
		Reference:          c.Reference,
		ReportedBalance:    c.ReportedBalance,
		Category:           c.Category,
		CategoryConfidence: c.CategoryConfidence,
		CategorySource:     c.CategorySource,
		Dialect:            dialect,
		CreatedAt:          now,
	}
}

func lockKey(t Target) string {
	if t.AccountID != "" {
		return t.AccountID
	}
	return t.Owner + "|" + t.Institution
}
