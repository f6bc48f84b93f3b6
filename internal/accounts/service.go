// Package accounts manages the accounts statements are ingested into.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/ledger"
	"github.com/cleared-dev/tally/internal/logger"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

var (
	ErrNotFound        = errors.New("account not found")
	ErrInvalid         = errors.New("invalid account")
	ErrHasTransactions = errors.New("account has transactions")
)

// ExportPath is where Save writes account definitions, relative to the workspace.
const ExportPath = "accounts/accounts.csv"

// Options configure a Service.
type Options struct {
	Owner           string
	DefaultCurrency string
	Now             func() time.Time
}

// Service creates and looks up one owner's accounts.
type Service struct {
	db       *store.DB
	owner    string
	currency string
	now      func() time.Time
}

// NewService creates an accounts Service.
func NewService(db *store.DB, opts Options) *Service {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "INR"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{db: db, owner: opts.Owner, currency: opts.DefaultCurrency, now: opts.Now}
}

// CreateParams describe a new account. ID is generated when empty.
type CreateParams struct {
	ID            string
	Name          string
	Institution   string
	Type          model.AccountType
	Currency      string
	AccountNumber string
	CreditLimit   decimal.Decimal
}

// Create validates p and stores a new active account with a zero balance.
func (s *Service) Create(ctx context.Context, p CreateParams) (model.Account, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Institution = strings.TrimSpace(p.Institution)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = s.currency
	}
	if err := validate(p); err != nil {
		return model.Account{}, err
	}

	now := s.now().UTC()
	acct := model.Account{
		ID:             p.ID,
		Owner:          s.owner,
		Name:           p.Name,
		Institution:    p.Institution,
		Type:           p.Type,
		Currency:       p.Currency,
		AccountNumber:  strings.TrimSpace(p.AccountNumber),
		CurrentBalance: decimal.Zero,
		CreditLimit:    p.CreditLimit,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if acct.ID == "" {
		acct.ID = id.NewAccountID()
	}
	if err := s.db.Queries().InsertAccount(ctx, acct); err != nil {
		return model.Account{}, err
	}

	log := logger.FromContext(ctx)

	log.Info().
		Str("account_id", acct.ID).
		Str("name", acct.Name).
		Str("type", string(acct.Type)).
		Msg("account created")
	return acct, nil
}

func validate(p CreateParams) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case p.Institution == "":
		return fmt.Errorf("%w: institution is required", ErrInvalid)
	case !p.Type.Valid():
		return fmt.Errorf("%w: type %q is not one of %v", ErrInvalid, p.Type, model.AccountTypes)
	case len(p.Currency) != 3:
		return fmt.Errorf("%w: currency %q is not a 3-letter code", ErrInvalid, p.Currency)
	case p.CreditLimit.IsNegative():
		return fmt.Errorf("%w: credit limit cannot be negative", ErrInvalid)
	case !p.CreditLimit.IsZero() && p.Type != model.AccountTypeCreditCard:
		return fmt.Errorf("%w: credit limit only applies to credit cards", ErrInvalid)
	}
	return nil
}

// Get returns one of the owner's accounts, active or not.
func (s *Service) Get(ctx context.Context, accountID string) (model.Account, error) {
	acct, err := s.db.Queries().Account(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && s.owner != "" && acct.Owner != s.owner) {
		return model.Account{}, fmt.Errorf("%w: %s", ErrNotFound, accountID)
	}
	return acct, err
}

// Overview is an account with figures computed from its transactions.
type Overview struct {
	model.Account
	TransactionCount int             `json:"transaction_count"`
	ComputedBalance  decimal.Decimal `json:"computed_balance"`
	// Unreconciled is set when the stored balance and the transaction sum
	// differ by at least ledger.Tolerance.
	Unreconciled bool `json:"unreconciled"`
}

// List returns the owner's accounts with their computed balances.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]Overview, error) {
	var out []Overview
	err := s.db.Read(ctx, func(q *store.Queries) error {
		accts, err := q.ListAccounts(ctx, s.owner, includeInactive)
		if err != nil {
			return err
		}
		for _, a := range accts {
			totals, err := q.SumTransactions(ctx, store.TxFilter{AccountID: a.ID})
			if err != nil {
				return err
			}
			computed := totals.Net()
			out = append(out, Overview{
				Account:          a,
				TransactionCount: totals.Count,
				ComputedBalance:  computed,
				Unreconciled:     !a.CurrentBalance.Sub(computed).Abs().LessThan(ledger.Tolerance),
			})
		}
		return nil
	})
	return out, err
}

// Deactivate hides an account from imports and listings. Accounts that
// already hold transactions cannot be deactivated.
func (s *Service) Deactivate(ctx context.Context, accountID string) error {
	return s.db.Write(ctx, func(q *store.Queries) error {
		acct, err := q.Account(ctx, accountID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && s.owner != "" && acct.Owner != s.owner) {
			return fmt.Errorf("%w: %s", ErrNotFound, accountID)
		}
		if err != nil {
			return err
		}
		n, err := q.CountTransactions(ctx, store.TxFilter{AccountID: accountID})
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s holds %d", ErrHasTransactions, accountID, n)
		}
		return q.SetActive(ctx, accountID, false, s.now().UTC())
	})
}

// Summary totals the owner's active accounts.
type Summary struct {
	Accounts          int             `json:"accounts"`
	BankBalance       decimal.Decimal `json:"bank_balance"`
	CreditCardBalance decimal.Decimal `json:"credit_card_balance"` // amount owed
	CreditLimit       decimal.Decimal `json:"credit_limit"`
	NetWorth          decimal.Decimal `json:"net_worth"`
}

// Summarize adds up balances across active accounts. Card purchases are
// stored as debits, so a card's balance is negative while money is owed.
func (s *Service) Summarize(ctx context.Context) (*Summary, error) {
	accts, err := s.db.Queries().ListAccounts(ctx, s.owner, false)
	if err != nil {
		return nil, err
	}

	sum := &Summary{BankBalance: decimal.Zero, CreditCardBalance: decimal.Zero, CreditLimit: decimal.Zero}
	for _, a := range accts {
		sum.Accounts++
		if a.IsCredit() {
			sum.CreditCardBalance = sum.CreditCardBalance.Sub(a.CurrentBalance)
			sum.CreditLimit = sum.CreditLimit.Add(a.CreditLimit)
			continue
		}
		sum.BankBalance = sum.BankBalance.Add(a.CurrentBalance)
	}
	sum.NetWorth = sum.BankBalance.Sub(sum.CreditCardBalance)
	return sum, nil
}

// Save writes every account definition, inactive ones included, to
// ExportPath under root so they are versioned with the workspace.
func (s *Service) Save(ctx context.Context, root string) error {
	accts, err := s.db.Queries().ListAccounts(ctx, s.owner, true)
	if err != nil {
		return err
	}

	path := filepath.Join(root, ExportPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating accounts dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating accounts file: %w", err)
	}
	defer f.Close()

	if err := WriteAccounts(f, accts); err != nil {
		return fmt.Errorf("writing accounts: %w", err)
	}
	return f.Close()
}

// Import creates each definition, typically read with ReadAccounts.
// Rows whose ID already exists are skipped.
func (s *Service) Import(ctx context.Context, defs []model.Account) ([]model.Account, error) {
	var created []model.Account
	for i, d := range defs {
		if d.ID != "" {
			if _, err := s.db.Queries().Account(ctx, d.ID); err == nil {
				continue
			} else if !errors.Is(err, store.ErrNotFound) {
				return created, err
			}
		}
		acct, err := s.Create(ctx, CreateParams{
			ID:            d.ID,
			Name:          d.Name,
			Institution:   d.Institution,
			Type:          d.Type,
			Currency:      d.Currency,
			AccountNumber: d.AccountNumber,
			CreditLimit:   d.CreditLimit,
		})
		if err != nil {
			return created, fmt.Errorf("account %d: %w", i+1, err)
		}
		created = append(created, acct)
	}
	return created, nil
}
