package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies the accounts transactions are ingested into.
type AccountType string

const (
	AccountTypeSavings    AccountType = "savings"
	AccountTypeCurrent    AccountType = "current"
	AccountTypeCreditCard AccountType = "credit_card"
	AccountTypeCash       AccountType = "cash"
	AccountTypeInvestment AccountType = "investment"
)

// AccountTypes lists every valid account type.
var AccountTypes = []AccountType{
	AccountTypeSavings,
	AccountTypeCurrent,
	AccountTypeCreditCard,
	AccountTypeCash,
	AccountTypeInvestment,
}

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	for _, known := range AccountTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Account is a bank, card or cash account owned by a single user.
// CurrentBalance is the cached balance updated on every commit.
type Account struct {
	ID             string          `json:"id"`
	Owner          string          `json:"owner"`
	Name           string          `json:"name"`
	Institution    string          `json:"institution"`
	Type           AccountType     `json:"type"`
	Currency       string          `json:"currency"`
	AccountNumber  string          `json:"account_number,omitempty"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	CreditLimit    decimal.Decimal `json:"credit_limit"` // credit_card only
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsCredit reports whether the account is a credit line rather than a deposit account.
func (a Account) IsCredit() bool {
	return a.Type == AccountTypeCreditCard
}
