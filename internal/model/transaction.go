package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction says whether a transaction adds to or takes from the balance.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// Valid reports whether d is credit or debit.
func (d Direction) Valid() bool {
	return d == Credit || d == Debit
}

// Signed returns amount as a balance change: positive for credits, negative for debits.
func (d Direction) Signed(amount decimal.Decimal) decimal.Decimal {
	if d == Debit {
		return amount.Neg()
	}
	return amount
}

// CategorySource records who assigned a transaction's category.
type CategorySource string

const (
	CategoryNone      CategorySource = ""
	CategoryStatement CategorySource = "statement"
	CategoryAuto      CategorySource = "auto"
	CategoryUser      CategorySource = "user"
)

// Uncategorized is the placeholder category used when no categorizer answered.
const Uncategorized = "Uncategorized"

// Reference holds the optional identifying fields some statements carry.
type Reference struct {
	ChequeNumber string     `json:"cheque_number,omitempty"`
	BranchCode   string     `json:"branch_code,omitempty"`
	PostDate     *time.Time `json:"post_date,omitempty"`
	ValueDate    *time.Time `json:"value_date,omitempty"`
}

// Candidate is a normalized statement row that has not been committed yet.
type Candidate struct {
	Line               int // 1-based line in the source file
	Date               time.Time
	Amount             decimal.Decimal // magnitude, never negative
	Direction          Direction
	Description        string
	Reference          Reference
	ReportedBalance    *decimal.Decimal // balance the statement claims, not trusted
	Category           string
	CategoryConfidence decimal.Decimal
	CategorySource     CategorySource
	DateFallback       bool // date could not be parsed and was substituted
}

// Signed returns the candidate's balance change.
func (c Candidate) Signed() decimal.Decimal {
	return c.Direction.Signed(c.Amount)
}

// Transaction is a committed ledger row.
type Transaction struct {
	ID                 string           `json:"id"`
	Seq                int64            `json:"-"` // insertion order
	AccountID          string           `json:"account_id"`
	Date               time.Time        `json:"date"`
	Amount             decimal.Decimal  `json:"amount"`
	Direction          Direction        `json:"direction"`
	Description        string           `json:"description"`
	DescriptionHash    string           `json:"-"`
	NaturalKey         string           `json:"-"`
	Reference          Reference        `json:"reference"`
	ReportedBalance    *decimal.Decimal `json:"statement_balance,omitempty"`
	Category           string           `json:"category"`
	CategoryConfidence decimal.Decimal  `json:"category_confidence"`
	CategorySource     CategorySource   `json:"category_source,omitempty"`
	CorrectedByUser    bool             `json:"corrected_by_user"`
	Dialect            string           `json:"dialect,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// Signed returns the transaction's balance change.
func (t Transaction) Signed() decimal.Decimal {
	return t.Direction.Signed(t.Amount)
}

// DateLayout is the canonical ISO calendar date form.
const DateLayout = "2006-01-02"
