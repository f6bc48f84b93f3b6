package importer

import (
	"strings"
	"time"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/normalize"
)

// Row is one CSV data row keyed by header name.
type Row map[string]string

// First returns the first non-empty value among cols.
func (r Row) First(cols ...string) string {
	for _, c := range cols {
		if v := strings.TrimSpace(r[c]); v != "" {
			return v
		}
	}
	return ""
}

// Fields are the raw, un-normalized values a dialect extracts from a row.
// Dialects with separate withdrawal and deposit columns fill Debit and
// Credit; dialects with one signed column fill Amount and optionally Kind.
type Fields struct {
	Date         string
	Description  string
	Debit        string
	Credit       string
	Amount       string
	Kind         string
	Balance      string
	ChequeNumber string
	BranchCode   string
	PostDate     string
	ValueDate    string
	Category     string
}

// SignConvention says how a single signed amount column maps to a direction.
type SignConvention int

const (
	// NegativeIsDebit is used by deposit account exports: withdrawals are negative.
	NegativeIsDebit SignConvention = iota
	// NegativeIsCredit is used by card exports: refunds and payments are negative.
	NegativeIsCredit
)

// Dialect describes one institution's statement layout. Dialects are
// registered once and never modified.
type Dialect struct {
	Key         string
	Name        string
	AccountType model.AccountType
	// HeaderSets lists the column sets the dialect recognizes. The header row
	// must contain every column of at least one set.
	HeaderSets [][]string
	// Indicators, when set, must contain at least one column present in the header row.
	Indicators []string
	// DateLayout is tried before the generic date forms.
	DateLayout string
	Sign       SignConvention
	Map        func(Row) Fields
}

// Matches reports whether the header row satisfies the dialect.
func (d *Dialect) Matches(headers map[string]struct{}) bool {
	if len(d.Indicators) > 0 {
		found := false
		for _, col := range d.Indicators {
			if _, ok := headers[col]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for _, set := range d.HeaderSets {
		if containsAll(headers, set) {
			return true
		}
	}
	return false
}

func containsAll(headers map[string]struct{}, cols []string) bool {
	for _, c := range cols {
		if _, ok := headers[c]; !ok {
			return false
		}
	}
	return true
}

// parseDate tries the dialect's own layout, then the generic forms.
func (d *Dialect) parseDate(raw string) (time.Time, error) {
	if d.DateLayout != "" {
		if t, err := time.Parse(d.DateLayout, strings.TrimSpace(raw)); err == nil {
			return t, nil
		}
	}
	return normalize.ParseDate(raw)
}
