package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

// Header is the CSV header of an accounts file.
const Header = "account_id,name,institution,type,currency,account_number,credit_limit,active"

const (
	numFields   = 8
	colID       = 0
	colName     = 1
	colInst     = 2
	colType     = 3
	colCurrency = 4
	colNumber   = 5
	colLimit    = 6
	colActive   = 7
)

// ReadAccounts reads account definitions.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var accts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accts = append(accts, acct)
	}
	return accts, nil
}

// WriteAccounts writes account definitions with a header row. Balances are
// not written; they are derived from transactions.
func WriteAccounts(w io.Writer, accts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, a := range accts {
		if err := cw.Write(MarshalAccount(a)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(a model.Account) []string {
	row := make([]string, numFields)
	row[colID] = a.ID
	row[colName] = a.Name
	row[colInst] = a.Institution
	row[colType] = string(a.Type)
	row[colCurrency] = a.Currency
	row[colNumber] = a.AccountNumber
	if !a.CreditLimit.IsZero() {
		row[colLimit] = a.CreditLimit.StringFixed(2)
	}
	row[colActive] = strconv.FormatBool(a.Active)
	return row
}

// UnmarshalAccount converts a CSV row to an Account. An empty active column
// means active.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	limit := decimal.Zero
	if v := strings.TrimSpace(record[colLimit]); v != "" {
		var err error
		if limit, err = decimal.NewFromString(v); err != nil {
			return model.Account{}, fmt.Errorf("parsing credit_limit %q: %w", v, err)
		}
	}

	active := true
	if v := strings.TrimSpace(record[colActive]); v != "" {
		var err error
		if active, err = strconv.ParseBool(v); err != nil {
			return model.Account{}, fmt.Errorf("parsing active %q: %w", v, err)
		}
	}

	return model.Account{
		ID:            strings.TrimSpace(record[colID]),
		Name:          record[colName],
		Institution:   record[colInst],
		Type:          model.AccountType(strings.TrimSpace(record[colType])),
		Currency:      strings.TrimSpace(record[colCurrency]),
		AccountNumber: record[colNumber],
		CreditLimit:   limit,
		Active:        active,
	}, nil
}
