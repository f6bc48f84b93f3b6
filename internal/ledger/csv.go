package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/tally/internal/model"
)

// Header is the CSV header of a ledger export.
const Header = "id,date,account_id,description,direction,amount,change,running_balance,category,category_source,cheque_number,value_date,statement_balance"

const (
	numFields      = 13
	colID          = 0
	colDate        = 1
	colAcctID      = 2
	colDesc        = 3
	colDirection   = 4
	colAmount      = 5
	colChange      = 6
	colRunning     = 7
	colCategory    = 8
	colCatSource   = 9
	colCheque      = 10
	colValueDate   = 11
	colStmtBalance = 12
)

// WriteEntries writes entries with a header row.
func WriteEntries(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	t := e.Transaction
	row := make([]string, numFields)
	row[colID] = t.ID
	row[colDate] = t.Date.Format(model.DateLayout)
	row[colAcctID] = t.AccountID
	row[colDesc] = t.Description
	row[colDirection] = string(t.Direction)
	row[colAmount] = t.Amount.StringFixed(2)
	row[colChange] = e.Change.StringFixed(2)
	row[colRunning] = e.RunningBalance.StringFixed(2)
	row[colCategory] = t.Category
	row[colCatSource] = string(t.CategorySource)
	row[colCheque] = t.Reference.ChequeNumber
	if t.Reference.ValueDate != nil {
		row[colValueDate] = t.Reference.ValueDate.Format(model.DateLayout)
	}
	if t.ReportedBalance != nil {
		row[colStmtBalance] = t.ReportedBalance.StringFixed(2)
	}
	return row
}
