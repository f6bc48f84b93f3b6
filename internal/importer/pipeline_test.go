package importer

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/model"
)

func ingestFile(t *testing.T, path, hint string, opts Options) *Batch {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	batch, err := NewPipeline(DefaultRegistry(), opts).Ingest(context.Background(), f, hint)
	require.NoError(t, err)
	return batch
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIngest_CanaraScenario(t *testing.T) {
	csv := "Txn Date,Description,Debit,Credit,Balance\n01-03-2024,GROCERY STORE,1250.50,,40000.00\n"
	batch, err := NewPipeline(DefaultRegistry(), Options{}).Ingest(context.Background(), strings.NewReader(csv), "")
	require.NoError(t, err)

	assert.Equal(t, "canara", batch.Dialect.Key)
	require.Len(t, batch.Candidates, 1)
	c := batch.Candidates[0]
	assert.Equal(t, "2024-03-01", c.Date.Format(model.DateLayout))
	assert.Equal(t, "1250.50", c.Amount.StringFixed(2))
	assert.Equal(t, model.Debit, c.Direction)
	assert.Equal(t, "GROCERY STORE", c.Description)
	require.NotNil(t, c.ReportedBalance)
	assert.Equal(t, "40000.00", c.ReportedBalance.StringFixed(2))
	assert.Equal(t, 2, c.Line)
}

func TestIngest_CanaraFile(t *testing.T) {
	batch := ingestFile(t, "../../testdata/canara_savings.csv", "", Options{})

	assert.Equal(t, "canara", batch.Dialect.Key)
	assert.Equal(t, 5, batch.Rows)
	assert.Equal(t, 1, batch.ZeroAmountRows)
	assert.Empty(t, batch.RowErrors)
	require.Len(t, batch.Candidates, 4)

	// File order is preserved.
	var descs []string
	for _, c := range batch.Candidates {
		descs = append(descs, c.Description)
	}
	assert.Equal(t, []string{"GROCERY STORE", "SALARY ACME CORP", "UBER TRIP, BLR", "NETFLIX SUBSCRIPTION"}, descs)

	salary := batch.Candidates[1]
	assert.Equal(t, model.Credit, salary.Direction)
	assert.Equal(t, "50000.00", salary.Amount.StringFixed(2))
	assert.Equal(t, date(2024, 3, 2), salary.Date)
}

func TestIngest_HDFCFile(t *testing.T) {
	batch := ingestFile(t, "../../testdata/hdfc_savings.csv", "", Options{})

	assert.Equal(t, "hdfc", batch.Dialect.Key)
	require.Len(t, batch.Candidates, 3)

	swiggy := batch.Candidates[0]
	assert.Equal(t, "1234.00", swiggy.Amount.StringFixed(2))
	assert.Equal(t, model.Debit, swiggy.Direction)
	assert.Equal(t, "000123", swiggy.Reference.ChequeNumber)
	require.NotNil(t, swiggy.ReportedBalance)
	assert.Equal(t, "18766.00", swiggy.ReportedBalance.StringFixed(2))

	atm := batch.Candidates[2]
	require.NotNil(t, atm.Reference.ValueDate)
	assert.Equal(t, date(2024, 3, 8), *atm.Reference.ValueDate)
	assert.Equal(t, date(2024, 3, 7), atm.Date)
}

func TestIngest_CreditCardFile(t *testing.T) {
	batch := ingestFile(t, "../../testdata/credit_card.csv", "", Options{})

	assert.Equal(t, "credit_card", batch.Dialect.Key)
	require.Len(t, batch.Candidates, 3)

	tests := []struct {
		desc     string
		amount   string
		dir      model.Direction
		category string
	}{
		{"AMAZON MARKETPLACE", "2499.00", model.Debit, "Shopping"},
		{"PAYMENT THANK YOU", "10000.00", model.Credit, "Payment"},
		{"REFUND FLIPKART", "799.00", model.Credit, "Shopping"},
	}
	for i, tt := range tests {
		c := batch.Candidates[i]
		assert.Equal(t, tt.desc, c.Description)
		assert.Equal(t, tt.amount, c.Amount.StringFixed(2), tt.desc)
		assert.Equal(t, tt.dir, c.Direction, tt.desc)
		assert.Equal(t, tt.category, c.Category, tt.desc)
		assert.Equal(t, model.CategoryStatement, c.CategorySource, tt.desc)
		require.NotNil(t, c.Reference.PostDate, tt.desc)
	}
}

func TestIngest_ChaseFile(t *testing.T) {
	batch := ingestFile(t, "../../testdata/chase_checking.csv", "", Options{})

	assert.Equal(t, "chase", batch.Dialect.Key)
	require.Len(t, batch.Candidates, 3)

	github := batch.Candidates[0]
	assert.Equal(t, date(2025, 1, 3), github.Date, "chase dates are month-first")
	assert.Equal(t, model.Debit, github.Direction)
	assert.Equal(t, "4.00", github.Amount.StringFixed(2))

	acme := batch.Candidates[1]
	assert.Equal(t, model.Credit, acme.Direction)
	assert.Equal(t, "3500.00", acme.Amount.StringFixed(2))

	assert.Equal(t, "1042", batch.Candidates[2].Reference.ChequeNumber)
}

func TestIngest_MessyRowsAreIsolated(t *testing.T) {
	batch := ingestFile(t, "../../testdata/canara_messy.csv", "", Options{})

	assert.Equal(t, 5, batch.Rows)
	assert.Equal(t, 1, batch.ZeroAmountRows)
	require.Len(t, batch.Candidates, 2)
	assert.Equal(t, "GROCERY STORE", batch.Candidates[0].Description)
	assert.Equal(t, "REFUND", batch.Candidates[1].Description)

	require.Len(t, batch.RowErrors, 2)
	assert.Equal(t, 3, batch.RowErrors[0].Line)
	assert.Contains(t, batch.RowErrors[0].Error(), "unparseable date")
	assert.Equal(t, 4, batch.RowErrors[1].Line)
	assert.True(t, errors.Is(batch.RowErrors[1], ErrEmptyDescription))
}

func TestIngest_DateFallbackIsCounted(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 6, 30, 15, 0, 0, 0, time.UTC) }
	batch := ingestFile(t, "../../testdata/canara_messy.csv", "", Options{DateFallbackToToday: true, Now: now})

	require.Len(t, batch.Candidates, 3)
	assert.Equal(t, 1, batch.DateFallbacks)
	broken := batch.Candidates[1]
	assert.Equal(t, "BROKEN ROW", broken.Description)
	assert.True(t, broken.DateFallback)
	assert.Equal(t, date(2024, 6, 30), broken.Date)
}

func TestIngest_ZeroAmountRowsNeverBecomeCandidates(t *testing.T) {
	csv := "Txn Date,Description,Debit,Credit,Balance\n" +
		"01-03-2024,OPENING BALANCE,0.00,0.00,1000.00\n" +
		"02-03-2024,STATEMENT NOTE,,,\n"
	batch, err := NewPipeline(DefaultRegistry(), Options{}).Ingest(context.Background(), strings.NewReader(csv), "")
	require.NoError(t, err)

	assert.Empty(t, batch.Candidates)
	assert.Empty(t, batch.RowErrors)
	assert.Equal(t, 2, batch.ZeroAmountRows)
}

func TestIngest_NoDialectMatched(t *testing.T) {
	f, err := os.Open("../../testdata/unknown_layout.csv")
	require.NoError(t, err)
	defer f.Close()

	_, err = NewPipeline(DefaultRegistry(), Options{}).Ingest(context.Background(), f, "")
	assert.ErrorIs(t, err, ErrNoDialectMatched)
}

func TestIngest_HintOverridesHeaders(t *testing.T) {
	// Headers satisfy no dialect, but the caller insists on canara.
	csv := "Txn Date,Description,Debit,Credit\n01-03-2024,TEA,20,\n"
	batch, err := NewPipeline(DefaultRegistry(), Options{}).Ingest(context.Background(), strings.NewReader(csv), "Canara")
	require.NoError(t, err)
	assert.Equal(t, "canara", batch.Dialect.Key)
	require.Len(t, batch.Candidates, 1)
	assert.Equal(t, "20.00", batch.Candidates[0].Amount.StringFixed(2))
}

func TestIngest_UnknownHint(t *testing.T) {
	csv := "Txn Date,Description,Debit,Credit,Balance\n"
	_, err := NewPipeline(DefaultRegistry(), Options{}).Ingest(context.Background(), strings.NewReader(csv), "kotak")
	assert.ErrorIs(t, err, ErrUnknownDialect)
}

func TestIngest_EmptyInput(t *testing.T) {
	_, err := NewPipeline(DefaultRegistry(), Options{}).Ingest(context.Background(), strings.NewReader(""), "")
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestIngest_HeaderOnly(t *testing.T) {
	csv := "Txn Date,Description,Debit,Credit,Balance\n"
	batch, err := NewPipeline(DefaultRegistry(), Options{}).Ingest(context.Background(), strings.NewReader(csv), "")
	require.NoError(t, err)
	assert.Empty(t, batch.Candidates)
	assert.Equal(t, 0, batch.Rows)
}

func TestIngest_ShortAndLongRows(t *testing.T) {
	csv := "Txn Date,Description,Debit,Credit,Balance\n" +
		"01-03-2024,SHORT ROW,10\n" +
		"02-03-2024,LONG ROW,,20,100,extra,cols\n"
	batch, err := NewPipeline(DefaultRegistry(), Options{}).Ingest(context.Background(), strings.NewReader(csv), "")
	require.NoError(t, err)
	require.Len(t, batch.Candidates, 2)
	assert.Equal(t, model.Debit, batch.Candidates[0].Direction)
	assert.Nil(t, batch.Candidates[0].ReportedBalance)
	assert.Equal(t, model.Credit, batch.Candidates[1].Direction)
}

func TestIngest_PanickingDialectIsRecovered(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Dialect{
		Key:        "fragile",
		Name:       "Fragile",
		HeaderSets: [][]string{{"When", "What", "Out"}},
		Map: func(r Row) Fields {
			if r["What"] == "BOOM" {
				panic("unexpected layout")
			}
			return Fields{Date: r["When"], Description: r["What"], Debit: r["Out"]}
		},
	})

	csv := "When,What,Out\n01-03-2024,BOOM,5\n02-03-2024,OK,6\n"
	batch, err := NewPipeline(reg, Options{}).Ingest(context.Background(), strings.NewReader(csv), "")
	require.NoError(t, err)
	require.Len(t, batch.Candidates, 1)
	assert.Equal(t, "OK", batch.Candidates[0].Description)
	require.Len(t, batch.RowErrors, 1)
	assert.Contains(t, batch.RowErrors[0].Error(), "unexpected layout")
}

func TestIngest_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, err := os.Open("../../testdata/canara_savings.csv")
	require.NoError(t, err)
	defer f.Close()

	_, err = NewPipeline(DefaultRegistry(), Options{}).Ingest(ctx, f, "")
	assert.ErrorIs(t, err, context.Canceled)
}
