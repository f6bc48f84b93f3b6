package categorize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/model"
)

func TestKeywordDefaultRules(t *testing.T) {
	k := NewKeyword(DefaultRules())
	amt := decimal.RequireFromString("100")

	tests := []struct {
		desc string
		dir  model.Direction
		want string
	}{
		{"UPI/SWIGGY/ORDER 1234", model.Debit, "Food & Dining"},
		{"ATM WDL MG ROAD", model.Debit, "ATM Withdrawal"},
		{"SALARY MARCH ACME", model.Credit, "Salary/Income"},
		{"NEFT-HDFC-SALARY", model.Credit, "Salary/Income"},
		{"NEFT-HDFC-RENT", model.Debit, "Transfer"},
		{"Netflix.com", model.Debit, "Online Services"},
		{"AMAZON PAY INDIA", model.Debit, "Shopping"},
		{"IRCTC E-TICKET", model.Debit, "Travel"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			res, err := k.Categorize(context.Background(), tt.desc, amt, tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Category)
			assert.True(t, KeywordConfidence.Equal(res.Confidence))
		})
	}

	_, err := k.Categorize(context.Background(), "XYZZY", amt, model.Debit)
	assert.True(t, errors.Is(err, ErrNoMatch))
}

func TestKeywordDirection(t *testing.T) {
	k := NewKeyword([]Rule{
		{Category: "Salary/Income", Direction: model.Credit, Keywords: []string{" Payroll "}},
		{Category: "Other", Keywords: []string{"payroll"}},
	})
	amt := decimal.RequireFromString("1")

	res, err := k.Categorize(context.Background(), "ACME PAYROLL", amt, model.Credit)
	require.NoError(t, err)
	assert.Equal(t, "Salary/Income", res.Category)

	res, err = k.Categorize(context.Background(), "ACME PAYROLL", amt, model.Debit)
	require.NoError(t, err)
	assert.Equal(t, "Other", res.Category)
}

func TestRulesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules", "categorization-rules.yaml")
	require.NoError(t, SaveRules(path, DefaultRules()))

	got, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), got)
}

func TestLoadRulesErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"not yaml", "rules: [", "parsing rules"},
		{"no category", "rules:\n  - keywords: [tea]\n", "has no category"},
		{"bad direction", "rules:\n  - category: Other\n    direction: up\n    keywords: [x]\n", "unknown direction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rules.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := LoadRules(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadRulesFixture(t *testing.T) {
	rules, err := LoadRules("testdata/rules.yaml")
	require.NoError(t, err)
	require.Len(t, rules, 2)

	res, err := NewKeyword(rules).Categorize(context.Background(), "Blue Tokai Coffee", decimal.RequireFromString("350"), model.Debit)
	require.NoError(t, err)
	assert.Equal(t, "Coffee", res.Category)
}
