package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDirectionSigned(t *testing.T) {
	amt := decimal.RequireFromString("500.00")
	tests := []struct {
		dir  Direction
		want string
	}{
		{Credit, "500.00"},
		{Debit, "-500.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.dir.Signed(amt).StringFixed(2), "Signed(%s)", tt.dir)
	}
}

func TestDirectionValid(t *testing.T) {
	assert.True(t, Credit.Valid())
	assert.True(t, Debit.Valid())
	assert.False(t, Direction("transfer").Valid())
	assert.False(t, Direction("").Valid())
}

func TestAccountTypeValid(t *testing.T) {
	for _, at := range AccountTypes {
		assert.True(t, at.Valid(), "%s should be valid", at)
	}
	assert.False(t, AccountType("asset").Valid())
}

func TestAccountIsCredit(t *testing.T) {
	assert.True(t, Account{Type: AccountTypeCreditCard}.IsCredit())
	assert.False(t, Account{Type: AccountTypeSavings}.IsCredit())
}
