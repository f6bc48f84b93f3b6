// Package id generates record identifiers and the natural keys used to
// recognize a statement row that has already been committed.
package id

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
)

// NewAccountID returns a random account ID.
func NewAccountID() string {
	return uuid.NewString()
}

// NewTransactionID returns a time-ordered transaction ID.
func NewTransactionID() string {
	return ulid.Make().String()
}

// NormalizeDescription lowercases desc and collapses runs of whitespace so
// that reformatted exports of the same row hash identically.
func NormalizeDescription(desc string) string {
	return strings.Join(strings.Fields(strings.ToLower(desc)), " ")
}

// DescriptionHash returns the hex SHA-256 of the normalized description.
func DescriptionHash(desc string) string {
	sum := sha256.Sum256([]byte(NormalizeDescription(desc)))
	return hex.EncodeToString(sum[:])
}

// NaturalKey derives the deterministic key of a transaction from its account,
// date, amount, direction and description hash.
// "acc|2024-03-01|1250.5|debit|<hash>" -> hex SHA-256
func NaturalKey(accountID string, date time.Time, amount decimal.Decimal, dir model.Direction, description string) string {
	parts := []string{
		accountID,
		date.Format(model.DateLayout),
		CanonicalAmount(amount),
		string(dir),
		DescriptionHash(description),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// CanonicalAmount renders amount without trailing zeros so 1250.50 and
// 1250.5 compare equal as strings.
func CanonicalAmount(amount decimal.Decimal) string {
	return amount.String()
}
