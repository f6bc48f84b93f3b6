package journal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cleared-dev/tally/internal/model"
)

// ErrInvalidAmount marks a candidate whose amount is zero or negative.
var ErrInvalidAmount = errors.New("invalid amount")

// ValidationError describes why a candidate cannot be committed.
type ValidationError struct {
	Line        int
	Field       string
	Description string
	Err         error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("line %d %s: %s", e.Line, e.Field, e.Description)
}

func (e ValidationError) Unwrap() error { return e.Err }

// ValidateCandidate checks the fields a committed transaction must carry.
func ValidateCandidate(c model.Candidate) []ValidationError {
	var errs []ValidationError

	if !c.Amount.IsPositive() {
		errs = append(errs, ValidationError{
			Line:        c.Line,
			Field:       "amount",
			Description: fmt.Sprintf("amount %s is not positive", c.Amount.StringFixed(2)),
			Err:         ErrInvalidAmount,
		})
	}
	if !c.Direction.Valid() {
		errs = append(errs, ValidationError{
			Line:        c.Line,
			Field:       "direction",
			Description: fmt.Sprintf("unknown direction %q", c.Direction),
		})
	}
	if strings.TrimSpace(c.Description) == "" {
		errs = append(errs, ValidationError{
			Line:        c.Line,
			Field:       "description",
			Description: "description is empty",
		})
	}
	if c.Date.IsZero() {
		errs = append(errs, ValidationError{
			Line:        c.Line,
			Field:       "date",
			Description: "date is missing",
		})
	}
	return errs
}
