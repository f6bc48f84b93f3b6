package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"01-03-2024", "2024-03-01"},
		{"2024-03-01", "2024-03-01"},
		{"01/03/2024", "2024-03-01"},
		{"2024/03/01", "2024-03-01"},
		{"31-12-2023", "2023-12-31"},
		{"01/03/2024 10:22:11", "2024-03-01"},
		{`"15-08-2024"`, "2024-08-15"},
		{"05 Feb 2024", "2024-02-05"},
		{"5 Feb 2024", "2024-02-05"},
		{"05-Feb-2024", "2024-02-05"},
		{"05-Feb-24", "2024-02-05"},
		{"Feb 5, 2024", "2024-02-05"},
		{"5-2-2024", "2024-02-05"},
		{"05.02.2024", "2024-02-05"},
		{"20240205", "2024-02-05"},
		{"2024-02-05T13:45:00Z", "2024-02-05"},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.raw)
		require.NoError(t, err, "ParseDate(%q)", tt.raw)
		assert.Equal(t, tt.want, got.Format("2006-01-02"), "ParseDate(%q)", tt.raw)
		assert.Equal(t, time.UTC, got.Location())
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, raw := range []string{"", "NOTADATE", "31-02-2024", "2024-13-01", "Opening Balance"} {
		_, err := ParseDate(raw)
		assert.ErrorIs(t, err, ErrUnparseableDate, "ParseDate(%q)", raw)
	}
}

func TestDateOnly(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	in := time.Date(2024, 3, 1, 23, 59, 0, 0, ist)
	got := DateOnly(in)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)
}
