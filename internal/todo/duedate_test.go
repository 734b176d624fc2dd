package todo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDueDate(t *testing.T) {
	cases := map[string]string{
		"":        "",
		"1":       "1",
		"12":      "12",
		"123":     "12/3",
		"1234":    "12/34",
		"123456":  "12/34",
		"12/34":   "12/34",
		"a1b2-3x": "12/3",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatDueDate(in), "input %q", in)
	}
}

func TestValidateDueDate(t *testing.T) {
	nonLeap := time.Date(2025, time.January, 10, 15, 0, 0, 0, time.UTC)
	leap := time.Date(2028, time.January, 10, 15, 0, 0, 0, time.UTC)
	june15 := time.Date(2025, time.June, 15, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		now   time.Time
		ok    bool
	}{
		{"feb 29 in non-leap year", "2902", nonLeap, false},
		{"feb 29 in leap year", "2902", leap, true},
		{"all zeros", "0000", nonLeap, false},
		{"month zero", "1500", nonLeap, false},
		{"month thirteen", "0113", nonLeap, false},
		{"day zero", "0003", nonLeap, false},
		{"day thirty-two", "3201", nonLeap, false},
		{"april has thirty days", "3104", nonLeap, false},
		{"today", "1506", june15, true},
		{"yesterday", "1406", june15, false},
		{"tomorrow", "1606", june15, true},
		{"end of year", "31/12", june15, true},
		{"too short", "123", june15, false},
		{"empty", "", june15, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDueDate(tt.input, tt.now)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidDueDate)
			}
		})
	}
}

func TestValidateDueDate_DependsOnCurrentYear(t *testing.T) {
	// The same DD/MM flips validity when the clock moves to the next year.
	assert.NoError(t, ValidateDueDate("2902", time.Date(2028, time.February, 1, 0, 0, 0, 0, time.UTC)))
	assert.Error(t, ValidateDueDate("2902", time.Date(2029, time.February, 1, 0, 0, 0, 0, time.UTC)))
}
