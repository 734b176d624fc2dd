package todo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDueDate is returned for due dates that are malformed, do not
// exist in the current year, or lie before today.
var ErrInvalidDueDate = errors.New("please enter a valid future date (DD/MM format)")

// FormatDueDate normalizes free-text input the way the entry field does on
// every keystroke: non-digits are dropped, a slash follows the second digit
// and anything past four digits is discarded.
func FormatDueDate(input string) string {
	var digits strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case len(d) <= 2:
		return d
	case len(d) == 3:
		return d[:2] + "/" + d[2:]
	default:
		return d[:2] + "/" + d[2:4]
	}
}

// NormalizeDueDate formats raw and validates it against now. The date is
// assumed to fall in now's year, so the same DD/MM may be accepted one
// year and rejected the next.
func NormalizeDueDate(raw string, now time.Time) (string, error) {
	formatted := FormatDueDate(raw)
	if len(formatted) != len("DD/MM") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDueDate, raw)
	}

	day, errDay := strconv.Atoi(formatted[:2])
	month, errMonth := strconv.Atoi(formatted[3:])
	if errDay != nil || errMonth != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDueDate, raw)
	}
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: month %d out of range", ErrInvalidDueDate, month)
	}
	if day < 1 || day > 31 {
		return "", fmt.Errorf("%w: day %d out of range", ErrInvalidDueDate, day)
	}

	due := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location())
	if due.Day() != day {
		// time.Date rolls 29/02 into March in non-leap years.
		return "", fmt.Errorf("%w: %s does not exist in %d", ErrInvalidDueDate, formatted, now.Year())
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if due.Before(today) {
		return "", fmt.Errorf("%w: %s is in the past", ErrInvalidDueDate, formatted)
	}
	return formatted, nil
}

// ValidateDueDate reports whether raw is an acceptable due date at now.
func ValidateDueDate(raw string, now time.Time) error {
	_, err := NormalizeDueDate(raw, now)
	return err
}

