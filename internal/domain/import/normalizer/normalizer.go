// Package normalizer converts Brazilian locale-formatted date and value
// strings from bank statements into canonical forms.
package normalizer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnparseableDate is returned when a date string matches no supported layout.
// Callers treat it as a per-row soft failure and drop the row instead of
// guessing a date.
var ErrUnparseableDate = errors.New("unparseable date")

const isoDate = "2006-01-02"

// ParseDate converts a statement date string into a time.Time.
// Accepted inputs: "DD/MM/YYYY", "DD-MM-YYYY", "DD/MM/YY" (and the '-'
// variants, two-digit years expanded by prefixing "20"), and ISO
// "YYYY-MM-DD" which passes through.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrUnparseableDate
	}

	// ISO passthrough.
	if t, err := time.Parse(isoDate, s); err == nil {
		return t, nil
	}

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '-'
	})
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, s)
	}

	day, dayErr := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, monthErr := strconv.Atoi(strings.TrimSpace(parts[1]))
	yearStr := strings.TrimSpace(parts[2])
	if dayErr != nil || monthErr != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, s)
	}

	// Two-digit years are always this century for statement data.
	if len(yearStr) == 2 {
		yearStr = "20" + yearStr
	}
	year, yearErr := strconv.Atoi(yearStr)
	if yearErr != nil || len(yearStr) != 4 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, s)
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, s)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject normalized overflows such as 31/02.
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, s)
	}

	return t, nil
}

// ISODate formats a parsed date back to "YYYY-MM-DD".
func ISODate(t time.Time) string {
	return t.Format(isoDate)
}

// ParseAmount converts a Brazilian-formatted value string ("R$ 1.500,00",
// "1.234,56", "-42,10") into centavos. The sign is preserved.
func ParseAmount(s string) (int64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, "R$", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")

	// Parenthesized negatives show up in some exports.
	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = strings.Trim(cleaned, "()")
	}

	// '.' is the thousands separator, ',' the decimal separator.
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	if cleaned == "" || cleaned == "-" {
		return 0, fmt.Errorf("empty amount")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	cents := d.Mul(decimal.New(1, 2)).Round(0).IntPart()
	if negative {
		cents = -cents
	}
	return cents, nil
}

// AmountOrZero is the lenient variant used while probing rows: malformed
// values degrade to 0 and the caller re-validates before accepting the row.
func AmountOrZero(s string) int64 {
	cents, err := ParseAmount(s)
	if err != nil {
		return 0
	}
	return cents
}

// CleanDescription trims and collapses whitespace in a description cell.
func CleanDescription(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
