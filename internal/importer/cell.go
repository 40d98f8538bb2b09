// Package importer converts heterogeneous spreadsheet exports into validated,
// deduplicated ledger entries and fiscal receipts. It recognizes both legacy
// positional layouts and header-labeled layouts, resolves column identity,
// coerces locale-ambiguous cell values, validates against reference data and
// fingerprints drafts so repeated imports of overlapping files stay
// idempotent. The package has no UI dependencies and is driven as a library
// by the surrounding application.
package importer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidDate is returned when no supported date pattern matches a cell.
var ErrInvalidDate = errors.New("invalid date")

// Spreadsheet serial dates count days from 1899-12-30; Unix day zero is
// serial 25569.
const serialEpochOffsetDays = 25569

// paidSynonyms are the normalized texts that mark a row as paid. Exact
// matches only for the single-character forms; longer forms also match by
// containment so values like "pago em 2024" still count.
var (
	paidExact    = []string{"s", "y", "x", "1", "sim", "yes", "true", "pago", "paga", "paid"}
	paidContains = []string{"sim", "yes", "true", "pago", "paga", "paid"}
)

// CellText renders a raw cell value as a trimmed string. Numeric cells are
// formatted without exponent notation so serial dates and amounts survive.
func CellText(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// ToISODate coerces a cell into a normalized ISO date string.
//
// Accepted inputs:
//   - numeric spreadsheet serial dates (days since 1899-12-30)
//   - "YYYY-MM-DD"
//   - "DD/MM/YYYY"
//   - "YYYY-MM" (accounting periods, returned as-is once validated)
//
// The interpretation is chosen by the position of the 4-digit year token.
// Returns ErrInvalidDate when no pattern matches or a component is out of
// range.
func ToISODate(cell any) (string, error) {
	switch v := cell.(type) {
	case float64:
		return serialToISO(v)
	case float32:
		return serialToISO(float64(v))
	case int:
		return serialToISO(float64(v))
	case int64:
		return serialToISO(float64(v))
	}

	s := CellText(cell)
	if s == "" {
		return "", ErrInvalidDate
	}

	// A bare number in a text cell is still a serial date.
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		return serialToISO(serial)
	}

	switch {
	case strings.Contains(s, "-"):
		parts := strings.Split(s, "-")
		switch {
		case len(parts) == 3 && len(parts[0]) == 4:
			return buildISO(parts[0], parts[1], parts[2])
		case len(parts) == 2 && len(parts[0]) == 4:
			return buildISOPeriod(parts[0], parts[1])
		}
	case strings.Contains(s, "/"):
		parts := strings.Split(s, "/")
		if len(parts) == 3 && len(parts[2]) == 4 {
			return buildISO(parts[2], parts[1], parts[0])
		}
	}

	return "", ErrInvalidDate
}

func serialToISO(serial float64) (string, error) {
	days := int64(serial)
	if days < 1 || days > 200000 { // ~year 2447, anything past that is garbage
		return "", ErrInvalidDate
	}
	t := time.Unix((days-serialEpochOffsetDays)*86400, 0).UTC()
	return t.Format("2006-01-02"), nil
}

func buildISO(year, month, day string) (string, error) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return "", ErrInvalidDate
	}
	if y < 1000 || m < 1 || m > 12 || d < 1 || d > daysIn(y, m) {
		return "", ErrInvalidDate
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d), nil
}

func buildISOPeriod(year, month string) (string, error) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	if err1 != nil || err2 != nil || y < 1000 || m < 1 || m > 12 {
		return "", ErrInvalidDate
	}
	return fmt.Sprintf("%04d-%02d", y, m), nil
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ToDecimalAmount coerces a cell into a monetary amount.
//
// For strings the decimal separator is the last occurring of "." and ",";
// every other occurrence of either symbol is treated as thousands grouping
// and removed, so "1.234,56" and "1,234.56" both come out as 1234.56.
// Empty or unparseable input yields zero rather than an error: monetary
// fields in legacy exports are best-effort.
func ToDecimalAmount(cell any) decimal.Decimal {
	switch v := cell.(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case float32:
		return decimal.NewFromFloat32(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	}

	s := strings.Join(strings.Fields(CellText(cell)), "")
	if s == "" {
		return decimal.Zero
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	sep := byte(0)
	if lastDot > lastComma {
		sep = '.'
	} else if lastComma > lastDot {
		sep = ','
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == sep && (i == lastDot || i == lastComma):
			b.WriteByte('.')
		case c == '.' || c == ',':
			// grouping symbol, drop
		default:
			b.WriteByte(c)
		}
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ToBooleanFlag reports whether a cell marks a row as paid/yes/true.
// Empty and unrecognized values are false.
func ToBooleanFlag(cell any) bool {
	if v, ok := cell.(bool); ok {
		return v
	}
	s := NormalizeKey(CellText(cell))
	if s == "" {
		return false
	}
	for _, syn := range paidExact {
		if s == syn {
			return true
		}
	}
	for _, syn := range paidContains {
		if strings.Contains(s, syn) {
			return true
		}
	}
	return false
}

// diacriticStripper removes combining marks after NFD decomposition.
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeKey lower-cases, strips diacritics and collapses whitespace.
// Every name and label comparison in the pipeline goes through this, so
// "Educação" and "educacao" resolve to the same category.
func NormalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if stripped, _, err := transform.String(diacriticStripper, s); err == nil {
		s = stripped
	}
	return strings.Join(strings.Fields(s), " ")
}
