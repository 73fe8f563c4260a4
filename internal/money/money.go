// Package money parses and formats amounts typed into the chat channel.
// Amounts are int64 minor currency units throughout the service.
package money

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidAmount is returned for empty, malformed, zero or negative input.
var ErrInvalidAmount = errors.New("invalid amount")

// multipliers maps shorthand suffixes to their factor. Longer suffixes come
// first so "ribu" is not read as "rb" plus garbage.
var multipliers = []struct {
	suffix string
	factor int64
}{
	{"juta", 1_000_000},
	{"ribu", 1_000},
	{"jt", 1_000_000},
	{"rb", 1_000},
	{"m", 1_000_000},
	{"k", 1_000},
}

// Parse reads a chat amount such as "25000", "25.000", "Rp 25,000", "25k",
// "25rb" or "1.5jt". Without a suffix, '.' and ',' are thousands separators
// and must be followed by exactly three digits. With a suffix, a single
// separator is a decimal point.
func Parse(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, prefix := range []string{"rp.", "rp", "idr", "$"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}

	factor := int64(1)
	for _, m := range multipliers {
		if strings.HasSuffix(s, m.suffix) {
			factor = m.factor
			s = strings.TrimSpace(strings.TrimSuffix(s, m.suffix))
			break
		}
	}

	var amount int64
	var err error
	if factor == 1 {
		amount, err = parseGrouped(s)
	} else {
		amount, err = parseScaled(s, factor)
	}
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return amount, nil
}

func parseGrouped(s string) (int64, error) {
	groups := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == ',' })
	if len(groups) == 0 || strings.HasSuffix(s, ".") || strings.HasSuffix(s, ",") {
		return 0, ErrInvalidAmount
	}
	for i, g := range groups {
		if !allDigits(g) || (i > 0 && len(g) != 3) {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(strings.Join(groups, ""), 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

func parseScaled(s string, factor int64) (int64, error) {
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 || parts[0] == "" || !allDigits(parts[0]) {
		return 0, ErrInvalidAmount
	}
	whole, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || whole > (1<<63-1)/factor {
		return 0, ErrInvalidAmount
	}
	amount := whole * factor

	if len(parts) == 2 {
		frac := parts[1]
		if frac == "" || !allDigits(frac) {
			return 0, ErrInvalidAmount
		}
		scale := factor
		for _, r := range frac {
			scale /= 10
			if scale == 0 {
				return 0, ErrInvalidAmount
			}
			amount += int64(r-'0') * scale
		}
	}
	return amount, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Format renders an amount with comma thousands grouping, e.g. 1,250,000.
func Format(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
