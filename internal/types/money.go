// README: Money and rate value objects shared across modules (fixed-point, minor units).
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Money is an amount in minor units (cents). JSON form is a two-decimal string.
type Money int64

// Rate is a percentage in hundredths of a percent: 15.00% == Rate(1500).
type Rate int64

const (
	// FullRate is 100.00%.
	FullRate Rate = 10000
)

func (m Money) String() string {
	return formatFixed(int64(m))
}

// MulRate returns m * r rounded half away from zero to the cent.
func (m Money) MulRate(r Rate) Money {
	return Money(roundDiv(int64(m)*int64(r), int64(FullRate)))
}

// Percent returns pct% of m (whole percent), rounded half away from zero.
func (m Money) Percent(pct int64) Money {
	return Money(roundDiv(int64(m)*pct, 100))
}

// Times multiplies by an integer quantity.
func (m Money) Times(n int) Money {
	return m * Money(n)
}

// Scale returns m * num / den rounded half away from zero. den must be positive.
func (m Money) Scale(num, den int64) Money {
	return Money(roundDiv(int64(m)*num, den))
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMoney parses "110", "110.5" or "110.50" into cents. More than two decimals is an error.
func ParseMoney(s string) (Money, error) {
	v, err := parseFixed(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid amount %q", ErrValidation, s)
	}
	return Money(v), nil
}

func (r Rate) String() string {
	return formatFixed(int64(r))
}

// Valid reports whether r lies within 0.00..100.00.
func (r Rate) Valid() bool {
	return r >= 0 && r <= FullRate
}

func (r Rate) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(r.String())), nil
}

func (r *Rate) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	v, err := ParseRate(s)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseRate parses a percentage such as "15" or "15.00".
func ParseRate(s string) (Rate, error) {
	v, err := parseFixed(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid rate %q", ErrValidation, s)
	}
	return Rate(v), nil
}

func formatFixed(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func parseFixed(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	neg := false
	if s[0] == '-' || s[0] == '+' {
		neg = s[0] == '-'
		s = s[1:]
	}
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" || (hasDot && frac == "") || len(frac) > 2 {
		return 0, fmt.Errorf("malformed")
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, fmt.Errorf("malformed")
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("malformed")
	}
	v := w*100 + f
	if neg {
		v = -v
	}
	return v, nil
}

// roundDiv divides n by d rounding half away from zero. d must be positive.
func roundDiv(n, d int64) int64 {
	if n >= 0 {
		return (n + d/2) / d
	}
	return -((-n + d/2) / d)
}
