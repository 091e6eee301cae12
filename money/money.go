// Package money holds CHF amounts as integer Rappen so that sums of prices,
// fees and discounts never drift.
package money

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
)

// Amount is a CHF amount in Rappen (1/100 franc).
type Amount int64

// FromFloat converts a decimal franc value, rounding half away from zero.
func FromFloat(f float64) Amount {
	return Amount(math.Round(f * 100))
}

// Francs builds an amount from whole francs and Rappen.
func Francs(francs, rappen int64) Amount {
	return Amount(francs*100 + rappen)
}

func (a Amount) Float64() float64 {
	return float64(a) / 100
}

// WholeFrancs truncates toward zero.
func (a Amount) WholeFrancs() int64 {
	return int64(a) / 100
}

// Percent returns a × basisPoints / 10000 rounded half up, e.g. 810 for 8.1%.
func (a Amount) Percent(basisPoints int64) Amount {
	if a <= 0 {
		return 0
	}
	return Amount((int64(a)*basisPoints + 5000) / 10000)
}

// Mul multiplies by a whole quantity.
func (a Amount) Mul(n int64) Amount {
	return a * Amount(n)
}

func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// String renders the plain decimal value, e.g. "24.50".
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("money: invalid amount %q", s)
	}
	*a = FromFloat(f)
	return nil
}

func (a Amount) Value() (driver.Value, error) {
	return int64(a), nil
}

func (a *Amount) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = 0
	case int64:
		*a = Amount(v)
	case float64:
		*a = Amount(math.Round(v))
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return err
		}
		*a = Amount(n)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		*a = Amount(n)
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}
	return nil
}
