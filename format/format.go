// Package format renders amounts, dates and phone numbers the way Swiss
// customers expect them.
package format

import (
	"strings"
	"time"

	"food-ordering-api/money"
)

// Currency renders "Fr. 24.50.-".
func Currency(a money.Amount) string {
	return "Fr. " + a.String() + ".-"
}

// Date renders dd.mm.yyyy.
func Date(t time.Time) string {
	return t.Format("02.01.2006")
}

// Time renders 24h HH:MM.
func Time(t time.Time) string {
	return t.Format("15:04")
}

// Phone formats Swiss numbers as "+41 79 123 45 67". Anything it does not
// recognise is returned trimmed and otherwise untouched.
func Phone(raw string) string {
	trimmed := strings.TrimSpace(raw)
	var digits strings.Builder
	for i, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' && i == 0:
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '/' || r == '(' || r == ')':
		default:
			return trimmed
		}
	}

	d := digits.String()
	var national string
	switch {
	case strings.HasPrefix(d, "+41"):
		national = d[3:]
	case strings.HasPrefix(d, "0041"):
		national = d[4:]
	case strings.HasPrefix(d, "0"):
		national = d[1:]
	default:
		return trimmed
	}
	national = strings.TrimPrefix(national, "0")
	if len(national) != 9 {
		return trimmed
	}
	return "+41 " + national[0:2] + " " + national[2:5] + " " + national[5:7] + " " + national[7:9]
}
