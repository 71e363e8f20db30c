package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount strips currency symbols, letters, spaces and thousands
// separators. "(150.00)" and "150.00-" read as negative. A comma after the
// last dot is a decimal comma ("1.234,56"), as is a lone comma not followed
// by exactly three digits ("150,5").
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}
	first := strings.IndexFunc(s, unicode.IsDigit)
	last := strings.LastIndexFunc(s, unicode.IsDigit)
	if first < 0 || strings.IndexFunc(s[first:last+1], unicode.IsLetter) >= 0 {
		return decimal.Zero, false
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',':
			b.WriteRune(r)
		case r == '-':
			if b.Len() == 0 {
				negative = !negative
			} else {
				return decimal.Zero, false
			}
		case r == '\'', r == '_', unicode.IsSpace(r), unicode.IsLetter(r), unicode.Is(unicode.Sc, r), r == '+':
			// currency codes, symbols and grouping
		default:
			return decimal.Zero, false
		}
	}
	clean, ok := decimalPoint(b.String())
	if !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// decimalPoint rewrites digits with '.' and ',' separators into a plain
// decimal string. More than one decimal separator is rejected.
func decimalPoint(s string) (string, bool) {
	dot := strings.LastIndexByte(s, '.')
	comma := strings.LastIndexByte(s, ',')
	switch {
	case comma > dot && dot >= 0:
		s = strings.ReplaceAll(s, ".", "")
		if strings.Count(s, ",") > 1 {
			return "", false
		}
		s = strings.Replace(s, ",", ".", 1)
	case comma > dot && strings.Count(s, ",") == 1 && len(s)-comma-1 != 3:
		s = strings.Replace(s, ",", ".", 1)
	default:
		s = strings.ReplaceAll(s, ",", "")
	}
	if s == "" || strings.Count(s, ".") > 1 {
		return "", false
	}
	return s, true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"01/02/2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"02 January 2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate tries the compact YYYYMMDD form first, then common layouts,
// then an Excel serial day number. The result is a UTC civil date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if len(s) == 8 && isDigits(s) {
		// time.Parse rejects impossible days such as 20240230
		if t, err := time.Parse("20060102", s); err == nil {
			return t, true
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil(t), true
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 20000 && serial <= 80000 {
		days := math.Floor(serial)
		return excelEpoch.AddDate(0, 0, int(days)), true
	}
	return time.Time{}, false
}

// ParseBool accepts yes/true/y/1/t in any case; everything else is false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "y", "1", "t":
		return true
	}
	return false
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
