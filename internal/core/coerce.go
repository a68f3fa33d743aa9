package core

// coerce.go converts raw spreadsheet cells into typed values.
//
// Spreadsheet cells arrive untyped and human-authored:
//   - Locale-formatted numbers ("1.234,56", "$ 250,50")
//   - Dates as native values, serials, or text in several layouts
//   - Excel formula prefixes (="0003")
//
// None of these functions fail. Each returns ok=false when the cell carries no
// usable value, leaving the caller to pick a default.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical date representation produced by AsDate.
const DateLayout = "2006-01-02"

// excelEpochOffset is the serial of 1970-01-01 in the 1900 date system.
const excelEpochOffset = 25569

// serialText matches a five-digit serial, which covers 1973 to 2173.
var serialText = regexp.MustCompile(`^\d{5}(\.\d+)?$`)

var textDateLayouts = []string{
	"2006-01-02",
	"02/01/2006", "2/1/2006",
	"02-01-2006", "2-1-2006",
}

// AsText trims strings, formats finite numbers and booleans.
func AsText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		s := cleanCell(x)
		return s, s != ""
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", false
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

// AsInteger truncates numbers toward zero. Strings keep only their digits,
// negative when the text starts with a minus sign.
func AsInteger(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int(math.Trunc(x)), true
	case int:
		return x, true
	case int64:
		return int(x), true
	case string:
		s := cleanCell(x)
		digits := onlyDigits(s)
		if digits == "" {
			return 0, false
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return 0, false
		}
		if strings.HasPrefix(s, "-") {
			n = -n
		}
		return n, true
	default:
		return 0, false
	}
}

// AsDecimal parses numbers written with either decimal separator.
// When both ',' and '.' appear, the right-most one is the decimal separator.
// A separator that repeats is read as grouping.
func AsDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case string:
		s := normalizeDecimalText(cleanCell(x))
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

func normalizeDecimalText(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.':
			b.WriteRune(r)
		case r == '-':
			if i == 0 || b.Len() == 0 {
				b.WriteRune(r)
			}
		}
	}
	s = b.String()

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case dot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	if s == "-" || s == "." || s == "-." {
		return ""
	}
	return s
}

// AsDate returns v as YYYY-MM-DD. Numbers are read as spreadsheet serials.
func AsDate(v any) (string, bool) {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return "", false
		}
		return x.Format(DateLayout), true
	case float64:
		return serialToDate(x)
	case int:
		return serialToDate(float64(x))
	case int64:
		return serialToDate(float64(x))
	case string:
		return parseDateText(cleanCell(x))
	default:
		return "", false
	}
}

// serialToDate keeps the 1900 leap-year artifact by anchoring on serial 25569.
func serialToDate(serial float64) (string, bool) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) {
		return "", false
	}
	ms := math.Round((serial - excelEpochOffset) * 86400 * 1000)
	return time.UnixMilli(int64(ms)).UTC().Format(DateLayout), true
}

func parseDateText(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	// Serials survive CSV export as text ("45000", "45000.75").
	if serialText.MatchString(s) {
		if serial, err := strconv.ParseFloat(s, 64); err == nil {
			return serialToDate(serial)
		}
	}
	if len(s) == 8 && onlyDigits(s) == s {
		t, err := time.Parse("20060102", s)
		if err != nil {
			return "", false
		}
		return t.Format(DateLayout), true
	}
	// Accept a trailing time part on ISO values ("2023-03-15T00:00:00").
	if len(s) > 10 && s[4] == '-' && (s[10] == 'T' || s[10] == ' ') {
		s = s[:10]
	}
	for _, layout := range textDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), true
		}
	}
	return "", false
}

// cleanCell trims and strips formula wrappers and surrounding quotes.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// isBlank reports whether a cell is empty or whitespace.
func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimFunc(x, unicode.IsSpace) == ""
	case time.Time:
		return x.IsZero()
	default:
		return false
	}
}
