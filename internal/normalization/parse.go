package normalization

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order after the canonical YYYY-MM-DD form.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"20060102",
}

// parseDate parses a calendar date. Only the date part is kept, in UTC.
func parseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return truncateDay(d), nil
	case float64:
		// yyyymmdd read from JSON as a number
		if d == math.Trunc(d) && d >= 19000101 && d <= 99991231 {
			return parseDate(strconv.FormatInt(int64(d), 10))
		}
		return time.Time{}, fmt.Errorf("unsupported numeric date %v", d)
	case string:
		s := strings.TrimSpace(d)
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t, nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return truncateDay(t), nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable date %q", s)
	}
	return time.Time{}, fmt.Errorf("unsupported date type %T", v)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var numberCleaner = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", "_", "", " ", "")

// parseNumber parses a numeric value, tolerating thousands separators,
// currency symbols and a trailing percent sign.
func parseNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		s := numberCleaner.Replace(strings.TrimSpace(n))
		s = strings.TrimSuffix(s, "%")
		if s == "" {
			return 0, fmt.Errorf("empty number")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable number %q", n)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("non-finite number %q", n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("unsupported number type %T", v)
}

// optionalNumber returns nil when v is absent or malformed.
func optionalNumber(v any, present bool) *float64 {
	if !present {
		return nil
	}
	f, err := parseNumber(v)
	if err != nil {
		return nil
	}
	return &f
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		if s == math.Trunc(s) && math.Abs(s) < 1e15 {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case nil:
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
