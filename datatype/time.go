package datatype

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// CurrentDate is the literal source value resolved to today's date at coercion time.
const CurrentDate = "current_date"

// coerceTime accepts a year integer or a date string. Precision follows the
// number of separators (none: year, one: month, two: day) unless opts.Precision
// is set, which always wins.
func coerceTime(dt Datatype, raw any, opts Options) (Value, error) {
	var (
		year, month, day int
		negative         bool
		detected         Precision
	)

	switch v := raw.(type) {
	case int:
		year, negative, detected = abs(v), v < 0, PrecisionYear
	case int64:
		year, negative, detected = abs(int(v)), v < 0, PrecisionYear
	case uint64, float64, float32, json.Number:
		y, ok := integralYear(v)
		if !ok {
			return nil, coercionError(dt, raw, "a whole year", nil)
		}
		year, negative, detected = abs(y), y < 0, PrecisionYear
	case time.Time:
		year, month, day, detected = v.Year(), int(v.Month()), v.Day(), PrecisionDay
	case string:
		s := strings.TrimSpace(v)
		if s == CurrentDate {
			now := opts.now()
			year, month, day, detected = now.Year(), int(now.Month()), now.Day(), PrecisionDay
			break
		}
		var err error
		year, month, day, negative, detected, err = parseDate(s)
		if err != nil {
			return nil, coercionError(dt, raw, "YYYY, YYYY-MM or YYYY-MM-DD", err)
		}
	default:
		return nil, coercionError(dt, raw, "a date string or year integer", nil)
	}

	precision := detected
	if opts.Precision != 0 {
		if opts.Precision < 1 || opts.Precision > PrecisionDay {
			return nil, coercionError(dt, raw, "a precision between 1 and 11", fmt.Errorf("precision %d", opts.Precision))
		}
		precision = opts.Precision
	}
	if precision < PrecisionMonth {
		month, day = 0, 0
	} else if precision < PrecisionDay {
		day = 0
	}

	sign := "+"
	if negative {
		sign = "-"
	}
	return Time{
		Time:      fmt.Sprintf("%s%04d-%02d-%02dT00:00:00Z", sign, year, month, day),
		Precision: precision,
		Calendar:  GregorianCalendar,
	}, nil
}

func parseDate(s string) (year, month, day int, negative bool, precision Precision, err error) {
	if i := strings.IndexByte(s, 'T'); i > 0 {
		s = s[:i]
	}
	switch {
	case strings.HasPrefix(s, "-"):
		negative, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" {
		return 0, 0, 0, false, 0, errors.New("empty date")
	}

	parts := strings.Split(s, "-")
	if len(parts) > 3 {
		return 0, 0, 0, false, 0, fmt.Errorf("too many separators in %q", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 0 {
			return 0, 0, 0, false, 0, fmt.Errorf("non-numeric date part %q", p)
		}
		nums[i] = n
	}

	year = nums[0]
	precision = PrecisionYear
	if len(nums) > 1 {
		month = nums[1]
		if month < 1 || month > 12 {
			return 0, 0, 0, false, 0, fmt.Errorf("month %d out of range", month)
		}
		precision = PrecisionMonth
	}
	if len(nums) > 2 {
		day = nums[2]
		if day < 1 || day > daysIn(year, month) {
			return 0, 0, 0, false, 0, fmt.Errorf("day %d out of range", day)
		}
		precision = PrecisionDay
	}
	return year, month, day, negative, precision, nil
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// integralYear reads a decoded number as a year. Fractional and out-of-range
// values are rejected.
func integralYear(raw any) (int, bool) {
	var f float64
	switch v := raw.(type) {
	case uint64:
		if v > math.MaxInt32 {
			return 0, false
		}
		return int(v), true
	case float64:
		f = v
	case float32:
		f = float64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			if n > math.MaxInt32 || n < math.MinInt32 {
				return 0, false
			}
			return int(n), true
		}
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
