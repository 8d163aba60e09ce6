// Package duration parses human-friendly duration strings such as
// "500", "10s", "2.5 hours", "1d" or "-3 weeks".
package duration

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid is returned for strings that are not a duration.
var ErrInvalid = errors.New("invalid duration")

const maxInputLength = 100

var pattern = regexp.MustCompile(`(?i)^(-?(?:\d+)?\.?\d+) *(milliseconds?|msecs?|ms|seconds?|secs?|s|minutes?|mins?|m|hours?|hrs?|h|days?|d|weeks?|w|years?|yrs?|y)?$`)

const (
	day  = 24 * time.Hour
	week = 7 * day
	year = time.Duration(365.25 * float64(day))
)

// Parse converts s to a duration. A bare number is milliseconds.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxInputLength {
		return 0, ErrInvalid
	}

	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return 0, ErrInvalid
	}

	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, ErrInvalid
	}

	unit := time.Millisecond
	switch strings.ToLower(m[2]) {
	case "years", "year", "yrs", "yr", "y":
		unit = year
	case "weeks", "week", "w":
		unit = week
	case "days", "day", "d":
		unit = day
	case "hours", "hour", "hrs", "hr", "h":
		unit = time.Hour
	case "minutes", "minute", "mins", "min", "m":
		unit = time.Minute
	case "seconds", "second", "secs", "sec", "s":
		unit = time.Second
	}

	v := n * float64(unit)
	if v >= math.MaxInt64 || v < math.MinInt64 {
		return 0, ErrInvalid
	}
	return time.Duration(v), nil
}

// ExpiryFrom returns now plus the parsed duration, or nil when s is empty,
// unparseable or not positive. A nil expiry means the content never expires.
func ExpiryFrom(s string, now time.Time) *time.Time {
	d, err := Parse(s)
	if err != nil || d <= 0 {
		return nil
	}
	t := now.UTC().Add(d).Truncate(time.Millisecond)
	return &t
}
