// Package deadline converts completion time expressions into absolute deadlines
// and deadlines into whole seconds remaining.
package deadline

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidCompletionTime is returned when a completion time expression is malformed.
var ErrInvalidCompletionTime = errors.New("invalid completion time")

var expression = regexp.MustCompile(`^(\d+)([hm])$`)

// ParseCompletionTime parses expressions of the form "<n>h" or "<n>m" where n
// is a positive integer.
func ParseCompletionTime(expr string) (time.Duration, error) {
	match := expression.FindStringSubmatch(expr)
	if match == nil {
		return 0, fmt.Errorf("%w: %q must look like <n>h or <n>m", ErrInvalidCompletionTime, expr)
	}

	value, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidCompletionTime, expr, err)
	}

	if value <= 0 {
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidCompletionTime, expr)
	}

	unit := time.Minute
	if match[2] == "h" {
		unit = time.Hour
	}

	if value > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("%w: %q is too large", ErrInvalidCompletionTime, expr)
	}

	return time.Duration(value) * unit, nil
}

// Deadline returns start plus the duration described by expr.
func Deadline(start time.Time, expr string) (time.Time, error) {
	d, err := ParseCompletionTime(expr)
	if err != nil {
		return time.Time{}, err
	}

	return start.Add(d), nil
}

// SecondsLeft returns the whole seconds between now and deadline, floored.
// It is zero once now reaches the deadline and never negative.
func SecondsLeft(now, deadline time.Time) int64 {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}

	return int64(remaining / time.Second)
}

// Expired reports whether now is at or past the deadline.
func Expired(now, deadline time.Time) bool {
	return !now.Before(deadline)
}
