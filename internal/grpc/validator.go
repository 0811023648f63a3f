package server

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxTimeRange = 2 * 365 * 24 * time.Hour

// ErrInvalidArgument marks request validation failures.
var ErrInvalidArgument = errors.New("invalid argument")

type RequestValidator struct{}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// UserID checks that id names a user.
func (v *RequestValidator) UserID(id int64) error {
	if id <= 0 {
		return invalid("user id must be positive, got %d", id)
	}
	return nil
}

// UserIDs checks an optional list of users.
func (v *RequestValidator) UserIDs(ids []int64) error {
	for _, id := range ids {
		if err := v.UserID(id); err != nil {
			return err
		}
	}
	return nil
}

// Range checks an energy query window
func (v *RequestValidator) Range(start, end time.Time) error {
	// Validate timestamps are present
	if start.IsZero() || end.IsZero() || start.Equal(time.Unix(0, 0)) || end.Equal(time.Unix(0, 0)) {
		return invalid("missing timestamp")
	}

	// Validate time range
	if !start.Before(end) {
		return invalid("start time must be before end time")
	}

	// Validate maximum time range
	if end.Sub(start) > maxTimeRange {
		return invalid("time range exceeds maximum allowed")
	}

	return nil
}

// Day parses an optional YYYY-MM-DD date in loc. An empty string yields
// the zero time.
func (v *RequestValidator) Day(day string, loc *time.Location) (time.Time, error) {
	if day == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, day, loc)
	if err != nil {
		return time.Time{}, invalid("day must be YYYY-MM-DD, got %q", day)
	}
	return t, nil
}

// Required checks that every named field is set.
func (v *RequestValidator) Required(fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			return invalid("%s is required", fields[i])
		}
	}
	return nil
}
