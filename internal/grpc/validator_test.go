package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidator_Range(t *testing.T) {
	validator := NewRequestValidator()
	now := time.Now()

	tests := []struct {
		name       string
		start      time.Time
		end        time.Time
		wantErr    bool
		errMessage string
	}{
		{
			name:  "valid request",
			start: now.Add(-24 * time.Hour),
			end:   now,
		},
		{
			name:       "missing timestamp",
			start:      time.Time{},
			end:        now,
			wantErr:    true,
			errMessage: "missing timestamp",
		},
		{
			name:       "unix epoch",
			start:      time.Unix(0, 0),
			end:        now,
			wantErr:    true,
			errMessage: "missing timestamp",
		},
		{
			name:       "invalid time range",
			start:      now,
			end:        now.Add(-24 * time.Hour),
			wantErr:    true,
			errMessage: "start time must be before end time",
		},
		{
			name:       "empty time range",
			start:      now,
			end:        now,
			wantErr:    true,
			errMessage: "start time must be before end time",
		},
		{
			name:       "time range too large",
			start:      now.Add(-3 * 365 * 24 * time.Hour),
			end:        now,
			wantErr:    true,
			errMessage: "time range exceeds maximum allowed",
		},
		{
			name:  "exactly two years",
			start: now.Add(-maxTimeRange),
			end:   now,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Range(tt.start, tt.end)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Contains(t, err.Error(), tt.errMessage)
		})
	}
}

func TestRequestValidator_Users(t *testing.T) {
	validator := NewRequestValidator()

	assert.NoError(t, validator.UserID(1))
	assert.ErrorIs(t, validator.UserID(0), ErrInvalidArgument)
	assert.ErrorIs(t, validator.UserID(-4), ErrInvalidArgument)

	assert.NoError(t, validator.UserIDs(nil))
	assert.NoError(t, validator.UserIDs([]int64{1, 2}))
	assert.ErrorIs(t, validator.UserIDs([]int64{1, 0}), ErrInvalidArgument)
}

func TestRequestValidator_Day(t *testing.T) {
	validator := NewRequestValidator()
	berlin := time.FixedZone("CET", 60*60)

	day, err := validator.Day("", berlin)
	require.NoError(t, err)
	assert.True(t, day.IsZero())

	day, err = validator.Day("2024-04-02", berlin)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 2, 0, 0, 0, 0, berlin), day)

	_, err = validator.Day("02.04.2024", berlin)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRequestValidator_Required(t *testing.T) {
	validator := NewRequestValidator()

	assert.NoError(t, validator.Required("device_id", "abc", "code", "x"))
	err := validator.Required("device_id", "abc", "code", "  ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "code is required")
}
