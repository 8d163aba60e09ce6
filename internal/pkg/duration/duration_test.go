package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"500", 500 * time.Millisecond},
		{"100ms", 100 * time.Millisecond},
		{"10s", 10 * time.Second},
		{"10 seconds", 10 * time.Second},
		{"1m", time.Minute},
		{"5 mins", 5 * time.Minute},
		{"2.5 hours", 150 * time.Minute},
		{"2.5 HRS", 150 * time.Minute},
		{"1d", 24 * time.Hour},
		{"3 days", 72 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"1y", time.Duration(365.25 * 24 * float64(time.Hour))},
		{".5s", 500 * time.Millisecond},
		{"-3 weeks", -21 * 24 * time.Hour},
		{"-1h", -time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "10 lightyears", "1h30m", "--1s", string(make([]byte, 101))} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalid, "%q", in)
	}
}

func TestExpiryFrom(t *testing.T) {
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	exp := ExpiryFrom("1h", now)
	require.NotNil(t, exp)
	assert.Equal(t, now.Add(time.Hour), *exp)

	assert.Nil(t, ExpiryFrom("", now))
	assert.Nil(t, ExpiryFrom("0", now))
	assert.Nil(t, ExpiryFrom("-5m", now))
	assert.Nil(t, ExpiryFrom("soon", now))
}

func TestParse_OutOfRange(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		// Rounds to exactly 2^63 nanoseconds as a float64.
		{"rounds to max", "9223372036854.775808"},
		{"far above max", "300 years"},
		{"far below min", "-300 years"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	got, err := Parse("292 years")
	require.NoError(t, err)
	assert.Positive(t, got)
}
