package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlaps(t *testing.T) {
	base := DateRange{CheckIn: date(2024, 3, 1), CheckOut: date(2024, 3, 4)}
	tests := []struct {
		name     string
		other    DateRange
		expected bool
	}{
		{"exact match", base, true},
		{"contained", DateRange{date(2024, 3, 2), date(2024, 3, 3)}, true},
		{"partial start", DateRange{date(2024, 2, 28), date(2024, 3, 2)}, true},
		{"partial end", DateRange{date(2024, 3, 3), date(2024, 3, 6)}, true},
		{"adjacent after", DateRange{date(2024, 3, 4), date(2024, 3, 6)}, false},
		{"adjacent before", DateRange{date(2024, 2, 27), date(2024, 3, 1)}, false},
		{"disjoint", DateRange{date(2024, 4, 1), date(2024, 4, 2)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, base.Overlaps(tt.other))
			assert.Equal(t, tt.expected, tt.other.Overlaps(base), "overlap is symmetric")
		})
	}
}

func TestValidateRange(t *testing.T) {
	today := date(2024, 2, 10)

	rng, nights, err := ValidateRange(today, date(2024, 2, 13), today)
	require.NoError(t, err)
	assert.Equal(t, 3, nights)
	assert.Equal(t, "[2024-02-10, 2024-02-13)", rng.String())

	tests := []struct {
		name     string
		checkIn  time.Time
		checkOut time.Time
		reason   RangeReason
	}{
		{"yesterday", date(2024, 2, 9), date(2024, 2, 12), PastCheckIn},
		{"same day", date(2024, 3, 1), date(2024, 3, 1), InvertedRange},
		{"reversed", date(2024, 3, 5), date(2024, 3, 1), InvertedRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ValidateRange(tt.checkIn, tt.checkOut, today)
			assert.ErrorIs(t, err, ErrInvalidRange)
			var rangeErr *RangeError
			require.True(t, errors.As(err, &rangeErr))
			assert.Equal(t, tt.reason, rangeErr.Reason)
		})
	}
}

func TestValidateRangeIgnoresTimeOfDay(t *testing.T) {
	today := time.Date(2024, 2, 10, 23, 30, 0, 0, time.UTC)
	rng, nights, err := ValidateRange(
		time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 11, 1, 0, 0, 0, time.UTC),
		today,
	)
	require.NoError(t, err)
	assert.Equal(t, 1, nights)
	assert.Equal(t, date(2024, 2, 10), rng.CheckIn)
}

func TestDay(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*3600)
	t1 := time.Date(2024, 3, 1, 1, 0, 0, 0, bangkok)

	assert.Equal(t, date(2024, 3, 1), Day(t1, nil))
	assert.Equal(t, date(2024, 2, 29), Day(t1, time.UTC))

	parsed, err := ParseDay("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 1), Day(parsed, nil))

	_, err = ParseDay("01/03/2024")
	assert.Error(t, err)
}

func TestComputePrice(t *testing.T) {
	_, nights, err := ValidateRange(date(2024, 2, 15), date(2024, 2, 17), date(2024, 2, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2000), ComputePrice(1000, nights))
	assert.Equal(t, int64(4500), ComputePrice(1500, 3))
}
