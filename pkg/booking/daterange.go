package booking

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Day truncates t to its calendar date in loc (t's own location when loc is
// nil) and returns that date at UTC midnight, so stored dates compare
// independently of the server zone.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD", s)
	}
	return t, nil
}

// DateRange is a half-open stay window [CheckIn, CheckOut).
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func (r DateRange) Overlaps(o DateRange) bool {
	return r.CheckIn.Before(o.CheckOut) && r.CheckOut.After(o.CheckIn)
}

// Nights counts calendar days between check-in and check-out.
func (r DateRange) Nights() int {
	return int(r.CheckOut.Sub(r.CheckIn).Hours()+23) / 24
}

func (r DateRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.CheckIn.Format(DateLayout), r.CheckOut.Format(DateLayout))
}

// ValidateRange normalizes both dates to their calendar day and checks them
// against today. On success it returns the normalized range and the number
// of nights.
func ValidateRange(checkIn, checkOut, today time.Time) (DateRange, int, error) {
	r := DateRange{CheckIn: Day(checkIn, nil), CheckOut: Day(checkOut, nil)}
	if r.CheckIn.Before(Day(today, nil)) {
		return r, 0, &RangeError{Reason: PastCheckIn}
	}
	if !r.CheckOut.After(r.CheckIn) {
		return r, 0, &RangeError{Reason: InvertedRange}
	}
	return r, r.Nights(), nil
}

// ComputePrice is nightly price times nights; no proration or fees.
func ComputePrice(nightlyPrice int64, nights int) int64 {
	return nightlyPrice * int64(nights)
}
