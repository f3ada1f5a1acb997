package booking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRange      = errors.New("invalid date range")
	ErrRoomUnavailable   = errors.New("room unavailable")
	ErrInvalidState      = errors.New("invalid reservation state")
	ErrDependencyFailure = errors.New("dependency failure")
)

type RangeReason string

const (
	PastCheckIn   RangeReason = "PastCheckIn"
	InvertedRange RangeReason = "InvertedRange"
)

// RangeError is returned by ValidateRange and unwraps to ErrInvalidRange.
type RangeError struct {
	Reason RangeReason
}

func (e *RangeError) Error() string {
	switch e.Reason {
	case PastCheckIn:
		return "check-in date is in the past"
	case InvertedRange:
		return "check-out date must be after check-in date"
	}
	return string(e.Reason)
}

func (e *RangeError) Unwrap() error { return ErrInvalidRange }

// ConflictError lists the reservations that overlap a requested range.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	ranges := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		ranges[i] = c.String()
	}
	return fmt.Sprintf("room unavailable: overlaps %s", strings.Join(ranges, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrRoomUnavailable }

func notFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func invalidState(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func dependency(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDependencyFailure, op, err)
}
