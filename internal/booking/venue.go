// Package booking holds the seat allocation core: the venue layout with its
// per-seat occupancy, the availability scans, the planner that decides where
// a block of seats is carved from and the executor that applies the plan.
// Nothing in this package performs I/O or synchronisation; callers that share
// a Venue between goroutines must serialise access themselves.
package booking

import (
	"errors"
	"fmt"
)

// SeatState is the occupancy of a single seat.
type SeatState uint8

const (
	Empty SeatState = iota
	Occupied
)

// String returns the lower-case state name used in API payloads.
func (s SeatState) String() string {
	if s == Occupied {
		return "occupied"
	}
	return "empty"
}

// ErrInvalidLayout is returned when a venue is built from an unusable
// capacity list.
var ErrInvalidLayout = errors.New("invalid venue layout")

// Venue is the fixed row/seat layout of one booking session.  The number of
// rows and each row's capacity never change after NewVenue.
type Venue struct {
	capacities []int
	rows       [][]SeatState
}

// NewVenue builds a venue with every seat Empty.  capacities lists the
// number of seats in each row, in row order.
func NewVenue(capacities []int) (*Venue, error) {
	if len(capacities) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidLayout)
	}
	caps := make([]int, len(capacities))
	rows := make([][]SeatState, len(capacities))
	for i, c := range capacities {
		if c <= 0 {
			return nil, fmt.Errorf("%w: row %d has capacity %d", ErrInvalidLayout, i+1, c)
		}
		caps[i] = c
		rows[i] = make([]SeatState, c)
	}
	return &Venue{capacities: caps, rows: rows}, nil
}

// Rows returns the number of rows.
func (v *Venue) Rows() int { return len(v.rows) }

// Capacity returns the number of seats in row.
func (v *Venue) Capacity(row int) int { return v.capacities[row] }

// Capacities returns a copy of the row capacity list.
func (v *Venue) Capacities() []int {
	out := make([]int, len(v.capacities))
	copy(out, v.capacities)
	return out
}

// Seat returns the state of the seat at (row, pos).
func (v *Venue) Seat(row, pos int) SeatState { return v.rows[row][pos] }

// TotalSeats is the sum of all row capacities.
func (v *Venue) TotalSeats() int {
	n := 0
	for _, c := range v.capacities {
		n += c
	}
	return n
}

// OccupiedCount counts occupied seats across the venue.
func (v *Venue) OccupiedCount() int { return v.TotalSeats() - v.EmptyCount() }

// EmptyCount counts empty seats across the venue.
func (v *Venue) EmptyCount() int { return v.EmptyInSpan(0, len(v.rows)) }

// Snapshot returns a deep copy of every row so callers never alias the live
// state.
func (v *Venue) Snapshot() [][]SeatState {
	out := make([][]SeatState, len(v.rows))
	for i, r := range v.rows {
		out[i] = make([]SeatState, len(r))
		copy(out[i], r)
	}
	return out
}

// Reset returns every seat to Empty.  Calling it repeatedly is harmless.
func (v *Venue) Reset() {
	for _, r := range v.rows {
		for i := range r {
			r[i] = Empty
		}
	}
}

// occupy marks a single seat.  Only the executor calls it.
func (v *Venue) occupy(row, pos int) { v.rows[row][pos] = Occupied }
