package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest covers non-positive counts and counts above the
	// per-booking maximum.
	ErrInvalidRequest = errors.New("invalid booking request")
	// ErrInsufficientCapacity means no row or row span can hold the block.
	ErrInsufficientCapacity = errors.New("insufficient capacity")
)

// Booker ties a venue to its per-booking maximum and is the entry point for
// booking and reset requests.
type Booker struct {
	venue    *Venue
	maxBlock int
}

// NewBooker wraps v.  maxBlock must be positive.
func NewBooker(v *Venue, maxBlock int) (*Booker, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil venue", ErrInvalidLayout)
	}
	if maxBlock <= 0 {
		return nil, fmt.Errorf("%w: max block %d", ErrInvalidLayout, maxBlock)
	}
	return &Booker{venue: v, maxBlock: maxBlock}, nil
}

// MaxBlock is the largest count a single request may ask for.
func (b *Booker) MaxBlock() int { return b.maxBlock }

// Venue exposes the underlying venue for read-only queries.
func (b *Booker) Venue() *Venue { return b.venue }

// Validate checks count against the request bounds without planning.
func (b *Booker) Validate(count int) error {
	if count <= 0 {
		return fmt.Errorf("%w: count must be positive, got %d", ErrInvalidRequest, count)
	}
	if count > b.maxBlock {
		return fmt.Errorf("%w: count %d exceeds maximum of %d", ErrInvalidRequest, count, b.maxBlock)
	}
	return nil
}

// RequestBooking plans and executes a block of count seats.  On any error
// the venue is left untouched.
func (b *Booker) RequestBooking(count int) (Result, error) {
	if err := b.Validate(count); err != nil {
		return Result{}, err
	}
	p, ok := FindPlan(b.venue, count)
	if !ok {
		return Result{}, fmt.Errorf("%w: %d requested, %d available", ErrInsufficientCapacity, count, b.venue.EmptyCount())
	}
	return Execute(b.venue, p, count), nil
}

// Reset empties the venue.
func (b *Booker) Reset() { b.venue.Reset() }

func (b *Booker) Snapshot() [][]SeatState { return b.venue.Snapshot() }
func (b *Booker) OccupiedCount() int      { return b.venue.OccupiedCount() }
func (b *Booker) EmptyCount() int         { return b.venue.EmptyCount() }
func (b *Booker) TotalSeats() int         { return b.venue.TotalSeats() }
