// Package service hosts the in-memory venue behind a single exclusive
// section and fans successful mutations out to the audit store, the message
// broker and the response cache.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-block-booking/internal/booking"
	"github.com/iliyamo/seat-block-booking/internal/model"
	"github.com/iliyamo/seat-block-booking/internal/queue"
)

// SessionState is where the booking session is in its request cycle.
type SessionState string

const (
	StateIdle     SessionState = "IDLE"
	StatePlanning SessionState = "PLANNING"
	StateExecuted SessionState = "EXECUTED"
)

const msgNoCapacity = "Cannot book seats. Not enough available seats."

// BookingRecorder stores the audit trail of executed bookings.
type BookingRecorder interface {
	Create(ctx context.Context, b model.Booking, seats []model.BookingSeat) error
}

// EventPublisher announces venue mutations to other processes.
type EventPublisher interface {
	PublishSeatsBooked(ctx context.Context, ev queue.SeatsBookedEvent) error
	PublishVenueReset(ctx context.Context, ev queue.VenueResetEvent) error
}

// CacheInvalidator drops cached venue read responses.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Actor is the authenticated user behind a request.
type Actor struct {
	UserID   uint64
	Username string
}

// Outcome is a successful booking as seen by callers.
type Outcome struct {
	BookingID   string            `json:"booking_id"`
	SeatsBooked int               `json:"seats_booked"`
	Description string            `json:"description"`
	Plan        string            `json:"plan"`
	FirstRow    int               `json:"first_row"`
	LastRow     int               `json:"last_row"`
	Seats       []booking.SeatRef `json:"seats"`
}

// SeatView is one seat in a venue snapshot.
type SeatView struct {
	Number   int  `json:"number"`
	Row      int  `json:"row"`
	Position int  `json:"position"`
	Occupied bool `json:"occupied"`
}

// Stats aggregates the venue counters and the last session message.
type Stats struct {
	Total      int    `json:"total"`
	Occupied   int    `json:"occupied"`
	Available  int    `json:"available"`
	MaxBooking int    `json:"max_booking"`
	Message    string `json:"message"`
}

// BookingService owns one venue.  Every call takes the same mutex, so
// bookings, resets and reads never interleave.
type BookingService struct {
	mu      sync.Mutex
	booker  *booking.Booker
	state   SessionState
	message string

	Recorder BookingRecorder
	Events   EventPublisher
	Cache    CacheInvalidator
	Log      *zap.Logger

	// Side effects run after the lock is released and are bounded by this
	// timeout so a slow broker cannot stall the caller for long.
	SideEffectTimeout time.Duration
	now               func() time.Time
}

// NewBookingService builds an all-empty venue from capacities.  The
// optional collaborators may be set on the returned value before use.
func NewBookingService(capacities []int, maxBooking int, log *zap.Logger) (*BookingService, error) {
	v, err := booking.NewVenue(capacities)
	if err != nil {
		return nil, err
	}
	b, err := booking.NewBooker(v, maxBooking)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingService{
		booker:            b,
		state:             StateIdle,
		Log:               log,
		SideEffectTimeout: 5 * time.Second,
		now:               time.Now,
	}, nil
}

// Book requests count seats for actor.  It returns a wrapped
// booking.ErrInvalidRequest or booking.ErrInsufficientCapacity on failure;
// in that case nothing changed.
func (s *BookingService) Book(ctx context.Context, actor Actor, count int) (Outcome, error) {
	s.mu.Lock()
	s.transition(StatePlanning)
	res, err := s.booker.RequestBooking(count)
	if err != nil {
		s.transition(StateIdle)
		s.message = FailureMessage(err, count, s.booker.MaxBlock())
		s.mu.Unlock()
		s.Log.Info("booking rejected", zap.Uint64("user_id", actor.UserID), zap.Int("count", count), zap.Error(err))
		return Outcome{}, err
	}
	s.transition(StateExecuted)
	s.message = res.Description
	s.transition(StateIdle)
	s.mu.Unlock()

	out := Outcome{
		BookingID:   uuid.NewString(),
		SeatsBooked: res.SeatsBooked,
		Description: res.Description,
		Plan:        res.Plan.Kind.String(),
		FirstRow:    res.FirstRow() + 1,
		LastRow:     res.LastRow() + 1,
		Seats:       res.Seats,
	}
	s.Log.Info("seats booked",
		zap.String("booking_id", out.BookingID),
		zap.Uint64("user_id", actor.UserID),
		zap.Int("count", out.SeatsBooked),
		zap.String("plan", res.Plan.String()),
	)
	s.afterBooking(ctx, actor, out)
	return out, nil
}

// Reset returns every seat to Empty, clears the session message and
// returns how many seats were released.
func (s *BookingService) Reset(ctx context.Context, actor Actor) int {
	s.mu.Lock()
	released := s.booker.OccupiedCount()
	s.booker.Reset()
	s.state = StateIdle
	s.message = ""
	s.mu.Unlock()

	s.Log.Info("venue reset", zap.Uint64("user_id", actor.UserID), zap.Int("released", released))
	s.afterReset(ctx, actor, released)
	return released
}

// Snapshot returns every row with seat numbers and occupancy.
func (s *BookingService) Snapshot() [][]SeatView {
	s.mu.Lock()
	rows := s.booker.Snapshot()
	caps := s.booker.Venue().Capacities()
	s.mu.Unlock()

	out := make([][]SeatView, len(rows))
	for r, row := range rows {
		out[r] = make([]SeatView, len(row))
		for p, st := range row {
			out[r][p] = SeatView{
				Number:   booking.SeatNumber(caps, r, p),
				Row:      r + 1,
				Position: p + 1,
				Occupied: st == booking.Occupied,
			}
		}
	}
	return out
}

// Stats returns the venue counters and session status.
func (s *BookingService) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Total:      s.booker.TotalSeats(),
		Occupied:   s.booker.OccupiedCount(),
		Available:  s.booker.EmptyCount(),
		MaxBooking: s.booker.MaxBlock(),
		Message:    s.message,
	}
}

// State reports the session state.  Calls are serialised, so outside a call
// it is always StateIdle.
func (s *BookingService) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MaxBooking is the configured per-request maximum.
func (s *BookingService) MaxBooking() int { return s.booker.MaxBlock() }

// FailureMessage is the user-facing text for a failed booking of count seats.
func FailureMessage(err error, count, maxBlock int) string {
	switch {
	case errors.Is(err, booking.ErrInsufficientCapacity):
		return msgNoCapacity
	case errors.Is(err, booking.ErrInvalidRequest) && count <= 0:
		return "Please enter a valid number of seats"
	case errors.Is(err, booking.ErrInvalidRequest):
		return fmt.Sprintf("Cannot book more than %d seats at a time", maxBlock)
	}
	return err.Error()
}

// transitions lists the legal moves of the session; Reset may jump to
// StateIdle from anywhere.
var transitions = map[SessionState][]SessionState{
	StateIdle:     {StatePlanning},
	StatePlanning: {StateExecuted, StateIdle},
	StateExecuted: {StateIdle},
}

// transition moves the session to next.  Callers hold s.mu.
func (s *BookingService) transition(next SessionState) {
	for _, allowed := range transitions[s.state] {
		if allowed == next {
			s.state = next
			return
		}
	}
	s.Log.Error("illegal session transition", zap.String("from", string(s.state)), zap.String("to", string(next)))
	s.state = next
}

func (s *BookingService) sideEffectCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.SideEffectTimeout)
}

func (s *BookingService) afterBooking(ctx context.Context, actor Actor, out Outcome) {
	ctx, cancel := s.sideEffectCtx(ctx)
	defer cancel()

	bookedAt := s.now().UTC()
	numbers := make([]int, len(out.Seats))
	seats := make([]model.BookingSeat, len(out.Seats))
	for i, st := range out.Seats {
		numbers[i] = st.Number
		seats[i] = model.BookingSeat{BookingID: out.BookingID, SeatNumber: st.Number, RowNumber: st.Row + 1, Position: st.Position + 1}
	}

	if s.Recorder != nil {
		rec := model.Booking{
			ID:          out.BookingID,
			UserID:      actor.UserID,
			SeatCount:   out.SeatsBooked,
			PlanKind:    out.Plan,
			FirstRow:    out.FirstRow,
			LastRow:     out.LastRow,
			Description: out.Description,
			Seats:       numbers,
			CreatedAt:   bookedAt,
		}
		if err := s.Recorder.Create(ctx, rec, seats); err != nil {
			s.Log.Error("record booking failed", zap.String("booking_id", out.BookingID), zap.Error(err))
		}
	}
	if s.Events != nil {
		ev := queue.SeatsBookedEvent{
			BookingID:   out.BookingID,
			UserID:      actor.UserID,
			Username:    actor.Username,
			SeatCount:   out.SeatsBooked,
			Plan:        out.Plan,
			FirstRow:    out.FirstRow,
			LastRow:     out.LastRow,
			Seats:       numbers,
			Description: out.Description,
			BookedAt:    bookedAt.Format(time.RFC3339),
		}
		if err := s.Events.PublishSeatsBooked(ctx, ev); err != nil {
			s.Log.Warn("publish seats.booked failed", zap.String("booking_id", out.BookingID), zap.Error(err))
		}
	}
	s.invalidate(ctx)
}

func (s *BookingService) afterReset(ctx context.Context, actor Actor, released int) {
	ctx, cancel := s.sideEffectCtx(ctx)
	defer cancel()

	if s.Events != nil {
		ev := queue.VenueResetEvent{
			UserID:        actor.UserID,
			Username:      actor.Username,
			ReleasedSeats: released,
			ResetAt:       s.now().UTC().Format(time.RFC3339),
		}
		if err := s.Events.PublishVenueReset(ctx, ev); err != nil {
			s.Log.Warn("publish venue.reset failed", zap.Error(err))
		}
	}
	s.invalidate(ctx)
}

func (s *BookingService) invalidate(ctx context.Context) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx); err != nil {
		s.Log.Warn("cache invalidation failed", zap.Error(err))
	}
}
