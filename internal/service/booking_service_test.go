package service

import (
	"context"
	"errors"
	"net"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/seat-block-booking/internal/booking"
	"github.com/iliyamo/seat-block-booking/internal/model"
	"github.com/iliyamo/seat-block-booking/internal/queue"
)

type fakeRecorder struct {
	mu       sync.Mutex
	bookings []model.Booking
	seats    [][]model.BookingSeat
	err      error
}

func (f *fakeRecorder) Create(_ context.Context, b model.Booking, seats []model.BookingSeat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings = append(f.bookings, b)
	f.seats = append(f.seats, seats)
	return f.err
}

type fakeEvents struct {
	mu     sync.Mutex
	booked []queue.SeatsBookedEvent
	resets []queue.VenueResetEvent
}

func (f *fakeEvents) PublishSeatsBooked(_ context.Context, ev queue.SeatsBookedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.booked = append(f.booked, ev)
	return nil
}

func (f *fakeEvents) PublishVenueReset(_ context.Context, ev queue.VenueResetEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, ev)
	return errors.New("broker down")
}

type fakeCache struct{ calls int }

func (f *fakeCache) Invalidate(context.Context) error {
	f.calls++
	return nil
}

func newService(t *testing.T, caps []int, maxBooking int) *BookingService {
	t.Helper()
	s, err := NewBookingService(caps, maxBooking, zap.NewNop())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	s.now = func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestNewBookingService_InvalidConfig(t *testing.T) {
	if _, err := NewBookingService(nil, 7, nil); !errors.Is(err, booking.ErrInvalidLayout) {
		t.Errorf("expected ErrInvalidLayout, got %v", err)
	}
	if _, err := NewBookingService([]int{3}, 0, nil); !errors.Is(err, booking.ErrInvalidLayout) {
		t.Errorf("expected ErrInvalidLayout, got %v", err)
	}
}

func TestBook_FansOut(t *testing.T) {
	s := newService(t, []int{2, 2, 2}, 7)
	rec, ev, cache := &fakeRecorder{}, &fakeEvents{}, &fakeCache{}
	s.Recorder, s.Events, s.Cache = rec, ev, cache

	out, err := s.Book(context.Background(), Actor{UserID: 9, Username: "alice"}, 3)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.Plan != "multi" || out.FirstRow != 1 || out.LastRow != 2 || out.SeatsBooked != 3 {
		t.Errorf("unexpected outcome %+v", out)
	}
	if out.Description != "Booked 3 seats across rows 1-2" {
		t.Errorf("unexpected description %q", out.Description)
	}
	if len(rec.bookings) != 1 || rec.bookings[0].ID != out.BookingID || rec.bookings[0].UserID != 9 {
		t.Fatalf("unexpected recorded bookings %+v", rec.bookings)
	}
	wantSeats := []model.BookingSeat{
		{BookingID: out.BookingID, SeatNumber: 1, RowNumber: 1, Position: 1},
		{BookingID: out.BookingID, SeatNumber: 2, RowNumber: 1, Position: 2},
		{BookingID: out.BookingID, SeatNumber: 3, RowNumber: 2, Position: 1},
	}
	if !reflect.DeepEqual(rec.seats[0], wantSeats) {
		t.Errorf("expected %+v, got %+v", wantSeats, rec.seats[0])
	}
	if len(ev.booked) != 1 || !reflect.DeepEqual(ev.booked[0].Seats, []int{1, 2, 3}) || ev.booked[0].BookedAt != "2026-10-17T09:00:00Z" {
		t.Errorf("unexpected events %+v", ev.booked)
	}
	if cache.calls != 1 {
		t.Errorf("expected 1 cache invalidation, got %d", cache.calls)
	}
	if st := s.Stats(); st.Occupied != 3 || st.Available != 3 || st.Message != out.Description {
		t.Errorf("unexpected stats %+v", st)
	}
	if s.State() != StateIdle {
		t.Errorf("expected idle session, got %s", s.State())
	}
}

func TestBook_RecorderFailureKeepsBooking(t *testing.T) {
	s := newService(t, []int{3}, 3)
	s.Recorder = &fakeRecorder{err: errors.New("db down")}
	if _, err := s.Book(context.Background(), Actor{UserID: 1}, 2); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if s.Stats().Occupied != 2 {
		t.Errorf("expected booking to stand")
	}
}

func TestBook_FailureMessages(t *testing.T) {
	s := newService(t, []int{7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 3}, 7)
	cache := &fakeCache{}
	s.Cache = cache
	tests := []struct {
		count   int
		wantErr error
		wantMsg string
	}{
		{count: 0, wantErr: booking.ErrInvalidRequest, wantMsg: "Please enter a valid number of seats"},
		{count: 8, wantErr: booking.ErrInvalidRequest, wantMsg: "Cannot book more than 7 seats at a time"},
	}
	for _, tt := range tests {
		_, err := s.Book(context.Background(), Actor{}, tt.count)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("count %d: expected %v, got %v", tt.count, tt.wantErr, err)
		}
		if msg := s.Stats().Message; msg != tt.wantMsg {
			t.Errorf("count %d: expected %q, got %q", tt.count, tt.wantMsg, msg)
		}
		if got := FailureMessage(err, tt.count, 7); got != tt.wantMsg {
			t.Errorf("count %d: expected %q, got %q", tt.count, tt.wantMsg, got)
		}
	}
	if cache.calls != 0 {
		t.Errorf("expected no invalidation on failure, got %d", cache.calls)
	}
}

func TestBook_InsufficientCapacity(t *testing.T) {
	s := newService(t, []int{2}, 5)
	before := s.Snapshot()
	_, err := s.Book(context.Background(), Actor{}, 3)
	if !errors.Is(err, booking.ErrInsufficientCapacity) {
		t.Fatalf("expected ErrInsufficientCapacity, got %v", err)
	}
	if s.Stats().Message != "Cannot book seats. Not enough available seats." {
		t.Errorf("unexpected message %q", s.Stats().Message)
	}
	if !reflect.DeepEqual(before, s.Snapshot()) {
		t.Errorf("expected unchanged snapshot")
	}
}

func TestReset_ClearsMessageAndPublishes(t *testing.T) {
	s := newService(t, []int{3, 3}, 3)
	ev, cache := &fakeEvents{}, &fakeCache{}
	s.Events, s.Cache = ev, cache

	if _, err := s.Book(context.Background(), Actor{}, 3); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	released := s.Reset(context.Background(), Actor{UserID: 2, Username: "op"})
	if released != 3 {
		t.Errorf("expected 3 released, got %d", released)
	}
	if again := s.Reset(context.Background(), Actor{}); again != 0 {
		t.Errorf("expected second reset to release nothing, got %d", again)
	}
	st := s.Stats()
	if st.Occupied != 0 || st.Available != 6 || st.Message != "" {
		t.Errorf("unexpected stats after reset %+v", st)
	}
	if len(ev.resets) != 2 || ev.resets[0].ReleasedSeats != 3 || ev.resets[0].Username != "op" {
		t.Errorf("unexpected reset events %+v", ev.resets)
	}
	if cache.calls != 3 {
		t.Errorf("expected 3 invalidations, got %d", cache.calls)
	}
}

func TestSnapshot_Numbers(t *testing.T) {
	s := newService(t, []int{2, 3}, 3)
	if _, err := s.Book(context.Background(), Actor{}, 3); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	snap := s.Snapshot()
	want := [][]SeatView{
		{{Number: 1, Row: 1, Position: 1}, {Number: 2, Row: 1, Position: 2}},
		{{Number: 3, Row: 2, Position: 1, Occupied: true}, {Number: 4, Row: 2, Position: 2, Occupied: true}, {Number: 5, Row: 2, Position: 3, Occupied: true}},
	}
	if !reflect.DeepEqual(snap, want) {
		t.Errorf("expected %+v, got %+v", want, snap)
	}
}

func TestBook_ConcurrentCallsNeverOverbook(t *testing.T) {
	s := newService(t, []int{7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 3}, 7)
	var wg sync.WaitGroup
	var mu sync.Mutex
	booked := 0
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.Book(context.Background(), Actor{}, 3)
			if err == nil {
				mu.Lock()
				booked += out.SeatsBooked
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	st := s.Stats()
	if st.Occupied != booked || booked != 78 {
		t.Errorf("expected 78 seats booked and occupied, got booked=%d occupied=%d", booked, st.Occupied)
	}
}

func TestBook_SilentBrokerBoundedBySideEffectTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	var (
		mu   sync.Mutex
		held []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			held = append(held, c)
			mu.Unlock()
		}
	}()
	defer func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range held {
			_ = c.Close()
		}
	}()

	s := newService(t, []int{7}, 7)
	s.Events = queue.NewPublisher("amqp://guest:guest@"+ln.Addr().String()+"/", zap.NewNop())
	s.SideEffectTimeout = 500 * time.Millisecond

	start := time.Now()
	out, err := s.Book(context.Background(), Actor{UserID: 1}, 2)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.SeatsBooked != 2 || s.Stats().Occupied != 2 {
		t.Errorf("expected booking to stand, got %+v", out)
	}
	if elapsed > 3*time.Second {
		t.Errorf("expected Book to return near SideEffectTimeout, took %s", elapsed)
	}
}
