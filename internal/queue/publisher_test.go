package queue

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// silentBroker accepts TCP connections and never speaks AMQP.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func TestPublisher_HonoursDeadline(t *testing.T) {
	p := NewPublisher(silentBroker(t), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.PublishSeatsBooked(ctx, SeatsBookedEvent{BookingID: "b-1", SeatCount: 1, Seats: []int{1}})
	if err == nil {
		t.Fatal("expected error from a broker that never answers")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("expected publish to give up near the deadline, took %s", elapsed)
	}
}

func TestPublisher_CancelledContext(t *testing.T) {
	p := NewPublisher(silentBroker(t), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.PublishVenueReset(ctx, VenueResetEvent{}); err == nil {
		t.Error("expected error for a cancelled context")
	}
}
