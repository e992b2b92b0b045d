package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer reads seats.booked and venue.reset and appends one line per
// event to <LogDir>/booking.log.
type Consumer struct {
	URL    string
	LogDir string
	Log    *zap.Logger
}

// NewConsumer returns a Consumer for the broker at url writing into logDir.
func NewConsumer(url, logDir string, log *zap.Logger) *Consumer {
	return &Consumer{URL: url, LogDir: logDir, Log: log}
}

// Run dials the broker and consumes until ctx is cancelled, reconnecting
// with exponential backoff (capped at 30s) whenever the connection drops.
// It only returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("booking consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("booking consumer: consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("booking consumer: set QoS failed", zap.Error(err))
	}

	booked, err := subscribe(ch, SeatsBookedQueue)
	if err != nil {
		return err
	}
	resets, err := subscribe(ch, VenueResetQueue)
	if err != nil {
		return err
	}
	c.Log.Info("booking consumer: listening", zap.Strings("queues", []string{SeatsBookedQueue, VenueResetQueue}))

	for {
		var (
			d  amqp.Delivery
			ok bool
			q  string
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok = <-booked:
			q = SeatsBookedQueue
		case d, ok = <-resets:
			q = VenueResetQueue
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := c.Handle(q, d.Body); err != nil {
			c.Log.Error("booking consumer: handle message failed", zap.String("queue", q), zap.Error(err))
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
}

func subscribe(ch *amqp.Channel, queue string) (<-chan amqp.Delivery, error) {
	if err := declare(ch, queue); err != nil {
		return nil, err
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue consume %s: %w", queue, err)
	}
	return msgs, nil
}

// Handle decodes a message from queue and appends its log line.
func (c *Consumer) Handle(queue string, body []byte) error {
	var line string
	switch queue {
	case SeatsBookedQueue:
		var ev SeatsBookedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = FormatSeatsBooked(ev)
	case VenueResetQueue:
		var ev VenueResetEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line = FormatVenueReset(ev)
	default:
		return fmt.Errorf("unknown queue %q", queue)
	}
	return c.appendLine(line)
}

func (c *Consumer) appendLine(line string) error {
	if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.LogDir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.LogDir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatSeatsBooked renders a booking as a single human readable line.
func FormatSeatsBooked(ev SeatsBookedEvent) string {
	nums := make([]string, len(ev.Seats))
	for i, n := range ev.Seats {
		nums[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("[%s] Seats booked | booking_id=%s | user_id=%d | user=%q | count=%d | plan=%s | rows=%d-%d | seats=[%s]",
		ev.BookedAt, ev.BookingID, ev.UserID, ev.Username, ev.SeatCount, ev.Plan, ev.FirstRow, ev.LastRow, strings.Join(nums, ","))
}

// FormatVenueReset renders a reset as a single human readable line.
func FormatVenueReset(ev VenueResetEvent) string {
	return fmt.Sprintf("[%s] Venue reset | user_id=%d | user=%q | released=%d",
		ev.ResetAt, ev.UserID, ev.Username, ev.ReleasedSeats)
}

// sleep waits d or until ctx is done; it reports whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
