package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// dialTimeout bounds connect and handshake when the caller's context has no
// deadline of its own.
const dialTimeout = 5 * time.Second

// Publisher sends events to durable queues on the default exchange.  Each
// publish dials its own connection so a broker outage never leaves a stale
// channel behind.  Every step of a publish, the AMQP handshake included,
// ends when ctx does.
type Publisher struct {
	URL string
	Log *zap.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *zap.Logger) *Publisher {
	return &Publisher{URL: url, Log: log}
}

// PublishSeatsBooked publishes ev to the seats.booked queue.
func (p *Publisher) PublishSeatsBooked(ctx context.Context, ev SeatsBookedEvent) error {
	return p.publish(ctx, SeatsBookedQueue, ev)
}

// PublishVenueReset publishes ev to the venue.reset queue.
func (p *Publisher) PublishVenueReset(ctx context.Context, ev VenueResetEvent) error {
	return p.publish(ctx, VenueResetQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", queue, err)
	}

	conn, err := p.dial(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()
	// Channel open and queue declare take no context; closing the
	// connection unblocks them.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch, queue); err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		pub,
	); err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", queue, err)
	}
	p.Log.Debug("event published", zap.String("queue", queue), zap.Int("bytes", len(body)))
	return nil
}

// dial opens a connection whose TCP connect honours ctx and whose
// handshake must finish by ctx's deadline.  The library clears the socket
// deadline once the connection is open.
func (p *Publisher) dial(ctx context.Context) (*amqp.Connection, error) {
	return amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			var d net.Dialer
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			deadline, ok := ctx.Deadline()
			if !ok {
				deadline = time.Now().Add(dialTimeout)
			}
			if err := conn.SetDeadline(deadline); err != nil {
				_ = conn.Close()
				return nil, err
			}
			return conn, nil
		},
	})
}

// declare makes sure queue exists.  Durable so messages survive broker
// restarts.
func declare(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		return fmt.Errorf("queue declare %s: %w", queue, err)
	}
	return nil
}
