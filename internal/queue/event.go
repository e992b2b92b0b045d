// Package queue carries booking events over RabbitMQ: the payloads, a
// publisher used by the booking service and the consumer that appends every
// event to the booking log.
package queue

const (
	// SeatsBookedQueue receives one message per executed booking.
	SeatsBookedQueue = "seats.booked"
	// VenueResetQueue receives one message per venue reset.
	VenueResetQueue = "venue.reset"
)

// SeatsBookedEvent is published after a booking has been applied to the
// venue.  Rows are 1-based.
type SeatsBookedEvent struct {
	BookingID   string `json:"booking_id"`
	UserID      uint64 `json:"user_id"`
	Username    string `json:"username"`
	SeatCount   int    `json:"seat_count"`
	Plan        string `json:"plan"`
	FirstRow    int    `json:"first_row"`
	LastRow     int    `json:"last_row"`
	Seats       []int  `json:"seats"`
	Description string `json:"description"`
	BookedAt    string `json:"booked_at"`
}

// VenueResetEvent is published after every seat has been released.
type VenueResetEvent struct {
	UserID        uint64 `json:"user_id"`
	Username      string `json:"username"`
	ReleasedSeats int    `json:"released_seats"`
	ResetAt       string `json:"reset_at"`
}
