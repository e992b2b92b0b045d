package model

import "time"

// Booking is the audit record of one successful block booking.  The venue
// itself lives in memory; this row only remembers who got which seats.
//
// Fields:
//  ID          – UUID generated by the booking service.
//  UserID      – user that requested the block.
//  SeatCount   – number of seats booked.
//  PlanKind    – "single" or "multi".
//  FirstRow    – first row touched, 1-based.
//  LastRow     – last row touched, 1-based.
//  Description – the message returned to the client.
//  CreatedAt   – when the booking was executed.
type Booking struct {
	ID          string    `json:"id"`
	UserID      uint64    `json:"user_id"`
	SeatCount   int       `json:"seat_count"`
	PlanKind    string    `json:"plan"`
	FirstRow    int       `json:"first_row"`
	LastRow     int       `json:"last_row"`
	Description string    `json:"description"`
	Seats       []int     `json:"seats"`
	CreatedAt   time.Time `json:"created_at"`
}

// BookingSeat links a booking to one seat by its visible number.
type BookingSeat struct {
	BookingID  string // booking_seats.booking_id
	SeatNumber int    // booking_seats.seat_number
	RowNumber  int    // booking_seats.seat_row, 1-based
	Position   int    // booking_seats.seat_position, 1-based within the row
}
