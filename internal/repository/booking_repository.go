package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/seat-block-booking/internal/model"
)

// BookingRepo stores the audit trail of executed bookings.  Venue occupancy
// is not persisted; these rows only record who booked which seat numbers.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// Create inserts the booking and its seats in one transaction.
func (r *BookingRepo) Create(ctx context.Context, b model.Booking, seats []model.BookingSeat) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO bookings (id, user_id, seat_count, plan_kind, first_row, last_row, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q, b.ID, b.UserID, b.SeatCount, b.PlanKind, b.FirstRow, b.LastRow, b.Description, b.CreatedAt); err != nil {
		return err
	}
	if len(seats) > 0 {
		var sb strings.Builder
		sb.WriteString(`INSERT INTO booking_seats (booking_id, seat_number, seat_row, seat_position) VALUES `)
		args := make([]interface{}, 0, len(seats)*4)
		for i, s := range seats {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("(?, ?, ?, ?)")
			args = append(args, b.ID, s.SeatNumber, s.RowNumber, s.Position)
		}
		if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ListByUser returns the user's most recent bookings, newest first, each with
// its seat numbers in ascending order.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, seat_count, plan_kind, first_row, last_row, description, created_at
		   FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Booking{}
	index := map[string]int{}
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.UserID, &b.SeatCount, &b.PlanKind, &b.FirstRow, &b.LastRow, &b.Description, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Seats = []int{}
		index[b.ID] = len(out)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]interface{}, 0, len(out))
	for _, b := range out {
		ids = append(ids, b.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	seatRows, err := r.db.QueryContext(ctx,
		`SELECT booking_id, seat_number FROM booking_seats WHERE booking_id IN (`+placeholders+`) ORDER BY seat_number`,
		ids...)
	if err != nil {
		return nil, err
	}
	defer seatRows.Close()
	for seatRows.Next() {
		var (
			id  string
			num int
		)
		if err := seatRows.Scan(&id, &num); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			out[i].Seats = append(out[i].Seats, num)
		}
	}
	return out, seatRows.Err()
}
