package booking

import "fmt"

// SeatRef identifies one seat by coordinate and by its visible number.
type SeatRef struct {
	Row      int `json:"row"`
	Position int `json:"position"`
	Number   int `json:"number"`
}

// Result summarises an executed plan.
type Result struct {
	SeatsBooked int
	Description string
	Plan        Plan
	Seats       []SeatRef
}

// FirstRow and LastRow are the zero-based rows the booking touched.
func (r Result) FirstRow() int {
	if len(r.Seats) == 0 {
		return r.Plan.Row
	}
	return r.Seats[0].Row
}

func (r Result) LastRow() int {
	if len(r.Seats) == 0 {
		return r.Plan.Row
	}
	return r.Seats[len(r.Seats)-1].Row
}

// Execute marks exactly count empty seats inside the plan's rows, in row
// order and then position order, and stops as soon as count is reached.  The
// plan must come from FindPlan on the same, unchanged venue.
func Execute(v *Venue, p Plan, count int) Result {
	last := p.Row
	if p.Kind == MultiRow {
		last = p.Row + p.RowSpan - 1
	}
	seats := make([]SeatRef, 0, count)
rows:
	for row := p.Row; row <= last; row++ {
		for pos := range v.rows[row] {
			if len(seats) == count {
				break rows
			}
			if v.rows[row][pos] != Empty {
				continue
			}
			v.occupy(row, pos)
			seats = append(seats, SeatRef{Row: row, Position: pos, Number: v.SeatNumber(row, pos)})
		}
		if len(seats) == count {
			break
		}
	}

	res := Result{SeatsBooked: len(seats), Plan: p, Seats: seats}
	if p.Kind == MultiRow {
		res.Description = fmt.Sprintf("Booked %d seats across rows %d-%d", res.SeatsBooked, res.FirstRow()+1, res.LastRow()+1)
	} else {
		res.Description = fmt.Sprintf("Booked %d seats in row %d", res.SeatsBooked, p.Row+1)
	}
	return res
}
