package booking

// SeatNumber maps (row, pos) to the 1-based seat number shown to users:
// every seat of the earlier rows, plus pos + 1.
func SeatNumber(capacities []int, row, pos int) int {
	before := 0
	for i := 0; i < row; i++ {
		before += capacities[i]
	}
	return before + pos + 1
}

// Locate is the inverse of SeatNumber.  ok is false for numbers outside the
// layout.
func Locate(capacities []int, number int) (row, pos int, ok bool) {
	if number < 1 {
		return 0, 0, false
	}
	rest := number - 1
	for r, c := range capacities {
		if rest < c {
			return r, rest, true
		}
		rest -= c
	}
	return 0, 0, false
}

// SeatNumber is SeatNumber over this venue's layout.
func (v *Venue) SeatNumber(row, pos int) int { return SeatNumber(v.capacities, row, pos) }
