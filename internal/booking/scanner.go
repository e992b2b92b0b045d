package booking

// EmptyInRow counts the empty seats of a single row by a full scan.
func (v *Venue) EmptyInRow(row int) int {
	n := 0
	for _, s := range v.rows[row] {
		if s == Empty {
			n++
		}
	}
	return n
}

// EmptyInSpan sums the empty seats of the k consecutive rows starting at
// start.  Rows past the end of the venue are ignored.
func (v *Venue) EmptyInSpan(start, k int) int {
	end := start + k
	if end > len(v.rows) {
		end = len(v.rows)
	}
	n := 0
	for r := start; r < end; r++ {
		n += v.EmptyInRow(r)
	}
	return n
}
