package booking

import "fmt"

// PlanKind tells whether a plan stays within one row or spans several.
type PlanKind uint8

const (
	SingleRow PlanKind = iota + 1
	MultiRow
)

func (k PlanKind) String() string {
	switch k {
	case SingleRow:
		return "single"
	case MultiRow:
		return "multi"
	}
	return "unknown"
}

// Plan describes where a booking will be carved from.  For SingleRow plans
// Row and Count are set and RowSpan is 1; for MultiRow plans Row is the first
// row of the window and RowSpan its length.
type Plan struct {
	Kind    PlanKind
	Row     int
	Count   int
	RowSpan int
}

func (p Plan) String() string {
	if p.Kind == MultiRow {
		return fmt.Sprintf("multi(rows %d-%d)", p.Row+1, p.Row+p.RowSpan)
	}
	return fmt.Sprintf("single(row %d, count %d)", p.Row+1, p.Count)
}

// FindPlan picks the seats for a block of count seats without touching the
// venue.
//
// The first row (by index) holding at least count empty seats wins.  When no
// row qualifies, windows of k consecutive rows are tried for k = 2 upwards,
// every start row of one size before the next size, and the first window
// with enough empty seats wins.  The second return value is false when even
// the whole venue cannot hold the block.
func FindPlan(v *Venue, count int) (Plan, bool) {
	if count <= 0 {
		return Plan{}, false
	}
	n := v.Rows()
	for row := 0; row < n; row++ {
		if v.EmptyInRow(row) >= count {
			return Plan{Kind: SingleRow, Row: row, Count: count, RowSpan: 1}, true
		}
	}
	for k := 2; k <= n; k++ {
		for start := 0; start <= n-k; start++ {
			if v.EmptyInSpan(start, k) >= count {
				return Plan{Kind: MultiRow, Row: start, Count: count, RowSpan: k}, true
			}
		}
	}
	return Plan{}, false
}
