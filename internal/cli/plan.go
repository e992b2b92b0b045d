package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iliyamo/seat-block-booking/internal/config"
	"github.com/iliyamo/seat-block-booking/internal/service"
)

func newPlanCmd() *cobra.Command {
	var (
		rows       string
		maxBooking int
	)

	cmd := &cobra.Command{
		Use:   "plan COUNT...",
		Short: "Apply block sizes to an empty venue offline and print each result",
		Example: `  seatd plan 7 7 3 5
  seatd plan --rows 4,4,2 --max 4 3 3 2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			venue, err := config.LoadVenue()
			if err != nil {
				return err
			}
			if rows != "" {
				if venue.RowCapacities, err = config.ParseCapacities(rows); err != nil {
					return err
				}
			}
			if maxBooking > 0 {
				venue.MaxBooking = maxBooking
			}
			counts := make([]int, len(args))
			for i, a := range args {
				if counts[i], err = strconv.Atoi(a); err != nil {
					return fmt.Errorf("invalid count %q", a)
				}
			}
			return runPlan(cmd.OutOrStdout(), venue, counts)
		},
	}

	cmd.Flags().StringVar(&rows, "rows", "", "row capacities, front to back (default VENUE_ROW_CAPACITIES)")
	cmd.Flags().IntVar(&maxBooking, "max", 0, "largest block per request (default MAX_BOOKING)")
	return cmd
}

func runPlan(w io.Writer, venue config.VenueConfig, counts []int) error {
	svc, err := service.NewBookingService(venue.RowCapacities, venue.MaxBooking, nil)
	if err != nil {
		return err
	}
	ctx := context.Background()
	for i, n := range counts {
		out, err := svc.Book(ctx, service.Actor{}, n)
		if err != nil {
			fmt.Fprintf(w, "#%d %d: %s\n", i+1, n, service.FailureMessage(err, n, venue.MaxBooking))
			continue
		}
		nums := make([]string, len(out.Seats))
		for j, s := range out.Seats {
			nums[j] = strconv.Itoa(s.Number)
		}
		fmt.Fprintf(w, "#%d %d: %s [%s]\n", i+1, n, out.Description, strings.Join(nums, ","))
	}

	st := svc.Stats()
	fmt.Fprintf(w, "occupied %d/%d, available %d\n", st.Occupied, st.Total, st.Available)
	for r, row := range svc.Snapshot() {
		var sb strings.Builder
		for _, s := range row {
			if s.Occupied {
				sb.WriteByte('X')
			} else {
				sb.WriteByte('.')
			}
		}
		fmt.Fprintf(w, "row %2d %s\n", r+1, sb.String())
	}
	return nil
}
