package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/fleet-timesheet/internal/model"
	"github.com/Tiliavir/fleet-timesheet/internal/timecalc"
	"github.com/Tiliavir/fleet-timesheet/internal/timesheet"
)

var (
	tripsFrom     string
	tripsTo       string
	tripsFormat   string
	tripsAnalysis bool
)

var tripsCmd = &cobra.Command{
	Use:   "trips <registration>",
	Short: "List a vehicle's trips grouped by day",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrips,
}

func init() {
	tripsCmd.Flags().StringVar(&tripsFrom, "from", "", "First day, YYYY-MM-DD (default: start of the timesheet window)")
	tripsCmd.Flags().StringVar(&tripsTo, "to", "", "Last day, YYYY-MM-DD (default: today)")
	tripsCmd.Flags().StringVar(&tripsFormat, "format", formatMD, "Output format: md, csv, json")
	tripsCmd.Flags().BoolVar(&tripsAnalysis, "analysis", false, "Use the trip analysis endpoint")
}

func runTrips(cmd *cobra.Command, args []string) error {
	if err := checkFormat(tripsFormat); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	registration := args[0]
	loc := location()

	from, to := timecalc.Window(time.Now(), cfg.Timesheet.WindowDays, loc)
	if tripsFrom != "" {
		from = tripsFrom
	}
	if tripsTo != "" {
		to = tripsTo
	}
	for _, d := range []string{from, to} {
		if _, err := time.Parse(timecalc.DateLayout, d); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid date %q: use YYYY-MM-DD.\n", d)
			os.Exit(1)
		}
	}

	client := mustClient()
	var (
		days map[string]model.DailyData
		err  error
	)
	if tripsAnalysis {
		days, err = client.TripAnalysis(cmd.Context(), registration, from, to)
	} else {
		days, err = client.Trips(cmd.Context(), registration, from, to)
	}
	if err != nil {
		fail(err)
	}

	groups := timesheet.GroupByDay(days)
	if tripsFormat == formatMD {
		printDays(os.Stdout, groups, loc)
		return nil
	}
	return render(os.Stdout, tripsFormat, tripTable(groups, loc), groups)
}

// printDays prints each day with its trips below it.
func printDays(w io.Writer, groups []model.DailyTripGroup, loc *time.Location) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No trips found.")
		return
	}
	for _, g := range groups {
		fmt.Fprintf(w, "%s  (%d trips, %s)\n", g.Date, g.Count, timecalc.FormatDistance(g.TotalDistance))
		for _, t := range g.Trips {
			fmt.Fprintf(w, "  %s–%s  %-8s %-16s %s → %s  %s\n",
				timecalc.ClockTime(t.StartTimestamp, loc),
				timecalc.ClockTime(t.EndTimestamp, loc),
				timecalc.FormatDuration(t.DurationSeconds),
				typeLabel(t),
				t.StartLocation,
				t.EndLocation,
				timecalc.FormatDistance(t.Distance),
			)
		}
	}
}

func tripTable(groups []model.DailyTripGroup, loc *time.Location) table {
	t := table{header: []string{"date", "trip", "start", "end", "duration_seconds", "type", "from", "to", "distance_km"}}
	for _, g := range groups {
		for _, trip := range g.Trips {
			t.add(
				g.Date,
				trip.Key(),
				timecalc.ClockTime(trip.StartTimestamp, loc),
				timecalc.ClockTime(trip.EndTimestamp, loc),
				strconv.FormatInt(trip.DurationSeconds, 10),
				trip.TypeLabel(),
				trip.StartLocation,
				trip.EndLocation,
				strconv.FormatFloat(trip.Distance, 'f', 1, 64),
			)
		}
	}
	return t
}

// typeLabel is the classification shown to people: underscores read as
// spaces.
func typeLabel(t model.Trip) string {
	return strings.ReplaceAll(t.TypeLabel(), "_", " ")
}
