package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/fleet-timesheet/internal/api"
	"github.com/Tiliavir/fleet-timesheet/internal/model"
	"github.com/Tiliavir/fleet-timesheet/internal/timecalc"
	"github.com/Tiliavir/fleet-timesheet/internal/timesheet"
)

var (
	timesheetFormat string
	submitNotes     []string
	submitDrops     []string
)

var timesheetCmd = &cobra.Command{
	Use:   "timesheet",
	Short: "Draft and submit a vehicle's timesheet",
	Long: `Assign each trip of the last days to a driver and a ticket, review the
entries and submit them. The draft is kept in ~/.fts/drafts/ until it is
submitted or discarded.`,
}

var timesheetShowCmd = &cobra.Command{
	Use:   "show <registration>",
	Short: "Show trips with their draft assignments",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimesheetShow,
}

var timesheetDriverCmd = &cobra.Command{
	Use:   "driver <registration> <trip> [user-id]",
	Short: "Assign a driver to a trip; omit the user to unassign",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runTimesheetDriver,
}

var timesheetTicketCmd = &cobra.Command{
	Use:   "ticket <registration> <trip> <ticket-number>",
	Short: "Assign a ticket found by search to a trip",
	Args:  cobra.ExactArgs(3),
	RunE:  runTimesheetTicket,
}

var timesheetTypeTicketCmd = &cobra.Command{
	Use:   "type-ticket <registration> <trip> <ticket-number>",
	Short: "Store a ticket number without confirming it",
	Args:  cobra.ExactArgs(3),
	RunE:  runTimesheetTypeTicket,
}

var timesheetClearTicketCmd = &cobra.Command{
	Use:   "clear-ticket <registration> <trip>",
	Short: "Remove the ticket from a trip",
	Args:  cobra.ExactArgs(2),
	RunE:  runTimesheetClearTicket,
}

var timesheetReviewCmd = &cobra.Command{
	Use:   "review <registration>",
	Short: "Preview the entries a submit would send",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimesheetReview,
}

var timesheetSubmitCmd = &cobra.Command{
	Use:   "submit <registration>",
	Short: "Submit the valid assignments to the ticketing system",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimesheetSubmit,
}

var timesheetDiscardCmd = &cobra.Command{
	Use:   "discard <registration>",
	Short: "Delete the stored draft",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimesheetDiscard,
}

func init() {
	timesheetReviewCmd.Flags().StringVar(&timesheetFormat, "format", formatMD, "Output format: md, csv, json")
	timesheetSubmitCmd.Flags().StringVar(&timesheetFormat, "format", formatMD, "Output format: md, csv, json")
	timesheetSubmitCmd.Flags().StringArrayVar(&submitNotes, "note", nil, "Note for a trip as <trip>=<text> (repeatable)")
	timesheetSubmitCmd.Flags().StringArrayVar(&submitDrops, "drop", nil, "Leave a trip out of this submission (repeatable)")

	timesheetCmd.AddCommand(
		timesheetShowCmd,
		timesheetDriverCmd,
		timesheetTicketCmd,
		timesheetTypeTicketCmd,
		timesheetClearTicketCmd,
		timesheetReviewCmd,
		timesheetSubmitCmd,
		timesheetDiscardCmd,
	)
}

// openTimesheet loads the drafting session of registration or exits.
func openTimesheet(cmd *cobra.Command, registration string) (*timesheet.Manager, *api.Client) {
	client := mustClient()
	drafts, err := draftStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	m := timesheet.NewManager(registration, client, drafts,
		timesheet.WithLocation(location()),
		timesheet.WithWindowDays(cfg.Timesheet.WindowDays),
	)
	if err := m.Load(cmd.Context(), nil); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load data.")
		fail(err)
	}
	return m, client
}

func runTimesheetShow(cmd *cobra.Command, args []string) error {
	m, _ := openTimesheet(cmd, args[0])
	printTimesheet(os.Stdout, m, location())
	return nil
}

func runTimesheetDriver(cmd *cobra.Command, args []string) error {
	m, _ := openTimesheet(cmd, args[0])
	userID := ""
	if len(args) == 3 {
		userID = args[2]
	}
	if err := m.SetDriver(args[1], userID); err != nil {
		fail(err)
	}
	if userID == "" {
		fmt.Printf("Driver removed from trip %s.\n", args[1])
		return nil
	}
	u, _ := m.User(userID)
	fmt.Printf("Trip %s assigned to %s.\n", args[1], u.Name)
	return nil
}

func runTimesheetTicket(cmd *cobra.Command, args []string) error {
	m, client := openTimesheet(cmd, args[0])
	trip, number := args[1], args[2]

	tickets, err := client.SearchTickets(cmd.Context(), number)
	if err != nil {
		fail(err)
	}
	ticket, ok := findTicket(tickets, number)
	if !ok {
		fmt.Fprintf(os.Stderr, "Ticket %s was not found by search. Use `fts timesheet type-ticket` to store it unconfirmed.\n", number)
		os.Exit(1)
	}
	if err := m.SelectTicket(trip, ticket); err != nil {
		fail(err)
	}
	fmt.Printf("Trip %s assigned to ticket %s (%s).\n", trip, ticket.TicketNumber, ticket.Summary)
	return nil
}

func runTimesheetTypeTicket(cmd *cobra.Command, args []string) error {
	m, _ := openTimesheet(cmd, args[0])
	if err := m.TypeTicket(args[1], args[2]); err != nil {
		fail(err)
	}
	fmt.Printf("Ticket %s stored for trip %s; it is not confirmed and will not be submitted.\n", args[2], args[1])
	return nil
}

func runTimesheetClearTicket(cmd *cobra.Command, args []string) error {
	m, _ := openTimesheet(cmd, args[0])
	if err := m.ClearTicket(args[1]); err != nil {
		fail(err)
	}
	fmt.Printf("Ticket removed from trip %s.\n", args[1])
	return nil
}

func runTimesheetReview(cmd *cobra.Command, args []string) error {
	if err := checkFormat(timesheetFormat); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	m, _ := openTimesheet(cmd, args[0])
	review, err := m.Prepare()
	if err != nil {
		fail(err)
	}
	defer m.Cancel()

	entries := review.Entries()
	if err := render(os.Stdout, timesheetFormat, reviewTable(entries), entries); err != nil {
		return err
	}
	if timesheetFormat == formatMD {
		fmt.Printf("\n%s to process.\n", pluralEntries(len(entries)))
	}
	return nil
}

func runTimesheetSubmit(cmd *cobra.Command, args []string) error {
	if err := checkFormat(timesheetFormat); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	notes, err := parseNotes(submitNotes)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	m, _ := openTimesheet(cmd, args[0])
	review, err := m.Prepare()
	if err != nil {
		fail(err)
	}
	applyReview(review, notes, submitDrops)

	entries := review.Entries()
	if err := render(os.Stdout, timesheetFormat, reviewTable(entries), entries); err != nil {
		return err
	}
	res, err := m.Submit(cmd.Context(), entries)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to process timesheet. The draft has been kept.")
		fail(err)
	}
	msg := res.Message
	if msg == "" {
		msg = res.Status
	}
	fmt.Printf("Submitted %s: %s\n", pluralEntries(len(entries)), msg)
	return nil
}

func runTimesheetDiscard(cmd *cobra.Command, args []string) error {
	drafts, err := draftStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	// Closing an unloaded session only removes the stored draft.
	timesheet.NewManager(args[0], nil, drafts).Close()
	fmt.Printf("Draft for %s discarded.\n", args[0])
	return nil
}

// parseNotes reads repeated <trip>=<text> flags. A later note for the same
// trip wins.
func parseNotes(flags []string) (map[string]string, error) {
	notes := map[string]string{}
	for _, f := range flags {
		trip, text, ok := strings.Cut(f, "=")
		if !ok || strings.TrimSpace(trip) == "" {
			return nil, fmt.Errorf("invalid note %q: use <trip>=<text>", f)
		}
		notes[strings.TrimSpace(trip)] = text
	}
	return notes, nil
}

// applyReview drops the listed trips and attaches the travel notes.
func applyReview(review *timesheet.Review, notes map[string]string, drops []string) {
	for _, trip := range drops {
		review.Remove(trip, false)
	}
	for trip, text := range notes {
		review.SetNote(trip, false, text)
	}
}

func pluralEntries(n int) string {
	if n == 1 {
		return "1 entry"
	}
	return fmt.Sprintf("%d entries", n)
}

func reviewTable(entries []model.ProcessedAssignment) table {
	t := table{header: []string{"trip", "type", "driver", "resource", "ticket", "trip_type", "duration", "from", "to", "start", "end", "notes"}}
	for _, e := range entries {
		t.add(
			e.TripID,
			e.EntryType.Label(),
			e.UserName,
			e.ResourceID,
			e.TicketNumber,
			e.TripType,
			timecalc.FormatDuration(e.DurationSeconds),
			e.StartLocation,
			e.EndLocation,
			e.StartTime,
			e.EndTime,
			e.Notes,
		)
	}
	return t
}

// printTimesheet prints each day's trips with their assignment or, for
// trips already sent, the processed record.
func printTimesheet(w io.Writer, m *timesheet.Manager, loc *time.Location) {
	days := m.Days()
	fmt.Fprintf(w, "Timesheet Assignment - %s\n", m.Registration())
	if len(days) == 0 {
		fmt.Fprintln(w, "No trips found.")
		return
	}

	for _, day := range days {
		fmt.Fprintf(w, "\n%s\n", displayDate(day.Date))
		for _, t := range day.Trips {
			key := t.Key()
			fmt.Fprintf(w, "  %-8s %s–%s  %-8s %-16s %s → %s\n",
				key,
				timecalc.ClockTime(t.StartTimestamp, loc),
				timecalc.ClockTime(t.EndTimestamp, loc),
				timecalc.FormatDuration(t.DurationSeconds),
				typeLabel(t),
				t.StartLocation,
				t.EndLocation,
			)
			fmt.Fprintf(w, "           %s\n", assignmentLine(m, key))
		}
	}

	fmt.Fprintf(w, "\nProcess Timesheet (%d assignments)\n", m.ValidAssignmentsCount())
}

func assignmentLine(m *timesheet.Manager, tripID string) string {
	if rec, ok := m.ProcessedEntry(tripID); ok {
		name := ""
		if rec.AssignedUser != nil {
			name = rec.AssignedUser.Name
		}
		badge := model.StatusBadges[rec.Status].Label
		if badge == "" {
			badge = "Processed"
		}
		return fmt.Sprintf("%s  ticket %s  [%s]", name, rec.TicketNumber, badge)
	}

	a, ok := m.Assignment(tripID)
	if !ok {
		return "driver: -  ticket: -"
	}
	driver := "-"
	if u, ok := m.User(a.UserID); ok {
		driver = u.Name
	}
	ticket := "-"
	switch {
	case a.TicketNumber != "" && a.TicketConfirmed:
		ticket = a.TicketNumber
		if a.TicketType != "" {
			ticket += " (" + a.TicketType + ")"
		}
	case a.TicketNumber != "":
		ticket = a.TicketNumber + " (not confirmed)"
	}
	return "driver: " + driver + "  ticket: " + ticket
}

// displayDate renders YYYY-MM-DD as e.g. "Friday, 5 January 2024".
func displayDate(date string) string {
	d, err := time.Parse(timecalc.DateLayout, date)
	if err != nil {
		return date
	}
	return d.Format("Monday, 2 January 2006")
}
