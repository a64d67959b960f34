package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/fleet-timesheet/internal/api"
	"github.com/Tiliavir/fleet-timesheet/internal/model"
)

var ticketsFormat string

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Work with ticketing-system tickets",
}

var ticketsSearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search tickets by number or summary",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTicketsSearch,
}

func init() {
	ticketsSearchCmd.Flags().StringVar(&ticketsFormat, "format", formatMD, "Output format: md, csv, json")
	ticketsCmd.AddCommand(ticketsSearchCmd)
}

func runTicketsSearch(cmd *cobra.Command, args []string) error {
	if err := checkFormat(ticketsFormat); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	term := strings.Join(args, " ")
	if len([]rune(strings.TrimSpace(term))) < api.MinSearchLength {
		fmt.Fprintf(os.Stderr, "Search terms need at least %d characters.\n", api.MinSearchLength)
		os.Exit(1)
	}

	tickets, err := mustClient().SearchTickets(cmd.Context(), term)
	if err != nil {
		fail(err)
	}
	if len(tickets) == 0 && ticketsFormat == formatMD {
		fmt.Println("No tickets found.")
		return nil
	}
	return render(os.Stdout, ticketsFormat, ticketTable(tickets), tickets)
}

func ticketTable(tickets []model.Ticket) table {
	t := table{header: []string{"id", "ticket", "summary", "company", "status", "priority", "entered", "type"}}
	for _, tk := range tickets {
		t.add(strconv.FormatInt(tk.ID, 10), tk.TicketNumber, tk.Summary, tk.Company, tk.Status, tk.Priority, tk.DateEntered, tk.Type)
	}
	return t
}

// findTicket returns the search result whose number is exactly number.
func findTicket(tickets []model.Ticket, number string) (model.Ticket, bool) {
	for _, t := range tickets {
		if t.TicketNumber == number {
			return t, true
		}
	}
	return model.Ticket{}, false
}
