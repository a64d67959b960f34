package model

import "strings"

// Assignment is the draft driver/ticket pairing for one trip.
type Assignment struct {
	UserID       string `json:"userId"`
	TicketNumber string `json:"ticketNumber"`
	TicketType   string `json:"ticketType,omitempty"`
	// TicketConfirmed is set only when TicketNumber was picked from a
	// ticket search result rather than typed in.
	TicketConfirmed bool `json:"ticketConfirmed,omitempty"`
}

// Valid reports whether the assignment may be submitted.
func (a Assignment) Valid() bool {
	return strings.TrimSpace(a.UserID) != "" && a.TicketNumber != "" && a.TicketConfirmed
}

// EntryType classifies a submitted timesheet row.
type EntryType string

const (
	EntryTravel EntryType = "TRAVEL"
	EntryGap    EntryType = "GAP"
	EntryWork   EntryType = "WORK"
)

// Label returns the human-readable name of the entry type.
func (e EntryType) Label() string {
	switch e {
	case EntryTravel:
		return "Travel"
	case EntryGap:
		return "Gap"
	case EntryWork:
		return "Work"
	default:
		return string(e)
	}
}

// ProcessedAssignment is a valid assignment joined with its trip and user,
// in the shape the timesheet endpoint accepts.
type ProcessedAssignment struct {
	TripID          string     `json:"trip_id"`
	UserID          string     `json:"user_id"`
	UserName        string     `json:"user_name"`
	ResourceID      string     `json:"resource_id"`
	TicketNumber    string     `json:"ticket_number"`
	TicketType      string     `json:"ticketType,omitempty"`
	Duration        string     `json:"duration"`
	DurationSeconds int64      `json:"duration_seconds"`
	TripType        string     `json:"trip_type"`
	StartLocation   string     `json:"start_location"`
	EndLocation     string     `json:"end_location"`
	StartTime       string     `json:"start_time"`
	EndTime         string     `json:"end_time"`
	IsGap           bool       `json:"isGap"`
	EntryType       EntryType  `json:"entryType"`
	Notes           string     `json:"notes,omitempty"`
	GapPeriod       *GapPeriod `json:"gap_period,omitempty"`
}

// TimesheetStatus is the sync state of an already processed entry.
type TimesheetStatus string

const (
	StatusNew       TimesheetStatus = "NEW"
	StatusProcessed TimesheetStatus = "PROCESSED"
	StatusRejected  TimesheetStatus = "REJECTED"
	StatusDeleted   TimesheetStatus = "DELETED"
)

// StatusBadge is the display form of a TimesheetStatus.
type StatusBadge struct {
	Status TimesheetStatus
	Label  string
	Color  string
}

// StatusBadges maps every TimesheetStatus to its badge.
var StatusBadges = map[TimesheetStatus]StatusBadge{
	StatusNew:       {Status: StatusNew, Label: "Not Synced", Color: "gray"},
	StatusProcessed: {Status: StatusProcessed, Label: "Synced to CW", Color: "green"},
	StatusRejected:  {Status: StatusRejected, Label: "Sync Failed", Color: "red"},
	StatusDeleted:   {Status: StatusDeleted, Label: "Deleted", Color: "black"},
}

// AssignedUser is the short user reference embedded in a TimesheetRecord.
type AssignedUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TimesheetRecord is a trip entry that has already been sent to the
// ticketing system.
type TimesheetRecord struct {
	TripID        string          `json:"trip_id"`
	UserID        string          `json:"user_id"`
	Date          string          `json:"date"`
	StartTime     string          `json:"start_time"`
	EndTime       string          `json:"end_time"`
	Duration      string          `json:"duration"`
	TripType      string          `json:"trip_type"`
	StartLocation string          `json:"start_location"`
	EndLocation   string          `json:"end_location"`
	Distance      float64         `json:"distance"`
	Notes         string          `json:"notes"`
	Status        TimesheetStatus `json:"status"`
	ProcessedAt   string          `json:"processed_at,omitempty"`
	TicketNumber  string          `json:"ticket_number,omitempty"`
	AssignedUser  *AssignedUser   `json:"assigned_user,omitempty"`
}

// ProcessResult is the backend reply to a timesheet submission.
type ProcessResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
