package model

// Vehicle is a fleet vehicle.
type Vehicle struct {
	Registration string `json:"registration"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	ModelYear    string `json:"model_year"`
	Color        string `json:"color,omitempty"`
}

// User is a driver or engineer who can be assigned to trips.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	// ResourceID identifies the user in the ticketing system.
	ResourceID string `json:"resource_id"`
}

// Ticket is a ticketing-system ticket returned by a search.
type Ticket struct {
	ID           int64  `json:"id"`
	TicketNumber string `json:"ticket_number"`
	Summary      string `json:"summary"`
	Company      string `json:"company"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	DateEntered  string `json:"date_entered"`
	Type         string `json:"type"`
}
