package model

// Classification tags a trip with a type and a display color.
type Classification struct {
	Type  string `json:"type"`
	Color string `json:"color"`
}

// MergedTrip is a sub-trip folded into a longer trip by the backend.
type MergedTrip struct {
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	StartLocation   string  `json:"start_location"`
	EndLocation     string  `json:"end_location"`
	Distance        float64 `json:"distance"`
	DurationSeconds int64   `json:"duration_seconds"`
}

// GapPeriod is the idle interval recorded next to a trip.
type GapPeriod struct {
	Location        string `json:"location"`
	Duration        string `json:"duration"`
	DurationMinutes int64  `json:"duration_minutes,omitempty"`
	Start           string `json:"start"`
	End             string `json:"end"`
}

// Trip is a single vehicle movement as reported by the fleet backend.
type Trip struct {
	ID              string          `json:"id"`
	TripNumber      string          `json:"trip_number,omitempty"`
	StartTimestamp  string          `json:"start_timestamp"`
	EndTimestamp    string          `json:"end_timestamp"`
	StartLocation   string          `json:"start_location"`
	EndLocation     string          `json:"end_location"`
	Distance        float64         `json:"distance"`
	DurationSeconds int64           `json:"duration_seconds"`
	Duration        string          `json:"duration,omitempty"`
	TripType        string          `json:"trip_type"`
	Classification  *Classification `json:"classification,omitempty"`
	MergedTrips     []MergedTrip    `json:"merged_trips,omitempty"`
	GapPeriod       *GapPeriod      `json:"gap_period,omitempty"`
}

// Key returns the identifier assignments are keyed by: the trip number when
// the backend supplies one, the trip ID otherwise.
func (t Trip) Key() string {
	if t.TripNumber != "" {
		return t.TripNumber
	}
	return t.ID
}

// Eligible reports whether the trip takes part in aggregation and assignment.
// Zero-distance trips are ignition blips, not movements.
func (t Trip) Eligible() bool {
	return t.Distance > 0
}

// TypeLabel returns the classification type, or "UNKNOWN" when unclassified.
func (t Trip) TypeLabel() string {
	if t.Classification == nil || t.Classification.Type == "" {
		return "UNKNOWN"
	}
	return t.Classification.Type
}

// DailyData is one date entry of the /trips response.
type DailyData struct {
	Date          string  `json:"date,omitempty"`
	TotalTrips    int     `json:"total_trips"`
	TotalDistance float64 `json:"total_distance"`
	Trips         []Trip  `json:"trips"`
}

// DailyTripGroup holds the eligible trips of one calendar date and the
// aggregates derived from them.
type DailyTripGroup struct {
	Date          string  `json:"date"`
	Trips         []Trip  `json:"trips"`
	Count         int     `json:"count"`
	TotalDistance float64 `json:"total_distance"`
}
