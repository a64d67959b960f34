package timesheet

import (
	"log/slog"
	"slices"
	"strconv"
)

// GapKey identifies the idle period that follows a trip.
type GapKey struct {
	TripID string
	Start  string
}

func (k GapKey) String() string {
	return strconv.Quote(k.TripID) + ":" + strconv.Quote(k.Start)
}

// GapAssignment lists the tickets worked on during a gap period.
//
// Gap assignments are drafted only. They are neither persisted nor part of
// the submission.
type GapAssignment struct {
	Tickets []string
	UserID  string
}

// AddGapTicket records ticket against the gap of tripID starting at start.
// A new gap inherits the driver assigned to the trip.
func (m *Manager) AddGapTicket(tripID, start, ticket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.state != StateReady {
		return ErrNotReady
	}
	if ticket == "" {
		return validationf("ticket number is required")
	}

	key := GapKey{TripID: tripID, Start: start}
	gap, ok := m.gaps[key]
	if !ok {
		a, _ := lookup(m.pairs, tripID)
		gap.UserID = a.UserID
	}
	if slices.Contains(gap.Tickets, ticket) {
		return nil
	}
	gap.Tickets = append(slices.Clone(gap.Tickets), ticket)
	m.gaps[key] = gap
	slog.Debug("gap ticket added", "gap", key.String(), "ticket", ticket)
	return nil
}

// RemoveGapTicket removes ticket from the gap of tripID starting at start.
func (m *Manager) RemoveGapTicket(tripID, start, ticket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.state != StateReady {
		return ErrNotReady
	}

	key := GapKey{TripID: tripID, Start: start}
	gap, ok := m.gaps[key]
	if !ok {
		return nil
	}
	gap.Tickets = slices.DeleteFunc(slices.Clone(gap.Tickets), func(t string) bool { return t == ticket })
	m.gaps[key] = gap
	return nil
}

// GapAssignment returns a copy of the gap assignment of tripID at start.
func (m *Manager) GapAssignment(tripID, start string) (GapAssignment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gap, ok := m.gaps[GapKey{TripID: tripID, Start: start}]
	gap.Tickets = slices.Clone(gap.Tickets)
	return gap, ok
}
