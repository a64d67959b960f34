package timesheet

import (
	"slices"

	"github.com/Tiliavir/fleet-timesheet/internal/model"
)

// NoteKey identifies the note of one review row. A trip can have a travel
// row and a gap row, each with its own note.
type NoteKey struct {
	TripID string
	IsGap  bool
}

// Review is the last chance to adjust entries before they are submitted.
// It is not safe for concurrent use.
type Review struct {
	entries []model.ProcessedAssignment
	notes   map[NoteKey]string
}

func newReview(entries []model.ProcessedAssignment) *Review {
	return &Review{entries: entries, notes: map[NoteKey]string{}}
}

// Len returns the number of entries left to submit.
func (r *Review) Len() int {
	return len(r.entries)
}

// Entries returns the entries with their notes filled in, ready for Submit.
func (r *Review) Entries() []model.ProcessedAssignment {
	out := slices.Clone(r.entries)
	for i := range out {
		out[i].Notes = r.notes[NoteKey{TripID: out[i].TripID, IsGap: out[i].IsGap}]
	}
	return out
}

// Remove drops the travel or gap entry of tripID.
func (r *Review) Remove(tripID string, isGap bool) {
	r.entries = slices.DeleteFunc(r.entries, func(e model.ProcessedAssignment) bool {
		return e.TripID == tripID && e.IsGap == isGap
	})
	delete(r.notes, NoteKey{TripID: tripID, IsGap: isGap})
}

// SetNote sets the note of the travel or gap entry of tripID. An empty text
// removes the note.
func (r *Review) SetNote(tripID string, isGap bool, text string) {
	key := NoteKey{TripID: tripID, IsGap: isGap}
	if text == "" {
		delete(r.notes, key)
		return
	}
	r.notes[key] = text
}

// Note returns the note of the travel or gap entry of tripID.
func (r *Review) Note(tripID string, isGap bool) string {
	return r.notes[NoteKey{TripID: tripID, IsGap: isGap}]
}

// SetTicket replaces the ticket number on every entry of tripID.
func (r *Review) SetTicket(tripID, ticketNumber string) {
	for i := range r.entries {
		if r.entries[i].TripID == tripID {
			r.entries[i].TicketNumber = ticketNumber
		}
	}
}
