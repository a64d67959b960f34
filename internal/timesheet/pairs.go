package timesheet

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/Tiliavir/fleet-timesheet/internal/model"
)

// Pair is one entry of the ordered draft mapping. It encodes as the two
// element array [tripId, assignment].
type Pair struct {
	TripID     string
	Assignment model.Assignment
}

func (p Pair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.TripID, p.Assignment})
}

func (p *Pair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("draft pair: want 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.TripID); err != nil {
		return fmt.Errorf("draft pair trip id: %w", err)
	}
	p.Assignment = model.Assignment{}
	if err := json.Unmarshal(raw[1], &p.Assignment); err != nil {
		return fmt.Errorf("draft pair assignment: %w", err)
	}
	return nil
}

// DraftKey returns the durable storage key of a vehicle's draft.
func DraftKey(registration string) string {
	return "timesheet-assignments-" + registration
}

// lookup returns the assignment of tripID.
func lookup(pairs []Pair, tripID string) (model.Assignment, bool) {
	for _, p := range pairs {
		if p.TripID == tripID {
			return p.Assignment, true
		}
	}
	return model.Assignment{}, false
}

// update returns a copy of pairs with fn applied to tripID's assignment. A
// new trip is appended, an existing one keeps its position.
func update(pairs []Pair, tripID string, fn func(model.Assignment) model.Assignment) []Pair {
	out := make([]Pair, len(pairs), len(pairs)+1)
	copy(out, pairs)
	for i := range out {
		if out[i].TripID == tripID {
			out[i].Assignment = fn(out[i].Assignment)
			return out
		}
	}
	return append(out, Pair{TripID: tripID, Assignment: fn(model.Assignment{})})
}

// dropEmpty removes tripID's pair when its assignment holds nothing.
func dropEmpty(pairs []Pair, tripID string) []Pair {
	return slices.DeleteFunc(pairs, func(p Pair) bool {
		return p.TripID == tripID && p.Assignment == (model.Assignment{})
	})
}

// dedupePairs keeps the last assignment of each trip at the position of its
// first occurrence.
func dedupePairs(pairs []Pair) []Pair {
	var out []Pair
	for _, p := range pairs {
		a := p.Assignment
		out = update(out, p.TripID, func(model.Assignment) model.Assignment { return a })
	}
	return out
}
