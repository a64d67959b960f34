// Package timesheet drafts one vehicle's timesheet: trips are loaded for a
// recent window, each trip is paired with a driver and a ticket, and the
// valid pairs are submitted to the ticketing system after a review step.
package timesheet

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Tiliavir/fleet-timesheet/internal/model"
	"github.com/Tiliavir/fleet-timesheet/internal/storage"
	"github.com/Tiliavir/fleet-timesheet/internal/timecalc"
)

// DefaultWindowDays is how many days back trips are loaded.
const DefaultWindowDays = 7

// State is the lifecycle position of a Manager.
type State int

const (
	StateLoading State = iota
	StateReady
	StateFailed
	StateSubmitting
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Backend is the slice of the fleet API a Manager needs.
type Backend interface {
	Trips(ctx context.Context, registration, startDate, endDate string) (map[string]model.DailyData, error)
	Users(ctx context.Context) ([]model.User, error)
	ProcessedTimesheets(ctx context.Context, registration string) ([]model.TimesheetRecord, error)
	ProcessTimesheet(ctx context.Context, assignments []model.ProcessedAssignment) (*model.ProcessResult, error)
}

// Manager owns one vehicle's drafting session. It is safe for concurrent
// use; no lock is held across backend calls.
type Manager struct {
	registration string
	backend      Backend
	drafts       storage.Store
	now          func() time.Time
	loc          *time.Location
	windowDays   int

	mu        sync.Mutex
	state     State
	err       error
	closed    bool
	start     string
	end       string
	groups    []model.DailyTripGroup
	trips     map[string]model.Trip
	users     []model.User
	processed map[string]model.TimesheetRecord
	pairs     []Pair
	gaps      map[GapKey]GapAssignment
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source the trip window is computed from.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLocation sets the time zone calendar dates are taken in.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) { m.loc = loc }
}

// WithWindowDays sets how many days back trips are loaded.
func WithWindowDays(days int) Option {
	return func(m *Manager) {
		if days > 0 {
			m.windowDays = days
		}
	}
}

// NewManager returns a Manager in the Loading state for registration. The
// draft is persisted in drafts under DraftKey(registration).
func NewManager(registration string, backend Backend, drafts storage.Store, opts ...Option) *Manager {
	m := &Manager{
		registration: registration,
		backend:      backend,
		drafts:       drafts,
		now:          time.Now,
		loc:          time.UTC,
		windowDays:   DefaultWindowDays,
		state:        StateLoading,
		gaps:         map[GapKey]GapAssignment{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Load fetches the trip window, the user roster and the processed entries
// concurrently. Only when all three succeed does the manager become Ready;
// otherwise it is Failed and keeps nothing from the attempt.
//
// The draft is restored from restored when it is non-nil (state handed back
// by the review step) and from durable storage otherwise.
func (m *Manager) Load(ctx context.Context, restored []Pair) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state == StateSubmitting || m.state == StateSubmitted {
		m.mu.Unlock()
		return ErrNotReady
	}
	m.state = StateLoading
	m.err = nil
	m.mu.Unlock()

	start, end := timecalc.Window(m.now(), m.windowDays, m.loc)

	var (
		days      map[string]model.DailyData
		users     []model.User
		processed []model.TimesheetRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		days, err = m.backend.Trips(gctx, m.registration, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = m.backend.Users(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		processed, err = m.backend.ProcessedTimesheets(gctx, m.registration)
		return err
	})
	err := g.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		slog.Debug("discarding timesheet load after close", "registration", m.registration)
		return ErrClosed
	}
	if err != nil {
		slog.Error("error loading timesheet data", "registration", m.registration, "error", err)
		m.state = StateFailed
		m.err = err
		return err
	}

	m.start, m.end = start, end
	m.groups = GroupByDay(days)
	m.trips = map[string]model.Trip{}
	for _, day := range m.groups {
		for _, t := range day.Trips {
			m.trips[t.Key()] = t
		}
	}
	m.users = users
	m.processed = map[string]model.TimesheetRecord{}
	for _, r := range processed {
		m.processed[r.TripID] = r
	}

	if restored != nil {
		m.pairs = dedupePairs(restored)
	} else {
		m.pairs = m.readDraft()
	}
	if restored != nil || len(m.pairs) > 0 {
		m.persist()
	}
	m.state = StateReady
	slog.Debug("timesheet loaded",
		"registration", m.registration,
		"start", start,
		"end", end,
		"days", len(m.groups),
		"assignments", len(m.pairs),
	)
	return nil
}

func (m *Manager) readDraft() []Pair {
	var pairs []Pair
	err := storage.ReadJSON(m.drafts, DraftKey(m.registration), &pairs)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("ignoring unreadable timesheet draft", "registration", m.registration, "error", err)
		}
		return nil
	}
	return dedupePairs(pairs)
}

// persist writes the whole draft, or removes it when nothing is assigned. A
// failed write is logged; the in-memory draft stays authoritative.
func (m *Manager) persist() {
	var err error
	if len(m.pairs) == 0 {
		err = m.drafts.Delete(DraftKey(m.registration))
	} else {
		err = storage.WriteJSON(m.drafts, DraftKey(m.registration), m.pairs)
	}
	if err != nil {
		slog.Error("error saving timesheet draft", "registration", m.registration, "error", err)
	}
}

// edit applies fn to tripID's assignment and persists the draft. check, when
// set, runs under the lock once the state allows edits.
//
// A release edit only takes data away, so it is also accepted for a drafted
// trip that has since left the window or been processed. Such a trip's pair
// is dropped once nothing is left on it.
func (m *Manager) edit(tripID string, release bool, check func() error, fn func(model.Assignment) model.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.state != StateReady {
		return ErrNotReady
	}
	_, drafted := lookup(m.pairs, tripID)
	_, inWindow := m.trips[tripID]
	_, processed := m.processed[tripID]
	if !release || !drafted {
		if !inWindow {
			return validationf("trip %s is not in the loaded window", tripID)
		}
		if processed {
			return validationf("trip %s has already been processed", tripID)
		}
	}
	if check != nil {
		if err := check(); err != nil {
			return err
		}
	}
	m.pairs = update(m.pairs, tripID, fn)
	if !inWindow || processed {
		m.pairs = dropEmpty(m.pairs, tripID)
	}
	m.persist()
	return nil
}

// SetDriver assigns userID to tripID. An empty userID unassigns the driver.
func (m *Manager) SetDriver(tripID, userID string) error {
	check := func() error {
		if _, ok := m.findUser(userID); userID != "" && !ok {
			return validationf("unknown user %s", userID)
		}
		return nil
	}
	return m.edit(tripID, userID == "", check, func(a model.Assignment) model.Assignment {
		a.UserID = userID
		return a
	})
}

// SelectTicket assigns a ticket picked from search results. Only selected
// tickets count towards a valid assignment.
func (m *Manager) SelectTicket(tripID string, ticket model.Ticket) error {
	return m.edit(tripID, false, nil, func(a model.Assignment) model.Assignment {
		a.TicketNumber = ticket.TicketNumber
		a.TicketType = ticket.Type
		a.TicketConfirmed = ticket.TicketNumber != ""
		return a
	})
}

// TypeTicket stores a ticket number typed in without selecting it. The
// number is kept but the assignment stays invalid until a ticket is selected.
func (m *Manager) TypeTicket(tripID, number string) error {
	return m.edit(tripID, false, nil, func(a model.Assignment) model.Assignment {
		a.TicketNumber = number
		a.TicketType = ""
		a.TicketConfirmed = false
		return a
	})
}

// ClearTicket removes the ticket from tripID. Like unassigning the driver it
// also works on a drafted trip that is no longer editable.
func (m *Manager) ClearTicket(tripID string) error {
	return m.edit(tripID, true, nil, func(a model.Assignment) model.Assignment {
		a.TicketNumber = ""
		a.TicketType = ""
		a.TicketConfirmed = false
		return a
	})
}

// ValidAssignmentsCount returns how many assignments would be submitted.
func (m *Manager) ValidAssignmentsCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.pairs {
		if p.Assignment.Valid() {
			n++
		}
	}
	return n
}

// Prepare builds the submission from the valid assignments and moves the
// manager to Submitting. It fails without touching the backend when nothing
// is valid or an assignment references a trip or user that is not loaded.
func (m *Manager) Prepare() (*Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.state != StateReady {
		return nil, ErrNotReady
	}

	var entries []model.ProcessedAssignment
	for _, p := range m.pairs {
		a := p.Assignment
		if !a.Valid() {
			continue
		}
		trip, tripOK := m.trips[p.TripID]
		user, userOK := m.findUser(a.UserID)
		if !tripOK || !userOK {
			return nil, validationf("Trip %s or user %s not found", p.TripID, a.UserID)
		}
		entries = append(entries, model.ProcessedAssignment{
			TripID:          p.TripID,
			UserID:          user.ID,
			UserName:        user.Name,
			ResourceID:      user.ResourceID,
			TicketNumber:    a.TicketNumber,
			TicketType:      a.TicketType,
			Duration:        trip.Duration,
			DurationSeconds: trip.DurationSeconds,
			TripType:        trip.TypeLabel(),
			StartLocation:   trip.StartLocation,
			EndLocation:     trip.EndLocation,
			StartTime:       trip.StartTimestamp,
			EndTime:         trip.EndTimestamp,
			IsGap:           false,
			EntryType:       model.EntryTravel,
		})
	}
	if len(entries) == 0 {
		return nil, validationf("Please assign a driver and a selected ticket to at least one trip")
	}

	m.state = StateSubmitting
	return newReview(entries), nil
}

// Cancel returns from the review step to editing.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateSubmitting {
		return ErrNotReady
	}
	m.state = StateReady
	return nil
}

// Submit sends entries to the backend. On success the durable draft is
// removed and the session ends in Submitted; on failure the manager returns
// to Ready with the draft untouched.
func (m *Manager) Submit(ctx context.Context, entries []model.ProcessedAssignment) (*model.ProcessResult, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if m.state != StateSubmitting {
		m.mu.Unlock()
		return nil, ErrNotReady
	}
	m.mu.Unlock()

	if len(entries) == 0 {
		return nil, validationf("No entries to submit")
	}

	res, err := m.backend.ProcessTimesheet(ctx, entries)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return res, err
	}
	if err != nil {
		slog.Error("error submitting timesheet", "registration", m.registration, "error", err)
		m.state = StateReady
		return nil, err
	}
	if err := m.drafts.Delete(DraftKey(m.registration)); err != nil {
		slog.Warn("could not remove submitted draft", "registration", m.registration, "error", err)
	}
	m.state = StateSubmitted
	slog.Info("timesheet submitted", "registration", m.registration, "entries", len(entries))
	return res, nil
}

// Close ends the session: the durable draft is deleted, later results are
// ignored, and the draft is returned so a caller can hand it back to Load.
func (m *Manager) Close() []Pair {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if err := m.drafts.Delete(DraftKey(m.registration)); err != nil {
		slog.Warn("could not remove timesheet draft", "registration", m.registration, "error", err)
	}
	return slices.Clone(m.pairs)
}

// Registration returns the vehicle the manager drafts for.
func (m *Manager) Registration() string {
	return m.registration
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error that put the manager in Failed.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Window returns the loaded date range.
func (m *Manager) Window() (start, end string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.start, m.end
}

// Days returns the loaded trips grouped by date.
func (m *Manager) Days() []model.DailyTripGroup {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.groups)
}

// Users returns the loaded roster.
func (m *Manager) Users() []model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.users)
}

// User returns the loaded user with id.
func (m *Manager) User(id string) (model.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findUser(id)
}

// Trip returns the loaded trip with key tripID.
func (m *Manager) Trip(tripID string) (model.Trip, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[tripID]
	return t, ok
}

// Assignments returns the draft in insertion order.
func (m *Manager) Assignments() []Pair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.pairs)
}

// Assignment returns the draft assignment of tripID.
func (m *Manager) Assignment(tripID string) (model.Assignment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lookup(m.pairs, tripID)
}

// IsProcessed reports whether tripID was already sent to the ticketing
// system.
func (m *Manager) IsProcessed(tripID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.processed[tripID]
	return ok
}

// ProcessedEntry returns the processed record of tripID.
func (m *Manager) ProcessedEntry(tripID string) (model.TimesheetRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.processed[tripID]
	return r, ok
}

func (m *Manager) findUser(id string) (model.User, bool) {
	for _, u := range m.users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}
