package timesheet_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/fleet-timesheet/internal/api"
	"github.com/Tiliavir/fleet-timesheet/internal/model"
	"github.com/Tiliavir/fleet-timesheet/internal/session"
	"github.com/Tiliavir/fleet-timesheet/internal/storage"
	"github.com/Tiliavir/fleet-timesheet/internal/testutil"
	"github.com/Tiliavir/fleet-timesheet/internal/timesheet"
)

var _ timesheet.Backend = (*api.Client)(nil)

func preparedReview(t *testing.T) *timesheet.Review {
	t.Helper()
	m := loaded(t, newStub(), storage.NewMemoryStore())
	for _, trip := range []string{"1", "T2"} {
		require.NoError(t, m.SetDriver(trip, "u1"))
		require.NoError(t, m.SelectTicket(trip, pump))
	}
	review, err := m.Prepare()
	require.NoError(t, err)
	return review
}

func TestReviewNotes(t *testing.T) {
	review := preparedReview(t)

	review.SetNote("1", false, "travel note")
	review.SetNote("1", true, "gap note")
	review.SetNote("T2", false, "")

	entries := review.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "travel note", entries[0].Notes)
	assert.Empty(t, entries[1].Notes)
	assert.Equal(t, "gap note", review.Note("1", true))

	review.SetNote("1", false, "")
	assert.Empty(t, review.Entries()[0].Notes)
}

func TestReviewRemove(t *testing.T) {
	review := preparedReview(t)
	review.SetNote("1", false, "dropped")

	review.Remove("1", true)
	assert.Equal(t, 2, review.Len(), "only the gap entry of trip 1 would match")

	review.Remove("1", false)
	require.Equal(t, 1, review.Len())
	assert.Equal(t, "T2", review.Entries()[0].TripID)
	assert.Empty(t, review.Note("1", false))
}

func TestReviewSetTicket(t *testing.T) {
	review := preparedReview(t)

	review.SetTicket("T2", "67890")

	entries := review.Entries()
	assert.Equal(t, "12345", entries[0].TicketNumber)
	assert.Equal(t, "67890", entries[1].TicketNumber)
}

func TestReviewEntriesAreCopies(t *testing.T) {
	review := preparedReview(t)

	entries := review.Entries()
	entries[0].TicketNumber = "changed"

	assert.Equal(t, "12345", review.Entries()[0].TicketNumber)
}

// TestSubmitThroughClient drives a whole session against the fake backend.
func TestSubmitThroughClient(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Users = []model.User{{ID: "u1", Name: "Aroha Ngata", ResourceID: "R-1"}}
	b.Days["2024-01-07"] = model.DailyData{Trips: []model.Trip{
		{ID: "late", StartTimestamp: "2024-01-07 23:59:00+13", Distance: 3.2, DurationSeconds: 300},
	}}
	sess := session.New(storage.NewMemoryStore())
	require.NoError(t, sess.SetToken(testutil.Token))
	client := api.NewClient(sess, storage.NewMemoryStore(),
		api.WithBaseURL(b.URL()),
		api.WithBackoffUnit(time.Millisecond),
	)
	drafts := storage.NewMemoryStore()
	now := time.Date(2024, 1, 7, 10, 0, 0, 0, time.UTC)
	m := timesheet.NewManager(registration, client, drafts,
		timesheet.WithClock(func() time.Time { return now }),
		timesheet.WithLocation(time.UTC),
	)

	require.NoError(t, m.Load(context.Background(), nil))
	assert.Equal(t, "2024-01-08", b.LastQuery("/trips").Get("end_date"))
	require.NoError(t, m.SetDriver("late", "u1"))
	require.NoError(t, m.SelectTicket("late", pump))
	review, err := m.Prepare()
	require.NoError(t, err)
	review.SetNote("late", false, "after hours")

	_, err = m.Submit(context.Background(), review.Entries())

	require.NoError(t, err)
	assert.Equal(t, timesheet.StateSubmitted, m.State())
	submitted := b.Submitted()
	require.Len(t, submitted, 1)
	require.Len(t, submitted[0], 1)
	assert.Equal(t, "late", submitted[0][0].TripID)
	assert.Equal(t, "Aroha Ngata", submitted[0][0].UserName)
	assert.Equal(t, "UNKNOWN", submitted[0][0].TripType)
	assert.Equal(t, "after hours", submitted[0][0].Notes)
	assert.Equal(t, model.EntryTravel, submitted[0][0].EntryType)
}
