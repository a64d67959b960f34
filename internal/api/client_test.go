package api_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/fleet-timesheet/internal/api"
	"github.com/Tiliavir/fleet-timesheet/internal/model"
	"github.com/Tiliavir/fleet-timesheet/internal/session"
	"github.com/Tiliavir/fleet-timesheet/internal/storage"
	"github.com/Tiliavir/fleet-timesheet/internal/testutil"
)

type fixture struct {
	backend *testutil.Backend
	session *session.Session
	cache   *storage.MemoryStore
	client  *api.Client
}

func newFixture(t *testing.T, opts ...api.Option) *fixture {
	t.Helper()
	b := testutil.NewBackend(t)
	sess := session.New(storage.NewMemoryStore())
	require.NoError(t, sess.SetToken(testutil.Token))
	cache := storage.NewMemoryStore()
	base := []api.Option{
		api.WithBaseURL(b.URL()),
		api.WithHTTPClient(b.Server.Client()),
		api.WithBackoffUnit(time.Millisecond),
		api.WithSearchInterval(0),
	}
	return &fixture{
		backend: b,
		session: sess,
		cache:   cache,
		client:  api.NewClient(sess, cache, append(base, opts...)...),
	}
}

func TestRequestHeaders(t *testing.T) {
	f := newFixture(t)

	_, err := f.client.Users(context.Background())
	require.NoError(t, err)

	h := f.backend.LastHeader("/users/")
	assert.Equal(t, "Bearer "+testutil.Token, h.Get("Authorization"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Equal(t, "application/json", h.Get("Accept"))
	assert.NotEmpty(t, h.Get("X-Request-ID"))
}

func TestUnauthorizedExpiresSessionWithoutRetry(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.SetToken("stale"))
	expired := 0
	f.session.OnExpired(func() { expired++ })

	_, err := f.client.Users(context.Background())

	require.ErrorIs(t, err, api.ErrAuthenticationRequired)
	assert.Equal(t, 1, f.backend.Hits("/users/"))
	assert.False(t, f.session.Authenticated())
	assert.Equal(t, 1, expired)
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		maxRetries int
		wantHits   int
		wantErr    bool
	}{
		{name: "recovers", failures: 2, maxRetries: 3, wantHits: 3},
		{name: "last retry succeeds", failures: 3, maxRetries: 3, wantHits: 4},
		{name: "exhausted", failures: 10, maxRetries: 3, wantHits: 4, wantErr: true},
		{name: "retries disabled", failures: 1, maxRetries: 0, wantHits: 1, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, api.WithMaxRetries(tc.maxRetries))
			f.backend.Users = []model.User{{ID: "u1", Name: "Aroha"}}
			f.backend.Fail("/users/", tc.failures, http.StatusInternalServerError)

			users, err := f.client.Users(context.Background())

			assert.Equal(t, tc.wantHits, f.backend.Hits("/users/"))
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, http.StatusInternalServerError, api.StatusCode(err))
				assert.Contains(t, err.Error(), "HTTP error! status: 500")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, f.backend.Users, users)
		})
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	f := newFixture(t, api.WithBackoffUnit(time.Hour))
	f.backend.Fail("/users/", 1, http.StatusBadGateway)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.client.Users(ctx)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, f.backend.Hits("/users/"))
}

func TestTripsExtendsEndDate(t *testing.T) {
	f := newFixture(t)
	f.backend.Days["2024-01-07"] = model.DailyData{
		TotalTrips: 1,
		Trips: []model.Trip{{
			ID:             "t-late",
			StartTimestamp: "2024-01-07 23:59:00+13",
			EndTimestamp:   "2024-01-08 00:20:00+13",
			Distance:       12.5,
		}},
	}
	f.backend.Days["2024-01-08"] = model.DailyData{TotalTrips: 1, Trips: []model.Trip{{ID: "t-next", Distance: 3}}}

	days, err := f.client.Trips(context.Background(), "ABC123", "2024-01-01", "2024-01-07")

	require.NoError(t, err)
	q := f.backend.LastQuery("/trips")
	assert.Equal(t, "ABC123", q.Get("registration"))
	assert.Equal(t, "2024-01-01", q.Get("start_date"))
	assert.Equal(t, "2024-01-08", q.Get("end_date"))
	require.Contains(t, days, "2024-01-07")
	assert.Equal(t, "t-late", days["2024-01-07"].Trips[0].ID)
	assert.NotContains(t, days, "2024-01-08")
}

func TestTripsRejectsBadDate(t *testing.T) {
	f := newFixture(t)

	_, err := f.client.Trips(context.Background(), "ABC123", "2024-01-01", "07/01/2024")

	require.Error(t, err)
	assert.Zero(t, f.backend.Hits("/trips"))
}

func TestVehiclesCached(t *testing.T) {
	now := time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC)
	f := newFixture(t, api.WithClock(func() time.Time { return now }))
	f.backend.Vehicles = []model.Vehicle{{Registration: "ABC123", Manufacturer: "Toyota", Model: "Hilux"}}
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		vehicles, err := f.client.Vehicles(ctx)
		require.NoError(t, err)
		assert.Equal(t, f.backend.Vehicles, vehicles)
	}
	assert.Equal(t, 1, f.backend.Hits("/vehicles"))

	now = now.Add(899 * time.Second)
	_, err := f.client.Vehicles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.backend.Hits("/vehicles"))

	now = now.Add(2 * time.Second)
	_, err = f.client.Vehicles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.backend.Hits("/vehicles"))
}

func TestVehiclesIgnoresCorruptCache(t *testing.T) {
	f := newFixture(t)
	f.backend.Vehicles = []model.Vehicle{{Registration: "XYZ789"}}
	require.NoError(t, f.cache.Set("vehicles", []byte("{not json")))

	vehicles, err := f.client.Vehicles(context.Background())

	require.NoError(t, err)
	assert.Equal(t, f.backend.Vehicles, vehicles)
	assert.Equal(t, 1, f.backend.Hits("/vehicles"))

	_, err = f.client.Vehicles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.backend.Hits("/vehicles"), "fresh entry should replace the corrupt one")
}

func TestVehiclesFailureNotCached(t *testing.T) {
	f := newFixture(t, api.WithMaxRetries(0))
	f.backend.Fail("/vehicles", 1, http.StatusServiceUnavailable)

	_, err := f.client.Vehicles(context.Background())
	require.Error(t, err)
	assert.Zero(t, f.cache.Len())

	_, err = f.client.Vehicles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.backend.Hits("/vehicles"))
}

func TestVehiclesErrorEnvelopeNotCached(t *testing.T) {
	f := newFixture(t)
	f.backend.Vehicles = []model.Vehicle{{Registration: "XYZ789"}}
	f.backend.Reject("/vehicles", 1, "upstream timeout")

	_, err := f.client.Vehicles(context.Background())
	require.ErrorIs(t, err, api.ErrUnexpectedStatus)
	assert.Zero(t, f.cache.Len())

	vehicles, err := f.client.Vehicles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.backend.Vehicles, vehicles)
	assert.Equal(t, 2, f.backend.Hits("/vehicles"))
}

func TestVehiclesIgnoresCachedErrorEnvelope(t *testing.T) {
	f := newFixture(t)
	f.backend.Vehicles = []model.Vehicle{{Registration: "XYZ789"}}
	entry := fmt.Sprintf(`{"data":{"status":"error","message":"upstream timeout"},"timestamp":%d}`, time.Now().UnixMilli())
	require.NoError(t, f.cache.Set("vehicles", []byte(entry)))

	vehicles, err := f.client.Vehicles(context.Background())

	require.NoError(t, err)
	assert.Equal(t, f.backend.Vehicles, vehicles)
	assert.Equal(t, 1, f.backend.Hits("/vehicles"))
}

func TestSharedReadSurvivesCallerCancel(t *testing.T) {
	f := newFixture(t)
	f.backend.Vehicles = []model.Vehicle{{Registration: "XYZ789"}}
	release := f.backend.Hold("/vehicles")
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.client.Vehicles(ctx)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return f.backend.Hits("/vehicles") == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		vehicles []model.Vehicle
		err      error
	}
	second := make(chan result, 1)
	go func() {
		v, err := f.client.Vehicles(context.Background())
		second <- result{v, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	release()

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, f.backend.Vehicles, got.vehicles)
	assert.Equal(t, 1, f.backend.Hits("/vehicles"))
}

func TestConcurrentReadsShareRequest(t *testing.T) {
	tests := []struct {
		name string
		path string
		call func(c *api.Client) error
	}{
		{
			name: "vehicles",
			path: "/vehicles",
			call: func(c *api.Client) error {
				_, err := c.Vehicles(context.Background())
				return err
			},
		},
		{
			name: "trip analysis",
			path: "/trips/analysis",
			call: func(c *api.Client) error {
				_, err := c.TripAnalysis(context.Background(), "ABC123", "2024-01-01", "2024-01-07")
				return err
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			release := f.backend.Hold(tc.path)
			defer release()

			const callers = 5
			errs := make(chan error, callers)
			var wg sync.WaitGroup
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- tc.call(f.client)
				}()
			}

			require.Eventually(t, func() bool { return f.backend.Hits(tc.path) == 1 }, time.Second, 5*time.Millisecond)
			time.Sleep(100 * time.Millisecond)
			release()
			wg.Wait()
			close(errs)

			for err := range errs {
				require.NoError(t, err)
			}
			assert.Equal(t, 1, f.backend.Hits(tc.path))
		})
	}
}

func TestTripAnalysisKeyReleasedAfterSettle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.client.TripAnalysis(ctx, "ABC123", "2024-01-01", "2024-01-07")
	require.NoError(t, err)
	_, err = f.client.TripAnalysis(ctx, "ABC123", "2024-01-01", "2024-01-07")
	require.NoError(t, err)

	assert.Equal(t, 2, f.backend.Hits("/trips/analysis"))
	assert.Equal(t, "2024-01-07", f.backend.LastQuery("/trips/analysis").Get("end_date"))
}

func TestSearchTickets(t *testing.T) {
	f := newFixture(t)
	f.backend.Tickets = []model.Ticket{
		{TicketNumber: "12345", Summary: "Replace pump"},
		{TicketNumber: "67890", Summary: "Annual service"},
	}
	ctx := context.Background()

	tickets, err := f.client.SearchTickets(ctx, "ab")
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.Zero(t, f.backend.Hits("/tickets/search"))

	tickets, err = f.client.SearchTickets(ctx, "PUMP")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "12345", tickets[0].TicketNumber)
	assert.Equal(t, "PUMP", f.backend.LastQuery("/tickets/search").Get("q"))
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.Clear())

	resp, err := f.client.Login(context.Background(), testutil.Username, testutil.Password)

	require.NoError(t, err)
	assert.Equal(t, testutil.Token, resp.Token)
	assert.Equal(t, testutil.Token, f.session.Token())
	assert.Empty(t, f.backend.LastHeader("/auth/login").Get("Authorization"))
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.Clear())

	_, err := f.client.Login(context.Background(), testutil.Username, "wrong")

	require.ErrorIs(t, err, api.ErrInvalidCredentials)
	assert.False(t, f.session.Authenticated())
	assert.Equal(t, 1, f.backend.Hits("/auth/login"))
}

func TestLogoutDropsTokenAndCache(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.Vehicles(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, f.cache.Len())

	require.NoError(t, f.client.Logout())

	assert.False(t, f.session.Authenticated())
	assert.Zero(t, f.cache.Len())
}

func TestClearCache(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.Set("vehicles", []byte(`{"data":[],"timestamp":1}`)))
	f.backend.Fail("/debug/cache", 1, http.StatusInternalServerError)

	err := f.client.ClearCache(context.Background())

	require.NoError(t, err, "backend flush failures are not reported")
	assert.Zero(t, f.cache.Len())
	assert.Equal(t, 1, f.backend.Hits("/debug/cache"))
	assert.Equal(t, "flush", f.backend.LastQuery("/debug/cache").Get("action"))
}

func TestProcessTimesheet(t *testing.T) {
	f := newFixture(t)
	entries := []model.ProcessedAssignment{{
		TripID:       "t1",
		UserID:       "u1",
		UserName:     "Aroha",
		TicketNumber: "12345",
		EntryType:    model.EntryTravel,
	}}

	res, err := f.client.ProcessTimesheet(context.Background(), entries)

	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	submitted := f.backend.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, entries, submitted[0])
}

func TestProcessTimesheetNotRetried(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail("/timesheet/process", 1, http.StatusInternalServerError)

	_, err := f.client.ProcessTimesheet(context.Background(), []model.ProcessedAssignment{{TripID: "t1"}})

	require.Error(t, err)
	assert.Equal(t, 1, f.backend.Hits("/timesheet/process"))
	assert.Empty(t, f.backend.Submitted())
}

func TestInitTestUsers(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.client.InitTestUsers(context.Background()))
	assert.Equal(t, 1, f.backend.Hits("/users/init/"))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, 404, api.StatusCode(&api.HTTPError{StatusCode: 404}))
	assert.Equal(t, 0, api.StatusCode(errors.New("boom")))
	assert.Equal(t, "HTTP error! status: 502", (&api.HTTPError{StatusCode: 502}).Error())
}
