package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Tiliavir/fleet-timesheet/internal/model"
	"github.com/Tiliavir/fleet-timesheet/internal/timecalc"
)

// MinSearchLength is the shortest ticket search term sent to the backend.
const MinSearchLength = 3

const vehiclesCacheKey = "vehicles"

// LoginResponse is the body returned by a successful login.
type LoginResponse struct {
	Token   string `json:"token"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// Login exchanges credentials for a bearer token and stores it in the
// session. It never retries and never sends the current token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	payload, err := encodeBody(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/login", payload)
	if err != nil {
		return nil, err
	}
	status, body, err := c.roundTrip(req)
	if err != nil {
		slog.Error("login error", "error", err)
		return nil, err
	}
	if status < 200 || status > 299 {
		slog.Error("login error", "status", status)
		return nil, ErrInvalidCredentials
	}

	var out LoginResponse
	if err := decode(body, &out); err != nil {
		slog.Error("login error", "error", err)
		return nil, err
	}
	if out.Token != "" {
		if err := c.session.SetToken(out.Token); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

// Logout drops the session token and the session cache.
func (c *Client) Logout() error {
	if err := c.session.Clear(); err != nil {
		return err
	}
	return c.cache.Clear()
}

// Vehicles lists the fleet. The response is cached in the session store and
// concurrent callers share one request. Only success envelopes are cached.
func (c *Client) Vehicles(ctx context.Context) ([]model.Vehicle, error) {
	accept := func(raw json.RawMessage) error {
		_, err := vehiclesPayload(raw)
		return err
	}
	raw, err := dedupe(ctx, c, RequestKey{Op: vehiclesCacheKey}, func(ctx context.Context) (json.RawMessage, error) {
		return c.cached(vehiclesCacheKey, c.vehiclesTTL, func() (json.RawMessage, error) {
			return c.getRaw(ctx, "/vehicles")
		}, accept)
	})
	if err != nil {
		slog.Error("error fetching vehicles", "error", err)
		return nil, err
	}
	return vehiclesPayload(raw)
}

func vehiclesPayload(raw json.RawMessage) ([]model.Vehicle, error) {
	var env envelope[[]model.Vehicle]
	if err := decode(raw, &env); err != nil {
		return nil, err
	}
	return env.unwrap()
}

// Trips returns the trips of registration between startDate and endDate
// (both YYYY-MM-DD, inclusive), keyed by date. The backend's end_date is
// exclusive, so the request asks for one day past endDate.
func (c *Client) Trips(ctx context.Context, registration, startDate, endDate string) (map[string]model.DailyData, error) {
	bufferedEnd, err := timecalc.DayAfter(endDate)
	if err != nil {
		return nil, err
	}
	q := url.Values{
		"registration": {registration},
		"start_date":   {startDate},
		"end_date":     {bufferedEnd},
	}

	var env envelope[map[string]model.DailyData]
	if err := c.doWithRetry(ctx, http.MethodGet, "/trips?"+q.Encode(), nil, &env); err != nil {
		slog.Error("error fetching trips", "registration", registration, "error", err)
		return nil, err
	}
	return env.unwrap()
}

// TripAnalysis returns the analysed trip days of registration. Identical
// concurrent requests share one backend call.
func (c *Client) TripAnalysis(ctx context.Context, registration, startDate, endDate string) (map[string]model.DailyData, error) {
	key := RequestKey{Op: "tripAnalysis", Registration: registration, Start: startDate, End: endDate}
	days, err := dedupe(ctx, c, key, func(ctx context.Context) (map[string]model.DailyData, error) {
		q := url.Values{
			"registration": {registration},
			"start_date":   {startDate},
			"end_date":     {endDate},
		}
		var env envelope[map[string]model.DailyData]
		if err := c.doWithRetry(ctx, http.MethodGet, "/trips/analysis?"+q.Encode(), nil, &env); err != nil {
			return nil, err
		}
		return env.unwrap()
	})
	if err != nil {
		slog.Error("error fetching trip analysis", "registration", registration, "error", err)
		return nil, err
	}
	return days, nil
}

// Users lists the drivers and engineers trips can be assigned to.
func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var env envelope[[]model.User]
	if err := c.doWithRetry(ctx, http.MethodGet, "/users/", nil, &env); err != nil {
		slog.Error("error fetching users", "error", err)
		return nil, err
	}
	return env.unwrap()
}

// InitTestUsers asks the backend to seed its demo users.
func (c *Client) InitTestUsers(ctx context.Context) error {
	var env envelope[json.RawMessage]
	if err := c.do(ctx, http.MethodPost, "/users/init/", nil, &env); err != nil {
		slog.Error("error initializing test users", "error", err)
		return err
	}
	_, err := env.unwrap()
	return err
}

// SearchTickets looks up tickets matching term. Terms shorter than
// MinSearchLength return no tickets without contacting the backend.
func (c *Client) SearchTickets(ctx context.Context, term string) ([]model.Ticket, error) {
	term = strings.TrimSpace(term)
	if len([]rune(term)) < MinSearchLength {
		return nil, nil
	}
	if err := c.searchLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	var env envelope[[]model.Ticket]
	if err := c.doWithRetry(ctx, http.MethodGet, "/tickets/search?q="+url.QueryEscape(term), nil, &env); err != nil {
		slog.Error("error searching tickets", "term", term, "error", err)
		return nil, err
	}
	return env.unwrap()
}

// ProcessTimesheet submits assignments to the ticketing system. It is not
// retried: a timed-out submission may still have been applied.
func (c *Client) ProcessTimesheet(ctx context.Context, assignments []model.ProcessedAssignment) (*model.ProcessResult, error) {
	slog.Info("processing timesheet", "entries", len(assignments))
	body := struct {
		Assignments []model.ProcessedAssignment `json:"assignments"`
	}{Assignments: assignments}

	var out model.ProcessResult
	if err := c.do(ctx, http.MethodPost, "/timesheet/process", body, &out); err != nil {
		slog.Error("error processing timesheet", "error", err)
		return nil, err
	}
	if out.Status != "" && out.Status != "success" {
		err := fmt.Errorf("%w: %s", ErrUnexpectedStatus, firstNonEmpty(out.Message, out.Status))
		slog.Error("error processing timesheet", "error", err)
		return nil, err
	}
	return &out, nil
}

// ProcessedTimesheets returns the entries of registration that were already
// sent to the ticketing system.
//
// TODO: the backend has no endpoint for processed entries yet; until it
// does this reports none, so nothing is shown as already processed.
func (c *Client) ProcessedTimesheets(_ context.Context, registration string) ([]model.TimesheetRecord, error) {
	slog.Debug("processed timesheets not available from backend", "registration", registration)
	return []model.TimesheetRecord{}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
