// Package testutil provides an in-process fake of the fleet backend for
// package tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Tiliavir/fleet-timesheet/internal/model"
)

const (
	// Username and Password are the credentials the fake accepts.
	Username = "admin"
	Password = "secret"
	// Token is the bearer token the fake issues and accepts.
	Token = "test-token"
)

type failure struct {
	remaining int
	status    int
	// message, when set, is sent as a 200 error envelope instead of status.
	message string
}

// Backend is a fake fleet API served over httptest. Set the exported data
// fields before issuing requests; they are read under the backend lock.
type Backend struct {
	Server *httptest.Server

	mu        sync.Mutex
	Vehicles  []model.Vehicle
	Days      map[string]model.DailyData
	Users     []model.User
	Tickets   []model.Ticket
	submitted [][]model.ProcessedAssignment
	hits      map[string]int
	queries   map[string]url.Values
	headers   map[string]http.Header
	failures  map[string]*failure
	gates     map[string]chan struct{}
	// RequireAuth makes every route except login demand Token.
	RequireAuth bool
}

// NewBackend starts a fake backend that is closed when the test ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		Days:        map[string]model.DailyData{},
		hits:        map[string]int{},
		queries:     map[string]url.Values{},
		headers:     map[string]http.Header{},
		failures:    map[string]*failure{},
		gates:       map[string]chan struct{}{},
		RequireAuth: true,
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(b.record)
		r.Post("/auth/login", b.login)
		r.Group(func(r chi.Router) {
			r.Use(b.authorize)
			r.Get("/vehicles", b.vehicles)
			r.Get("/trips", b.trips)
			r.Get("/trips/analysis", b.trips)
			r.Get("/users/", b.users)
			r.Post("/users/init/", b.ok)
			r.Get("/tickets/search", b.searchTickets)
			r.Post("/timesheet/process", b.process)
			r.Get("/debug/cache", b.ok)
		})
	})

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the API root to configure clients with.
func (b *Backend) URL() string {
	return b.Server.URL + "/api"
}

// Hits returns how many requests reached path (e.g. "/vehicles").
func (b *Backend) Hits(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

// LastQuery returns the query of the most recent request to path.
func (b *Backend) LastQuery(path string) url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries[path]
}

// LastHeader returns the headers of the most recent request to path.
func (b *Backend) LastHeader(path string) http.Header {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.headers[path]
}

// Submitted returns every payload posted to /timesheet/process.
func (b *Backend) Submitted() [][]model.ProcessedAssignment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]model.ProcessedAssignment(nil), b.submitted...)
}

// Fail makes the next n requests to path answer with status.
func (b *Backend) Fail(path string, n, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = &failure{remaining: n, status: status}
}

// Reject makes the next n requests to path answer 200 with an error
// envelope carrying message.
func (b *Backend) Reject(path string, n int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = &failure{remaining: n, status: http.StatusOK, message: message}
}

// Hold makes requests to path wait until the returned release func is
// called. Hits are counted before the wait.
func (b *Backend) Hold(path string) (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gates[path] = gate
	b.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func routePath(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/api")
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routePath(r)
		b.mu.Lock()
		b.hits[path]++
		b.queries[path] = r.URL.Query()
		b.headers[path] = r.Header.Clone()
		gate := b.gates[path]
		var (
			status  int
			message string
		)
		if f := b.failures[path]; f != nil && f.remaining > 0 {
			f.remaining--
			status, message = f.status, f.message
		}
		b.mu.Unlock()

		if gate != nil {
			<-gate
		}
		if message != "" {
			writeJSON(w, status, map[string]string{"status": "error", "message": message})
			return
		}
		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		required := b.RequireAuth
		b.mu.Unlock()
		if required && r.Header.Get("Authorization") != "Bearer "+Token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func success(data any) map[string]any {
	return map[string]any{"status": "success", "data": data}
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": err.Error()})
		return
	}
	if creds.Username != Username || creds.Password != Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "error", "message": "bad credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "token": Token})
}

func (b *Backend) vehicles(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, success(b.Vehicles))
}

// trips answers with every configured day in [start_date, end_date).
func (b *Backend) trips(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start_date")
	end := r.URL.Query().Get("end_date")
	b.mu.Lock()
	defer b.mu.Unlock()
	out := map[string]model.DailyData{}
	for date, day := range b.Days {
		if date >= start && date < end {
			out[date] = day
		}
	}
	writeJSON(w, http.StatusOK, success(out))
}

func (b *Backend) users(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, success(b.Users))
}

func (b *Backend) searchTickets(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []model.Ticket{}
	for _, t := range b.Tickets {
		if strings.Contains(strings.ToLower(t.TicketNumber), q) || strings.Contains(strings.ToLower(t.Summary), q) {
			out = append(out, t)
		}
	}
	writeJSON(w, http.StatusOK, success(out))
}

func (b *Backend) process(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Assignments []model.ProcessedAssignment `json:"assignments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": err.Error()})
		return
	}
	b.mu.Lock()
	b.submitted = append(b.submitted, body.Assignments)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "processed"})
}

func (b *Backend) ok(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
