// Package session holds the bearer token shared by every backend request.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/Tiliavir/fleet-timesheet/internal/storage"
)

// TokenKey is the durable storage key of the auth token.
const TokenKey = "auth-token"

// Session owns the single auth token slot. The token is read on every
// request and written rarely; the last writer wins.
type Session struct {
	store storage.Store

	mu        sync.RWMutex
	token     *oauth2.Token
	onExpired func()
}

// New returns a Session backed by store, loading a previously saved token.
// A corrupt token entry is dropped with a warning.
func New(store storage.Store) *Session {
	s := &Session{store: store}
	var tok oauth2.Token
	err := storage.ReadJSON(store, TokenKey, &tok)
	switch {
	case err == nil && tok.AccessToken != "":
		s.token = &tok
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		slog.Warn("discarding unreadable auth token", "error", err)
		_ = store.Delete(TokenKey)
	}
	return s
}

// OnExpired registers fn to run whenever the backend rejects the token.
// It replaces any previously registered callback.
func (s *Session) OnExpired(fn func()) {
	s.mu.Lock()
	s.onExpired = fn
	s.mu.Unlock()
}

// Token returns the current access token, or "" when signed out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return ""
	}
	return s.token.AccessToken
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// SetToken stores a new bearer token and persists it.
func (s *Session) SetToken(accessToken string) error {
	tok := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	if exp, ok := jwtExpiry(accessToken); ok {
		tok.Expiry = exp
	}

	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()

	if err := storage.WriteJSON(s.store, TokenKey, tok); err != nil {
		return fmt.Errorf("saving auth token: %w", err)
	}
	return nil
}

// Clear signs the session out by deleting the token.
func (s *Session) Clear() error {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()

	if err := s.store.Delete(TokenKey); err != nil {
		return fmt.Errorf("deleting auth token: %w", err)
	}
	return nil
}

// Expire clears the token after the backend rejected it and notifies the
// registered OnExpired callback.
func (s *Session) Expire() {
	if err := s.Clear(); err != nil {
		slog.Error("clearing rejected auth token", "error", err)
	}
	s.mu.RLock()
	fn := s.onExpired
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Authorize sets the Authorization header on req when a token is present.
func (s *Session) Authorize(req *http.Request) {
	s.mu.RLock()
	tok := s.token
	s.mu.RUnlock()
	if tok == nil || tok.AccessToken == "" {
		return
	}
	tok.SetAuthHeader(req)
}

// Expiry returns the token expiry when the token is a JWT carrying an exp
// claim. The token is opaque to the client, so this is informational only.
func (s *Session) Expiry() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil || s.token.Expiry.IsZero() {
		return time.Time{}, false
	}
	return s.token.Expiry, true
}

// jwtExpiry reads the exp claim without verifying the signature; the client
// never holds the signing key.
func jwtExpiry(raw string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
