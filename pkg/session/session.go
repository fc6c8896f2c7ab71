// Package session implements the server-side session store: a keyed
// key-value store holding the authenticated-user snapshot plus transient
// flash and form-echo state, carried by an unguessable cookie id.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/platinummonkey/taskhub/pkg/auth"
)

// idLength is the number of random bytes in a session id (256 bits)
const idLength = 32

// Session is the per-client server-side state. Mutations mark the session
// dirty; the session middleware persists dirty sessions when the handler
// returns.
type Session struct {
	ID        string            `json:"id"`
	User      *auth.Identity    `json:"user,omitempty"`
	Flash     []string          `json:"flash,omitempty"`
	FormData  map[string]string `json:"form_data,omitempty"`
	Remember  bool              `json:"remember"`
	CreatedAt time.Time         `json:"created_at"`

	dirty bool
}

// New creates an unauthenticated session with a random unguessable id
func New() (*Session, error) {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}
	return &Session{
		ID:        base64.RawURLEncoding.EncodeToString(buf),
		CreatedAt: time.Now(),
		dirty:     true,
	}, nil
}

// SetUser caches the authenticated-user snapshot into the session
func (s *Session) SetUser(identity *auth.Identity) {
	s.User = identity
	s.dirty = true
}

// ClearUser drops the cached snapshot
func (s *Session) ClearUser() {
	s.User = nil
	s.dirty = true
}

// SetRemember marks the session for the long remember-me lifetime
func (s *Session) SetRemember(remember bool) {
	s.Remember = remember
	s.dirty = true
}

// AddFlash queues a one-shot message for the next HTML response
func (s *Session) AddFlash(message string) {
	s.Flash = append(s.Flash, message)
	s.dirty = true
}

// PopFlash returns queued flash messages and clears them (single read)
func (s *Session) PopFlash() []string {
	if len(s.Flash) == 0 {
		return nil
	}
	out := s.Flash
	s.Flash = nil
	s.dirty = true
	return out
}

// SetFormData stores submitted form values for re-rendering after an error
func (s *Session) SetFormData(data map[string]string) {
	s.FormData = data
	s.dirty = true
}

// PopFormData returns stored form values and clears them (single read)
func (s *Session) PopFormData() map[string]string {
	if s.FormData == nil {
		return nil
	}
	out := s.FormData
	s.FormData = nil
	s.dirty = true
	return out
}

// Dirty reports whether the session has unpersisted mutations
func (s *Session) Dirty() bool {
	return s.dirty
}

// MarkClean resets the dirty flag after a successful save
func (s *Session) MarkClean() {
	s.dirty = false
}
