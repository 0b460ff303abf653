// Package session binds each browser to its own submission widget through
// a cookie holding a random UUID.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aanand-mishra/idcard-portal/internal/widget"
)

const CookieName = "idcard_session"

// Factory builds the widget for a new session.
type Factory func() *widget.Widget

type entry struct {
	widget   *widget.Widget
	lastSeen time.Time
}

// Store is an in-memory, mutex-guarded session table.
type Store struct {
	newWidget Factory
	ttl       time.Duration
	secure    bool
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewStore(newWidget Factory, ttl time.Duration, secureCookie bool) *Store {
	return &Store{
		newWidget: newWidget,
		ttl:       ttl,
		secure:    secureCookie,
		now:       time.Now,
		sessions:  make(map[string]*entry),
	}
}

// Widget returns the caller's widget, creating a session (and setting the
// cookie on w) when the request has none or an unknown one.
func (s *Store) Widget(w http.ResponseWriter, r *http.Request) *widget.Widget {
	if id, ok := sessionID(r); ok {
		if wg := s.lookup(id); wg != nil {
			return wg
		}
	}

	id := uuid.NewString()
	wg := s.newWidget()

	s.mu.Lock()
	s.sessions[id] = &entry{widget: wg, lastSeen: s.now()}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return wg
}

// Lookup returns the widget bound to the request, or nil. It never creates one.
func (s *Store) Lookup(r *http.Request) *widget.Widget {
	id, ok := sessionID(r)
	if !ok {
		return nil
	}
	return s.lookup(id)
}

func (s *Store) lookup(id string) *widget.Widget {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil
	}
	e.lastSeen = s.now()
	return e.widget
}

func sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the TTL, except those still
// waiting on a submission. It returns how many were dropped.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, e := range s.sessions {
		if e.lastSeen.After(cutoff) {
			continue
		}
		if e.widget.View().State == widget.Submitting {
			continue
		}
		delete(s.sessions, id)
		dropped++
	}
	return dropped
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
