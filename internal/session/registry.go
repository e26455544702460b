package session

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrSessionNotFound is returned when a call ID has no active session.
// Callers decide whether absence is an error or a trigger for lazy
// creation; the registry never creates sessions implicitly on lookup.
var ErrSessionNotFound = errors.New("session: not found")

// Registry is the concurrency-safe collection of active sessions keyed
// by call ID: the single source of truth for "is this call active". A
// session is reachable from the registry exactly until it terminates.
//
// Thread Safety: all operations are atomic with respect to each other.
// The registry lock covers only map access, never pipeline work.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	nowFunc func() time.Time
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		nowFunc:  time.Now,
	}
}

// SetNowFunc overrides the clock. Intended for tests.
func (r *Registry) SetNowFunc(fn func() time.Time) {
	r.nowFunc = fn
}

// Create registers a session for callID, seeding it with the given
// context. Creation is idempotent: a concurrent or repeated create for
// an already-active ID returns the existing session untouched, with
// created=false, never an error.
func (r *Registry) Create(callID string, sessCtx Context) (s *Session, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[callID]; ok {
		return existing, false
	}

	s = newSession(callID, sessCtx, r.nowFunc())
	r.sessions[callID] = s
	return s, true
}

// Get returns the active session for callID or ErrSessionNotFound.
func (r *Registry) Get(callID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[callID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove drops the session for callID. Removing an unknown ID is a
// no-op; termination paths may race benignly.
func (r *Registry) Remove(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, callID)
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Summary describes one active session for observability surfaces.
type Summary struct {
	CallID          string    `json:"call_id"`
	Phase           Phase     `json:"phase"`
	PhoneNumber     string    `json:"phone_number,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// Summaries returns one summary per active session, ordered by start
// time then call ID for stable output.
func (r *Registry) Summaries() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.nowFunc()
	out := make([]Summary, 0, len(r.sessions))
	for id, s := range r.sessions {
		out = append(out, Summary{
			CallID:          id,
			Phase:           s.Phase(),
			PhoneNumber:     s.Context().PhoneNumber,
			StartedAt:       s.StartedAt(),
			DurationSeconds: now.Sub(s.StartedAt()).Seconds(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].CallID < out[j].CallID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// IdleCallIDs returns the IDs of sessions whose last activity is older
// than the threshold, as of now.
func (r *Registry) IdleCallIDs(threshold time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.nowFunc()
	var ids []string
	for id, s := range r.sessions {
		if now.Sub(s.LastActivity()) > threshold {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
