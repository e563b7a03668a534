package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/nestguide/internal/triage/intake"
)

// session pairs a dispatcher with its own lock so concurrent requests on one
// interview serialize while other sessions proceed.
type session struct {
	mu         sync.Mutex
	id         string
	dispatcher *intake.Dispatcher
	lastSeen   time.Time
}

// registry holds live sessions in memory. Idle sessions expire lazily on
// access and on create; nothing is persisted.
type registry struct {
	mu       sync.Mutex
	ttl      time.Duration
	clock    func() time.Time
	sessions map[string]*session
}

func newRegistry(ttl time.Duration, clock func() time.Time) *registry {
	return &registry{
		ttl:      ttl,
		clock:    clock,
		sessions: make(map[string]*session),
	}
}

func (r *registry) create(d *intake.Dispatcher) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	r.sweepLocked(now)
	s := &session{id: uuid.NewString(), dispatcher: d, lastSeen: now}
	r.sessions[s.id] = s
	return s
}

func (r *registry) get(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	now := r.clock()
	if r.expired(s, now) {
		delete(r.sessions, id)
		return nil, false
	}
	s.lastSeen = now
	return s, true
}

func (r *registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	delete(r.sessions, id)
	return !r.expired(s, r.clock())
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(r.clock())
	return len(r.sessions)
}

// clear drops every session and reports how many had not yet expired.
func (r *registry) clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	live := 0
	for _, s := range r.sessions {
		if !r.expired(s, now) {
			live++
		}
	}
	r.sessions = make(map[string]*session)
	return live
}

func (r *registry) sweepLocked(now time.Time) {
	for id, s := range r.sessions {
		if r.expired(s, now) {
			delete(r.sessions, id)
		}
	}
}

func (r *registry) expired(s *session, now time.Time) bool {
	return r.ttl > 0 && now.Sub(s.lastSeen) > r.ttl
}
