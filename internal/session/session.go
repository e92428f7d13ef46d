// Package session holds the authenticated identity of the running client.
//
// It is populated on login, cleared on logout or on a 401 from the backend,
// and lets interested parties subscribe to both transitions.
package session

import (
	"sync"
	"time"

	"illust_nest/internal/domain/models"
)

type EventKind int

const (
	EventPopulated EventKind = iota + 1
	EventCleared
)

type ClearReason string

const (
	ReasonLogout       ClearReason = "logout"
	ReasonUnauthorized ClearReason = "unauthorized"
	ReasonExpired      ClearReason = "expired"
)

type Event struct {
	Kind   EventKind
	Reason ClearReason
	User   models.User
}

type Session struct {
	mu        sync.RWMutex
	user      models.User
	token     string
	expiresAt time.Time

	nextID    int
	listeners map[int]func(Event)
	order     []int
}

func New() *Session {
	return &Session{listeners: make(map[int]func(Event))}
}

// Populate installs a fresh identity and notifies subscribers.
func (s *Session) Populate(meta models.TokenMeta) {
	s.mu.Lock()
	s.user = meta.User
	s.token = meta.Token
	s.expiresAt = meta.ExpiresAt
	s.mu.Unlock()

	s.emit(Event{Kind: EventPopulated, User: meta.User})
}

// UpdateToken swaps the bearer token after a refresh without touching the user.
func (s *Session) UpdateToken(token string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.expiresAt = expiresAt
}

// Clear drops the identity. Clearing an empty session is a no-op and emits nothing.
func (s *Session) Clear(reason ClearReason) {
	s.mu.Lock()
	if s.token == "" {
		s.mu.Unlock()
		return
	}
	user := s.user
	s.user = models.User{}
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	s.emit(Event{Kind: EventCleared, Reason: reason, User: user})
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

func (s *Session) User() models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.user
}

func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.expiresAt
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Snapshot returns what a store needs to persist.
func (s *Session) Snapshot() models.TokenMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.TokenMeta{User: s.user, Token: s.token, ExpiresAt: s.expiresAt}
}

// Subscribe registers fn for every transition. Listeners run in subscription
// order on the goroutine that caused the transition. The returned func
// unsubscribes and is safe to call more than once.
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Session) emit(ev Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.listeners[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
