package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/core/wizard"
)

// MenuSource provides the menu snapshot a new session starts from.
type MenuSource interface {
	Current(ctx context.Context) (*domain.Menu, error)
}

type sessionEntry struct {
	mu      sync.Mutex
	session *wizard.Session
	touched time.Time
}

// SessionStore keeps wizard sessions in memory and serialises access to each
// one. Idle sessions expire after ttl.
type SessionStore struct {
	menus  MenuSource
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func NewSessionStore(menus MenuSource, ttl time.Duration, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		menus:    menus,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
}

// Create starts a session over the current menu. A menu load failure still
// yields a session over the last good (possibly empty) menu.
func (s *SessionStore) Create(ctx context.Context) (wizard.View, error) {
	menu, err := s.menus.Current(ctx)
	if err != nil {
		s.logger.Warn("session started on fallback menu", zap.Error(err))
	}
	ws := wizard.NewSession(uuid.NewString(), menu)

	s.mu.Lock()
	s.sessions[ws.ID] = &sessionEntry{session: ws, touched: s.now()}
	s.mu.Unlock()
	return ws.View(), nil
}

// With runs fn with exclusive access to the session.
func (s *SessionStore) With(id string, fn func(*wizard.Session) error) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.touched = s.now()
	return fn(e.session)
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the ttl.
func (s *SessionStore) Sweep() int {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if e.touched.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// Run sweeps expired sessions every interval until ctx is done.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info("expired wizard sessions", zap.Int("count", n))
			}
		}
	}
}
