package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saborverde/opsboard/model"
)

// Arena holds one session per row identity. Sessions are constructed on open
// and destroyed on close; rows never share mutable panel state, so two rows
// may save concurrently with no ordering guarantee between their server-side
// effects.
type Arena struct {
	panel    model.PanelSpec
	hooks    Hooks
	notifier Notifier
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewArena creates an empty arena for one panel specification.
func NewArena(panel model.PanelSpec, hooks Hooks, notifier Notifier, logger *zap.Logger) *Arena {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Arena{
		panel:    panel,
		hooks:    hooks,
		notifier: notifier,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Open opens (or reopens) the session for a row. A prior session for the
// same row is discarded first; its in-flight completions become stale.
func (a *Arena) Open(rowID string, record model.Record) (*Session, error) {
	a.mu.Lock()
	if prev, ok := a.sessions[rowID]; ok {
		prev.Close()
	}
	s := New(rowID, a.panel, a.hooks, a.notifier, a.logger)
	a.sessions[rowID] = s
	a.mu.Unlock()

	if err := s.Open(record); err != nil {
		a.mu.Lock()
		if a.sessions[rowID] == s {
			delete(a.sessions, rowID)
		}
		a.mu.Unlock()
		return nil, err
	}
	return s, nil
}

// Get returns the live session for a row, if any.
func (a *Arena) Get(rowID string) (*Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[rowID]
	return s, ok
}

// Close discards the session for a row.
func (a *Arena) Close(rowID string) {
	a.mu.Lock()
	s, ok := a.sessions[rowID]
	if ok {
		delete(a.sessions, rowID)
	}
	a.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Release removes a session from the arena after a terminal operation. It is
// a no-op when the stored session differs from the given one.
func (a *Arena) Release(s *Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cur, ok := a.sessions[s.RowID()]; ok && cur == s {
		delete(a.sessions, s.RowID())
	}
}

// CloseIdle closes every Ready session whose last activity predates the
// cutoff and returns how many were closed. Sessions mid-save or mid-delete
// are left alone; their completion decides their fate.
func (a *Arena) CloseIdle(cutoff time.Time) int {
	a.mu.Lock()
	var stale []*Session
	for rowID, s := range a.sessions {
		if s.State() != StateReady {
			continue
		}
		if s.LastActivity().Before(cutoff) {
			stale = append(stale, s)
			delete(a.sessions, rowID)
		}
	}
	a.mu.Unlock()

	for _, s := range stale {
		a.logger.Info("closing idle edit session",
			zap.String("row_id", s.RowID()), zap.Time("last_activity", s.LastActivity()))
		s.Close()
	}
	return len(stale)
}

// Len returns the number of live sessions.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}
