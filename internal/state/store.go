// Package state caches the last successful fetch of each polled surface.
// Renderers read from here; pollers write. A failed poll leaves the previous
// snapshot in place so the dashboard degrades to stale rather than blank.
package state

import (
	"sync"
	"time"

	"github.com/farmcare/ventpanel/internal/controller"
	"github.com/farmcare/ventpanel/internal/model"
)

type Store struct {
	mu sync.RWMutex

	current   *controller.State
	stateAt   time.Time
	history   []controller.HistoryEntry
	historyAt time.Time
	update    *controller.UpdateStatus
	updateAt  time.Time
}

func NewStore() *Store {
	return &Store{}
}

// SetState replaces the installation snapshot.
func (s *Store) SetState(st *controller.State) {
	s.mu.Lock()
	s.current = st
	s.stateAt = time.Now()
	s.mu.Unlock()
}

// Current returns the last snapshot and when it was fetched. The snapshot may
// be nil before the first successful poll.
func (s *Store) Current() (*controller.State, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.stateAt
}

// Vents returns the vent list of the current snapshot, nil when none.
func (s *Store) Vents() []model.Vent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	return s.current.Vents
}

// Groups returns the group list of the current snapshot, nil when none.
func (s *Store) Groups() []model.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	return s.current.Groups
}

func (s *Store) SetHistory(entries []controller.HistoryEntry) {
	s.mu.Lock()
	s.history = entries
	s.historyAt = time.Now()
	s.mu.Unlock()
}

func (s *Store) History() ([]controller.HistoryEntry, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history, s.historyAt
}

func (s *Store) SetUpdateStatus(u *controller.UpdateStatus) {
	s.mu.Lock()
	s.update = u
	s.updateAt = time.Now()
	s.mu.Unlock()
}

func (s *Store) UpdateStatus() (*controller.UpdateStatus, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.update, s.updateAt
}
