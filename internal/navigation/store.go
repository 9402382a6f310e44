package navigation

import (
	"sync"
	"time"

	"github.com/soundloom/companion-bot/internal/platform/logger"
)

const (
	DefaultMaxHistory     = 20
	DefaultSameRouteLimit = 2
	DefaultLoopWindow     = 5 * time.Second
	DefaultRootRoute      = "main"
)

type Entry struct {
	Route     string
	At        time.Time
	MessageID *int64
}

// State is per-user navigation history. It only gates loop detection and the
// generic "back" action, so losing it on process recycle degrades UX, not
// correctness.
type State struct {
	History       []Entry
	CurrentRoute  string
	PreviousRoute string
}

// HistoryStore keys navigation state by user id. Injected so tests get a
// clean store per case and deployments can swap in a distributed cache.
type HistoryStore interface {
	Update(userID int64, fn func(*State))
	Snapshot(userID int64) State
	Delete(userID int64)
}

type memoryStore struct {
	mu     sync.Mutex
	states map[int64]*State
}

func NewMemoryStore() HistoryStore {
	return &memoryStore{states: make(map[int64]*State)}
}

func (m *memoryStore) Update(userID int64, fn func(*State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[userID]
	if !ok {
		st = &State{}
		m.states[userID] = st
	}
	fn(st)
}

func (m *memoryStore) Snapshot(userID int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[userID]
	if !ok {
		return State{}
	}
	out := *st
	out.History = append([]Entry(nil), st.History...)
	return out
}

func (m *memoryStore) Delete(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userID)
}

type Config struct {
	MaxHistory     int
	SameRouteLimit int
	LoopWindow     time.Duration
	RootRoute      string
}

func (c Config) withDefaults() Config {
	if c.MaxHistory <= 0 {
		c.MaxHistory = DefaultMaxHistory
	}
	if c.SameRouteLimit <= 0 {
		c.SameRouteLimit = DefaultSameRouteLimit
	}
	if c.LoopWindow <= 0 {
		c.LoopWindow = DefaultLoopWindow
	}
	if c.RootRoute == "" {
		c.RootRoute = DefaultRootRoute
	}
	return c
}

type Store struct {
	cfg   Config
	state HistoryStore
	log   *logger.Logger
	now   func() time.Time
}

func New(cfg Config, state HistoryStore, baseLog *logger.Logger) *Store {
	if state == nil {
		state = NewMemoryStore()
	}
	return &Store{
		cfg:   cfg.withDefaults(),
		state: state,
		log:   baseLog.With("component", "NavigationStore"),
		now:   time.Now,
	}
}

// NavigateTo records a transition unless the same route was already entered
// SameRouteLimit times within the trailing loop window. A rejected transition
// means a user (or a misbehaving keyboard) is bouncing between two screens.
func (s *Store) NavigateTo(userID int64, route string, messageID *int64) bool {
	now := s.now()
	accepted := false
	s.state.Update(userID, func(st *State) {
		recent := 0
		for _, e := range st.History {
			if e.Route == route && now.Sub(e.At) <= s.cfg.LoopWindow {
				recent++
			}
		}
		if recent >= s.cfg.SameRouteLimit {
			return
		}

		st.History = append(st.History, Entry{Route: route, At: now, MessageID: messageID})
		if len(st.History) > s.cfg.MaxHistory {
			st.History = st.History[len(st.History)-s.cfg.MaxHistory:]
		}
		if st.CurrentRoute != "" && st.CurrentRoute != route {
			st.PreviousRoute = st.CurrentRoute
		}
		st.CurrentRoute = route
		accepted = true
	})
	if !accepted {
		s.log.Debug("Navigation rejected by loop guard", "user_id", userID, "route", route)
	}
	return accepted
}

// PreviousRoute scans history backward for the most recent route that differs
// from the current one, so a generic "back" action needs no per-screen caller
// bookkeeping.
func (s *Store) PreviousRoute(userID int64) string {
	st := s.state.Snapshot(userID)
	for i := len(st.History) - 1; i >= 0; i-- {
		if st.History[i].Route != st.CurrentRoute {
			return st.History[i].Route
		}
	}
	return s.cfg.RootRoute
}

func (s *Store) CurrentRoute(userID int64) string {
	st := s.state.Snapshot(userID)
	if st.CurrentRoute == "" {
		return s.cfg.RootRoute
	}
	return st.CurrentRoute
}

// Clear resets a user to the root route. Called at session start and after a
// top-level menu render so stale loop windows never leak across sessions.
func (s *Store) Clear(userID int64) {
	s.state.Delete(userID)
}
