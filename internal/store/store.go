// Package store holds the authoritative quest state for one player: quest
// records, the four status indexes, progress rows and the quest log.
//
// Every transition validates its preconditions and returns an
// *apperrors.Error without mutating anything when they don't hold.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lawnchairsociety/questengine/internal/quest"
)

// State is the plain-data form of a Store. It round-trips through JSON.
type State struct {
	Quests    map[string]*quest.Quest    `json:"quests"`
	Available []string                   `json:"available"`
	Active    []string                   `json:"active"`
	Completed []string                   `json:"completed"`
	Failed    []string                   `json:"failed"`
	Progress  map[string]*quest.Progress `json:"progress"`
	Log       []quest.LogEntry           `json:"log"`

	TrackedID  string `json:"tracked_id,omitempty"`
	SelectedID string `json:"selected_id,omitempty"`

	LastDailyReset  time.Time `json:"last_daily_reset"`
	LastWeeklyReset time.Time `json:"last_weekly_reset"`
}

func newState() State {
	return State{
		Quests:    make(map[string]*quest.Quest),
		Available: []string{},
		Active:    []string{},
		Completed: []string{},
		Failed:    []string{},
		Progress:  make(map[string]*quest.Progress),
		Log:       []quest.LogEntry{},
	}
}

// normalize fills nil collections left by a sparse snapshot
func (s *State) normalize() {
	if s.Quests == nil {
		s.Quests = make(map[string]*quest.Quest)
	}
	if s.Available == nil {
		s.Available = []string{}
	}
	if s.Active == nil {
		s.Active = []string{}
	}
	if s.Completed == nil {
		s.Completed = []string{}
	}
	if s.Failed == nil {
		s.Failed = []string{}
	}
	if s.Progress == nil {
		s.Progress = make(map[string]*quest.Progress)
	}
	if s.Log == nil {
		s.Log = []quest.LogEntry{}
	}
}

// Option configures a Store
type Option func(*Store)

// WithClock sets the time source used for timestamps and deadlines
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator sets how log entry IDs are produced
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// Store is a single player's quest state. It is safe for concurrent use;
// callers that need several operations to be atomic serialize above it.
type Store struct {
	mu    sync.RWMutex
	state State
	now   func() time.Time
	newID func() string
}

// New creates an empty Store
func New(opts ...Option) *Store {
	s := &Store{
		state: newState(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's current time
func (s *Store) Now() time.Time {
	return s.now()
}

// appendLog adds an entry to the quest log. Caller holds the write lock.
func (s *Store) appendLog(questID string, logType quest.LogType, message string) {
	s.state.Log = append(s.state.Log, quest.LogEntry{
		ID:        s.newID(),
		Timestamp: s.now(),
		QuestID:   questID,
		Message:   message,
		Type:      logType,
	})
}

// index returns the list a status is tracked in
func (s *Store) index(status quest.Status) *[]string {
	switch status {
	case quest.StatusAvailable:
		return &s.state.Available
	case quest.StatusActive:
		return &s.state.Active
	case quest.StatusCompleted:
		return &s.state.Completed
	case quest.StatusFailed:
		return &s.state.Failed
	}
	return nil
}

// removeFromAll drops id from every index
func (s *Store) removeFromAll(id string) {
	s.state.Available = without(s.state.Available, id)
	s.state.Active = without(s.state.Active, id)
	s.state.Completed = without(s.state.Completed, id)
	s.state.Failed = without(s.state.Failed, id)
}

// inAnyIndex reports whether id is tracked in any of the four lists
func (s *Store) inAnyIndex(id string) bool {
	return contains(s.state.Available, id) || contains(s.state.Active, id) ||
		contains(s.state.Completed, id) || contains(s.state.Failed, id)
}

// makeAvailable pushes id onto the available list
func (s *Store) makeAvailable(q *quest.Quest) {
	if !contains(s.state.Available, q.ID) {
		s.state.Available = append(s.state.Available, q.ID)
	}
	q.Status = quest.StatusAvailable
	q.IsAvailable = true
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func without(list []string, id string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func sortedCopy(list []string) []string {
	out := append([]string{}, list...)
	sort.Strings(out)
	return out
}
