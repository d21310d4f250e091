package store

import (
	"sort"
	"time"

	"github.com/lawnchairsociety/questengine/internal/matcher"
	"github.com/lawnchairsociety/questengine/internal/quest"
)

// Get returns a copy of a quest
func (s *Store) Get(id string) (*quest.Quest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.state.Quests[id]
	if !ok {
		return nil, false
	}
	return q.Clone(), true
}

// Has reports whether a quest is registered
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.state.Quests[id]
	return ok
}

// All returns copies of every registered quest, sorted by ID
func (s *Store) All() []*quest.Quest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(*quest.Quest) bool { return true })
}

// ByStatus returns copies of the quests in one index, in index order
func (s *Store) ByStatus(status quest.Status) []*quest.Quest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.index(status)
	if list == nil {
		return []*quest.Quest{}
	}
	quests := make([]*quest.Quest, 0, len(*list))
	for _, id := range *list {
		if q, ok := s.state.Quests[id]; ok {
			quests = append(quests, q.Clone())
		}
	}
	return quests
}

// ByCategory returns copies of every quest in a category
func (s *Store) ByCategory(category quest.Category) []*quest.Quest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(q *quest.Quest) bool { return q.Category == category })
}

// ByLocation returns copies of every quest set at a location
func (s *Store) ByLocation(location string) []*quest.Quest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(q *quest.Quest) bool { return q.Location == location })
}

// ByGiver returns copies of every quest an NPC gives or takes in
func (s *Store) ByGiver(npcID string) []*quest.Quest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(q *quest.Quest) bool { return q.Giver == npcID || q.TurnInNPC() == npcID })
}

// filter returns sorted copies of matching quests. Caller holds a lock.
func (s *Store) filter(keep func(*quest.Quest) bool) []*quest.Quest {
	quests := make([]*quest.Quest, 0)
	for _, q := range s.state.Quests {
		if keep(q) {
			quests = append(quests, q.Clone())
		}
	}
	sort.Slice(quests, func(i, j int) bool { return quests[i].ID < quests[j].ID })
	return quests
}

// ActiveIDs returns the active quest IDs in sorted order
func (s *Store) ActiveIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedCopy(s.state.Active)
}

// IDs returns the IDs in one index, in index order
func (s *Store) IDs(status quest.Status) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.index(status)
	if list == nil {
		return []string{}
	}
	return append([]string{}, (*list)...)
}

// CompletedSet returns the set of completed quest IDs
func (s *Store) CompletedSet() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]bool, len(s.state.Completed))
	for _, id := range s.state.Completed {
		set[id] = true
	}
	return set
}

// CompletionPercent returns floor(100 * completed / registered)
func (s *Store) CompletionPercent() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.state.Quests) == 0 {
		return 0
	}
	return 100 * len(s.state.Completed) / len(s.state.Quests)
}

// ProgressFor returns a copy of a quest's progress row
func (s *Store) ProgressFor(id string) (*quest.Progress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.state.Progress[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Log returns a copy of the full quest log, oldest first
func (s *Store) Log() []quest.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]quest.LogEntry{}, s.state.Log...)
}

// UnreadLog returns the unread log entries, oldest first
func (s *Store) UnreadLog() []quest.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := []quest.LogEntry{}
	for _, e := range s.state.Log {
		if !e.Read {
			entries = append(entries, e)
		}
	}
	return entries
}

// Tracked returns the HUD-tracked quest ID, or ""
func (s *Store) Tracked() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.TrackedID
}

// Selected returns the journal-selected quest ID, or ""
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.SelectedID
}

// LastResets returns when the daily and weekly resets last ran
func (s *Store) LastResets() (daily, weekly time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.LastDailyReset, s.state.LastWeeklyReset
}

// IsEntityRelevant reports whether any active quest still needs target
func (s *Store) IsEntityRelevant(target string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return matcher.Relevant(target, s.activeQuests())
}

// Completable returns the active quests whose objectives are all done
func (s *Store) Completable() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, q := range s.activeQuests() {
		if q.AllObjectivesComplete() {
			ids = append(ids, q.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// activeQuests returns the live active records. Caller holds a lock.
func (s *Store) activeQuests() []*quest.Quest {
	quests := make([]*quest.Quest, 0, len(s.state.Active))
	for _, id := range s.state.Active {
		if q, ok := s.state.Quests[id]; ok {
			quests = append(quests, q)
		}
	}
	return quests
}
