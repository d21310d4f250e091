package store

import (
	"fmt"
	"sort"
	"time"

	apperrors "github.com/lawnchairsociety/questengine/internal/errors"
	"github.com/lawnchairsociety/questengine/internal/quest"
)

const (
	dailyPeriod  = 24 * time.Hour
	weeklyPeriod = 7 * 24 * time.Hour
)

func notFound(id string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodeNotFound,
		fmt.Sprintf("quest %s not found", id),
		map[string]string{"quest_id": id})
}

func illegal(id string, status quest.Status, action string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodeIllegalTransition,
		fmt.Sprintf("cannot %s quest %s while it is %s", action, id, status),
		map[string]string{"quest_id": id, "status": string(status), "action": action})
}

// lookup returns the live record. Caller holds a lock.
func (s *Store) lookup(id string) (*quest.Quest, error) {
	q, ok := s.state.Quests[id]
	if !ok {
		return nil, notFound(id)
	}
	return q, nil
}

// AddQuest registers a copy of q as available
func (s *Store) AddQuest(q *quest.Quest) error {
	return s.register(q, false)
}

// AddHiddenQuest registers a copy of q without putting it in any index.
// It becomes available once another quest unlocks it.
func (s *Store) AddHiddenQuest(q *quest.Quest) error {
	return s.register(q, true)
}

func (s *Store) register(q *quest.Quest, hidden bool) error {
	if q == nil || q.ID == "" {
		return apperrors.New(apperrors.CodeNotFound, "cannot register a quest without an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.state.Quests[q.ID]; exists {
		return apperrors.WithMetadata(apperrors.CodeAlreadyRegistered,
			fmt.Sprintf("quest %s is already registered", q.ID),
			map[string]string{"quest_id": q.ID})
	}

	c := q.Clone()
	c.StartedAt = nil
	c.ExpiresAt = nil
	for i := range c.Objectives {
		if c.Objectives[i].Required < 1 {
			c.Objectives[i].Required = 1
		}
	}
	c.ResetObjectives()
	c.Status = quest.StatusAvailable
	c.IsAvailable = false
	s.state.Quests[c.ID] = c
	if !hidden {
		s.makeAvailable(c)
	}
	return nil
}

// Start moves a quest to active and resets its objectives
func (s *Store) Start(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.lookup(id)
	if err != nil {
		return err
	}
	if q.Status == quest.StatusActive {
		return illegal(id, q.Status, "start")
	}

	now := s.now()
	s.removeFromAll(id)
	s.state.Active = append(s.state.Active, id)

	q.Status = quest.StatusActive
	q.IsAvailable = false
	started := now
	q.StartedAt = &started
	q.ExpiresAt = nil
	if q.HasTimeLimit() {
		deadline := now.Add(q.TimeLimit)
		q.ExpiresAt = &deadline
	}
	q.ResetObjectives()
	s.state.Progress[id] = quest.NewProgress(q, now)

	s.appendLog(id, quest.LogStart, fmt.Sprintf("Started: %s", q.Title))
	return nil
}

// UpdateObjectiveProgress adds delta to an objective of an active quest,
// clamped to its requirement. It reports whether the objective completed
// with this update. Updates to an already-completed objective, or with a
// non-positive delta, change nothing.
func (s *Store) UpdateObjectiveProgress(id, objectiveID string, delta int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.lookup(id)
	if err != nil {
		return false, err
	}
	if q.Status != quest.StatusActive {
		return false, illegal(id, q.Status, "progress")
	}
	obj, ok := q.Objective(objectiveID)
	if !ok {
		return false, apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("quest %s has no objective %s", id, objectiveID),
			map[string]string{"quest_id": id, "objective_id": objectiveID})
	}
	if obj.Completed || delta <= 0 {
		return false, nil
	}

	progress, ok := s.state.Progress[id]
	if !ok {
		progress = quest.NewProgress(q, s.now())
		s.state.Progress[id] = progress
	}

	current := progress.Objectives[objectiveID] + delta
	if current > obj.Required {
		current = obj.Required
	}
	progress.Objectives[objectiveID] = current
	obj.Current = current

	flipped := false
	if current >= obj.Required {
		obj.Completed = true
		flipped = true
		s.appendLog(id, quest.LogProgress, fmt.Sprintf("Objective complete: %s", objectiveLabel(obj)))
	}
	q.RecomputeProgress()
	return flipped, nil
}

func objectiveLabel(obj *quest.Objective) string {
	if obj.Description != "" {
		return obj.Description
	}
	return fmt.Sprintf("%s %s", obj.Type, obj.Target)
}

// Complete turns in an active quest whose objectives are all done. Unlock
// targets that are registered but not yet discovered become available; the
// IDs of unlock targets that aren't registered at all are returned so the
// caller can register them.
func (s *Store) Complete(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if q.Status != quest.StatusActive {
		return nil, illegal(id, q.Status, "complete")
	}
	if !q.AllObjectivesComplete() {
		return nil, apperrors.WithMetadata(apperrors.CodeIllegalTransition,
			fmt.Sprintf("quest %s has incomplete objectives", id),
			map[string]string{
				"quest_id":  id,
				"completed": fmt.Sprint(q.CompletedObjectiveCount()),
				"total":     fmt.Sprint(len(q.Objectives)),
			})
	}

	now := s.now()
	s.state.Active = without(s.state.Active, id)
	s.state.Completed = append(s.state.Completed, id)
	q.Status = quest.StatusCompleted
	q.IsAvailable = false
	q.ExpiresAt = nil
	if progress, ok := s.state.Progress[id]; ok {
		completedAt := now
		progress.CompletedAt = &completedAt
	}
	if s.state.TrackedID == id {
		s.state.TrackedID = ""
	}

	var unregistered []string
	for _, target := range q.Unlocks {
		t, ok := s.state.Quests[target]
		if !ok {
			unregistered = append(unregistered, target)
			continue
		}
		if !s.inAnyIndex(target) {
			s.makeAvailable(t)
		}
	}

	s.appendLog(id, quest.LogComplete, fmt.Sprintf("Completed: %s", q.Title))

	if q.IsRepeatable() {
		s.makeAvailable(q)
	}
	return unregistered, nil
}

// UnlockRegistered makes a quest that was registered hidden available, if
// it isn't tracked anywhere yet
func (s *Store) UnlockRegistered(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.lookup(id)
	if err != nil {
		return err
	}
	if !s.inAnyIndex(id) {
		s.makeAvailable(q)
	}
	return nil
}

// Abandon drops an active quest. Non-story quests go back to available;
// story quests are left undiscovered.
func (s *Store) Abandon(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.lookup(id)
	if err != nil {
		return err
	}
	if q.Status != quest.StatusActive {
		return illegal(id, q.Status, "abandon")
	}

	s.state.Active = without(s.state.Active, id)
	delete(s.state.Progress, id)
	s.deactivate(q)
	q.Status = quest.StatusAvailable
	q.IsAvailable = false
	if !q.Story {
		s.makeAvailable(q)
	}

	s.appendLog(id, quest.LogFail, fmt.Sprintf("Abandoned: %s", q.Title))
	return nil
}

// Fail moves an active quest to failed. Repeatable quests are offered again.
func (s *Store) Fail(id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.lookup(id)
	if err != nil {
		return err
	}
	if q.Status != quest.StatusActive {
		return illegal(id, q.Status, "fail")
	}

	s.state.Active = without(s.state.Active, id)
	s.state.Failed = append(s.state.Failed, id)
	s.deactivate(q)
	q.Status = quest.StatusFailed
	q.IsAvailable = false
	if q.IsRepeatable() {
		s.makeAvailable(q)
	}

	if reason == "" {
		reason = "failed"
	}
	s.appendLog(id, quest.LogFail, fmt.Sprintf("Failed: %s (%s)", q.Title, reason))
	return nil
}

// deactivate clears run-specific fields when a quest leaves active
// without being completed
func (s *Store) deactivate(q *quest.Quest) {
	q.StartedAt = nil
	q.ExpiresAt = nil
	q.ResetObjectives()
	if s.state.TrackedID == q.ID {
		s.state.TrackedID = ""
	}
}

// TrackQuest sets the HUD-tracked quest. An empty id clears it.
func (s *Store) TrackQuest(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		s.state.TrackedID = ""
		return nil
	}
	q, err := s.lookup(id)
	if err != nil {
		return err
	}
	if q.Status != quest.StatusActive {
		return illegal(id, q.Status, "track")
	}
	s.state.TrackedID = id
	return nil
}

// SelectQuest sets the quest highlighted in the journal. An empty id clears it.
func (s *Store) SelectQuest(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if _, err := s.lookup(id); err != nil {
			return err
		}
	}
	s.state.SelectedID = id
	return nil
}

// DailyReset returns every completed daily quest to available. It does
// nothing until a full day has passed since the last reset, so repeat
// calls within one day are no-ops. The first call only stamps now.
func (s *Store) DailyReset(now time.Time) []string {
	return s.periodicReset(quest.CategoryDaily, &s.state.LastDailyReset, dailyPeriod, now)
}

// WeeklyReset is DailyReset for weekly quests
func (s *Store) WeeklyReset(now time.Time) []string {
	return s.periodicReset(quest.CategoryWeekly, &s.state.LastWeeklyReset, weeklyPeriod, now)
}

func (s *Store) periodicReset(category quest.Category, last *time.Time, period time.Duration, now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case last.IsZero():
		*last = now
	case last.Add(period).After(now):
		return nil
	default:
		// missed periods collapse into one reset
		for !last.Add(period).After(now) {
			*last = last.Add(period)
		}
	}

	var reset []string
	for _, id := range append([]string{}, s.state.Completed...) {
		q := s.state.Quests[id]
		if q == nil || q.Category != category {
			continue
		}
		s.state.Completed = without(s.state.Completed, id)
		q.StartedAt = nil
		q.ExpiresAt = nil
		q.ResetObjectives()
		s.makeAvailable(q)
		reset = append(reset, id)
	}
	sort.Strings(reset)
	return reset
}

// Expired returns the IDs of active quests whose deadline has passed
func (s *Store) Expired(now time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []string
	for _, id := range s.state.Active {
		if q := s.state.Quests[id]; q != nil && q.IsExpired(now) {
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	return expired
}

// MarkLogRead flags one log entry as read
func (s *Store) MarkLogRead(entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.state.Log {
		if s.state.Log[i].ID == entryID {
			s.state.Log[i].Read = true
			return nil
		}
	}
	return apperrors.WithMetadata(apperrors.CodeNotFound,
		fmt.Sprintf("log entry %s not found", entryID),
		map[string]string{"entry_id": entryID})
}

// MarkAllLogRead flags every log entry as read and returns how many changed
func (s *Store) MarkAllLogRead() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.state.Log {
		if !s.state.Log[i].Read {
			s.state.Log[i].Read = true
			n++
		}
	}
	return n
}

// LogOverflow returns the oldest entries beyond keep, leaving the log as is
func (s *Store) LogOverflow(keep int) []quest.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if keep < 0 || len(s.state.Log) <= keep {
		return nil
	}
	return append([]quest.LogEntry{}, s.state.Log[:len(s.state.Log)-keep]...)
}

// TrimLogThrough removes every entry up to and including entryID and
// returns how many went. Entries appended since entryID was read are
// kept. An unknown entryID removes nothing.
func (s *Store) TrimLogThrough(entryID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.state.Log {
		if e.ID == entryID {
			s.state.Log = append([]quest.LogEntry{}, s.state.Log[i+1:]...)
			return i + 1
		}
	}
	return 0
}

// Reset wipes all state
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = newState()
}
