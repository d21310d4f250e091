package quest

import (
	"time"
)

// ObjectiveType defines the type of objective
type ObjectiveType string

const (
	ObjectiveKill    ObjectiveType = "kill"    // Defeat enemies
	ObjectiveGather  ObjectiveType = "gather"  // Collect items
	ObjectiveExplore ObjectiveType = "explore" // Visit a location
	ObjectiveTalk    ObjectiveType = "talk"    // Speak to an NPC
	ObjectiveCraft   ObjectiveType = "craft"   // Create items
	ObjectiveDeliver ObjectiveType = "deliver" // Bring items to a location
	ObjectiveWait    ObjectiveType = "wait"    // Let time pass
)

// Valid reports whether t is one of the known objective types.
func (t ObjectiveType) Valid() bool {
	switch t {
	case ObjectiveKill, ObjectiveGather, ObjectiveExplore, ObjectiveTalk,
		ObjectiveCraft, ObjectiveDeliver, ObjectiveWait:
		return true
	}
	return false
}

// Category defines the category of quest
type Category string

const (
	CategoryMain       Category = "main"       // Main story quests
	CategorySide       Category = "side"       // Optional side quests
	CategoryDaily      Category = "daily"      // Reset every day
	CategoryWeekly     Category = "weekly"     // Reset every week
	CategoryRepeatable Category = "repeatable" // Can be taken again right away
	CategoryEvent      Category = "event"      // Limited-time events
)

// Difficulty is a display hint for quest givers
type Difficulty string

const (
	DifficultyTrivial Difficulty = "trivial"
	DifficultyEasy    Difficulty = "easy"
	DifficultyNormal  Difficulty = "normal"
	DifficultyHard    Difficulty = "hard"
	DifficultyEpic    Difficulty = "epic"
)

// Status is the lifecycle state of a quest
type Status string

const (
	StatusAvailable Status = "available"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ItemStack is an item ID with a quantity
type ItemStack struct {
	ItemID   string `json:"item_id" yaml:"item"`
	Quantity int    `json:"quantity" yaml:"quantity"`
}

// ReputationDelta is a change in standing with a faction
type ReputationDelta struct {
	FactionID string `json:"faction_id" yaml:"faction"`
	Amount    int    `json:"amount" yaml:"amount"`
}

// Rewards defines what the player receives on completion
type Rewards struct {
	Experience int               `json:"experience,omitempty"`
	Gold       int               `json:"gold,omitempty"`
	Essence    int               `json:"essence,omitempty"`
	Items      []ItemStack       `json:"items,omitempty"`
	Reputation []ReputationDelta `json:"reputation,omitempty"`
}

// IsEmpty returns true if the bundle grants nothing
func (r Rewards) IsEmpty() bool {
	return r.Experience == 0 && r.Gold == 0 && r.Essence == 0 &&
		len(r.Items) == 0 && len(r.Reputation) == 0
}

// Objective is a single trackable unit of work within a quest
type Objective struct {
	ID          string        `json:"id"`
	Type        ObjectiveType `json:"type"`
	Target      string        `json:"target"`             // mob, item, npc or location ID depending on Type
	Location    string        `json:"location,omitempty"` // used by deliver and explore
	Description string        `json:"description,omitempty"`
	Current     int           `json:"current"`
	Required    int           `json:"required"`
	Completed   bool          `json:"completed"`
}

// Quest is the merged definition and live state of one quest
type Quest struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Giver       string     `json:"giver,omitempty"`   // NPC ID who gives this quest
	TurnIn      string     `json:"turn_in,omitempty"` // NPC ID to turn in (often same as giver)
	Location    string     `json:"location,omitempty"`
	Category    Category   `json:"category"`
	Difficulty  Difficulty `json:"difficulty,omitempty"`
	Story       bool       `json:"story,omitempty"`
	Repeatable  bool       `json:"repeatable,omitempty"`
	Hidden      bool       `json:"hidden,omitempty"` // Only reachable through another quest's unlocks

	Objectives   []Objective     `json:"objectives"`
	Requirements RequirementList `json:"requirements,omitempty"`
	Rewards      Rewards         `json:"rewards"`
	Unlocks      []string        `json:"unlocks,omitempty"`
	QuestItems   []ItemStack     `json:"quest_items,omitempty"` // Given on accept
	TimeLimit    time.Duration   `json:"time_limit,omitempty"`

	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Progress    int        `json:"progress"`
	IsAvailable bool       `json:"is_available"`
}

// IsRepeatable returns true if the quest may be taken again after it ends
func (q *Quest) IsRepeatable() bool {
	return q.Repeatable || q.Category == CategoryRepeatable
}

// HasTimeLimit returns true if the quest must be finished before a deadline
func (q *Quest) HasTimeLimit() bool {
	return q.TimeLimit > 0
}

// HasQuestItems returns true if quest gives items on accept
func (q *Quest) HasQuestItems() bool {
	return len(q.QuestItems) > 0
}

// GetObjectiveCount returns the number of objectives
func (q *Quest) GetObjectiveCount() int {
	return len(q.Objectives)
}

// Objective returns the objective with the given ID
func (q *Quest) Objective(id string) (*Objective, bool) {
	for i := range q.Objectives {
		if q.Objectives[i].ID == id {
			return &q.Objectives[i], true
		}
	}
	return nil, false
}

// CompletedObjectiveCount returns how many objectives are done
func (q *Quest) CompletedObjectiveCount() int {
	n := 0
	for _, obj := range q.Objectives {
		if obj.Completed {
			n++
		}
	}
	return n
}

// AllObjectivesComplete reports whether the quest can be turned in.
// A quest without objectives is vacuously complete.
func (q *Quest) AllObjectivesComplete() bool {
	return q.CompletedObjectiveCount() == len(q.Objectives)
}

// RecomputeProgress derives Progress from objective state
func (q *Quest) RecomputeProgress() {
	total := len(q.Objectives)
	if total == 0 {
		q.Progress = 100
		return
	}
	q.Progress = 100 * q.CompletedObjectiveCount() / total
}

// ResetObjectives zeroes every objective and the derived progress
func (q *Quest) ResetObjectives() {
	for i := range q.Objectives {
		q.Objectives[i].Current = 0
		q.Objectives[i].Completed = false
	}
	q.RecomputeProgress()
}

// IsExpired returns true if the quest has a deadline that has passed
func (q *Quest) IsExpired(now time.Time) bool {
	return q.ExpiresAt != nil && !now.Before(*q.ExpiresAt)
}

// TurnInNPC returns the NPC the quest is handed in to
func (q *Quest) TurnInNPC() string {
	if q.TurnIn != "" {
		return q.TurnIn
	}
	return q.Giver
}

// Clone returns a deep copy so callers can't mutate store-owned state
func (q *Quest) Clone() *Quest {
	c := *q
	c.Objectives = append([]Objective(nil), q.Objectives...)
	c.Requirements = append(RequirementList(nil), q.Requirements...)
	c.Rewards.Items = append([]ItemStack(nil), q.Rewards.Items...)
	c.Rewards.Reputation = append([]ReputationDelta(nil), q.Rewards.Reputation...)
	c.Unlocks = append([]string(nil), q.Unlocks...)
	c.QuestItems = append([]ItemStack(nil), q.QuestItems...)
	if q.StartedAt != nil {
		t := *q.StartedAt
		c.StartedAt = &t
	}
	if q.ExpiresAt != nil {
		t := *q.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}
