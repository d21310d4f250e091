package quest

import (
	"time"
)

// Progress tracks a player's raw objective counts on a specific quest.
// It is the source of truth that objective updates write to; the Quest's
// Objective.Current fields mirror it.
type Progress struct {
	QuestID     string         `json:"quest_id"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Objectives  map[string]int `json:"objectives"` // objective ID -> current count
}

// NewProgress creates a zeroed progress row for a quest
func NewProgress(q *Quest, startedAt time.Time) *Progress {
	objectives := make(map[string]int, len(q.Objectives))
	for _, obj := range q.Objectives {
		objectives[obj.ID] = 0
	}
	return &Progress{
		QuestID:    q.ID,
		StartedAt:  startedAt,
		Objectives: objectives,
	}
}

// Clone returns a deep copy of the progress row
func (p *Progress) Clone() *Progress {
	c := *p
	c.Objectives = make(map[string]int, len(p.Objectives))
	for k, v := range p.Objectives {
		c.Objectives[k] = v
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// LogType classifies a quest log entry
type LogType string

const (
	LogStart    LogType = "start"
	LogProgress LogType = "progress"
	LogComplete LogType = "complete"
	LogFail     LogType = "fail"
)

// LogEntry is an append-only audit record. Only Read ever changes.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	QuestID   string    `json:"quest_id"`
	Message   string    `json:"message"`
	Type      LogType   `json:"type"`
	Read      bool      `json:"read"`
}
