// Package requirements decides whether a player may accept a quest.
// Evaluation is pure: it reads a Snapshot and never mutates anything.
package requirements

import (
	"fmt"

	"github.com/lawnchairsociety/questengine/internal/quest"
)

// Snapshot is the read-only slice of player and world state requirements look at
type Snapshot struct {
	Level      int
	Completed  map[string]bool // quest ID -> completed
	Items      map[string]int  // item ID -> quantity held
	Skills     map[string]int  // skill ID -> level
	Reputation map[string]int  // faction ID -> standing
}

// Check is the outcome of a single requirement
type Check struct {
	Kind        quest.RequirementKind `json:"type"`
	Met         bool                  `json:"met"`
	Description string                `json:"description"`
}

// Result is the itemized outcome of evaluating every requirement of a quest
type Result struct {
	AllMet       bool    `json:"all_met"`
	Requirements []Check `json:"requirements"`
}

// Unmet returns the checks that failed
func (r Result) Unmet() []Check {
	var unmet []Check
	for _, c := range r.Requirements {
		if !c.Met {
			unmet = append(unmet, c)
		}
	}
	return unmet
}

// Evaluate checks every requirement of q against snap. Requirements are a
// conjunction; a quest with none is always startable.
func Evaluate(q *quest.Quest, snap Snapshot) Result {
	result := Result{AllMet: true, Requirements: []Check{}}
	for _, req := range q.Requirements {
		check := evaluateOne(req, snap)
		if !check.Met {
			result.AllMet = false
		}
		result.Requirements = append(result.Requirements, check)
	}
	return result
}

func evaluateOne(req quest.Requirement, snap Snapshot) Check {
	switch r := req.(type) {
	case quest.LevelRequirement:
		return Check{
			Kind:        r.Kind(),
			Met:         snap.Level >= r.Min,
			Description: fmt.Sprintf("Requires level %d (you are %d)", r.Min, snap.Level),
		}
	case quest.QuestRequirement:
		return Check{
			Kind:        r.Kind(),
			Met:         snap.Completed[r.QuestID],
			Description: fmt.Sprintf("Requires completing %s", r.QuestID),
		}
	case quest.ItemRequirement:
		have := snap.Items[r.ItemID]
		return Check{
			Kind:        r.Kind(),
			Met:         have >= r.MinQuantity(),
			Description: fmt.Sprintf("Requires %d x %s (you have %d)", r.MinQuantity(), r.ItemID, have),
		}
	case quest.SkillRequirement:
		have := snap.Skills[r.SkillID]
		return Check{
			Kind:        r.Kind(),
			Met:         have >= r.Level,
			Description: fmt.Sprintf("Requires %s level %d (you are %d)", r.SkillID, r.Level, have),
		}
	case quest.FactionRequirement:
		have := snap.Reputation[r.FactionID]
		return Check{
			Kind:        r.Kind(),
			Met:         have >= r.Standing,
			Description: fmt.Sprintf("Requires %d standing with %s (you have %d)", r.Standing, r.FactionID, have),
		}
	default:
		// Fail closed on anything we can't interpret
		return Check{
			Kind:        req.Kind(),
			Met:         false,
			Description: req.Describe(),
		}
	}
}
