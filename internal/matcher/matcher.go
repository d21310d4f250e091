// Package matcher decides which objectives a game event advances.
package matcher

import (
	"github.com/lawnchairsociety/questengine/internal/quest"
)

// Delta is an amount of progress for one objective
type Delta struct {
	ObjectiveID string `json:"objective_id"`
	Amount      int    `json:"amount"`
}

// Match returns a delta for every incomplete objective of q that ev advances.
// Matching is exact equality on type, target and (for deliveries) location.
func Match(ev quest.GameEvent, q *quest.Quest) []Delta {
	var deltas []Delta
	for _, obj := range q.Objectives {
		if obj.Completed {
			continue
		}
		if matches(ev, &obj) {
			deltas = append(deltas, Delta{ObjectiveID: obj.ID, Amount: ev.Amount()})
		}
	}
	return deltas
}

func matches(ev quest.GameEvent, obj *quest.Objective) bool {
	if ev.ObjectiveType() != obj.Type {
		return false
	}
	switch e := ev.(type) {
	case quest.KillEvent:
		return e.Target == obj.Target
	case quest.GatherEvent:
		return e.ItemID == obj.Target
	case quest.ExploreEvent:
		return e.Location == exploreLocation(obj)
	case quest.TalkEvent:
		return e.NPC == obj.Target
	case quest.CraftEvent:
		return e.ItemID == obj.Target
	case quest.DeliverEvent:
		return e.ItemID == obj.Target && e.Location == obj.Location
	case quest.WaitEvent:
		return e.Target == obj.Target
	}
	return false
}

// exploreLocation is where an explore objective wants the player to go
func exploreLocation(obj *quest.Objective) string {
	if obj.Location != "" {
		return obj.Location
	}
	return obj.Target
}

// Targets returns the entity an objective is waiting on
func Targets(obj *quest.Objective) string {
	if obj.Type == quest.ObjectiveExplore {
		return exploreLocation(obj)
	}
	return obj.Target
}

// Relevant reports whether any incomplete objective of the given quests
// targets the entity. Used to decide whether killing, gathering or visiting
// something currently matters.
func Relevant(target string, quests []*quest.Quest) bool {
	for _, q := range quests {
		for i := range q.Objectives {
			obj := &q.Objectives[i]
			if obj.Completed {
				continue
			}
			if Targets(obj) == target || (obj.Type == quest.ObjectiveDeliver && obj.Location == target) {
				return true
			}
		}
	}
	return false
}
