package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lawnchairsociety/questengine/internal/quest"
)

// checkState returns every invariant violation in st, joined
func checkState(st *State) error {
	var problems []error

	membership := make(map[string][]quest.Status)
	lists := []struct {
		status quest.Status
		ids    []string
	}{
		{quest.StatusAvailable, st.Available},
		{quest.StatusActive, st.Active},
		{quest.StatusCompleted, st.Completed},
		{quest.StatusFailed, st.Failed},
	}
	for _, l := range lists {
		seen := make(map[string]bool)
		for _, id := range l.ids {
			if seen[id] {
				problems = append(problems, fmt.Errorf("quest %s listed twice in %s", id, l.status))
			}
			seen[id] = true
			if _, ok := st.Quests[id]; !ok {
				problems = append(problems, fmt.Errorf("%s lists unregistered quest %s", l.status, id))
			}
			membership[id] = append(membership[id], l.status)
		}
	}

	ids := make([]string, 0, len(st.Quests))
	for id := range st.Quests {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		q := st.Quests[id]
		if q.ID != id {
			problems = append(problems, fmt.Errorf("quest registered as %s has id %s", id, q.ID))
		}
		problems = append(problems, checkMembership(q, membership[id])...)
		problems = append(problems, checkObjectives(q)...)

		if q.Status == quest.StatusActive {
			p, ok := st.Progress[id]
			if !ok {
				problems = append(problems, fmt.Errorf("active quest %s has no progress row", id))
				continue
			}
			for _, obj := range q.Objectives {
				if p.Objectives[obj.ID] != obj.Current {
					problems = append(problems, fmt.Errorf("quest %s objective %s: progress row %d, mirror %d",
						id, obj.ID, p.Objectives[obj.ID], obj.Current))
				}
			}
		}
	}

	if st.TrackedID != "" {
		if q, ok := st.Quests[st.TrackedID]; !ok || q.Status != quest.StatusActive {
			problems = append(problems, fmt.Errorf("tracked quest %s is not active", st.TrackedID))
		}
	}

	return errors.Join(problems...)
}

// checkMembership enforces that a quest sits in exactly one index, with
// two exceptions: undiscovered quests sit in none, and repeatable quests
// offered again sit in available plus the index they finished in.
func checkMembership(q *quest.Quest, in []quest.Status) []error {
	var problems []error
	inAvailable := false
	for _, status := range in {
		if status == quest.StatusAvailable {
			inAvailable = true
		}
	}
	if q.IsAvailable != inAvailable {
		problems = append(problems, fmt.Errorf("quest %s isAvailable=%v but available index says %v", q.ID, q.IsAvailable, inAvailable))
	}

	switch len(in) {
	case 0:
		if q.Status != quest.StatusAvailable {
			problems = append(problems, fmt.Errorf("quest %s is %s but in no index", q.ID, q.Status))
		}
	case 1:
		if q.Status != in[0] {
			problems = append(problems, fmt.Errorf("quest %s is %s but indexed as %s", q.ID, q.Status, in[0]))
		}
	case 2:
		finished := in[0] == quest.StatusCompleted || in[0] == quest.StatusFailed ||
			in[1] == quest.StatusCompleted || in[1] == quest.StatusFailed
		if !q.IsRepeatable() || !inAvailable || !finished || q.Status != quest.StatusAvailable {
			problems = append(problems, fmt.Errorf("quest %s is in %v", q.ID, in))
		}
	default:
		problems = append(problems, fmt.Errorf("quest %s is in %v", q.ID, in))
	}
	return problems
}

// checkObjectives enforces the clamp, the completed flag and the progress formula
func checkObjectives(q *quest.Quest) []error {
	var problems []error
	completed := 0
	for _, obj := range q.Objectives {
		if obj.Current > obj.Required {
			problems = append(problems, fmt.Errorf("quest %s objective %s: current %d exceeds required %d",
				q.ID, obj.ID, obj.Current, obj.Required))
		}
		if obj.Completed != (obj.Current >= obj.Required) {
			problems = append(problems, fmt.Errorf("quest %s objective %s: completed=%v with %d/%d",
				q.ID, obj.ID, obj.Completed, obj.Current, obj.Required))
		}
		if obj.Completed {
			completed++
		}
	}

	expected := 100
	if len(q.Objectives) > 0 {
		expected = 100 * completed / len(q.Objectives)
	}
	if q.Progress != expected {
		problems = append(problems, fmt.Errorf("quest %s progress %d, expected %d", q.ID, q.Progress, expected))
	}
	return problems
}
