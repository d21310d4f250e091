package engine

import (
	"errors"
	"fmt"

	"github.com/lawnchairsociety/questengine/internal/matcher"
	"github.com/lawnchairsociety/questengine/internal/quest"
	"github.com/lawnchairsociety/questengine/internal/store"
)

// Router fans one game event out across every active quest
type Router struct {
	store *store.Store
}

// NewRouter creates a router over a store
func NewRouter(s *store.Store) *Router {
	return &Router{store: s}
}

// Route applies ev to every active quest in ID order. It returns the quests
// whose progress changed and, of those, the ones that are now completable.
func (r *Router) Route(ev quest.GameEvent) (changed, becameCompletable []string, err error) {
	var errs []error

	for _, id := range r.store.ActiveIDs() {
		q, ok := r.store.Get(id)
		if !ok {
			continue
		}
		wasCompletable := q.AllObjectivesComplete()

		deltas := matcher.Match(ev, q)
		if len(deltas) == 0 {
			continue
		}

		applied := false
		for _, d := range deltas {
			if _, err := r.store.UpdateObjectiveProgress(id, d.ObjectiveID, d.Amount); err != nil {
				errs = append(errs, fmt.Errorf("quest %s objective %s: %w", id, d.ObjectiveID, err))
				continue
			}
			applied = true
		}
		if !applied {
			continue
		}
		changed = append(changed, id)

		if updated, ok := r.store.Get(id); ok && !wasCompletable && updated.AllObjectivesComplete() {
			becameCompletable = append(becameCompletable, id)
		}
	}

	return changed, becameCompletable, errors.Join(errs...)
}
