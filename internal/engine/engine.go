// Package engine orchestrates quest lifecycle commands. It gates starts on
// requirements, routes game events into objective progress, and applies
// rewards and notifications through the player's subsystems.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/lawnchairsociety/questengine/internal/errors"
	"github.com/lawnchairsociety/questengine/internal/gametime"
	"github.com/lawnchairsociety/questengine/internal/logger"
	"github.com/lawnchairsociety/questengine/internal/notify"
	"github.com/lawnchairsociety/questengine/internal/quest"
	"github.com/lawnchairsociety/questengine/internal/requirements"
	"github.com/lawnchairsociety/questengine/internal/store"
	"github.com/lawnchairsociety/questengine/internal/telemetry"
	"github.com/lawnchairsociety/questengine/internal/text"
)

const (
	notifyCategory = "quest"
	expiredReason  = "time limit expired"
)

// Options configure an Engine. Every field is optional.
type Options struct {
	Catalog  *quest.Catalog     // source for unlock targets that aren't registered yet
	Text     *text.Text         // player-facing message templates
	Clock    func() time.Time   // defaults to the store's clock
	Schedule *gametime.Schedule // aligns resets to boundaries; nil resets at the given instant
	Logger   *slog.Logger
}

// Engine runs quest commands for one player. Commands are serialized so
// that each one observes and leaves a consistent store.
type Engine struct {
	mu       sync.Mutex
	store    *store.Store
	router   *Router
	collab   Collaborators
	catalog  *quest.Catalog
	text     *text.Text
	schedule *gametime.Schedule
	now      func() time.Time
	tracer   trace.Tracer
	log      *slog.Logger
}

// New creates an engine over a player's store
func New(s *store.Store, collab Collaborators, opts Options) *Engine {
	if collab.Notifier == nil {
		collab.Notifier = notify.LogSink{}
	}
	e := &Engine{
		store:    s,
		router:   NewRouter(s),
		collab:   collab,
		catalog:  opts.Catalog,
		text:     opts.Text,
		schedule: opts.Schedule,
		now:      opts.Clock,
		tracer:   telemetry.Tracer(),
		log:      opts.Logger,
	}
	if e.text == nil {
		e.text = text.Default()
	}
	if e.now == nil {
		e.now = s.Now
	}
	if e.log == nil {
		e.log = logger.With("component", "engine")
	}
	return e
}

// Store returns the underlying store for read-only queries
func (e *Engine) Store() *store.Store {
	return e.store
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "engine."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
	}
	span.End()
}

func (e *Engine) notify(message string, severity notify.Severity, description string) {
	e.collab.Notifier.Notify(message, severity, notify.Options{
		Category:    notifyCategory,
		Description: description,
	})
}

// SyncCatalog registers every catalog quest the store doesn't know yet.
// Hidden quests are registered undiscovered. It returns the IDs added.
func (e *Engine) SyncCatalog() []string {
	if e.catalog == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var added []string
	for _, q := range e.catalog.All() {
		if e.store.Has(q.ID) {
			continue
		}
		var err error
		if q.Hidden {
			err = e.store.AddHiddenQuest(q)
		} else {
			err = e.store.AddQuest(q)
		}
		if err != nil {
			e.log.Warn("Failed to register quest", "quest", q.ID, "error", err)
			continue
		}
		added = append(added, q.ID)
	}
	if len(added) > 0 {
		e.log.Debug("Registered catalog quests", "count", len(added))
	}
	return added
}

// snapshot gathers the player state that q's requirements look at
func (e *Engine) snapshot(q *quest.Quest) requirements.Snapshot {
	snap := requirements.Snapshot{
		Completed:  e.store.CompletedSet(),
		Items:      make(map[string]int),
		Skills:     make(map[string]int),
		Reputation: make(map[string]int),
	}
	c := e.collab
	if c.Player != nil {
		snap.Level = c.Player.GetLevel()
	}
	for _, req := range q.Requirements {
		switch r := req.(type) {
		case quest.ItemRequirement:
			if c.Inventory != nil {
				snap.Items[r.ItemID] = c.Inventory.Quantity(r.ItemID)
			}
		case quest.SkillRequirement:
			if c.Skills != nil {
				snap.Skills[r.SkillID] = c.Skills.SkillLevel(r.SkillID)
			}
		case quest.FactionRequirement:
			if c.Factions != nil {
				snap.Reputation[r.FactionID] = c.Factions.GetReputation(r.FactionID)
			}
		}
	}
	return snap
}

func (e *Engine) lookup(id string) (*quest.Quest, error) {
	q, ok := e.store.Get(id)
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("quest %s not found", id),
			map[string]string{"quest_id": id})
	}
	return q, nil
}

func (e *Engine) notAllowed(q *quest.Quest, action string) error {
	e.notify(e.text.NotAllowed(action, q.Title), notify.SeverityWarning, "")
	return apperrors.WithMetadata(apperrors.CodeIllegalTransition,
		fmt.Sprintf("cannot %s quest %s while %s", action, q.ID, q.Status),
		map[string]string{"quest_id": q.ID, "status": string(q.Status), "action": action})
}

// Exclusive runs fn while no command or event is being applied, so fn
// sees the store and collaborators between operations. fn must not call
// back into the engine.
func (e *Engine) Exclusive(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// CheckRequirements evaluates whether the player could start a quest now
func (e *Engine) CheckRequirements(ctx context.Context, id string) (requirements.Result, error) {
	_, span := e.startSpan(ctx, "CheckRequirements", attribute.String("quest.id", id))
	e.mu.Lock()
	defer e.mu.Unlock()

	q, err := e.lookup(id)
	if err != nil {
		endSpan(span, err)
		return requirements.Result{}, err
	}
	result := requirements.Evaluate(q, e.snapshot(q))
	endSpan(span, nil)
	return result, nil
}

// StartQuest accepts an available quest if its requirements are met.
// On success the quest's items are handed to the player.
func (e *Engine) StartQuest(ctx context.Context, id string) (result requirements.Result, err error) {
	ctx, span := e.startSpan(ctx, "StartQuest", attribute.String("quest.id", id))
	defer func() { endSpan(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.expireLocked()

	q, err := e.lookup(id)
	if err != nil {
		return requirements.Result{}, err
	}
	if q.Status != quest.StatusAvailable || !q.IsAvailable {
		return requirements.Result{}, e.notAllowed(q, "start")
	}
	if err := ctx.Err(); err != nil {
		return requirements.Result{}, err
	}

	result = requirements.Evaluate(q, e.snapshot(q))
	if !result.AllMet {
		unmet := describe(result.Unmet())
		e.notify(e.text.Locked(q.Title), notify.SeverityWarning, unmet)
		return result, apperrors.WithMetadata(apperrors.CodeRequirementsNotMet,
			fmt.Sprintf("requirements not met for %s", id),
			map[string]string{"quest_id": id, "unmet": unmet})
	}

	if err := e.store.Start(id); err != nil {
		return result, err
	}

	for _, item := range q.QuestItems {
		if e.collab.Inventory == nil {
			e.log.Warn("No inventory for quest item", "quest", id, "item", item.ItemID)
			continue
		}
		if err := e.collab.Inventory.AddItem(item.ItemID, atLeastOne(item.Quantity)); err != nil {
			e.log.Warn("Failed to grant quest item", "quest", id, "item", item.ItemID, "error", err)
		}
	}

	e.notify(e.text.QuestStarted(q.Title), notify.SeverityInfo, q.Description)
	e.log.Info("Quest started", "quest", id)

	// Nothing to do: ready right away
	if len(q.Objectives) == 0 {
		e.notify(e.text.QuestReady(q.Title), notify.SeveritySuccess, "")
	}
	return result, nil
}

// CompleteQuest turns in an active quest whose objectives are all done.
// Rewards are delivered best-effort; a reward failure is reported but
// never undoes the completion.
func (e *Engine) CompleteQuest(ctx context.Context, id string) (report RewardReport, err error) {
	ctx, span := e.startSpan(ctx, "CompleteQuest", attribute.String("quest.id", id))
	defer func() { endSpan(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.expireLocked()

	q, err := e.lookup(id)
	if err != nil {
		return RewardReport{QuestID: id}, err
	}
	if q.Status != quest.StatusActive {
		return RewardReport{QuestID: id}, e.notAllowed(q, "complete")
	}
	if !q.AllObjectivesComplete() {
		done := fmt.Sprintf("%d/%d objectives complete", q.CompletedObjectiveCount(), len(q.Objectives))
		e.notify(e.text.NotAllowed("complete", q.Title), notify.SeverityWarning, done)
		return RewardReport{QuestID: id}, apperrors.WithMetadata(apperrors.CodeIllegalTransition,
			fmt.Sprintf("quest %s has incomplete objectives", id),
			map[string]string{"quest_id": id, "progress": done})
	}
	if err := ctx.Err(); err != nil {
		return RewardReport{QuestID: id}, err
	}

	wasAvailable := make(map[string]bool, len(q.Unlocks))
	for _, target := range q.Unlocks {
		if t, ok := e.store.Get(target); ok {
			wasAvailable[target] = t.IsAvailable
		}
	}

	unregistered, err := e.store.Complete(id)
	if err != nil {
		return RewardReport{QuestID: id}, err
	}
	e.log.Info("Quest completed", "quest", id)
	e.registerUnlocks(id, unregistered)

	report = e.applyRewards(id, q.Rewards)
	if !report.OK() {
		e.log.Warn("Some rewards were not delivered", "quest", id, "error", report.Err())
		e.notify(e.text.RewardPartial(q.Title), notify.SeverityWarning, failureSummary(report.Failures))
	}
	e.notify(e.text.QuestCompleted(q.Title), notify.SeveritySuccess, report.Summary())

	for _, target := range q.Unlocks {
		t, ok := e.store.Get(target)
		if !ok || wasAvailable[target] || !t.IsAvailable {
			continue
		}
		e.notify(e.text.QuestUnlocked(t.Title), notify.SeverityInfo, t.Description)
	}
	return report, nil
}

// registerUnlocks pulls unlock targets the store doesn't know from the catalog
func (e *Engine) registerUnlocks(source string, targets []string) {
	for _, target := range targets {
		if e.catalog == nil {
			e.log.Warn("Unlock target not registered", "quest", source, "target", target)
			continue
		}
		def, ok := e.catalog.Get(target)
		if !ok {
			e.log.Warn("Unlock target not in catalog", "quest", source, "target", target)
			continue
		}
		def.IsAvailable = true
		if err := e.store.AddQuest(def); err != nil {
			e.log.Warn("Failed to register unlocked quest", "quest", source, "target", target, "error", err)
		}
	}
}

// AbandonQuest drops an active quest. Story quests can't be abandoned.
// Quest items handed out on accept are taken back where possible.
func (e *Engine) AbandonQuest(ctx context.Context, id string) (err error) {
	ctx, span := e.startSpan(ctx, "AbandonQuest", attribute.String("quest.id", id))
	defer func() { endSpan(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.expireLocked()

	q, err := e.lookup(id)
	if err != nil {
		return err
	}
	if q.Story {
		e.notify(e.text.StoryAbandon(q.Title), notify.SeverityWarning, "")
		return apperrors.WithMetadata(apperrors.CodeIllegalTransition,
			fmt.Sprintf("story quest %s cannot be abandoned", id),
			map[string]string{"quest_id": id, "action": "abandon", "story": "true"})
	}
	if q.Status != quest.StatusActive {
		return e.notAllowed(q, "abandon")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.store.Abandon(id); err != nil {
		return err
	}
	e.reclaimQuestItems(q)
	e.notify(e.text.QuestAbandoned(q.Title), notify.SeverityInfo, "")
	e.log.Info("Quest abandoned", "quest", id)
	return nil
}

func (e *Engine) reclaimQuestItems(q *quest.Quest) {
	inv := e.collab.Inventory
	if inv == nil {
		return
	}
	for _, item := range q.QuestItems {
		qty := min(inv.Quantity(item.ItemID), atLeastOne(item.Quantity))
		if qty <= 0 {
			continue
		}
		if err := inv.RemoveItem(item.ItemID, qty); err != nil {
			e.log.Warn("Failed to reclaim quest item", "quest", q.ID, "item", item.ItemID, "error", err)
		}
	}
}

// FailQuest marks an active quest as failed
func (e *Engine) FailQuest(ctx context.Context, id, reason string) (err error) {
	ctx, span := e.startSpan(ctx, "FailQuest", attribute.String("quest.id", id))
	defer func() { endSpan(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.expireLocked()

	q, err := e.lookup(id)
	if err != nil {
		return err
	}
	if q.Status != quest.StatusActive {
		return e.notAllowed(q, "fail")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.failLocked(q, reason)
}

func (e *Engine) failLocked(q *quest.Quest, reason string) error {
	if err := e.store.Fail(q.ID, reason); err != nil {
		return err
	}
	if reason == expiredReason {
		e.notify(e.text.QuestExpired(q.Title), notify.SeverityWarning, "")
	} else {
		e.notify(e.text.QuestFailed(q.Title, reason), notify.SeverityWarning, "")
	}
	e.log.Info("Quest failed", "quest", q.ID, "reason", reason)
	return nil
}

// ProcessEvent applies a game event to every active quest and returns the
// IDs whose progress changed, in ID order.
func (e *Engine) ProcessEvent(ctx context.Context, ev quest.GameEvent) (changed []string, err error) {
	if ev == nil {
		return nil, apperrors.New(apperrors.CodeInvalidEvent, "event is nil")
	}
	ctx, span := e.startSpan(ctx, "ProcessEvent", attribute.String("event.type", string(ev.ObjectiveType())))
	defer func() { endSpan(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.expireLocked()

	changed, ready, err := e.router.Route(ev)
	if err != nil {
		e.log.Error("Event routing failed", "type", ev.ObjectiveType(), "error", err)
	}
	for _, id := range ready {
		if q, ok := e.store.Get(id); ok {
			e.notify(e.text.QuestReady(q.Title), notify.SeveritySuccess, "")
		}
	}
	span.SetAttributes(attribute.Int("quests.changed", len(changed)))
	return changed, err
}

// TrackQuest pins an active quest in the HUD. An empty id clears it.
func (e *Engine) TrackQuest(ctx context.Context, id string) (err error) {
	_, span := e.startSpan(ctx, "TrackQuest", attribute.String("quest.id", id))
	defer func() { endSpan(span, err) }()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.expireLocked()

	if err := e.store.TrackQuest(id); err != nil {
		if q, ok := e.store.Get(id); ok && apperrors.HasCode(err, apperrors.CodeIllegalTransition) {
			e.notify(e.text.NotAllowed("track", q.Title), notify.SeverityWarning, "")
		}
		return err
	}
	return nil
}

// ExpireOverdue fails every active quest whose deadline has passed
func (e *Engine) ExpireOverdue(ctx context.Context) []string {
	_, span := e.startSpan(ctx, "ExpireOverdue")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.expireLocked()
}

func (e *Engine) expireLocked() []string {
	var expired []string
	for _, id := range e.store.Expired(e.now()) {
		q, ok := e.store.Get(id)
		if !ok {
			continue
		}
		if err := e.failLocked(q, expiredReason); err != nil {
			e.log.Warn("Failed to expire quest", "quest", id, "error", err)
			continue
		}
		expired = append(expired, id)
	}
	return expired
}

// RunResets performs every daily and weekly reset due at now. Resets are
// idempotent: calling it twice for the same instant resets nothing the
// second time. A store that has never reset is stamped with the current
// boundary.
func (e *Engine) RunResets(ctx context.Context, now time.Time) (daily, weekly []string) {
	_, span := e.startSpan(ctx, "RunResets")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	dailyBoundary, weeklyBoundary := now, now
	if e.schedule != nil {
		dailyBoundary = e.schedule.LastDaily(now)
		weeklyBoundary = e.schedule.LastWeekly(now)
	}

	daily = e.store.DailyReset(dailyBoundary)
	weekly = e.store.WeeklyReset(weeklyBoundary)

	if len(daily) > 0 {
		e.notify(e.text.DailyReset(len(daily)), notify.SeverityInfo, strings.Join(daily, ", "))
	}
	if len(weekly) > 0 {
		e.notify(e.text.WeeklyReset(len(weekly)), notify.SeverityInfo, strings.Join(weekly, ", "))
	}
	span.SetAttributes(attribute.Int("resets.daily", len(daily)), attribute.Int("resets.weekly", len(weekly)))
	return daily, weekly
}

func describe(checks []requirements.Check) string {
	parts := make([]string, len(checks))
	for i, c := range checks {
		parts[i] = c.Description
	}
	return strings.Join(parts, "; ")
}

func failureSummary(failures []RewardFailure) string {
	parts := make([]string, len(failures))
	for i, f := range failures {
		parts[i] = fmt.Sprintf("%s (%s)", f.Detail, f.Kind)
	}
	return strings.Join(parts, ", ")
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
