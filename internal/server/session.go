package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/lawnchairsociety/questengine/internal/antispam"
	"github.com/lawnchairsociety/questengine/internal/engine"
	apperrors "github.com/lawnchairsociety/questengine/internal/errors"
	"github.com/lawnchairsociety/questengine/internal/leveling"
	"github.com/lawnchairsociety/questengine/internal/notify"
	"github.com/lawnchairsociety/questengine/internal/player"
	"github.com/lawnchairsociety/questengine/internal/quest"
	"github.com/lawnchairsociety/questengine/internal/store"
)

// Session binds one connected player to their engine
type Session struct {
	playerID  string
	ip        string
	client    Client
	engine    *engine.Engine
	store     *store.Store
	character *player.Character
	server    *Server
	log       *slog.Logger
	throttle  *antispam.Tracker

	saveMu    sync.Mutex // one save at a time
	closeOnce sync.Once
}

// PlayerID returns the player this session belongs to
func (s *Session) PlayerID() string {
	return s.playerID
}

// Engine returns the session's quest engine
func (s *Session) Engine() *engine.Engine {
	return s.engine
}

// push delivers an engine notification to the client
func (s *Session) push(message string, severity notify.Severity, opts notify.Options) {
	msg := Push{
		Type:         TypeNotification,
		Notification: notify.Notification{Message: message, Severity: severity, Options: opts},
	}
	if err := s.client.WriteJSON(msg); err != nil {
		s.log.Debug("Failed to push notification", "error", err)
	}
}

func (s *Session) pushLevelUps() {
	for _, up := range s.character.TakeLevelUps() {
		msg := Push{
			Type: TypeLevelUp,
			Notification: notify.Notification{
				Message:  fmt.Sprintf("You reached level %d!", up.NewLevel),
				Severity: notify.SeveritySuccess,
				Options:  notify.Options{Category: "level"},
			},
			Level: up.NewLevel,
		}
		if err := s.client.WriteJSON(msg); err != nil {
			s.log.Debug("Failed to push level up", "error", err)
		}
	}
}

// Close disconnects the client. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.client.Close()
	})
}

// run reads requests until the client disconnects or is locked out
func (s *Session) run(ctx context.Context) {
	for {
		line, err := s.client.ReadLine()
		if err != nil {
			s.log.Debug("Session read ended", "error", err)
			return
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			if !s.reject(req, apperrors.Wrap(apperrors.CodeBadRequest, "request is not valid JSON", err)) {
				return
			}
			continue
		}

		resp, valid := s.handle(ctx, req)
		if err := s.client.WriteJSON(resp); err != nil {
			s.log.Debug("Failed to write response", "op", req.Op, "error", err)
			return
		}
		if !valid && !s.recordInvalid() {
			return
		}
	}
}

// reject answers a malformed request. It returns false once the client's
// address is locked out and the session should end.
func (s *Session) reject(req Request, err error) bool {
	if writeErr := s.client.WriteJSON(errorResponse(req, err, nil)); writeErr != nil {
		return false
	}
	return s.recordInvalid()
}

func (s *Session) recordInvalid() bool {
	if s.server.requests == nil {
		return true
	}
	locked, lockout := s.server.requests.RecordInvalid(s.ip)
	if locked {
		s.log.Warn("Client locked out after invalid requests", "ip", s.ip, "lockout", lockout)
		return false
	}
	return true
}

// handle runs one request. valid is false for malformed requests, which
// count towards the client's lockout; domain errors do not.
func (s *Session) handle(ctx context.Context, req Request) (resp Response, valid bool) {
	switch req.Op {
	case OpStart:
		result, err := s.engine.StartQuest(ctx, req.Quest)
		if err != nil {
			return errorResponse(req, err, result), true
		}
		return okResponse(req, result), true

	case OpComplete:
		report, err := s.engine.CompleteQuest(ctx, req.Quest)
		if err != nil {
			return errorResponse(req, err, nil), true
		}
		s.pushLevelUps()
		return okResponse(req, report), true

	case OpAbandon:
		return s.result(req, s.engine.AbandonQuest(ctx, req.Quest), nil), true

	case OpFail:
		return s.result(req, s.engine.FailQuest(ctx, req.Quest, req.Reason), nil), true

	case OpEvent:
		if req.Event == nil {
			return errorResponse(req, apperrors.New(apperrors.CodeInvalidEvent, "event request has no event"), nil), false
		}
		ev, err := req.Event.Event()
		if err != nil {
			return errorResponse(req, apperrors.Wrap(apperrors.CodeInvalidEvent, err.Error(), err), nil), false
		}
		if check := s.throttle.Check(); !check.Allowed {
			return errorResponse(req, apperrors.WithMetadata(apperrors.CodeRateLimited, check.Reason,
				map[string]string{"wait_seconds": strconv.Itoa(check.WaitSeconds)}), nil), true
		}
		changed, err := s.engine.ProcessEvent(ctx, ev)
		if changed == nil {
			changed = []string{}
		}
		return s.result(req, err, EventResult{Changed: changed}), true

	case OpCheck:
		result, err := s.engine.CheckRequirements(ctx, req.Quest)
		if err != nil {
			return errorResponse(req, err, nil), true
		}
		return okResponse(req, result), true

	case OpTrack:
		return s.result(req, s.engine.TrackQuest(ctx, req.Quest), nil), true

	case OpSelect:
		return s.result(req, s.store.SelectQuest(req.Quest), nil), true

	case OpList:
		return okResponse(req, s.list(req)), true

	case OpGet:
		q, ok := s.store.Get(req.Quest)
		if !ok {
			err := apperrors.WithMetadata(apperrors.CodeNotFound,
				fmt.Sprintf("quest %s not found", req.Quest),
				map[string]string{"quest_id": req.Quest})
			return errorResponse(req, err, nil), true
		}
		progress, _ := s.store.ProgressFor(req.Quest)
		return okResponse(req, QuestView{Quest: q, Progress: progress}), true

	case OpLog:
		if req.Unread {
			return okResponse(req, s.store.UnreadLog()), true
		}
		return okResponse(req, s.store.Log()), true

	case OpRead:
		if req.Entry == "" {
			return okResponse(req, ReadResult{Marked: s.store.MarkAllLogRead()}), true
		}
		if err := s.store.MarkLogRead(req.Entry); err != nil {
			return errorResponse(req, err, nil), true
		}
		return okResponse(req, ReadResult{Marked: 1}), true

	case OpStatus:
		return okResponse(req, s.status()), true

	case OpRelevant:
		if req.Entity == "" {
			return errorResponse(req, apperrors.New(apperrors.CodeBadRequest, "relevant needs an entity"), nil), false
		}
		return okResponse(req, RelevantResult{Entity: req.Entity, Relevant: s.store.IsEntityRelevant(req.Entity)}), true

	case "":
		return errorResponse(req, apperrors.New(apperrors.CodeBadRequest, "request has no op"), nil), false

	default:
		err := apperrors.WithMetadata(apperrors.CodeBadRequest,
			fmt.Sprintf("unknown op %q", req.Op),
			map[string]string{"op": req.Op})
		return errorResponse(req, err, nil), false
	}
}

func (s *Session) result(req Request, err error, data any) Response {
	if err != nil {
		return errorResponse(req, err, data)
	}
	return okResponse(req, data)
}

// listedStatuses are the indexes a plain list walks. Hidden quests that
// haven't been unlocked sit in none of them.
var listedStatuses = []quest.Status{
	quest.StatusAvailable,
	quest.StatusActive,
	quest.StatusCompleted,
	quest.StatusFailed,
}

// list returns quests matching every filter set on req, sorted by ID.
// Only quests in one of the requested status indexes are listed; each
// other filter narrows that set through the matching store selector.
func (s *Session) list(req Request) []*quest.Quest {
	statuses := listedStatuses
	if req.Status != "" {
		statuses = []quest.Status{quest.Status(req.Status)}
	}

	// Repeatable quests can sit in two indexes
	keep := make(map[string]bool)
	for _, status := range statuses {
		for _, id := range s.store.IDs(status) {
			keep[id] = true
		}
	}

	var selected [][]string
	if req.Category != "" {
		selected = append(selected, questIDs(s.store.ByCategory(quest.Category(strings.ToLower(req.Category)))))
	}
	if req.Giver != "" {
		selected = append(selected, questIDs(s.store.ByGiver(req.Giver)))
	}
	if req.Location != "" {
		selected = append(selected, questIDs(s.store.ByLocation(req.Location)))
	}
	if req.Completable {
		selected = append(selected, s.store.Completable())
	}
	for _, ids := range selected {
		matched := make(map[string]bool, len(ids))
		for _, id := range ids {
			if keep[id] {
				matched[id] = true
			}
		}
		keep = matched
	}

	ids := make([]string, 0, len(keep))
	for id := range keep {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*quest.Quest, 0, len(ids))
	for _, id := range ids {
		if q, ok := s.store.Get(id); ok {
			out = append(out, q)
		}
	}
	return out
}

func questIDs(quests []*quest.Quest) []string {
	ids := make([]string, len(quests))
	for i, q := range quests {
		ids[i] = q.ID
	}
	return ids
}

func (s *Session) status() StatusView {
	now := s.server.now()
	xp := s.character.GetExperience()
	inventory := make(map[string]int)
	for _, itemID := range s.character.Items() {
		inventory[itemID] = s.character.Quantity(itemID)
	}
	return StatusView{
		Player:          s.playerID,
		Level:           s.character.GetLevel(),
		Experience:      xp,
		NextLevelXP:     leveling.ProgressFor(xp).Remaining,
		Gold:            s.character.GetGold(),
		Essence:         s.character.GetEssence(),
		Completion:      s.store.CompletionPercent(),
		Active:          len(s.store.ActiveIDs()),
		Tracked:         s.store.Tracked(),
		Selected:        s.store.Selected(),
		Unread:          len(s.store.UnreadLog()),
		Inventory:       inventory,
		NextDailyReset:  s.server.schedule.NextDaily(now),
		NextWeeklyReset: s.server.schedule.NextWeekly(now),
	}
}
