package server

import (
	"errors"
	"time"

	apperrors "github.com/lawnchairsociety/questengine/internal/errors"
	"github.com/lawnchairsociety/questengine/internal/notify"
	"github.com/lawnchairsociety/questengine/internal/quest"
)

// Request operations
const (
	OpStart    = "start"
	OpComplete = "complete"
	OpAbandon  = "abandon"
	OpFail     = "fail"
	OpEvent    = "event"
	OpCheck    = "check"
	OpTrack    = "track"
	OpSelect   = "select"
	OpList     = "list"
	OpGet      = "get"
	OpLog      = "log"
	OpRead     = "read"
	OpStatus   = "status"
	OpRelevant = "relevant"

	// OpSession is only sent by the server, once, when a session opens
	OpSession = "session"
)

// Message types sent to the client
const (
	TypeResponse     = "response"
	TypeNotification = "notification"
	TypeLevelUp      = "level_up"
)

// Request is one line of client input
type Request struct {
	ID     string               `json:"id,omitempty"` // echoed back in the response
	Op     string               `json:"op"`
	Quest  string               `json:"quest,omitempty"`
	Reason string               `json:"reason,omitempty"` // fail
	Event  *quest.EventEnvelope `json:"event,omitempty"`  // event
	Entry  string               `json:"entry,omitempty"`  // read; empty marks everything
	Unread bool                 `json:"unread,omitempty"` // log

	// list filters, combined with AND
	Status      string `json:"status,omitempty"`
	Category    string `json:"category,omitempty"`
	Giver       string `json:"giver,omitempty"` // gives or takes the quest in
	Location    string `json:"location,omitempty"`
	Completable bool   `json:"completable,omitempty"` // active with every objective done

	Entity string `json:"entity,omitempty"` // relevant
}

// ErrorBody is the wire form of a failed request
type ErrorBody struct {
	Code     apperrors.Code    `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Response answers exactly one Request
type Response struct {
	Type  string     `json:"type"`
	ID    string     `json:"id,omitempty"`
	Op    string     `json:"op"`
	OK    bool       `json:"ok"`
	Error *ErrorBody `json:"error,omitempty"`
	Data  any        `json:"data,omitempty"`
}

// Push is a server-initiated message
type Push struct {
	Type string `json:"type"`
	notify.Notification
	Level int `json:"level,omitempty"` // level_up only
}

// StatusView summarizes a player's progression
type StatusView struct {
	Player          string         `json:"player"`
	Level           int            `json:"level"`
	Experience      int            `json:"experience"`
	NextLevelXP     int            `json:"next_level_xp"` // 0 at the level cap
	Gold            int            `json:"gold"`
	Essence         int            `json:"essence"`
	Completion      int            `json:"completion"` // percent of registered quests completed
	Active          int            `json:"active"`
	Tracked         string         `json:"tracked,omitempty"`
	Selected        string         `json:"selected,omitempty"`
	Unread          int            `json:"unread"`
	Inventory       map[string]int `json:"inventory"`
	NextDailyReset  time.Time      `json:"next_daily_reset"`
	NextWeeklyReset time.Time      `json:"next_weekly_reset"`
}

// QuestView is one quest with its progress record, if any
type QuestView struct {
	Quest    *quest.Quest    `json:"quest"`
	Progress *quest.Progress `json:"progress,omitempty"`
}

// EventResult lists the quests an event advanced
type EventResult struct {
	Changed []string `json:"changed"`
}

// RelevantResult says whether an entity matters to any active objective
type RelevantResult struct {
	Entity   string `json:"entity"`
	Relevant bool   `json:"relevant"`
}

// ReadResult reports how many log entries were marked read
type ReadResult struct {
	Marked int `json:"marked"`
}

func okResponse(req Request, data any) Response {
	return Response{Type: TypeResponse, ID: req.ID, Op: req.Op, OK: true, Data: data}
}

// errorResponse converts err into a response. Data is kept so callers can
// return partial results (requirement checks) alongside the error.
func errorResponse(req Request, err error, data any) Response {
	body := &ErrorBody{Code: apperrors.CodeUnknown, Message: err.Error()}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		body.Code = appErr.Code
		body.Metadata = appErr.Metadata
	}
	return Response{Type: TypeResponse, ID: req.ID, Op: req.Op, Error: body, Data: data}
}
