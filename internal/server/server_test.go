package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/questengine/internal/config"
	"github.com/lawnchairsociety/questengine/internal/database"
	apperrors "github.com/lawnchairsociety/questengine/internal/errors"
	"github.com/lawnchairsociety/questengine/internal/notify"
	"github.com/lawnchairsociety/questengine/internal/quest"
	"github.com/lawnchairsociety/questengine/internal/requirements"
)

const serverTestQuests = `quests:
  wolf_cull:
    title: "Wolf Cull"
    category: "side"
    giver: "ranger"
    objectives:
      - id: wolves
        type: "kill"
        target: "wolf"
        required: 2
    rewards:
      gold: 100
      experience: 300
    unlocks: ["den_mother"]
  den_mother:
    title: "Den Mother"
    category: "main"
    hidden: true
    requirements:
      - type: quest
        quest: wolf_cull
    objectives:
      - type: "kill"
        target: "alpha_wolf"
  elder_lore:
    title: "Elder Lore"
    category: "side"
    giver: "elder"
    turn_in: "ranger"
    location: "village"
    requirements:
      - type: level
        level: 10
    objectives:
      - type: "talk"
        target: "elder"
`

var serverTestNow = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

// wireMessage decodes any message the server sends
type wireMessage struct {
	Type     string          `json:"type"`
	ID       string          `json:"id"`
	Op       string          `json:"op"`
	OK       bool            `json:"ok"`
	Error    *ErrorBody      `json:"error"`
	Data     json.RawMessage `json:"data"`
	Message  string          `json:"message"`
	Severity notify.Severity `json:"severity"`
	Level    int             `json:"level"`
}

type testEnv struct {
	srv *Server
	ts  *httptest.Server
	db  *database.Database
	cfg *config.EngineConfig
}

func newTestEnv(t *testing.T, tweak func(*config.EngineConfig)) *testEnv {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Catalog.Watch = false
	cfg.Session.AutosaveMinutes = 0
	if tweak != nil {
		tweak(cfg)
	}

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	parsed, err := quest.ParseQuestsYAML([]byte(serverTestQuests))
	if err != nil {
		t.Fatalf("Failed to parse quests: %v", err)
	}
	catalog := quest.NewCatalog()
	catalog.LoadFromConfig(parsed)

	srv := NewServer(cfg, db, catalog, nil)
	srv.SetClock(func() time.Time { return serverTestNow })
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ts.Close()
		srv.Shutdown()
		db.Close()
	})
	return &testEnv{srv: srv, ts: ts, db: db, cfg: cfg}
}

func (e *testEnv) wsURL(playerID string) string {
	return "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws?player=" + playerID
}

// connect dials and consumes the session greeting
func (e *testEnv) connect(t *testing.T, playerID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL(playerID), nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	greeting := readMessage(t, conn)
	if greeting.Op != OpSession || !greeting.OK {
		t.Fatalf("Expected session greeting, got %+v", greeting)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wireMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	return msg
}

// send writes req and returns its response plus any pushes that arrived first
func send(t *testing.T, conn *websocket.Conn, req Request) (wireMessage, []wireMessage) {
	t.Helper()
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	var pushes []wireMessage
	for {
		msg := readMessage(t, conn)
		if msg.Type == TypeResponse {
			return msg, pushes
		}
		pushes = append(pushes, msg)
	}
}

func decode[T any](t *testing.T, msg wireMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		t.Fatalf("Failed to decode %s data: %v", msg.Op, err)
	}
	return v
}

func waitForSessions(t *testing.T, srv *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for srv.SessionCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d sessions, have %d", n, srv.SessionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_QuestLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.connect(t, "alice")

	resp, pushes := send(t, conn, Request{ID: "1", Op: OpStart, Quest: "wolf_cull"})
	if !resp.OK || resp.ID != "1" {
		t.Fatalf("Start failed: %+v", resp.Error)
	}
	if len(pushes) == 0 || pushes[0].Type != TypeNotification {
		t.Errorf("Expected a started notification, got %+v", pushes)
	}

	kill := &quest.EventEnvelope{Type: "kill", Target: "wolf", Amount: 2}
	resp, pushes = send(t, conn, Request{Op: OpEvent, Event: kill})
	if !resp.OK {
		t.Fatalf("Event failed: %+v", resp.Error)
	}
	result := decode[EventResult](t, resp)
	if len(result.Changed) != 1 || result.Changed[0] != "wolf_cull" {
		t.Errorf("Expected wolf_cull to change, got %v", result.Changed)
	}
	if len(pushes) == 0 {
		t.Error("Expected a ready-to-turn-in notification")
	}

	resp, pushes = send(t, conn, Request{Op: OpComplete, Quest: "wolf_cull"})
	if !resp.OK {
		t.Fatalf("Complete failed: %+v", resp.Error)
	}
	levelUps := 0
	for _, p := range pushes {
		if p.Type == TypeLevelUp {
			levelUps++
		}
	}
	if levelUps == 0 {
		t.Error("Expected a level up push after 300 XP")
	}

	resp, _ = send(t, conn, Request{Op: OpStatus})
	status := decode[StatusView](t, resp)
	if status.Gold != 100 || status.Experience != 300 || status.Level != 2 {
		t.Errorf("Expected 100 gold, 300 XP and level 2, got %+v", status)
	}
	if status.NextLevelXP != 219 {
		t.Errorf("Expected 219 XP to level 3, got %d", status.NextLevelXP)
	}
	if want := time.Date(2024, 3, 5, 4, 0, 0, 0, time.UTC); !status.NextDailyReset.Equal(want) {
		t.Errorf("Expected next daily reset %v, got %v", want, status.NextDailyReset)
	}

	// The hidden follow-up is now startable
	resp, _ = send(t, conn, Request{Op: OpStart, Quest: "den_mother"})
	if !resp.OK {
		t.Errorf("Expected den_mother to start after unlock, got %+v", resp.Error)
	}
}

func TestServer_RequirementsNotMet(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.connect(t, "bob")

	resp, _ := send(t, conn, Request{Op: OpStart, Quest: "elder_lore"})
	if resp.OK {
		t.Fatal("Expected start to fail below level 10")
	}
	if resp.Error.Code != apperrors.CodeRequirementsNotMet {
		t.Errorf("Expected REQUIREMENTS_NOT_MET, got %s", resp.Error.Code)
	}
	result := decode[requirements.Result](t, resp)
	if result.AllMet || len(result.Unmet()) != 1 {
		t.Errorf("Expected one unmet requirement, got %+v", result)
	}
}

func TestServer_ListFilters(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.connect(t, "carol")

	resp, _ := send(t, conn, Request{Op: OpList})
	all := decode[[]quest.Quest](t, resp)
	if len(all) != 2 {
		t.Errorf("Expected 2 visible quests (hidden excluded), got %d", len(all))
	}

	resp, _ = send(t, conn, Request{Op: OpList, Giver: "elder"})
	byGiver := decode[[]quest.Quest](t, resp)
	if len(byGiver) != 1 || byGiver[0].ID != "elder_lore" {
		t.Errorf("Expected only elder_lore, got %+v", byGiver)
	}

	resp, _ = send(t, conn, Request{Op: OpList, Status: string(quest.StatusActive)})
	if active := decode[[]quest.Quest](t, resp); len(active) != 0 {
		t.Errorf("Expected no active quests, got %d", len(active))
	}

	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{"turn-in npc", Request{Giver: "ranger"}, []string{"elder_lore", "wolf_cull"}},
		{"location", Request{Location: "village"}, []string{"elder_lore"}},
		{"category any case", Request{Category: "SIDE"}, []string{"elder_lore", "wolf_cull"}},
		{"hidden category", Request{Category: "main"}, []string{}},
		{"combined", Request{Category: "side", Giver: "ranger", Location: "village"}, []string{"elder_lore"}},
		{"nothing completable", Request{Completable: true}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Op = OpList
			resp, _ := send(t, conn, tt.req)
			got := []string{}
			for _, q := range decode[[]quest.Quest](t, resp) {
				got = append(got, q.ID)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestServer_RelevantAndCompletable(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.connect(t, "ken")

	relevant := func(entity string) bool {
		t.Helper()
		resp, _ := send(t, conn, Request{Op: OpRelevant, Entity: entity})
		if !resp.OK {
			t.Fatalf("relevant %s failed: %+v", entity, resp.Error)
		}
		return decode[RelevantResult](t, resp).Relevant
	}

	if relevant("wolf") {
		t.Error("Expected wolf to be irrelevant before wolf_cull starts")
	}
	send(t, conn, Request{Op: OpStart, Quest: "wolf_cull"})
	if !relevant("wolf") {
		t.Error("Expected wolf to be relevant while wolf_cull is active")
	}
	if relevant("alpha_wolf") {
		t.Error("Expected alpha_wolf to be irrelevant while den_mother is hidden")
	}

	for i := 0; i < 2; i++ {
		send(t, conn, Request{Op: OpEvent, Event: &quest.EventEnvelope{Type: "kill", Target: "wolf"}})
	}
	resp, _ := send(t, conn, Request{Op: OpList, Completable: true})
	completable := decode[[]quest.Quest](t, resp)
	if len(completable) != 1 || completable[0].ID != "wolf_cull" {
		t.Errorf("Expected wolf_cull to be completable, got %+v", completable)
	}

	resp, _ = send(t, conn, Request{Op: OpRelevant})
	if resp.OK || resp.Error == nil || resp.Error.Code != apperrors.CodeBadRequest {
		t.Errorf("Expected BAD_REQUEST for a relevant request without an entity, got %+v", resp)
	}
}

func TestServer_LogAndRead(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.connect(t, "dave")

	send(t, conn, Request{Op: OpStart, Quest: "wolf_cull"})

	resp, _ := send(t, conn, Request{Op: OpLog, Unread: true})
	entries := decode[[]quest.LogEntry](t, resp)
	if len(entries) == 0 {
		t.Fatal("Expected an unread log entry after starting a quest")
	}

	resp, _ = send(t, conn, Request{Op: OpRead, Entry: entries[0].ID})
	if !resp.OK {
		t.Fatalf("Read failed: %+v", resp.Error)
	}

	resp, _ = send(t, conn, Request{Op: OpRead, Entry: "missing"})
	if resp.OK || resp.Error.Code != apperrors.CodeNotFound {
		t.Errorf("Expected NOT_FOUND for unknown entry, got %+v", resp)
	}

	resp, _ = send(t, conn, Request{Op: OpRead})
	if got := decode[ReadResult](t, resp); got.Marked != len(entries)-1 {
		t.Errorf("Expected %d marked, got %d", len(entries)-1, got.Marked)
	}
}

func TestServer_InvalidRequestsLockOut(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.EngineConfig) {
		cfg.RateLimit.MaxInvalid = 3
	})
	conn := env.connect(t, "mallory")

	resp, _ := send(t, conn, Request{Op: "dance"})
	if resp.OK || resp.Error.Code != apperrors.CodeBadRequest {
		t.Fatalf("Expected BAD_REQUEST, got %+v", resp)
	}

	conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	resp = readMessage(t, conn)
	if resp.Error == nil || resp.Error.Code != apperrors.CodeBadRequest {
		t.Fatalf("Expected BAD_REQUEST for bad JSON, got %+v", resp)
	}

	// Third strike locks the address and ends the session
	conn.WriteJSON(Request{Op: OpEvent})
	resp = readMessage(t, conn)
	if resp.Error == nil || resp.Error.Code != apperrors.CodeInvalidEvent {
		t.Fatalf("Expected INVALID_EVENT, got %+v", resp)
	}
	waitForSessions(t, env.srv, 0)

	_, httpResp, err := websocket.DefaultDialer.Dial(env.wsURL("mallory"), nil)
	if err == nil {
		t.Fatal("Expected reconnect to be rejected while locked out")
	}
	if httpResp == nil || httpResp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %v", httpResp)
	}
}

func TestServer_DomainErrorsDoNotLockOut(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.EngineConfig) {
		cfg.RateLimit.MaxInvalid = 2
	})
	conn := env.connect(t, "erin")

	for i := 0; i < 5; i++ {
		resp, _ := send(t, conn, Request{Op: OpComplete, Quest: "wolf_cull"})
		if resp.OK || resp.Error.Code != apperrors.CodeIllegalTransition {
			t.Fatalf("Expected ILLEGAL_TRANSITION, got %+v", resp)
		}
	}
	if count := env.srv.requests.InvalidCount("127.0.0.1"); count != 0 {
		t.Errorf("Expected no invalid requests recorded, got %d", count)
	}
}

func TestServer_ThrottlesEventFloods(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.EngineConfig) {
		cfg.EventLimit = config.EventLimitConfig{Enabled: true, MaxEvents: 2, WindowSeconds: 60}
		cfg.RateLimit.MaxInvalid = 1
	})
	conn := env.connect(t, "gwen")
	send(t, conn, Request{Op: OpStart, Quest: "wolf_cull"})

	kill := &quest.EventEnvelope{Type: "kill", Target: "wolf"}
	for i := 0; i < 2; i++ {
		if resp, _ := send(t, conn, Request{Op: OpEvent, Event: kill}); !resp.OK {
			t.Fatalf("Event %d rejected: %+v", i+1, resp.Error)
		}
	}

	resp, _ := send(t, conn, Request{Op: OpEvent, Event: kill})
	if resp.OK || resp.Error.Code != apperrors.CodeRateLimited {
		t.Fatalf("Expected RATE_LIMITED, got %+v", resp)
	}
	if resp.Error.Metadata["wait_seconds"] == "" {
		t.Error("Expected wait_seconds metadata")
	}
	if count := env.srv.requests.InvalidCount("127.0.0.1"); count != 0 {
		t.Errorf("Throttled events should not count as invalid, got %d", count)
	}
}

func TestServer_RejectsDuplicatePlayer(t *testing.T) {
	env := newTestEnv(t, nil)
	env.connect(t, "frank")

	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL("FRANK"), nil)
	if err == nil {
		t.Fatal("Expected second connection for the same player to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409, got %v", resp)
	}
}

func TestServer_RejectsBadPlayerID(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, id := range []string{"", "has%20space", strings.Repeat("x", 33), "Admin"} {
		_, resp, err := websocket.DefaultDialer.Dial(env.wsURL(id), nil)
		if err == nil {
			t.Errorf("Expected player %q to be rejected", id)
			continue
		}
		if resp == nil || resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400 for %q, got %v", id, resp)
		}
	}
}

func TestServer_RejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, nil)

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL("grace"), header)
	if err == nil {
		t.Fatal("Expected foreign origin to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}

	// The player slot is released so a same-origin retry works
	env.connect(t, "grace")
}

func TestServer_PersistsAcrossReconnect(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.EngineConfig) {
		cfg.Session.LogKeep = 1
	})

	conn := env.connect(t, "heidi")
	send(t, conn, Request{Op: OpStart, Quest: "wolf_cull"})
	send(t, conn, Request{Op: OpAbandon, Quest: "wolf_cull"})
	send(t, conn, Request{Op: OpStart, Quest: "wolf_cull"})
	send(t, conn, Request{Op: OpEvent, Event: &quest.EventEnvelope{Type: "kill", Target: "wolf"}})
	send(t, conn, Request{Op: OpTrack, Quest: "wolf_cull"})
	conn.Close()
	waitForSessions(t, env.srv, 0)

	archived, err := env.db.CountArchivedEntries(context.Background(), "heidi")
	if err != nil {
		t.Fatalf("CountArchivedEntries failed: %v", err)
	}
	if archived == 0 {
		t.Error("Expected log entries beyond the keep count to be archived")
	}

	conn = env.connect(t, "heidi")
	resp, _ := send(t, conn, Request{Op: OpGet, Quest: "wolf_cull"})
	view := decode[QuestView](t, resp)
	if view.Quest.Status != quest.StatusActive {
		t.Errorf("Expected wolf_cull to still be active, got %s", view.Quest.Status)
	}
	if view.Quest.Objectives[0].Current != 1 {
		t.Errorf("Expected progress 1 to survive reconnect, got %d", view.Quest.Objectives[0].Current)
	}

	resp, _ = send(t, conn, Request{Op: OpStatus})
	if status := decode[StatusView](t, resp); status.Tracked != "wolf_cull" {
		t.Errorf("Expected wolf_cull tracked, got %q", status.Tracked)
	}
}

func TestServer_SaveKeepsEntriesWrittenDuringArchive(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.EngineConfig) {
		cfg.Session.LogKeep = 1
	})

	conn := env.connect(t, "judy")
	send(t, conn, Request{Op: OpStart, Quest: "wolf_cull"})
	send(t, conn, Request{Op: OpAbandon, Quest: "wolf_cull"})
	send(t, conn, Request{Op: OpStart, Quest: "wolf_cull"})

	sess, ok := env.srv.Session("judy")
	if !ok {
		t.Fatal("Expected a live session for judy")
	}
	before := len(sess.store.Log())

	// Another command lands after the archive write but before the trim
	env.srv.afterArchive = func(s *Session) {
		if err := s.engine.AbandonQuest(context.Background(), "wolf_cull"); err != nil {
			t.Errorf("AbandonQuest failed: %v", err)
		}
	}
	if err := env.srv.SaveSession(context.Background(), sess); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	env.srv.afterArchive = nil

	archived, err := env.db.CountArchivedEntries(context.Background(), "judy")
	if err != nil {
		t.Fatalf("CountArchivedEntries failed: %v", err)
	}
	if archived != before-1 {
		t.Errorf("Expected %d archived entries, got %d", before-1, archived)
	}

	live := sess.store.Log()
	if archived+len(live) != before+1 {
		t.Errorf("Expected %d entries between archive and live log, got %d+%d", before+1, archived, len(live))
	}
	if len(live) != 2 || live[0].Type != quest.LogStart || live[1].Type != quest.LogFail {
		t.Errorf("Expected the start and the late abandon to stay live, got %+v", live)
	}
}

func TestServer_SweepAndReset(t *testing.T) {
	env := newTestEnv(t, nil)
	env.connect(t, "ivan")
	waitForSessions(t, env.srv, 1)

	sess, ok := env.srv.Session("IVAN")
	if !ok {
		t.Fatal("Expected session lookup to ignore case")
	}

	// Neither should disturb a store with nothing due
	env.srv.sweepAll(serverTestNow)
	env.srv.resetAll(serverTestNow)
	if got := len(sess.store.IDs(quest.StatusAvailable)); got != 2 {
		t.Errorf("Expected 2 available quests, got %d", got)
	}
}

func TestServer_Healthz(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := http.Get(env.ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz request failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode healthz: %v", err)
	}
	if body["status"] != "ok" || body["quests"] != float64(3) {
		t.Errorf("Unexpected healthz body: %v", body)
	}
}

func TestServer_ShutdownIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	env.connect(t, "judy")
	waitForSessions(t, env.srv, 1)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.srv.Shutdown()
		}()
	}
	wg.Wait()

	exists, err := env.db.CharacterExists(context.Background(), "judy")
	if err != nil {
		t.Fatalf("CharacterExists failed: %v", err)
	}
	if !exists {
		t.Error("Expected shutdown to save the connected player")
	}
}
