// Package server exposes quest engines over a websocket. Each connection
// is one player's session; requests and responses are JSON.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/questengine/internal/antispam"
	"github.com/lawnchairsociety/questengine/internal/config"
	"github.com/lawnchairsociety/questengine/internal/database"
	"github.com/lawnchairsociety/questengine/internal/engine"
	"github.com/lawnchairsociety/questengine/internal/gametime"
	"github.com/lawnchairsociety/questengine/internal/logger"
	"github.com/lawnchairsociety/questengine/internal/namefilter"
	"github.com/lawnchairsociety/questengine/internal/notify"
	"github.com/lawnchairsociety/questengine/internal/quest"
	"github.com/lawnchairsociety/questengine/internal/text"
)

const shutdownTimeout = 10 * time.Second

// Server owns the live sessions and the maintenance loops that act on them
type Server struct {
	cfg      *config.EngineConfig
	db       *database.Database
	catalog  *quest.Catalog
	text     *text.Text
	schedule gametime.Schedule
	now      func() time.Time
	log      *slog.Logger

	names       *namefilter.NameFilter
	connLimiter *ConnLimiter
	requests    *RequestLimiter
	scheduler   *gametime.Scheduler
	httpServer  *http.Server

	// afterArchive runs between archiving and trimming a session's log
	afterArchive func(*Session)

	mu       sync.RWMutex
	sessions map[string]*Session // lower-cased player ID -> session

	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shutdown     chan struct{}
	shutdownOnce sync.Once
	startOnce    sync.Once
}

// NewServer creates a server. db may be nil, in which case nothing is persisted.
func NewServer(cfg *config.EngineConfig, db *database.Database, catalog *quest.Catalog, txt *text.Text) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if catalog == nil {
		catalog = quest.NewCatalog()
	}
	if txt == nil {
		txt = text.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:         cfg,
		db:          db,
		catalog:     catalog,
		text:        txt,
		schedule:    cfg.Resets.Schedule(),
		now:         time.Now,
		log:         logger.With("component", "server"),
		names:       namefilter.New(&cfg.PlayerIDs),
		connLimiter: NewConnLimiter(cfg.Connections),
		requests:    NewRequestLimiter(cfg.RateLimit),
		sessions:    make(map[string]*Session),
		ctx:         ctx,
		cancel:      cancel,
		shutdown:    make(chan struct{}),
	}
}

// SetClock replaces the wall clock for new sessions and the scheduler
func (s *Server) SetClock(now func() time.Time) {
	s.now = now
}

// Catalog returns the quest catalog sessions are synced from
func (s *Server) Catalog() *quest.Catalog {
	return s.catalog
}

// Handler returns the HTTP routes: /ws for sessions, /healthz for probes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocketUpgrade)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start runs the maintenance loops and serves HTTP until Shutdown
func (s *Server) Start() error {
	if err := s.StartBackground(); err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.WebSocket.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("WebSocket server listening", "address", s.cfg.WebSocket.Address)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// StartBackground starts the reset scheduler, autosave and catalog
// watcher without serving HTTP. Calling it again does nothing.
func (s *Server) StartBackground() error {
	var err error
	s.startOnce.Do(func() {
		s.scheduler = gametime.NewScheduler(s.schedule, s.cfg.Resets.SweepInterval(), gametime.Handlers{
			Sweep: s.sweepAll,
			Reset: s.resetAll,
		}, s.now)
		s.scheduler.Start()
		s.log.Info("Reset scheduler started",
			"next_reset", s.scheduler.NextReset(),
			"sweep_interval", s.cfg.Resets.SweepInterval())

		go s.startAutoSaveTicker()

		if s.cfg.Catalog.Watch && s.cfg.Catalog.Directory != "" {
			err = s.catalog.Watch(s.ctx, s.cfg.Catalog.Directory, func(*quest.Catalog) {
				s.syncAll()
			})
		}
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"sessions":    s.SessionCount(),
		"quests":      s.catalog.Count(),
		"connections": s.connLimiter.Stats(),
	})
}

// handleWebSocketUpgrade checks limits and upgrades an HTTP connection to WebSocket.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.isShuttingDown() {
		http.Error(w, "Server is shutting down.", http.StatusServiceUnavailable)
		return
	}

	// Get the real client IP (supports X-Forwarded-For from reverse proxies)
	clientIP := requestIP(r, s.cfg.Connections.TrustProxyHeaders)

	playerID := strings.TrimSpace(r.URL.Query().Get("player"))
	if check := s.names.Check(playerID); !check.Allowed {
		http.Error(w, check.Reason, http.StatusBadRequest)
		return
	}

	if locked, remaining := s.requests.IsLocked(clientIP); locked {
		s.log.Warn("WebSocket connection rejected - client locked out",
			"client_ip", clientIP,
			"remaining", remaining)
		http.Error(w, "Too many invalid requests. Please try again later.", http.StatusTooManyRequests)
		return
	}

	slot, err := s.connLimiter.Admit(clientIP, playerID)
	if err != nil {
		s.log.Warn("WebSocket connection rejected",
			"reason", err,
			"player", playerID,
			"client_ip", clientIP)
		msg := "Too many connections. Please try again later."
		if errors.Is(err, errPlayerTaken) {
			msg = "That player is already connected."
		}
		http.Error(w, msg, admitStatus(err))
		return
	}

	// Create upgrader with origin check based on server config
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.WebSocket.IsOriginAllowed(origin, r.Host)
			if !allowed {
				s.log.Warn("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("WebSocket upgrade failed", "error", err)
		slot.Release()
		return
	}

	s.wg.Add(1)
	go s.handleWebSocketConnection(wsConn, slot, clientIP, playerID)
}

// handleWebSocketConnection handles a WebSocket client connection.
func (s *Server) handleWebSocketConnection(wsConn *websocket.Conn, slot *ConnSlot, clientIP, playerID string) {
	defer func() {
		slot.Release()
		wsConn.Close()
		s.wg.Done()
	}()

	if limit := s.cfg.WebSocket.MaxMessageSize; limit > 0 {
		wsConn.SetReadLimit(limit)
	}

	s.handleClient(NewWebSocketClient(wsConn), slot, clientIP, playerID)
}

// handleClient opens the player's session and serves it until disconnect
func (s *Server) handleClient(client Client, slot *ConnSlot, clientIP, playerID string) {
	s.log.Info("Client connected", "remote_addr", client.RemoteAddr(), "player", playerID)

	sess, err := s.openSession(s.ctx, client, clientIP, playerID)
	if err != nil {
		s.log.Error("Failed to open session", "player", playerID, "error", err)
		client.WriteJSON(errorResponse(Request{Op: OpSession}, err, nil))
		slot.ReleasePlayer()
		return
	}

	key := strings.ToLower(playerID)
	s.mu.Lock()
	s.sessions[key] = sess
	s.mu.Unlock()

	// The player slot is freed only once the save is done, so a quick
	// reconnect can't load stale state
	defer func() {
		if err := s.SaveSession(context.Background(), sess); err != nil {
			s.log.Error("Failed to save player on disconnect", "player", playerID, "error", err)
		}
		slot.ReleasePlayer()

		s.mu.Lock()
		delete(s.sessions, key)
		s.mu.Unlock()

		s.log.Info("Client disconnected", "player", playerID)
	}()

	// Shutdown may have taken its snapshot of sessions before this one registered
	if s.isShuttingDown() {
		return
	}

	if err := client.WriteJSON(okResponse(Request{Op: OpSession}, sess.status())); err != nil {
		return
	}
	sess.run(s.ctx)
}

// openSession loads the player and brings their quests up to date with the
// catalog, missed resets and lapsed time limits.
func (s *Server) openSession(ctx context.Context, client Client, clientIP, playerID string) (*Session, error) {
	st, character, err := s.loadPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		playerID:  playerID,
		ip:        clientIP,
		client:    client,
		store:     st,
		character: character,
		server:    s,
		log:       s.log.With("player", playerID),
		throttle:  antispam.NewTracker(s.cfg.EventLimit.Throttle(), s.now),
	}

	sink := notify.WithDurations(notify.Func(sess.push), s.cfg.Notifications.Durations())
	schedule := s.schedule
	sess.engine = engine.New(st, engine.Collaborators{
		Player:    character,
		Inventory: character,
		Skills:    character,
		Factions:  character,
		Notifier:  sink,
	}, engine.Options{
		Catalog:  s.catalog,
		Text:     s.text,
		Clock:    s.now,
		Schedule: &schedule,
		Logger:   logger.With("component", "engine", "player", playerID),
	})

	added := sess.engine.SyncCatalog()
	daily, weekly := sess.engine.RunResets(ctx, s.now())
	expired := sess.engine.ExpireOverdue(ctx)
	sess.log.Debug("Session opened",
		"added", len(added),
		"daily_reset", len(daily),
		"weekly_reset", len(weekly),
		"expired", len(expired))

	return sess, nil
}

// Sessions returns a snapshot of the connected sessions
func (s *Server) Sessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// Session returns the connected session for a player
func (s *Server) Session(playerID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[strings.ToLower(playerID)]
	return sess, ok
}

// SessionCount returns how many players are connected
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// sweepAll expires overdue quests in every session
func (s *Server) sweepAll(now time.Time) {
	for _, sess := range s.Sessions() {
		if expired := sess.engine.ExpireOverdue(s.ctx); len(expired) > 0 {
			sess.log.Debug("Expired quests", "quests", expired)
		}
	}
}

// resetAll runs periodic resets in every session as of boundary
func (s *Server) resetAll(boundary time.Time) {
	sessions := s.Sessions()
	for _, sess := range sessions {
		sess.engine.RunResets(s.ctx, boundary)
	}
	s.log.Info("Periodic resets ran", "boundary", boundary, "sessions", len(sessions))
}

// syncAll registers newly loaded catalog quests in every session
func (s *Server) syncAll() {
	for _, sess := range s.Sessions() {
		if added := sess.engine.SyncCatalog(); len(added) > 0 {
			sess.log.Info("New quests available after catalog reload", "quests", added)
		}
	}
}

// startAutoSaveTicker runs a background ticker that periodically saves all sessions
func (s *Server) startAutoSaveTicker() {
	interval := s.cfg.Session.AutosaveInterval()
	if interval <= 0 || s.db == nil {
		s.log.Info("Auto-save disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("Auto-save enabled", "interval", interval)

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.autoSaveAll()
		}
	}
}

func (s *Server) isShuttingDown() bool {
	select {
	case <-s.shutdown:
		return true
	default:
		return false
	}
}

// Shutdown stops the maintenance loops, saves every session and closes
// all connections. Safe to call more than once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		if s.scheduler != nil {
			s.scheduler.Stop()
		}
		s.requests.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.log.Warn("HTTP shutdown did not finish cleanly", "error", err)
			}
		}

		// Save all connected players before shutdown
		for _, sess := range s.Sessions() {
			if err := s.SaveSession(ctx, sess); err != nil {
				s.log.Error("Failed to save player on shutdown",
					"player", sess.playerID,
					"error", err)
			} else {
				s.log.Info("Saved player on shutdown",
					"player", sess.playerID)
			}
			sess.Close()
		}

		s.cancel()
		s.wg.Wait()

		s.log.Info("Server shutdown complete, all players saved")
	})
}
