package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lawnchairsociety/questengine/internal/notify"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if len(cfg.WebSocket.AllowedOrigins) != 0 {
		t.Errorf("expected empty allowed origins by default, got %v", cfg.WebSocket.AllowedOrigins)
	}

	if cfg.WebSocket.MaxMessageSize != 4096 {
		t.Errorf("expected max message size 4096, got %d", cfg.WebSocket.MaxMessageSize)
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected sqlite driver by default, got %q", cfg.Database.Driver)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadConfig_FileNotExists(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults, got %v", err)
	}
	if cfg.WebSocket.Address != DefaultConfig().WebSocket.Address {
		t.Errorf("Address = %q, want default", cfg.WebSocket.Address)
	}
}

func TestLoadConfig_ValidFile(t *testing.T) {
	// Create temp config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
websocket:
  allowed_origins:
    - "https://example.com"
    - "http://localhost:3000"
  max_message_size: 8192
resets:
  daily_hour_utc: 6
  weekly_day: friday
database:
  driver: postgres
  postgres:
    host: db.internal
    dbname: quests
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.WebSocket.AllowedOrigins) != 2 {
		t.Errorf("expected 2 allowed origins, got %d", len(cfg.WebSocket.AllowedOrigins))
	}

	if cfg.WebSocket.AllowedOrigins[0] != "https://example.com" {
		t.Errorf("expected first origin 'https://example.com', got %s", cfg.WebSocket.AllowedOrigins[0])
	}

	if cfg.WebSocket.MaxMessageSize != 8192 {
		t.Errorf("expected max message size 8192, got %d", cfg.WebSocket.MaxMessageSize)
	}

	schedule := cfg.Resets.Schedule()
	if schedule.DailyHour != 6 || schedule.WeeklyDay != time.Friday {
		t.Errorf("unexpected schedule %+v", schedule)
	}

	if cfg.Database.Driver != "postgres" || cfg.Database.Postgres.Host != "db.internal" {
		t.Errorf("unexpected database config %+v", cfg.Database)
	}
	// Unset keys keep their defaults
	if cfg.Database.Postgres.Port != 5432 {
		t.Errorf("expected default port 5432, got %d", cfg.Database.Postgres.Port)
	}
	if cfg.Connections.MaxPerIP != 3 {
		t.Errorf("expected default max per IP 3, got %d", cfg.Connections.MaxPerIP)
	}
}

func TestIsOriginAllowed(t *testing.T) {
	const host = "localhost:4000"
	listed := []string{"https://example.com", "http://localhost:3000"}

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"same origin without header", nil, "", true},
		{"same origin http", nil, "http://localhost:4000", true},
		{"same origin https", nil, "https://localhost:4000", true},
		{"same origin trailing slash", nil, "http://localhost:4000/", true},
		{"same origin ws scheme", nil, "ws://localhost:4000", true},
		{"cross origin rejected", nil, "http://evil.com", false},
		{"other port rejected", nil, "http://localhost:3000", false},
		{"wildcard", []string{"*"}, "http://anything.com", true},
		{"wildcard empty origin", []string{"*"}, "", true},
		{"listed", listed, "https://example.com", true},
		{"listed second", listed, "http://localhost:3000", true},
		{"unlisted", listed, "http://evil.com", false},
		{"listed host other port", listed, "https://example.com:8080", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := WebSocketConfig{AllowedOrigins: tt.allowed}
			if got := cfg.IsOriginAllowed(tt.origin, host); got != tt.want {
				t.Errorf("IsOriginAllowed(%q) with %v = %v, want %v", tt.origin, tt.allowed, got, tt.want)
			}
		})
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("websocket: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(configPath)
	if err == nil {
		t.Error("expected parse error")
	}
	if cfg == nil || cfg.WebSocket.MaxMessageSize != 4096 {
		t.Error("expected defaults alongside the parse error")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("QUESTENGINE_WEBSOCKET_ADDRESS", ":9999")
	t.Setenv("QUESTENGINE_CONNECTIONS_MAX_PER_IP", "7")
	t.Setenv("QUESTENGINE_DATABASE_SQLITE_PATH", "/tmp/quests.db")
	t.Setenv("QUESTENGINE_DATABASE_POSTGRES_PORT", "6543")
	t.Setenv("QUESTENGINE_RESETS_WEEKLY_DAY", "sunday")
	t.Setenv("QUESTENGINE_CATALOG_WATCH", "false")
	t.Setenv("QUESTENGINE_EVENT_LIMIT_MAX_EVENTS", "5")
	t.Setenv("QUESTENGINE_PLAYER_IDS_RESERVED", "gm,root")

	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.WebSocket.Address != ":9999" {
		t.Errorf("Address = %q", cfg.WebSocket.Address)
	}
	if cfg.Connections.MaxPerIP != 7 {
		t.Errorf("MaxPerIP = %d", cfg.Connections.MaxPerIP)
	}
	if cfg.Database.SQLitePath != "/tmp/quests.db" {
		t.Errorf("SQLitePath = %q", cfg.Database.SQLitePath)
	}
	if cfg.Database.Postgres.Port != 6543 {
		t.Errorf("Postgres.Port = %d", cfg.Database.Postgres.Port)
	}
	if cfg.Resets.Schedule().WeeklyDay != time.Sunday {
		t.Errorf("WeeklyDay = %v", cfg.Resets.Schedule().WeeklyDay)
	}
	if cfg.Catalog.Watch {
		t.Error("expected catalog watch disabled by env")
	}
	if cfg.EventLimit.MaxEvents != 5 {
		t.Errorf("EventLimit.MaxEvents = %d", cfg.EventLimit.MaxEvents)
	}
	if len(cfg.PlayerIDs.Reserved) != 2 || cfg.PlayerIDs.Reserved[1] != "root" {
		t.Errorf("PlayerIDs.Reserved = %v", cfg.PlayerIDs.Reserved)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*EngineConfig)
		want   string
	}{
		{"bad hour", func(c *EngineConfig) { c.Resets.DailyHourUTC = 24 }, "daily_hour_utc"},
		{"bad weekday", func(c *EngineConfig) { c.Resets.WeeklyDay = "someday" }, "weekly_day"},
		{"bad driver", func(c *EngineConfig) { c.Database.Driver = "mysql" }, "database.driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestIntervals(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.Resets.SweepInterval(); got != 30*time.Second {
		t.Errorf("SweepInterval() = %v", got)
	}
	cfg.Resets.SweepSeconds = 0
	if got := cfg.Resets.SweepInterval(); got != 30*time.Second {
		t.Errorf("SweepInterval() with 0 = %v, want fallback", got)
	}

	if got := cfg.Session.AutosaveInterval(); got != 5*time.Minute {
		t.Errorf("AutosaveInterval() = %v", got)
	}
	cfg.Session.AutosaveMinutes = 0
	if got := cfg.Session.AutosaveInterval(); got != 0 {
		t.Errorf("AutosaveInterval() disabled = %v", got)
	}
}

func TestNotificationDurations(t *testing.T) {
	cfg := NotificationsConfig{InfoMS: 1500}
	d := cfg.Durations()

	if d[notify.SeverityInfo] != 1500*time.Millisecond {
		t.Errorf("info = %v", d[notify.SeverityInfo])
	}
	if d[notify.SeverityError] != notify.DefaultDurations()[notify.SeverityError] {
		t.Errorf("error = %v, want default", d[notify.SeverityError])
	}
}

func TestEventThrottle(t *testing.T) {
	cfg := EventLimitConfig{Enabled: true, MaxEvents: 4}
	throttle := cfg.Throttle()

	if !throttle.Enabled || throttle.MaxEvents != 4 {
		t.Errorf("unexpected throttle %+v", throttle)
	}
	if throttle.TimeWindow != 10*time.Second {
		t.Errorf("TimeWindow = %v, want default", throttle.TimeWindow)
	}
}
