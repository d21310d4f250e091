package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/questengine/internal/antispam"
	"github.com/lawnchairsociety/questengine/internal/database"
	"github.com/lawnchairsociety/questengine/internal/gametime"
	"github.com/lawnchairsociety/questengine/internal/namefilter"
	"github.com/lawnchairsociety/questengine/internal/notify"
)

// EngineConfig holds server-wide configuration settings.
type EngineConfig struct {
	WebSocket     WebSocketConfig     `yaml:"websocket" envPrefix:"WEBSOCKET_"`
	Connections   ConnectionsConfig   `yaml:"connections" envPrefix:"CONNECTIONS_"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	EventLimit    EventLimitConfig    `yaml:"event_limit" envPrefix:"EVENT_LIMIT_"`
	Session       SessionConfig       `yaml:"session" envPrefix:"SESSION_"`
	PlayerIDs     namefilter.Config   `yaml:"player_ids" envPrefix:"PLAYER_IDS_"`
	Database      database.Config     `yaml:"database" envPrefix:"DATABASE_"`
	Catalog       CatalogConfig       `yaml:"catalog" envPrefix:"CATALOG_"`
	Resets        ResetsConfig        `yaml:"resets" envPrefix:"RESETS_"`
	Notifications NotificationsConfig `yaml:"notifications" envPrefix:"NOTIFICATIONS_"`
	Telemetry     TelemetryConfig     `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// envPrefix scopes every environment override.
const envPrefix = "QUESTENGINE_"

// ConnectionsConfig holds connection limit settings.
type ConnectionsConfig struct {
	// MaxPerIP is the maximum concurrent connections allowed from a single IP address.
	// 0 means unlimited (not recommended).
	MaxPerIP int `yaml:"max_per_ip" env:"MAX_PER_IP"`

	// MaxTotal is the maximum total concurrent connections to the server.
	// 0 means unlimited.
	MaxTotal int `yaml:"max_total" env:"MAX_TOTAL"`

	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Enable only behind a reverse proxy that sets them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" env:"TRUST_PROXY_HEADERS"`
}

// RateLimitConfig holds lockout settings for clients sending invalid requests.
type RateLimitConfig struct {
	// MaxInvalid is the number of invalid requests before lockout.
	MaxInvalid int `yaml:"max_invalid" env:"MAX_INVALID"`

	// LockoutSeconds is the initial lockout duration in seconds.
	LockoutSeconds int `yaml:"lockout_seconds" env:"LOCKOUT_SECONDS"`

	// MaxLockoutSeconds is the maximum lockout duration (for exponential backoff).
	MaxLockoutSeconds int `yaml:"max_lockout_seconds" env:"MAX_LOCKOUT_SECONDS"`
}

// EventLimitConfig throttles how fast one session may report game events.
type EventLimitConfig struct {
	Enabled       bool `yaml:"enabled" env:"ENABLED"`
	MaxEvents     int  `yaml:"max_events" env:"MAX_EVENTS"`
	WindowSeconds int  `yaml:"window_seconds" env:"WINDOW_SECONDS"`
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// Address is the host:port the HTTP server listens on.
	Address string `yaml:"address" env:"ADDRESS"`

	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins (not recommended for production).
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`

	// MaxMessageSize is the maximum WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size" env:"MAX_MESSAGE_SIZE"`
}

// SessionConfig controls per-player session behaviour.
type SessionConfig struct {
	// AutosaveMinutes is how often live sessions are persisted. 0 disables autosave.
	AutosaveMinutes int `yaml:"autosave_minutes" env:"AUTOSAVE_MINUTES"`

	// LogKeep is how many quest log entries stay in live state; older
	// entries are archived to the database. 0 keeps everything.
	LogKeep int `yaml:"log_keep" env:"LOG_KEEP"`
}

// CatalogConfig locates quest definitions.
type CatalogConfig struct {
	// Directory holds quest YAML files.
	Directory string `yaml:"directory" env:"DIRECTORY"`

	// Watch reloads the catalog when files in Directory change.
	Watch bool `yaml:"watch" env:"WATCH"`

	// TextPath is an optional notification text YAML file.
	TextPath string `yaml:"text_path" env:"TEXT_PATH"`
}

// ResetsConfig holds periodic reset and expiry sweep settings.
type ResetsConfig struct {
	// DailyHourUTC is the hour (0-23) daily quests reset.
	DailyHourUTC int `yaml:"daily_hour_utc" env:"DAILY_HOUR_UTC"`

	// WeeklyDay is the weekday weekly quests reset, e.g. "monday".
	WeeklyDay string `yaml:"weekly_day" env:"WEEKLY_DAY"`

	// SweepSeconds is the scheduler tick for expiry sweeps and reset checks.
	SweepSeconds int `yaml:"sweep_seconds" env:"SWEEP_SECONDS"`
}

// NotificationsConfig holds default display durations per severity.
type NotificationsConfig struct {
	InfoMS    int `yaml:"info_ms" env:"INFO_MS"`
	SuccessMS int `yaml:"success_ms" env:"SUCCESS_MS"`
	WarningMS int `yaml:"warning_ms" env:"WARNING_MS"`
	ErrorMS   int `yaml:"error_ms" env:"ERROR_MS"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// DefaultConfig returns an EngineConfig with secure defaults.
func DefaultConfig() *EngineConfig {
	return &EngineConfig{
		WebSocket: WebSocketConfig{
			Address:        ":8080",
			AllowedOrigins: []string{}, // Same-origin only by default
			MaxMessageSize: 4096,
		},
		Connections: ConnectionsConfig{
			MaxPerIP: 3,   // Default: 3 connections per IP
			MaxTotal: 100, // Default: 100 total connections
		},
		RateLimit: RateLimitConfig{
			MaxInvalid:        10,  // Default: 10 invalid requests before lockout
			LockoutSeconds:    30,  // Default: 30 second initial lockout
			MaxLockoutSeconds: 300, // Default: 5 minute max lockout
		},
		EventLimit: EventLimitConfig{
			Enabled:       true,
			MaxEvents:     30,
			WindowSeconds: 10,
		},
		Session: SessionConfig{
			AutosaveMinutes: 5,
			LogKeep:         200,
		},
		PlayerIDs: namefilter.DefaultConfig(),
		Database:  database.DefaultConfig("data/questengine.db"),
		Catalog: CatalogConfig{
			Directory: "data/quests",
			Watch:     true,
		},
		Resets: ResetsConfig{
			DailyHourUTC: 4,
			WeeklyDay:    "monday",
			SweepSeconds: 30,
		},
		Notifications: NotificationsConfig{
			InfoMS:    3000,
			SuccessMS: 4000,
			WarningMS: 5000,
			ErrorMS:   8000,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "questd",
		},
	}
}

// LoadConfig loads engine configuration from a YAML file, then applies
// QUESTENGINE_* environment overrides.
// If the file doesn't exist, the defaults are used.
func LoadConfig(path string) (*EngineConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return DefaultConfig(), fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// Use defaults if file doesn't exist
	default:
		return config, fmt.Errorf("failed to read config: %w", err)
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: envPrefix}); err != nil {
		return config, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Validate reports settings that can't work.
func (c *EngineConfig) Validate() error {
	var problems []string
	if c.Resets.DailyHourUTC < 0 || c.Resets.DailyHourUTC > 23 {
		problems = append(problems, fmt.Sprintf("resets.daily_hour_utc %d out of range", c.Resets.DailyHourUTC))
	}
	if _, ok := parseWeekday(c.Resets.WeeklyDay); !ok {
		problems = append(problems, fmt.Sprintf("resets.weekly_day %q is not a weekday", c.Resets.WeeklyDay))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q must be sqlite or postgres", c.Database.Driver))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Schedule returns the reset schedule.
func (c *ResetsConfig) Schedule() gametime.Schedule {
	day, ok := parseWeekday(c.WeeklyDay)
	if !ok {
		day = time.Monday
	}
	return gametime.Schedule{DailyHour: c.DailyHourUTC, WeeklyDay: day}
}

// SweepInterval returns the scheduler tick.
func (c *ResetsConfig) SweepInterval() time.Duration {
	if c.SweepSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.SweepSeconds) * time.Second
}

// AutosaveInterval returns the autosave period, or 0 when disabled.
func (c *SessionConfig) AutosaveInterval() time.Duration {
	return time.Duration(c.AutosaveMinutes) * time.Minute
}

// Throttle converts the settings to an antispam config.
func (c *EventLimitConfig) Throttle() antispam.Config {
	return antispam.ConfigFromYAML(c.Enabled, c.MaxEvents, c.WindowSeconds)
}

// Durations converts the configured milliseconds to notify durations.
func (c *NotificationsConfig) Durations() notify.Durations {
	defaults := notify.DefaultDurations()
	pick := func(ms int, fallback time.Duration) time.Duration {
		if ms <= 0 {
			return fallback
		}
		return time.Duration(ms) * time.Millisecond
	}
	return notify.Durations{
		notify.SeverityInfo:    pick(c.InfoMS, defaults[notify.SeverityInfo]),
		notify.SeveritySuccess: pick(c.SuccessMS, defaults[notify.SeveritySuccess]),
		notify.SeverityWarning: pick(c.WarningMS, defaults[notify.SeverityWarning]),
		notify.SeverityError:   pick(c.ErrorMS, defaults[notify.SeverityError]),
	}
}

func parseWeekday(s string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, true
		}
	}
	return time.Sunday, false
}

// IsOriginAllowed reports whether a websocket upgrade from origin may
// proceed. An empty allow list means same-origin only; "*" allows anything.
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return sameOrigin(origin, requestHost)
	}
	return slices.Contains(c.AllowedOrigins, "*") || slices.Contains(c.AllowedOrigins, origin)
}

// sameOrigin compares the origin's host:port with the request host.
// Non-browser clients send no Origin header and are allowed.
func sameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, requestHost)
}
