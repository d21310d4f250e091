package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// captureConsole points console output at a buffer and restores the
// package state when the test ends
func captureConsole(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevConsole, prevLogger := console, logger
	console = &buf
	t.Cleanup(func() {
		Close()
		console = prevConsole
		logger = prevLogger
	})
	return &buf
}

func consoleConfig(level, format string) Config {
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.ConsoleFormat = format
	return cfg
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"debug":   slog.LevelDebug,
		" Info ":  slog.LevelInfo,
		"WARNING": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for input, want := range tests {
		if got := parseLogLevel(input); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig returned error for missing file: %v", err)
	}
	if config != DefaultConfig() {
		t.Errorf("LoadConfig(missing) = %+v, want defaults %+v", config, DefaultConfig())
	}
}

func TestLoadConfig_FromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logging.yaml")
	content := `logging:
  level: DEBUG
  console_enabled: false
  console_format: json
  file_enabled: true
  file_path: quests.log
  file_max_size_mb: 20
  file_compress: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	want := DefaultConfig()
	want.Level = "DEBUG"
	want.ConsoleEnabled = false
	want.ConsoleFormat = "json"
	want.FileEnabled = true
	want.FilePath = "quests.log"
	want.FileMaxSizeMB = 20
	want.FileCompress = true
	if config != want {
		t.Errorf("LoadConfig = %+v, want %+v", config, want)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("LOG_CONSOLE_FORMAT", "json")
	t.Setenv("LOG_FILE_ENABLED", "true")
	t.Setenv("LOG_FILE_PATH", "/var/log/questd.log")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if config.Level != "ERROR" || config.ConsoleFormat != "json" {
		t.Errorf("level/format = %q/%q, want ERROR/json", config.Level, config.ConsoleFormat)
	}
	if !config.FileEnabled || config.FilePath != "/var/log/questd.log" {
		t.Errorf("file = %v %q, want enabled at /var/log/questd.log", config.FileEnabled, config.FilePath)
	}
}

func TestLoadConfig_BadEnvBool(t *testing.T) {
	t.Setenv("LOG_FILE_ENABLED", "sometimes")
	if _, err := LoadConfig(""); err == nil {
		t.Error("expected error for unparseable LOG_FILE_ENABLED")
	}
}

func TestInitialize_TextConsole(t *testing.T) {
	buf := captureConsole(t)
	if err := Initialize(consoleConfig("INFO", "text")); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Info("quest started", "quest", "wolf_hunt")
	Debug("objective tick")

	output := buf.String()
	if !strings.Contains(output, "quest started") || !strings.Contains(output, "quest=wolf_hunt") {
		t.Errorf("info record missing or malformed: %s", output)
	}
	if strings.Contains(output, "objective tick") {
		t.Errorf("debug record written at INFO level: %s", output)
	}
}

func TestInitialize_JSONConsole(t *testing.T) {
	buf := captureConsole(t)
	if err := Initialize(consoleConfig("info", "JSON")); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Warning("reward skipped", "player", "alice", "gold", 40)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not one JSON record: %v\n%s", err, buf.String())
	}
	if record["msg"] != "reward skipped" || record["level"] != "WARN" {
		t.Errorf("record = %v", record)
	}
	if record["player"] != "alice" || record["gold"] != float64(40) {
		t.Errorf("attributes missing from %v", record)
	}
}

func TestInitialize_NoOutputsFallsBackToConsole(t *testing.T) {
	buf := captureConsole(t)
	cfg := DefaultConfig()
	cfg.ConsoleEnabled = false
	cfg.FileEnabled = false
	if err := Initialize(cfg); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Info("still visible")
	if !strings.Contains(buf.String(), "still visible") {
		t.Error("expected console fallback when no outputs are enabled")
	}
}

func TestInitialize_FileWithoutPath(t *testing.T) {
	captureConsole(t)
	cfg := DefaultConfig()
	cfg.FileEnabled = true
	cfg.FilePath = ""
	if err := Initialize(cfg); err == nil {
		t.Error("expected error for file logging without a path")
	}
}

func TestInitialize_FileAndConsole(t *testing.T) {
	buf := captureConsole(t)
	path := filepath.Join(t.TempDir(), "logs", "questd.log")

	cfg := consoleConfig("INFO", "text")
	cfg.FileEnabled = true
	cfg.FilePath = path
	cfg.FileFormat = "json"
	if err := Initialize(cfg); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	With("session", "s-1").Info("session opened", "player", "bob")
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !strings.Contains(buf.String(), "session=s-1") {
		t.Errorf("console missing With attribute: %s", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"session":"s-1"`) || !strings.Contains(string(data), `"player":"bob"`) {
		t.Errorf("file record missing attributes: %s", data)
	}

	// Close with no file open is a no-op
	if err := Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestAlwaysBypassesLevel(t *testing.T) {
	buf := captureConsole(t)
	if err := Initialize(consoleConfig("ERROR", "text")); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Info("filtered info")
	Warning("filtered warning")
	Error("kept error")
	Always("quest completed", "quest", "wolf_hunt")

	output := buf.String()
	for _, dropped := range []string{"filtered info", "filtered warning"} {
		if strings.Contains(output, dropped) {
			t.Errorf("%q written at ERROR level", dropped)
		}
	}
	if !strings.Contains(output, "kept error") {
		t.Error("error record missing")
	}
	if !strings.Contains(output, "level=ALWAYS") || !strings.Contains(output, "quest completed") {
		t.Errorf("always record missing or mislabeled: %s", output)
	}
}

func TestFormattedVariants(t *testing.T) {
	buf := captureConsole(t)
	if err := Initialize(consoleConfig("DEBUG", "text")); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Debugf("progress %d/%d", 2, 3)
	Infof("quest %s", "courier_run")
	Warningf("%.1f%% of window used", 90.0)
	Errorf("save failed: %v", "disk full")
	Alwaysf("%s earned %d xp", "alice", 120)

	for _, want := range []string{"progress 2/3", "quest courier_run", "90.0% of window used", "save failed: disk full", "alice earned 120 xp"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestFanout(t *testing.T) {
	var infoBuf, errBuf bytes.Buffer
	h := fanout{
		newHandler(&infoBuf, "text", slog.LevelInfo),
		newHandler(&errBuf, "text", slog.LevelError),
	}
	l := slog.New(h).With("component", "engine")

	l.Info("only info sink")
	l.Error("both sinks")

	if !strings.Contains(infoBuf.String(), "only info sink") || !strings.Contains(infoBuf.String(), "both sinks") {
		t.Errorf("info sink = %s", infoBuf.String())
	}
	if strings.Contains(errBuf.String(), "only info sink") {
		t.Error("error sink received an info record")
	}
	if !strings.Contains(errBuf.String(), "component=engine") {
		t.Errorf("error sink missing With attribute: %s", errBuf.String())
	}
}

func TestUninitialized(t *testing.T) {
	prev := logger
	logger = nil
	t.Cleanup(func() { logger = prev })

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("logging before Initialize panicked: %v", r)
		}
	}()
	Debug("debug")
	Info("info")
	Warning("warning")
	Error("error")
	Always("always")
	With("component", "test").Info("dropped")
}
