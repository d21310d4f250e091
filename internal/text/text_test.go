package text

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultText(t *testing.T) {
	txt := Default()

	tests := []struct {
		got      string
		expected string
	}{
		{txt.QuestStarted("Wolf Cull"), "Quest started: Wolf Cull"},
		{txt.QuestReady("Wolf Cull"), "Wolf Cull is ready to turn in"},
		{txt.QuestCompleted("Wolf Cull"), "Quest complete: Wolf Cull"},
		{txt.QuestAbandoned("Wolf Cull"), "Quest abandoned: Wolf Cull"},
		{txt.QuestFailed("Wolf Cull", "too slow"), "Quest failed: Wolf Cull (too slow)"},
		{txt.QuestExpired("Wolf Cull"), "Time is up for Wolf Cull"},
		{txt.QuestUnlocked("Den Mother"), "New quest available: Den Mother"},
		{txt.DailyReset(2), "Daily quests have been reset (2)"},
		{txt.WeeklyReset(1), "Weekly quests have been reset (1)"},
		{txt.Locked("Den Mother"), "You can't take Den Mother yet"},
		{txt.NotAllowed("complete", "Wolf Cull"), "You can't complete Wolf Cull right now"},
		{txt.StoryAbandon("Prologue"), "Prologue is part of the story and can't be abandoned"},
		{txt.RewardPartial("Wolf Cull"), "Some rewards for Wolf Cull could not be delivered"},
	}

	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("got %q, want %q", tt.got, tt.expected)
		}
	}
}

func TestLoadOverridesSomeTemplates(t *testing.T) {
	content := `
quests:
  started: |
    You accept "%s".
  completed: ""
resets:
  daily: "Dawn breaks. %d tasks renewed."
`
	tmpFile := filepath.Join(t.TempDir(), "text.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}

	txt, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Failed to load text: %v", err)
	}

	if got := txt.QuestStarted("Wolf Cull"); got != `You accept "Wolf Cull".` {
		t.Errorf("Override not applied: %q", got)
	}
	if got := txt.QuestCompleted("Wolf Cull"); got != "Quest complete: Wolf Cull" {
		t.Errorf("Blank entry should fall back to default: %q", got)
	}
	if got := txt.DailyReset(3); got != "Dawn breaks. 3 tasks renewed." {
		t.Errorf("Reset override not applied: %q", got)
	}
	if got := txt.QuestReady("Wolf Cull"); got != "Wolf Cull is ready to turn in" {
		t.Errorf("Untouched entry should keep default: %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/text.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestParseInvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("quests: [unclosed")); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}
