// Package text provides loading and lookup for player-facing message templates.
package text

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// TextData represents the structure of the text.yaml file.
type TextData struct {
	Quests QuestText `yaml:"quests"`
	Resets ResetText `yaml:"resets"`
	Errors ErrorText `yaml:"errors"`
}

// QuestText contains lifecycle notification templates. Each takes the quest title.
type QuestText struct {
	Started   string `yaml:"started"`
	Ready     string `yaml:"ready"`
	Completed string `yaml:"completed"`
	Abandoned string `yaml:"abandoned"`
	Failed    string `yaml:"failed"` // title, reason
	Expired   string `yaml:"expired"`
	Unlocked  string `yaml:"unlocked"`
}

// ResetText contains scheduled reset templates. Each takes a quest count.
type ResetText struct {
	Daily  string `yaml:"daily"`
	Weekly string `yaml:"weekly"`
}

// ErrorText contains templates for rejected actions.
type ErrorText struct {
	Locked        string `yaml:"locked"`         // title
	NotAllowed    string `yaml:"not_allowed"`    // action, title
	StoryAbandon  string `yaml:"story_abandon"`  // title
	RewardPartial string `yaml:"reward_partial"` // title
}

// Text provides text lookup functionality.
type Text struct {
	data *TextData
	mu   sync.RWMutex
}

// defaults is used for any template a file leaves empty.
var defaults = TextData{
	Quests: QuestText{
		Started:   "Quest started: %s",
		Ready:     "%s is ready to turn in",
		Completed: "Quest complete: %s",
		Abandoned: "Quest abandoned: %s",
		Failed:    "Quest failed: %s (%s)",
		Expired:   "Time is up for %s",
		Unlocked:  "New quest available: %s",
	},
	Resets: ResetText{
		Daily:  "Daily quests have been reset (%d)",
		Weekly: "Weekly quests have been reset (%d)",
	},
	Errors: ErrorText{
		Locked:        "You can't take %s yet",
		NotAllowed:    "You can't %s %s right now",
		StoryAbandon:  "%s is part of the story and can't be abandoned",
		RewardPartial: "Some rewards for %s could not be delivered",
	},
}

// Default returns the built-in templates.
func Default() *Text {
	data := defaults
	return &Text{data: &data}
}

// Load loads templates from a YAML file. Missing entries keep their defaults.
func Load(path string) (*Text, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	return Parse(data)
}

// Parse loads templates from raw YAML. Missing entries keep their defaults.
func Parse(data []byte) (*Text, error) {
	textData := defaults
	if err := yaml.Unmarshal(data, &textData); err != nil {
		return nil, fmt.Errorf("failed to parse text file: %w", err)
	}
	fillDefaults(&textData)
	return &Text{data: &textData}, nil
}

// fillDefaults restores entries a file explicitly blanked
func fillDefaults(d *TextData) {
	pick := func(v *string, fallback string) {
		if strings.TrimSpace(*v) == "" {
			*v = fallback
		}
	}
	pick(&d.Quests.Started, defaults.Quests.Started)
	pick(&d.Quests.Ready, defaults.Quests.Ready)
	pick(&d.Quests.Completed, defaults.Quests.Completed)
	pick(&d.Quests.Abandoned, defaults.Quests.Abandoned)
	pick(&d.Quests.Failed, defaults.Quests.Failed)
	pick(&d.Quests.Expired, defaults.Quests.Expired)
	pick(&d.Quests.Unlocked, defaults.Quests.Unlocked)
	pick(&d.Resets.Daily, defaults.Resets.Daily)
	pick(&d.Resets.Weekly, defaults.Resets.Weekly)
	pick(&d.Errors.Locked, defaults.Errors.Locked)
	pick(&d.Errors.NotAllowed, defaults.Errors.NotAllowed)
	pick(&d.Errors.StoryAbandon, defaults.Errors.StoryAbandon)
	pick(&d.Errors.RewardPartial, defaults.Errors.RewardPartial)
}

func (t *Text) format(template string, args ...any) string {
	return fmt.Sprintf(strings.TrimSpace(template), args...)
}

// QuestStarted returns the quest accepted message.
func (t *Text) QuestStarted(title string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.format(t.data.Quests.Started, title)
}

// QuestReady returns the all-objectives-done message.
func (t *Text) QuestReady(title string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.format(t.data.Quests.Ready, title)
}

// QuestCompleted returns the turn-in message.
func (t *Text) QuestCompleted(title string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.format(t.data.Quests.Completed, title)
}

// QuestAbandoned returns the abandon message.
func (t *Text) QuestAbandoned(title string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.format(t.data.Quests.Abandoned, title)
}

// QuestFailed returns the failure message.
func (t *Text) QuestFailed(title, reason string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.format(t.data.Quests.Failed, title, reason)
}

// QuestExpired returns the time-limit message.
func (t *Text) QuestExpired(title string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.format(t.data.Quests.Expired, title)
}

// QuestUnlocked returns the new-quest message.
func (t *Text) QuestUnlocked(title string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.format(t.data.Quests.Unlocked, title)
}

// DailyReset returns the daily reset message.
func (t *Text) DailyReset(count int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.format(t.data.Resets.Daily, count)
}

// WeeklyReset returns the weekly reset message.
func (t *Text) WeeklyReset(count int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.format(t.data.Resets.Weekly, count)
}

// Locked returns the requirements-not-met message.
func (t *Text) Locked(title string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.format(t.data.Errors.Locked, title)
}

// NotAllowed returns the illegal-transition message.
func (t *Text) NotAllowed(action, title string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.format(t.data.Errors.NotAllowed, action, title)
}

// StoryAbandon returns the message for trying to abandon a story quest.
func (t *Text) StoryAbandon(title string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.format(t.data.Errors.StoryAbandon, title)
}

// RewardPartial returns the partial reward delivery message.
func (t *Text) RewardPartial(title string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.format(t.data.Errors.RewardPartial, title)
}
