package quest

import (
	"context"
	"testing"
	"time"
)

func TestNewCatalog(t *testing.T) {
	c := NewCatalog()
	if c == nil {
		t.Fatal("NewCatalog returned nil")
	}
	if c.Count() != 0 {
		t.Errorf("New catalog should be empty, got %d", c.Count())
	}
	if len(c.Validate()) != 0 {
		t.Error("Empty catalog should validate")
	}
}

func TestCatalogLoadFromConfig(t *testing.T) {
	c := NewCatalog()
	c.LoadFromConfig(&QuestsConfig{
		Quests: map[string]QuestDefinition{
			"quest1": {Title: "Quest One", Giver: "npc1"},
			"quest2": {Title: "Quest Two", Giver: "npc1"},
			"quest3": {Title: "Quest Three", Giver: "npc2"},
		},
	})

	if c.Count() != 3 {
		t.Errorf("Should have 3 quests, got %d", c.Count())
	}

	npc1 := c.ForGiver("npc1")
	if len(npc1) != 2 || npc1[0].ID != "quest1" || npc1[1].ID != "quest2" {
		t.Errorf("npc1 should give quest1 and quest2 in order, got %d quests", len(npc1))
	}
	if len(c.ForGiver("npc2")) != 1 {
		t.Error("npc2 should give 1 quest")
	}
	if len(c.ForGiver("nobody")) != 0 {
		t.Error("Unknown NPC should give nothing")
	}
}

func TestCatalogGetReturnsCopy(t *testing.T) {
	c := NewCatalog()
	c.LoadFromConfig(&QuestsConfig{
		Quests: map[string]QuestDefinition{
			"q": {Title: "Q", Objectives: []ObjectiveYAML{{Type: "kill", Target: "rat", Required: 2}}},
		},
	})

	first, ok := c.Get("q")
	if !ok {
		t.Fatal("Quest should exist")
	}
	first.Objectives[0].Current = 2
	first.Status = StatusActive

	second, _ := c.Get("q")
	if second.Objectives[0].Current != 0 || second.Status != StatusAvailable {
		t.Error("Catalog should hand out independent copies")
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("Missing quest should not be found")
	}
}

func TestCatalogLoadReplaces(t *testing.T) {
	c := NewCatalog()
	c.LoadFromConfig(&QuestsConfig{Quests: map[string]QuestDefinition{"old": {Title: "Old", Giver: "npc"}}})
	c.LoadFromConfig(&QuestsConfig{Quests: map[string]QuestDefinition{"new": {Title: "New"}}})

	if _, ok := c.Get("old"); ok {
		t.Error("Reload should drop old quests")
	}
	if len(c.ForGiver("npc")) != 0 {
		t.Error("Reload should rebuild the giver index")
	}
	all := c.All()
	if len(all) != 1 || all[0].ID != "new" {
		t.Errorf("All should return only the new quest")
	}
}

func TestCatalogWatchReloads(t *testing.T) {
	dir := t.TempDir()
	writeQuestFile(t, dir, "quests.yaml", "quests:\n  one:\n    title: One\n")

	c := NewCatalog()
	if err := c.LoadFromDirectory(dir); err != nil {
		t.Fatalf("LoadFromDirectory returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan int, 4)
	if err := c.Watch(ctx, dir, func(c *Catalog) { reloaded <- c.Count() }); err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}

	writeQuestFile(t, dir, "more.yaml", "quests:\n  two:\n    title: Two\n")

	select {
	case count := <-reloaded:
		if count != 2 {
			t.Errorf("Reloaded catalog should have 2 quests, got %d", count)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Catalog was not reloaded")
	}
}
