package player

import (
	"testing"
)

func TestNewCharacter(t *testing.T) {
	c := NewCharacter("alice")
	if c.GetLevel() != 1 {
		t.Errorf("New character should be level 1, got %d", c.GetLevel())
	}
	if c.Quantity("anything") != 0 {
		t.Error("New character should carry nothing")
	}
}

func TestAddExperienceLevelsUp(t *testing.T) {
	c := NewCharacter("alice")

	if err := c.AddExperience(600); err != nil {
		t.Fatalf("AddExperience returned error: %v", err)
	}
	if c.GetLevel() != 3 {
		t.Errorf("600 XP should reach level 3, got %d", c.GetLevel())
	}
	ups := c.TakeLevelUps()
	if len(ups) != 2 || ups[0].NewLevel != 2 || ups[1].NewLevel != 3 {
		t.Errorf("Should report two level-ups, got %+v", ups)
	}
	if len(c.TakeLevelUps()) != 0 {
		t.Error("TakeLevelUps should clear pending level-ups")
	}

	if err := c.AddExperience(-1); err == nil {
		t.Error("Negative experience should be rejected")
	}
}

func TestGoldAndEssence(t *testing.T) {
	c := NewCharacter("alice")
	if err := c.AddGold(100); err != nil {
		t.Fatalf("AddGold returned error: %v", err)
	}
	if err := c.AddGold(-150); err == nil {
		t.Error("Overspending should fail")
	}
	if c.GetGold() != 100 {
		t.Errorf("Failed spend should not change gold, got %d", c.GetGold())
	}
	if err := c.AddEssence(5); err != nil || c.GetEssence() != 5 {
		t.Errorf("AddEssence failed: %v", err)
	}
}

func TestInventory(t *testing.T) {
	c := NewCharacter("alice")
	c.InventorySlots = 2

	if err := c.AddItem("herb", 3); err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	if err := c.AddItem("sword", 1); err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	if err := c.AddItem("shield", 1); err == nil {
		t.Error("Full inventory should reject a new item")
	}
	if err := c.AddItem("herb", 2); err != nil {
		t.Errorf("Stacking onto a held item should work when full: %v", err)
	}
	if c.Quantity("herb") != 5 {
		t.Errorf("Should hold 5 herbs, got %d", c.Quantity("herb"))
	}

	if err := c.RemoveItem("herb", 6); err == nil {
		t.Error("Removing more than held should fail")
	}
	if err := c.RemoveItem("sword", 1); err != nil {
		t.Fatalf("RemoveItem returned error: %v", err)
	}
	if items := c.Items(); len(items) != 1 || items[0] != "herb" {
		t.Errorf("Only herb should remain, got %v", items)
	}
	if err := c.AddItem("herb", 0); err == nil {
		t.Error("Zero quantity should be rejected")
	}
}

func TestReputationClamp(t *testing.T) {
	c := NewCharacter("alice")
	if err := c.AdjustReputation("guards", 5000); err != nil {
		t.Fatalf("AdjustReputation returned error: %v", err)
	}
	if c.GetReputation("guards") != MaxReputation {
		t.Errorf("Reputation should clamp to %d, got %d", MaxReputation, c.GetReputation("guards"))
	}
	_ = c.AdjustReputation("thieves", -5000)
	if c.GetReputation("thieves") != MinReputation {
		t.Errorf("Reputation should clamp to %d, got %d", MinReputation, c.GetReputation("thieves"))
	}
	if err := c.AdjustReputation("", 1); err == nil {
		t.Error("Empty faction should be rejected")
	}
}

func TestCharacterJSONRoundTrip(t *testing.T) {
	c := NewCharacter("alice")
	_ = c.AddExperience(300)
	_ = c.AddGold(42)
	_ = c.AddItem("herb", 2)
	c.SetSkill("smithing", 7)
	_ = c.AdjustReputation("guards", 10)

	data, err := c.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON returned error: %v", err)
	}
	restored, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON returned error: %v", err)
	}
	if restored.Name != "alice" || restored.GetLevel() != 2 || restored.GetGold() != 42 {
		t.Errorf("Restored character mismatch: %+v", restored)
	}
	if restored.Quantity("herb") != 2 || restored.SkillLevel("smithing") != 7 || restored.GetReputation("guards") != 10 {
		t.Error("Restored maps mismatch")
	}
}

func TestFromJSONFillsDefaults(t *testing.T) {
	c, err := FromJSON(`{"name":"bob","experience":600}`)
	if err != nil {
		t.Fatalf("FromJSON returned error: %v", err)
	}
	if c.Inventory == nil || c.Skills == nil || c.Reputation == nil {
		t.Error("Maps should be initialized")
	}
	if c.GetLevel() != 3 {
		t.Errorf("Level should be derived from experience, got %d", c.GetLevel())
	}
	if c.InventorySlots != DefaultInventorySlots {
		t.Errorf("InventorySlots should default, got %d", c.InventorySlots)
	}
}
