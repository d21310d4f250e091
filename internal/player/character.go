// Package player provides an in-memory character that implements the
// player, inventory, skill and faction collaborators the quest engine uses.
package player

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/lawnchairsociety/questengine/internal/leveling"
)

// Reputation bounds
const (
	MinReputation = -1000
	MaxReputation = 1000
)

// DefaultInventorySlots is how many distinct items a new character can carry
const DefaultInventorySlots = 40

// Character is a player's progression state
type Character struct {
	mu sync.RWMutex

	Name           string         `json:"name"`
	Level          int            `json:"level"`
	Experience     int            `json:"experience"`
	Gold           int            `json:"gold"`
	Essence        int            `json:"essence"`
	Inventory      map[string]int `json:"inventory"`       // item ID -> quantity
	InventorySlots int            `json:"inventory_slots"` // distinct item limit
	Skills         map[string]int `json:"skills"`          // skill ID -> level
	Reputation     map[string]int `json:"reputation"`      // faction ID -> standing

	levelUps []leveling.LevelUpInfo
}

// NewCharacter creates a level 1 character
func NewCharacter(name string) *Character {
	return &Character{
		Name:           name,
		Level:          1,
		Inventory:      make(map[string]int),
		InventorySlots: DefaultInventorySlots,
		Skills:         make(map[string]int),
		Reputation:     make(map[string]int),
	}
}

// GetLevel returns the current level
func (c *Character) GetLevel() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Level
}

// GetExperience returns total experience
func (c *Character) GetExperience() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Experience
}

// GetGold returns the gold balance
func (c *Character) GetGold() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Gold
}

// GetEssence returns the essence balance
func (c *Character) GetEssence() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Essence
}

// AddExperience grants experience and levels up as many times as it covers
func (c *Character) AddExperience(xp int) error {
	if xp < 0 {
		return fmt.Errorf("cannot grant negative experience %d", xp)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Experience += xp

	// Check for level up (can level multiple times from one XP gain)
	for c.Level < leveling.MaxPlayerLevel && c.Experience >= leveling.XPForLevel(c.Level+1) {
		c.Level++
		c.levelUps = append(c.levelUps, leveling.LevelUpInfo{NewLevel: c.Level})
	}
	return nil
}

// TakeLevelUps returns and clears the level-ups since the last call
func (c *Character) TakeLevelUps() []leveling.LevelUpInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	ups := c.levelUps
	c.levelUps = nil
	return ups
}

// AddGold adds (or with a negative amount, spends) gold
func (c *Character) AddGold(amount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Gold+amount < 0 {
		return fmt.Errorf("not enough gold: have %d, need %d", c.Gold, -amount)
	}
	c.Gold += amount
	return nil
}

// AddEssence adds (or with a negative amount, spends) essence
func (c *Character) AddEssence(amount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Essence+amount < 0 {
		return fmt.Errorf("not enough essence: have %d, need %d", c.Essence, -amount)
	}
	c.Essence += amount
	return nil
}

// Quantity returns how many of an item the character holds
func (c *Character) Quantity(itemID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Inventory[itemID]
}

// AddItem puts items in the inventory. A new item needs a free slot.
func (c *Character) AddItem(itemID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("invalid quantity %d for %s", qty, itemID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, held := c.Inventory[itemID]; !held && len(c.Inventory) >= c.InventorySlots {
		return fmt.Errorf("inventory full, cannot add %s", itemID)
	}
	c.Inventory[itemID] += qty
	return nil
}

// RemoveItem takes items out of the inventory
func (c *Character) RemoveItem(itemID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("invalid quantity %d for %s", qty, itemID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	have := c.Inventory[itemID]
	if have < qty {
		return fmt.Errorf("not enough %s: have %d, need %d", itemID, have, qty)
	}
	if have == qty {
		delete(c.Inventory, itemID)
	} else {
		c.Inventory[itemID] = have - qty
	}
	return nil
}

// Items returns the held item IDs, sorted
func (c *Character) Items() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.Inventory))
	for id := range c.Inventory {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SkillLevel returns a skill's level (0 if untrained)
func (c *Character) SkillLevel(skillID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Skills[skillID]
}

// SetSkill sets a skill's level
func (c *Character) SetSkill(skillID string, level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Skills[skillID] = level
}

// GetReputation returns standing with a faction
func (c *Character) GetReputation(factionID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Reputation[factionID]
}

// AdjustReputation changes standing with a faction, clamped to the bounds
func (c *Character) AdjustReputation(factionID string, delta int) error {
	if factionID == "" {
		return fmt.Errorf("faction id is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	standing := c.Reputation[factionID] + delta
	if standing > MaxReputation {
		standing = MaxReputation
	}
	if standing < MinReputation {
		standing = MinReputation
	}
	c.Reputation[factionID] = standing
	return nil
}

// ToJSON serializes the character
func (c *Character) ToJSON() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal character: %w", err)
	}
	return string(data), nil
}

// FromJSON restores a character serialized with ToJSON
func FromJSON(data string) (*Character, error) {
	c := &Character{}
	if err := json.Unmarshal([]byte(data), c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal character: %w", err)
	}
	if c.Inventory == nil {
		c.Inventory = make(map[string]int)
	}
	if c.Skills == nil {
		c.Skills = make(map[string]int)
	}
	if c.Reputation == nil {
		c.Reputation = make(map[string]int)
	}
	if c.InventorySlots <= 0 {
		c.InventorySlots = DefaultInventorySlots
	}
	if c.Level < 1 {
		c.Level = leveling.LevelForXP(c.Experience)
	}
	return c, nil
}
