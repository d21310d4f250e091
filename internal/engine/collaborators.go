package engine

import (
	"github.com/lawnchairsociety/questengine/internal/notify"
)

// Player is the progression subsystem
type Player interface {
	GetLevel() int
	AddExperience(xp int) error
	AddGold(amount int) error
	AddEssence(amount int) error
}

// Inventory is the item subsystem
type Inventory interface {
	Quantity(itemID string) int
	AddItem(itemID string, qty int) error
	RemoveItem(itemID string, qty int) error
}

// Skills is the skill subsystem
type Skills interface {
	SkillLevel(skillID string) int
}

// Factions is the reputation subsystem
type Factions interface {
	GetReputation(factionID string) int
	AdjustReputation(factionID string, delta int) error
}

// Notifier is a one-way sink for player-facing messages
type Notifier interface {
	Notify(message string, severity notify.Severity, opts notify.Options)
}

// Collaborators are the subsystems the engine reads from and rewards
// through. A nil collaborator reads as zero and fails any reward routed to it.
type Collaborators struct {
	Player    Player
	Inventory Inventory
	Skills    Skills
	Factions  Factions
	Notifier  Notifier
}
