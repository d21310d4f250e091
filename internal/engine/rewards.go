package engine

import (
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/lawnchairsociety/questengine/internal/errors"
	"github.com/lawnchairsociety/questengine/internal/quest"
)

// RewardKind names one kind of reward
type RewardKind string

const (
	RewardExperience RewardKind = "experience"
	RewardGold       RewardKind = "gold"
	RewardEssence    RewardKind = "essence"
	RewardItems      RewardKind = "items"
	RewardReputation RewardKind = "reputation"
)

var errNoCollaborator = errors.New("subsystem unavailable")

// RewardFailure records one reward that could not be delivered
type RewardFailure struct {
	Kind   RewardKind `json:"kind"`
	Detail string     `json:"detail"`
	Err    error      `json:"-"`
}

// RewardReport is what a completion actually delivered
type RewardReport struct {
	QuestID  string          `json:"quest_id"`
	Granted  quest.Rewards   `json:"granted"`
	Failures []RewardFailure `json:"failures,omitempty"`
}

// OK reports whether every reward was delivered
func (r RewardReport) OK() bool {
	return len(r.Failures) == 0
}

// Err returns a REWARD_APPLICATION error describing the failures, or nil
func (r RewardReport) Err() error {
	if r.OK() {
		return nil
	}
	causes := make([]error, 0, len(r.Failures))
	kinds := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		causes = append(causes, fmt.Errorf("%s: %s: %w", f.Kind, f.Detail, f.Err))
		kinds = append(kinds, string(f.Kind))
	}
	err := apperrors.Wrap(apperrors.CodeRewardApplication,
		fmt.Sprintf("failed to deliver some rewards for %s", r.QuestID),
		errors.Join(causes...))
	err.Metadata = map[string]string{"quest_id": r.QuestID, "kinds": strings.Join(kinds, ",")}
	return err
}

// Summary describes what was granted, e.g. "50 XP, 100 gold, 1 x cloak"
func (r RewardReport) Summary() string {
	var parts []string
	g := r.Granted
	if g.Experience != 0 {
		parts = append(parts, fmt.Sprintf("%d XP", g.Experience))
	}
	if g.Gold != 0 {
		parts = append(parts, fmt.Sprintf("%d gold", g.Gold))
	}
	if g.Essence != 0 {
		parts = append(parts, fmt.Sprintf("%d essence", g.Essence))
	}
	for _, item := range g.Items {
		parts = append(parts, fmt.Sprintf("%d x %s", item.Quantity, item.ItemID))
	}
	for _, rep := range g.Reputation {
		parts = append(parts, fmt.Sprintf("%+d %s", rep.Amount, rep.FactionID))
	}
	return strings.Join(parts, ", ")
}

func (r *RewardReport) fail(kind RewardKind, detail string, err error) {
	r.Failures = append(r.Failures, RewardFailure{Kind: kind, Detail: detail, Err: err})
}

// applyRewards delivers each reward kind independently. A failure in one
// kind never stops the others.
func (e *Engine) applyRewards(questID string, rewards quest.Rewards) RewardReport {
	report := RewardReport{QuestID: questID}
	c := e.collab

	if rewards.Experience != 0 {
		switch {
		case c.Player == nil:
			report.fail(RewardExperience, "no player", errNoCollaborator)
		default:
			if err := c.Player.AddExperience(rewards.Experience); err != nil {
				report.fail(RewardExperience, fmt.Sprintf("%d XP", rewards.Experience), err)
			} else {
				report.Granted.Experience = rewards.Experience
			}
		}
	}

	if rewards.Gold != 0 {
		switch {
		case c.Player == nil:
			report.fail(RewardGold, "no player", errNoCollaborator)
		default:
			if err := c.Player.AddGold(rewards.Gold); err != nil {
				report.fail(RewardGold, fmt.Sprintf("%d gold", rewards.Gold), err)
			} else {
				report.Granted.Gold = rewards.Gold
			}
		}
	}

	if rewards.Essence != 0 {
		switch {
		case c.Player == nil:
			report.fail(RewardEssence, "no player", errNoCollaborator)
		default:
			if err := c.Player.AddEssence(rewards.Essence); err != nil {
				report.fail(RewardEssence, fmt.Sprintf("%d essence", rewards.Essence), err)
			} else {
				report.Granted.Essence = rewards.Essence
			}
		}
	}

	for _, item := range rewards.Items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		if c.Inventory == nil {
			report.fail(RewardItems, item.ItemID, errNoCollaborator)
			continue
		}
		if err := c.Inventory.AddItem(item.ItemID, qty); err != nil {
			report.fail(RewardItems, fmt.Sprintf("%d x %s", qty, item.ItemID), err)
			continue
		}
		report.Granted.Items = append(report.Granted.Items, quest.ItemStack{ItemID: item.ItemID, Quantity: qty})
	}

	for _, rep := range rewards.Reputation {
		if c.Factions == nil {
			report.fail(RewardReputation, rep.FactionID, errNoCollaborator)
			continue
		}
		if err := c.Factions.AdjustReputation(rep.FactionID, rep.Amount); err != nil {
			report.fail(RewardReputation, fmt.Sprintf("%+d %s", rep.Amount, rep.FactionID), err)
			continue
		}
		report.Granted.Reputation = append(report.Granted.Reputation, rep)
	}

	return report
}
