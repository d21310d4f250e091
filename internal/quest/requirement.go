package quest

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// RequirementKind identifies a prerequisite gate
type RequirementKind string

const (
	RequireLevel   RequirementKind = "level"
	RequireQuest   RequirementKind = "quest"
	RequireItem    RequirementKind = "item"
	RequireSkill   RequirementKind = "skill"
	RequireFaction RequirementKind = "faction"
)

// Requirement is a prerequisite that must hold before a quest can be started.
// The set of implementations is closed; see the Require* kinds.
type Requirement interface {
	Kind() RequirementKind
	Describe() string
	sealed()
}

// LevelRequirement requires player level >= Min
type LevelRequirement struct {
	Min int
}

// QuestRequirement requires another quest to be completed
type QuestRequirement struct {
	QuestID string
}

// ItemRequirement requires at least Quantity of an item in the inventory
type ItemRequirement struct {
	ItemID   string
	Quantity int
}

// SkillRequirement requires a skill at Level or higher
type SkillRequirement struct {
	SkillID string
	Level   int
}

// FactionRequirement requires at least Standing reputation with a faction
type FactionRequirement struct {
	FactionID string
	Standing  int
}

// UnknownRequirement holds a requirement of a kind this build doesn't know.
// It never passes evaluation.
type UnknownRequirement struct {
	Type string
}

func (LevelRequirement) Kind() RequirementKind   { return RequireLevel }
func (QuestRequirement) Kind() RequirementKind   { return RequireQuest }
func (ItemRequirement) Kind() RequirementKind    { return RequireItem }
func (SkillRequirement) Kind() RequirementKind   { return RequireSkill }
func (FactionRequirement) Kind() RequirementKind { return RequireFaction }
func (r UnknownRequirement) Kind() RequirementKind {
	return RequirementKind(r.Type)
}

func (r LevelRequirement) Describe() string {
	return fmt.Sprintf("Reach level %d", r.Min)
}

func (r QuestRequirement) Describe() string {
	return fmt.Sprintf("Complete quest %s", r.QuestID)
}

func (r ItemRequirement) Describe() string {
	return fmt.Sprintf("Carry %d x %s", r.quantity(), r.ItemID)
}

func (r SkillRequirement) Describe() string {
	return fmt.Sprintf("Reach %s skill level %d", r.SkillID, r.Level)
}

func (r FactionRequirement) Describe() string {
	return fmt.Sprintf("Reach %d standing with %s", r.Standing, r.FactionID)
}

func (r UnknownRequirement) Describe() string {
	return fmt.Sprintf("Unknown requirement %q", r.Type)
}

func (r ItemRequirement) quantity() int {
	if r.Quantity <= 0 {
		return 1
	}
	return r.Quantity
}

// MinQuantity returns the required item count (at least 1)
func (r ItemRequirement) MinQuantity() int {
	return r.quantity()
}

func (LevelRequirement) sealed()   {}
func (QuestRequirement) sealed()   {}
func (ItemRequirement) sealed()    {}
func (SkillRequirement) sealed()   {}
func (FactionRequirement) sealed() {}
func (UnknownRequirement) sealed() {}

// RequirementList is the serializable form of a quest's prerequisites
type RequirementList []Requirement

// requirementRecord is the flat wire form shared by JSON and YAML
type requirementRecord struct {
	Type     string `json:"type" yaml:"type"`
	Level    int    `json:"level,omitempty" yaml:"level,omitempty"`
	Quest    string `json:"quest,omitempty" yaml:"quest,omitempty"`
	Item     string `json:"item,omitempty" yaml:"item,omitempty"`
	Quantity int    `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Skill    string `json:"skill,omitempty" yaml:"skill,omitempty"`
	Faction  string `json:"faction,omitempty" yaml:"faction,omitempty"`
	Standing int    `json:"standing,omitempty" yaml:"standing,omitempty"`
}

func toRecord(r Requirement) requirementRecord {
	switch v := r.(type) {
	case LevelRequirement:
		return requirementRecord{Type: string(RequireLevel), Level: v.Min}
	case QuestRequirement:
		return requirementRecord{Type: string(RequireQuest), Quest: v.QuestID}
	case ItemRequirement:
		return requirementRecord{Type: string(RequireItem), Item: v.ItemID, Quantity: v.Quantity}
	case SkillRequirement:
		return requirementRecord{Type: string(RequireSkill), Skill: v.SkillID, Level: v.Level}
	case FactionRequirement:
		return requirementRecord{Type: string(RequireFaction), Faction: v.FactionID, Standing: v.Standing}
	case UnknownRequirement:
		return requirementRecord{Type: v.Type}
	default:
		return requirementRecord{Type: string(r.Kind())}
	}
}

func fromRecord(rec requirementRecord) Requirement {
	switch RequirementKind(rec.Type) {
	case RequireLevel:
		return LevelRequirement{Min: rec.Level}
	case RequireQuest:
		return QuestRequirement{QuestID: rec.Quest}
	case RequireItem:
		return ItemRequirement{ItemID: rec.Item, Quantity: rec.Quantity}
	case RequireSkill:
		return SkillRequirement{SkillID: rec.Skill, Level: rec.Level}
	case RequireFaction:
		return FactionRequirement{FactionID: rec.Faction, Standing: rec.Standing}
	default:
		return UnknownRequirement{Type: rec.Type}
	}
}

// MarshalJSON encodes the list as tagged records
func (l RequirementList) MarshalJSON() ([]byte, error) {
	records := make([]requirementRecord, len(l))
	for i, r := range l {
		records[i] = toRecord(r)
	}
	return json.Marshal(records)
}

// UnmarshalJSON decodes tagged records; unknown types are kept as UnknownRequirement
func (l *RequirementList) UnmarshalJSON(data []byte) error {
	var records []requirementRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	*l = fromRecords(records)
	return nil
}

// UnmarshalYAML decodes tagged records from a quest definition file
func (l *RequirementList) UnmarshalYAML(value *yaml.Node) error {
	var records []requirementRecord
	if err := value.Decode(&records); err != nil {
		return err
	}
	*l = fromRecords(records)
	return nil
}

// MarshalYAML encodes the list as tagged records
func (l RequirementList) MarshalYAML() (interface{}, error) {
	records := make([]requirementRecord, len(l))
	for i, r := range l {
		records[i] = toRecord(r)
	}
	return records, nil
}

func fromRecords(records []requirementRecord) RequirementList {
	if len(records) == 0 {
		return nil
	}
	list := make(RequirementList, len(records))
	for i, rec := range records {
		list[i] = fromRecord(rec)
	}
	return list
}

// QuestPrereqs returns the IDs of quests that must be completed first
func (l RequirementList) QuestPrereqs() []string {
	var ids []string
	for _, r := range l {
		if qr, ok := r.(QuestRequirement); ok {
			ids = append(ids, qr.QuestID)
		}
	}
	return ids
}
