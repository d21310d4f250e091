package quest

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestRequirementListJSON(t *testing.T) {
	list := RequirementList{
		LevelRequirement{Min: 5},
		QuestRequirement{QuestID: "intro"},
		ItemRequirement{ItemID: "key", Quantity: 2},
		SkillRequirement{SkillID: "smithing", Level: 10},
		FactionRequirement{FactionID: "guards", Standing: 100},
	}

	data, err := json.Marshal(list)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var decoded RequirementList
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if len(decoded) != len(list) {
		t.Fatalf("Should decode %d requirements, got %d", len(list), len(decoded))
	}
	for i := range list {
		if decoded[i] != list[i] {
			t.Errorf("Requirement %d mismatch: got %#v, want %#v", i, decoded[i], list[i])
		}
	}
}

func TestRequirementListYAML_UnknownKind(t *testing.T) {
	input := `
- type: level
  level: 3
- type: moon_phase
`
	var list RequirementList
	if err := yaml.Unmarshal([]byte(input), &list); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Should have 2 requirements, got %d", len(list))
	}
	if list[0] != (LevelRequirement{Min: 3}) {
		t.Errorf("First requirement mismatch: %#v", list[0])
	}
	unknown, ok := list[1].(UnknownRequirement)
	if !ok {
		t.Fatalf("Second requirement should be UnknownRequirement, got %T", list[1])
	}
	if unknown.Kind() != "moon_phase" {
		t.Errorf("Unknown kind should keep its type, got %s", unknown.Kind())
	}
}

func TestQuestPrereqs(t *testing.T) {
	list := RequirementList{
		LevelRequirement{Min: 2},
		QuestRequirement{QuestID: "a"},
		QuestRequirement{QuestID: "b"},
	}
	prereqs := list.QuestPrereqs()
	if len(prereqs) != 2 || prereqs[0] != "a" || prereqs[1] != "b" {
		t.Errorf("QuestPrereqs = %v, want [a b]", prereqs)
	}
}

func TestItemRequirementMinQuantity(t *testing.T) {
	if (ItemRequirement{ItemID: "key"}).MinQuantity() != 1 {
		t.Error("Item requirement without quantity should need 1")
	}
}
