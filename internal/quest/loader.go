package quest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lawnchairsociety/questengine/internal/logger"
	"gopkg.in/yaml.v3"
)

// ObjectiveYAML for YAML parsing
type ObjectiveYAML struct {
	ID          string `yaml:"id"`          // defaults to obj_<n>
	Type        string `yaml:"type"`        // kill, gather, explore, talk, craft, deliver, wait
	Target      string `yaml:"target"`      // ID of target
	Location    string `yaml:"location"`    // deliver/explore location
	Description string `yaml:"description"` // Display text
	Required    int    `yaml:"required"`    // Amount needed
}

// RewardsYAML for YAML parsing
type RewardsYAML struct {
	Experience int               `yaml:"experience"`
	Gold       int               `yaml:"gold"`
	Essence    int               `yaml:"essence"`
	Items      []ItemStack       `yaml:"items"`
	Reputation []ReputationDelta `yaml:"reputation"`
}

// QuestDefinition for YAML parsing
type QuestDefinition struct {
	Title        string          `yaml:"title"`
	Description  string          `yaml:"description"`
	Category     string          `yaml:"category"` // main, side, daily, weekly, repeatable, event
	Difficulty   string          `yaml:"difficulty"`
	Giver        string          `yaml:"giver"`
	TurnIn       string          `yaml:"turn_in"`
	Location     string          `yaml:"location"`
	Story        bool            `yaml:"story"`
	Repeatable   bool            `yaml:"repeatable"`
	Hidden       bool            `yaml:"hidden"`
	TimeLimit    string          `yaml:"time_limit"` // Go duration, e.g. "30m"
	Objectives   []ObjectiveYAML `yaml:"objectives"`
	Requirements RequirementList `yaml:"requirements"`
	Rewards      RewardsYAML     `yaml:"rewards"`
	Unlocks      []string        `yaml:"unlocks"`
	QuestItems   []ItemStack     `yaml:"quest_items"`
}

// QuestsConfig represents the quests.yaml structure
type QuestsConfig struct {
	Quests map[string]QuestDefinition `yaml:"quests"`
}

// LoadQuestsFromYAML loads quest definitions from YAML file
func LoadQuestsFromYAML(filename string) (*QuestsConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read quests file: %w", err)
	}
	return ParseQuestsYAML(data)
}

// ParseQuestsYAML parses quest definitions from raw YAML
func ParseQuestsYAML(data []byte) (*QuestsConfig, error) {
	var config QuestsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse quests YAML: %w", err)
	}
	if config.Quests == nil {
		config.Quests = make(map[string]QuestDefinition)
	}
	return &config, nil
}

// GetQuestByID returns a Quest struct from the config
func (config *QuestsConfig) GetQuestByID(id string) (*Quest, bool) {
	def, exists := config.Quests[id]
	if !exists {
		return nil, false
	}

	return createQuestFromDefinition(id, &def), true
}

// GetAllQuests returns all quests from the config, sorted by ID
func (config *QuestsConfig) GetAllQuests() []*Quest {
	quests := make([]*Quest, 0, len(config.Quests))
	for id, def := range config.Quests {
		quests = append(quests, createQuestFromDefinition(id, &def))
	}
	sort.Slice(quests, func(i, j int) bool { return quests[i].ID < quests[j].ID })
	return quests
}

// createQuestFromDefinition converts a YAML definition to a Quest struct
func createQuestFromDefinition(id string, def *QuestDefinition) *Quest {
	objectives := make([]Objective, len(def.Objectives))
	for i, objDef := range def.Objectives {
		objID := objDef.ID
		if objID == "" {
			objID = fmt.Sprintf("obj_%d", i+1)
		}
		required := objDef.Required
		if required <= 0 {
			required = 1
		}
		objectives[i] = Objective{
			ID:          objID,
			Type:        ObjectiveType(strings.ToLower(objDef.Type)),
			Target:      objDef.Target,
			Location:    objDef.Location,
			Description: objDef.Description,
			Required:    required,
		}
	}

	// Bad durations are reported by Validate; treat them as "no limit" here
	var timeLimit time.Duration
	if def.TimeLimit != "" {
		if d, err := time.ParseDuration(def.TimeLimit); err == nil && d > 0 {
			timeLimit = d
		}
	}

	q := &Quest{
		ID:           id,
		Title:        def.Title,
		Description:  def.Description,
		Giver:        def.Giver,
		TurnIn:       def.TurnIn,
		Location:     def.Location,
		Category:     parseCategory(def.Category),
		Difficulty:   parseDifficulty(def.Difficulty),
		Story:        def.Story,
		Repeatable:   def.Repeatable,
		Hidden:       def.Hidden,
		Objectives:   objectives,
		Requirements: append(RequirementList(nil), def.Requirements...),
		Rewards: Rewards{
			Experience: def.Rewards.Experience,
			Gold:       def.Rewards.Gold,
			Essence:    def.Rewards.Essence,
			Items:      def.Rewards.Items,
			Reputation: def.Rewards.Reputation,
		},
		Unlocks:     def.Unlocks,
		QuestItems:  def.QuestItems,
		TimeLimit:   timeLimit,
		Status:      StatusAvailable,
		IsAvailable: !def.Hidden,
	}
	q.RecomputeProgress()
	return q
}

// parseCategory converts string to Category
func parseCategory(s string) Category {
	switch strings.ToLower(s) {
	case "main":
		return CategoryMain
	case "side":
		return CategorySide
	case "daily":
		return CategoryDaily
	case "weekly":
		return CategoryWeekly
	case "repeatable":
		return CategoryRepeatable
	case "event":
		return CategoryEvent
	default:
		return CategorySide // Default fallback
	}
}

// parseDifficulty converts string to Difficulty
func parseDifficulty(s string) Difficulty {
	switch strings.ToLower(s) {
	case "trivial":
		return DifficultyTrivial
	case "easy":
		return DifficultyEasy
	case "hard":
		return DifficultyHard
	case "epic":
		return DifficultyEpic
	default:
		return DifficultyNormal
	}
}

// Merge combines another QuestsConfig into this one
func (config *QuestsConfig) Merge(other *QuestsConfig) {
	if other == nil {
		return
	}
	for id, def := range other.Quests {
		config.Quests[id] = def
	}
}

// Validate checks cross-references and objective sanity. It returns one
// message per problem; an empty slice means the catalog is consistent.
func (config *QuestsConfig) Validate() []string {
	var problems []string

	ids := make([]string, 0, len(config.Quests))
	for id := range config.Quests {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		def := config.Quests[id]
		if def.Title == "" {
			problems = append(problems, fmt.Sprintf("%s: missing title", id))
		}
		if def.TimeLimit != "" {
			if d, err := time.ParseDuration(def.TimeLimit); err != nil || d <= 0 {
				problems = append(problems, fmt.Sprintf("%s: invalid time_limit %q", id, def.TimeLimit))
			}
		}

		seen := make(map[string]bool)
		for i, obj := range def.Objectives {
			objID := obj.ID
			if objID == "" {
				objID = fmt.Sprintf("obj_%d", i+1)
			}
			if seen[objID] {
				problems = append(problems, fmt.Sprintf("%s: duplicate objective id %s", id, objID))
			}
			seen[objID] = true

			objType := ObjectiveType(strings.ToLower(obj.Type))
			if !objType.Valid() {
				problems = append(problems, fmt.Sprintf("%s/%s: unknown objective type %q", id, objID, obj.Type))
			}
			if obj.Required < 0 {
				problems = append(problems, fmt.Sprintf("%s/%s: negative required count", id, objID))
			}
			if objType == ObjectiveDeliver && obj.Location == "" {
				problems = append(problems, fmt.Sprintf("%s/%s: deliver objective without location", id, objID))
			}
		}

		for _, req := range def.Requirements {
			switch r := req.(type) {
			case QuestRequirement:
				if _, ok := config.Quests[r.QuestID]; !ok {
					problems = append(problems, fmt.Sprintf("%s: requires unknown quest %s", id, r.QuestID))
				}
			case UnknownRequirement:
				problems = append(problems, fmt.Sprintf("%s: unknown requirement type %q", id, r.Type))
			}
		}

		for _, target := range def.Unlocks {
			if _, ok := config.Quests[target]; !ok {
				problems = append(problems, fmt.Sprintf("%s: unlocks unknown quest %s", id, target))
			}
		}
	}

	return problems
}

// LoadQuestsFromDirectory loads and merges all YAML files from a directory
func LoadQuestsFromDirectory(dir string) (*QuestsConfig, error) {
	merged := &QuestsConfig{
		Quests: make(map[string]QuestDefinition),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	fileCount := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !isYAMLFile(name) {
			continue
		}

		filePath := filepath.Join(dir, name)
		config, err := LoadQuestsFromYAML(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", filePath, err)
		}
		merged.Merge(config)
		fileCount++
		logger.Debug("Loaded quest file", "path", filePath, "quests", len(config.Quests))
	}

	logger.Info("Loaded quests from directory", "dir", dir, "files", fileCount, "total_quests", len(merged.Quests))
	return merged, nil
}

func isYAMLFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
