package quest

import (
	"sort"
	"sync"
)

// Catalog holds all loaded quest definitions
type Catalog struct {
	mu      sync.RWMutex
	config  *QuestsConfig
	quests  map[string]*Quest   // questID -> Quest
	byGiver map[string][]string // npcID -> quest IDs they give
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		config:  &QuestsConfig{Quests: make(map[string]QuestDefinition)},
		quests:  make(map[string]*Quest),
		byGiver: make(map[string][]string),
	}
}

// LoadFromConfig replaces the catalog contents with the given definitions
func (c *Catalog) LoadFromConfig(config *QuestsConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.config = &QuestsConfig{Quests: make(map[string]QuestDefinition, len(config.Quests))}
	c.quests = make(map[string]*Quest, len(config.Quests))
	c.byGiver = make(map[string][]string)

	for id, def := range config.Quests {
		c.config.Quests[id] = def
		q := createQuestFromDefinition(id, &def)
		c.quests[id] = q

		// Index by giver NPC
		if q.Giver != "" {
			c.byGiver[q.Giver] = append(c.byGiver[q.Giver], id)
		}
	}
	for giver := range c.byGiver {
		sort.Strings(c.byGiver[giver])
	}
}

// LoadFromYAML loads quests from a YAML file
func (c *Catalog) LoadFromYAML(filename string) error {
	config, err := LoadQuestsFromYAML(filename)
	if err != nil {
		return err
	}
	c.LoadFromConfig(config)
	return nil
}

// LoadFromDirectory loads quests from all YAML files in a directory
func (c *Catalog) LoadFromDirectory(dir string) error {
	config, err := LoadQuestsFromDirectory(dir)
	if err != nil {
		return err
	}
	c.LoadFromConfig(config)
	return nil
}

// Get returns a fresh copy of a quest by ID
func (c *Catalog) Get(id string) (*Quest, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q, exists := c.quests[id]
	if !exists {
		return nil, false
	}
	return q.Clone(), true
}

// ForGiver returns copies of every quest an NPC gives
func (c *Catalog) ForGiver(npcID string) []*Quest {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.byGiver[npcID]
	result := make([]*Quest, 0, len(ids))
	for _, id := range ids {
		result = append(result, c.quests[id].Clone())
	}
	return result
}

// All returns copies of every quest, sorted by ID
func (c *Catalog) All() []*Quest {
	c.mu.RLock()
	defer c.mu.RUnlock()

	quests := make([]*Quest, 0, len(c.quests))
	for _, q := range c.quests {
		quests = append(quests, q.Clone())
	}
	sort.Slice(quests, func(i, j int) bool { return quests[i].ID < quests[j].ID })
	return quests
}

// Count returns the number of registered quests
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.quests)
}

// Validate reports problems in the loaded definitions
func (c *Catalog) Validate() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.config.Validate()
}
