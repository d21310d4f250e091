// Package namefilter validates the player IDs clients connect with.
package namefilter

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the player ID rules
type Config struct {
	MaxLength   int      `yaml:"max_length" env:"MAX_LENGTH"`
	Reserved    []string `yaml:"reserved" env:"RESERVED"`         // exact match, case-insensitive
	BannedWords []string `yaml:"banned_words" env:"BANNED_WORDS"` // substring match, case-insensitive
}

// DefaultConfig returns the rules used when nothing is configured
func DefaultConfig() Config {
	return Config{
		MaxLength: 32,
		Reserved:  []string{"admin", "system", "server"},
	}
}

// Result contains the outcome of checking a player ID
type Result struct {
	Allowed bool   // Whether the ID is allowed
	Reason  string // Reason for rejection (if not allowed)
}

// NameFilter checks player IDs against format rules, reserved IDs and banned words
type NameFilter struct {
	maxLength   int
	reserved    []string // Lowercase reserved IDs
	bannedWords []string // Lowercase banned words
}

// New creates a NameFilter from a Config. A nil config uses DefaultConfig.
func New(cfg *Config) *NameFilter {
	if cfg == nil {
		def := DefaultConfig()
		cfg = &def
	}

	nf := &NameFilter{
		maxLength:   cfg.MaxLength,
		reserved:    lowered(cfg.Reserved),
		bannedWords: lowered(cfg.BannedWords),
	}
	if nf.maxLength <= 0 {
		nf.maxLength = DefaultConfig().MaxLength
	}
	return nf
}

func lowered(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w != "" {
			out = append(out, strings.ToLower(w))
		}
	}
	return out
}

// LoadConfig loads player ID rules from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Check validates a player ID. IDs may contain letters, digits, '_', '-'
// and '.'.
func (nf *NameFilter) Check(id string) Result {
	if id == "" {
		return Result{Allowed: false, Reason: "A player ID is required."}
	}
	if len(id) > nf.maxLength {
		return Result{Allowed: false, Reason: "That player ID is too long."}
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return Result{Allowed: false, Reason: "Player IDs may only use letters, digits, '_', '-' and '.'."}
		}
	}

	idLower := strings.ToLower(id)

	for _, reserved := range nf.reserved {
		if idLower == reserved {
			return Result{Allowed: false, Reason: "That player ID is reserved."}
		}
	}

	for _, word := range nf.bannedWords {
		if strings.Contains(idLower, word) {
			return Result{Allowed: false, Reason: "That player ID contains a word that is not allowed."}
		}
	}

	return Result{Allowed: true}
}

// MaxLength returns the longest accepted ID
func (nf *NameFilter) MaxLength() int {
	return nf.maxLength
}
