package store

import (
	"encoding/json"
	"fmt"
)

// Snapshot serializes the whole state to JSON
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.Marshal(s.state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quest state: %w", err)
	}
	return data, nil
}

// Restore replaces the state with a snapshot. A snapshot that fails to
// parse or breaks an invariant leaves the current state untouched.
func (s *Store) Restore(data []byte) error {
	var restored State
	if err := json.Unmarshal(data, &restored); err != nil {
		return fmt.Errorf("failed to unmarshal quest state: %w", err)
	}
	restored.normalize()
	if err := checkState(&restored); err != nil {
		return fmt.Errorf("failed to restore quest state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = restored
	return nil
}

// CheckInvariants verifies the index, progress and objective invariants
func (s *Store) CheckInvariants() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return checkState(&s.state)
}
