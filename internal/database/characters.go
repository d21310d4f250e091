package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrCharacterNotFound is returned when a player has no saved character.
var ErrCharacterNotFound = errors.New("character not found")

// SaveCharacter stores a player's serialized character record.
func (d *Database) SaveCharacter(ctx context.Context, playerID string, data []byte) error {
	_, err := d.exec(ctx, `
		INSERT INTO characters (player_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (player_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		playerID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save character: %w", err)
	}
	return nil
}

// LoadCharacter returns a player's serialized character record.
func (d *Database) LoadCharacter(ctx context.Context, playerID string) ([]byte, error) {
	var data string
	err := d.queryRow(ctx, `SELECT data FROM characters WHERE player_id = ?`, playerID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCharacterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load character: %w", err)
	}
	return []byte(data), nil
}

// CharacterExists checks if a character has been saved for a player.
func (d *Database) CharacterExists(ctx context.Context, playerID string) (bool, error) {
	var count int
	err := d.queryRow(ctx, `SELECT COUNT(*) FROM characters WHERE player_id = ?`, playerID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check character: %w", err)
	}
	return count > 0, nil
}
