package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrStateNotFound is returned when a player has no saved quest state.
var ErrStateNotFound = errors.New("quest state not found")

// SaveQuestState stores a player's serialized quest Store, replacing any
// earlier save.
func (d *Database) SaveQuestState(ctx context.Context, playerID string, state []byte) error {
	_, err := d.exec(ctx, `
		INSERT INTO quest_states (player_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (player_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		playerID, string(state), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save quest state: %w", err)
	}
	return nil
}

// LoadQuestState returns a player's serialized quest Store.
func (d *Database) LoadQuestState(ctx context.Context, playerID string) ([]byte, error) {
	var state string
	err := d.queryRow(ctx, `SELECT state FROM quest_states WHERE player_id = ?`, playerID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quest state: %w", err)
	}
	return []byte(state), nil
}

// DeleteQuestState removes a player's saved quest state and archive.
func (d *Database) DeleteQuestState(ctx context.Context, playerID string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, d.dialect.Rebind(`DELETE FROM quest_states WHERE player_id = ?`), playerID); err != nil {
		return fmt.Errorf("failed to delete quest state: %w", err)
	}
	if _, err := tx.ExecContext(ctx, d.dialect.Rebind(`DELETE FROM quest_log_archive WHERE player_id = ?`), playerID); err != nil {
		return fmt.Errorf("failed to delete quest log archive: %w", err)
	}
	return tx.Commit()
}

// QuestStateInfo summarizes one saved quest state.
type QuestStateInfo struct {
	PlayerID  string
	UpdatedAt time.Time
}

// ListPlayers returns every player with saved quest state, ordered by ID.
func (d *Database) ListPlayers(ctx context.Context) ([]QuestStateInfo, error) {
	rows, err := d.query(ctx, `SELECT player_id, updated_at FROM quest_states ORDER BY player_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []QuestStateInfo
	for rows.Next() {
		var info QuestStateInfo
		if err := rows.Scan(&info.PlayerID, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, info)
	}
	return players, rows.Err()
}
