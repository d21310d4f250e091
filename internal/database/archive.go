package database

import (
	"context"
	"fmt"

	"github.com/lawnchairsociety/questengine/internal/quest"
)

// ArchiveLogEntries stores quest log entries trimmed from a player's live
// state. Entries already archived are skipped. It returns how many rows
// were written.
func (d *Database) ArchiveLogEntries(ctx context.Context, playerID string, entries []quest.LogEntry) (int, error) {
	written := 0
	for _, entry := range entries {
		if _, err := d.insertArchiveEntry(ctx, playerID, entry); err != nil {
			if d.dialect.IsDuplicateKey(err) {
				continue
			}
			return written, fmt.Errorf("failed to archive log entry %s: %w", entry.ID, err)
		}
		written++
	}
	return written, nil
}

func (d *Database) insertArchiveEntry(ctx context.Context, playerID string, entry quest.LogEntry) (int64, error) {
	read := 0
	if entry.Read {
		read = 1
	}
	query := d.dialect.RebindInsert(`
		INSERT INTO quest_log_archive (entry_id, player_id, quest_id, type, message, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, "id")
	args := []any{entry.ID, playerID, entry.QuestID, string(entry.Type), entry.Message, read, entry.Timestamp.UTC()}

	if d.dialect.UsesReturning() {
		var id int64
		err := d.db.QueryRowContext(ctx, query, args...).Scan(&id)
		return id, err
	}

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ArchivedEntries returns a player's archived log entries, oldest first.
// An empty questID returns entries for every quest.
func (d *Database) ArchivedEntries(ctx context.Context, playerID, questID string) ([]quest.LogEntry, error) {
	query := `SELECT entry_id, quest_id, type, message, is_read, created_at
		FROM quest_log_archive WHERE player_id = ?`
	args := []any{playerID}
	if questID != "" {
		query += ` AND quest_id = ?`
		args = append(args, questID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := d.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer rows.Close()

	var entries []quest.LogEntry
	for rows.Next() {
		var (
			e       quest.LogEntry
			logType string
			read    int
		)
		if err := rows.Scan(&e.ID, &e.QuestID, &logType, &e.Message, &read, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan archive entry: %w", err)
		}
		e.Type = quest.LogType(logType)
		e.Read = read != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountArchivedEntries returns how many log entries are archived for a player.
func (d *Database) CountArchivedEntries(ctx context.Context, playerID string) (int, error) {
	var count int
	err := d.queryRow(ctx, `SELECT COUNT(*) FROM quest_log_archive WHERE player_id = ?`, playerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count archive entries: %w", err)
	}
	return count, nil
}
