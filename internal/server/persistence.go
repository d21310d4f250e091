package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/lawnchairsociety/questengine/internal/database"
	"github.com/lawnchairsociety/questengine/internal/player"
	"github.com/lawnchairsociety/questengine/internal/quest"
	"github.com/lawnchairsociety/questengine/internal/store"
)

// loadPlayer restores a player's quest state and character from the
// database. A player with no saved rows starts fresh.
func (s *Server) loadPlayer(ctx context.Context, playerID string) (*store.Store, *player.Character, error) {
	st := store.New(store.WithClock(s.now))
	character := player.NewCharacter(playerID)

	if s.db == nil {
		return st, character, nil
	}

	data, err := s.db.LoadQuestState(ctx, playerID)
	switch {
	case errors.Is(err, database.ErrStateNotFound):
		// New player
	case err != nil:
		return nil, nil, fmt.Errorf("failed to load quest state for %s: %w", playerID, err)
	default:
		if err := st.Restore(data); err != nil {
			return nil, nil, fmt.Errorf("failed to restore quest state for %s: %w", playerID, err)
		}
	}

	raw, err := s.db.LoadCharacter(ctx, playerID)
	switch {
	case errors.Is(err, database.ErrCharacterNotFound):
	case err != nil:
		return nil, nil, fmt.Errorf("failed to load character for %s: %w", playerID, err)
	default:
		character, err = player.FromJSON(string(raw))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to restore character for %s: %w", playerID, err)
		}
	}

	return st, character, nil
}

// SaveSession persists a session's quest state and character. Log entries
// beyond the configured keep count are archived first and trimmed by ID
// only once the archive succeeds, so entries written meanwhile stay live.
// State and character are captured together between engine operations.
func (s *Server) SaveSession(ctx context.Context, sess *Session) error {
	if s.db == nil {
		return nil
	}

	sess.saveMu.Lock()
	defer sess.saveMu.Unlock()

	var overflow []quest.LogEntry
	if keep := s.cfg.Session.LogKeep; keep > 0 {
		sess.engine.Exclusive(func() { overflow = sess.store.LogOverflow(keep) })
	}
	if len(overflow) > 0 {
		if _, err := s.db.ArchiveLogEntries(ctx, sess.playerID, overflow); err != nil {
			return fmt.Errorf("failed to archive quest log: %w", err)
		}
		if s.afterArchive != nil {
			s.afterArchive(sess)
		}
	}

	var (
		state     []byte
		character string
		err       error
	)
	sess.engine.Exclusive(func() {
		if len(overflow) > 0 {
			sess.store.TrimLogThrough(overflow[len(overflow)-1].ID)
		}
		if state, err = sess.store.Snapshot(); err != nil {
			err = fmt.Errorf("failed to snapshot quest state: %w", err)
			return
		}
		character, err = sess.character.ToJSON()
	})
	if err != nil {
		return err
	}

	if err := s.db.SaveQuestState(ctx, sess.playerID, state); err != nil {
		return err
	}
	return s.db.SaveCharacter(ctx, sess.playerID, []byte(character))
}

// autoSaveAll saves every connected session
func (s *Server) autoSaveAll() {
	sessions := s.Sessions()
	if len(sessions) == 0 {
		return
	}

	savedCount := 0
	errorCount := 0

	for _, sess := range sessions {
		if err := s.SaveSession(s.ctx, sess); err != nil {
			s.log.Warn("Auto-save failed for player",
				"player", sess.playerID,
				"error", err)
			errorCount++
		} else {
			savedCount++
		}
	}

	s.log.Debug("Auto-save completed",
		"saved", savedCount,
		"errors", errorCount)
}
