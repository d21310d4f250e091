package database

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/lawnchairsociety/questengine/internal/quest"
)

// getPostgresTestConfig returns a config for the test PostgreSQL instance,
// or nil when QUESTENGINE_TEST_POSTGRES isn't set.
func getPostgresTestConfig() *Config {
	if os.Getenv("QUESTENGINE_TEST_POSTGRES") == "" {
		return nil
	}

	cfg := DefaultConfig("")
	cfg.Driver = "postgres"
	cfg.Postgres.Host = envOr("QUESTENGINE_TEST_POSTGRES_HOST", "localhost")
	cfg.Postgres.User = envOr("QUESTENGINE_TEST_POSTGRES_USER", "questengine")
	cfg.Postgres.Password = envOr("QUESTENGINE_TEST_POSTGRES_PASSWORD", "questengine")
	cfg.Postgres.Database = envOr("QUESTENGINE_TEST_POSTGRES_DATABASE", "questengine_test")
	if portStr := os.Getenv("QUESTENGINE_TEST_POSTGRES_PORT"); portStr != "" {
		fmt.Sscanf(portStr, "%d", &cfg.Postgres.Port)
	}
	cfg.Postgres.MaxOpenConns = 10
	cfg.Postgres.ConnMaxLifetime = time.Minute
	return &cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// setupPostgresTestDB opens PostgreSQL and clears test data, or skips
func setupPostgresTestDB(t *testing.T) *Database {
	cfg := getPostgresTestConfig()
	if cfg == nil {
		t.Skip("Skipping PostgreSQL test: QUESTENGINE_TEST_POSTGRES not set")
	}

	db, err := OpenWithConfig(*cfg)
	if err != nil {
		t.Fatalf("Failed to open PostgreSQL database: %v", err)
	}

	tables := []string{"quest_log_archive", "quest_states", "characters"}
	clean := func() {
		for _, table := range tables {
			db.db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		}
	}
	clean()
	t.Cleanup(func() {
		clean()
		db.Close()
	})
	return db
}

func TestPostgres_QuestStateRoundTrip(t *testing.T) {
	db := setupPostgresTestDB(t)
	ctx := context.Background()

	if err := db.SaveQuestState(ctx, "Alice", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("SaveQuestState failed: %v", err)
	}
	if err := db.SaveQuestState(ctx, "alice", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("SaveQuestState overwrite failed: %v", err)
	}
	data, err := db.LoadQuestState(ctx, "ALICE")
	if err != nil {
		t.Fatalf("LoadQuestState failed: %v", err)
	}
	if string(data) != `{"v":2}` {
		t.Errorf("state = %s", data)
	}
}

func TestPostgres_ArchiveReturningID(t *testing.T) {
	db := setupPostgresTestDB(t)
	ctx := context.Background()

	entry := quest.LogEntry{ID: "pg-1", Timestamp: time.Now(), QuestID: "q", Message: "Started: Q", Type: quest.LogStart}
	id, err := db.insertArchiveEntry(ctx, "alice", entry)
	if err != nil {
		t.Fatalf("insertArchiveEntry failed: %v", err)
	}
	if id == 0 {
		t.Error("expected RETURNING id to be non-zero")
	}

	n, err := db.ArchiveLogEntries(ctx, "alice", []quest.LogEntry{entry})
	if err != nil {
		t.Fatalf("duplicate archive should be skipped: %v", err)
	}
	if n != 0 {
		t.Errorf("wrote %d, want 0", n)
	}
}

func TestPostgres_ConcurrentSaves(t *testing.T) {
	db := setupPostgresTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			player := fmt.Sprintf("player%d", n%5)
			if err := db.SaveQuestState(ctx, player, []byte(fmt.Sprintf(`{"n":%d}`, n))); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent save failed: %v", err)
	}

	players, err := db.ListPlayers(ctx)
	if err != nil {
		t.Fatalf("ListPlayers failed: %v", err)
	}
	if len(players) != 5 {
		t.Errorf("got %d players, want 5", len(players))
	}
}
