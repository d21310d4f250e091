// migrate-to-postgres copies saved quest progress from SQLite to PostgreSQL.
//
// Usage:
//
//	go run ./cmd/migrate-to-postgres \
//	    -sqlite data/questengine.db \
//	    -pg-host localhost \
//	    -pg-port 5435 \
//	    -pg-user questengine \
//	    -pg-password questengine \
//	    -pg-database questengine
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/lawnchairsociety/questengine/internal/database"
)

// counts tallies what was copied
type counts struct {
	states     int
	characters int
	archived   int
}

func main() {
	// Parse command-line flags
	sqlitePath := flag.String("sqlite", "data/questengine.db", "Path to SQLite database")
	pgHost := flag.String("pg-host", "localhost", "PostgreSQL host")
	pgPort := flag.Int("pg-port", 5435, "PostgreSQL port")
	pgUser := flag.String("pg-user", "questengine", "PostgreSQL user")
	pgPassword := flag.String("pg-password", "questengine", "PostgreSQL password")
	pgDatabase := flag.String("pg-database", "questengine", "PostgreSQL database name")
	pgSSLMode := flag.String("pg-sslmode", "disable", "PostgreSQL SSL mode")
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	flag.Parse()

	log.Println("SQLite to PostgreSQL Migration Tool")
	log.Println("====================================")

	log.Printf("Opening SQLite database: %s", *sqlitePath)
	src, err := database.Open(*sqlitePath)
	if err != nil {
		log.Fatalf("Failed to open SQLite database: %v", err)
	}
	defer src.Close()

	var dst *database.Database
	if *dryRun {
		log.Println("DRY RUN MODE - No changes will be made")
	} else {
		pg := database.DefaultPostgresConfig()
		pg.Host = *pgHost
		pg.Port = *pgPort
		pg.User = *pgUser
		pg.Password = *pgPassword
		pg.Database = *pgDatabase
		pg.SSLMode = *pgSSLMode

		// Opening runs the schema migrations on PostgreSQL
		log.Printf("Opening PostgreSQL database: %s@%s:%d/%s", *pgUser, *pgHost, *pgPort, *pgDatabase)
		dst, err = database.OpenWithConfig(database.Config{Driver: "postgres", Postgres: pg})
		if err != nil {
			log.Fatalf("Failed to open PostgreSQL database: %v", err)
		}
		defer dst.Close()
	}

	ctx := context.Background()
	players, err := src.ListPlayers(ctx)
	if err != nil {
		log.Fatalf("Failed to list players: %v", err)
	}

	var total counts
	for _, p := range players {
		c, err := migratePlayer(ctx, src, dst, p.PlayerID)
		if err != nil {
			log.Fatalf("Failed to migrate %s: %v", p.PlayerID, err)
		}
		log.Printf("  %s: state=%d character=%d archived=%d", p.PlayerID, c.states, c.characters, c.archived)
		total.states += c.states
		total.characters += c.characters
		total.archived += c.archived
	}

	log.Println("====================================")
	log.Printf("Migration complete! %d players, %d characters, %d archived log entries",
		total.states, total.characters, total.archived)
	if *dryRun {
		log.Println("(DRY RUN - No actual changes were made)")
	}
}

// migratePlayer copies one player's quest state, character record and log
// archive. dst is nil in dry-run mode.
func migratePlayer(ctx context.Context, src, dst *database.Database, playerID string) (counts, error) {
	var c counts

	state, err := src.LoadQuestState(ctx, playerID)
	if err != nil {
		return c, err
	}
	if dst != nil {
		if err := dst.SaveQuestState(ctx, playerID, state); err != nil {
			return c, err
		}
	}
	c.states++

	data, err := src.LoadCharacter(ctx, playerID)
	switch {
	case errors.Is(err, database.ErrCharacterNotFound):
	case err != nil:
		return c, err
	default:
		if dst != nil {
			if err := dst.SaveCharacter(ctx, playerID, data); err != nil {
				return c, err
			}
		}
		c.characters++
	}

	entries, err := src.ArchivedEntries(ctx, playerID, "")
	if err != nil {
		return c, err
	}
	if dst == nil {
		c.archived = len(entries)
		return c, nil
	}
	written, err := dst.ArchiveLogEntries(ctx, playerID, entries)
	if err != nil {
		return c, fmt.Errorf("archive: %w", err)
	}
	c.archived = written
	return c, nil
}
