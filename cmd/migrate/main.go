package main

// Manage the database schema:
//   go run ./cmd/migrate            # apply pending migrations
//   go run ./cmd/migrate version    # print the schema version
//   go run ./cmd/migrate down       # revert the latest migration

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"billing-backend/internal/shared/config"
	"billing-backend/internal/shared/storage/db"
)

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = strings.ToLower(strings.TrimSpace(os.Args[1]))
	}

	cfg := config.Load()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}

	err = run(ctx, command, sqlDB)
	sqlDB.Close()
	if err != nil {
		log.Printf("migrate %s: %v", command, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, sqlDB *sql.DB) error {
	switch command {
	case "up":
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return err
		}
	case "down":
		if err := db.RollbackMigration(ctx, sqlDB); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown command %q (want up, down or version)", command)
	}

	version, err := db.MigrationVersion(sqlDB)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	log.Printf("schema version %d", version)
	return nil
}
