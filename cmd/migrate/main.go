package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/better-wallet/smart-account/internal/logger"
)

func main() {
	var (
		envFile   = flag.String("env", ".env", "Optional .env file read before flags default from the environment")
		dsn       = flag.String("dsn", "", "PostgreSQL connection string (default: $POSTGRES_DSN)")
		dir       = flag.String("dir", "migrations", "Directory holding *.up.sql / *.down.sql files")
		direction = flag.String("direction", "up", "Migration direction: up or down")
		steps     = flag.Int("steps", 0, "Number of migrations to run (0 = all)")
	)
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load %s: %v", *envFile, err)
	}
	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	if *dsn == "" {
		*dsn = os.Getenv("POSTGRES_DSN")
	}
	if *dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	if *direction != "up" && *direction != "down" {
		log.Fatalf("Invalid direction %q (must be up or down)", *direction)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, *dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	count, err := migrate(ctx, pool, resolveDir(*dir), *direction, *steps)
	if err != nil {
		slog.Error("migration failed", "error", err)
		pool.Close()
		os.Exit(1)
	}

	if count == 0 {
		slog.Info("no migrations to apply")
	} else {
		slog.Info("migrations applied", "count", count, "direction", *direction)
	}
}

// resolveDir falls back to a migrations directory next to the executable.
func resolveDir(dir string) string {
	if _, err := os.Stat(dir); err == nil {
		return dir
	}
	execPath, err := os.Executable()
	if err != nil {
		return dir
	}
	return filepath.Join(filepath.Dir(execPath), filepath.Base(dir))
}

func migrate(ctx context.Context, pool *pgxpool.Pool, dir, direction string, steps int) (int, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return 0, err
	}

	suffix := "." + direction + ".sql"
	files, err := filepath.Glob(filepath.Join(dir, "*"+suffix))
	if err != nil {
		return 0, fmt.Errorf("failed to find migration files: %w", err)
	}
	sort.Strings(files)
	if direction == "down" {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}

	count := 0
	for _, file := range files {
		version := strings.TrimSuffix(filepath.Base(file), suffix)
		if applied[version] == (direction == "up") {
			continue
		}
		if steps > 0 && count >= steps {
			break
		}
		if err := apply(ctx, pool, file, version, direction); err != nil {
			return count, err
		}
		slog.Info("applied migration", "version", version, "direction", direction)
		count++
	}
	return count, nil
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func apply(ctx context.Context, pool *pgxpool.Pool, file, version, direction string) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read migration file %s: %w", file, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", file, err)
	}

	if direction == "up" {
		_, err = tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version)
	} else {
		_, err = tx.Exec(ctx, "DELETE FROM schema_migrations WHERE version = $1", version)
	}
	if err != nil {
		return fmt.Errorf("failed to update migrations table: %w", err)
	}

	return tx.Commit(ctx)
}
