package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/config"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/logging"
)

const migrationsDir = "migrations"

const ledgerDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|status>")
	}

	cfg, err := config.Load("annuaire-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("annuaire-migrate", cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, ledgerDDL); err != nil {
		log.Fatalf("migration ledger: %v", err)
	}
	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		log.Fatalf("migration ledger: %v", err)
	}

	switch os.Args[1] {
	case "up":
		files := listMigrations(filepath.Join(migrationsDir, "*.sql"))
		n := 0
		for _, f := range files {
			name := filepath.Base(f)
			if applied[name] {
				continue
			}
			if err := run(ctx, pool, f, func(tx pgx.Tx) error {
				_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name)
				return err
			}); err != nil {
				log.Fatalf("up %s: %v", name, err)
			}
			n++
		}
		slog.Info("migrations applied", "count", n)
	case "down":
		files := listMigrations(filepath.Join(migrationsDir, "down", "*.sql"))
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
		n := 0
		for _, f := range files {
			name := filepath.Base(f)
			if !applied[name] {
				continue
			}
			if err := run(ctx, pool, f, func(tx pgx.Tx) error {
				_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE name = $1`, name)
				return err
			}); err != nil {
				log.Fatalf("down %s: %v", name, err)
			}
			n++
		}
		slog.Info("migrations reverted", "count", n)
	case "status":
		for _, f := range listMigrations(filepath.Join(migrationsDir, "*.sql")) {
			name := filepath.Base(f)
			state := "pending"
			if applied[name] {
				state = "applied"
			}
			fmt.Printf("%-8s %s\n", state, name)
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func listMigrations(pattern string) []string {
	files, err := filepath.Glob(pattern)
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no migrations match %s", pattern)
	}
	sort.Strings(files)
	return files
}

func appliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out, nil
}

// run executes one migration file and its ledger update in a single
// transaction.
func run(ctx context.Context, pool *pgxpool.Pool, path string, record func(pgx.Tx) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return err
		}
		if err := record(tx); err != nil {
			return err
		}
		slog.Info("migration", "file", path)
		return nil
	})
}
