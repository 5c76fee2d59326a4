package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/samirrijal/towerlocator/internal/pkg/config"
)

const migrationsDir = "migrations"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	_ = godotenv.Load()
	cfg, err := config.Load("towerlocator-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	var files []string
	switch os.Args[1] {
	case "up":
		files, err = migrationFiles(migrationsDir, false)
	case "down":
		files, err = migrationFiles(migrationsDir, true)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}

	if err := apply(ctx, pool, files); err != nil {
		log.Fatal(err)
	}
	log.Printf("all %s migrations applied", os.Args[1])
}

// migrationFiles returns the up scripts in order, or the down scripts in reverse.
func migrationFiles(dir string, down bool) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}

	var files []string
	for _, m := range matches {
		if strings.HasSuffix(m, ".down.sql") == down {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	if down {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}
	return files, nil
}

// apply runs every file in a single transaction.
func apply(ctx context.Context, pool *pgxpool.Pool, files []string) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", f, err)
			}
			if _, err := tx.Exec(ctx, string(data)); err != nil {
				return fmt.Errorf("exec %s: %w", f, err)
			}
			fmt.Printf("OK  %s\n", f)
		}
		return nil
	})
}
