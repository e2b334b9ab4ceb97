package main

import (
	"context"
	"io/fs"
	"log"
	"os"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/aparka/internal/pkg/config"
)

// Applies every .sql file under migrations/ in lexical order. Files are
// idempotent (CREATE IF NOT EXISTS) so re-running is safe.
func main() {
	cfg, err := config.Load("aparka-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	dir := os.DirFS("migrations")
	files, err := fs.Glob(dir, "*.sql")
	if err != nil {
		log.Fatalf("glob migrations: %v", err)
	}
	sort.Strings(files)
	if len(files) == 0 {
		log.Fatal("no migration files found under migrations/")
	}

	for _, f := range files {
		data, err := fs.ReadFile(dir, f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}
		log.Printf("applied %s", f)
	}

	log.Printf("all %d migrations applied", len(files))
}
