package main

import (
	"database/sql"
	"log"
	"os"

	_ "github.com/lib/pq"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/migrations"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}

	direction := os.Args[1]
	if direction != "up" && direction != "down" {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Ping database: %v", err)
	}

	files, err := migrations.Load(direction)
	if err != nil {
		log.Fatalf("Load migrations: %v", err)
	}

	for _, m := range files {
		log.Printf("Running migration: %s", m.Name)
		if _, err := db.Exec(m.SQL); err != nil {
			log.Fatalf("Execute migration %s: %v", m.Name, err)
		}
	}

	log.Printf("Successfully ran %d migration(s) %s", len(files), direction)
}
