package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"carwatch/migrations"
)

var commands = map[string]func(*sql.DB) error{
	"up":      func(db *sql.DB) error { return goose.Up(db, ".") },
	"up-one":  func(db *sql.DB) error { return goose.UpByOne(db, ".") },
	"down":    func(db *sql.DB) error { return goose.Down(db, ".") },
	"status":  func(db *sql.DB) error { return goose.Status(db, ".") },
	"version": func(db *sql.DB) error { return goose.Version(db, ".") },
	"reset":   func(db *sql.DB) error { return goose.Reset(db, ".") },
}

func main() {
	dbPath := flag.String("db", envOrDefault("DATABASE_PATH", "./data/carwatch.db"), "sqlite database path")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	run, ok := commands[flag.Arg(0)]
	if !ok {
		log.Fatalf("unknown command %q", flag.Arg(0))
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("open %s: %v", *dbPath, err)
	}
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}

	if err := run(db); err != nil {
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Manage the carwatch listing database schema.

Usage:
  migrate [-db path] <command>

Commands:
  up       apply all pending migrations
  up-one   apply the next pending migration
  down     roll back the most recent migration
  status   print per-migration status
  version  print the current schema version
  reset    roll back everything

The database path defaults to $DATABASE_PATH, then ./data/carwatch.db.
`)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
