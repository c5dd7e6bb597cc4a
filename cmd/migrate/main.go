// Command migrate manages the auth gateway's SQLite schema: inspecting the
// current version, applying or rolling back migrations, and scaffolding new
// migration file pairs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"titancore/internal/database"
	"titancore/internal/db"
)

var migrationNamePattern = regexp.MustCompile(`^(\d+)_`)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var connString, migrationDir string
	var create bool
	flagSet := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagSet.StringVar(&connString, "conn", envOr("DATABASE_CONNECTION", filepath.Join("data", "auth.db")), "path to the SQLite database file")
	flagSet.StringVar(&migrationDir, "dir", envOr("MIGRATION_DIR", "./migrations"), "directory holding migration files")
	flagSet.BoolVar(&create, "create", false, "create the database file if it does not already exist")

	command := os.Args[1]
	args := os.Args[2:]
	if err := flagSet.Parse(args); err != nil {
		log.Fatalf("parsing flags: %v", err)
	}

	if command != "new" && !databaseExists(connString) {
		if !create {
			log.Fatalf("database %s does not exist (pass --create to create it)", connString)
		}
		if err := createDatabase(connString); err != nil {
			log.Fatalf("creating database %s: %v", connString, err)
		}
		fmt.Printf("created database %s\n", connString)
	}

	switch command {
	case "status":
		runStatus(connString, migrationDir)
	case "up":
		runUp(connString, migrationDir)
	case "to":
		runTo(connString, migrationDir, flagSet.Args())
	case "new":
		runNew(migrationDir, flagSet.Args())
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate <status|up|to|new> [--conn path] [--dir path] [--create] [<version>|<name>]")
}

// databaseExists reports whether the SQLite file backing connString is
// already on disk. Ported from the original database_exists helper, which
// checked for a database's existence against the server before connecting;
// SQLite has no separate server to ask, so existence is just a stat on the
// file the connection string names.
func databaseExists(connString string) bool {
	_, err := os.Stat(connString)
	return err == nil
}

// createDatabase materializes the SQLite file (and its parent directory)
// backing connString. Ported from the original create_database helper,
// which issued a CREATE DATABASE against the server's admin connection;
// modernc.org/sqlite has no such concept; opening the path through
// database.Open already creates an empty file as a side effect of
// database/sql's lazy-connect model, so this just forces that to happen
// up front and closes the handle again.
func createDatabase(connString string) error {
	sqlDB, err := database.Open(connString)
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func openMigrator(connString, migrationDir string) (*db.Migrator, *db.ConnectionPool, error) {
	sqlDB, err := database.Open(connString)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	pool := db.NewConnectionPool(sqlDB, db.DefaultPoolConfig())
	handle := db.NewDatabaseHandle(pool)

	registry, err := db.LoadMigrationRegistry(migrationDir)
	if err != nil {
		pool.Shutdown(context.Background())
		return nil, nil, fmt.Errorf("loading migrations: %w", err)
	}

	migrator := db.NewMigrator(handle, registry)
	if err := migrator.Init(context.Background()); err != nil {
		pool.Shutdown(context.Background())
		return nil, nil, fmt.Errorf("initializing tracking table: %w", err)
	}

	return migrator, pool, nil
}

func runStatus(connString, migrationDir string) {
	migrator, pool, err := openMigrator(connString, migrationDir)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Shutdown(context.Background())

	ctx := context.Background()
	current, err := migrator.CurrentVersion(ctx)
	if err != nil {
		log.Fatalf("reading current version: %v", err)
	}
	pending, err := migrator.Pending(ctx)
	if err != nil {
		log.Fatalf("reading pending migrations: %v", err)
	}

	fmt.Printf("current version: %d\n", current)
	if len(pending) == 0 {
		fmt.Println("up to date")
		return
	}
	fmt.Println("pending migrations:")
	for _, m := range pending {
		fmt.Printf("  %d_%s\n", m.Version, m.Name)
	}
}

func runUp(connString, migrationDir string) {
	migrator, pool, err := openMigrator(connString, migrationDir)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Shutdown(context.Background())

	ctx := context.Background()
	pending, err := migrator.Pending(ctx)
	if err != nil {
		log.Fatalf("reading pending migrations: %v", err)
	}
	if len(pending) == 0 {
		fmt.Println("up to date")
		return
	}

	target := pending[len(pending)-1].Version
	report, err := migrator.MigrateTo(ctx, target)
	if err != nil {
		log.Fatalf("applying migrations: %v", err)
	}
	if !report.Succeeded() {
		log.Fatalf("migration stopped at version %d, wanted %d", report.FinalVersion, report.TargetVersion)
	}
	fmt.Printf("applied %v, now at version %d\n", report.Applied, report.FinalVersion)
}

func runTo(connString, migrationDir string, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: migrate to <version>")
		os.Exit(2)
	}
	target, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		log.Fatalf("invalid version %q: %v", args[0], err)
	}

	migrator, pool, err := openMigrator(connString, migrationDir)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Shutdown(context.Background())

	report, err := migrator.MigrateTo(context.Background(), target)
	if err != nil {
		log.Fatalf("migrating: %v", err)
	}
	if !report.Succeeded() {
		log.Fatalf("migration stopped at version %d, wanted %d", report.FinalVersion, report.TargetVersion)
	}
	fmt.Printf("now at version %d (applied %v, reverted %v)\n", report.FinalVersion, report.Applied, report.Reverted)
}

func runNew(migrationDir string, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: migrate new <name>")
		os.Exit(2)
	}
	name := args[0]

	entries, err := os.ReadDir(migrationDir)
	if err != nil {
		log.Fatalf("reading migration directory: %v", err)
	}
	next := int64(1)
	for _, e := range entries {
		m := migrationNamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		if v >= next {
			next = v + 1
		}
	}

	upPath := filepath.Join(migrationDir, fmt.Sprintf("%d_%s.up.sql", next, name))
	downPath := filepath.Join(migrationDir, fmt.Sprintf("%d_%s.down.sql", next, name))

	header := fmt.Sprintf("-- %s, created %s\n", name, time.Now().Format(time.RFC3339))
	if err := os.WriteFile(upPath, []byte(header), 0644); err != nil {
		log.Fatalf("writing %s: %v", upPath, err)
	}
	if err := os.WriteFile(downPath, []byte(header), 0644); err != nil {
		log.Fatalf("writing %s: %v", downPath, err)
	}

	fmt.Printf("created %s\n", upPath)
	fmt.Printf("created %s\n", downPath)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
