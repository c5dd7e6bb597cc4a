package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMigrationFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
		t.Fatalf("writing migration file %s: %v", name, err)
	}
}

func TestLoadMigrationRegistryOrdersByVersion(t *testing.T) {
	dir := t.TempDir()
	writeMigrationFile(t, dir, "2_add_email.up.sql", "ALTER TABLE account ADD COLUMN email TEXT;")
	writeMigrationFile(t, dir, "2_add_email.down.sql", "ALTER TABLE account DROP COLUMN email;")
	writeMigrationFile(t, dir, "1_create_account.up.sql", "CREATE TABLE account (id INTEGER PRIMARY KEY);")
	writeMigrationFile(t, dir, "1_create_account.down.sql", "DROP TABLE account;")
	writeMigrationFile(t, dir, "README.md", "not a migration")

	registry, err := LoadMigrationRegistry(dir)
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}

	versions := registry.Versions()
	if len(versions) != 2 || versions[0] != 1 || versions[1] != 2 {
		t.Fatalf("expected versions [1 2], got %v", versions)
	}

	mig, ok := registry.Get(1)
	if !ok {
		t.Fatalf("expected migration 1 to be present")
	}
	if mig.Name != "create_account" {
		t.Fatalf("expected name create_account, got %q", mig.Name)
	}
	if mig.Up == "" || mig.Down == "" {
		t.Fatalf("expected both up and down scripts to be loaded")
	}
}

func TestLoadMigrationRegistryMissingDownIsAllowed(t *testing.T) {
	dir := t.TempDir()
	writeMigrationFile(t, dir, "1_irreversible.up.sql", "CREATE TABLE x (id INTEGER);")

	registry, err := LoadMigrationRegistry(dir)
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}
	mig, ok := registry.Get(1)
	if !ok {
		t.Fatalf("expected migration 1 to be present")
	}
	if mig.Down != "" {
		t.Fatalf("expected no down script, got %q", mig.Down)
	}
}

func TestSplitStatementsDropsEmptyFragments(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (id INT);\n\n  ;\nCREATE TABLE b (id INT);")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %v", len(stmts), stmts)
	}
}

func TestMigrationReportSucceeded(t *testing.T) {
	report := MigrationReport{TargetVersion: 3, FinalVersion: 3}
	if !report.Succeeded() {
		t.Fatalf("expected report to report success when final == target")
	}
	report.FinalVersion = 2
	if report.Succeeded() {
		t.Fatalf("expected report to report failure when final != target")
	}
}
