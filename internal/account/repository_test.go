package account

import (
	"context"
	"database/sql"
	"testing"

	"titancore/internal/crypto"
	"titancore/internal/db"

	_ "modernc.org/sqlite"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("opening in-memory sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	sqlDB.SetMaxOpenConns(1)

	schema := []string{
		`CREATE TABLE account (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			salt BLOB NOT NULL,
			verifier BLOB NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			reg_mail TEXT NOT NULL DEFAULT '',
			joindate TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			session_key BLOB
		)`,
		`CREATE TABLE realmlist (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)`,
		`CREATE TABLE realmcharacters (
			realm_id INTEGER NOT NULL,
			acct_id INTEGER NOT NULL,
			num_chars INTEGER NOT NULL DEFAULT 0,
			UNIQUE (realm_id, acct_id)
		)`,
		`INSERT INTO realmlist (name) VALUES ('Alpha'), ('Beta')`,
	}
	for _, stmt := range schema {
		if _, err := sqlDB.Exec(stmt); err != nil {
			t.Fatalf("applying schema statement: %v", err)
		}
	}

	cfg := db.DefaultPoolConfig()
	cfg.MaxConnections = 1
	pool := db.NewConnectionPool(sqlDB, cfg)
	t.Cleanup(func() { pool.Shutdown(context.Background()) })

	return NewRepository(db.NewDatabaseHandle(pool))
}

func testSaltAndVerifier() (crypto.Salt, crypto.PasswordVerifier) {
	salt, _ := crypto.SaltFromHexBE("CAC94AF32D817BA64B13F18FDEDEF92AD4ED7EF7AB0E19E9F2AE13C828AEAF57")
	verifier := crypto.CalculatePasswordVerifier("USERNAME123", "PASSWORD123", salt)
	return salt, verifier
}

func TestRepositoryCreateAndFindRoundTrips(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	salt, verifier := testSaltAndVerifier()

	created, err := repo.Create(ctx, "username123", "player@example.com", "", salt, verifier)
	if err != nil {
		t.Fatalf("creating account: %v", err)
	}
	if created.Username != "USERNAME123" {
		t.Fatalf("expected uppercased username, got %q", created.Username)
	}

	found, err := repo.FindByUsername(ctx, "username123")
	if err != nil {
		t.Fatalf("finding account: %v", err)
	}
	if found.Salt != salt || found.Verifier != verifier {
		t.Fatalf("round-tripped salt/verifier do not match what was stored")
	}
	if found.SessionKey != nil {
		t.Fatalf("expected no session key for a freshly created account")
	}
}

func TestRepositoryCreateRejectsDuplicateUsername(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	salt, verifier := testSaltAndVerifier()

	if _, err := repo.Create(ctx, "dup", "a@example.com", "", salt, verifier); err != nil {
		t.Fatalf("first creation: %v", err)
	}
	if _, err := repo.Create(ctx, "DUP", "b@example.com", "", salt, verifier); err == nil {
		t.Fatalf("expected duplicate username to be rejected")
	}
}

func TestRepositoryFindByUsernameNotFound(t *testing.T) {
	repo := newTestRepository(t)
	if _, err := repo.FindByUsername(context.Background(), "ghost"); err == nil {
		t.Fatalf("expected a not-found error for an unknown username")
	}
}

func TestRepositorySetSessionKeyPersists(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	salt, verifier := testSaltAndVerifier()

	if _, err := repo.Create(ctx, "reconnector", "c@example.com", "", salt, verifier); err != nil {
		t.Fatalf("creating account: %v", err)
	}

	var key crypto.SessionKey
	for i := range key {
		key[i] = byte(i)
	}
	if err := repo.SetSessionKey(ctx, "reconnector", key); err != nil {
		t.Fatalf("setting session key: %v", err)
	}

	found, err := repo.FindByUsername(ctx, "reconnector")
	if err != nil {
		t.Fatalf("finding account: %v", err)
	}
	if found.SessionKey == nil || *found.SessionKey != key {
		t.Fatalf("expected persisted session key to round trip")
	}
}
