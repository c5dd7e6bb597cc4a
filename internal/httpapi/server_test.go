package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"titancore/internal/account"
	"titancore/internal/db"
	"titancore/internal/gateway"

	_ "modernc.org/sqlite"
)

func newTestServer(t *testing.T, operatorPassword string) *Server {
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
			realm_id INTEGER NOT NULL, acct_id INTEGER NOT NULL, num_chars INTEGER NOT NULL DEFAULT 0,
			UNIQUE (realm_id, acct_id)
		)`,
		`CREATE TABLE _migrations (version INTEGER PRIMARY KEY, name TEXT NOT NULL, applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	}
	for _, stmt := range schema {
		if _, err := sqlDB.Exec(stmt); err != nil {
			t.Fatalf("applying schema: %v", err)
		}
	}

	cfg := db.DefaultPoolConfig()
	cfg.MaxConnections = 1
	pool := db.NewConnectionPool(sqlDB, cfg)
	t.Cleanup(func() { pool.Shutdown(context.Background()) })
	handle := db.NewDatabaseHandle(pool)
	repo := account.NewRepository(handle)

	migrationRegistry, err := db.LoadMigrationRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("loading empty migration registry: %v", err)
	}
	migrator := db.NewMigrator(handle, migrationRegistry)
	if err := migrator.Init(context.Background()); err != nil {
		t.Fatalf("initializing migrator tracking table: %v", err)
	}

	var hash string
	if operatorPassword != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(operatorPassword), bcrypt.DefaultCost)
		if err != nil {
			t.Fatalf("hashing operator password: %v", err)
		}
		hash = string(b)
	}

	return NewServer("127.0.0.1:0", Config{
		Accounts:               repo,
		Pool:                   pool,
		Migrator:               migrator,
		Registry:               gateway.NewConnectionRegistry(),
		OperatorCredentialHash: hash,
	})
}

func TestHandleHealthReturnsOK(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleCreateAccountSucceeds(t *testing.T) {
	s := newTestServer(t, "")
	body, _ := json.Marshal(createAccountRequest{Username: "newplayer", Password: "hunter2", Email: "a@b.com"})
	req := httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCreateAccountRejectsOversizedUsername(t *testing.T) {
	s := newTestServer(t, "")
	body, _ := json.Marshal(createAccountRequest{Username: "waytoolongusernamehere", Password: "hunter2"})
	req := httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminEndpointsRequireOperatorCredential(t *testing.T) {
	s := newTestServer(t, "supersecret")

	req := httptest.NewRequest(http.MethodGet, "/admin/pool-stats", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/pool-stats", nil)
	req.SetBasicAuth("operator", "supersecret")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct credentials, got %d", rec.Code)
	}
}

func TestAdminMigrationsEndpointReportsCurrentVersion(t *testing.T) {
	s := newTestServer(t, "supersecret")
	req := httptest.NewRequest(http.MethodGet, "/admin/migrations", nil)
	req.SetBasicAuth("operator", "supersecret")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	if got, ok := body["current_version"]; !ok || got != float64(0) {
		t.Fatalf("expected current_version 0 with no migrations applied, got %v", got)
	}
}
