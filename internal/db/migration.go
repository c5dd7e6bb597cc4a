package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"titancore/internal/apperr"
)

// Migration is one forward/backward SQL pair identified by a monotonic
// version number.
type Migration struct {
	Version int64
	Name    string
	Up      string
	Down    string // empty if no .down.sql file was found
}

// MigrationRegistry is the set of migrations known to the migrator, ordered
// ascending by version.
type MigrationRegistry struct {
	byVersion map[int64]Migration
	versions  []int64
}

var migrationFilenamePattern = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// LoadMigrationRegistry scans dir for `<version>_<name>.up.sql` /
// `.down.sql` pairs and builds an ordered registry from them.
func LoadMigrationRegistry(dir string) (*MigrationRegistry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migration directory %s: %w", dir, err)
	}

	byVersion := make(map[int64]Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := migrationFilenamePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		version, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		name, direction := m[2], m[3]

		contents, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading migration file %s: %w", entry.Name(), err)
		}

		mig := byVersion[version]
		mig.Version = version
		mig.Name = name
		if direction == "up" {
			mig.Up = string(contents)
		} else {
			mig.Down = string(contents)
		}
		byVersion[version] = mig
	}

	versions := make([]int64, 0, len(byVersion))
	for v := range byVersion {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	return &MigrationRegistry{byVersion: byVersion, versions: versions}, nil
}

// Versions returns every known migration version, ascending.
func (r *MigrationRegistry) Versions() []int64 {
	out := make([]int64, len(r.versions))
	copy(out, r.versions)
	return out
}

// Get returns the migration at version, if known.
func (r *MigrationRegistry) Get(version int64) (Migration, bool) {
	m, ok := r.byVersion[version]
	return m, ok
}

// MigrationReport summarizes the outcome of a migrate_to call.
type MigrationReport struct {
	InitialVersion int64
	TargetVersion  int64
	FinalVersion   int64
	Applied        []int64
	Reverted       []int64
}

// Succeeded reports whether the migrator reached its target.
func (r MigrationReport) Succeeded() bool {
	return r.FinalVersion == r.TargetVersion
}

const defaultMigrationsTable = "_migrations"

// Migrator applies and reverts migrations from a MigrationRegistry against
// a DatabaseHandle, tracking applied versions in a _migrations table.
type Migrator struct {
	handle    *DatabaseHandle
	registry  *MigrationRegistry
	tableName string
}

// NewMigrator creates a Migrator using the default `_migrations` tracking
// table name.
func NewMigrator(handle *DatabaseHandle, registry *MigrationRegistry) *Migrator {
	return &Migrator{handle: handle, registry: registry, tableName: defaultMigrationsTable}
}

// Init idempotently creates the tracking table.
func (m *Migrator) Init(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`, m.tableName)
	_, err := m.handle.Execute(ctx, ddl)
	return err
}

// CurrentVersion returns MAX(version) from the tracking table, or 0 if no
// migrations have been applied yet.
func (m *Migrator) CurrentVersion(ctx context.Context) (int64, error) {
	var current sql.NullInt64
	query := fmt.Sprintf("SELECT MAX(version) FROM %s", m.tableName)
	if err := m.handle.QueryScalar(ctx, &current, query); err != nil {
		return 0, err
	}
	if !current.Valid {
		return 0, nil
	}
	return current.Int64, nil
}

// Pending returns every registered migration strictly newer than the
// current applied version.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, v := range m.registry.Versions() {
		if v > current {
			mig, _ := m.registry.Get(v)
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// MigrateTo applies (target >= current) or reverts (target < current)
// migrations until current_version() equals target.
func (m *Migrator) MigrateTo(ctx context.Context, target int64) (MigrationReport, error) {
	if err := m.Init(ctx); err != nil {
		return MigrationReport{}, err
	}

	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return MigrationReport{}, err
	}

	report := MigrationReport{InitialVersion: current, TargetVersion: target, FinalVersion: current}
	if target == current {
		return report, nil
	}

	if target > current {
		for _, v := range m.registry.Versions() {
			if v <= current || v > target {
				continue
			}
			mig, _ := m.registry.Get(v)
			if err := m.applyOne(ctx, mig); err != nil {
				return report, err
			}
			report.Applied = append(report.Applied, v)
			report.FinalVersion = v
		}
		return report, nil
	}

	versions := m.registry.Versions()
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		if v <= target || v > current {
			continue
		}
		mig, _ := m.registry.Get(v)
		if mig.Down == "" {
			return report, apperr.New(apperr.ErrQuery, fmt.Sprintf("migration %d has no down script", v))
		}
		if err := m.revertOne(ctx, mig); err != nil {
			return report, err
		}
		report.Reverted = append(report.Reverted, v)

		// The new current version is whatever's directly below v in the
		// registry (0 once the lowest migration is reverted). If that is
		// already at or below target, this was the last revert in the chain.
		report.FinalVersion = 0
		if i-1 >= 0 {
			report.FinalVersion = versions[i-1]
		}
	}
	return report, nil
}

func (m *Migrator) applyOne(ctx context.Context, mig Migration) error {
	return m.handle.Transaction(ctx, func(tx *TransactionContext) error {
		for _, stmt := range splitStatements(mig.Up) {
			if err := tx.ExecuteRaw(ctx, stmt); err != nil {
				return err
			}
		}
		_, err := tx.Execute(ctx,
			fmt.Sprintf("INSERT INTO %s (version, name) VALUES (?, ?)", m.tableName),
			mig.Version, mig.Name)
		return err
	})
}

func (m *Migrator) revertOne(ctx context.Context, mig Migration) error {
	return m.handle.Transaction(ctx, func(tx *TransactionContext) error {
		for _, stmt := range splitStatements(mig.Down) {
			if err := tx.ExecuteRaw(ctx, stmt); err != nil {
				return err
			}
		}
		_, err := tx.Execute(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE version = ?", m.tableName),
			mig.Version)
		return err
	})
}

// splitStatements splits a migration file body into individual statements
// on `;`, dropping empty/whitespace-only fragments.
func splitStatements(body string) []string {
	parts := strings.Split(body, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
