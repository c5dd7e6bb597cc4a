package db

import (
	"context"
	"database/sql"
	"fmt"

	"titancore/internal/apperr"
)

// TransactionContext exposes the same query surface as DatabaseHandle,
// scoped to a single transaction and backed by its own statement cache —
// statements prepared outside a transaction cannot be reused inside one.
type TransactionContext struct {
	tx    *sql.Tx
	conn  *sql.Conn
	cache *StatementCache
	ctx   context.Context
}

// Query runs a prepared, cached statement within the transaction.
func (t *TransactionContext) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	stmt, err := t.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.StmtContext(ctx, stmt).QueryContext(ctx, args...)
	if err != nil {
		return nil, apperr.Query(query, err)
	}
	return rows, nil
}

// QuerySingle runs query and scans exactly one row into dest.
func (t *TransactionContext) QuerySingle(ctx context.Context, query string, dest []any, args ...any) error {
	rows, err := t.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		return apperr.NotFoundf("query returned no rows: %s", truncateSQL(query))
	}
	if err := rows.Scan(dest...); err != nil {
		return apperr.Query(query, err)
	}
	if rows.Next() {
		return apperr.Query(query, fmt.Errorf("expected exactly one row, got more"))
	}
	return rows.Err()
}

// QueryScalar runs query and scans column 0 of the first row into dest.
func (t *TransactionContext) QueryScalar(ctx context.Context, dest any, query string, args ...any) error {
	return t.QuerySingle(ctx, query, []any{dest}, args...)
}

// Execute runs a prepared, cached statement within the transaction.
func (t *TransactionContext) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	stmt, err := t.prepare(ctx, query)
	if err != nil {
		return 0, err
	}
	result, err := t.tx.StmtContext(ctx, stmt).ExecContext(ctx, args...)
	if err != nil {
		return 0, apperr.Query(query, err)
	}
	return result.RowsAffected()
}

// ExecuteRaw runs query directly against the transaction without going
// through the statement cache — used by the migration engine to run
// arbitrary, one-shot DDL statements split out of a migration file.
func (t *TransactionContext) ExecuteRaw(ctx context.Context, query string) error {
	if _, err := t.tx.ExecContext(ctx, query); err != nil {
		return apperr.Query(query, err)
	}
	return nil
}

func (t *TransactionContext) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	return t.cache.Prepare(ctx, t.conn, query)
}
