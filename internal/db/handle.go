package db

import (
	"context"
	"database/sql"
	"fmt"

	"titancore/internal/apperr"
)

// DatabaseHandle is the gateway's single entry point for SQL access: every
// query acquires a pooled connection, runs through its statement cache, and
// releases the connection back to the pool when done.
type DatabaseHandle struct {
	pool *ConnectionPool
}

// NewDatabaseHandle wraps a ConnectionPool as a DatabaseHandle.
func NewDatabaseHandle(pool *ConnectionPool) *DatabaseHandle {
	return &DatabaseHandle{pool: pool}
}

// Query runs a prepared, cached statement and returns its rows. The caller
// must close the returned *sql.Rows.
func (h *DatabaseHandle) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	pc, err := h.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer pc.Release()

	qctx, cancel := context.WithTimeout(ctx, h.pool.cfg.QueryTimeout)
	defer cancel()

	stmt, err := pc.cache.Prepare(qctx, pc.conn, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(qctx, args...)
	if err != nil {
		return nil, apperr.Query(query, err)
	}
	return rows, nil
}

// QuerySingle runs query and scans exactly one row into dest, erroring if
// the result set does not contain exactly one row.
func (h *DatabaseHandle) QuerySingle(ctx context.Context, query string, dest []any, args ...any) error {
	rows, err := h.Query(ctx, query, args...)
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
func (h *DatabaseHandle) QueryScalar(ctx context.Context, dest any, query string, args ...any) error {
	return h.QuerySingle(ctx, query, []any{dest}, args...)
}

// Execute runs a prepared, cached statement that does not return rows and
// reports the number of affected rows.
func (h *DatabaseHandle) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	pc, err := h.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer pc.Release()

	qctx, cancel := context.WithTimeout(ctx, h.pool.cfg.QueryTimeout)
	defer cancel()

	stmt, err := pc.cache.Prepare(qctx, pc.conn, query)
	if err != nil {
		return 0, err
	}
	result, err := stmt.ExecContext(qctx, args...)
	if err != nil {
		return 0, apperr.Query(query, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperr.Query(query, err)
	}
	return n, nil
}

// QueryUnprepared runs query without going through the statement cache —
// useful for ad-hoc administrative statements that are never repeated.
func (h *DatabaseHandle) QueryUnprepared(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	pc, err := h.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer pc.Release()

	qctx, cancel := context.WithTimeout(ctx, h.pool.cfg.QueryTimeout)
	defer cancel()

	rows, err := pc.conn.QueryContext(qctx, query, args...)
	if err != nil {
		return nil, apperr.Query(query, err)
	}
	return rows, nil
}

// Transaction acquires a connection, begins a transaction, and runs fn
// against a *TransactionContext with its own statement cache. fn's error
// rolls the transaction back; success commits it. A panic inside fn is
// recovered and surfaced as an ErrPanic error rather than crashing the
// process or leaking the connection.
func (h *DatabaseHandle) Transaction(ctx context.Context, fn func(tx *TransactionContext) error) (err error) {
	pc, err := h.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer pc.Release()

	sqlTx, err := pc.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Transaction("beginning transaction", err)
	}

	tx := &TransactionContext{
		tx:    sqlTx,
		conn:  pc.conn,
		cache: NewStatementCache(pc.cache.capacity),
		ctx:   ctx,
	}
	defer tx.cache.Close()

	defer func() {
		if r := recover(); r != nil {
			sqlTx.Rollback()
			err = apperr.Panic(r)
		}
	}()

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return apperr.Transaction("rolling back after error", rbErr)
		}
		return fnErr
	}

	if commitErr := sqlTx.Commit(); commitErr != nil {
		return apperr.Transaction("committing transaction", commitErr)
	}
	return nil
}

func truncateSQL(s string) string {
	const max = 100
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
