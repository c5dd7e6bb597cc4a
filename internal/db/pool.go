// Package db implements the pooled database handle, prepared-statement
// cache, transaction context, and SQL migration engine backing the auth
// gateway's account storage.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"titancore/internal/apperr"
)

// PoolConfig tunes the connection pool's admission and lifecycle policy.
type PoolConfig struct {
	MinConnections         int
	MaxConnections         int
	AcquireTimeout         time.Duration
	QueryTimeout           time.Duration
	HealthCheckInterval    time.Duration
	IdleTimeout            time.Duration
	StatementCacheCapacity int
}

// DefaultPoolConfig returns the pool's documented defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinConnections:         2,
		MaxConnections:         10,
		AcquireTimeout:         30 * time.Second,
		QueryTimeout:           30 * time.Second,
		HealthCheckInterval:    30 * time.Second,
		IdleTimeout:            600 * time.Second,
		StatementCacheCapacity: 100,
	}
}

// PooledConnection is one pinned *sql.Conn plus its own prepared-statement
// cache, checked out from the ConnectionPool for the duration of one logical
// unit of work.
type PooledConnection struct {
	conn      *sql.Conn
	cache     *StatementCache
	createdAt time.Time
	lastUsed  time.Time

	pool *ConnectionPool
}

func (pc *PooledConnection) touch() {
	pc.lastUsed = time.Now()
}

// Release returns the connection to its pool. Safe to call via defer
// immediately after Acquire succeeds — Go has no destructors, so callers
// must release explicitly rather than relying on scope exit.
func (pc *PooledConnection) Release() {
	pc.pool.release(pc)
}

// PoolStats is a snapshot of a ConnectionPool's admission state.
type PoolStats struct {
	Active  int
	Idle    int
	Total   int
	Waiting int
}

// ConnectionPool bounds concurrent access to the underlying *sql.DB to
// MaxConnections pinned connections, each carrying its own statement cache,
// and runs a background health-check loop that evicts idle connections and
// pings the rest.
type ConnectionPool struct {
	db  *sql.DB
	cfg PoolConfig

	mu      sync.Mutex
	cond    *sync.Cond
	idle    []*PooledConnection
	active  map[*PooledConnection]struct{}
	total   int
	waiting int
	closed  bool

	shutdown chan struct{}
	done     chan struct{}
}

// NewConnectionPool wraps sqlDB with the pool's admission and health-check
// policy and starts the background health-check loop.
func NewConnectionPool(sqlDB *sql.DB, cfg PoolConfig) *ConnectionPool {
	p := &ConnectionPool{
		db:       sqlDB,
		cfg:      cfg,
		active:   make(map[*PooledConnection]struct{}),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.healthCheckLoop()
	return p
}

// Acquire checks out a pooled connection, creating one if the pool is below
// MaxConnections, or blocking (bounded by AcquireTimeout) until one is
// returned.
func (p *ConnectionPool) Acquire(ctx context.Context) (*PooledConnection, error) {
	deadline := time.Now().Add(p.cfg.AcquireTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	p.mu.Lock()
	for {
		if p.closed {
			p.mu.Unlock()
			return nil, apperr.New(apperr.ErrShutdown, "pool is shutting down")
		}

		select {
		case <-ctx.Done():
			p.mu.Unlock()
			return nil, apperr.Wrap(apperr.ErrTimeout, "acquire canceled", ctx.Err())
		default:
		}

		if n := len(p.idle); n > 0 {
			pc := p.idle[n-1]
			p.idle = p.idle[:n-1]
			pc.touch()
			p.active[pc] = struct{}{}
			p.mu.Unlock()
			return pc, nil
		}

		if p.total < p.cfg.MaxConnections {
			p.total++
			p.mu.Unlock()

			pc, err := p.dial(ctx)
			if err != nil {
				p.mu.Lock()
				p.total--
				p.mu.Unlock()
				return nil, apperr.Pool("opening new pooled connection", err)
			}

			p.mu.Lock()
			p.active[pc] = struct{}{}
			p.mu.Unlock()
			return pc, nil
		}

		p.waiting++
		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.waiting--
			p.mu.Unlock()
			return nil, apperr.New(apperr.ErrTimeout, "acquire timed out: pool exhausted")
		}

		timer := time.AfterFunc(remaining, p.cond.Broadcast)
		p.cond.Wait()
		timer.Stop()
		p.waiting--
		// Loop retries from the top with p.mu held.
	}
}

func (p *ConnectionPool) dial(ctx context.Context) (*PooledConnection, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	conn, err := p.db.Conn(acquireCtx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &PooledConnection{
		conn:      conn,
		cache:     NewStatementCache(p.cfg.StatementCacheCapacity),
		createdAt: now,
		lastUsed:  now,
		pool:      p,
	}, nil
}

// release returns pc to the idle set, unless the pool is shutting down, in
// which case the underlying connection is closed outright.
func (p *ConnectionPool) release(pc *PooledConnection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.active, pc)

	if p.closed {
		p.closeConnLocked(pc)
		p.cond.Signal()
		return
	}

	pc.touch()
	p.idle = append(p.idle, pc)
	p.cond.Signal()
}

func (p *ConnectionPool) closeConnLocked(pc *PooledConnection) {
	pc.cache.Close()
	pc.conn.Close()
	p.total--
}

// Stats returns a snapshot of the pool's current admission state.
func (p *ConnectionPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Active:  len(p.active),
		Idle:    len(p.idle),
		Total:   p.total,
		Waiting: p.waiting,
	}
}

// healthCheckLoop periodically evicts idle connections past IdleTimeout
// (never dropping below MinConnections) and pings the survivors with
// PingContext, discarding any that fail.
func (p *ConnectionPool) healthCheckLoop() {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.runHealthCheck()
		}
	}
}

func (p *ConnectionPool) runHealthCheck() {
	p.mu.Lock()
	now := time.Now()
	survivors := p.idle[:0]
	for _, pc := range p.idle {
		if p.total > p.cfg.MinConnections && now.Sub(pc.lastUsed) > p.cfg.IdleTimeout {
			p.closeConnLocked(pc)
			continue
		}
		survivors = append(survivors, pc)
	}
	// Pull every survivor out of p.idle before unlocking, so Acquire can't
	// hand one of them to a caller while it's mid-ping below.
	toProbe := survivors
	p.idle = nil
	p.mu.Unlock()

	var alive, dead []*PooledConnection
	for _, pc := range toProbe {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.QueryTimeout)
		err := pc.conn.PingContext(ctx)
		cancel()
		if err != nil {
			dead = append(dead, pc)
		} else {
			alive = append(alive, pc)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle = append(p.idle, alive...)
	for _, pc := range dead {
		p.closeConnLocked(pc)
	}
	if len(alive) > 0 {
		p.cond.Broadcast()
	}
}

// Shutdown stops accepting new acquisitions, waits up to 30 seconds for
// outstanding connections to be released, then closes every idle
// connection.
func (p *ConnectionPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.shutdown)
	p.cond.Broadcast()
	p.mu.Unlock()

	<-p.done

	deadline := time.Now().Add(30 * time.Second)
	for {
		p.mu.Lock()
		if len(p.active) == 0 {
			break
		}
		p.mu.Unlock()

		if time.Now().After(deadline) {
			return apperr.New(apperr.ErrTimeout, fmt.Sprintf("shutdown timed out with %d active connections", len(p.active)))
		}
		select {
		case <-ctx.Done():
			return apperr.Wrap(apperr.ErrShutdown, "shutdown canceled", ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}

	for _, pc := range p.idle {
		p.closeConnLocked(pc)
	}
	p.idle = nil
	p.mu.Unlock()
	return nil
}
