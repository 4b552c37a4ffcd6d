// Package stmtcache keeps prepared statements for reuse across calls.
//
// Statements are checked out with Prepare and handed back with Release.
// Idle statements live in a least-recently-used list keyed by their SQL
// text; when the list is full the oldest is finalized. A Cache belongs to
// one connection and follows its threading rules.
//
// Close must run before the connection's Close.
package stmtcache

import (
	"fmt"
	"log/slog"

	"github.com/golang/groupcache/lru"

	"github.com/roach88/sqlitell"
)

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits      int
	Misses    int
	Evictions int
	Idle      int // statements waiting in the cache
	Out       int // statements checked out
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for eviction and finalize failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// Cache is an LRU of idle prepared statements.
type Cache struct {
	conn   *sqlitell.Conn
	idle   *lru.Cache
	out    map[*sqlitell.Stmt]struct{}
	logger *slog.Logger
	closed bool
	stats  Stats
}

// New returns a cache holding at most capacity idle statements for conn.
func New(conn *sqlitell.Conn, capacity int, opts ...Option) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("stmtcache: capacity must be positive, got %d", capacity)
	}
	c := &Cache{
		conn:   conn,
		idle:   lru.New(capacity),
		out:    make(map[*sqlitell.Stmt]struct{}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.idle.OnEvicted = c.evicted
	return c, nil
}

func (c *Cache) evicted(key lru.Key, value any) {
	stmt := value.(*sqlitell.Stmt)
	if !c.closed {
		c.stats.Evictions++
		c.logger.Debug("statement evicted", "sql", key)
	}
	c.finalize(stmt)
}

func (c *Cache) finalize(stmt *sqlitell.Stmt) {
	if err := stmt.Finalize(); err != nil {
		c.logger.Warn("finalize cached statement", "sql", stmt.SQL(), "error", err)
	}
}

// Prepare checks out a statement for sql. A cached statement comes back
// reset with its bindings cleared; otherwise a new one is prepared.
func (c *Cache) Prepare(sql string) (*sqlitell.Stmt, error) {
	if c.closed {
		return nil, fmt.Errorf("stmtcache: prepare %q: cache is closed", sql)
	}
	if v, ok := c.idle.Get(sql); ok {
		stmt := v.(*sqlitell.Stmt)
		// Remove runs OnEvicted, so detach the callback for the hand-off.
		c.idle.OnEvicted = nil
		c.idle.Remove(sql)
		c.idle.OnEvicted = c.evicted

		if err := stmt.Reset(); err != nil {
			c.finalize(stmt)
			return nil, fmt.Errorf("stmtcache: reset cached statement: %w", err)
		}
		if err := stmt.ClearBindings(); err != nil {
			c.finalize(stmt)
			return nil, fmt.Errorf("stmtcache: clear bindings: %w", err)
		}
		c.stats.Hits++
		c.out[stmt] = struct{}{}
		return stmt, nil
	}

	stmt, err := c.conn.Prepare(sql)
	if err != nil {
		return nil, err
	}
	c.stats.Misses++
	c.out[stmt] = struct{}{}
	return stmt, nil
}

// Release hands a statement obtained from Prepare back to the cache. If an
// idle statement for the same SQL is already cached, or the cache is
// closed, stmt is finalized instead.
func (c *Cache) Release(stmt *sqlitell.Stmt) {
	if _, ok := c.out[stmt]; !ok {
		c.logger.Warn("release of statement not checked out", "sql", stmt.SQL())
		return
	}
	delete(c.out, stmt)

	if c.closed {
		c.finalize(stmt)
		return
	}
	if _, dup := c.idle.Get(stmt.SQL()); dup {
		c.finalize(stmt)
		return
	}
	if err := stmt.Reset(); err != nil {
		c.logger.Debug("reset on release", "sql", stmt.SQL(), "error", err)
	}
	c.idle.Add(stmt.SQL(), stmt)
}

// Stats reports counters since New.
func (c *Cache) Stats() Stats {
	s := c.stats
	s.Idle = c.idle.Len()
	s.Out = len(c.out)
	return s
}

// Close finalizes every idle statement. Statements still checked out are
// finalized when they are released.
func (c *Cache) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.idle.Clear()
	if n := len(c.out); n > 0 {
		c.logger.Warn("statement cache closed with statements checked out", "statements", n)
	}
}
