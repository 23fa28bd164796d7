// Package cache keeps prepared statements for generated queries. The
// generator produces a small set of distinct SQL strings per application, so
// statements are cached keyed on the rendered SQL and reused across
// executions, with LRU eviction bounding the set.
package cache

import (
	"container/list"
	"database/sql"
	"sync"
)

// DefaultCapacity bounds the cache when no explicit capacity is configured.
const DefaultCapacity = 512

// StmtCache is an LRU cache of prepared statements keyed by generated SQL.
//
// Statements are handed out pinned: Acquire and Put return a Held whose
// Release must be called once the execution is done. Evicting or clearing a
// pinned statement defers the close to its last Release, so a statement is
// never closed out from under a running query.
type StmtCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front is most recently used
	entries  map[string]*list.Element

	hits      uint64
	misses    uint64
	evictions uint64
}

type entry struct {
	sql     string
	stmt    *sql.Stmt
	pins    int
	dropped bool // evicted or cleared while pinned
}

// Held is a pinned statement checked out of the cache.
type Held struct {
	Stmt *sql.Stmt

	cache *StmtCache
	e     *entry
}

// Release returns the pin. The statement is closed here if it was evicted
// while in use.
func (h *Held) Release() {
	h.cache.mu.Lock()
	h.e.pins--
	closeNow := h.e.dropped && h.e.pins == 0
	h.cache.mu.Unlock()
	if closeNow {
		_ = h.e.stmt.Close()
	}
}

// New creates a cache bounded to capacity statements. Non-positive
// capacities fall back to DefaultCapacity.
func New(capacity int) *StmtCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &StmtCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Acquire checks out the statement cached for sqlText, pinning it.
func (c *StmtCache) Acquire(sqlText string) (*Held, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[sqlText]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	e := el.Value.(*entry)
	e.pins++
	return &Held{Stmt: e.stmt, cache: c, e: e}, true
}

// Put stores a freshly prepared statement and checks it out. If another
// preparation of the same SQL won the race, the cached statement is kept,
// the argument is closed, and the cached one is returned.
func (c *StmtCache) Put(sqlText string, stmt *sql.Stmt) *Held {
	c.mu.Lock()

	if el, ok := c.entries[sqlText]; ok {
		c.order.MoveToFront(el)
		e := el.Value.(*entry)
		e.pins++
		c.mu.Unlock()
		_ = stmt.Close()
		return &Held{Stmt: e.stmt, cache: c, e: e}
	}

	for len(c.entries) >= c.capacity {
		if !c.evictOldest() {
			break
		}
	}
	e := &entry{sql: sqlText, stmt: stmt, pins: 1}
	c.entries[sqlText] = c.order.PushFront(e)
	c.mu.Unlock()
	return &Held{Stmt: stmt, cache: c, e: e}
}

// evictOldest drops the least recently used entry. Must be called with the
// lock held. A pinned statement is unlinked but closed on its last Release.
func (c *StmtCache) evictOldest() bool {
	el := c.order.Back()
	if el == nil {
		return false
	}
	c.order.Remove(el)
	e := el.Value.(*entry)
	delete(c.entries, e.sql)
	c.evictions++
	if e.pins == 0 {
		_ = e.stmt.Close()
	} else {
		e.dropped = true
	}
	return true
}

// Clear drops every entry, closing unpinned statements immediately and
// pinned ones on their last Release.
func (c *StmtCache) Clear() {
	c.mu.Lock()
	var toClose []*sql.Stmt
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if e.pins == 0 {
			toClose = append(toClose, e.stmt)
		} else {
			e.dropped = true
		}
	}
	c.order.Init()
	c.entries = make(map[string]*list.Element, c.capacity)
	c.mu.Unlock()

	for _, stmt := range toClose {
		_ = stmt.Close()
	}
}

// Stats is a snapshot of cache effectiveness counters.
type Stats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

func (c *StmtCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:      len(c.entries),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
