package cache

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openStmtDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE t (n INTEGER)`)
	require.NoError(t, err)
	return db
}

func mustPrepare(t *testing.T, db *sql.DB, query string) *sql.Stmt {
	t.Helper()
	stmt, err := db.Prepare(query)
	require.NoError(t, err)
	return stmt
}

func TestStmtCache_AcquireAfterPut(t *testing.T) {
	db := openStmtDB(t)
	c := New(4)

	const query = `SELECT n FROM t WHERE n = ?`
	_, ok := c.Acquire(query)
	assert.False(t, ok, "cold cache misses")

	h := c.Put(query, mustPrepare(t, db, query))
	h.Release()

	h2, ok := c.Acquire(query)
	require.True(t, ok)
	defer h2.Release()

	var n int
	err := h2.Stmt.QueryRow(42).Scan(&n)
	assert.ErrorIs(t, err, sql.ErrNoRows, "cached statement is live")

	stats := c.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
}

func TestStmtCache_PutRaceKeepsCachedStatement(t *testing.T) {
	db := openStmtDB(t)
	c := New(4)

	const query = `SELECT COUNT(*) FROM t`
	first := c.Put(query, mustPrepare(t, db, query))
	second := c.Put(query, mustPrepare(t, db, query))

	assert.Same(t, first.Stmt, second.Stmt, "the loser's statement is discarded")
	first.Release()
	second.Release()

	var n int
	require.NoError(t, first.Stmt.QueryRow().Scan(&n))
	assert.Equal(t, 1, c.Stats().Size)
}

func TestStmtCache_EvictsLeastRecentlyUsed(t *testing.T) {
	db := openStmtDB(t)
	c := New(2)

	queries := []string{
		`SELECT n FROM t WHERE n = 1`,
		`SELECT n FROM t WHERE n = 2`,
		`SELECT n FROM t WHERE n = 3`,
	}
	c.Put(queries[0], mustPrepare(t, db, queries[0])).Release()
	c.Put(queries[1], mustPrepare(t, db, queries[1])).Release()

	// Touch the first so the second becomes the eviction candidate.
	h, ok := c.Acquire(queries[0])
	require.True(t, ok)
	h.Release()

	c.Put(queries[2], mustPrepare(t, db, queries[2])).Release()

	if h, ok := c.Acquire(queries[0]); assert.True(t, ok, "recently used entry survives") {
		h.Release()
	}
	_, ok = c.Acquire(queries[1])
	assert.False(t, ok, "least recently used entry is evicted")
	if h, ok := c.Acquire(queries[2]); assert.True(t, ok) {
		h.Release()
	}
}

func TestStmtCache_EvictionClosesIdleStatement(t *testing.T) {
	db := openStmtDB(t)
	c := New(2)

	old := mustPrepare(t, db, `SELECT n FROM t WHERE n = 1`)
	c.Put(`SELECT n FROM t WHERE n = 1`, old).Release()
	c.Put(`SELECT n FROM t WHERE n = 2`, mustPrepare(t, db, `SELECT n FROM t WHERE n = 2`)).Release()
	c.Put(`SELECT n FROM t WHERE n = 3`, mustPrepare(t, db, `SELECT n FROM t WHERE n = 3`)).Release()

	stats := c.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.EqualValues(t, 1, stats.Evictions)

	_, ok := c.Acquire(`SELECT n FROM t WHERE n = 1`)
	assert.False(t, ok, "oldest entry was evicted")

	var n int
	err := old.QueryRow().Scan(&n)
	require.Error(t, err)
	assert.NotErrorIs(t, err, sql.ErrNoRows, "evicted idle statement is closed")
}

func TestStmtCache_EvictionDefersCloseWhilePinned(t *testing.T) {
	db := openStmtDB(t)
	c := New(1)

	const pinned = `SELECT COUNT(*) FROM t`
	h := c.Put(pinned, mustPrepare(t, db, pinned))

	// Overflow the cache while the first statement is still checked out.
	c.Put(`SELECT n FROM t`, mustPrepare(t, db, `SELECT n FROM t`)).Release()
	assert.EqualValues(t, 1, c.Stats().Evictions)

	var n int
	require.NoError(t, h.Stmt.QueryRow().Scan(&n), "pinned statement survives its eviction")

	h.Release()
	err := h.Stmt.QueryRow().Scan(&n)
	require.Error(t, err, "last release closes the evicted statement")
}

func TestStmtCache_Clear(t *testing.T) {
	db := openStmtDB(t)
	c := New(8)

	held := c.Put(`SELECT COUNT(*) FROM t`, mustPrepare(t, db, `SELECT COUNT(*) FROM t`))
	c.Put(`SELECT n FROM t`, mustPrepare(t, db, `SELECT n FROM t`)).Release()

	c.Clear()
	assert.Equal(t, 0, c.Stats().Size)

	var n int
	require.NoError(t, held.Stmt.QueryRow().Scan(&n), "pinned statement survives Clear")
	held.Release()
}

func TestStmtCache_CapacityFallback(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0).Stats().Capacity)
	assert.Equal(t, DefaultCapacity, New(-3).Stats().Capacity)
	assert.Equal(t, 7, New(7).Stats().Capacity)
}

func BenchmarkStmtCache_AcquireHit(b *testing.B) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		b.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE t (n INTEGER)`); err != nil {
		b.Fatal(err)
	}

	c := New(64)
	for i := 0; i < 8; i++ {
		q := fmt.Sprintf(`SELECT n FROM t WHERE n = %d`, i)
		stmt, err := db.Prepare(q)
		if err != nil {
			b.Fatal(err)
		}
		c.Put(q, stmt).Release()
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h, ok := c.Acquire(`SELECT n FROM t WHERE n = 3`)
		if !ok {
			b.Fatal("expected hit")
		}
		h.Release()
	}
}
