package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// openLibraryDB opens an in-memory database seeded with authors and books.
func openLibraryDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE author (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE book (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			authorId INTEGER NOT NULL REFERENCES author(id),
			title TEXT NOT NULL,
			price INTEGER NOT NULL
		)`,
		`INSERT INTO author (id, name) VALUES
			(1, 'Jane Austen'),
			(2, 'Herman Melville'),
			(3, 'Unpublished')`,
		`INSERT INTO book (authorId, title, price) VALUES
			(1, 'Emma', 20),
			(1, 'Persuasion', 18),
			(2, 'Moby-Dick', 22)`,
		`CREATE TABLE chapter (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bookId INTEGER NOT NULL REFERENCES book(id),
			num INTEGER NOT NULL,
			heading TEXT NOT NULL
		)`,
		`INSERT INTO chapter (bookId, num, heading) VALUES
			(1, 1, 'Chapter I'),
			(1, 2, 'Chapter II'),
			(3, 1, 'Loomings')`,
	}
	for _, stmt := range stmts {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return db
}

func TestFetch_PrefetchGroupsByParent(t *testing.T) {
	db := openLibraryDB(t)
	ctx := context.Background()

	rows, err := db.Fetch(ctx, Table("author").Order("id").IncludingAll(HasMany("author", "book").Order("title")))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	austen, melville, unpublished := rows[0], rows[1], rows[2]

	books, ok := austen.Prefetched("book")
	require.True(t, ok)
	require.Len(t, books, 2)
	title, _ := books[0].Get("title")
	assert.Equal(t, "Emma", title)
	title, _ = books[1].Get("title")
	assert.Equal(t, "Persuasion", title)

	books, ok = melville.Prefetched("book")
	require.True(t, ok)
	require.Len(t, books, 1)

	books, ok = unpublished.Prefetched("book")
	require.True(t, ok, "parents without children still get a prefetch entry")
	assert.NotNil(t, books)
	assert.Empty(t, books)
}

func TestFetch_PrefetchAnnotatesMissingPivot(t *testing.T) {
	db := openLibraryDB(t)
	ctx := context.Background()

	// The parent selection lacks the pivot column; the engine adds it under
	// the reserved prefix without disturbing the visible columns.
	rows, err := db.Fetch(ctx, Table("author").Select("name").Order("name").IncludingAll(HasMany("author", "book")))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	name, ok := rows[0].Get("name")
	require.True(t, ok)
	assert.Equal(t, "Herman Melville", name)

	books, ok := rows[0].Prefetched("book")
	require.True(t, ok)
	assert.Len(t, books, 1)
}

func TestFetch_NestedPrefetch(t *testing.T) {
	db := openLibraryDB(t)
	ctx := context.Background()

	r := Table("author").Order("id").
		IncludingAll(HasMany("author", "book").Order("title").
			IncludingAll(HasMany("book", "chapter").Order("num")))
	rows, err := db.Fetch(ctx, r)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	books, ok := rows[0].Prefetched("book")
	require.True(t, ok)
	require.Len(t, books, 2)

	chapters, ok := books[0].Prefetched("chapter")
	require.True(t, ok)
	require.Len(t, chapters, 2)
	heading, _ := chapters[0].Get("heading")
	assert.Equal(t, "Chapter I", heading)

	chapters, ok = books[1].Prefetched("chapter")
	require.True(t, ok)
	assert.Empty(t, chapters)
}

func TestFetch_NestedPrefetchUnderNarrowedSelection(t *testing.T) {
	db := openLibraryDB(t)
	ctx := context.Background()

	// The intermediate selection omits its own key; the engine must add it
	// for the grandchild's grouping, at every level, not just the root.
	r := Table("author").Order("id").
		IncludingAll(HasMany("author", "book").Select("title").Order("title").
			IncludingAll(HasMany("book", "chapter").Order("num")))
	rows, err := db.Fetch(ctx, r)
	require.NoError(t, err)

	books, ok := rows[1].Prefetched("book")
	require.True(t, ok)
	require.Len(t, books, 1)
	title, _ := books[0].Get("title")
	assert.Equal(t, "Moby-Dick", title)

	chapters, ok := books[0].Prefetched("chapter")
	require.True(t, ok)
	require.Len(t, chapters, 1)
	heading, _ := chapters[0].Get("heading")
	assert.Equal(t, "Loomings", heading)
}

func TestFetch_PrefetchRespectsAssociationFilter(t *testing.T) {
	db := openLibraryDB(t)
	ctx := context.Background()

	assoc := HasMany("author", "book").Filter(GreaterThan("price", 18)).WithKey("pricier")
	rows, err := db.Fetch(ctx, Table("author").Order("id").IncludingAll(assoc))
	require.NoError(t, err)

	books, _ := rows[0].Prefetched("pricier")
	require.Len(t, books, 1)
	title, _ := books[0].Get("title")
	assert.Equal(t, "Emma", title)
}

func TestFetch_ScopedRowsFollowJoins(t *testing.T) {
	db := openLibraryDB(t)
	ctx := context.Background()

	r := Table("book").Order("title").Including(JoinRequired, BelongsTo("book", "author"))
	rows, err := db.Fetch(ctx, r)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	title, ok := rows[0].Get("title")
	require.True(t, ok)
	assert.Equal(t, "Emma", title)

	author, ok := rows[0].Scoped("author")
	require.True(t, ok)
	name, ok := author.Get("name")
	require.True(t, ok)
	assert.Equal(t, "Jane Austen", name)

	_, ok = rows[0].Scoped("translator")
	assert.False(t, ok)
}

func TestFetch_JoiningHasNoScope(t *testing.T) {
	db := openLibraryDB(t)
	ctx := context.Background()

	r := Table("book").Joining(JoinRequired, BelongsTo("book", "author").Filter(Eq("name", "Jane Austen")))
	rows, err := db.Fetch(ctx, r)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	for _, row := range rows {
		assert.Empty(t, row.ScopeKeys())
	}
}

func TestFetch_OptionalJoinKeepsUnmatchedParents(t *testing.T) {
	db := openLibraryDB(t)
	ctx := context.Background()

	r := Table("author").Order("id").Including(JoinOptional, HasMany("author", "book").WithKey("anyBook"))
	rows, err := db.Fetch(ctx, r)
	require.NoError(t, err)
	// Three books match plus one NULL-extended row for the unpublished author.
	require.Len(t, rows, 4)

	last := rows[3]
	name, _ := last.Get("name")
	assert.Equal(t, "Unpublished", name)
	scoped, ok := last.Scoped("anyBook")
	require.True(t, ok)
	title, ok := scoped.Get("title")
	require.True(t, ok)
	assert.Nil(t, title)
}

func TestRow_ColumnsAndValues(t *testing.T) {
	db := openLibraryDB(t)
	ctx := context.Background()

	row, err := db.FetchOne(ctx, Table("author").Select("id", "name").Order("id"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, row.Columns())
	require.Len(t, row.Values(), 2)
	assert.Equal(t, "Jane Austen", row.Values()[1])
}

func TestTupleKey_NormalizesIntegerWidths(t *testing.T) {
	assert.Equal(t, tupleKey([]interface{}{int64(7)}), tupleKey([]interface{}{7}))
	assert.Equal(t, tupleKey([]interface{}{"a", int32(1)}), tupleKey([]interface{}{"a", int64(1)}))
	assert.NotEqual(t, tupleKey([]interface{}{"a", "b"}), tupleKey([]interface{}{"ab"}))
}
