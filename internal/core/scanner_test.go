package core

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

type taggedAuthor struct {
	ID       int    `db:"id"`
	FullName string `db:"name"`
}

type bareAuthor struct {
	ID   int
	Name string
}

type authorWithSecret struct {
	ID     int    `db:"id"`
	Name   string `db:"name"`
	Secret string `db:"-"`
}

type timestamps struct {
	CreatedAt string `db:"createdat"`
}

type embeddedAuthor struct {
	taggedAuthor
	timestamps
}

func scannerDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE author (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		createdAt TEXT NOT NULL DEFAULT ''
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO author (id, name, createdAt) VALUES
		(1, 'Jane Austen', '1811-10-30'),
		(2, 'Herman Melville', '1851-10-18')`)
	require.NoError(t, err)
	return db
}

func TestScanStruct_TaggedFields(t *testing.T) {
	db := scannerDB(t)
	rows, err := db.Query("SELECT id, name FROM author WHERE id = 1")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())

	var a taggedAuthor
	require.NoError(t, globalScanner.scanStruct(rows, &a))
	assert.Equal(t, 1, a.ID)
	assert.Equal(t, "Jane Austen", a.FullName)
}

func TestScanStruct_UntaggedFieldsMatchLowercasedNames(t *testing.T) {
	db := scannerDB(t)
	rows, err := db.Query("SELECT id, name FROM author WHERE id = 2")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())

	var a bareAuthor
	require.NoError(t, globalScanner.scanStruct(rows, &a))
	assert.Equal(t, "Herman Melville", a.Name)
}

func TestScanStruct_SkipsIgnoredAndUnmappedColumns(t *testing.T) {
	db := scannerDB(t)
	rows, err := db.Query("SELECT id, name, createdAt FROM author WHERE id = 1")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())

	var a authorWithSecret
	require.NoError(t, globalScanner.scanStruct(rows, &a))
	assert.Equal(t, "Jane Austen", a.Name)
	assert.Empty(t, a.Secret, `db:"-" fields are never written`)
}

func TestScanStruct_EmbeddedStructs(t *testing.T) {
	db := scannerDB(t)
	rows, err := db.Query("SELECT id, name, createdAt FROM author WHERE id = 2")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())

	var a embeddedAuthor
	require.NoError(t, globalScanner.scanStruct(rows, &a))
	assert.Equal(t, 2, a.ID)
	assert.Equal(t, "1851-10-18", a.CreatedAt)
}

func TestScanStruct_RejectsNonPointer(t *testing.T) {
	db := scannerDB(t)
	rows, err := db.Query("SELECT id, name FROM author")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())

	var a taggedAuthor
	err = globalScanner.scanStruct(rows, a)
	assert.ErrorContains(t, err, "pointer to struct")
}

func TestScanStructs_SliceOfStructs(t *testing.T) {
	db := scannerDB(t)
	rows, err := db.Query("SELECT id, name FROM author ORDER BY id")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var all []taggedAuthor
	require.NoError(t, globalScanner.scanStructs(rows, &all))
	require.Len(t, all, 2)
	assert.Equal(t, "Jane Austen", all[0].FullName)
	assert.Equal(t, 2, all[1].ID)
}

func TestScanStructs_SliceOfPointers(t *testing.T) {
	db := scannerDB(t)
	rows, err := db.Query("SELECT id, name FROM author ORDER BY id DESC")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var all []*taggedAuthor
	require.NoError(t, globalScanner.scanStructs(rows, &all))
	require.Len(t, all, 2)
	assert.Equal(t, "Herman Melville", all[0].FullName)
}

func TestScanStructs_RejectsNonSlice(t *testing.T) {
	db := scannerDB(t)
	rows, err := db.Query("SELECT id FROM author")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var a taggedAuthor
	err = globalScanner.scanStructs(rows, &a)
	assert.ErrorContains(t, err, "pointer to slice")
}
