//go:build integration

package core

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/go-sql-driver/mysql"
)

// openMySQL connects to a running MySQL instance. Set MYSQL_DSN, or a local
// default is tried; the test is skipped when neither is reachable.
func openMySQL(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:password@tcp(localhost:3306)/test"
	}

	db, err := Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.SQLDB().PingContext(context.Background()); err != nil {
		_ = db.Close()
		t.Skipf("MySQL not reachable: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMySQLIntegration_QueryLifecycle(t *testing.T) {
	db := openMySQL(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS qr_track`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		CREATE TABLE qr_track (
			id INT AUTO_INCREMENT PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			plays INT NOT NULL
		)`)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = db.ExecContext(ctx, `DROP TABLE qr_track`) })

	_, err = db.ExecContext(ctx, `
		INSERT INTO qr_track (title, plays) VALUES
		('First', 10), ('Second', 50), ('Third', 90)`)
	require.NoError(t, err)

	t.Run("backtick quoting", func(t *testing.T) {
		q, err := GenerateSelect(Table("qr_track").Filter(Eq("title", "First")), db.Dialect(), db.Schema())
		require.NoError(t, err)
		assert.Equal(t, "SELECT * FROM `qr_track` WHERE `title` = ?", q.SQL)
	})

	t.Run("fetch one", func(t *testing.T) {
		row, err := db.FetchOne(ctx, Table("qr_track").Order(Desc("plays")))
		require.NoError(t, err)
		title, ok := row.Get("title")
		require.True(t, ok)
		assert.Equal(t, "Third", asString(title))
	})

	t.Run("delete with limit", func(t *testing.T) {
		// MySQL is the one supported engine where DELETE accepts a LIMIT.
		deleted, err := db.DeleteAll(ctx, Table("qr_track").Order("plays").Limit(1))
		require.NoError(t, err)
		assert.EqualValues(t, 1, deleted)

		n, err := db.FetchCount(ctx, Table("qr_track"))
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		_, err = db.FetchOne(ctx, Table("qr_track").Filter(Eq("title", "First")))
		assert.ErrorIs(t, err, ErrNoRows)
	})
}

// asString normalizes the driver's TEXT representation; go-sql-driver
// returns []byte for string columns scanned into interface{}.
func asString(v interface{}) string {
	switch s := v.(type) {
	case []byte:
		return string(s)
	case string:
		return s
	default:
		return ""
	}
}
