package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/querel/internal/dialects"
)

func TestRelation_Immutability(t *testing.T) {
	base := Table("book")

	filtered := base.Filter(Eq("title", "Emma"))
	limited := base.Limit(3)
	ordered := base.Order("title")

	baseSQL, _ := genSelect(t, base)
	assert.Equal(t, `SELECT * FROM "book"`, baseSQL, "transformations must not touch the receiver")

	filteredSQL, _ := genSelect(t, filtered)
	assert.Contains(t, filteredSQL, "WHERE")
	limitedSQL, _ := genSelect(t, limited)
	assert.Contains(t, limitedSQL, "LIMIT 3")
	orderedSQL, _ := genSelect(t, ordered)
	assert.Contains(t, orderedSQL, "ORDER BY")
}

func TestRelation_FilterConjoins(t *testing.T) {
	r := Table("book").Filter(Eq("a", 1)).Filter(Eq("b", 2))
	sql, args := genSelect(t, r)
	assert.Equal(t, `SELECT * FROM "book" WHERE ("a" = ?) AND ("b" = ?)`, sql)
	assert.Equal(t, []interface{}{1, 2}, args)
}

func TestRelation_FilterIdempotent(t *testing.T) {
	r := Table("book").Filter(Eq("a", 1)).Filter(Eq("a", 1))
	sql, args := genSelect(t, r)
	assert.Equal(t, `SELECT * FROM "book" WHERE "a" = ?`, sql)
	assert.Equal(t, []interface{}{1}, args)
}

func TestRelation_JoinMergeOperator(t *testing.T) {
	tests := []struct {
		name   string
		first  JoinOperator
		second JoinOperator
		wantOp JoinOperator
	}{
		{"required wins over optional", JoinOptional, JoinRequired, JoinRequired},
		{"required wins in either order", JoinRequired, JoinOptional, JoinRequired},
		{"optional stays optional", JoinOptional, JoinOptional, JoinOptional},
		{"required stays required", JoinRequired, JoinRequired, JoinRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Table("book").
				Joining(tt.first, BelongsTo("book", "author")).
				Joining(tt.second, BelongsTo("book", "author"))
			require.NoError(t, r.buildErr)
			j, ok := r.joins.get("author")
			require.True(t, ok)
			assert.Equal(t, tt.wantOp, j.Operator)
		})
	}
}

func TestRelation_IncludingUpgradesJoining(t *testing.T) {
	r := Table("book").
		Joining(JoinRequired, BelongsTo("book", "author")).
		Including(JoinRequired, BelongsTo("book", "author"))
	sql, _ := genSelect(t, r)
	assert.Equal(t, `SELECT "book".*, "author".* FROM "book" JOIN "author" ON "author"."id" = "book"."authorId"`, sql)
}

func TestRelation_IncludingAllReplacesSameKey(t *testing.T) {
	first := HasMany("author", "book").Order("title")
	second := HasMany("author", "book").Order(Desc("price"))

	r := Table("author").IncludingAll(first).IncludingAll(second)
	require.Len(t, r.prefetches, 1)
	assert.Equal(t, "book", r.prefetches[0].Key)
	assert.Equal(t, second.relation.ordering, r.prefetches[0].relation.ordering)
}

func TestRelation_IncludingAllKeepsDistinctKeys(t *testing.T) {
	r := Table("author").
		IncludingAll(HasMany("author", "book")).
		IncludingAll(HasMany("author", "book").WithKey("cheapBooks").Filter(LessThan("price", 10)))
	assert.Len(t, r.prefetches, 2)
}

func TestRelation_MergeUnionsNestedJoins(t *testing.T) {
	// Merging two joins under one key keeps the nested joins of both sides.
	first := BelongsTo("book", "author").Including(JoinRequired, BelongsTo("author", "country"))
	second := BelongsTo("book", "author").Including(JoinRequired, HasMany("author", "book").WithKey("works"))
	r := Table("book").
		Joining(JoinRequired, first).
		Joining(JoinRequired, second)
	require.NoError(t, r.buildErr)

	author, ok := r.joins.get("author")
	require.True(t, ok)
	assert.Equal(t, []string{"country", "works"}, author.Relation.joins.keys)

	sql, _ := genSelect(t, r)
	assert.Contains(t, sql, `JOIN "country" ON "country"."code" = "author"."countryCode"`)
	assert.Contains(t, sql, `JOIN "book" "book1" ON "book1"."authorId" = "author"."id"`)
}

func TestRelation_SubquerySource(t *testing.T) {
	inner := Table("book").Filter(GreaterThan("price", 10))
	q, err := GenerateSelect(Subquery(inner).Limit(5), dialects.GetDialect("sqlite"), libSchema{})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM (SELECT * FROM "book" WHERE "price" > ?) "s" LIMIT 5`, q.SQL)
	assert.Equal(t, []interface{}{10}, q.Args)
}

func TestRelation_BuildErrorSurfacesOnce(t *testing.T) {
	r := Table("book").
		Joining(JoinRequired, BelongsTo("book", "author", "authorId")).
		Joining(JoinRequired, BelongsTo("book", "author", "translatorId"))
	require.Error(t, r.buildErr)

	// Later transformations keep the first error.
	r = r.Filter(Eq("title", "x")).Limit(1)
	_, err := GenerateSelect(r, dialects.GetDialect("sqlite"), libSchema{})
	assert.True(t, IsConfigError(err, UnmergeableJoin))
}
