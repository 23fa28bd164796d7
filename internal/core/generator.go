package core

import (
	"strconv"
	"strings"

	"github.com/coregx/querel/internal/dialects"
)

// finalizedRelation is a relation tree ready for rendering: every level has
// a concrete alias, every embedded expression is qualified, and every
// deferred predicate is resolved.
type finalizedRelation struct {
	alias     *TableAlias
	table     string
	subquery  *Relation
	selection []Selectable
	filter    Expr
	groupBy   []Expr
	having    Expr
	ordering  queryOrdering
	joins     []finalizedJoin
	distinct  bool
	limit     *limitSpec
}

type finalizedJoin struct {
	key string
	op  JoinOperator
	on  Expr
	rel finalizedRelation
}

// finalizeRelation assigns a fresh alias to the relation, qualifies
// everything local, resolves the filter, and recursively finalizes every
// nested join, wiring each join's ON predicate against the parent alias.
func finalizeRelation(r Relation, schema SchemaReader) (finalizedRelation, error) {
	if r.buildErr != nil {
		return finalizedRelation{}, r.buildErr
	}

	alias := r.alias
	if alias == nil {
		alias = newImplicitAlias()
	}
	if r.table != "" {
		if err := alias.setTable(r.table); err != nil {
			return finalizedRelation{}, err
		}
	} else if r.subquery != nil && alias.identityName() == "" {
		alias.root().userName = "s"
	}

	fr := finalizedRelation{
		alias:    alias,
		table:    r.table,
		subquery: r.subquery,
		distinct: r.distinct,
		limit:    r.limit,
	}

	fr.selection = make([]Selectable, len(r.selection))
	for i, s := range r.selection {
		fr.selection[i] = qualifiedSelectable(s, alias)
	}
	fr.groupBy = make([]Expr, len(r.groupBy))
	for i, g := range r.groupBy {
		fr.groupBy[i] = qualifiedExpr(g, alias)
	}
	if r.having != nil {
		fr.having = qualifiedExpr(r.having, alias)
	}
	fr.ordering = r.ordering.qualified(alias)

	if r.filter != nil {
		filter, err := r.filter.resolve(schema, r.table, alias)
		if err != nil {
			return finalizedRelation{}, err
		}
		fr.filter = filter
	}

	err := r.joins.each(func(key string, j Join) error {
		child, err := finalizeRelation(j.Relation, schema)
		if err != nil {
			return err
		}
		on, err := j.Condition.expression(schema, alias, child.alias)
		if err != nil {
			return err
		}
		// The joined relation's filter folds into the ON clause.
		if child.filter != nil {
			on = And(on, child.filter)
			child.filter = nil
		}
		fr.joins = append(fr.joins, finalizedJoin{key: key, op: j.Operator, on: on, rel: child})
		return nil
	})
	if err != nil {
		return finalizedRelation{}, err
	}
	return fr, nil
}

// collectAliases gathers the tree's aliases depth-first, parents before
// their joins.
func collectAliases(fr finalizedRelation, out []*TableAlias) []*TableAlias {
	out = append(out, fr.alias)
	for _, j := range fr.joins {
		out = collectAliases(j.rel, out)
	}
	return out
}

// validateJoinOperators rejects a required join nested behind an optional
// one: once an ancestor renders as LEFT JOIN, required semantics cannot be
// expressed, since NULL-extended rows would falsely satisfy the inner join.
func validateJoinOperators(fr finalizedRelation, behindOptional bool) error {
	for _, j := range fr.joins {
		if behindOptional && j.op == JoinRequired {
			return configErrorf(RequiredJoinBehindOptional,
				"not implemented: chaining a required association %q behind an optional association", j.key)
		}
		if err := validateJoinOperators(j.rel, behindOptional || j.op == JoinOptional); err != nil {
			return err
		}
	}
	return nil
}

// resolveNames computes the alias name map and whether column references
// need alias qualification (more than one table occurrence).
func resolveNames(fr finalizedRelation) (map[*TableAlias]string, bool, error) {
	aliases := collectAliases(fr, nil)
	names, err := resolvedAliasNames(aliases)
	if err != nil {
		return nil, false, err
	}
	roots := make(map[*TableAlias]bool)
	for _, a := range aliases {
		roots[a.root()] = true
	}
	return names, len(roots) > 1, nil
}

// GeneratedQuery is the output of one generation pass: parameterized SQL,
// the bound arguments in placeholder order, and the row layout matching the
// join tree.
type GeneratedQuery struct {
	SQL    string
	Args   []interface{}
	Layout *ScopeLayout
}

// GenerateSelect renders a relation as a SELECT statement.
func GenerateSelect(r Relation, dialect dialects.Dialect, schema SchemaReader) (*GeneratedQuery, error) {
	fr, err := finalizeRelation(r, schema)
	if err != nil {
		return nil, err
	}
	if len(fr.selection) == 0 {
		return nil, configErrorf(EmptySelection, "relation %q selects nothing", r.table)
	}
	if err := validateJoinOperators(fr, false); err != nil {
		return nil, err
	}
	names, qualify, err := resolveNames(fr)
	if err != nil {
		return nil, err
	}

	ctx := newGenContext(dialect, schema)
	ctx.names, ctx.qualify = names, qualify

	sql, err := renderSelectStatement(fr, ctx)
	if err != nil {
		return nil, err
	}
	layout, err := computeLayout(fr, schema)
	if err != nil {
		return nil, err
	}
	return &GeneratedQuery{SQL: sql, Args: ctx.arguments(), Layout: layout}, nil
}

// renderSubquery renders a relation as a nested SELECT sharing the outer
// pass's binder, so placeholder numbering stays continuous. The subquery
// resolves its own alias scope.
func renderSubquery(r Relation, ctx *genContext) (string, error) {
	fr, err := finalizeRelation(r, ctx.schema)
	if err != nil {
		return "", err
	}
	if err := validateJoinOperators(fr, false); err != nil {
		return "", err
	}
	names, qualify, err := resolveNames(fr)
	if err != nil {
		return "", err
	}
	return renderSelectStatement(fr, ctx.subContext(names, qualify))
}

func renderSelectStatement(fr finalizedRelation, ctx *genContext) (string, error) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if fr.distinct {
		b.WriteString("DISTINCT ")
	}

	sel, err := collectSelectionSQL(fr, ctx, nil)
	if err != nil {
		return "", err
	}
	b.WriteString(strings.Join(sel, ", "))

	from, err := sourceSQL(fr, ctx)
	if err != nil {
		return "", err
	}
	b.WriteString(" FROM ")
	b.WriteString(from)

	if err := writeJoinClauses(&b, fr.joins, ctx); err != nil {
		return "", err
	}

	if fr.filter != nil {
		where, err := renderExpr(fr.filter, ctx, false)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}

	if len(fr.groupBy) > 0 {
		parts := make([]string, len(fr.groupBy))
		for i, g := range fr.groupBy {
			sql, err := renderExpr(g, ctx, false)
			if err != nil {
				return "", err
			}
			parts[i] = sql
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(parts, ", "))
	}

	if fr.having != nil {
		having, err := renderExpr(fr.having, ctx, false)
		if err != nil {
			return "", err
		}
		b.WriteString(" HAVING ")
		b.WriteString(having)
	}

	order, err := collectOrderingSQL(fr, ctx, nil)
	if err != nil {
		return "", err
	}
	if len(order) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(order, ", "))
	}

	writeLimit(&b, fr.limit)
	return b.String(), nil
}

// collectSelectionSQL renders the relation's own selection followed by every
// descendant join's selection, in join-insertion order. The concatenation
// order defines the flat row's column layout.
func collectSelectionSQL(fr finalizedRelation, ctx *genContext, out []string) ([]string, error) {
	for _, s := range fr.selection {
		sql, err := renderSelectable(s, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, sql)
	}
	for _, j := range fr.joins {
		var err error
		out, err = collectSelectionSQL(j.rel, ctx, out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// collectOrderingSQL folds the root ordering with every descendant join's
// ordering, in join order, each reversed if its reversal flag is set.
func collectOrderingSQL(fr finalizedRelation, ctx *genContext, out []string) ([]string, error) {
	for _, t := range fr.ordering.resolvedTerms(fr.alias) {
		sql, err := renderOrderingTerm(t, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, sql)
	}
	for _, j := range fr.joins {
		var err error
		out, err = collectOrderingSQL(j.rel, ctx, out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// sourceSQL renders a FROM or JOIN source: the quoted table, plus an explicit
// alias whenever the resolved name differs from the bare table name.
func sourceSQL(fr finalizedRelation, ctx *genContext) (string, error) {
	name := ctx.aliasName(fr.alias)
	if fr.subquery != nil {
		sub, err := renderSubquery(*fr.subquery, ctx)
		if err != nil {
			return "", err
		}
		return "(" + sub + ") " + ctx.dialect.QuoteIdentifier(name), nil
	}
	sql := ctx.dialect.QuoteIdentifier(fr.table)
	if !strings.EqualFold(name, fr.table) {
		sql += " " + ctx.dialect.QuoteIdentifier(name)
	}
	return sql, nil
}

func writeJoinClauses(b *strings.Builder, joins []finalizedJoin, ctx *genContext) error {
	for _, j := range joins {
		if j.op == JoinOptional {
			b.WriteString(" LEFT JOIN ")
		} else {
			b.WriteString(" JOIN ")
		}
		src, err := sourceSQL(j.rel, ctx)
		if err != nil {
			return err
		}
		b.WriteString(src)
		on, err := renderExpr(j.on, ctx, false)
		if err != nil {
			return err
		}
		b.WriteString(" ON ")
		b.WriteString(on)
		if err := writeJoinClauses(b, j.rel.joins, ctx); err != nil {
			return err
		}
	}
	return nil
}

// writeLimit renders LIMIT and OFFSET as integer literals: engines disagree
// on binding them, so they are never parameterized.
func writeLimit(b *strings.Builder, limit *limitSpec) {
	if limit == nil {
		return
	}
	b.WriteString(" LIMIT ")
	b.WriteString(strconv.Itoa(limit.limit))
	if limit.offset != nil {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(*limit.offset))
	}
}

// GenerateDelete renders a relation as a DELETE statement. Relations with
// grouping, having, or joins cannot be deleted from; LIMIT requires engine
// support.
func GenerateDelete(r Relation, dialect dialects.Dialect, schema SchemaReader) (*GeneratedQuery, error) {
	if r.buildErr != nil {
		return nil, r.buildErr
	}
	if len(r.groupBy) > 0 || r.having != nil || !r.joins.isEmpty() {
		return nil, configErrorf(UngroupableDelete,
			"cannot delete from relation %q: DELETE supports neither GROUP BY, HAVING, nor joins", r.table)
	}
	if r.limit != nil && !dialect.SupportsDeleteLimit() {
		return nil, configErrorf(UngroupableDelete,
			"cannot delete from relation %q: engine does not support DELETE ... LIMIT", r.table)
	}

	fr, err := finalizeRelation(r, schema)
	if err != nil {
		return nil, err
	}
	ctx := newGenContext(dialect, schema)

	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(dialect.QuoteIdentifier(fr.table))

	if fr.filter != nil {
		where, err := renderExpr(fr.filter, ctx, false)
		if err != nil {
			return nil, err
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}

	if fr.limit != nil {
		order, err := collectOrderingSQL(fr, ctx, nil)
		if err != nil {
			return nil, err
		}
		if len(order) > 0 {
			b.WriteString(" ORDER BY ")
			b.WriteString(strings.Join(order, ", "))
		}
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(fr.limit.limit))
	}

	return &GeneratedQuery{SQL: b.String(), Args: ctx.arguments()}, nil
}

// GenerateCount renders a counting statement for a relation.
//
// Grouped or limited relations count by wrapping the whole query in a
// trivial SELECT COUNT(*) subquery. A single selected expression counts as
// COUNT(expr), or COUNT(DISTINCT expr) for distinct relations. Everything
// else counts rows with COUNT(*); multi-column distinct selections fall back
// to the wrapped form, since row-distinctness is not countable per column.
func GenerateCount(r Relation, dialect dialects.Dialect, schema SchemaReader) (*GeneratedQuery, error) {
	if r.buildErr != nil {
		return nil, r.buildErr
	}
	if len(r.groupBy) > 0 || r.limit != nil {
		return wrappedCount(r, dialect, schema)
	}

	if len(r.selection) == 1 {
		if sel, ok := r.selection[0].(SelectionExpr); ok {
			return expressionCount(r, sel, r.distinct, dialect, schema)
		}
	}
	if r.distinct {
		return wrappedCount(r, dialect, schema)
	}

	return simpleCount(r, "COUNT(*)", dialect, schema)
}

func expressionCount(r Relation, sel SelectionExpr, distinct bool, dialect dialects.Dialect, schema SchemaReader) (*GeneratedQuery, error) {
	fr, err := finalizeRelation(r, schema)
	if err != nil {
		return nil, err
	}
	if err := validateJoinOperators(fr, false); err != nil {
		return nil, err
	}
	names, qualify, err := resolveNames(fr)
	if err != nil {
		return nil, err
	}
	ctx := newGenContext(dialect, schema)
	ctx.names, ctx.qualify = names, qualify

	expr, err := renderExpr(qualifiedExpr(sel.Expr, fr.alias), ctx, false)
	if err != nil {
		return nil, err
	}
	countSQL := "COUNT(" + expr + ")"
	if distinct {
		countSQL = "COUNT(DISTINCT " + expr + ")"
	}
	return renderCountBody(fr, countSQL, ctx)
}

func simpleCount(r Relation, countSQL string, dialect dialects.Dialect, schema SchemaReader) (*GeneratedQuery, error) {
	fr, err := finalizeRelation(r, schema)
	if err != nil {
		return nil, err
	}
	if err := validateJoinOperators(fr, false); err != nil {
		return nil, err
	}
	names, qualify, err := resolveNames(fr)
	if err != nil {
		return nil, err
	}
	ctx := newGenContext(dialect, schema)
	ctx.names, ctx.qualify = names, qualify
	return renderCountBody(fr, countSQL, ctx)
}

// renderCountBody renders SELECT <count> FROM ... with joins and filter, but
// without ordering or limit, which cannot change a count.
func renderCountBody(fr finalizedRelation, countSQL string, ctx *genContext) (*GeneratedQuery, error) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(countSQL)

	from, err := sourceSQL(fr, ctx)
	if err != nil {
		return nil, err
	}
	b.WriteString(" FROM ")
	b.WriteString(from)

	if err := writeJoinClauses(&b, fr.joins, ctx); err != nil {
		return nil, err
	}
	if fr.filter != nil {
		where, err := renderExpr(fr.filter, ctx, false)
		if err != nil {
			return nil, err
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	return &GeneratedQuery{SQL: b.String(), Args: ctx.arguments()}, nil
}

func wrappedCount(r Relation, dialect dialects.Dialect, schema SchemaReader) (*GeneratedQuery, error) {
	inner, err := GenerateSelect(r, dialect, schema)
	if err != nil {
		return nil, err
	}
	// MySQL requires an alias on every derived table; the other engines
	// tolerate one.
	return &GeneratedQuery{
		SQL:  "SELECT COUNT(*) FROM (" + inner.SQL + ") " + dialect.QuoteIdentifier("c"),
		Args: inner.Args,
	}, nil
}

// SQLLiteral renders an expression as a freestanding SQL fragment with all
// values inlined as quoted literals.
func SQLLiteral(e Expr, dialect dialects.Dialect) (string, error) {
	ctx := newLiteralContext(dialect, nil)
	return renderExpr(e, ctx, false)
}
