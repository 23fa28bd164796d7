package core

import (
	"github.com/coregx/querel/internal/dialects"
)

// binder accumulates positional bindings for one generation pass. It is
// shared between a query and its nested subquery contexts so placeholder
// numbering stays continuous across the whole statement.
type binder struct {
	args []interface{}
}

// genContext carries the transient state of one SQL generation pass: the
// bound-parameter accumulator (or literal mode), the alias name map computed
// once at the start of generation, and the target dialect. A context is
// created per pass and discarded afterwards.
type genContext struct {
	dialect dialects.Dialect
	schema  SchemaReader // may be nil when no schema-dependent construct is used

	// binder holds positional bindings; nil means literal mode, where values
	// are rendered inline as quoted literals.
	binder *binder

	// names maps alias roots to their resolved display names.
	// qualify is false for single-table queries, where alias qualifiers are
	// omitted to keep the SQL minimal.
	names   map[*TableAlias]string
	qualify bool
}

func newGenContext(dialect dialects.Dialect, schema SchemaReader) *genContext {
	return &genContext{dialect: dialect, schema: schema, binder: &binder{}}
}

// newLiteralContext renders values inline; used when converting an expression
// into a freestanding SQL literal fragment.
func newLiteralContext(dialect dialects.Dialect, schema SchemaReader) *genContext {
	return &genContext{dialect: dialect, schema: schema}
}

// subContext derives a context for a nested subquery: same dialect, schema,
// and binder, but the subquery's own alias names.
func (c *genContext) subContext(names map[*TableAlias]string, qualify bool) *genContext {
	return &genContext{
		dialect: c.dialect,
		schema:  c.schema,
		binder:  c.binder,
		names:   names,
		qualify: qualify,
	}
}

// bind registers a value and returns the SQL that stands for it: a
// dialect-specific placeholder, or the quoted literal in literal mode.
func (c *genContext) bind(value interface{}) (string, error) {
	if c.binder == nil {
		return c.dialect.QuoteLiteral(value)
	}
	c.binder.args = append(c.binder.args, value)
	return c.dialect.Placeholder(len(c.binder.args)), nil
}

// arguments returns the accumulated bindings, never nil.
func (c *genContext) arguments() []interface{} {
	if c.binder == nil || c.binder.args == nil {
		return []interface{}{}
	}
	return c.binder.args
}

// aliasName returns the resolved display name for an alias, falling back to
// its identity name when generation runs without a resolution pass.
func (c *genContext) aliasName(a *TableAlias) string {
	if name, ok := c.names[a.root()]; ok {
		return name
	}
	return a.identityName()
}

// qualifier returns the quoted alias prefix for a column, or "" when
// qualification is unnecessary.
func (c *genContext) qualifier(a *TableAlias) string {
	if a == nil || !c.qualify {
		return ""
	}
	return c.dialect.QuoteIdentifier(c.aliasName(a)) + "."
}
