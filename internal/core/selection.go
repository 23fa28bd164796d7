package core

import (
	"strings"
)

// Selectable is one term of a SELECT list.
// Insertion order in a relation's selection is significant: it determines the
// output column order, and in turn the row adapter's column ranges.
type Selectable interface {
	isSelectable()
}

// AllColumns selects every column of its table occurrence ("alias".* once
// qualified).
type AllColumns struct {
	Alias *TableAlias
}

// SelectionExpr selects a single expression, optionally under an output name.
type SelectionExpr struct {
	Expr Expr
	As   string
}

func (AllColumns) isSelectable()    {}
func (SelectionExpr) isSelectable() {}

// All selects every column of the relation's table.
func All() Selectable {
	return AllColumns{}
}

// Sel selects a single column or expression.
func Sel(col interface{}) Selectable {
	return SelectionExpr{Expr: colOf(col)}
}

// SelAs selects an expression under an output column name.
func SelAs(col interface{}, name string) Selectable {
	return SelectionExpr{Expr: colOf(col), As: name}
}

// qualifiedSelectable rewrites a selection term with a concrete alias.
func qualifiedSelectable(s Selectable, alias *TableAlias) Selectable {
	switch sel := s.(type) {
	case AllColumns:
		if sel.Alias == nil {
			sel.Alias = alias
		}
		return sel
	case SelectionExpr:
		sel.Expr = qualifiedExpr(sel.Expr, alias)
		return sel
	default:
		return s
	}
}

// renderSelectable renders one SELECT list term.
func renderSelectable(s Selectable, ctx *genContext) (string, error) {
	switch sel := s.(type) {
	case AllColumns:
		if q := ctx.qualifier(sel.Alias); q != "" {
			return q + "*", nil
		}
		return "*", nil
	case SelectionExpr:
		sql, err := renderExpr(sel.Expr, ctx, false)
		if err != nil {
			return "", err
		}
		if sel.As != "" {
			sql += " AS " + ctx.dialect.QuoteIdentifier(sel.As)
		}
		return sql, nil
	default:
		return "", configErrorf(UnknownTerm, "unknown selection type %T", s)
	}
}

// selectableWidth is the number of output columns a term contributes.
// AllColumns requires a schema lookup on the term's table.
func selectableWidth(s Selectable, table string, schema SchemaReader) (int, error) {
	switch s.(type) {
	case AllColumns:
		if schema == nil {
			return 0, configErrorf(EmptySelection,
				"cannot size %s.* selection without schema access", table)
		}
		cols, err := schema.Columns(table)
		if err != nil {
			return 0, err
		}
		return len(cols), nil
	case SelectionExpr:
		return 1, nil
	default:
		return 0, configErrorf(UnknownTerm, "unknown selection type %T", s)
	}
}

// selectableOutputNames expands a term into the column names a flat result
// row exposes for it. Used by the prefetch engine to locate pivot columns.
func selectableOutputNames(s Selectable, table string, schema SchemaReader) ([]string, error) {
	switch sel := s.(type) {
	case AllColumns:
		if schema == nil {
			return nil, configErrorf(EmptySelection,
				"cannot expand %s.* selection without schema access", table)
		}
		return schema.Columns(table)
	case SelectionExpr:
		if sel.As != "" {
			return []string{sel.As}, nil
		}
		if col, ok := sel.Expr.(ColumnExpr); ok {
			return []string{col.Name}, nil
		}
		return []string{""}, nil
	default:
		return nil, configErrorf(UnknownTerm, "unknown selection type %T", s)
	}
}

// selectsColumn reports whether a selection list certainly exposes a column.
func selectsColumn(selection []Selectable, table, column string, schema SchemaReader) bool {
	for _, s := range selection {
		names, err := selectableOutputNames(s, table, schema)
		if err != nil {
			continue
		}
		for _, n := range names {
			if strings.EqualFold(n, column) {
				return true
			}
		}
	}
	return false
}
