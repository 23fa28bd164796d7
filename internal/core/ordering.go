package core

// OrderingTerm is one term of an ORDER BY clause.
type OrderingTerm interface {
	isOrderingTerm()
}

type ascTerm struct{ expr Expr }
type descTerm struct{ expr Expr }

func (ascTerm) isOrderingTerm()  {}
func (descTerm) isOrderingTerm() {}

// Asc orders by a column or expression, ascending.
func Asc(col interface{}) OrderingTerm {
	return ascTerm{expr: colOf(col)}
}

// Desc orders by a column or expression, descending.
func Desc(col interface{}) OrderingTerm {
	return descTerm{expr: colOf(col)}
}

// orderingTermOf accepts OrderingTerm, Expr, or a column name; bare columns
// and expressions order ascending.
func orderingTermOf(v interface{}) OrderingTerm {
	if t, ok := v.(OrderingTerm); ok {
		return t
	}
	return ascTerm{expr: colOf(v)}
}

// queryOrdering is a relation's ordering. Reversal is a flag consulted at
// resolve time rather than an eager rewrite, so an ordering can be reversed
// any number of times cheaply.
type queryOrdering struct {
	terms    []OrderingTerm
	reversed bool
}

func (o queryOrdering) isEmpty() bool {
	return len(o.terms) == 0 && !o.reversed
}

func (o queryOrdering) reverse() queryOrdering {
	o.reversed = !o.reversed
	return o
}

// qualified rewrites every term's expression with a concrete alias.
func (o queryOrdering) qualified(alias *TableAlias) queryOrdering {
	terms := make([]OrderingTerm, len(o.terms))
	for i, t := range o.terms {
		switch term := t.(type) {
		case ascTerm:
			terms[i] = ascTerm{expr: qualifiedExpr(term.expr, alias)}
		case descTerm:
			terms[i] = descTerm{expr: qualifiedExpr(term.expr, alias)}
		default:
			terms[i] = t
		}
	}
	o.terms = terms
	return o
}

// resolvedTerms applies the reversal flag. A reversed ordering with no terms
// falls back to the implicit row identifier, descending.
func (o queryOrdering) resolvedTerms(alias *TableAlias) []OrderingTerm {
	if len(o.terms) == 0 {
		if o.reversed {
			return []OrderingTerm{descTerm{expr: ColumnExpr{Name: "rowid", Alias: alias}}}
		}
		return nil
	}
	if !o.reversed {
		return o.terms
	}
	terms := make([]OrderingTerm, len(o.terms))
	for i, t := range o.terms {
		switch term := t.(type) {
		case ascTerm:
			terms[i] = descTerm{expr: term.expr}
		case descTerm:
			terms[i] = ascTerm{expr: term.expr}
		default:
			terms[i] = t
		}
	}
	return terms
}

// renderOrderingTerm renders one ORDER BY term. Ascending order is implicit.
func renderOrderingTerm(t OrderingTerm, ctx *genContext) (string, error) {
	switch term := t.(type) {
	case ascTerm:
		return renderExpr(term.expr, ctx, false)
	case descTerm:
		sql, err := renderExpr(term.expr, ctx, false)
		if err != nil {
			return "", err
		}
		return sql + " DESC", nil
	default:
		return "", configErrorf(UnknownTerm, "unknown ordering term type %T", t)
	}
}
