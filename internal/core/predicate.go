package core

import (
	"reflect"
)

// Predicate is a relation filter in its deferred, two-phase form: an
// unresolved request that becomes a concrete expression only once schema
// access is available, during finalization. This covers filters that depend
// on runtime schema lookups, such as key-based filtering against a table's
// primary key.
type Predicate interface {
	// resolve produces the concrete predicate expression, qualified by the
	// relation's alias.
	resolve(schema SchemaReader, table string, alias *TableAlias) (Expr, error)
}

// exprPredicate wraps a concrete expression.
type exprPredicate struct {
	expr Expr
}

func (p exprPredicate) resolve(_ SchemaReader, _ string, alias *TableAlias) (Expr, error) {
	return qualifiedExpr(p.expr, alias), nil
}

// keyPredicate filters by primary key values. Resolving against a table with
// a composite primary key is a caller error: the single-column key filter API
// cannot express it.
type keyPredicate struct {
	values []interface{}
}

func (p keyPredicate) resolve(schema SchemaReader, table string, alias *TableAlias) (Expr, error) {
	if schema == nil {
		return nil, configErrorf(MissingPrimaryKey,
			"filtering %s by key requires schema access", table)
	}
	pk, err := schema.PrimaryKey(table)
	if err != nil {
		return nil, err
	}
	if len(pk.Columns) != 1 {
		return nil, configErrorf(CompositeKeyFilter,
			"table %s has a composite primary key; filter on the key columns explicitly", table)
	}
	col := ColumnExpr{Name: pk.Columns[0], Alias: alias}
	return InExpr{LHS: col, Values: valsOf(p.values)}, nil
}

// andPredicate conjuncts several predicates.
type andPredicate struct {
	preds []Predicate
}

func (p andPredicate) resolve(schema SchemaReader, table string, alias *TableAlias) (Expr, error) {
	exprs := make([]Expr, 0, len(p.preds))
	for _, pred := range p.preds {
		e, err := pred.resolve(schema, table, alias)
		if err != nil {
			return nil, err
		}
		if e != nil {
			exprs = append(exprs, e)
		}
	}
	if len(exprs) == 0 {
		return nil, nil
	}
	return And(exprs...), nil
}

// conjoin combines two predicates with AND, keeping nils and exact
// duplicates out so composition stays idempotent.
func conjoin(a, b Predicate) Predicate {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case reflect.DeepEqual(a, b):
		return a
	}
	return andPredicate{preds: []Predicate{a, b}}
}
