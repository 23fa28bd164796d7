package core

import (
	"reflect"
)

// limitSpec is a LIMIT with optional OFFSET. Values render as integer
// literals, never as bound parameters: engines disagree on binding them.
type limitSpec struct {
	limit  int
	offset *int
}

// Relation is the structural unit of "a table or subquery, with everything
// that refines it": selection, filter, grouping, ordering, and joins.
//
// Relations are immutable values. Every transformation returns a new
// relation; the receiver is never modified. A relation is finalized once,
// immediately before SQL generation, which assigns concrete aliases and
// pushes qualification through every embedded expression.
type Relation struct {
	table    string
	subquery *Relation // non-nil when the source is a sub-select

	alias      *TableAlias // caller-attached; assigned fresh at finalization when nil
	selection  []Selectable
	filter     Predicate
	groupBy    []Expr
	having     Expr
	ordering   queryOrdering
	joins      joinList
	limit      *limitSpec
	distinct   bool
	prefetches []Association

	// buildErr records an invalid composition (e.g. alias reuse) detected
	// while building; it surfaces on generation.
	buildErr error
}

// Table starts a relation reading from a table, selecting all columns.
func Table(name string) Relation {
	return Relation{table: name, selection: []Selectable{AllColumns{}}}
}

// Subquery starts a relation reading from a sub-select.
func Subquery(query Relation) Relation {
	q := query
	return Relation{subquery: &q, selection: []Selectable{AllColumns{}}}
}

// TableName returns the name of the relation's source table, empty for
// subquery sources.
func (r Relation) TableName() string {
	return r.table
}

// Select replaces the selection. Term order determines output column order.
func (r Relation) Select(terms ...interface{}) Relation {
	sel := make([]Selectable, len(terms))
	for i, t := range terms {
		sel[i] = selectableOf(t)
	}
	r.selection = sel
	return r
}

// Annotated appends terms to the selection.
func (r Relation) Annotated(terms ...interface{}) Relation {
	sel := make([]Selectable, 0, len(r.selection)+len(terms))
	sel = append(sel, r.selection...)
	for _, t := range terms {
		sel = append(sel, selectableOf(t))
	}
	r.selection = sel
	return r
}

func selectableOf(v interface{}) Selectable {
	if s, ok := v.(Selectable); ok {
		return s
	}
	return SelectionExpr{Expr: colOf(v)}
}

// Distinct makes the SELECT distinct.
func (r Relation) Distinct() Relation {
	r.distinct = true
	return r
}

// Filter conjuncts a predicate into the relation's filter with AND.
func (r Relation) Filter(cond Expr) Relation {
	r.filter = conjoin(r.filter, exprPredicate{expr: cond})
	return r
}

// FilterKeys filters by primary key values. The key column is resolved at
// generation time; a composite primary key is a caller error.
func (r Relation) FilterKeys(values ...interface{}) Relation {
	r.filter = conjoin(r.filter, keyPredicate{values: values})
	return r
}

// Group sets the GROUP BY expressions.
func (r Relation) Group(cols ...interface{}) Relation {
	group := make([]Expr, len(cols))
	for i, c := range cols {
		group[i] = colOf(c)
	}
	r.groupBy = group
	return r
}

// Having conjuncts a HAVING predicate.
func (r Relation) Having(cond Expr) Relation {
	if r.having == nil {
		r.having = cond
	} else {
		r.having = And(r.having, cond)
	}
	return r
}

// Order replaces the ordering. Terms may be Asc/Desc wrappers, expressions,
// or column names (ascending).
func (r Relation) Order(terms ...interface{}) Relation {
	converted := make([]OrderingTerm, len(terms))
	for i, t := range terms {
		converted[i] = orderingTermOf(t)
	}
	r.ordering = queryOrdering{terms: converted}
	return r
}

// Reversed flips the ordering. The reversal is a flag resolved at render
// time, so reversing repeatedly is cheap. Reversing a relation with no
// ordering orders by the implicit row identifier, descending.
func (r Relation) Reversed() Relation {
	r.ordering = r.ordering.reverse()
	return r
}

// Limit caps the number of fetched rows, with an optional offset.
func (r Relation) Limit(limit int, offset ...int) Relation {
	spec := &limitSpec{limit: limit}
	if len(offset) > 0 {
		o := offset[0]
		spec.offset = &o
	}
	r.limit = spec
	return r
}

// Aliased attaches a caller-chosen alias to the relation's table occurrence.
// When the relation already carries an alias, the two handles are unified:
// the new one becomes a proxy of the existing one.
func (r Relation) Aliased(alias *TableAlias) Relation {
	if r.alias == nil {
		r.alias = alias
		return r
	}
	if err := alias.becomeProxy(r.alias); err != nil && r.buildErr == nil {
		r.buildErr = err
	}
	return r
}

// appendingJoin registers a join under key, merging when the key exists.
func (r Relation) appendingJoin(key string, j Join) Relation {
	joins, err := r.joins.appending(key, j)
	if err != nil {
		if r.buildErr == nil {
			r.buildErr = err
		}
		return r
	}
	r.joins = joins
	return r
}

// Including joins an association and selects its columns.
func (r Relation) Including(op JoinOperator, assoc Association) Relation {
	return r.appendingJoin(assoc.Key, Join{
		Operator:  op,
		Condition: assoc.condition(),
		Relation:  assoc.relation,
	})
}

// Joining joins an association for filtering only, selecting none of its
// columns.
func (r Relation) Joining(op JoinOperator, assoc Association) Relation {
	joined := assoc.relation
	joined.selection = nil
	return r.appendingJoin(assoc.Key, Join{
		Operator:  op,
		Condition: assoc.condition(),
		Relation:  joined,
	})
}

// IncludingAll registers a to-many association for prefetching: associated
// rows are fetched with one extra query per association, grouped by pivot
// key, and attached to their parent rows.
func (r Relation) IncludingAll(assoc Association) Relation {
	prefetches := make([]Association, 0, len(r.prefetches)+1)
	replaced := false
	for _, p := range r.prefetches {
		if p.Key == assoc.Key {
			prefetches = append(prefetches, assoc)
			replaced = true
			continue
		}
		prefetches = append(prefetches, p)
	}
	if !replaced {
		prefetches = append(prefetches, assoc)
	}
	r.prefetches = prefetches
	return r
}

// merged combines two relations targeting the same join key. The later
// operand's selection and ordering win when non-empty; joins of both sides
// are unioned; equal filters collapse, differing ones conjoin.
func (r Relation) merged(other Relation) (Relation, error) {
	out := r
	if len(other.selection) > 0 && !reflect.DeepEqual(other.selection, r.selection) {
		out.selection = other.selection
	}
	if !other.ordering.isEmpty() {
		out.ordering = other.ordering
	}
	out.filter = conjoin(r.filter, other.filter)
	joins, err := r.joins.merging(other.joins)
	if err != nil {
		return Relation{}, err
	}
	out.joins = joins
	return out, nil
}
