package core

import (
	"reflect"
	"strings"
)

// ForeignKey describes how rows of an origin table reference rows of a
// destination table: one or more origin-column to destination-column pairs.
//
// Both column lists may be left empty. Missing destination columns resolve to
// the destination table's primary key; missing origin columns are inferred by
// convention as destination table name + capitalized key column ("author" +
// "id" gives "authorId"). Ambiguous or impossible inference is a
// configuration error reported at generation time, never silently guessed.
type ForeignKey struct {
	OriginTable      string
	DestinationTable string
	OriginColumns    []string
	DestColumns      []string
}

// columnPair is one resolved origin-to-destination column equality.
type columnPair struct {
	origin      string
	destination string
}

// resolve produces the concrete column pairs, consulting the schema when the
// definition is implicit.
func (fk ForeignKey) resolve(schema SchemaReader) ([]columnPair, error) {
	destCols := fk.DestColumns
	if len(destCols) == 0 {
		if schema == nil {
			return nil, configErrorf(AmbiguousForeignKey,
				"foreign key from %s to %s needs schema access or explicit columns",
				fk.OriginTable, fk.DestinationTable)
		}
		pk, err := schema.PrimaryKey(fk.DestinationTable)
		if err != nil {
			return nil, err
		}
		if len(pk.Columns) == 0 {
			return nil, configErrorf(MissingPrimaryKey,
				"table %s has no primary key to join on", fk.DestinationTable)
		}
		destCols = pk.Columns
	} else if schema != nil {
		// Explicit destination columns must form a unique key.
		key, err := schema.UniqueKeyColumns(fk.DestinationTable, destCols)
		if err != nil {
			return nil, err
		}
		if key == nil {
			return nil, configErrorf(AmbiguousForeignKey,
				"columns %v are not a unique key of table %s",
				destCols, fk.DestinationTable)
		}
		destCols = key
	}

	originCols := fk.OriginColumns
	if len(originCols) == 0 {
		originCols = make([]string, len(destCols))
		for i, c := range destCols {
			originCols[i] = fk.DestinationTable + upperFirst(c)
		}
	}
	if len(originCols) != len(destCols) {
		return nil, configErrorf(AmbiguousForeignKey,
			"foreign key from %s to %s: %d origin columns cannot match %d key columns",
			fk.OriginTable, fk.DestinationTable, len(originCols), len(destCols))
	}

	pairs := make([]columnPair, len(destCols))
	for i := range destCols {
		pairs[i] = columnPair{origin: originCols[i], destination: destCols[i]}
	}
	return pairs, nil
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// JoinCondition derives a join's ON predicate from a foreign key plus the
// left/right orientation of the join. originIsRight is true when the joined
// (right) relation is the foreign key's origin, as in a to-many association.
//
// Two join conditions are equal iff their foreign keys and orientations are
// equal; this equality underlies join merging.
type JoinCondition struct {
	fk            ForeignKey
	originIsRight bool
}

func (jc JoinCondition) equal(other JoinCondition) bool {
	return jc.originIsRight == other.originIsRight && reflect.DeepEqual(jc.fk, other.fk)
}

// expression renders the ON predicate: a conjunction of per-column
// equalities, each side qualified by its respective alias, with the joined
// relation's columns on the left of each equality.
func (jc JoinCondition) expression(schema SchemaReader, left, right *TableAlias) (Expr, error) {
	pairs, err := jc.resolvedPairs(schema)
	if err != nil {
		return nil, err
	}
	conds := make([]Expr, len(pairs))
	for i, p := range pairs {
		rightCol, leftCol := p.destination, p.origin
		if jc.originIsRight {
			rightCol, leftCol = p.origin, p.destination
		}
		conds[i] = BinaryExpr{
			Op:        "=",
			NegatedOp: "<>",
			LHS:       ColumnExpr{Name: rightCol, Alias: right},
			RHS:       ColumnExpr{Name: leftCol, Alias: left},
		}
	}
	return And(conds...), nil
}

// pivotColumns returns the correlation columns used by the prefetch engine:
// left columns live on the parent rows, right columns on the joined rows.
func (jc JoinCondition) pivotColumns(schema SchemaReader) (left, right []string, err error) {
	pairs, err := jc.resolvedPairs(schema)
	if err != nil {
		return nil, nil, err
	}
	left = make([]string, len(pairs))
	right = make([]string, len(pairs))
	for i, p := range pairs {
		if jc.originIsRight {
			left[i], right[i] = p.destination, p.origin
		} else {
			left[i], right[i] = p.origin, p.destination
		}
	}
	return left, right, nil
}

func (jc JoinCondition) resolvedPairs(schema SchemaReader) ([]columnPair, error) {
	return jc.fk.resolve(schema)
}
