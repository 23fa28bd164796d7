package core

// Association describes a named link between two tables, built from a
// foreign key. Associations feed joins (Including/Joining) and, for to-many
// links, the prefetch engine (IncludingAll).
type Association struct {
	// Key identifies the association in the join tree and in prefetch
	// results. Defaults to the associated table's name.
	Key string
	// ToMany is true for has-many links, where a parent row associates with
	// any number of destination rows.
	ToMany bool

	fk       ForeignKey
	relation Relation
}

// BelongsTo links rows holding a foreign key to the single row they
// reference: each origin row belongs to one destination row.
//
// originColumns name the foreign key columns on the origin table; when
// omitted they are inferred from the destination's primary key
// ("author" with key "id" infers "authorId").
func BelongsTo(originTable, destinationTable string, originColumns ...string) Association {
	return Association{
		Key: destinationTable,
		fk: ForeignKey{
			OriginTable:      originTable,
			DestinationTable: destinationTable,
			OriginColumns:    originColumns,
		},
		relation: Table(destinationTable),
	}
}

// HasMany links rows to the set of rows referencing them: each parent row
// has any number of child rows holding the foreign key.
//
// childColumns name the foreign key columns on the child table; when omitted
// they are inferred from the parent's primary key.
func HasMany(parentTable, childTable string, childColumns ...string) Association {
	return Association{
		Key:    childTable,
		ToMany: true,
		fk: ForeignKey{
			OriginTable:      childTable,
			DestinationTable: parentTable,
			OriginColumns:    childColumns,
		},
		relation: Table(childTable),
	}
}

// condition derives the join condition. The joined relation is the foreign
// key origin for has-many links, the destination for belongs-to links.
func (a Association) condition() JoinCondition {
	return JoinCondition{fk: a.fk, originIsRight: a.ToMany}
}

// WithKey renames the association, allowing the same association to be
// joined twice under distinct keys.
func (a Association) WithKey(key string) Association {
	a.Key = key
	return a
}

// Filter refines the associated rows.
func (a Association) Filter(cond Expr) Association {
	a.relation = a.relation.Filter(cond)
	return a
}

// Select replaces the associated relation's selection.
func (a Association) Select(terms ...interface{}) Association {
	a.relation = a.relation.Select(terms...)
	return a
}

// Order orders the associated rows.
func (a Association) Order(terms ...interface{}) Association {
	a.relation = a.relation.Order(terms...)
	return a
}

// Aliased attaches a caller-chosen alias to the associated table occurrence.
func (a Association) Aliased(alias *TableAlias) Association {
	a.relation = a.relation.Aliased(alias)
	return a
}

// Including chains a further association whose columns join the selection.
func (a Association) Including(op JoinOperator, child Association) Association {
	a.relation = a.relation.Including(op, child)
	return a
}

// Joining chains a further association used for filtering only.
func (a Association) Joining(op JoinOperator, child Association) Association {
	a.relation = a.relation.Joining(op, child)
	return a
}

// IncludingAll chains a nested to-many prefetch.
func (a Association) IncludingAll(child Association) Association {
	a.relation = a.relation.IncludingAll(child)
	return a
}
