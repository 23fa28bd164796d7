package core

// ScopeLayout describes how one relation's columns sit inside the flat row
// produced by a generated SELECT: the starting offset, the number of columns
// the relation itself selects, and a nested layout per joined association
// key. Keys preserves join insertion order.
type ScopeLayout struct {
	Start  int
	Width  int
	Keys   []string
	Scopes map[string]*ScopeLayout
}

// computeLayout walks the finalized join tree in the same depth-first order
// the selection is rendered in, assigning column ranges.
func computeLayout(fr finalizedRelation, schema SchemaReader) (*ScopeLayout, error) {
	// A sub-select's column count is not statically known; the flat row is
	// exposed as a single scope at execution time.
	if fr.subquery != nil {
		return nil, nil
	}
	layout, _, err := layoutAt(fr, schema, 0)
	return layout, err
}

func layoutAt(fr finalizedRelation, schema SchemaReader, start int) (*ScopeLayout, int, error) {
	own := 0
	for _, s := range fr.selection {
		w, err := selectableWidth(s, fr.table, schema)
		if err != nil {
			return nil, 0, err
		}
		own += w
	}

	layout := &ScopeLayout{Start: start, Width: own}
	next := start + own
	for _, j := range fr.joins {
		child, total, err := layoutAt(j.rel, schema, next)
		if err != nil {
			return nil, 0, err
		}
		next += total
		// Joins that contribute no columns at any depth get no scope:
		// there is nothing in the row for them to address.
		if child.Width == 0 && len(child.Scopes) == 0 {
			continue
		}
		if layout.Scopes == nil {
			layout.Scopes = make(map[string]*ScopeLayout)
		}
		layout.Keys = append(layout.Keys, j.key)
		layout.Scopes[j.key] = child
	}
	return layout, next - start, nil
}

// Scope returns the nested layout for an association key, or nil.
func (l *ScopeLayout) Scope(key string) *ScopeLayout {
	if l == nil || l.Scopes == nil {
		return nil
	}
	return l.Scopes[key]
}
