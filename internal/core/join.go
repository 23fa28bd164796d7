package core

// JoinOperator selects the SQL join flavor: a required join is an INNER JOIN,
// an optional join a LEFT JOIN. The distinction stays symbolic until render
// time.
type JoinOperator int

const (
	// JoinRequired joins with INNER semantics: parent rows without a match
	// are dropped.
	JoinRequired JoinOperator = iota
	// JoinOptional joins with LEFT semantics: parent rows without a match
	// are kept, NULL-extended.
	JoinOptional
)

// Join wraps a nested relation with its join operator and the condition
// tying it to the parent relation.
type Join struct {
	Operator  JoinOperator
	Condition JoinCondition
	Relation  Relation
}

// merged combines two joins registered under the same key. Conditions must
// be equal; operators combine as "required wins"; relations merge
// recursively.
func (j Join) merged(other Join) (Join, error) {
	if !j.Condition.equal(other.Condition) {
		return Join{}, configErrorf(UnmergeableJoin, "")
	}
	op := JoinOptional
	if j.Operator == JoinRequired || other.Operator == JoinRequired {
		op = JoinRequired
	}
	rel, err := j.Relation.merged(other.Relation)
	if err != nil {
		return Join{}, err
	}
	return Join{Operator: op, Condition: j.Condition, Relation: rel}, nil
}

// joinList is an insertion-ordered key-to-Join mapping with merge-on-insert
// semantics. Key order is preserved: SQL JOIN clause order follows it, and so
// does prefetch grouping order. The zero value is ready to use; all
// operations are copy-on-write, keeping relations value-like.
type joinList struct {
	keys  []string
	items map[string]Join
}

func (l joinList) isEmpty() bool {
	return len(l.keys) == 0
}

func (l joinList) get(key string) (Join, bool) {
	j, ok := l.items[key]
	return j, ok
}

// appending registers a join under key, merging with any existing join for
// that key. Unmergeable conflicts name the ambiguous key so the caller can
// disambiguate with explicit aliases.
func (l joinList) appending(key string, j Join) (joinList, error) {
	out := joinList{
		keys:  append([]string(nil), l.keys...),
		items: make(map[string]Join, len(l.items)+1),
	}
	for k, v := range l.items {
		out.items[k] = v
	}
	if existing, ok := out.items[key]; ok {
		merged, err := existing.merged(j)
		if err != nil {
			return joinList{}, configErrorf(UnmergeableJoin,
				"association %q is joined twice with different conditions; use distinct association keys or aliases to disambiguate", key)
		}
		out.items[key] = merged
		return out, nil
	}
	out.keys = append(out.keys, key)
	out.items[key] = j
	return out, nil
}

// merging unions another join list into this one, preserving this list's key
// order and appending the other's new keys in their own order.
func (l joinList) merging(other joinList) (joinList, error) {
	out := l
	var err error
	for _, key := range other.keys {
		out, err = out.appending(key, other.items[key])
		if err != nil {
			return joinList{}, err
		}
	}
	return out, nil
}

// each visits joins in insertion order.
func (l joinList) each(fn func(key string, j Join) error) error {
	for _, key := range l.keys {
		if err := fn(key, l.items[key]); err != nil {
			return err
		}
	}
	return nil
}
