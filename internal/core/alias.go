package core

import (
	"strconv"
	"strings"
)

// TableAlias identifies one occurrence of a table within a query.
//
// An alias starts undefined, gets bound to a table name during relation
// qualification, and may become a proxy forwarding to another alias when two
// handles are unified (a caller-supplied alias attached to an implicit one).
// Identity is by the root of the proxy chain: two aliases denote the same
// table occurrence iff their roots are the same object. Aliases are mutated
// only during finalization, never after.
type TableAlias struct {
	next      *TableAlias // proxy target, nil for roots
	tableName string
	userName  string
}

// NewAlias creates an alias with a caller-chosen display name.
// Pass the alias to Relation.Aliased or a join to disambiguate self-joins.
func NewAlias(name string) *TableAlias {
	return &TableAlias{userName: name}
}

// newImplicitAlias creates an anonymous alias assigned during finalization.
func newImplicitAlias() *TableAlias {
	return &TableAlias{}
}

// root resolves the proxy chain with path compression.
func (a *TableAlias) root() *TableAlias {
	r := a
	for r.next != nil {
		r = r.next
	}
	// Compress the chain so repeated lookups are O(1).
	for c := a; c != r; {
		n := c.next
		c.next = r
		c = n
	}
	return r
}

// setTable binds the alias to a table name.
// Binding the same alias to two different tables is a caller error.
func (a *TableAlias) setTable(name string) error {
	r := a.root()
	if r.tableName != "" && !strings.EqualFold(r.tableName, name) {
		return configErrorf(ReusedAlias,
			"alias used for both table %q and table %q", r.tableName, name)
	}
	r.tableName = name
	return nil
}

// becomeProxy redirects this alias to target, unifying the two handles.
func (a *TableAlias) becomeProxy(target *TableAlias) error {
	r, t := a.root(), target.root()
	if r == t {
		return nil
	}
	if r.tableName != "" {
		if err := t.setTable(r.tableName); err != nil {
			return err
		}
	}
	if r.userName != "" {
		if t.userName == "" {
			t.userName = r.userName
		} else if !strings.EqualFold(t.userName, r.userName) {
			return configErrorf(AmbiguousAliasName,
				"aliases named %q and %q denote the same table occurrence", t.userName, r.userName)
		}
	}
	r.next = t
	return nil
}

// hasUserName reports whether the caller chose a display name.
func (a *TableAlias) hasUserName() bool {
	return a.root().userName != ""
}

// identityName is the name an alias competes under during disambiguation:
// the user-chosen name if any, else the bare table name.
func (a *TableAlias) identityName() string {
	r := a.root()
	if r.userName != "" {
		return r.userName
	}
	return r.tableName
}

// table returns the bound table name, empty while undefined.
func (a *TableAlias) table() string {
	return a.root().tableName
}

// nameRadical strips any trailing digit suffix, so "book2" and "book" compete
// for the same synthesized names.
func nameRadical(name string) string {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == 0 {
		return name
	}
	return name[:i]
}

// resolvedAliasNames assigns a unique display name to every alias, resolving
// collisions between identical table names and caller-chosen names.
//
// Aliases are grouped by lower-cased identity name. Singleton groups keep
// their name. In a larger group at most one member may carry a user-chosen
// name (two identical user names are an ambiguity the caller must fix); the
// remaining members receive radical, radical1, radical2, ... choosing for
// each the smallest unused suffix, case-insensitively.
func resolvedAliasNames(aliases []*TableAlias) (map[*TableAlias]string, error) {
	// Dedupe by root, preserving first-seen order.
	var roots []*TableAlias
	seen := make(map[*TableAlias]bool)
	for _, a := range aliases {
		r := a.root()
		if !seen[r] {
			seen[r] = true
			roots = append(roots, r)
		}
	}

	groups := make(map[string][]*TableAlias)
	var groupOrder []string
	for _, r := range roots {
		key := strings.ToLower(r.identityName())
		if _, ok := groups[key]; !ok {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], r)
	}

	names := make(map[*TableAlias]string, len(roots))
	used := make(map[string]bool)

	// Singletons and user-named members claim their names first.
	for _, key := range groupOrder {
		group := groups[key]
		if len(group) == 1 {
			names[group[0]] = group[0].identityName()
			used[key] = true
			continue
		}
		userNamed := 0
		for _, r := range group {
			if r.hasUserName() {
				userNamed++
				if userNamed > 1 {
					return nil, configErrorf(AmbiguousAliasName,
						"ambiguous alias name %q: name several aliases identically at most once", r.identityName())
				}
				names[r] = r.identityName()
				used[key] = true
			}
		}
	}

	// Synthesize names for the remaining ambiguous members.
	for _, key := range groupOrder {
		group := groups[key]
		if len(group) == 1 {
			continue
		}
		for _, r := range group {
			if _, ok := names[r]; ok {
				continue
			}
			radical := nameRadical(r.identityName())
			name := radical
			for i := 1; used[strings.ToLower(name)]; i++ {
				name = radical + strconv.Itoa(i)
			}
			names[r] = name
			used[strings.ToLower(name)] = true
		}
	}

	return names, nil
}
