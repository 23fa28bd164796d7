package core

import (
	"strings"
)

// Expr represents one SQL scalar- or boolean-producing construct.
//
// Expressions form a closed set of variants rendered by a single exhaustive
// dispatch (renderExpr). They are immutable value types: every rewrite
// (negation, qualification) produces a new expression, and rendering the same
// expression against the same context always yields the same SQL and the same
// argument sequence.
type Expr interface {
	isExpr()
}

// ColumnExpr references a column, optionally qualified by a table alias.
type ColumnExpr struct {
	Name  string
	Alias *TableAlias
}

// ValueExpr is a literal value, bound as a placeholder or rendered inline.
type ValueExpr struct {
	Value interface{}
}

// UnaryExpr applies a prefix operator ("NOT", "-") to an operand.
type UnaryExpr struct {
	Op      string
	Operand Expr
}

// BinaryExpr applies an infix operator. NegatedOp, when non-empty, is the
// operator's idiomatic SQL negation ("IS" -> "IS NOT").
type BinaryExpr struct {
	Op        string
	NegatedOp string
	LHS, RHS  Expr
}

// AssocExpr joins any number of operands with an associative operator
// ("AND", "OR", "+", "*", "||").
type AssocExpr struct {
	Op       string
	Operands []Expr
}

// FuncExpr is a function call.
type FuncExpr struct {
	Name string
	Args []Expr
}

// InExpr is lhs [NOT] IN (values...).
type InExpr struct {
	LHS    Expr
	Values []Expr
	Not    bool
}

// BetweenExpr is operand [NOT] BETWEEN from AND to.
type BetweenExpr struct {
	Operand, From, To Expr
	Not               bool
}

// ExistsExpr is [NOT] EXISTS (subquery).
type ExistsExpr struct {
	Query *Relation
	Not   bool
}

// CollateExpr taints an expression with a collation name.
type CollateExpr struct {
	Operand   Expr
	Collation string
}

// TupleExpr is a row-value tuple: (a, b, c).
type TupleExpr struct {
	Elems []Expr
}

// RawExpr embeds a raw SQL fragment with optional "?" parameter bindings.
// The fragment is treated opaquely: it is never parsed, only emitted.
type RawExpr struct {
	SQL  string
	Args []interface{}
}

func (ColumnExpr) isExpr()  {}
func (ValueExpr) isExpr()   {}
func (UnaryExpr) isExpr()   {}
func (BinaryExpr) isExpr()  {}
func (AssocExpr) isExpr()   {}
func (FuncExpr) isExpr()    {}
func (InExpr) isExpr()      {}
func (BetweenExpr) isExpr() {}
func (ExistsExpr) isExpr()  {}
func (CollateExpr) isExpr() {}
func (TupleExpr) isExpr()   {}
func (RawExpr) isExpr()     {}

// =============================================================================
// Constructors
// =============================================================================

// Col references a column by name. The reference is unqualified until the
// enclosing relation is finalized.
func Col(name string) Expr {
	return ColumnExpr{Name: name}
}

// Val wraps a Go value as a SQL literal expression.
func Val(value interface{}) Expr {
	return ValueExpr{Value: value}
}

// Raw creates a raw SQL expression with optional "?" parameter bindings.
//
// Example:
//
//	querel.Raw("LENGTH(title) > ?", 10)
func Raw(sql string, args ...interface{}) Expr {
	return RawExpr{SQL: sql, Args: args}
}

// colOf converts a column operand: strings become column references,
// expressions pass through, anything else is a value.
func colOf(v interface{}) Expr {
	switch c := v.(type) {
	case string:
		return ColumnExpr{Name: c}
	case Expr:
		return c
	default:
		return ValueExpr{Value: v}
	}
}

// valOf converts a value operand: expressions pass through, anything else is
// bound as a value.
func valOf(v interface{}) Expr {
	if e, ok := v.(Expr); ok {
		return e
	}
	return ValueExpr{Value: v}
}

func valsOf(values []interface{}) []Expr {
	out := make([]Expr, len(values))
	for i, v := range values {
		out[i] = valOf(v)
	}
	return out
}

// Eq generates an equality expression (column = value).
// A nil value generates "column IS NULL" instead.
func Eq(col, value interface{}) Expr {
	if value == nil {
		return BinaryExpr{Op: "IS", NegatedOp: "IS NOT", LHS: colOf(col), RHS: ValueExpr{}}
	}
	return BinaryExpr{Op: "=", NegatedOp: "<>", LHS: colOf(col), RHS: valOf(value)}
}

// NotEq generates an inequality expression (column <> value).
// A nil value generates "column IS NOT NULL" instead.
func NotEq(col, value interface{}) Expr {
	if value == nil {
		return BinaryExpr{Op: "IS NOT", NegatedOp: "IS", LHS: colOf(col), RHS: ValueExpr{}}
	}
	return BinaryExpr{Op: "<>", NegatedOp: "=", LHS: colOf(col), RHS: valOf(value)}
}

// GreaterThan generates column > value.
func GreaterThan(col, value interface{}) Expr {
	return BinaryExpr{Op: ">", NegatedOp: "<=", LHS: colOf(col), RHS: valOf(value)}
}

// LessThan generates column < value.
func LessThan(col, value interface{}) Expr {
	return BinaryExpr{Op: "<", NegatedOp: ">=", LHS: colOf(col), RHS: valOf(value)}
}

// GreaterOrEqual generates column >= value.
func GreaterOrEqual(col, value interface{}) Expr {
	return BinaryExpr{Op: ">=", NegatedOp: "<", LHS: colOf(col), RHS: valOf(value)}
}

// LessOrEqual generates column <= value.
func LessOrEqual(col, value interface{}) Expr {
	return BinaryExpr{Op: "<=", NegatedOp: ">", LHS: colOf(col), RHS: valOf(value)}
}

// Like generates column LIKE pattern.
func Like(col, pattern interface{}) Expr {
	return BinaryExpr{Op: "LIKE", NegatedOp: "NOT LIKE", LHS: colOf(col), RHS: valOf(pattern)}
}

// NotLike generates column NOT LIKE pattern.
func NotLike(col, pattern interface{}) Expr {
	return BinaryExpr{Op: "NOT LIKE", NegatedOp: "LIKE", LHS: colOf(col), RHS: valOf(pattern)}
}

// And concatenates expressions with AND. Nil expressions are filtered out;
// nested AND operands are flattened.
func And(exps ...Expr) Expr {
	return assoc("AND", exps)
}

// Or concatenates expressions with OR. Nil expressions are filtered out;
// nested OR operands are flattened.
func Or(exps ...Expr) Expr {
	return assoc("OR", exps)
}

func assoc(op string, exps []Expr) Expr {
	var flat []Expr
	for _, e := range exps {
		if e == nil {
			continue
		}
		if a, ok := e.(AssocExpr); ok && a.Op == op {
			flat = append(flat, a.Operands...)
			continue
		}
		flat = append(flat, e)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return AssocExpr{Op: op, Operands: flat}
}

// Not negates an expression, preferring the idiomatic SQL negation over a
// textual NOT (...) wrapper: IN becomes NOT IN, IS becomes IS NOT, and a
// double negation collapses to the original expression.
func Not(e Expr) Expr {
	switch exp := e.(type) {
	case UnaryExpr:
		if exp.Op == "NOT" {
			return exp.Operand
		}
	case BinaryExpr:
		if exp.NegatedOp != "" {
			return BinaryExpr{Op: exp.NegatedOp, NegatedOp: exp.Op, LHS: exp.LHS, RHS: exp.RHS}
		}
	case InExpr:
		exp.Not = !exp.Not
		return exp
	case BetweenExpr:
		exp.Not = !exp.Not
		return exp
	case ExistsExpr:
		exp.Not = !exp.Not
		return exp
	}
	return UnaryExpr{Op: "NOT", Operand: e}
}

// In generates column IN (value1, value2, ...).
// With no values the expression is always false.
func In(col interface{}, values ...interface{}) Expr {
	return InExpr{LHS: colOf(col), Values: valsOf(values)}
}

// NotIn generates column NOT IN (value1, value2, ...).
// With no values the expression is always true.
func NotIn(col interface{}, values ...interface{}) Expr {
	return InExpr{LHS: colOf(col), Values: valsOf(values), Not: true}
}

// Between generates column BETWEEN from AND to.
func Between(col, from, to interface{}) Expr {
	return BetweenExpr{Operand: colOf(col), From: valOf(from), To: valOf(to)}
}

// NotBetween generates column NOT BETWEEN from AND to.
func NotBetween(col, from, to interface{}) Expr {
	return BetweenExpr{Operand: colOf(col), From: valOf(from), To: valOf(to), Not: true}
}

// Exists generates EXISTS (subquery).
func Exists(query Relation) Expr {
	q := query
	return ExistsExpr{Query: &q}
}

// NotExists generates NOT EXISTS (subquery).
func NotExists(query Relation) Expr {
	q := query
	return ExistsExpr{Query: &q, Not: true}
}

// Fn generates a function call expression.
//
// Example:
//
//	querel.Fn("LENGTH", querel.Col("title"))
func Fn(name string, args ...interface{}) Expr {
	converted := make([]Expr, len(args))
	for i, a := range args {
		converted[i] = valOf(a)
	}
	return FuncExpr{Name: name, Args: converted}
}

// Collate applies a collation to an expression.
func Collate(col interface{}, collation string) Expr {
	return CollateExpr{Operand: colOf(col), Collation: collation}
}

// Tuple generates a row-value tuple: (a, b, c).
func Tuple(elems ...interface{}) Expr {
	return TupleExpr{Elems: valsOf(elems)}
}

// =============================================================================
// Rendering
// =============================================================================

// needsParens reports whether an expression must be parenthesized when
// embedded as an operand of another expression. The top-level caller controls
// whether the outer result is wrapped; nested operands always request
// wrapping from their children so operator precedence can never bite.
func needsParens(e Expr) bool {
	switch exp := e.(type) {
	case ColumnExpr, ValueExpr, FuncExpr, TupleExpr, ExistsExpr:
		return false
	case AssocExpr:
		return len(exp.Operands) > 1
	default:
		return true
	}
}

// renderExpr renders an expression to a SQL fragment, contributing to the
// context's argument list as needed. wrapped requests precedence-safe
// parenthesization of the result.
func renderExpr(e Expr, ctx *genContext, wrapped bool) (string, error) {
	sql, err := renderExprBare(e, ctx)
	if err != nil {
		return "", err
	}
	if wrapped && needsParens(e) {
		return "(" + sql + ")", nil
	}
	return sql, nil
}

//nolint:cyclop // single exhaustive dispatch over the closed variant set
func renderExprBare(e Expr, ctx *genContext) (string, error) {
	switch exp := e.(type) {
	case ColumnExpr:
		return ctx.qualifier(exp.Alias) + ctx.dialect.QuoteIdentifier(exp.Name), nil

	case ValueExpr:
		if exp.Value == nil {
			return "NULL", nil
		}
		return ctx.bind(exp.Value)

	case UnaryExpr:
		operand, err := renderExpr(exp.Operand, ctx, true)
		if err != nil {
			return "", err
		}
		if exp.Op == "NOT" {
			return "NOT " + operand, nil
		}
		return exp.Op + operand, nil

	case BinaryExpr:
		lhs, err := renderExpr(exp.LHS, ctx, true)
		if err != nil {
			return "", err
		}
		rhs, err := renderExpr(exp.RHS, ctx, true)
		if err != nil {
			return "", err
		}
		return lhs + " " + exp.Op + " " + rhs, nil

	case AssocExpr:
		return renderAssoc(exp, ctx)

	case FuncExpr:
		parts := make([]string, len(exp.Args))
		for i, arg := range exp.Args {
			sql, err := renderExpr(arg, ctx, false)
			if err != nil {
				return "", err
			}
			parts[i] = sql
		}
		return exp.Name + "(" + strings.Join(parts, ", ") + ")", nil

	case InExpr:
		return renderIn(exp, ctx)

	case BetweenExpr:
		return renderBetween(exp, ctx)

	case ExistsExpr:
		sub, err := renderSubquery(*exp.Query, ctx)
		if err != nil {
			return "", err
		}
		if exp.Not {
			return "NOT EXISTS (" + sub + ")", nil
		}
		return "EXISTS (" + sub + ")", nil

	case CollateExpr:
		operand, err := renderExpr(exp.Operand, ctx, true)
		if err != nil {
			return "", err
		}
		return operand + " COLLATE " + exp.Collation, nil

	case TupleExpr:
		parts := make([]string, len(exp.Elems))
		for i, elem := range exp.Elems {
			sql, err := renderExpr(elem, ctx, false)
			if err != nil {
				return "", err
			}
			parts[i] = sql
		}
		return "(" + strings.Join(parts, ", ") + ")", nil

	case RawExpr:
		return renderRaw(exp, ctx)

	default:
		return "", configErrorf(UnknownTerm, "unknown expression type %T", e)
	}
}

func renderAssoc(exp AssocExpr, ctx *genContext) (string, error) {
	if len(exp.Operands) == 0 {
		// Empty conjunction is true, empty disjunction is false.
		if exp.Op == "OR" {
			return "0=1", nil
		}
		return "1=1", nil
	}
	parts := make([]string, len(exp.Operands))
	for i, operand := range exp.Operands {
		sql, err := renderExpr(operand, ctx, true)
		if err != nil {
			return "", err
		}
		parts[i] = sql
	}
	return strings.Join(parts, " "+exp.Op+" "), nil
}

func renderIn(exp InExpr, ctx *genContext) (string, error) {
	if len(exp.Values) == 0 {
		if exp.Not {
			return "1=1", nil
		}
		return "0=1", nil
	}
	lhs, err := renderExpr(exp.LHS, ctx, true)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(exp.Values))
	for i, v := range exp.Values {
		sql, err := renderExpr(v, ctx, false)
		if err != nil {
			return "", err
		}
		parts[i] = sql
	}
	op := "IN"
	if exp.Not {
		op = "NOT IN"
	}
	return lhs + " " + op + " (" + strings.Join(parts, ", ") + ")", nil
}

func renderBetween(exp BetweenExpr, ctx *genContext) (string, error) {
	operand, err := renderExpr(exp.Operand, ctx, true)
	if err != nil {
		return "", err
	}
	from, err := renderExpr(exp.From, ctx, true)
	if err != nil {
		return "", err
	}
	to, err := renderExpr(exp.To, ctx, true)
	if err != nil {
		return "", err
	}
	op := "BETWEEN"
	if exp.Not {
		op = "NOT BETWEEN"
	}
	return operand + " " + op + " " + from + " AND " + to, nil
}

// renderRaw emits the fragment unchanged in binding mode. In literal mode the
// "?" markers are substituted with quoted literals so the fragment can stand
// alone.
func renderRaw(exp RawExpr, ctx *genContext) (string, error) {
	if ctx.binder != nil {
		ctx.binder.args = append(ctx.binder.args, exp.Args...)
		if ctx.dialect.Placeholder(1) == "?" {
			return exp.SQL, nil
		}
		// Renumber "?" markers into dialect placeholders.
		sql := exp.SQL
		base := len(ctx.binder.args) - len(exp.Args)
		for i := range exp.Args {
			sql = strings.Replace(sql, "?", ctx.dialect.Placeholder(base+i+1), 1)
		}
		return sql, nil
	}
	sql := exp.SQL
	for _, arg := range exp.Args {
		lit, err := ctx.dialect.QuoteLiteral(arg)
		if err != nil {
			return "", err
		}
		sql = strings.Replace(sql, "?", lit, 1)
	}
	return sql, nil
}

// =============================================================================
// Qualification
// =============================================================================

// qualifiedExpr rewrites every embedded unqualified column reference to be
// qualified by the given alias, recursively, producing a new expression.
// Subqueries keep their own alias scope and are left untouched.
func qualifiedExpr(e Expr, alias *TableAlias) Expr {
	switch exp := e.(type) {
	case ColumnExpr:
		if exp.Alias == nil {
			exp.Alias = alias
		}
		return exp
	case UnaryExpr:
		exp.Operand = qualifiedExpr(exp.Operand, alias)
		return exp
	case BinaryExpr:
		exp.LHS = qualifiedExpr(exp.LHS, alias)
		exp.RHS = qualifiedExpr(exp.RHS, alias)
		return exp
	case AssocExpr:
		operands := make([]Expr, len(exp.Operands))
		for i, operand := range exp.Operands {
			operands[i] = qualifiedExpr(operand, alias)
		}
		exp.Operands = operands
		return exp
	case FuncExpr:
		args := make([]Expr, len(exp.Args))
		for i, arg := range exp.Args {
			args[i] = qualifiedExpr(arg, alias)
		}
		exp.Args = args
		return exp
	case InExpr:
		exp.LHS = qualifiedExpr(exp.LHS, alias)
		values := make([]Expr, len(exp.Values))
		for i, v := range exp.Values {
			values[i] = qualifiedExpr(v, alias)
		}
		exp.Values = values
		return exp
	case BetweenExpr:
		exp.Operand = qualifiedExpr(exp.Operand, alias)
		exp.From = qualifiedExpr(exp.From, alias)
		exp.To = qualifiedExpr(exp.To, alias)
		return exp
	case CollateExpr:
		exp.Operand = qualifiedExpr(exp.Operand, alias)
		return exp
	case TupleExpr:
		elems := make([]Expr, len(exp.Elems))
		for i, elem := range exp.Elems {
			elems[i] = qualifiedExpr(elem, alias)
		}
		exp.Elems = elems
		return exp
	default:
		return e
	}
}
