package instrument

import (
	"fmt"

	"github.com/roach88/reprove/internal/witness"
)

// Expr represents an expression in a module definition.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the rewriter and the evaluator.
//
// Expression types:
//   - Lit: literal witness value
//   - Var: reference to a function parameter
//   - Call: call expression with a resolved target
//   - BinOp: binary operation over two sub-expressions
//   - Cond: conditional with predicate, then and else arms
//   - Seq: sequence of expressions, evaluating to the last one
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Lit is a literal value expression.
type Lit struct {
	Value witness.Value
}

func (Lit) exprNode() {}

// Var references a parameter of the enclosing function by name.
type Var struct {
	Name string
}

func (Var) exprNode() {}

// Ref identifies a call target: module, function and arity.
// Arity is part of the identity so same-named functions with different
// parameter counts are distinct targets.
type Ref struct {
	Module string
	Func   string
	Arity  int
}

// String renders the target as "Module.func/arity".
func (r Ref) String() string {
	return fmt.Sprintf("%s.%s/%d", r.Module, r.Func, r.Arity)
}

// Call is a single call site: a resolved target plus argument expressions.
// A call site is immutable once captured; rewriting never mutates it and
// consumes it exactly once, emitting a fresh node.
type Call struct {
	Target Ref
	Args   []Expr
}

func (Call) exprNode() {}

// BinOp is a binary operation. Operands evaluate left to right.
//
// Supported operators: "+", "-", "*", "==", "<", ">", "and", "or".
type BinOp struct {
	Op    string
	Left  Expr
	Right Expr
}

func (BinOp) exprNode() {}

// Cond is a conditional expression. Pred must evaluate to a Bool.
type Cond struct {
	Pred Expr
	Then Expr
	Else Expr
}

func (Cond) exprNode() {}

// Seq evaluates each expression in order and yields the last one's value.
// The rewriter emits Seq nodes to prepend yield calls; source modules may
// also use them directly.
type Seq struct {
	Exprs []Expr
}

func (Seq) exprNode() {}

// FuncDef is a single function definition.
//
// Guard, when present, is a single-expression guard clause deciding whether
// the body runs. Guards are a scheduling-neutral context: inserting a
// side-effecting expression inside one would change control-flow semantics,
// so the rewriter refuses to instrument call sites that appear there.
type FuncDef struct {
	Name   string
	Params []string
	Guard  Expr // nil when the function has no guard
	Body   Expr
}

// Arity returns the number of parameters.
func (f FuncDef) Arity() int {
	return len(f.Params)
}

// Module is a named collection of function definitions, the unit handed to
// the instrumenter and the evaluator.
type Module struct {
	Name  string
	Funcs []FuncDef
}

// Func returns the definition of name/arity, if present.
func (m Module) Func(name string, arity int) (FuncDef, bool) {
	for _, f := range m.Funcs {
		if f.Name == name && f.Arity() == arity {
			return f, true
		}
	}
	return FuncDef{}, false
}

// cloneExpr deep-copies an expression tree. The rewriter is pure: its output
// never aliases mutable parts of its input.
func cloneExpr(e Expr) Expr {
	switch node := e.(type) {
	case nil:
		return nil
	case Lit:
		return node
	case Var:
		return node
	case Call:
		args := make([]Expr, len(node.Args))
		for i, a := range node.Args {
			args[i] = cloneExpr(a)
		}
		return Call{Target: node.Target, Args: args}
	case BinOp:
		return BinOp{Op: node.Op, Left: cloneExpr(node.Left), Right: cloneExpr(node.Right)}
	case Cond:
		return Cond{Pred: cloneExpr(node.Pred), Then: cloneExpr(node.Then), Else: cloneExpr(node.Else)}
	case Seq:
		exprs := make([]Expr, len(node.Exprs))
		for i, sub := range node.Exprs {
			exprs[i] = cloneExpr(sub)
		}
		return Seq{Exprs: exprs}
	default:
		// Sealed interface: unreachable
		return e
	}
}
