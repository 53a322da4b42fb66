// Package instrument rewrites module definitions to inject scheduling-yield
// points before call sites.
//
// The sole purpose of the injected yield is to give the scheduler an
// opportunity to switch to another concurrently running unit of work,
// increasing the chance of exposing interleaving-dependent bugs under
// property testing. The yield carries no other side effect and does not
// block.
//
// Rewriting is pure: Instrument returns a new module definition and never
// mutates its input. Traversal over call sites within a function is
// syntactic left-to-right, outer-to-inner, so identical input always
// produces identical output. A module that has already been instrumented
// gains no additional yields: the yield call itself is excluded by policy
// and already-wrapped call sites are recognized and left alone.
package instrument

import "fmt"

// Instrument rewrites every function body in m, prepending a yield call
// before each call site the policy marks instrumentable. Call sites in
// guard clauses are skipped with an UnsupportedConstructError diagnostic.
//
// All other semantics - argument evaluation order, return value, raised
// errors - are preserved exactly.
func Instrument(m Module, policy Policy) (Module, []Diagnostic) {
	out := Module{Name: m.Name, Funcs: make([]FuncDef, len(m.Funcs))}
	var diags []Diagnostic

	for i, f := range m.Funcs {
		rw := &rewriter{
			module:   m.Name,
			funcName: fmt.Sprintf("%s/%d", f.Name, f.Arity()),
			policy:   policy,
		}

		out.Funcs[i] = FuncDef{
			Name:   f.Name,
			Params: append([]string(nil), f.Params...),
			Guard:  rw.rewriteGuard(f.Guard),
			Body:   rw.rewrite(f.Body),
		}
		diags = append(diags, rw.diags...)
	}

	return out, diags
}

// rewriter walks one function definition. It carries the enclosing function
// identity for diagnostics and accumulates skipped sites in traversal order.
type rewriter struct {
	module   string
	funcName string
	policy   Policy
	diags    []Diagnostic
}

// rewrite transforms an expression in normal (instrumentable) context.
// Nodes are visited outer-to-inner; sibling sub-expressions left-to-right.
func (rw *rewriter) rewrite(e Expr) Expr {
	switch node := e.(type) {
	case nil:
		return nil
	case Lit, Var:
		return node
	case Call:
		return rw.rewriteCall(node, false)
	case BinOp:
		return BinOp{Op: node.Op, Left: rw.rewrite(node.Left), Right: rw.rewrite(node.Right)}
	case Cond:
		return Cond{
			Pred: rw.rewrite(node.Pred),
			Then: rw.rewrite(node.Then),
			Else: rw.rewrite(node.Else),
		}
	case Seq:
		// An already-instrumented pair (yield call followed by exactly one
		// expression) must not gain a second yield. Rewrite the wrapped
		// expression without wrapping its own head call again.
		if isYieldPair(node) {
			inner := node.Exprs[1]
			if call, ok := inner.(Call); ok {
				return Seq{Exprs: []Expr{node.Exprs[0], rw.rewriteCall(call, true)}}
			}
			return Seq{Exprs: []Expr{node.Exprs[0], rw.rewrite(inner)}}
		}
		exprs := make([]Expr, len(node.Exprs))
		for i, sub := range node.Exprs {
			exprs[i] = rw.rewrite(sub)
		}
		return Seq{Exprs: exprs}
	default:
		// Sealed interface: unreachable
		return e
	}
}

// rewriteCall handles a single call site. The site itself is wrapped first
// (outer), then its arguments are rewritten (inner, left-to-right).
// skipWrap suppresses wrapping for a call that already has a yield.
func (rw *rewriter) rewriteCall(call Call, skipWrap bool) Expr {
	args := make([]Expr, len(call.Args))
	for i, a := range call.Args {
		args[i] = rw.rewrite(a)
	}
	rewritten := Call{Target: call.Target, Args: args}

	if skipWrap || !rw.policy.IsInstrumentable(call.Target) {
		return rewritten
	}

	return Seq{Exprs: []Expr{yieldCall(), rewritten}}
}

// rewriteGuard transforms a guard expression. Guards are a single-expression
// control-flow context: a side-effecting insertion there would change which
// clause runs, so instrumentable call sites are recorded as diagnostics and
// left untouched.
func (rw *rewriter) rewriteGuard(e Expr) Expr {
	if e == nil {
		return nil
	}
	rw.reportGuardCalls(e)
	return cloneExpr(e)
}

// reportGuardCalls records every instrumentable call site inside a guard,
// in left-to-right outer-to-inner order.
func (rw *rewriter) reportGuardCalls(e Expr) {
	switch node := e.(type) {
	case nil, Lit, Var:
	case Call:
		if rw.policy.IsInstrumentable(node.Target) {
			rw.diags = append(rw.diags, Diagnostic{
				Module: rw.module,
				Err: &UnsupportedConstructError{
					Target: node.Target,
					Func:   rw.funcName,
					Reason: "call inside single-expression guard clause",
				},
			})
		}
		for _, a := range node.Args {
			rw.reportGuardCalls(a)
		}
	case BinOp:
		rw.reportGuardCalls(node.Left)
		rw.reportGuardCalls(node.Right)
	case Cond:
		rw.reportGuardCalls(node.Pred)
		rw.reportGuardCalls(node.Then)
		rw.reportGuardCalls(node.Else)
	case Seq:
		for _, sub := range node.Exprs {
			rw.reportGuardCalls(sub)
		}
	}
}

// yieldCall builds a fresh yield call site.
func yieldCall() Call {
	return Call{Target: YieldTarget}
}

// isYieldPair reports whether a Seq is exactly a yield call followed by one
// expression, the shape the rewriter itself emits.
func isYieldPair(s Seq) bool {
	if len(s.Exprs) != 2 {
		return false
	}
	call, ok := s.Exprs[0].(Call)
	return ok && call.Target == YieldTarget && len(call.Args) == 0
}
