package instrument

import (
	"fmt"
	"runtime"

	"github.com/roach88/reprove/internal/witness"
)

// HostFunc is a host-provided implementation of a call target.
type HostFunc func(args []witness.Value) (witness.Value, error)

// Env supplies the runtime bindings an evaluated module needs: host
// implementations for external call targets and the yield hook executed for
// injected yield calls.
type Env struct {
	// Funcs maps external call targets to host implementations.
	Funcs map[Ref]HostFunc

	// Yield runs on every injected yield call. Nil defaults to
	// runtime.Gosched, the cooperative suspension point that lets the
	// scheduler switch to another goroutine.
	Yield func()
}

// Evaluator executes function definitions of a single module. It has no
// shared mutable state; distinct evaluators may run fully in parallel.
type Evaluator struct {
	module Module
	env    Env
}

// NewEvaluator creates an evaluator for m with the given environment.
func NewEvaluator(m Module, env Env) *Evaluator {
	if env.Yield == nil {
		env.Yield = runtime.Gosched
	}
	return &Evaluator{module: m, env: env}
}

// CallFunc evaluates the module function name/len(args) with the given
// arguments. A present guard must evaluate to true, otherwise the call
// fails - there is exactly one clause per name/arity.
func (ev *Evaluator) CallFunc(name string, args []witness.Value) (witness.Value, error) {
	f, ok := ev.module.Func(name, len(args))
	if !ok {
		return nil, fmt.Errorf("undefined function %s.%s/%d", ev.module.Name, name, len(args))
	}

	scope := make(map[string]witness.Value, len(f.Params))
	for i, p := range f.Params {
		scope[p] = args[i]
	}

	if f.Guard != nil {
		pass, err := ev.evalGuard(f.Guard, scope)
		if err != nil {
			return nil, fmt.Errorf("guard of %s.%s/%d: %w", ev.module.Name, name, len(args), err)
		}
		if !pass {
			return nil, fmt.Errorf("no matching clause for %s.%s/%d", ev.module.Name, name, len(args))
		}
	}

	return ev.eval(f.Body, scope)
}

func (ev *Evaluator) evalGuard(g Expr, scope map[string]witness.Value) (bool, error) {
	v, err := ev.eval(g, scope)
	if err != nil {
		return false, err
	}
	b, ok := v.(witness.Bool)
	if !ok {
		return false, fmt.Errorf("guard evaluated to non-boolean %T", v)
	}
	return bool(b), nil
}

// eval evaluates one expression. Arguments and operands evaluate strictly
// left to right; "and"/"or" short-circuit.
func (ev *Evaluator) eval(e Expr, scope map[string]witness.Value) (witness.Value, error) {
	switch node := e.(type) {
	case Lit:
		return node.Value, nil

	case Var:
		v, ok := scope[node.Name]
		if !ok {
			return nil, fmt.Errorf("unbound variable %q", node.Name)
		}
		return v, nil

	case Call:
		return ev.evalCall(node, scope)

	case BinOp:
		return ev.evalBinOp(node, scope)

	case Cond:
		pred, err := ev.eval(node.Pred, scope)
		if err != nil {
			return nil, err
		}
		b, ok := pred.(witness.Bool)
		if !ok {
			return nil, fmt.Errorf("condition evaluated to non-boolean %T", pred)
		}
		if bool(b) {
			return ev.eval(node.Then, scope)
		}
		if node.Else == nil {
			return witness.Null{}, nil
		}
		return ev.eval(node.Else, scope)

	case Seq:
		var last witness.Value = witness.Null{}
		for _, sub := range node.Exprs {
			v, err := ev.eval(sub, scope)
			if err != nil {
				return nil, err
			}
			last = v
		}
		return last, nil

	default:
		return nil, fmt.Errorf("unsupported expression type %T", e)
	}
}

func (ev *Evaluator) evalCall(call Call, scope map[string]witness.Value) (witness.Value, error) {
	if call.Target == YieldTarget {
		ev.env.Yield()
		return witness.Null{}, nil
	}

	args := make([]witness.Value, len(call.Args))
	for i, a := range call.Args {
		v, err := ev.eval(a, scope)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	// Module-local call
	if call.Target.Module == ev.module.Name {
		return ev.CallFunc(call.Target.Func, args)
	}

	fn, ok := ev.env.Funcs[call.Target]
	if !ok {
		return nil, fmt.Errorf("no host binding for %s", call.Target)
	}
	return fn(args)
}

func (ev *Evaluator) evalBinOp(op BinOp, scope map[string]witness.Value) (witness.Value, error) {
	// Short-circuit boolean operators
	if op.Op == "and" || op.Op == "or" {
		left, err := ev.eval(op.Left, scope)
		if err != nil {
			return nil, err
		}
		lb, ok := left.(witness.Bool)
		if !ok {
			return nil, fmt.Errorf("operator %q: non-boolean left operand %T", op.Op, left)
		}
		if op.Op == "and" && !bool(lb) {
			return witness.Bool(false), nil
		}
		if op.Op == "or" && bool(lb) {
			return witness.Bool(true), nil
		}
		right, err := ev.eval(op.Right, scope)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(witness.Bool)
		if !ok {
			return nil, fmt.Errorf("operator %q: non-boolean right operand %T", op.Op, right)
		}
		return rb, nil
	}

	left, err := ev.eval(op.Left, scope)
	if err != nil {
		return nil, err
	}
	right, err := ev.eval(op.Right, scope)
	if err != nil {
		return nil, err
	}

	if op.Op == "==" {
		return witness.Bool(witness.Equal(left, right)), nil
	}

	li, lok := left.(witness.Int)
	ri, rok := right.(witness.Int)
	if !lok || !rok {
		return nil, fmt.Errorf("operator %q: non-integer operands %T, %T", op.Op, left, right)
	}

	switch op.Op {
	case "+":
		return witness.Int(li + ri), nil
	case "-":
		return witness.Int(li - ri), nil
	case "*":
		return witness.Int(li * ri), nil
	case "<":
		return witness.Bool(li < ri), nil
	case ">":
		return witness.Bool(li > ri), nil
	default:
		return nil, fmt.Errorf("unsupported operator %q", op.Op)
	}
}
