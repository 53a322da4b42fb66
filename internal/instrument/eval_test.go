package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reprove/internal/witness"
)

// hostEnv wires g and h to recording host functions.
func hostEnv(events *[]string) Env {
	return Env{
		Funcs: map[Ref]HostFunc{
			{Module: "Helpers", Func: "g", Arity: 1}: func(args []witness.Value) (witness.Value, error) {
				*events = append(*events, "call g")
				return args[0], nil
			},
			{Module: "Helpers", Func: "h", Arity: 1}: func(args []witness.Value) (witness.Value, error) {
				*events = append(*events, "call h")
				return args[0], nil
			},
		},
		Yield: func() { *events = append(*events, "yield") },
	}
}

func TestEvalUninstrumentedModule(t *testing.T) {
	var events []string
	ev := NewEvaluator(sumModule(), hostEnv(&events))

	v, err := ev.CallFunc("f", nil)
	require.NoError(t, err)
	assert.True(t, witness.Equal(witness.Int(3), v))
	assert.Equal(t, []string{"call g", "call h"}, events)
}

// Scenario: f() = g(1) + h(2) instrumented must run
// [yield, g(1)], [yield, h(2)], then the addition, final value unchanged.
func TestEvalInstrumentedOrderAndValue(t *testing.T) {
	out, diags := Instrument(sumModule(), DefaultPolicy())
	require.Empty(t, diags)

	var events []string
	ev := NewEvaluator(out, hostEnv(&events))

	v, err := ev.CallFunc("f", nil)
	require.NoError(t, err)
	assert.True(t, witness.Equal(witness.Int(3), v), "final value must be unchanged")
	assert.Equal(t, []string{"yield", "call g", "yield", "call h"}, events,
		"yields precede their calls in left-to-right order")
}

func TestEvalGuard(t *testing.T) {
	m := Module{
		Name: "Guarded",
		Funcs: []FuncDef{{
			Name:   "pos",
			Params: []string{"x"},
			Guard:  BinOp{Op: ">", Left: Var{"x"}, Right: Lit{witness.Int(0)}},
			Body:   Var{"x"},
		}},
	}
	ev := NewEvaluator(m, Env{})

	v, err := ev.CallFunc("pos", []witness.Value{witness.Int(5)})
	require.NoError(t, err)
	assert.True(t, witness.Equal(witness.Int(5), v))

	_, err = ev.CallFunc("pos", []witness.Value{witness.Int(-5)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no matching clause")
}

func TestEvalModuleLocalCalls(t *testing.T) {
	// double(x) = x + x; quad(x) = double(double(x))
	m := Module{
		Name: "Local",
		Funcs: []FuncDef{
			{
				Name:   "double",
				Params: []string{"x"},
				Body:   BinOp{Op: "+", Left: Var{"x"}, Right: Var{"x"}},
			},
			{
				Name:   "quad",
				Params: []string{"x"},
				Body: Call{
					Target: Ref{Module: "Local", Func: "double", Arity: 1},
					Args: []Expr{
						Call{Target: Ref{Module: "Local", Func: "double", Arity: 1}, Args: []Expr{Var{"x"}}},
					},
				},
			},
		},
	}

	ev := NewEvaluator(m, Env{})
	v, err := ev.CallFunc("quad", []witness.Value{witness.Int(3)})
	require.NoError(t, err)
	assert.True(t, witness.Equal(witness.Int(12), v))
}

func TestEvalCond(t *testing.T) {
	m := Module{
		Name: "Condy",
		Funcs: []FuncDef{{
			Name:   "abs",
			Params: []string{"x"},
			Body: Cond{
				Pred: BinOp{Op: "<", Left: Var{"x"}, Right: Lit{witness.Int(0)}},
				Then: BinOp{Op: "-", Left: Lit{witness.Int(0)}, Right: Var{"x"}},
				Else: Var{"x"},
			},
		}},
	}
	ev := NewEvaluator(m, Env{})

	v, err := ev.CallFunc("abs", []witness.Value{witness.Int(-4)})
	require.NoError(t, err)
	assert.True(t, witness.Equal(witness.Int(4), v))

	v, err = ev.CallFunc("abs", []witness.Value{witness.Int(9)})
	require.NoError(t, err)
	assert.True(t, witness.Equal(witness.Int(9), v))
}

func TestEvalShortCircuit(t *testing.T) {
	// or short-circuits: the right operand would fail if evaluated
	m := Module{
		Name: "SC",
		Funcs: []FuncDef{{
			Name: "f",
			Body: BinOp{
				Op:    "or",
				Left:  Lit{witness.Bool(true)},
				Right: Call{Target: Ref{Module: "Nowhere", Func: "boom", Arity: 0}},
			},
		}},
	}
	ev := NewEvaluator(m, Env{})

	v, err := ev.CallFunc("f", nil)
	require.NoError(t, err)
	assert.True(t, witness.Equal(witness.Bool(true), v))
}

func TestEvalErrors(t *testing.T) {
	ev := NewEvaluator(sumModule(), Env{})

	_, err := ev.CallFunc("missing", nil)
	assert.ErrorContains(t, err, "undefined function")

	// f calls host functions with no bindings supplied
	_, err = ev.CallFunc("f", nil)
	assert.ErrorContains(t, err, "no host binding")
}
