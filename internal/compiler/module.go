// Package compiler turns CUE module definitions into instrument.Module
// values. Uses the CUE SDK's Go API directly (not CLI subprocess).
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/reprove/internal/instrument"
	"github.com/roach88/reprove/internal/witness"
)

// CompileModule parses a CUE value into a module definition.
//
// The CUE value should be the module struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`module: MyMod: { ... }`)
//	mod, err := CompileModule(v.LookupPath(cue.ParsePath("module.MyMod")))
//
// Each field of the struct is one function definition:
//
//	f: {
//		params: ["x"]
//		guard: {op: ">", left: {var: "x"}, right: {lit: 0}}
//		body:  {call: "Helpers.g", args: [{var: "x"}]}
//	}
//
// params and guard are optional; body is required.
func CompileModule(v cue.Value) (*instrument.Module, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	mod := &instrument.Module{}

	// Module name comes from the struct label (the path selector).
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		mod.Name = labels[len(labels)-1].String()
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		fn, err := parseFunc(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		mod.Funcs = append(mod.Funcs, fn)
	}

	if len(mod.Funcs) == 0 {
		return nil, &CompileError{
			Field:   "funcs",
			Message: "at least one function is required",
			Pos:     v.Pos(),
		}
	}

	return mod, nil
}

// parseFunc parses a single function definition.
func parseFunc(name string, v cue.Value) (instrument.FuncDef, error) {
	fn := instrument.FuncDef{Name: name}

	// Parse params (optional, defaults to zero-arity)
	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if paramsVal.Exists() {
		paramIter, err := paramsVal.List()
		if err != nil {
			return fn, formatCUEError(err)
		}
		for paramIter.Next() {
			param, err := paramIter.Value().String()
			if err != nil {
				return fn, formatCUEError(err)
			}
			fn.Params = append(fn.Params, param)
		}
	}

	// Parse guard (optional)
	guardVal := v.LookupPath(cue.ParsePath("guard"))
	if guardVal.Exists() {
		guard, err := parseExpr(guardVal)
		if err != nil {
			return fn, err
		}
		fn.Guard = guard
	}

	// Parse body (required)
	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if !bodyVal.Exists() {
		return fn, &CompileError{
			Field:   fmt.Sprintf("%s.body", name),
			Message: "function body is required",
			Pos:     v.Pos(),
		}
	}
	body, err := parseExpr(bodyVal)
	if err != nil {
		return fn, err
	}
	fn.Body = body

	return fn, nil
}

// parseExpr parses one expression struct. Exactly one discriminating key
// selects the node type:
//
//	{lit: 3}                                    literal
//	{var: "x"}                                  parameter reference
//	{call: "Helpers.g", args: [...]}            call site
//	{op: "+", left: ..., right: ...}            binary operation
//	{cond: ..., then: ..., else: ...}           conditional
//	{seq: [...]}                                sequence
func parseExpr(v cue.Value) (instrument.Expr, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if litVal := v.LookupPath(cue.ParsePath("lit")); litVal.Exists() {
		return parseLit(litVal)
	}

	if varVal := v.LookupPath(cue.ParsePath("var")); varVal.Exists() {
		name, err := varVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return instrument.Var{Name: name}, nil
	}

	if callVal := v.LookupPath(cue.ParsePath("call")); callVal.Exists() {
		return parseCall(v, callVal)
	}

	if opVal := v.LookupPath(cue.ParsePath("op")); opVal.Exists() {
		op, err := opVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		left, err := parseExpr(v.LookupPath(cue.ParsePath("left")))
		if err != nil {
			return nil, err
		}
		right, err := parseExpr(v.LookupPath(cue.ParsePath("right")))
		if err != nil {
			return nil, err
		}
		return instrument.BinOp{Op: op, Left: left, Right: right}, nil
	}

	if condVal := v.LookupPath(cue.ParsePath("cond")); condVal.Exists() {
		pred, err := parseExpr(condVal)
		if err != nil {
			return nil, err
		}
		thenExpr, err := parseExpr(v.LookupPath(cue.ParsePath("then")))
		if err != nil {
			return nil, err
		}
		elseExpr, err := parseExpr(v.LookupPath(cue.ParsePath("else")))
		if err != nil {
			return nil, err
		}
		return instrument.Cond{Pred: pred, Then: thenExpr, Else: elseExpr}, nil
	}

	if seqVal := v.LookupPath(cue.ParsePath("seq")); seqVal.Exists() {
		seqIter, err := seqVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var seq instrument.Seq
		for seqIter.Next() {
			sub, err := parseExpr(seqIter.Value())
			if err != nil {
				return nil, err
			}
			seq.Exprs = append(seq.Exprs, sub)
		}
		return seq, nil
	}

	return nil, &CompileError{
		Field:   "expr",
		Message: "expression must have one of: lit, var, call, op, cond, seq",
		Pos:     v.Pos(),
	}
}

// parseCall parses a call expression. The call target is "Module.func";
// arity comes from the argument count.
func parseCall(v, callVal cue.Value) (instrument.Expr, error) {
	target, err := callVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	id, err := witness.ParseID(target)
	if err != nil {
		return nil, &CompileError{
			Field:   "call",
			Message: fmt.Sprintf("invalid call target %q: must be Module.func", target),
			Pos:     callVal.Pos(),
		}
	}

	var args []instrument.Expr
	argsVal := v.LookupPath(cue.ParsePath("args"))
	if argsVal.Exists() {
		argIter, err := argsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for argIter.Next() {
			arg, err := parseExpr(argIter.Value())
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
	}

	return instrument.Call{
		Target: instrument.Ref{Module: id.Module, Func: id.Name, Arity: len(args)},
		Args:   args,
	}, nil
}

// parseLit parses a literal value. Floats are forbidden: literal values
// flow into stored witnesses, and the canonical encoding has no float form.
func parseLit(v cue.Value) (instrument.Expr, error) {
	switch v.IncompleteKind() {
	case cue.NullKind:
		return instrument.Lit{Value: witness.Null{}}, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return instrument.Lit{Value: witness.String(s)}, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return instrument.Lit{Value: witness.Int(n)}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return instrument.Lit{Value: witness.Bool(b)}, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "lit",
			Message: "float literals are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "lit",
			Message: fmt.Sprintf("unsupported literal kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
