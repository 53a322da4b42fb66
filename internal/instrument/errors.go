package instrument

import (
	"errors"
	"fmt"
)

// UnsupportedConstructError reports a call site the rewriter cannot safely
// wrap: inserting a side-effecting expression at that position would change
// control-flow semantics. The site is left un-instrumented; the error is
// recorded as a diagnostic, never a hard failure of the whole module.
type UnsupportedConstructError struct {
	Target Ref
	Func   string // enclosing function, "name/arity"
	Reason string
}

func (e *UnsupportedConstructError) Error() string {
	return fmt.Sprintf("cannot instrument call to %s in %s: %s", e.Target, e.Func, e.Reason)
}

// IsUnsupportedConstruct reports whether err is (or wraps) an
// UnsupportedConstructError.
func IsUnsupportedConstruct(err error) bool {
	var ue *UnsupportedConstructError
	return errors.As(err, &ue)
}

// Diagnostic records one skipped call site during instrumentation.
type Diagnostic struct {
	Module string
	Err    *UnsupportedConstructError
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %v", d.Module, d.Err)
}
