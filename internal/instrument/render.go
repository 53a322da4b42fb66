package instrument

import (
	"fmt"
	"strings"

	"github.com/roach88/reprove/internal/witness"
)

// Render produces a deterministic textual form of a module, used by the CLI
// to show instrumentation results and by golden tests. Output is stable for
// identical input trees.
func Render(m Module) string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s\n", m.Name)
	for _, f := range m.Funcs {
		b.WriteString(renderFunc(f))
	}
	return b.String()
}

func renderFunc(f FuncDef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %s(%s)", f.Name, strings.Join(f.Params, ", "))
	if f.Guard != nil {
		fmt.Fprintf(&b, " when %s", RenderExpr(f.Guard))
	}
	fmt.Fprintf(&b, " = %s\n", RenderExpr(f.Body))
	return b.String()
}

// RenderExpr renders a single expression.
func RenderExpr(e Expr) string {
	switch node := e.(type) {
	case nil:
		return ""
	case Lit:
		return renderValue(node.Value)
	case Var:
		return node.Name
	case Call:
		args := make([]string, len(node.Args))
		for i, a := range node.Args {
			args[i] = RenderExpr(a)
		}
		target := node.Target.Func
		if node.Target.Module != "" {
			target = node.Target.Module + "." + node.Target.Func
		}
		return fmt.Sprintf("%s(%s)", target, strings.Join(args, ", "))
	case BinOp:
		return fmt.Sprintf("(%s %s %s)", RenderExpr(node.Left), node.Op, RenderExpr(node.Right))
	case Cond:
		if node.Else == nil {
			return fmt.Sprintf("if %s then %s", RenderExpr(node.Pred), RenderExpr(node.Then))
		}
		return fmt.Sprintf("if %s then %s else %s",
			RenderExpr(node.Pred), RenderExpr(node.Then), RenderExpr(node.Else))
	case Seq:
		parts := make([]string, len(node.Exprs))
		for i, sub := range node.Exprs {
			parts[i] = RenderExpr(sub)
		}
		return "{" + strings.Join(parts, "; ") + "}"
	default:
		return fmt.Sprintf("<unknown %T>", e)
	}
}

func renderValue(v witness.Value) string {
	data, err := witness.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<invalid %T>", v)
	}
	return string(data)
}
