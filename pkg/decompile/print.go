package decompile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sensei-hacker/inav-configurator/pkg/ast"
	"github.com/sensei-hacker/inav-configurator/pkg/diag"
)

// Print renders prog as source text in the surface grammar pkg/langparser
// accepts, the way the teacher's cmd/psil prints a parsed program back to a
// REPL transcript. warnings become a trailing comment block (§4.6 step 7).
func Print(prog *ast.Program, warnings []diag.Diagnostic) string {
	var b strings.Builder
	for _, s := range prog.Statements {
		printStatement(&b, s, 0)
	}
	if len(warnings) > 0 {
		b.WriteString("\n// decompile warnings:\n")
		for _, w := range warnings {
			fmt.Fprintf(&b, "// - %s\n", w.Message)
		}
	}
	return b.String()
}

func indent(n int) string { return strings.Repeat("  ", n) }

func printStatement(b *strings.Builder, s ast.Statement, depth int) {
	switch n := s.(type) {
	case *ast.Destructuring:
		fmt.Fprintf(b, "%sconst { %s } = inav;\n", indent(depth), strings.Join(n.Names, ", "))

	case *ast.LetConst:
		kw := "let"
		if n.Const {
			kw = "const"
		}
		fmt.Fprintf(b, "%s%s %s = %s;\n", indent(depth), kw, n.Name, exprString(n.Init))

	case *ast.VarDecl:
		fmt.Fprintf(b, "%svar %s = %s;\n", indent(depth), n.Name, exprString(n.Init))

	case *ast.Assignment:
		printAssignment(b, n, depth)

	case *ast.EventHandler:
		printHandler(b, n, depth)
	}
}

func printAssignment(b *strings.Builder, n *ast.Assignment, depth int) {
	target := targetString(n.Target)
	switch n.Op {
	case ast.AssignInc, ast.AssignDec:
		fmt.Fprintf(b, "%s%s%s;\n", indent(depth), target, n.Op)
	default:
		fmt.Fprintf(b, "%s%s %s %s;\n", indent(depth), target, n.Op, exprString(n.Value))
	}
}

func targetString(t ast.AssignTarget) string {
	switch n := t.(type) {
	case *ast.Ident:
		return strings.Join(n.Path, ".")
	case *ast.IndexTarget:
		return fmt.Sprintf("%s[%s]", n.Base, exprString(n.Index))
	default:
		return "?"
	}
}

func printHandler(b *strings.Builder, h *ast.EventHandler, depth int) {
	switch h.Handler {
	case ast.HandlerOnAlways:
		fmt.Fprintf(b, "%son.always(() => {\n", indent(depth))
		printBlock(b, h.Body, depth+1)
		fmt.Fprintf(b, "%s});\n", indent(depth))

	case ast.HandlerOnArm:
		fmt.Fprintf(b, "%son.arm(%s() => {\n", indent(depth), configString(h.Config, "delay"))
		printBlock(b, h.Body, depth+1)
		fmt.Fprintf(b, "%s});\n", indent(depth))

	case ast.HandlerIf:
		printIfChain(b, h, depth)

	case ast.HandlerEdge:
		fmt.Fprintf(b, "%sedge(() => %s, %s() => {\n", indent(depth), exprString(h.Condition), configString(h.Config, "duration"))
		printBlock(b, h.Body, depth+1)
		fmt.Fprintf(b, "%s});\n", indent(depth))

	case ast.HandlerDelay:
		fmt.Fprintf(b, "%sdelay(() => %s, %s() => {\n", indent(depth), exprString(h.Condition), configString(h.Config, "duration"))
		printBlock(b, h.Body, depth+1)
		fmt.Fprintf(b, "%s});\n", indent(depth))

	case ast.HandlerSticky:
		on, off := argOrLiteral(h.Args, 0), argOrLiteral(h.Args, 1)
		fmt.Fprintf(b, "%ssticky(() => %s, () => %s, () => {\n", indent(depth), on, off)
		printBlock(b, h.Body, depth+1)
		fmt.Fprintf(b, "%s});\n", indent(depth))

	case ast.HandlerTimer:
		onMs, offMs := argOrLiteral(h.Args, 0), argOrLiteral(h.Args, 1)
		fmt.Fprintf(b, "%stimer(%s, %s, () => {\n", indent(depth), onMs, offMs)
		printBlock(b, h.Body, depth+1)
		fmt.Fprintf(b, "%s});\n", indent(depth))

	case ast.HandlerWhenChanged:
		value, threshold := argOrLiteral(h.Args, 0), argOrLiteral(h.Args, 1)
		fmt.Fprintf(b, "%swhenChanged(%s, %s, () => {\n", indent(depth), value, threshold)
		printBlock(b, h.Body, depth+1)
		fmt.Fprintf(b, "%s});\n", indent(depth))
	}
}

// printIfChain prints an `if`, following a trailing Negated HandlerIf in
// the body as `else if`/`else` instead of a nested standalone `if`, the
// inverse of pkg/langparser's lowerIf flattening.
func printIfChain(b *strings.Builder, h *ast.EventHandler, depth int) {
	fmt.Fprintf(b, "%sif (%s) {\n", indent(depth), exprString(h.Condition))
	body, next := splitTrailingElse(h.Body)
	printBlock(b, body, depth+1)
	fmt.Fprintf(b, "%s}", indent(depth))
	if next == nil {
		b.WriteString("\n")
		return
	}
	if isPlainElse(next) {
		b.WriteString(" else {\n")
		printBlock(b, next.Body, depth+1)
		fmt.Fprintf(b, "%s}\n", indent(depth))
		return
	}
	b.WriteString(" else ")
	printIfChainInline(b, next, depth)
}

// printIfChainInline continues an else-if chain without re-emitting the
// leading indent (it follows "} else " on the same line).
func printIfChainInline(b *strings.Builder, h *ast.EventHandler, depth int) {
	fmt.Fprintf(b, "if (%s) {\n", exprString(h.Condition))
	body, next := splitTrailingElse(h.Body)
	printBlock(b, body, depth+1)
	fmt.Fprintf(b, "%s}", indent(depth))
	if next == nil {
		b.WriteString("\n")
		return
	}
	if isPlainElse(next) {
		b.WriteString(" else {\n")
		printBlock(b, next.Body, depth+1)
		fmt.Fprintf(b, "%s}\n", indent(depth))
		return
	}
	b.WriteString(" else ")
	printIfChainInline(b, next, depth)
}

// splitTrailingElse reports whether body's last statement is the
// synthetic negated EventHandler pkg/langparser.lowerIf appends for an
// else/else-if branch, and returns the body without it plus that handler.
func splitTrailingElse(body []ast.Statement) ([]ast.Statement, *ast.EventHandler) {
	if len(body) == 0 {
		return body, nil
	}
	last, ok := body[len(body)-1].(*ast.EventHandler)
	if !ok || last.Handler != ast.HandlerIf || !last.Negated {
		return body, nil
	}
	return body[:len(body)-1], last
}

// isPlainElse reports whether h represents a trailing `else { ... }`
// rather than an `else if (...) { ... }`: its condition is the bare
// negation of its parent's condition (pkg/langparser wraps it in exactly
// one UnaryExpression), not an independently-lowered comparison.
func isPlainElse(h *ast.EventHandler) bool {
	_, ok := h.Condition.(*ast.UnaryExpression)
	return ok
}

func printBlock(b *strings.Builder, stmts []ast.Statement, depth int) {
	for _, s := range stmts {
		printStatement(b, s, depth)
	}
}

func configString(cfg map[string]ast.Expr, key string) string {
	v, ok := cfg[key]
	if !ok {
		return ""
	}
	return fmt.Sprintf("{ %s: %s }, ", key, exprString(v))
}

func argOrLiteral(args []ast.Expr, i int) string {
	if i >= len(args) {
		return "0"
	}
	return exprString(args[i])
}

// exprString renders e as a surface expression, wrapping a nested
// binary/logical/unary child in parentheses whenever precedence could
// otherwise be ambiguous — always safe, occasionally more verbose than
// strictly necessary.
func exprString(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.Literal:
		if n.IsBool {
			return strconv.FormatBool(n.Bool)
		}
		return strconv.FormatInt(int64(n.Num), 10)

	case *ast.Identifier:
		return strings.Join(n.Path, ".")

	case *ast.IndexExpr:
		return fmt.Sprintf("%s[%s]", n.Base, exprString(n.Index))

	case *ast.MemberExpression:
		return exprString(n.Target)

	case *ast.BinaryExpression:
		return fmt.Sprintf("%s %s %s", wrapped(n.Left), n.Op, wrapped(n.Right))

	case *ast.LogicalExpression:
		return fmt.Sprintf("%s %s %s", wrapped(n.Left), n.Op, wrapped(n.Right))

	case *ast.UnaryExpression:
		return fmt.Sprintf("!%s", wrapped(n.Arg))

	case *ast.CallExpression:
		return fmt.Sprintf("%s(%s)", n.Kind, exprString(n.Arg))

	default:
		return "?"
	}
}

func wrapped(e ast.Expr) string {
	switch e.(type) {
	case *ast.BinaryExpression, *ast.LogicalExpression, *ast.UnaryExpression:
		return "(" + exprString(e) + ")"
	default:
		return exprString(e)
	}
}
