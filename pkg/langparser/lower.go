package langparser

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/sensei-hacker/inav-configurator/pkg/ast"
	"github.com/sensei-hacker/inav-configurator/pkg/diag"
)

// Parse tokenizes and parses source, then lowers the raw participle tree
// into the canonical ast.Program. Syntax errors carry their line/column,
// read off participle's own lexer.Position, the same way the teacher's
// pkg/parser reports a failed Quotation parse. The returned error is always
// wrapped so errors.Is(err, diag.ErrSyntax) succeeds.
func Parse(source string) (*ast.Program, error) {
	raw, err := Parser.ParseString("", source)
	if err != nil {
		if perr, ok := err.(participle.Error); ok {
			pos := perr.Position()
			return nil, diag.WrapSyntax(fmt.Errorf("syntax error at line %d, col %d: %s", pos.Line, pos.Column, perr.Message()))
		}
		return nil, diag.WrapSyntax(fmt.Errorf("syntax error: %w", err))
	}
	return lowerProgram(raw), nil
}

func lowerProgram(p *grammarProgram) *ast.Program {
	return &ast.Program{Statements: lowerStatements(p.Statements)}
}

func lowerStatements(in []*grammarStatement) []ast.Statement {
	out := make([]ast.Statement, 0, len(in))
	for _, s := range in {
		out = append(out, lowerStatement(s))
	}
	return out
}

func pos(p lexer.Position) ast.Pos { return ast.Pos{Line: p.Line, Col: p.Column} }

func lowerStatement(s *grammarStatement) ast.Statement {
	switch {
	case s.Destructuring != nil:
		return &ast.Destructuring{Names: s.Destructuring.Names}
	case s.LetConst != nil:
		lc := s.LetConst
		return &ast.LetConst{
			Name:  lc.Name,
			Init:  lowerExpr(lc.Init),
			Const: lc.Keyword == "const",
		}
	case s.VarDecl != nil:
		return &ast.VarDecl{Name: s.VarDecl.Name, Init: lowerExpr(s.VarDecl.Init)}
	case s.If != nil:
		return lowerIf(s.If, false)
	case s.On != nil:
		return lowerOn(s.On)
	case s.HandlerCall != nil:
		return lowerHandlerCall(s.HandlerCall)
	case s.PreIncDec != nil:
		return &ast.Assignment{
			Target: lowerAssignTarget(s.PreIncDec.Target),
			Op:     incDecOp(s.PreIncDec.Op),
		}
	case s.PostIncDec != nil:
		return &ast.Assignment{
			Target: lowerAssignTarget(s.PostIncDec.Target),
			Op:     incDecOp(s.PostIncDec.Op),
		}
	case s.Assign != nil:
		a := s.Assign
		return &ast.Assignment{
			Target: lowerAssignTarget(a.Target),
			Op:     ast.AssignOp(a.Op),
			Value:  lowerExpr(a.Value),
		}
	default:
		panic("langparser: lowerStatement: empty grammarStatement alternation")
	}
}

func incDecOp(tok string) ast.AssignOp {
	if tok == "++" {
		return ast.AssignInc
	}
	return ast.AssignDec
}

func lowerAssignTarget(t *grammarAssignTarget) ast.AssignTarget {
	if t.Index != nil {
		return &ast.IndexTarget{Base: t.First, Index: lowerExpr(t.Index)}
	}
	path := append([]string{t.First}, t.Rest...)
	return &ast.Ident{Path: path}
}

// lowerIf flattens `if / else if / else` chains into the unified
// EventHandler node; negated marks a branch reached only when the parent
// condition was false (spec.md design notes §9).
func lowerIf(g *grammarIf, negated bool) *ast.EventHandler {
	h := &ast.EventHandler{
		Handler:   ast.HandlerIf,
		Condition: asCondition(lowerExpr(g.Cond)),
		Body:      lowerStatements(g.Then.Statements),
		Negated:   negated,
	}
	if g.Else != nil {
		switch {
		case g.Else.ElseIf != nil:
			h.Body = append(h.Body, lowerIf(g.Else.ElseIf, true))
		case g.Else.Block != nil:
			h.Body = append(h.Body, &ast.EventHandler{
				Handler: ast.HandlerIf,
				Condition: &ast.UnaryExpression{Arg: h.Condition},
				Body:      lowerStatements(g.Else.Block.Statements),
				Negated:   true,
			})
		}
	}
	return h
}

func lowerOn(g *grammarOn) *ast.EventHandler {
	h := &ast.EventHandler{
		Body: lowerBody(g.Body),
	}
	if g.Kind == "arm" {
		h.Handler = ast.HandlerOnArm
		if g.Delay != nil {
			h.Config = map[string]ast.Expr{
				"delay": &ast.Literal{Num: int32(*g.Delay), IsBool: false},
			}
		}
	} else {
		h.Handler = ast.HandlerOnAlways
	}
	return h
}

// lowerBody unwraps the canonicalized `() => expr` / `() => { ... }` arrow
// argument into a flat statement list: a bare expression becomes a single
// implicit handler body the way the teacher's Quotation unwraps a single
// combinator. Codegen never sees arrow syntax, only ast.Statement lists.
func lowerBody(b *grammarBody) []ast.Statement {
	if b == nil {
		return nil
	}
	if b.Block != nil {
		return lowerStatements(b.Block.Statements)
	}
	return []ast.Statement{exprStatement(lowerExpr(b.Expr))}
}

// exprStatement wraps a bare boolean expression body (used by edge/sticky/
// delay's condition arrows) as a body-less HandlerIf EventHandler whose
// Condition carries the expression. Codegen for those handler kinds reads Condition/Args directly
// and never walks Body, so this exists purely to satisfy the Statement
// interface for the rare literal `() => someBoolExpr` body encountered
// standalone.
func exprStatement(e ast.Expr) ast.Statement {
	return &ast.EventHandler{Handler: ast.HandlerIf, Condition: e}
}

func lowerHandlerCall(g *grammarHandlerCall) *ast.EventHandler {
	h := &ast.EventHandler{Config: map[string]ast.Expr{}}

	switch g.Name {
	case "edge":
		h.Handler = ast.HandlerEdge
	case "sticky":
		h.Handler = ast.HandlerSticky
	case "delay":
		h.Handler = ast.HandlerDelay
	case "timer":
		h.Handler = ast.HandlerTimer
	case "whenChanged":
		h.Handler = ast.HandlerWhenChanged
	}

	var body []ast.Statement
	for _, a := range g.Args {
		switch {
		case a.Config != nil:
			h.Config["duration"] = &ast.Literal{Num: int32(*a.Config)}
		case a.Plain != nil:
			h.Args = append(h.Args, lowerExpr(a.Plain))
		case a.Body != nil:
			lowered := lowerBody(a.Body)
			if h.Condition == nil && (h.Handler == ast.HandlerEdge || h.Handler == ast.HandlerDelay) && len(h.Args) == 0 && body == nil {
				if expr, ok := singleExprBody(lowered); ok {
					h.Condition = asCondition(expr)
					continue
				}
			}
			if h.Handler == ast.HandlerSticky && len(h.Args) < 2 {
				if expr, ok := singleExprBody(lowered); ok {
					h.Args = append(h.Args, asCondition(expr))
					continue
				}
			}
			body = lowered
		}
	}
	h.Body = body
	return h
}

// singleExprBody reports whether a lowered body is exactly the synthetic
// single-expression wrapper exprStatement produces, and returns the
// wrapped expression.
func singleExprBody(stmts []ast.Statement) (ast.Expr, bool) {
	if len(stmts) != 1 {
		return nil, false
	}
	h, ok := stmts[0].(*ast.EventHandler)
	if !ok || h.Handler != ast.HandlerIf || h.Body != nil {
		return nil, false
	}
	return h.Condition, true
}

func lowerExpr(g *grammarExpr) ast.Expr {
	return lowerOr(g.Or)
}

// asCondition marks a bare member reference as used in boolean position
// (spec.md §3.4: "MemberExpression(path, boolish?)"). It is a no-op on
// every other expression shape, so it is safe to call at every boolean
// call site without tracking whether a wrap already happened.
func asCondition(e ast.Expr) ast.Expr {
	switch e.(type) {
	case *ast.Identifier, *ast.IndexExpr:
		return &ast.MemberExpression{Target: e, Boolish: true}
	default:
		return e
	}
}

func lowerOr(g *grammarOr) ast.Expr {
	left := lowerAnd(g.Left)
	if len(g.Rest) > 0 {
		left = asCondition(left)
	}
	for _, r := range g.Rest {
		left = &ast.LogicalExpression{Op: ast.LogicalOr, Left: left, Right: asCondition(lowerAnd(r))}
	}
	return left
}

func lowerAnd(g *grammarAnd) ast.Expr {
	left := lowerNot(g.Left)
	if len(g.Rest) > 0 {
		left = asCondition(left)
	}
	for _, r := range g.Rest {
		left = &ast.LogicalExpression{Op: ast.LogicalAnd, Left: left, Right: asCondition(lowerNot(r))}
	}
	return left
}

func lowerNot(g *grammarNot) ast.Expr {
	e := lowerCmp(g.Cmp)
	if g.Bangs > 0 {
		e = asCondition(e)
	}
	for i := 0; i < g.Bangs; i++ {
		e = &ast.UnaryExpression{Arg: e}
	}
	return e
}

var binaryOpByToken = map[string]ast.BinaryOp{
	"==": ast.OpEqual,
	"!=": ast.OpNotEqual,
	">":  ast.OpGreater,
	"<":  ast.OpLower,
	// ">=" and "<=" are accepted by the grammar only so the analyzer can
	// name them in a precise diagnostic; the analyzer rejects them outright
	// (spec.md §9 open question: unsupported comparison operators are a
	// parse-time-adjacent hard error, not silently lowered).
}

func lowerCmp(g *grammarCmp) ast.Expr {
	left := lowerAdd(g.Left)
	if g.Op == nil {
		return left
	}
	op, ok := binaryOpByToken[*g.Op]
	if !ok {
		// ">=" / "<=": preserved verbatim so the analyzer can name the
		// unsupported operator in its diagnostic instead of silently
		// mapping it onto ">" or "<".
		op = ast.BinaryOp(*g.Op)
	}
	return &ast.BinaryExpression{Op: op, Left: left, Right: lowerAdd(g.Right)}
}

func lowerAdd(g *grammarAdd) ast.Expr {
	left := lowerMul(g.Left)
	for i, r := range g.Rest {
		left = &ast.BinaryExpression{Op: ast.BinaryOp(g.Ops[i]), Left: left, Right: lowerMul(r)}
	}
	return left
}

func lowerMul(g *grammarMul) ast.Expr {
	left := lowerUnary(g.Left)
	for i, r := range g.Rest {
		left = &ast.BinaryExpression{Op: ast.BinaryOp(g.Ops[i]), Left: left, Right: lowerUnary(r)}
	}
	return left
}

func lowerUnary(g *grammarUnary) ast.Expr {
	e := lowerPrimary(g.Prim)
	if g.Neg {
		return &ast.BinaryExpression{Op: ast.OpSub, Left: &ast.Literal{Num: 0}, Right: e}
	}
	return e
}

func lowerPrimary(g *grammarPrimary) ast.Expr {
	switch {
	case g.Number != nil:
		return &ast.Literal{Num: int32(*g.Number)}
	case g.Bool != nil:
		return &ast.Literal{IsBool: true, Bool: *g.Bool == "true"}
	case g.AbsCall != nil:
		return &ast.CallExpression{Kind: ast.CallMathAbs, Arg: lowerExpr(g.AbsCall.Arg)}
	case g.Member != nil:
		return lowerMember(g.Member)
	case g.Paren != nil:
		return lowerExpr(g.Paren)
	default:
		panic("langparser: lowerPrimary: empty grammarPrimary alternation")
	}
}

// lowerMember produces a bare Identifier or IndexExpr. Whether this
// reference is used in boolean position is a property of where it sits in
// the expression tree, not of the leaf itself — asCondition wraps it in a
// MemberExpression at every call site where that's true (top of a
// condition, either side of && / ||, the argument of !).
func lowerMember(g *grammarMember) ast.Expr {
	path := append([]string{g.First}, g.Rest...)
	if g.Index != nil {
		if len(path) != 1 {
			// The grammar also accepts an index after a dotted path
			// ("flight.rc[0]"); the joined base names no array namespace,
			// so later stages reject it.
			return &ast.IndexExpr{Base: strings.Join(path, "."), Index: lowerExpr(g.Index)}
		}
		return &ast.IndexExpr{Base: path[0], Index: lowerExpr(g.Index)}
	}
	return &ast.Identifier{Path: path}
}
