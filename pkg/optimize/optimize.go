// Package optimize implements the optimizer (spec.md §4.4): constant
// folding over literal subtrees, and a structural hash that pkg/codegen
// uses to recognize sibling conditions as common subexpressions (design
// notes §9: "CSE via structural/recursive AST hashing, ignoring source
// positions").
package optimize

import (
	"fmt"
	"strings"

	"github.com/sensei-hacker/inav-configurator/pkg/ast"
)

// Fold returns a new program with every subtree whose operands are all
// literals replaced by the single literal it evaluates to. Fold is
// idempotent: Fold(Fold(p)) produces a tree equal to Fold(p), since a
// fully-folded tree contains no foldable subtree left to collapse.
func Fold(prog *ast.Program) *ast.Program {
	out := make([]ast.Statement, len(prog.Statements))
	for i, s := range prog.Statements {
		out[i] = foldStatement(s)
	}
	return &ast.Program{Statements: out}
}

func foldStatement(s ast.Statement) ast.Statement {
	switch n := s.(type) {
	case *ast.VarDecl:
		return &ast.VarDecl{Pos: n.Pos, Name: n.Name, Init: foldExpr(n.Init)}
	case *ast.Assignment:
		a := &ast.Assignment{Pos: n.Pos, Target: n.Target, Op: n.Op}
		if n.Value != nil {
			a.Value = foldExpr(n.Value)
		}
		return a
	case *ast.EventHandler:
		h := &ast.EventHandler{Pos: n.Pos, Handler: n.Handler, Negated: n.Negated}
		if n.Condition != nil {
			h.Condition = foldExpr(n.Condition)
		}
		if n.Config != nil {
			h.Config = make(map[string]ast.Expr, len(n.Config))
			for k, v := range n.Config {
				h.Config[k] = foldExpr(v)
			}
		}
		for _, a := range n.Args {
			h.Args = append(h.Args, foldExpr(a))
		}
		for _, stmt := range n.Body {
			h.Body = append(h.Body, foldStatement(stmt))
		}
		return h
	default:
		return s
	}
}

func foldExpr(e ast.Expr) ast.Expr {
	switch n := e.(type) {
	case *ast.BinaryExpression:
		left := foldExpr(n.Left)
		right := foldExpr(n.Right)
		if ll, ok := left.(*ast.Literal); ok && !ll.IsBool {
			if rl, ok := right.(*ast.Literal); ok && !rl.IsBool {
				if folded, ok := foldBinaryLiterals(n.Op, ll.Num, rl.Num); ok {
					return folded
				}
			}
		}
		return &ast.BinaryExpression{Pos: n.Pos, Op: n.Op, Left: left, Right: right}

	case *ast.LogicalExpression:
		left := foldExpr(n.Left)
		right := foldExpr(n.Right)
		if ll, ok := left.(*ast.Literal); ok && ll.IsBool {
			if rl, ok := right.(*ast.Literal); ok && rl.IsBool {
				var result bool
				if n.Op == ast.LogicalAnd {
					result = ll.Bool && rl.Bool
				} else {
					result = ll.Bool || rl.Bool
				}
				return &ast.Literal{Pos: n.Pos, IsBool: true, Bool: result}
			}
		}
		return &ast.LogicalExpression{Pos: n.Pos, Op: n.Op, Left: left, Right: right}

	case *ast.UnaryExpression:
		arg := foldExpr(n.Arg)
		if lit, ok := arg.(*ast.Literal); ok && lit.IsBool {
			return &ast.Literal{Pos: n.Pos, IsBool: true, Bool: !lit.Bool}
		}
		return &ast.UnaryExpression{Pos: n.Pos, Arg: arg}

	case *ast.CallExpression:
		arg := foldExpr(n.Arg)
		if lit, ok := arg.(*ast.Literal); ok && !lit.IsBool {
			v := lit.Num
			if v < 0 {
				v = -v
			}
			return &ast.Literal{Pos: n.Pos, Num: v}
		}
		return &ast.CallExpression{Pos: n.Pos, Kind: n.Kind, Arg: arg}

	case *ast.MemberExpression:
		return &ast.MemberExpression{Pos: n.Pos, Target: foldExpr(n.Target), Boolish: n.Boolish}

	case *ast.IndexExpr:
		return &ast.IndexExpr{Pos: n.Pos, Base: n.Base, Index: foldExpr(n.Index)}

	default:
		return e // *ast.Literal, *ast.Identifier: already minimal
	}
}

func foldBinaryLiterals(op ast.BinaryOp, l, r int32) (*ast.Literal, bool) {
	switch op {
	case ast.OpAdd:
		return &ast.Literal{Num: l + r}, true
	case ast.OpSub:
		return &ast.Literal{Num: l - r}, true
	case ast.OpMul:
		return &ast.Literal{Num: l * r}, true
	case ast.OpDiv:
		if r == 0 {
			return nil, false
		}
		return &ast.Literal{Num: l / r}, true
	case ast.OpMod:
		if r == 0 {
			return nil, false
		}
		return &ast.Literal{Num: l % r}, true
	case ast.OpEqual:
		return &ast.Literal{IsBool: true, Bool: l == r}, true
	case ast.OpNotEqual:
		return &ast.Literal{IsBool: true, Bool: l != r}, true
	case ast.OpGreater:
		return &ast.Literal{IsBool: true, Bool: l > r}, true
	case ast.OpLower:
		return &ast.Literal{IsBool: true, Bool: l < r}, true
	default:
		return nil, false
	}
}

// Hash returns a structural fingerprint of e that ignores source position,
// so two conditions parsed from different lines but built the same way
// collide. pkg/codegen memoizes on this to implement common-subexpression
// elimination across sibling and nested conditions (spec.md §4.4).
func Hash(e ast.Expr) string {
	var b strings.Builder
	writeHash(&b, e)
	return b.String()
}

func writeHash(b *strings.Builder, e ast.Expr) {
	switch n := e.(type) {
	case nil:
		b.WriteString("nil")
	case *ast.Literal:
		if n.IsBool {
			fmt.Fprintf(b, "bool(%v)", n.Bool)
		} else {
			fmt.Fprintf(b, "num(%d)", n.Num)
		}
	case *ast.Identifier:
		fmt.Fprintf(b, "id(%s)", strings.Join(n.Path, "."))
	case *ast.IndexExpr:
		fmt.Fprintf(b, "idx(%s[", n.Base)
		writeHash(b, n.Index)
		b.WriteString("])")
	case *ast.MemberExpression:
		fmt.Fprintf(b, "member(%v,", n.Boolish)
		writeHash(b, n.Target)
		b.WriteString(")")
	case *ast.BinaryExpression:
		fmt.Fprintf(b, "bin(%s,", n.Op)
		writeHash(b, n.Left)
		b.WriteString(",")
		writeHash(b, n.Right)
		b.WriteString(")")
	case *ast.LogicalExpression:
		fmt.Fprintf(b, "log(%s,", n.Op)
		writeHash(b, n.Left)
		b.WriteString(",")
		writeHash(b, n.Right)
		b.WriteString(")")
	case *ast.UnaryExpression:
		b.WriteString("not(")
		writeHash(b, n.Arg)
		b.WriteString(")")
	case *ast.CallExpression:
		fmt.Fprintf(b, "call(%s,", n.Kind)
		writeHash(b, n.Arg)
		b.WriteString(")")
	default:
		b.WriteString("?")
	}
}
