// Package registers implements the variable handler (spec.md §4.3): it
// inlines every let/const binding at its use sites, then allocates the
// 8-slot persistent gvar register file to the program's `var` declarations,
// reserving whichever gvar indices the source already names explicitly.
package registers

import (
	"fmt"

	"github.com/sensei-hacker/inav-configurator/pkg/ast"
	"github.com/sensei-hacker/inav-configurator/pkg/diag"
)

// SlotCount is the size of the persistent register file (spec.md §3.5).
const SlotCount = 8

// maxInlineDepth bounds recursive let/const substitution so a cyclic
// binding (`let a = b; let b = a;`) fails fast with a clear diagnostic
// instead of recursing until the stack overflows.
const maxInlineDepth = 32

// Allocation is the result of resolving every `var` declaration to a gvar
// slot index.
type Allocation struct {
	Slots map[string]int32
}

// CyclicConstantError reports a let/const binding that (transitively)
// refers to itself.
type CyclicConstantError struct {
	Name string
}

func (e *CyclicConstantError) Error() string {
	return fmt.Sprintf("cyclic constant reference involving %q", e.Name)
}

// OverflowError reports that the register file has no free slot left for
// a `var` declaration.
type OverflowError struct {
	Name string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("register file exhausted: no free gvar slot for %q (all %d slots in use)", e.Name, SlotCount)
}

type binding struct {
	init ast.Expr
}

// Resolve inlines every let/const use site and allocates gvar slots for
// every `var` declaration, returning a program ready for pkg/codegen: the
// only identifiers pkg/codegen has to resolve against a symbol table
// afterward are `var` names (via the returned Allocation) and catalog
// paths.
func Resolve(prog *ast.Program) (*ast.Program, *Allocation, error) {
	bindings := make(map[string]*binding)
	collectBindings(prog.Statements, bindings)

	if err := checkAcyclic(bindings); err != nil {
		return nil, nil, diag.WrapSemantic(err)
	}

	out := make([]ast.Statement, 0, len(prog.Statements))
	for _, s := range prog.Statements {
		if inlined := inlineStatement(s, bindings, 0); inlined != nil {
			out = append(out, inlined)
		}
	}
	inlined := &ast.Program{Statements: out}

	alloc, err := allocate(inlined)
	if err != nil {
		return nil, nil, diag.WrapResource(err)
	}
	return inlined, alloc, nil
}

func collectBindings(stmts []ast.Statement, out map[string]*binding) {
	for _, s := range stmts {
		switch n := s.(type) {
		case *ast.LetConst:
			out[n.Name] = &binding{init: n.Init}
		case *ast.EventHandler:
			collectBindings(n.Body, out)
		}
	}
}

func checkAcyclic(bindings map[string]*binding) error {
	for name := range bindings {
		visited := make(map[string]bool)
		if cyclic(name, bindings, visited, 0) {
			return &CyclicConstantError{Name: name}
		}
	}
	return nil
}

func cyclic(name string, bindings map[string]*binding, visited map[string]bool, depth int) bool {
	if depth > maxInlineDepth {
		return true
	}
	b, ok := bindings[name]
	if !ok {
		return false
	}
	if visited[name] {
		return true
	}
	visited[name] = true
	for _, ref := range identifierNames(b.init) {
		if cyclic(ref, bindings, visited, depth+1) {
			return true
		}
	}
	return false
}

// identifierNames returns every bare single-segment identifier referenced
// directly within e (not recursing into dotted catalog paths, which can
// never be let/const names).
func identifierNames(e ast.Expr) []string {
	var names []string
	var walk func(ast.Expr)
	walk = func(e ast.Expr) {
		switch n := e.(type) {
		case *ast.Identifier:
			if len(n.Path) == 1 {
				names = append(names, n.Path[0])
			}
		case *ast.MemberExpression:
			walk(n.Target)
		case *ast.BinaryExpression:
			walk(n.Left)
			walk(n.Right)
		case *ast.LogicalExpression:
			walk(n.Left)
			walk(n.Right)
		case *ast.UnaryExpression:
			walk(n.Arg)
		case *ast.CallExpression:
			walk(n.Arg)
		case *ast.IndexExpr:
			walk(n.Index)
		}
	}
	walk(e)
	return names
}

// inlineStatement returns a copy of s with every let/const reference
// replaced by its (already-acyclic) initializer.
func inlineStatement(s ast.Statement, bindings map[string]*binding, depth int) ast.Statement {
	switch n := s.(type) {
	case *ast.Destructuring:
		return n
	case *ast.LetConst:
		return nil // consumed: nothing downstream needs the binding itself
	case *ast.VarDecl:
		return &ast.VarDecl{Pos: n.Pos, Name: n.Name, Init: inlineExpr(n.Init, bindings, depth)}
	case *ast.Assignment:
		return &ast.Assignment{
			Pos:    n.Pos,
			Target: n.Target,
			Op:     n.Op,
			Value:  inlineExprMaybe(n.Value, bindings, depth),
		}
	case *ast.EventHandler:
		cfg := make(map[string]ast.Expr, len(n.Config))
		for k, v := range n.Config {
			cfg[k] = inlineExpr(v, bindings, depth)
		}
		args := make([]ast.Expr, len(n.Args))
		for i, v := range n.Args {
			args[i] = inlineExpr(v, bindings, depth)
		}
		var body []ast.Statement
		for _, stmt := range n.Body {
			if inlined := inlineStatement(stmt, bindings, depth); inlined != nil {
				body = append(body, inlined)
			}
		}
		var cond ast.Expr
		if n.Condition != nil {
			cond = inlineExpr(n.Condition, bindings, depth)
		}
		return &ast.EventHandler{
			Pos:       n.Pos,
			Handler:   n.Handler,
			Condition: cond,
			Config:    cfg,
			Args:      args,
			Body:      body,
			Negated:   n.Negated,
		}
	}
	return s
}

func inlineExprMaybe(e ast.Expr, bindings map[string]*binding, depth int) ast.Expr {
	if e == nil {
		return nil
	}
	return inlineExpr(e, bindings, depth)
}

func inlineExpr(e ast.Expr, bindings map[string]*binding, depth int) ast.Expr {
	switch n := e.(type) {
	case *ast.Identifier:
		if len(n.Path) == 1 {
			if b, ok := bindings[n.Path[0]]; ok && depth < maxInlineDepth {
				return inlineExpr(b.init, bindings, depth+1)
			}
		}
		return n
	case *ast.IndexExpr:
		return &ast.IndexExpr{Pos: n.Pos, Base: n.Base, Index: inlineExpr(n.Index, bindings, depth)}
	case *ast.MemberExpression:
		return &ast.MemberExpression{Pos: n.Pos, Target: inlineExpr(n.Target, bindings, depth), Boolish: n.Boolish}
	case *ast.BinaryExpression:
		return &ast.BinaryExpression{Pos: n.Pos, Op: n.Op, Left: inlineExpr(n.Left, bindings, depth), Right: inlineExpr(n.Right, bindings, depth)}
	case *ast.LogicalExpression:
		return &ast.LogicalExpression{Pos: n.Pos, Op: n.Op, Left: inlineExpr(n.Left, bindings, depth), Right: inlineExpr(n.Right, bindings, depth)}
	case *ast.UnaryExpression:
		return &ast.UnaryExpression{Pos: n.Pos, Arg: inlineExpr(n.Arg, bindings, depth)}
	case *ast.CallExpression:
		return &ast.CallExpression{Pos: n.Pos, Kind: n.Kind, Arg: inlineExpr(n.Arg, bindings, depth)}
	default:
		return e // *ast.Literal and anything else carries no references
	}
}

// allocate assigns a gvar slot to every `var` declaration in prog,
// reserving the indices the source already names explicitly via
// `gvar[i]`, and filling the remaining slots from the highest index down
// so source-level hand-picked indices (usually low, meant to be stable
// across recompiles) are left untouched as long as possible.
func allocate(prog *ast.Program) (*Allocation, error) {
	reserved := make(map[int32]bool)
	collectReservedGVars(prog.Statements, reserved)

	var varNames []string
	collectVarNames(prog.Statements, &varNames)

	slots := make(map[string]int32, len(varNames))
	next := int32(SlotCount - 1)
	for _, name := range varNames {
		for next >= 0 && reserved[next] {
			next--
		}
		if next < 0 {
			return nil, &OverflowError{Name: name}
		}
		slots[name] = next
		reserved[next] = true
		next--
	}
	return &Allocation{Slots: slots}, nil
}

func collectVarNames(stmts []ast.Statement, out *[]string) {
	for _, s := range stmts {
		switch n := s.(type) {
		case *ast.VarDecl:
			*out = append(*out, n.Name)
		case *ast.EventHandler:
			collectVarNames(n.Body, out)
		}
	}
}

func collectReservedGVars(stmts []ast.Statement, reserved map[int32]bool) {
	var walkExpr func(ast.Expr)
	walkExpr = func(e ast.Expr) {
		switch n := e.(type) {
		case nil:
			return
		case *ast.IndexExpr:
			if n.Base == "gvar" {
				if lit, ok := n.Index.(*ast.Literal); ok && !lit.IsBool {
					reserved[lit.Num] = true
				}
			}
			walkExpr(n.Index)
		case *ast.MemberExpression:
			walkExpr(n.Target)
		case *ast.BinaryExpression:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ast.LogicalExpression:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ast.UnaryExpression:
			walkExpr(n.Arg)
		case *ast.CallExpression:
			walkExpr(n.Arg)
		}
	}

	var walkStmt func(ast.Statement)
	walkStmt = func(s ast.Statement) {
		switch n := s.(type) {
		case *ast.VarDecl:
			walkExpr(n.Init)
		case *ast.Assignment:
			if it, ok := n.Target.(*ast.IndexTarget); ok && it.Base == "gvar" {
				if lit, ok := it.Index.(*ast.Literal); ok && !lit.IsBool {
					reserved[lit.Num] = true
				}
				walkExpr(it.Index)
			}
			walkExpr(n.Value)
		case *ast.EventHandler:
			walkExpr(n.Condition)
			for _, e := range n.Config {
				walkExpr(e)
			}
			for _, e := range n.Args {
				walkExpr(e)
			}
			for _, stmt := range n.Body {
				walkStmt(stmt)
			}
		}
	}
	for _, s := range stmts {
		walkStmt(s)
	}
}
