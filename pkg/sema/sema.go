// Package sema implements the semantic analyzer (spec.md §4.2): it walks
// the canonical AST produced by pkg/langparser, resolves every identifier
// against pkg/catalog or the program's own let/const/var declarations,
// and accumulates diagnostics into a pkg/diag.Bag. It never mutates the
// tree — pkg/registers and pkg/codegen are the stages that do.
package sema

import (
	"github.com/sensei-hacker/inav-configurator/pkg/ast"
	"github.com/sensei-hacker/inav-configurator/pkg/catalog"
	"github.com/sensei-hacker/inav-configurator/pkg/diag"
)

// numeric value limits (spec.md §6.4): every operand fits a signed 32-bit
// encoding, but the compiler additionally rejects anything outside the
// documented working range so a typo like a missing decimal point is
// caught at compile time rather than wrapping on-device.
const (
	minValue = -1_000_000
	maxValue = 1_000_000
)

// symbolKind distinguishes the three declaration forms the analyzer has
// to tell apart when it sees a bare identifier used as an assignment
// target.
type symbolKind int

const (
	symbolLet symbolKind = iota
	symbolConst
	symbolVar
)

type symbol struct {
	kind symbolKind
	init ast.Expr
}

// Analyzer resolves a program against a catalog and reports diagnostics.
// It is single-use: construct one per Analyze call, the way the teacher
// constructs a fresh Interpreter per run rather than resetting shared
// state (pkg/interpreter.New).
type Analyzer struct {
	cat     *catalog.Catalog
	bag     *diag.Bag
	symbols map[string]*symbol

	writtenGVars  map[int32]bool
	writeOwners   map[string]writeRecord // write-target key -> most recent write's owner
}

// writeRecord remembers which top-level handler most recently wrote a
// target, and whether that handler is on.always — the two facts the
// write-write conflict check in assignment needs to tell "last wins within
// one handler" apart from "race between two on.always handlers" (spec.md
// §4.2).
type writeRecord struct {
	owner    ast.Statement
	isAlways bool
}

func isOnAlwaysOwner(owner ast.Statement) bool {
	h, ok := owner.(*ast.EventHandler)
	return ok && h.Handler == ast.HandlerOnAlways
}

// Analyze walks prog and returns every diagnostic found. Call bag.HasErrors
// to decide whether to abort before handing the program to pkg/registers.
func Analyze(prog *ast.Program, cat *catalog.Catalog) *diag.Bag {
	a := &Analyzer{
		cat:          cat,
		bag:          &diag.Bag{},
		symbols:      make(map[string]*symbol),
		writtenGVars: make(map[int32]bool),
		writeOwners:  make(map[string]writeRecord),
	}
	a.program(prog)
	return a.bag
}

func (a *Analyzer) program(prog *ast.Program) {
	for _, s := range prog.Statements {
		a.topLevelStatement(s, s)
	}
}

// topLevelStatement analyzes one top-level statement. owner identifies
// which top-level handler a nested write belongs to, for the write-write
// conflict check.
func (a *Analyzer) topLevelStatement(s ast.Statement, owner ast.Statement) {
	switch n := s.(type) {
	case *ast.Destructuring:
		a.destructuring(n)
	case *ast.LetConst:
		a.letConst(n)
	case *ast.VarDecl:
		a.varDecl(n)
	case *ast.Assignment:
		a.assignment(n, owner)
	case *ast.EventHandler:
		a.eventHandler(n, owner)
	}
}

// handlerNames are the event-handler names a destructuring may list
// alongside the catalog roots, e.g. `const { flight, on } = inav;`.
var handlerNames = map[string]bool{
	"on": true, "edge": true, "sticky": true, "delay": true, "timer": true, "whenChanged": true,
}

func (a *Analyzer) destructuring(n *ast.Destructuring) {
	for _, name := range n.Names {
		if !a.cat.HasRoot(name) && !handlerNames[name] {
			a.bag.Errorf(diag.CategorySemantic, n.Pos.Line, n.Pos.Col,
				"unknown namespace %q in destructuring (not a catalog root or handler name)", name)
		}
	}
}

func (a *Analyzer) letConst(n *ast.LetConst) {
	if _, exists := a.symbols[n.Name]; exists {
		a.bag.Errorf(diag.CategorySemantic, n.Pos.Line, n.Pos.Col,
			"duplicate declaration of %q", n.Name)
		return
	}
	a.checkExpr(n.Init)
	kind := symbolLet
	if n.Const {
		kind = symbolConst
	}
	a.symbols[n.Name] = &symbol{kind: kind, init: n.Init}
}

func (a *Analyzer) varDecl(n *ast.VarDecl) {
	if _, exists := a.symbols[n.Name]; exists {
		a.bag.Errorf(diag.CategorySemantic, n.Pos.Line, n.Pos.Col,
			"duplicate declaration of %q", n.Name)
		return
	}
	a.checkExpr(n.Init)
	a.symbols[n.Name] = &symbol{kind: symbolVar, init: n.Init}
}

// eventHandler checks a handler's condition/config/args, then its body,
// enforcing the assignment-only restriction on every handler kind except
// "if" (whose body can also hold a nested else/else-if EventHandler).
func (a *Analyzer) eventHandler(n *ast.EventHandler, owner ast.Statement) {
	if n.Condition != nil {
		a.checkExpr(n.Condition)
	}
	for _, e := range n.Config {
		a.checkExpr(e)
	}
	for _, e := range n.Args {
		a.checkExpr(e)
	}

	for _, stmt := range n.Body {
		switch stmt.(type) {
		case *ast.Assignment:
			a.topLevelStatement(stmt, owner)
		case *ast.EventHandler:
			if n.Handler != ast.HandlerIf {
				a.bag.Errorf(diag.CategoryShape, n.Pos.Line, n.Pos.Col,
					"%s body must contain only assignments", n.Handler)
				continue
			}
			a.topLevelStatement(stmt, owner)
		default:
			a.bag.Errorf(diag.CategoryShape, n.Pos.Line, n.Pos.Col,
				"%s body must contain only assignments", n.Handler)
		}
	}

	if n.Handler == ast.HandlerIf && isAlwaysTrueCondition(n.Condition) {
		a.bag.Warnf(diag.CategorySoft, n.Pos.Line, n.Pos.Col,
			"condition is always true; consider on.always instead of if")
	}
}

// assignment validates a write target's resolvability, writability, and
// (when the value is a literal) its declared range, then recurses into
// the value expression.
func (a *Analyzer) assignment(n *ast.Assignment, owner ast.Statement) {
	key, rng, writable := a.resolveTarget(n.Target)
	if key == "" {
		return // resolveTarget already recorded the error
	}
	if !writable {
		a.bag.Errorf(diag.CategorySemantic, n.Pos.Line, n.Pos.Col,
			"%s is not writable", key)
		return
	}

	if n.Value != nil {
		a.checkExpr(n.Value)
		if lit, ok := n.Value.(*ast.Literal); ok && !lit.IsBool && rng != nil {
			if !rng.Contains(lit.Num) {
				a.bag.Errorf(diag.CategoryResource, n.Pos.Line, n.Pos.Col,
					"value %d for %s is outside the declared range [%d, %d]", lit.Num, key, rng.Min, rng.Max)
			}
		}
	}

	if key == "gvar" {
		if idx, ok := literalIndex(n.Target); ok {
			a.writtenGVars[idx] = true
		}
	}

	current := writeRecord{owner: owner, isAlways: isOnAlwaysOwner(owner)}
	if prev, exists := a.writeOwners[key]; exists {
		switch {
		case prev.owner == owner:
			a.bag.Warnf(diag.CategorySoft, n.Pos.Line, n.Pos.Col,
				"%s is written more than once within this handler; the last assignment wins", key)
		case prev.isAlways && current.isAlways:
			a.bag.Warnf(diag.CategorySoft, n.Pos.Line, n.Pos.Col,
				"%s is written by more than one on.always handler; execution order between them is undefined", key)
		}
	}
	a.writeOwners[key] = current
}

// resolveTarget resolves an assignment target to a stable identity key
// (the catalog path, or "gvar" for an indexed gvar write), its declared
// range if any, and whether it can be written at all. An empty key means
// resolution already failed and a diagnostic was recorded.
func (a *Analyzer) resolveTarget(t ast.AssignTarget) (key string, rng *catalog.Range, writable bool) {
	switch n := t.(type) {
	case *ast.Ident:
		if len(n.Path) == 1 {
			if sym, ok := a.symbols[n.Path[0]]; ok {
				if sym.kind != symbolVar {
					a.bag.Errorf(diag.CategorySemantic, n.Pos.Line, n.Pos.Col,
						"cannot assign to %q: declared with let/const", n.Path[0])
					return "", nil, false
				}
				return n.Path[0], nil, true
			}
		}
		path := joinPath(n.Path)
		leaf, ok := a.cat.Resolve(path)
		if !ok {
			a.bag.Errorf(diag.CategorySemantic, n.Pos.Line, n.Pos.Col, "unknown identifier %q", path)
			return "", nil, false
		}
		return path, leaf.Range, leaf.Writable

	case *ast.IndexTarget:
		switch n.Base {
		case "gvar":
			a.checkExpr(n.Index)
			return "gvar", nil, true
		case "rc":
			a.bag.Errorf(diag.CategorySemantic, n.Pos.Line, n.Pos.Col, "rc channels are read-only")
			return "", nil, false
		default:
			a.bag.Errorf(diag.CategorySemantic, n.Pos.Line, n.Pos.Col, "unknown array namespace %q", n.Base)
			return "", nil, false
		}
	}
	return "", nil, false
}

func literalIndex(t ast.AssignTarget) (int32, bool) {
	idx, ok := t.(*ast.IndexTarget)
	if !ok {
		return 0, false
	}
	lit, ok := idx.Index.(*ast.Literal)
	if !ok || lit.IsBool {
		return 0, false
	}
	return lit.Num, true
}

// checkExpr recursively resolves and validates an expression, warning or
// erroring as appropriate. It never returns a value — callers that need
// constant-folding results belong in pkg/optimize, not here.
func (a *Analyzer) checkExpr(e ast.Expr) {
	switch n := e.(type) {
	case *ast.Literal:
		if !n.IsBool && (n.Num < minValue || n.Num > maxValue) {
			a.bag.Errorf(diag.CategoryResource, n.Pos.Line, n.Pos.Col,
				"literal %d is outside the supported range [%d, %d]", n.Num, minValue, maxValue)
		}

	case *ast.Identifier:
		a.resolveRead(n.Path, n.Pos)

	case *ast.IndexExpr:
		a.checkExpr(n.Index)
		switch n.Base {
		case "rc", "gvar":
			rng, ok := a.cat.ResolveArray(n.Base)
			if !ok {
				a.bag.Errorf(diag.CategorySemantic, n.Pos.Line, n.Pos.Col, "unknown array namespace %q", n.Base)
				return
			}
			if lit, ok := n.Index.(*ast.Literal); ok && !lit.IsBool {
				if !rng.Contains(lit.Num) {
					a.bag.Errorf(diag.CategoryResource, n.Pos.Line, n.Pos.Col,
						"index %d for %s is outside the declared range [%d, %d]", lit.Num, n.Base, rng.Min, rng.Max)
				}
				if n.Base == "gvar" && !a.writtenGVars[lit.Num] {
					a.bag.Warnf(diag.CategorySoft, n.Pos.Line, n.Pos.Col,
						"gvar[%d] is read before any assignment earlier in the program", lit.Num)
				}
			}
		default:
			a.bag.Errorf(diag.CategorySemantic, n.Pos.Line, n.Pos.Col, "unknown array namespace %q", n.Base)
		}

	case *ast.MemberExpression:
		a.checkExpr(n.Target)

	case *ast.BinaryExpression:
		if !isSupportedBinaryOp(n.Op) {
			a.bag.Errorf(diag.CategorySemantic, n.Pos.Line, n.Pos.Col,
				"unsupported comparison operator %q (only ==, !=, >, < are supported)", n.Op)
			return
		}
		a.checkExpr(n.Left)
		a.checkExpr(n.Right)
		a.warnConstantComparison(n)

	case *ast.LogicalExpression:
		a.checkExpr(n.Left)
		a.checkExpr(n.Right)
		a.warnContradictoryConjunction(n)

	case *ast.UnaryExpression:
		a.checkExpr(n.Arg)

	case *ast.CallExpression:
		a.checkExpr(n.Arg)
	}
}

func (a *Analyzer) resolveRead(path []string, p ast.Pos) {
	if len(path) == 1 {
		if _, ok := a.symbols[path[0]]; ok {
			return
		}
	}
	if _, ok := a.cat.Resolve(joinPath(path)); ok {
		return
	}
	a.bag.Errorf(diag.CategorySemantic, p.Line, p.Col, "unknown identifier %q", joinPath(path))
}

func joinPath(path []string) string {
	out := path[0]
	for _, p := range path[1:] {
		out += "." + p
	}
	return out
}

// isSupportedBinaryOp lists the binary operators the grammar can produce
// that the rest of the pipeline actually supports; ">=" and "<=" are
// accepted syntactically only so the analyzer can name them precisely
// (spec.md §9 open question) instead of failing in the parser.
func isSupportedBinaryOp(op ast.BinaryOp) bool {
	switch op {
	case ast.OpEqual, ast.OpNotEqual, ast.OpGreater, ast.OpLower,
		ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		return true
	default:
		return false
	}
}

func (a *Analyzer) warnConstantComparison(n *ast.BinaryExpression) {
	left, ok1 := n.Left.(*ast.Literal)
	right, ok2 := n.Right.(*ast.Literal)
	if !ok1 || !ok2 || left.IsBool || right.IsBool {
		return
	}
	var result bool
	switch n.Op {
	case ast.OpEqual:
		result = left.Num == right.Num
	case ast.OpNotEqual:
		result = left.Num != right.Num
	case ast.OpGreater:
		result = left.Num > right.Num
	case ast.OpLower:
		result = left.Num < right.Num
	default:
		return
	}
	a.bag.Warnf(diag.CategorySoft, n.Pos.Line, n.Pos.Col,
		"comparison of constant values %d %s %d is always %v", left.Num, n.Op, right.Num, result)
}

// warnContradictoryConjunction flags the common "x > N && x < M" shape
// with N >= M, which can never be true regardless of x's runtime value.
func (a *Analyzer) warnContradictoryConjunction(n *ast.LogicalExpression) {
	if n.Op != ast.LogicalAnd {
		return
	}
	left, lok := asComparison(n.Left)
	right, rok := asComparison(n.Right)
	if !lok || !rok || !samePath(left.path, right.path) {
		return
	}
	lo, hi := boundFromComparison(left), boundFromComparison(right)
	if lo != nil && hi != nil && lo.isLower && !hi.isLower && lo.value >= hi.value {
		a.bag.Warnf(diag.CategorySoft, n.Pos.Line, n.Pos.Col,
			"this condition can never be true: %s cannot be both > %d and < %d", joinPath(left.path), lo.value, hi.value)
	}
}

type comparison struct {
	path  []string
	op    ast.BinaryOp
	value int32
}

func asComparison(e ast.Expr) (comparison, bool) {
	b, ok := e.(*ast.BinaryExpression)
	if !ok || (b.Op != ast.OpGreater && b.Op != ast.OpLower) {
		return comparison{}, false
	}
	target, lit := unwrapMember(b.Left), asLiteral(b.Right)
	if target == nil || lit == nil {
		return comparison{}, false
	}
	return comparison{path: target, op: b.Op, value: lit.Num}, true
}

type bound struct {
	isLower bool // true if this bound comes from a ">" comparison
	value   int32
}

func boundFromComparison(c comparison) *bound {
	return &bound{isLower: c.op == ast.OpGreater, value: c.value}
}

func unwrapMember(e ast.Expr) []string {
	if m, ok := e.(*ast.MemberExpression); ok {
		e = m.Target
	}
	if id, ok := e.(*ast.Identifier); ok {
		return id.Path
	}
	return nil
}

func asLiteral(e ast.Expr) *ast.Literal {
	lit, ok := e.(*ast.Literal)
	if !ok || lit.IsBool {
		return nil
	}
	return lit
}

func samePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isAlwaysTrueCondition(e ast.Expr) bool {
	lit, ok := e.(*ast.Literal)
	return ok && lit.IsBool && lit.Bool
}
