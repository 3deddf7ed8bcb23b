// Package codegen implements the code generator (spec.md §4.5): it walks
// the inlined, allocated AST that pkg/registers produces and emits a flat
// pkg/rules.Table, resolving every expression to an operand and every
// condition to the slot of the instruction that computes it.
package codegen

import (
	"fmt"

	"github.com/sensei-hacker/inav-configurator/pkg/ast"
	"github.com/sensei-hacker/inav-configurator/pkg/catalog"
	"github.com/sensei-hacker/inav-configurator/pkg/diag"
	"github.com/sensei-hacker/inav-configurator/pkg/optimize"
	"github.com/sensei-hacker/inav-configurator/pkg/registers"
	"github.com/sensei-hacker/inav-configurator/pkg/rules"
)

var arithOpByAssign = map[ast.AssignOp]rules.Op{
	ast.AssignAdd: rules.OpAdd,
	ast.AssignSub: rules.OpSub,
	ast.AssignMul: rules.OpMul,
	ast.AssignDiv: rules.OpDiv,
}

var arithOpByBinary = map[ast.BinaryOp]rules.Op{
	ast.OpAdd: rules.OpAdd,
	ast.OpSub: rules.OpSub,
	ast.OpMul: rules.OpMul,
	ast.OpDiv: rules.OpDiv,
	ast.OpMod: rules.OpModulus,
}

// generator holds the mutable state threaded through one Generate call.
// It is single-use, the same way pkg/micro.Assembler is built fresh per
// assembly run rather than reset and reused.
type generator struct {
	table       *rules.Table
	cat         *catalog.Catalog
	alloc       *registers.Allocation
	conditions  map[string]int // optimize.Hash(condition) -> already-emitted slot
	currentStmt string
}

// Generate lowers prog (already passed through pkg/registers.Resolve) into
// a rule table.
func Generate(prog *ast.Program, alloc *registers.Allocation, cat *catalog.Catalog) (*rules.Table, error) {
	g := &generator{
		table:      rules.NewTable(),
		cat:        cat,
		alloc:      alloc,
		conditions: make(map[string]int),
	}
	for _, s := range prog.Statements {
		if err := g.topStatement(s); err != nil {
			return nil, err
		}
	}
	return g.table, nil
}

func (g *generator) emit(op rules.Op, a, b rules.Operand, activator int, flags int32) (int, error) {
	slot, err := g.table.Emit(op, a, b, activator, flags)
	if err != nil {
		if oe, ok := err.(*rules.OverflowError); ok {
			oe.Statement = g.currentStmt
			return 0, diag.WrapResource(oe)
		}
		return 0, err
	}
	return slot, nil
}

func (g *generator) topStatement(s ast.Statement) error {
	switch n := s.(type) {
	case *ast.Destructuring:
		return nil

	case *ast.VarDecl:
		g.currentStmt = fmt.Sprintf("var %s", n.Name)
		slot, ok := g.alloc.Slots[n.Name]
		if !ok {
			return fmt.Errorf("codegen: %q has no allocated register", n.Name)
		}
		val, err := g.resolveOperand(n.Init)
		if err != nil {
			return err
		}
		_, err = g.emit(rules.OpSet, rules.Operand{Type: rules.OperandGVar, Value: slot}, val, rules.NoActivator, 0)
		return err

	case *ast.Assignment:
		g.currentStmt = "top-level assignment"
		return g.lowerAssignment(n, rules.NoActivator)

	case *ast.EventHandler:
		return g.eventHandler(n)

	default:
		return fmt.Errorf("codegen: unsupported top-level statement %T", s)
	}
}

// eventHandler lowers one of the eight unified handler kinds into the
// instruction(s) that compute its gating condition, then gates every
// assignment in its body on that slot.
func (g *generator) eventHandler(h *ast.EventHandler) error {
	g.currentStmt = string(h.Handler)

	switch h.Handler {
	case ast.HandlerOnAlways:
		act, err := g.emit(rules.OpTrue, rules.Zero, rules.Zero, rules.NoActivator, 0)
		if err != nil {
			return err
		}
		return g.lowerBodyGated(h.Body, act)

	case ast.HandlerOnArm:
		armOperand := rules.Operand{Type: rules.OperandFlight, Value: 8} // flight.armTimer
		gtSlot, err := g.emit(rules.OpGreater, armOperand, rules.Lit(0), rules.NoActivator, 0)
		if err != nil {
			return err
		}
		dur := rules.Lit(0)
		if delayExpr, ok := h.Config["delay"]; ok {
			v, err := g.resolveOperand(delayExpr)
			if err != nil {
				return err
			}
			dur = v
		}
		edgeSlot, err := g.emit(rules.OpEdge, lcResult(gtSlot), dur, rules.NoActivator, 0)
		if err != nil {
			return err
		}
		return g.lowerBodyGated(h.Body, edgeSlot)

	case ast.HandlerIf:
		condSlot, err := g.lowerCondition(h.Condition)
		if err != nil {
			return err
		}
		return g.lowerBodyGated(h.Body, condSlot)

	case ast.HandlerEdge:
		condSlot, err := g.lowerCondition(h.Condition)
		if err != nil {
			return err
		}
		dur := rules.Lit(0)
		if durExpr, ok := h.Config["duration"]; ok {
			v, err := g.resolveOperand(durExpr)
			if err != nil {
				return err
			}
			dur = v
		}
		gate, err := g.emit(rules.OpEdge, lcResult(condSlot), dur, rules.NoActivator, 0)
		if err != nil {
			return err
		}
		return g.lowerBodyGated(h.Body, gate)

	case ast.HandlerDelay:
		condSlot, err := g.lowerCondition(h.Condition)
		if err != nil {
			return err
		}
		dur := rules.Lit(0)
		if durExpr, ok := h.Config["duration"]; ok {
			v, err := g.resolveOperand(durExpr)
			if err != nil {
				return err
			}
			dur = v
		}
		delaySlot, err := g.emit(rules.OpDelay, lcResult(condSlot), dur, rules.NoActivator, 0)
		if err != nil {
			return err
		}
		return g.lowerBodyGated(h.Body, delaySlot)

	case ast.HandlerSticky:
		if len(h.Args) < 2 {
			return diag.WrapShape(fmt.Errorf("codegen: sticky requires an on-condition and an off-condition"))
		}
		onSlot, err := g.lowerCondition(h.Args[0])
		if err != nil {
			return err
		}
		offSlot, err := g.lowerCondition(h.Args[1])
		if err != nil {
			return err
		}
		stickySlot, err := g.emit(rules.OpSticky, lcResult(onSlot), lcResult(offSlot), rules.NoActivator, 0)
		if err != nil {
			return err
		}
		return g.lowerBodyGated(h.Body, stickySlot)

	case ast.HandlerTimer:
		if len(h.Args) < 2 {
			return diag.WrapShape(fmt.Errorf("codegen: timer requires onMs and offMs arguments"))
		}
		onMs, err := g.resolveOperand(h.Args[0])
		if err != nil {
			return err
		}
		offMs, err := g.resolveOperand(h.Args[1])
		if err != nil {
			return err
		}
		timerSlot, err := g.emit(rules.OpTimer, onMs, offMs, rules.NoActivator, 0)
		if err != nil {
			return err
		}
		return g.lowerBodyGated(h.Body, timerSlot)

	case ast.HandlerWhenChanged:
		if len(h.Args) < 1 {
			return diag.WrapShape(fmt.Errorf("codegen: whenChanged requires a value argument"))
		}
		val, err := g.resolveOperand(h.Args[0])
		if err != nil {
			return err
		}
		threshold := rules.Zero
		if len(h.Args) > 1 {
			threshold, err = g.resolveOperand(h.Args[1])
			if err != nil {
				return err
			}
		}
		deltaSlot, err := g.emit(rules.OpDelta, val, threshold, rules.NoActivator, 0)
		if err != nil {
			return err
		}
		return g.lowerBodyGated(h.Body, deltaSlot)

	default:
		return fmt.Errorf("codegen: unsupported handler kind %q", h.Handler)
	}
}

func (g *generator) lowerBodyGated(body []ast.Statement, activator int) error {
	for _, s := range body {
		switch n := s.(type) {
		case *ast.Assignment:
			if err := g.lowerAssignment(n, activator); err != nil {
				return err
			}
		case *ast.EventHandler:
			if err := g.eventHandler(n); err != nil {
				return err
			}
		default:
			return fmt.Errorf("codegen: unsupported handler body statement %T", s)
		}
	}
	return nil
}

// lowerCondition resolves e to the slot of the instruction whose boolish
// result represents it, memoizing on optimize.Hash so sibling and nested
// conditions built from the same subtree share one instruction instead of
// recomputing it (spec.md §4.4).
func (g *generator) lowerCondition(e ast.Expr) (int, error) {
	h := optimize.Hash(e)
	if slot, ok := g.conditions[h]; ok {
		return slot, nil
	}
	slot, err := g.lowerConditionUncached(e)
	if err != nil {
		return 0, err
	}
	g.conditions[h] = slot
	return slot, nil
}

func (g *generator) lowerConditionUncached(e ast.Expr) (int, error) {
	switch n := e.(type) {
	case *ast.Literal:
		if !n.IsBool {
			return 0, fmt.Errorf("codegen: numeric literal used where a boolean condition was expected")
		}
		if n.Bool {
			return g.emit(rules.OpTrue, rules.Zero, rules.Zero, rules.NoActivator, 0)
		}
		return g.emit(rules.OpEqual, rules.Lit(0), rules.Lit(1), rules.NoActivator, 0)

	case *ast.MemberExpression:
		operand, err := g.resolveOperand(n.Target)
		if err != nil {
			return 0, err
		}
		return g.emit(rules.OpEqual, operand, rules.Lit(1), rules.NoActivator, 0)

	case *ast.BinaryExpression:
		switch n.Op {
		case ast.OpEqual, ast.OpGreater, ast.OpLower:
			a, err := g.resolveOperand(n.Left)
			if err != nil {
				return 0, err
			}
			b, err := g.resolveOperand(n.Right)
			if err != nil {
				return 0, err
			}
			op := map[ast.BinaryOp]rules.Op{ast.OpEqual: rules.OpEqual, ast.OpGreater: rules.OpGreater, ast.OpLower: rules.OpLower}[n.Op]
			return g.emit(op, a, b, rules.NoActivator, 0)
		case ast.OpNotEqual:
			a, err := g.resolveOperand(n.Left)
			if err != nil {
				return 0, err
			}
			b, err := g.resolveOperand(n.Right)
			if err != nil {
				return 0, err
			}
			eqSlot, err := g.emit(rules.OpEqual, a, b, rules.NoActivator, 0)
			if err != nil {
				return 0, err
			}
			return g.emit(rules.OpNot, lcResult(eqSlot), rules.Zero, rules.NoActivator, 0)
		default:
			return 0, fmt.Errorf("codegen: %q is not a valid condition operator", n.Op)
		}

	case *ast.LogicalExpression:
		leftSlot, err := g.lowerCondition(n.Left)
		if err != nil {
			return 0, err
		}
		rightSlot, err := g.lowerCondition(n.Right)
		if err != nil {
			return 0, err
		}
		op := rules.OpAnd
		if n.Op == ast.LogicalOr {
			op = rules.OpOr
		}
		return g.emit(op, lcResult(leftSlot), lcResult(rightSlot), rules.NoActivator, 0)

	case *ast.UnaryExpression:
		innerSlot, err := g.lowerCondition(n.Arg)
		if err != nil {
			return 0, err
		}
		return g.emit(rules.OpNot, lcResult(innerSlot), rules.Zero, rules.NoActivator, 0)

	default:
		return 0, fmt.Errorf("codegen: unsupported condition expression %T", e)
	}
}

// lowerAssignment emits the instruction(s) for one assignment, gated on
// activator (rules.NoActivator for a top-level / on.always assignment).
func (g *generator) lowerAssignment(n *ast.Assignment, activator int) error {
	switch target := n.Target.(type) {
	case *ast.Ident:
		if len(target.Path) == 1 {
			if slot, ok := g.alloc.Slots[target.Path[0]]; ok {
				return g.lowerRegisterAssignment(rules.Operand{Type: rules.OperandGVar, Value: slot}, n, activator)
			}
		}
		return g.lowerCatalogAssignment(joinPath(target.Path), n, activator)

	case *ast.IndexTarget:
		if target.Base != "gvar" {
			return fmt.Errorf("codegen: %s is not a writable array", target.Base)
		}
		lit, ok := target.Index.(*ast.Literal)
		if !ok || lit.IsBool {
			return diag.WrapShape(fmt.Errorf("codegen: gvar index must be a literal"))
		}
		return g.lowerRegisterAssignment(rules.Operand{Type: rules.OperandGVar, Value: lit.Num}, n, activator)

	default:
		return fmt.Errorf("codegen: unsupported assignment target %T", n.Target)
	}
}

func (g *generator) lowerRegisterAssignment(dest rules.Operand, n *ast.Assignment, activator int) error {
	// The register-increment/decrement opcodes address their target by
	// index directly, not through the GVAR read-operand encoding: per the
	// documented wire contract (spec.md §8 scenario 4), "gvar[0] = gvar[0]
	// + 1" emits operand_a = (VALUE, 0), operand_b = (VALUE, 1).
	index := rules.Operand{Type: rules.OperandValue, Value: dest.Value}
	switch n.Op {
	case ast.AssignInc:
		_, err := g.emit(rules.OpInc, index, rules.Lit(1), activator, 0)
		return err
	case ast.AssignDec:
		_, err := g.emit(rules.OpDec, index, rules.Lit(1), activator, 0)
		return err
	case ast.AssignSet:
		// "x = x + 1" / "x = x - 1" is the self-increment/decrement idiom
		// written out in full rather than with ++/--; collapse it to the
		// same single INC/DEC record ++/-- produces instead of an ADD/SUB
		// followed by a SET.
		if delta, ok := selfAdjustDelta(n.Target, n.Value); ok {
			op := rules.OpInc
			if delta < 0 {
				op = rules.OpDec
			}
			_, err := g.emit(op, index, rules.Lit(1), activator, 0)
			return err
		}
		val, err := g.resolveOperand(n.Value)
		if err != nil {
			return err
		}
		_, err = g.emit(rules.OpSet, dest, val, activator, 0)
		return err
	default:
		arithOp, ok := arithOpByAssign[n.Op]
		if !ok {
			return fmt.Errorf("codegen: unsupported assignment operator %q", n.Op)
		}
		rhs, err := g.resolveOperand(n.Value)
		if err != nil {
			return err
		}
		sumSlot, err := g.emit(arithOp, dest, rhs, rules.NoActivator, 0)
		if err != nil {
			return err
		}
		_, err = g.emit(rules.OpSet, dest, lcResult(sumSlot), activator, 0)
		return err
	}
}

func (g *generator) lowerCatalogAssignment(path string, n *ast.Assignment, activator int) error {
	leaf, ok := g.cat.Resolve(path)
	if !ok || !leaf.Writable {
		return fmt.Errorf("codegen: %s is not writable", path)
	}

	selector := rules.Zero
	if leaf.HasArg {
		selector = rules.Lit(leaf.Arg)
	}

	switch n.Op {
	case ast.AssignSet:
		val, err := g.resolveOperand(n.Value)
		if err != nil {
			return err
		}
		_, err = g.emit(leaf.Op, val, selector, activator, 0)
		return err

	case ast.AssignInc, ast.AssignDec:
		return fmt.Errorf("codegen: %s does not support ++/--", path)

	default:
		if leaf.Read == nil {
			return fmt.Errorf("codegen: %s is write-only; compound assignment needs a current value to read", path)
		}
		arithOp, ok := arithOpByAssign[n.Op]
		if !ok {
			return fmt.Errorf("codegen: unsupported assignment operator %q", n.Op)
		}
		rhs, err := g.resolveOperand(n.Value)
		if err != nil {
			return err
		}
		sumSlot, err := g.emit(arithOp, *leaf.Read, rhs, rules.NoActivator, 0)
		if err != nil {
			return err
		}
		_, err = g.emit(leaf.Op, lcResult(sumSlot), selector, activator, 0)
		return err
	}
}

// resolveOperand resolves e to a value that an instruction can reference
// directly. Anything that isn't already a leaf value (nested arithmetic,
// Math.abs, a bare condition used where a value is expected) is lowered
// into its own unconditional instruction first, and referenced back via
// an LC_RESULT operand (spec.md §3.2 design rationale for that operand
// type).
func (g *generator) resolveOperand(e ast.Expr) (rules.Operand, error) {
	switch n := e.(type) {
	case *ast.Literal:
		if n.IsBool {
			if n.Bool {
				return rules.Lit(1), nil
			}
			return rules.Lit(0), nil
		}
		return rules.Lit(n.Num), nil

	case *ast.Identifier:
		return g.resolveIdentifierOperand(n.Path)

	case *ast.MemberExpression:
		return g.resolveOperand(n.Target)

	case *ast.IndexExpr:
		return g.resolveIndexOperand(n)

	case *ast.CallExpression:
		return g.resolveAbs(n)

	case *ast.BinaryExpression:
		op, ok := arithOpByBinary[n.Op]
		if !ok {
			// A comparison used in value position: lower it as a condition
			// and hand back a reference to its boolean result.
			slot, err := g.lowerCondition(n)
			if err != nil {
				return rules.Operand{}, err
			}
			return lcResult(slot), nil
		}
		a, err := g.resolveOperand(n.Left)
		if err != nil {
			return rules.Operand{}, err
		}
		b, err := g.resolveOperand(n.Right)
		if err != nil {
			return rules.Operand{}, err
		}
		slot, err := g.emit(op, a, b, rules.NoActivator, 0)
		if err != nil {
			return rules.Operand{}, err
		}
		return lcResult(slot), nil

	case *ast.LogicalExpression, *ast.UnaryExpression:
		slot, err := g.lowerCondition(n)
		if err != nil {
			return rules.Operand{}, err
		}
		return lcResult(slot), nil

	default:
		return rules.Operand{}, fmt.Errorf("codegen: unsupported value expression %T", e)
	}
}

func (g *generator) resolveIdentifierOperand(path []string) (rules.Operand, error) {
	if len(path) == 1 {
		if slot, ok := g.alloc.Slots[path[0]]; ok {
			return rules.Operand{Type: rules.OperandGVar, Value: slot}, nil
		}
	}
	full := joinPath(path)
	leaf, ok := g.cat.Resolve(full)
	if !ok || leaf.Read == nil {
		return rules.Operand{}, fmt.Errorf("codegen: %s is not readable", full)
	}
	return *leaf.Read, nil
}

func (g *generator) resolveIndexOperand(n *ast.IndexExpr) (rules.Operand, error) {
	lit, ok := n.Index.(*ast.Literal)
	if !ok || lit.IsBool {
		return rules.Operand{}, diag.WrapShape(fmt.Errorf("codegen: %s index must be a literal", n.Base))
	}
	switch n.Base {
	case "gvar":
		return rules.Operand{Type: rules.OperandGVar, Value: lit.Num}, nil
	case "rc":
		return rules.Operand{Type: rules.OperandRCChannel, Value: lit.Num + rules.RCChannelOffset}, nil
	default:
		return rules.Operand{}, fmt.Errorf("codegen: unknown array namespace %q", n.Base)
	}
}

// resolveAbs lowers Math.abs(x) as "0 - x" followed by "max(x, -x)"
// (the wire opcode set has no dedicated absolute-value instruction).
func (g *generator) resolveAbs(n *ast.CallExpression) (rules.Operand, error) {
	x, err := g.resolveOperand(n.Arg)
	if err != nil {
		return rules.Operand{}, err
	}
	negSlot, err := g.emit(rules.OpSub, rules.Lit(0), x, rules.NoActivator, 0)
	if err != nil {
		return rules.Operand{}, err
	}
	maxSlot, err := g.emit(rules.OpMax, x, lcResult(negSlot), rules.NoActivator, 0)
	if err != nil {
		return rules.Operand{}, err
	}
	return lcResult(maxSlot), nil
}

func lcResult(slot int) rules.Operand {
	return rules.Ref(int32(slot))
}

// selfAdjustDelta reports whether value is exactly "target + 1" (returning
// +1), "1 + target" (+1), or "target - 1" (-1), the written-out form of
// ++/-- that still collapses to a single INC/DEC record.
func selfAdjustDelta(target ast.AssignTarget, value ast.Expr) (int32, bool) {
	bin, ok := value.(*ast.BinaryExpression)
	if !ok {
		return 0, false
	}
	switch bin.Op {
	case ast.OpAdd:
		if isOne(bin.Right) && sameLocation(target, bin.Left) {
			return 1, true
		}
		if isOne(bin.Left) && sameLocation(target, bin.Right) {
			return 1, true
		}
	case ast.OpSub:
		if isOne(bin.Right) && sameLocation(target, bin.Left) {
			return -1, true
		}
	}
	return 0, false
}

func isOne(e ast.Expr) bool {
	lit, ok := e.(*ast.Literal)
	return ok && !lit.IsBool && lit.Num == 1
}

// sameLocation reports whether e reads the exact same register target
// writes to, the way pkg/optimize.Hash compares expressions structurally
// rather than by pointer identity.
func sameLocation(target ast.AssignTarget, e ast.Expr) bool {
	switch t := target.(type) {
	case *ast.Ident:
		id, ok := e.(*ast.Identifier)
		return ok && joinPath(t.Path) == joinPath(id.Path)
	case *ast.IndexTarget:
		idx, ok := e.(*ast.IndexExpr)
		if !ok || idx.Base != t.Base {
			return false
		}
		tl, ok1 := t.Index.(*ast.Literal)
		el, ok2 := idx.Index.(*ast.Literal)
		return ok1 && ok2 && !tl.IsBool && !el.IsBool && tl.Num == el.Num
	default:
		return false
	}
}

func joinPath(path []string) string {
	out := path[0]
	for _, p := range path[1:] {
		out += "." + p
	}
	return out
}
