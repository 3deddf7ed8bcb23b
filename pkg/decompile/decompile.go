// Package decompile implements the decompiler (spec.md §4.6): it recovers a
// source-level ast.Program from a flat rule table read back from the
// device, accepting lossy reconstruction of names, comments and
// instruction ordering. pkg/codegen and this package are mirror images of
// each other over the same wire contract, the way the teacher's
// pkg/micro.Assembler and pkg/micro.Disassemble are mirror images over the
// same opcode stream.
package decompile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sensei-hacker/inav-configurator/pkg/ast"
	"github.com/sensei-hacker/inav-configurator/pkg/catalog"
	"github.com/sensei-hacker/inav-configurator/pkg/diag"
	"github.com/sensei-hacker/inav-configurator/pkg/rules"
)

// Stats reports the §6.2 decompile stats contract.
type Stats struct {
	Total   int // records in the input, enabled or not
	Enabled int // records with Enabled == true
	Groups  int // top-level statements emitted
}

// specialOps is the set of opcodes §4.6 step 2 recognizes before falling
// back to generic activator/action grouping.
var specialOps = map[rules.Op]bool{
	rules.OpEdge:  true,
	rules.OpSticky: true,
	rules.OpDelay: true,
	rules.OpTimer: true,
	rules.OpDelta: true,
}

type decompiler struct {
	cat *catalog.Catalog
	bag *diag.Bag

	active              map[int]rules.Instruction
	consumedByLC        map[int]bool
	childrenByActivator map[int][]rules.Instruction
	visiting            map[int]bool
	roots               map[string]bool
	synthCount          map[string]int
}

// Decompile recovers source text from instructions, resolving operands
// against cat. It never fails outright — an unknown opcode or a dangling
// reference becomes a placeholder plus a warning (§7: "Decompile never
// aborts on unknown opcodes").
func Decompile(instructions []rules.Instruction, cat *catalog.Catalog) (string, []diag.Diagnostic, Stats, error) {
	stats := Stats{Total: len(instructions)}
	for _, ins := range instructions {
		if ins.Enabled {
			stats.Enabled++
		}
	}

	active := filterActive(instructions)

	d := &decompiler{
		cat:                 cat,
		bag:                 &diag.Bag{},
		active:              make(map[int]rules.Instruction, len(active)),
		consumedByLC:        make(map[int]bool),
		childrenByActivator: make(map[int][]rules.Instruction),
		visiting:            make(map[int]bool),
		roots:               make(map[string]bool),
		synthCount:          make(map[string]int),
	}
	for _, ins := range active {
		d.active[ins.Slot] = ins
	}
	for _, ins := range active {
		d.markConsumed(ins.A)
		d.markConsumed(ins.B)
	}

	var orphans []rules.Instruction
	for _, ins := range active {
		if !ins.Gated() {
			continue
		}
		if _, ok := d.active[ins.Activator]; ok {
			d.childrenByActivator[ins.Activator] = append(d.childrenByActivator[ins.Activator], ins)
		} else {
			orphans = append(orphans, ins)
			d.bag.Warnf(diag.CategorySoft, 0, 0,
				"slot %d references missing or disabled activator slot %d; emitted as an unconditioned statement", ins.Slot, ins.Activator)
		}
	}

	var stmts []ast.Statement
	for _, ins := range active {
		if ins.Gated() || d.consumedByLC[ins.Slot] {
			continue
		}
		if stmt := d.topLevelStatement(ins); stmt != nil {
			stmts = append(stmts, stmt)
			stats.Groups++
		}
	}
	for _, ins := range orphans {
		stmts = append(stmts, d.actionStatement(ins))
		stats.Groups++
	}

	// A destructuring line always leads the output, even for an instruction
	// table with no records at all (spec.md §8 boundary: "empty source
	// emits only the default destructuring and zero records") — gating
	// this on len(d.roots) > 0 meant the empty-table case emitted nothing.
	// With no record to name a root, gvar is the default: the register
	// file exists regardless of program content, the same root an
	// otherwise-empty program's own destructuring already names.
	names := make([]string, 0, len(d.roots))
	for r := range d.roots {
		names = append(names, r)
	}
	sort.Strings(names)
	if len(names) == 0 {
		names = []string{"gvar"}
	}
	stmts = append([]ast.Statement{&ast.Destructuring{Names: names}}, stmts...)

	prog := &ast.Program{Statements: stmts}
	code := Print(prog, d.bag.Warnings())
	return code, d.bag.All(), stats, nil
}

// filterActive keeps only enabled records, and stops the scan at the first
// clearly-unused tail record: a disabled record sitting at its
// just-allocated default (§4.6 step 1).
func filterActive(instructions []rules.Instruction) []rules.Instruction {
	out := make([]rules.Instruction, 0, len(instructions))
	for _, ins := range instructions {
		if !ins.Enabled && !ins.Gated() && ins.Op == rules.OpTrue && ins.A == rules.Zero && ins.B == rules.Zero {
			break
		}
		if ins.Enabled {
			out = append(out, ins)
		}
	}
	return out
}

func (d *decompiler) markConsumed(op rules.Operand) {
	if op.Type == rules.OperandLCResult {
		d.consumedByLC[int(op.Value)] = true
	}
}

func (d *decompiler) useRoot(name string) {
	d.roots[name] = true
}

// synth returns a fresh, stable placeholder identifier for a value this
// package cannot otherwise name, recording the warning exactly once per
// call site (§4.6 step 6: "fall back to a synthesized name with a
// warning").
func (d *decompiler) synth(prefix string, format string, args ...any) string {
	d.synthCount[prefix]++
	name := fmt.Sprintf("%s%d", prefix, d.synthCount[prefix])
	d.bag.Warnf(diag.CategorySoft, 0, 0, format, args...)
	return name
}

// topLevelStatement renders the ungated, unconsumed record ins as one
// top-level statement: a special pattern, an `if`, or a plain action.
func (d *decompiler) topLevelStatement(ins rules.Instruction) ast.Statement {
	if specialOps[ins.Op] {
		return d.specialStatement(ins)
	}
	if ins.Op == rules.OpTrue {
		children := d.childrenByActivator[ins.Slot]
		if len(children) == 0 {
			d.bag.Warnf(diag.CategorySoft, 0, 0, "always-true condition at slot %d has no action; dropped", ins.Slot)
			return nil
		}
		return &ast.EventHandler{Handler: ast.HandlerOnAlways, Body: d.actionBody(children, false)}
	}
	if ins.Op.ProducesBoolean() {
		children := d.childrenByActivator[ins.Slot]
		if len(children) == 0 {
			d.bag.Warnf(diag.CategorySoft, 0, 0, "condition at slot %d has no action; dropped", ins.Slot)
			return nil
		}
		return &ast.EventHandler{
			Handler:   ast.HandlerIf,
			Condition: d.rebuildSlotExpr(ins.Slot),
			Body:      d.actionBody(children, true),
		}
	}
	return d.actionStatement(ins)
}

// specialStatement renders one of the five recognized special constructs
// (§4.6 step 2), with priority over generic activator grouping.
func (d *decompiler) specialStatement(ins rules.Instruction) ast.Statement {
	children := d.childrenByActivator[ins.Slot]
	h := &ast.EventHandler{Body: d.actionBody(children, false)}

	switch ins.Op {
	case rules.OpEdge:
		h.Handler = ast.HandlerEdge
		h.Condition = d.rebuildExpr(ins.A)
		if dur, ok := literalValue(ins.B); ok && dur != 0 {
			h.Config = map[string]ast.Expr{"duration": &ast.Literal{Num: dur}}
		}
	case rules.OpDelay:
		h.Handler = ast.HandlerDelay
		h.Condition = d.rebuildExpr(ins.A)
		if dur, ok := literalValue(ins.B); ok && dur != 0 {
			h.Config = map[string]ast.Expr{"duration": &ast.Literal{Num: dur}}
		}
	case rules.OpSticky:
		h.Handler = ast.HandlerSticky
		h.Args = []ast.Expr{d.rebuildExpr(ins.A), d.rebuildExpr(ins.B)}
	case rules.OpTimer:
		h.Handler = ast.HandlerTimer
		h.Args = []ast.Expr{d.rebuildExpr(ins.A), d.rebuildExpr(ins.B)}
	case rules.OpDelta:
		h.Handler = ast.HandlerWhenChanged
		h.Args = []ast.Expr{d.rebuildExpr(ins.A), d.rebuildExpr(ins.B)}
	}
	return h
}

// actionBody renders a group's gated children in slot order. allowNestedIf
// permits a boolean-producing child to become a nested `if` — true only
// inside another `if`'s body, since every other handler kind restricts its
// body to assignments (§7 shape-hard: "event-handler body contains a
// non-assignment statement").
func (d *decompiler) actionBody(children []rules.Instruction, allowNestedIf bool) []ast.Statement {
	sort.Slice(children, func(i, j int) bool { return children[i].Slot < children[j].Slot })

	var out []ast.Statement
	for _, child := range children {
		switch {
		case specialOps[child.Op]:
			out = append(out, d.specialStatement(child))
		case child.Op.ProducesBoolean():
			grandchildren := d.childrenByActivator[child.Slot]
			if !allowNestedIf {
				d.bag.Warnf(diag.CategorySoft, 0, 0,
					"nested condition at slot %d inside a handler body that only permits assignments; flattening its actions", child.Slot)
				out = append(out, d.actionBody(grandchildren, false)...)
				continue
			}
			out = append(out, &ast.EventHandler{
				Handler:   ast.HandlerIf,
				Condition: d.rebuildSlotExpr(child.Slot),
				Body:      d.actionBody(grandchildren, true),
			})
		default:
			out = append(out, d.actionStatement(child))
		}
	}
	return out
}

// actionStatement renders a write opcode as an assignment, recovering the
// target from the catalog (for a catalog action) or as a direct gvar index
// write (for a register op).
func (d *decompiler) actionStatement(ins rules.Instruction) ast.Statement {
	switch ins.Op {
	case rules.OpSet:
		target := d.registerTarget(ins.A)
		return &ast.Assignment{Target: target, Op: ast.AssignSet, Value: d.rebuildExpr(ins.B)}
	case rules.OpInc:
		return &ast.Assignment{Target: d.registerTarget(ins.A), Op: ast.AssignInc}
	case rules.OpDec:
		return &ast.Assignment{Target: d.registerTarget(ins.A), Op: ast.AssignDec}
	default:
		// A leaf's Arg selector, when it has one, can legitimately be 0
		// (override.rollAngle is FLIGHT_AXIS_ANGLE_OVERRIDE arg 0), so
		// whether B.Value == 0 can't distinguish "no selector" from
		// "selector 0" — try both readings against the catalog.
		path, ok := d.cat.FindByWrite(ins.Op, ins.B.Value, true)
		if !ok {
			path, ok = d.cat.FindByWrite(ins.Op, 0, false)
		}
		if !ok {
			path = d.synth("unknownWrite_", "slot %d uses write opcode %s with no matching catalog entry; emitting a synthesized target name", ins.Slot, ins.Op)
			d.bag.Add(diag.Diagnostic{Severity: diag.Warning, Category: diag.CategorySoft,
				Message: fmt.Sprintf("slot %d: opcode %s has no source-language equivalent", ins.Slot, ins.Op)})
			return &ast.Assignment{Target: &ast.Ident{Path: []string{path}}, Op: ast.AssignSet, Value: d.rebuildExpr(ins.A)}
		}
		d.useRoot(rootOf(path))
		return &ast.Assignment{Target: &ast.Ident{Path: strings.Split(path, ".")}, Op: ast.AssignSet, Value: d.rebuildExpr(ins.A)}
	}
}

// registerTarget recovers a gvar index from a SET/INC/DEC instruction's A
// operand. SET addresses its destination as a GVAR operand; INC/DEC
// address theirs as a VALUE operand carrying the index directly (spec.md
// §8 scenario 4) — both are accepted here since this helper is only ever
// reached from those three register opcodes.
func (d *decompiler) registerTarget(op rules.Operand) ast.AssignTarget {
	if op.Type != rules.OperandGVar && op.Type != rules.OperandValue {
		name := d.synth("reg_", "instruction targets a non-register operand %s; emitting a synthesized target name", op.Type)
		return &ast.Ident{Path: []string{name}}
	}
	d.useRoot("gvar")
	return &ast.IndexTarget{Base: "gvar", Index: &ast.Literal{Num: op.Value}}
}

// rebuildExpr resolves one operand to an expression, recursing through
// LC_RESULT references via rebuildSlotExpr.
func (d *decompiler) rebuildExpr(op rules.Operand) ast.Expr {
	switch op.Type {
	case rules.OperandValue:
		return &ast.Literal{Num: op.Value}

	case rules.OperandRCChannel:
		d.useRoot("rc")
		return &ast.IndexExpr{Base: "rc", Index: &ast.Literal{Num: op.Value - rules.RCChannelOffset}}

	case rules.OperandGVar:
		d.useRoot("gvar")
		return &ast.IndexExpr{Base: "gvar", Index: &ast.Literal{Num: op.Value}}

	case rules.OperandLCResult:
		return d.rebuildSlotExpr(int(op.Value))

	case rules.OperandFlight, rules.OperandFlightMode, rules.OperandPID, rules.OperandWaypoints:
		if path, ok := d.cat.FindByRead(op); ok {
			d.useRoot(rootOf(path))
			return &ast.Identifier{Path: strings.Split(path, ".")}
		}
		name := d.synth("value_", "operand %s:%d has no matching catalog entry; emitting a synthesized name", op.Type, op.Value)
		return &ast.Identifier{Path: []string{name}}

	default:
		name := d.synth("value_", "operand of unknown type %d has no catalog mapping; emitting a synthesized name", int(op.Type))
		return &ast.Identifier{Path: []string{name}}
	}
}

// rebuildSlotExpr recursively rebuilds the boolean or numeric expression
// computed by the instruction at slot (§4.6 step 4: "recursively rebuild
// that slot's condition inline"). A slot visited twice on the same path
// means the input violates the DAG invariant of §8; rather than looping
// forever on a malformed device dump, it is reported and broken with a
// placeholder.
func (d *decompiler) rebuildSlotExpr(slot int) ast.Expr {
	if d.visiting[slot] {
		name := d.synth("cycle_", "LC_RESULT reference at slot %d forms a cycle; emitting a synthesized placeholder", slot)
		return &ast.Identifier{Path: []string{name}}
	}
	ins, ok := d.active[slot]
	if !ok {
		name := d.synth("missing_", "LC_RESULT reference to slot %d does not exist in the emitted set; emitting a synthesized placeholder", slot)
		return &ast.Identifier{Path: []string{name}}
	}
	d.visiting[slot] = true
	defer delete(d.visiting, slot)

	switch ins.Op {
	case rules.OpTrue:
		return &ast.Literal{IsBool: true, Bool: true}

	case rules.OpEqual:
		if isLit(ins.B, 1) {
			if collapsed := d.collapseBoolish(ins.A); collapsed != nil {
				return collapsed
			}
		}
		return &ast.BinaryExpression{Op: ast.OpEqual, Left: d.rebuildExpr(ins.A), Right: d.rebuildExpr(ins.B)}

	case rules.OpGreater:
		return &ast.BinaryExpression{Op: ast.OpGreater, Left: d.rebuildExpr(ins.A), Right: d.rebuildExpr(ins.B)}

	case rules.OpLower:
		return &ast.BinaryExpression{Op: ast.OpLower, Left: d.rebuildExpr(ins.A), Right: d.rebuildExpr(ins.B)}

	case rules.OpAnd:
		return &ast.LogicalExpression{Op: ast.LogicalAnd, Left: d.rebuildExpr(ins.A), Right: d.rebuildExpr(ins.B)}

	case rules.OpOr:
		return &ast.LogicalExpression{Op: ast.LogicalOr, Left: d.rebuildExpr(ins.A), Right: d.rebuildExpr(ins.B)}

	case rules.OpNot:
		return &ast.UnaryExpression{Arg: d.rebuildExpr(ins.A)}

	case rules.OpAdd:
		return &ast.BinaryExpression{Op: ast.OpAdd, Left: d.rebuildExpr(ins.A), Right: d.rebuildExpr(ins.B)}
	case rules.OpSub:
		return &ast.BinaryExpression{Op: ast.OpSub, Left: d.rebuildExpr(ins.A), Right: d.rebuildExpr(ins.B)}
	case rules.OpMul:
		return &ast.BinaryExpression{Op: ast.OpMul, Left: d.rebuildExpr(ins.A), Right: d.rebuildExpr(ins.B)}
	case rules.OpDiv:
		return &ast.BinaryExpression{Op: ast.OpDiv, Left: d.rebuildExpr(ins.A), Right: d.rebuildExpr(ins.B)}
	case rules.OpModulus:
		return &ast.BinaryExpression{Op: ast.OpMod, Left: d.rebuildExpr(ins.A), Right: d.rebuildExpr(ins.B)}

	case rules.OpMax:
		if abs := d.collapseAbs(ins); abs != nil {
			return abs
		}
		name := d.synth("max_", "slot %d: opcode MAX has no source-language equivalent outside the Math.abs pattern; emitting a synthesized placeholder", slot)
		return &ast.Identifier{Path: []string{name}}

	default:
		name := d.synth("op_", "slot %d: opcode %s has no source-language equivalent; emitting a synthesized placeholder", slot, ins.Op)
		return &ast.Identifier{Path: []string{name}}
	}
}

// collapseBoolish reverses the `MemberExpression{Boolish: true}` ->
// `EQUAL(operand, 1)` lowering pkg/codegen performs for a bare condition
// reference, so a leaf read back through EQUAL(..., 1) prints as the bare
// member it started as rather than as an explicit comparison.
func (d *decompiler) collapseBoolish(a rules.Operand) ast.Expr {
	if a.Type == rules.OperandLCResult {
		return nil
	}
	switch e := d.rebuildExpr(a).(type) {
	case *ast.Identifier, *ast.IndexExpr:
		return e
	default:
		return nil
	}
}

// collapseAbs reverses pkg/codegen's Math.abs(x) lowering: MAX(x,
// SUB(0, x)) collapses back to a single CallExpression.
func (d *decompiler) collapseAbs(maxIns rules.Instruction) ast.Expr {
	sub, ok := asLCResultInstruction(d, maxIns.B)
	if !ok || sub.Op != rules.OpSub || !isLit(sub.A, 0) {
		return nil
	}
	if !operandsEqual(maxIns.A, sub.B) {
		return nil
	}
	return &ast.CallExpression{Kind: ast.CallMathAbs, Arg: d.rebuildExpr(maxIns.A)}
}

func asLCResultInstruction(d *decompiler, op rules.Operand) (rules.Instruction, bool) {
	if op.Type != rules.OperandLCResult {
		return rules.Instruction{}, false
	}
	ins, ok := d.active[int(op.Value)]
	return ins, ok
}

func operandsEqual(a, b rules.Operand) bool { return a == b }

func isLit(op rules.Operand, v int32) bool {
	return op.Type == rules.OperandValue && op.Value == v
}

func literalValue(op rules.Operand) (int32, bool) {
	if op.Type != rules.OperandValue {
		return 0, false
	}
	return op.Value, true
}

func rootOf(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}
