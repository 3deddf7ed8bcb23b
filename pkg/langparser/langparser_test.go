package langparser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sensei-hacker/inav-configurator/pkg/ast"
)

func parse(t *testing.T, source string) *ast.Program {
	t.Helper()
	prog, err := Parse(source)
	require.NoError(t, err, "Parse(%q)", source)
	return prog
}

func TestDestructuringLowersToNameList(t *testing.T) {
	prog := parse(t, `const { flight, override, gvar } = inav;`)
	require.Len(t, prog.Statements, 1)
	d, ok := prog.Statements[0].(*ast.Destructuring)
	require.True(t, ok, "expected *ast.Destructuring, got %T", prog.Statements[0])
	require.Equal(t, []string{"flight", "override", "gvar"}, d.Names)
}

func TestLetAndConstRecordTheirKeyword(t *testing.T) {
	prog := parse(t, `
let x = 1;
const y = 2;
`)
	require.Len(t, prog.Statements, 2)
	let, ok := prog.Statements[0].(*ast.LetConst)
	require.True(t, ok)
	require.False(t, let.Const, "let should record Const=false")
	cst, ok := prog.Statements[1].(*ast.LetConst)
	require.True(t, ok)
	require.True(t, cst.Const, "const should record Const=true")
}

// else/else-if chains flatten into the if handler's own Body as trailing
// Negated handlers, rather than a separate AST shape.
func TestIfElseIfElseChainFlattensToNegatedTrailingHandlers(t *testing.T) {
	prog := parse(t, `
if (flight.homeDistance > 100) {
  override.vtx.power = 3;
} else if (flight.homeDistance > 50) {
  override.vtx.power = 2;
} else {
  override.vtx.power = 1;
}
`)
	require.Len(t, prog.Statements, 1)
	top, ok := prog.Statements[0].(*ast.EventHandler)
	require.True(t, ok)
	require.Equal(t, ast.HandlerIf, top.Handler)
	require.False(t, top.Negated)
	require.Len(t, top.Body, 2, "one direct assignment plus one trailing else-if handler")

	elseIf, ok := top.Body[1].(*ast.EventHandler)
	require.True(t, ok, "expected the else-if branch lowered as a trailing *ast.EventHandler")
	require.Equal(t, ast.HandlerIf, elseIf.Handler)
	require.True(t, elseIf.Negated)
	require.Len(t, elseIf.Body, 2, "one assignment plus its own trailing else handler")

	elseBranch, ok := elseIf.Body[1].(*ast.EventHandler)
	require.True(t, ok, "expected the final else lowered as a trailing *ast.EventHandler")
	require.True(t, elseBranch.Negated)
	_, wrapped := elseBranch.Condition.(*ast.UnaryExpression)
	require.True(t, wrapped, "a plain else wraps the parent condition in UnaryExpression rather than re-deriving it")
}

// A bare member used directly as an if condition is wrapped Boolish, but
// the same member used as a comparison operand is left bare.
func TestBareIdentifierConditionIsBoolishWrapped(t *testing.T) {
	prog := parse(t, `if (flight.mode.armed) { override.vtx.power = 1; }`)
	h := prog.Statements[0].(*ast.EventHandler)
	member, ok := h.Condition.(*ast.MemberExpression)
	require.True(t, ok, "expected *ast.MemberExpression, got %T", h.Condition)
	require.True(t, member.Boolish)
	ident, ok := member.Target.(*ast.Identifier)
	require.True(t, ok)
	require.Equal(t, []string{"flight", "mode", "armed"}, ident.Path)
}

func TestComparisonOperandIsNotBoolishWrapped(t *testing.T) {
	prog := parse(t, `if (flight.homeDistance > 100) { override.vtx.power = 1; }`)
	h := prog.Statements[0].(*ast.EventHandler)
	cmp, ok := h.Condition.(*ast.BinaryExpression)
	require.True(t, ok, "expected *ast.BinaryExpression, got %T", h.Condition)
	require.Equal(t, ast.OpGreater, cmp.Op)
	_, wrapped := cmp.Left.(*ast.MemberExpression)
	require.False(t, wrapped, "a comparison operand should stay a bare Identifier, not get Boolish-wrapped")
	_, isIdent := cmp.Left.(*ast.Identifier)
	require.True(t, isIdent)
}

// && and || both boolish-wrap any bare member operand, even nested under
// parentheses.
func TestLogicalOperandsAreBoolishWrapped(t *testing.T) {
	prog := parse(t, `
if (flight.mode.failsafe || (flight.mode.armed && flight.homeDistance > 500)) {
  override.throttleScale = 50;
}
`)
	h := prog.Statements[0].(*ast.EventHandler)
	or, ok := h.Condition.(*ast.LogicalExpression)
	require.True(t, ok)
	require.Equal(t, ast.LogicalOr, or.Op)
	_, leftBoolish := or.Left.(*ast.MemberExpression)
	require.True(t, leftBoolish, "failsafe operand of || should be boolish-wrapped")

	and, ok := or.Right.(*ast.LogicalExpression)
	require.True(t, ok)
	require.Equal(t, ast.LogicalAnd, and.Op)
	_, armedBoolish := and.Left.(*ast.MemberExpression)
	require.True(t, armedBoolish, "armed operand of && should be boolish-wrapped")
	_, cmpBoolish := and.Right.(*ast.MemberExpression)
	require.False(t, cmpBoolish, "a comparison operand of && should not be boolish-wrapped")
}

// >= and <= parse without error and are preserved as their literal token so
// the semantic analyzer, not the parser, reports the unsupported-operator
// diagnostic.
func TestUnsupportedComparisonOperatorsParseButPreserveToken(t *testing.T) {
	for _, tok := range []string{">=", "<="} {
		prog := parse(t, "if (flight.homeDistance "+tok+" 100) { override.vtx.power = 1; }")
		h := prog.Statements[0].(*ast.EventHandler)
		cmp, ok := h.Condition.(*ast.BinaryExpression)
		require.True(t, ok, "expected *ast.BinaryExpression for token %q", tok)
		require.Equal(t, ast.BinaryOp(tok), cmp.Op, "token %q should be preserved verbatim", tok)
	}
}

func TestOnArmCarriesDelayConfig(t *testing.T) {
	prog := parse(t, `on.arm({ delay: 1 }, () => { gvar[0] = flight.yaw; });`)
	h := prog.Statements[0].(*ast.EventHandler)
	require.Equal(t, ast.HandlerOnArm, h.Handler)
	require.Contains(t, h.Config, "delay")
	require.Equal(t, int32(1), h.Config["delay"].(*ast.Literal).Num)
	require.Len(t, h.Body, 1)
}

func TestOnArmWithoutDelayHasNoConfig(t *testing.T) {
	prog := parse(t, `on.arm(() => { gvar[0] = flight.yaw; });`)
	h := prog.Statements[0].(*ast.EventHandler)
	require.Equal(t, ast.HandlerOnArm, h.Handler)
	require.Empty(t, h.Config)
}

func TestOnAlwaysLowersToItsOwnHandlerKind(t *testing.T) {
	prog := parse(t, `on.always(() => { gvar[0] = flight.yaw; });`)
	h := prog.Statements[0].(*ast.EventHandler)
	require.Equal(t, ast.HandlerOnAlways, h.Handler)
	require.Len(t, h.Body, 1)
}

// edge's first arrow body becomes Condition, not Body; its {duration: N}
// config becomes Config["duration"]; its second arrow body becomes Body.
func TestEdgeClassifiesConditionConfigAndBody(t *testing.T) {
	prog := parse(t, `edge(() => flight.mode.armed, { duration: 5 }, () => { gvar[0] = 1; });`)
	h := prog.Statements[0].(*ast.EventHandler)
	require.Equal(t, ast.HandlerEdge, h.Handler)
	require.NotNil(t, h.Condition)
	_, conditionIsMember := h.Condition.(*ast.MemberExpression)
	require.True(t, conditionIsMember)
	require.Equal(t, int32(5), h.Config["duration"].(*ast.Literal).Num)
	require.Len(t, h.Body, 1)
}

func TestEdgeWithoutDurationLeavesConfigEmpty(t *testing.T) {
	prog := parse(t, `edge(() => flight.mode.armed, () => { gvar[0] = 1; });`)
	h := prog.Statements[0].(*ast.EventHandler)
	require.NotContains(t, h.Config, "duration")
}

// sticky's first two arrow bodies become Args[0]/Args[1], not Body; its
// third arrow body becomes Body.
func TestStickyClassifiesOnOffAndBody(t *testing.T) {
	prog := parse(t, `
sticky(() => flight.cellVoltage < 330, () => flight.cellVoltage > 360, () => { override.vtx.power = 1; });
`)
	h := prog.Statements[0].(*ast.EventHandler)
	require.Equal(t, ast.HandlerSticky, h.Handler)
	require.Len(t, h.Args, 2)
	require.Len(t, h.Body, 1)
}

func TestDelayClassifiesConditionConfigAndBody(t *testing.T) {
	prog := parse(t, `delay(() => flight.mode.armed, { duration: 3 }, () => { gvar[0] = 1; });`)
	h := prog.Statements[0].(*ast.EventHandler)
	require.Equal(t, ast.HandlerDelay, h.Handler)
	require.NotNil(t, h.Condition)
	require.Equal(t, int32(3), h.Config["duration"].(*ast.Literal).Num)
	require.Len(t, h.Body, 1)
}

// timer's two plain numeric arguments become Args, since neither is an
// arrow-wrapped body.
func TestTimerClassifiesPlainArgsAndBody(t *testing.T) {
	prog := parse(t, `timer(100, 200, () => { gvar[0] = 1; });`)
	h := prog.Statements[0].(*ast.EventHandler)
	require.Equal(t, ast.HandlerTimer, h.Handler)
	require.Len(t, h.Args, 2)
	onMs, ok := h.Args[0].(*ast.Literal)
	require.True(t, ok)
	require.Equal(t, int32(100), onMs.Num)
	require.Len(t, h.Body, 1)
}

func TestWhenChangedClassifiesPlainArgsAndBody(t *testing.T) {
	prog := parse(t, `whenChanged(flight.yaw, 5, () => { gvar[0] = flight.yaw; });`)
	h := prog.Statements[0].(*ast.EventHandler)
	require.Equal(t, ast.HandlerWhenChanged, h.Handler)
	require.Len(t, h.Args, 2)
	require.Len(t, h.Body, 1)
}

func TestUnaryNegationLowersToZeroMinusExpression(t *testing.T) {
	prog := parse(t, `var x = -5;`)
	v := prog.Statements[0].(*ast.VarDecl)
	sub, ok := v.Init.(*ast.BinaryExpression)
	require.True(t, ok, "expected *ast.BinaryExpression, got %T", v.Init)
	require.Equal(t, ast.OpSub, sub.Op)
	zero, ok := sub.Left.(*ast.Literal)
	require.True(t, ok)
	require.Equal(t, int32(0), zero.Num)
	five, ok := sub.Right.(*ast.Literal)
	require.True(t, ok)
	require.Equal(t, int32(5), five.Num)
}

// A binary subtraction must parse the same way whether or not there is a
// space before the right operand: the Number token never swallows a
// leading "-", so "x - 1" and "x-1" both produce a Sub binary expression,
// never a unary-negated literal folded into the left operand.
func TestBinarySubtractionParsesSpacedAndUnspaced(t *testing.T) {
	for _, source := range []string{
		`var x = gvar[0] - 1;`,
		`var x = gvar[0]-1;`,
	} {
		prog := parse(t, source)
		v := prog.Statements[0].(*ast.VarDecl)
		sub, ok := v.Init.(*ast.BinaryExpression)
		require.True(t, ok, "%q: expected *ast.BinaryExpression, got %T", source, v.Init)
		require.Equal(t, ast.OpSub, sub.Op, "%q", source)
		_, leftIsIndex := sub.Left.(*ast.IndexExpr)
		require.True(t, leftIsIndex, "%q: expected left operand to stay gvar[0], got %T", source, sub.Left)
		one, ok := sub.Right.(*ast.Literal)
		require.True(t, ok, "%q: expected right operand to be a literal, got %T", source, sub.Right)
		require.Equal(t, int32(1), one.Num, "%q", source)
	}
}

// The same unspaced ambiguity inside a condition must not stall the parser
// early and produce a spurious syntax error.
func TestUnspacedBinarySubtractionInConditionParses(t *testing.T) {
	prog := parse(t, `
const { gvar } = inav;
if (gvar[0]-1 > 0) { gvar[1] = 1; }
`)
	h := prog.Statements[1].(*ast.EventHandler)
	cmp, ok := h.Condition.(*ast.BinaryExpression)
	require.True(t, ok, "expected *ast.BinaryExpression, got %T", h.Condition)
	require.Equal(t, ast.OpGreater, cmp.Op)
	sub, ok := cmp.Left.(*ast.BinaryExpression)
	require.True(t, ok, "expected gvar[0]-1 to stay a Sub expression, got %T", cmp.Left)
	require.Equal(t, ast.OpSub, sub.Op)
}

func TestMathAbsLowersToCallExpression(t *testing.T) {
	prog := parse(t, `var x = Math.abs(gvar[1]);`)
	v := prog.Statements[0].(*ast.VarDecl)
	call, ok := v.Init.(*ast.CallExpression)
	require.True(t, ok, "expected *ast.CallExpression, got %T", v.Init)
	require.Equal(t, ast.CallMathAbs, call.Kind)
	_, argIsIndex := call.Arg.(*ast.IndexExpr)
	require.True(t, argIsIndex)
}

func TestIndexedAssignmentTarget(t *testing.T) {
	prog := parse(t, `gvar[3] = 5;`)
	a := prog.Statements[0].(*ast.Assignment)
	target, ok := a.Target.(*ast.IndexTarget)
	require.True(t, ok, "expected *ast.IndexTarget, got %T", a.Target)
	require.Equal(t, "gvar", target.Base)
	require.Equal(t, ast.AssignSet, a.Op)
}

func TestDottedAssignmentTarget(t *testing.T) {
	prog := parse(t, `override.vtx.power = 3;`)
	a := prog.Statements[0].(*ast.Assignment)
	target, ok := a.Target.(*ast.Ident)
	require.True(t, ok, "expected *ast.Ident, got %T", a.Target)
	require.Equal(t, []string{"override", "vtx", "power"}, target.Path)
}

func TestPostAndPreIncrementLowerToAssignIncWithNoValue(t *testing.T) {
	prog := parse(t, `
gvar[0]++;
--gvar[1];
`)
	post := prog.Statements[0].(*ast.Assignment)
	require.Equal(t, ast.AssignInc, post.Op)
	require.Nil(t, post.Value)

	pre := prog.Statements[1].(*ast.Assignment)
	require.Equal(t, ast.AssignDec, pre.Op)
	require.Nil(t, pre.Value)
}

func TestCompoundAssignmentOperators(t *testing.T) {
	prog := parse(t, `gvar[0] += 2;`)
	a := prog.Statements[0].(*ast.Assignment)
	require.Equal(t, ast.AssignAdd, a.Op)
	require.NotNil(t, a.Value)
}

func TestSyntaxErrorReportsLineAndColumn(t *testing.T) {
	_, err := Parse(`
const { flight } = inav;
if (flight.homeDistance > ) { override.vtx.power = 1; }
`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3")
}
