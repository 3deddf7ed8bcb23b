package decompile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sensei-hacker/inav-configurator/pkg/catalog"
	"github.com/sensei-hacker/inav-configurator/pkg/codegen"
	"github.com/sensei-hacker/inav-configurator/pkg/langparser"
	"github.com/sensei-hacker/inav-configurator/pkg/optimize"
	"github.com/sensei-hacker/inav-configurator/pkg/registers"
	"github.com/sensei-hacker/inav-configurator/pkg/rules"
)

func compile(t *testing.T, source string) []rules.Instruction {
	t.Helper()
	prog, err := langparser.Parse(source)
	require.NoError(t, err, "Parse(%q)", source)
	resolved, alloc, err := registers.Resolve(prog)
	require.NoError(t, err)
	table, err := codegen.Generate(optimize.Fold(resolved), alloc, catalog.Default())
	require.NoError(t, err)
	return table.Instructions()
}

// A compiled `if` statement decompiles back to an equivalent `if`, with the
// condition and action both recovered from the catalog.
func TestRoundTripIfStatement(t *testing.T) {
	instructions := compile(t, `
const { flight, override } = inav;
if (flight.homeDistance > 100) { override.vtx.power = 3; }
`)
	code, warnings, stats, err := Decompile(instructions, catalog.Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Contains(t, code, "if (flight.homeDistance > 100) {")
	require.Contains(t, code, "override.vtx.power = 3;")
	require.Equal(t, Stats{Total: len(instructions), Enabled: len(instructions), Groups: 1}, stats)
}

// on.arm's GT/EDGE/SET chain decompiles to an edge whose condition is the
// armTimer comparison and whose body is the assignment, recovering the
// configured duration on the edge's duration config.
func TestRoundTripOnArmChain(t *testing.T) {
	instructions := compile(t, `
const { flight, gvar, on } = inav;
on.arm({ delay: 1 }, () => { gvar[0] = flight.yaw; });
`)
	code, _, _, err := Decompile(instructions, catalog.Default())
	require.NoError(t, err)
	require.Contains(t, code, "flight.armTimer > 0")
	require.Contains(t, code, "edge(")
	require.Contains(t, code, "duration: 1")
	require.Contains(t, code, "gvar[0] = flight.yaw;")
}

// A logical-OR guard decompiles to a single if whose condition recursively
// rebuilds the AND/OR subtree instead of flattening it.
func TestRoundTripComplexGuard(t *testing.T) {
	instructions := compile(t, `
const { flight, override } = inav;
if (flight.mode.failsafe || (flight.cellVoltage < 330 && flight.homeDistance > 500)) {
  override.throttleScale = 50;
}
`)
	code, _, _, err := Decompile(instructions, catalog.Default())
	require.NoError(t, err)
	require.Contains(t, code, "flight.mode.failsafe")
	require.Contains(t, code, "||")
	require.Contains(t, code, "&&")
	require.Contains(t, code, "override.throttleScale = 50;")
}

// The self-increment collapse round-trips back to ++ rather than x = x + 1.
func TestRoundTripSelfIncrement(t *testing.T) {
	instructions := compile(t, `
const { gvar } = inav;
gvar[3] = gvar[3] + 1;
`)
	code, _, _, err := Decompile(instructions, catalog.Default())
	require.NoError(t, err)
	require.Contains(t, code, "gvar[3]++;")
}

// Math.abs(x) round-trips: SUB/MAX collapses back to a single call.
func TestRoundTripMathAbs(t *testing.T) {
	instructions := compile(t, `
const { gvar } = inav;
gvar[0] = Math.abs(gvar[1]);
`)
	code, warnings, _, err := Decompile(instructions, catalog.Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Contains(t, code, "Math.abs(gvar[1])")
}

// An unrecognized write opcode with no catalog entry is never a hard
// failure: Decompile emits a synthesized target name plus a warning.
func TestUnknownWriteOpcodeSynthesizesNameAndWarns(t *testing.T) {
	instructions := []rules.Instruction{
		{Slot: 0, Enabled: true, Activator: rules.NoActivator, Op: rules.Op(999), A: rules.Lit(1), B: rules.Zero},
	}
	code, warnings, _, err := Decompile(instructions, catalog.Default())
	require.NoError(t, err)
	require.NotEmpty(t, warnings, "expected a warning for an opcode with no source-language equivalent")
	require.Contains(t, code, "unknownWrite_1")
}

// A record whose activator slot is missing or disabled is emitted as an
// unconditioned top-level statement, with a warning, instead of being
// silently dropped.
func TestOrphanedActivatorWarnsAndStillEmits(t *testing.T) {
	instructions := []rules.Instruction{
		{Slot: 5, Enabled: true, Activator: 2, Op: rules.OpSetVTXPowerLevel, A: rules.Lit(1), B: rules.Zero},
	}
	code, warnings, _, err := Decompile(instructions, catalog.Default())
	require.NoError(t, err)
	require.NotEmpty(t, warnings, "expected a warning for a dangling activator reference")
	require.Contains(t, code, "override.vtx.power = 1;")
}

// Disabled records and the unused default tail are excluded from the
// rebuilt program and from the stats' Enabled count; Total still counts
// every input record.
func TestDisabledAndTailRecordsAreExcluded(t *testing.T) {
	instructions := []rules.Instruction{
		{Slot: 0, Enabled: true, Activator: rules.NoActivator, Op: rules.OpGreater, A: rules.Operand{Type: rules.OperandFlight, Value: 2}, B: rules.Lit(100)},
		{Slot: 1, Enabled: false, Activator: 0, Op: rules.OpSetVTXPowerLevel, A: rules.Lit(3), B: rules.Zero},
		{Slot: 2, Enabled: false, Activator: rules.NoActivator, Op: rules.OpTrue, A: rules.Zero, B: rules.Zero},
	}
	_, _, stats, err := Decompile(instructions, catalog.Default())
	require.NoError(t, err)
	require.Equal(t, Stats{Total: 3, Enabled: 1, Groups: 0}, stats, "disabled records excluded before the unused tail")
}

// A cycle of LC_RESULT references (which codegen can never produce, but a
// corrupted or hand-edited dump might) is broken with a synthesized
// placeholder and a warning rather than looping forever. Slots 0 and 1
// reference each other directly and so consume each other; slot 2 is the
// unconsumed entry point that pulls the recursive rebuild into the cycle.
func TestCyclicLCResultReferenceIsBrokenNotInfinite(t *testing.T) {
	instructions := []rules.Instruction{
		{Slot: 0, Enabled: true, Activator: rules.NoActivator, Op: rules.OpAnd, A: rules.Ref(1), B: rules.Lit(0)},
		{Slot: 1, Enabled: true, Activator: rules.NoActivator, Op: rules.OpAnd, A: rules.Ref(0), B: rules.Lit(0)},
		{Slot: 2, Enabled: true, Activator: rules.NoActivator, Op: rules.OpAnd, A: rules.Ref(0), B: rules.Lit(1)},
		{Slot: 3, Enabled: true, Activator: 2, Op: rules.OpSetVTXPowerLevel, A: rules.Lit(1), B: rules.Zero},
	}
	code, warnings, _, err := Decompile(instructions, catalog.Default())
	require.NoError(t, err)
	require.NotEmpty(t, warnings, "expected a cycle warning")
	require.Contains(t, code, "cycle_")
}

// An empty instruction table still decompiles to the default destructuring
// line and nothing else — the mirror of the compiler's own "empty source
// emits only the default destructuring and zero records" boundary.
func TestDecompileEmptyTableEmitsOnlyDestructuring(t *testing.T) {
	code, warnings, stats, err := Decompile(nil, catalog.Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, Stats{}, stats)
	require.Equal(t, "const { gvar } = inav;\n", code)
}
