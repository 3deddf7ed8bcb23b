package sema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sensei-hacker/inav-configurator/pkg/catalog"
	"github.com/sensei-hacker/inav-configurator/pkg/diag"
	"github.com/sensei-hacker/inav-configurator/pkg/langparser"
)

func analyze(t *testing.T, source string) *diag.Bag {
	t.Helper()
	prog, err := langparser.Parse(source)
	require.NoError(t, err, "Parse(%q)", source)
	return Analyze(prog, catalog.Default())
}

func TestUnknownIdentifierIsHardError(t *testing.T) {
	bag := analyze(t, `
const { flight } = inav;
if (flight.doesNotExist > 1) { flight.armTimer = 1; }
`)
	require.True(t, bag.HasErrors(), "expected a hard error for an unknown identifier")
}

func TestAssigningToReadOnlyLeafIsHardError(t *testing.T) {
	bag := analyze(t, `
const { flight } = inav;
flight.homeDistance = 5;
`)
	require.True(t, bag.HasErrors(), "expected a hard error assigning to a read-only leaf")
}

func TestOutOfRangeLiteralIsHardError(t *testing.T) {
	bag := analyze(t, `
const { override } = inav;
override.vtx.power = 9;
`)
	require.True(t, bag.HasErrors(), "expected a hard error for a value outside the declared range")
}

func TestRCChannelWriteIsHardError(t *testing.T) {
	bag := analyze(t, `
const { rc } = inav;
rc[0] = 1000;
`)
	require.True(t, bag.HasErrors(), "expected a hard error writing to a read-only rc channel")
}

func TestDuplicateDeclarationIsHardError(t *testing.T) {
	bag := analyze(t, `
let x = 1;
let x = 2;
`)
	require.True(t, bag.HasErrors(), "expected a hard error for a duplicate declaration")
}

func TestReassigningLetIsHardError(t *testing.T) {
	bag := analyze(t, `
let x = 1;
x = 2;
`)
	require.True(t, bag.HasErrors(), "expected a hard error reassigning an immutable let binding")
}

func TestNonAssignmentHandlerBodyIsHardError(t *testing.T) {
	bag := analyze(t, `
const { on, flight, override } = inav;
on.always(() => {
  if (flight.armTimer > 0) { override.vtx.power = 1; }
});
`)
	require.True(t, bag.HasErrors(), "expected a hard error for a nested if inside an on.always body")
}

func TestUnsupportedComparisonOperatorIsHardError(t *testing.T) {
	bag := analyze(t, `
const { flight, override } = inav;
if (flight.homeDistance >= 100) { override.vtx.power = 1; }
`)
	require.True(t, bag.HasErrors(), "expected a hard error for an unsupported comparison operator")
}

func TestAlwaysTrueConditionWarns(t *testing.T) {
	bag := analyze(t, `
const { override } = inav;
if (true) { override.vtx.power = 1; }
`)
	require.False(t, bag.HasErrors(), "unexpected hard error: %v", bag.All())
	require.NotEmpty(t, bag.Warnings(), "expected a soft warning for an always-true condition")
}

func TestContradictoryConjunctionWarns(t *testing.T) {
	bag := analyze(t, `
const { flight, override } = inav;
if (flight.homeDistance > 500 && flight.homeDistance < 100) { override.vtx.power = 1; }
`)
	require.False(t, bag.HasErrors(), "unexpected hard error: %v", bag.All())
	require.NotEmpty(t, bag.Warnings(), "expected a soft warning for a contradictory conjunction")
}

func TestSameHandlerDoubleWriteWarnsLastWins(t *testing.T) {
	bag := analyze(t, `
const { override } = inav;
if (override.vtx.band > 0) { override.vtx.power = 1; override.vtx.power = 2; }
`)
	require.False(t, bag.HasErrors(), "unexpected hard error: %v", bag.All())
	warnings := bag.Warnings()
	require.NotEmpty(t, warnings, "expected a write-write conflict warning within one handler")
	found := false
	for _, w := range warnings {
		if strings.Contains(w.Message, "written more than once within this handler") {
			found = true
		}
	}
	require.True(t, found, "expected a same-handler 'last wins' warning, got %v", warnings)
}

func TestCrossOnAlwaysHandlersWarnsRace(t *testing.T) {
	bag := analyze(t, `
const { override } = inav;
on.always(() => { override.vtx.power = 1; });
on.always(() => { override.vtx.power = 2; });
`)
	require.False(t, bag.HasErrors(), "unexpected hard error: %v", bag.All())
	warnings := bag.Warnings()
	require.NotEmpty(t, warnings, "expected a race warning across on.always handlers")
	found := false
	for _, w := range warnings {
		if strings.Contains(w.Message, "on.always handler") {
			found = true
		}
	}
	require.True(t, found, "expected an on.always race warning, got %v", warnings)
}

// Writes from two handlers that are not both on.always are neither a
// same-handler conflict nor the specifically-called-out on.always race, so
// no write-write warning is expected for this shape.
func TestCrossIfHandlersWriteSameTargetWithoutRaceWarning(t *testing.T) {
	bag := analyze(t, `
const { flight, override } = inav;
if (flight.homeDistance > 100) { override.vtx.power = 1; }
if (flight.homeDistance > 200) { override.vtx.power = 2; }
`)
	require.False(t, bag.HasErrors(), "unexpected hard error: %v", bag.All())
	for _, w := range bag.Warnings() {
		require.NotContains(t, w.Message, "written more than once within this handler")
		require.NotContains(t, w.Message, "on.always handler")
	}
}

func TestWellFormedProgramHasNoErrors(t *testing.T) {
	bag := analyze(t, `
const { flight, override } = inav;
if (flight.homeDistance > 100) { override.vtx.power = 3; }
`)
	require.False(t, bag.HasErrors(), "unexpected hard errors: %v", bag.All())
}
