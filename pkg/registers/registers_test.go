package registers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sensei-hacker/inav-configurator/pkg/langparser"
)

func resolve(t *testing.T, source string) (*Allocation, error) {
	t.Helper()
	prog, err := langparser.Parse(source)
	require.NoError(t, err, "Parse(%q)", source)
	_, alloc, err := Resolve(prog)
	return alloc, err
}

func TestCyclicConstantIsHardError(t *testing.T) {
	_, err := resolve(t, `
let x = y;
let y = x;
`)
	require.Error(t, err, "expected a cyclic constant error")
	var cyclic *CyclicConstantError
	require.ErrorAs(t, err, &cyclic)
}

func TestNinthRegisterOverflows(t *testing.T) {
	var src string
	for i := 0; i < SlotCount+1; i++ {
		src += "var v" + string(rune('a'+i)) + " = 0;\n"
	}
	_, err := resolve(t, src)
	require.Error(t, err, "expected a register overflow error for the 9th var")
	var overflow *OverflowError
	require.ErrorAs(t, err, &overflow)
}

func TestExplicitGVarIndexIsReserved(t *testing.T) {
	alloc, err := resolve(t, `
var x = 0;
gvar[0] = 5;
`)
	require.NoError(t, err)
	require.Equal(t, int32(SlotCount-1), alloc.Slots["x"], "slot 0 is reserved by the explicit gvar[0] write")
}

func TestLetIsInlinedNotAllocated(t *testing.T) {
	alloc, err := resolve(t, `
let n = 3;
var x = n + 1;
`)
	require.NoError(t, err)
	_, letHasSlot := alloc.Slots["n"]
	require.False(t, letHasSlot, "let binding %q should not consume a register slot", "n")
	_, varHasSlot := alloc.Slots["x"]
	require.True(t, varHasSlot, "var %q should have an allocated register slot", "x")
}

func TestAllocationFillsFromHighestSlotDown(t *testing.T) {
	alloc, err := resolve(t, `
var a = 0;
var b = 0;
`)
	require.NoError(t, err)
	require.Equal(t, int32(SlotCount-1), alloc.Slots["a"], "first var")
	require.Equal(t, int32(SlotCount-2), alloc.Slots["b"], "second var")
}
