package rules

import (
	"fmt"
	"strings"
)

// operandString renders an operand as "TYPE:value", the generic fallback
// used when no catalog is available to resolve it to a source-level name.
func operandString(o Operand) string {
	return fmt.Sprintf("%s:%d", o.Type, o.Value)
}

// Disassemble renders a flat, one-line-per-slot mnemonic dump of an
// instruction list, independent of any structural pattern recovery the
// decompiler performs. This is the "lc disasm" verb's output and the
// nearest analogue to the teacher's micro.Disassemble, adapted from a
// stack-machine byte stream to a slot/activator record list.
func Disassemble(instructions []Instruction) string {
	var b strings.Builder
	for _, ins := range instructions {
		state := "enabled"
		if !ins.Enabled {
			state = "disabled"
		}
		act := "none"
		if ins.Gated() {
			act = fmt.Sprintf("slot %d", ins.Activator)
		}
		fmt.Fprintf(&b, "[%02d] %-8s %-24s A=%-16s B=%-16s flags=%d activator=%s\n",
			ins.Slot, state, ins.Op, operandString(ins.A), operandString(ins.B), ins.Flags, act)
	}
	return b.String()
}
