package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// Encode renders one instruction in the device CLI's textual command
// format (§6.1):
//
//	logic <slot> <enabled> <activator_slot> <op> <A_type> <A_value> <B_type> <B_value> <flags>
func Encode(ins Instruction) string {
	enabled := 0
	if ins.Enabled {
		enabled = 1
	}
	return fmt.Sprintf("logic %d %d %d %d %d %d %d %d %d",
		ins.Slot, enabled, ins.Activator, int(ins.Op),
		int(ins.A.Type), ins.A.Value, int(ins.B.Type), ins.B.Value, ins.Flags)
}

// EncodeAll renders a full instruction list, one "logic ..." line per
// record, in slot order.
func EncodeAll(instructions []Instruction) []string {
	lines := make([]string, len(instructions))
	for i, ins := range instructions {
		lines[i] = Encode(ins)
	}
	return lines
}

// Decode parses one "logic ..." command line back into an Instruction.
func Decode(line string) (Instruction, error) {
	fields := strings.Fields(line)
	if len(fields) != 10 || fields[0] != "logic" {
		return Instruction{}, fmt.Errorf("rules: malformed command %q: want 10 space-separated fields starting with \"logic\"", line)
	}
	ints := make([]int, 9)
	for i, f := range fields[1:] {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Instruction{}, fmt.Errorf("rules: malformed command %q: field %d is not an integer: %w", line, i+1, err)
		}
		ints[i] = n
	}
	return Instruction{
		Slot:      ints[0],
		Enabled:   ints[1] != 0,
		Activator: ints[2],
		Op:        Op(ints[3]),
		A:         Operand{Type: OperandType(ints[4]), Value: int32(ints[5])},
		B:         Operand{Type: OperandType(ints[6]), Value: int32(ints[7])},
		Flags:     int32(ints[8]),
	}, nil
}

// DecodeAll parses a sequence of non-blank lines into instructions, in the
// order they appear. Blank lines and lines that don't start with "logic"
// (comments, blank boilerplate) are skipped rather than rejected, matching
// the permissive intake the decompiler's callers expect from a raw device
// dump.
func DecodeAll(text string) ([]Instruction, error) {
	var out []Instruction
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !strings.HasPrefix(trimmed, "logic ") {
			continue
		}
		ins, err := Decode(trimmed)
		if err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, nil
}
