package rules

import "fmt"

// MaxSlots is the rule table capacity enforced by the device (§6.4).
const MaxSlots = 64

// NoActivator marks a record as gated by nothing; it is always evaluated.
const NoActivator = -1

// Instruction is one fixed-width record in the rule table (§3.3).
type Instruction struct {
	Slot      int
	Enabled   bool
	Activator int // slot index, or NoActivator
	Op        Op
	A         Operand
	B         Operand
	Flags     int32
}

// Gated reports whether the instruction has a real activator.
func (ins Instruction) Gated() bool { return ins.Activator != NoActivator }

// Table is an ordered, append-only instruction list together with the
// bookkeeping needed to hand out fresh slot indices. It plays the role the
// teacher's Assembler.code buffer plays for bytecode: a single growing,
// indexable sequence that later records reference by position.
type Table struct {
	instructions []Instruction
}

// NewTable returns an empty instruction table.
func NewTable() *Table {
	return &Table{instructions: make([]Instruction, 0, MaxSlots)}
}

// Len returns the number of instructions emitted so far.
func (t *Table) Len() int { return len(t.instructions) }

// Instructions returns the emitted instructions in slot order.
func (t *Table) Instructions() []Instruction {
	return t.instructions
}

// At returns the instruction occupying the given slot, and whether it
// exists.
func (t *Table) At(slot int) (Instruction, bool) {
	if slot < 0 || slot >= len(t.instructions) {
		return Instruction{}, false
	}
	return t.instructions[slot], true
}

// Emit appends an instruction, assigning it the next free slot index.
// Returns the assigned slot index, or an error if the table is already at
// capacity (the 65th-record hard error of §8).
func (t *Table) Emit(op Op, a, b Operand, activator int, flags int32) (int, error) {
	if len(t.instructions) >= MaxSlots {
		return 0, &OverflowError{Requested: len(t.instructions) + 1}
	}
	slot := len(t.instructions)
	t.instructions = append(t.instructions, Instruction{
		Slot:      slot,
		Enabled:   true,
		Activator: activator,
		Op:        op,
		A:         a,
		B:         b,
		Flags:     flags,
	})
	return slot, nil
}

// OverflowError reports that the rule table's 64-slot capacity was
// exceeded.
type OverflowError struct {
	Requested int
	Statement string // name of the offending statement, filled by codegen
}

func (e *OverflowError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("rule table overflow: cannot allocate slot %d while compiling %s (limit is %d slots)",
			e.Requested-1, e.Statement, MaxSlots)
	}
	return fmt.Sprintf("rule table overflow: cannot allocate slot %d (limit is %d slots)",
		e.Requested-1, MaxSlots)
}
