package rules

import (
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ins := Instruction{
		Slot:      1,
		Enabled:   true,
		Activator: 0,
		Op:        OpSetVTXPowerLevel,
		A:         Lit(3),
		B:         Zero,
		Flags:     0,
	}
	line := Encode(ins)
	if !strings.HasPrefix(line, "logic 1 1 0 ") {
		t.Errorf("Encode produced unexpected line: %q", line)
	}

	got, err := Decode(line)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got != ins {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, ins)
	}
}

func TestScenarioOneEmission(t *testing.T) {
	table := NewTable()
	slot0, err := table.Emit(OpGreater, Operand{Type: OperandFlight, Value: 5}, Lit(100), NoActivator, 0)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	_, err = table.Emit(OpSetVTXPowerLevel, Lit(3), Zero, slot0, 0)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	lines := EncodeAll(table.Instructions())
	want := []string{
		"logic 0 1 -1 2 2 5 0 100 0",
		"logic 1 1 0 32 0 3 0 0 0",
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d: got %q, want %q", i, lines[i], w)
		}
	}
}

func TestTableOverflow(t *testing.T) {
	table := NewTable()
	for i := 0; i < MaxSlots; i++ {
		if _, err := table.Emit(OpTrue, Zero, Zero, NoActivator, 0); err != nil {
			t.Fatalf("unexpected error on slot %d: %v", i, err)
		}
	}
	if _, err := table.Emit(OpTrue, Zero, Zero, NoActivator, 0); err == nil {
		t.Fatalf("expected overflow error on 65th record")
	} else if _, ok := err.(*OverflowError); !ok {
		t.Errorf("expected *OverflowError, got %T: %v", err, err)
	}
}

func TestOpNameRoundTrip(t *testing.T) {
	for op := OpTrue; op < opCount; op++ {
		name := op.String()
		got, ok := ParseOp(name)
		if !ok {
			t.Errorf("ParseOp(%q) not found", name)
			continue
		}
		if got != op {
			t.Errorf("ParseOp(%q) = %v, want %v", name, got, op)
		}
	}
}

func TestDecodeAllSkipsBoilerplate(t *testing.T) {
	text := "; generated\nlogic 0 1 -1 0 0 0 0 0 0\n\nlogic 1 1 0 33 0 3 0 0 0\n"
	instructions, err := DecodeAll(text)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(instructions) != 2 {
		t.Fatalf("got %d instructions, want 2", len(instructions))
	}
}
