// Package catalog loads and exposes the static API catalog (spec.md §3.1):
// a read-only tree of dotted identifiers describing which source-level
// names the compiler accepts, whether they can be read, written, or both,
// their declared numeric range, and how they encode onto the wire.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sensei-hacker/inav-configurator/pkg/rules"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Kind is the declared value shape of a catalog leaf.
type Kind string

const (
	KindNumber   Kind = "number"
	KindBool     Kind = "bool"
	KindObject   Kind = "object"
	KindFunction Kind = "function"
	KindReadonly Kind = "readonly"
	// KindArray marks a root namespace (rc, gvar) that is indexed rather
	// than resolved as a dotted leaf.
	KindArray Kind = "array"
)

// Range is an inclusive numeric bound, when the catalog declares one.
type Range struct {
	Min, Max int32
}

// Contains reports whether v falls within the range.
func (r Range) Contains(v int32) bool { return v >= r.Min && v <= r.Max }

// Leaf is one resolvable catalog entry.
type Leaf struct {
	Path     string
	Kind     Kind
	Writable bool
	Range    *Range

	// Read is the operand encoding used when this leaf is read. Nil for
	// write-only leaves.
	Read *rules.Operand

	// Op is the operation code emitted when this leaf is assigned. Zero
	// value (rules.OpTrue) is never a valid write op, so IsZero can't be
	// ambiguous; writable leaves always set this explicitly.
	Op rules.Op

	// Arg is a fixed second operand baked into the leaf itself — used by
	// ops that multiplex several catalog paths onto one opcode by way of
	// a selector (e.g. override.rollAngle / pitchAngle / yawAngle all
	// compile to FLIGHT_AXIS_ANGLE_OVERRIDE, distinguished by Arg).
	HasArg bool
	Arg    int32
}

// entryYAML is the flat on-disk shape of one catalog.yaml entry.
type entryYAML struct {
	Path     string `yaml:"path"`
	Kind     string `yaml:"kind"`
	Writable bool   `yaml:"writable"`
	Range    []int  `yaml:"range"`
	Read     *struct {
		Type  string `yaml:"type"`
		Value int32  `yaml:"value"`
	} `yaml:"read"`
	Op  string `yaml:"op"`
	Arg *int32 `yaml:"arg"`
}

type fileYAML struct {
	Entries []entryYAML `yaml:"entries"`
}

var operandTypeByName = map[string]rules.OperandType{
	"VALUE":       rules.OperandValue,
	"RC_CHANNEL":  rules.OperandRCChannel,
	"FLIGHT":      rules.OperandFlight,
	"FLIGHT_MODE": rules.OperandFlightMode,
	"LC_RESULT":   rules.OperandLCResult,
	"GVAR":        rules.OperandGVar,
	"PID":         rules.OperandPID,
	"WAYPOINTS":   rules.OperandWaypoints,
}

// Catalog is the parsed, read-only identifier tree. It is built once at
// startup (via Default) and never mutated afterwards — the only shared
// resource described in spec.md §5.
type Catalog struct {
	leaves map[string]*Leaf // dotted path -> leaf
	roots  []string
}

// Load parses a catalog document in the on-disk YAML shape.
func Load(data []byte) (*Catalog, error) {
	var doc fileYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parsing document: %w", err)
	}

	c := &Catalog{leaves: make(map[string]*Leaf, len(doc.Entries))}
	rootSeen := make(map[string]bool)

	for _, e := range doc.Entries {
		if e.Path == "" {
			return nil, fmt.Errorf("catalog: entry with empty path")
		}
		leaf := &Leaf{Path: e.Path, Kind: Kind(e.Kind)}

		if len(e.Range) == 2 {
			leaf.Range = &Range{Min: int32(e.Range[0]), Max: int32(e.Range[1])}
		} else if len(e.Range) != 0 {
			return nil, fmt.Errorf("catalog: entry %q: range must have exactly 2 elements", e.Path)
		}

		if e.Read != nil {
			t, ok := operandTypeByName[e.Read.Type]
			if !ok {
				return nil, fmt.Errorf("catalog: entry %q: unknown operand type %q", e.Path, e.Read.Type)
			}
			op := rules.Operand{Type: t, Value: e.Read.Value}
			leaf.Read = &op
		}

		if e.Writable {
			leaf.Writable = true
			op, ok := rules.ParseOp(e.Op)
			if !ok {
				return nil, fmt.Errorf("catalog: entry %q: unknown op %q", e.Path, e.Op)
			}
			leaf.Op = op
			if e.Arg != nil {
				leaf.HasArg = true
				leaf.Arg = *e.Arg
			}
		}

		if _, exists := c.leaves[e.Path]; exists {
			return nil, fmt.Errorf("catalog: duplicate entry %q", e.Path)
		}
		c.leaves[e.Path] = leaf

		root := e.Path
		if i := strings.IndexByte(root, '.'); i >= 0 {
			root = root[:i]
		}
		if !rootSeen[root] {
			rootSeen[root] = true
			c.roots = append(c.roots, root)
		}
	}

	return c, nil
}

// Default returns the catalog embedded into this binary. It panics if the
// embedded document fails to parse, since that can only happen if the
// binary itself was built wrong — there is no recovery a caller could
// meaningfully perform.
func Default() *Catalog {
	c, err := Load(catalogYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded catalog.yaml is invalid: %v", err))
	}
	return c
}

// Resolve looks up a dotted path (e.g. "flight.mode.failsafe"). It does not
// resolve "rc" or "gvar" — use ResolveArray for those.
func (c *Catalog) Resolve(path string) (*Leaf, bool) {
	l, ok := c.leaves[path]
	if !ok || l.Kind == KindArray {
		return nil, false
	}
	return l, true
}

// ResolveArray looks up an array-indexed root namespace ("rc" or "gvar")
// and returns its declared index range.
func (c *Catalog) ResolveArray(root string) (Range, bool) {
	l, ok := c.leaves[root]
	if !ok || l.Kind != KindArray || l.Range == nil {
		return Range{}, false
	}
	return *l.Range, true
}

// Roots returns every root namespace name the catalog declares, in the
// order first seen in the document — used both to validate a `const {
// names } = inav` destructuring statement and to build the decompiler's
// boilerplate import line.
func (c *Catalog) Roots() []string {
	out := make([]string, len(c.roots))
	copy(out, c.roots)
	return out
}

// HasRoot reports whether name is one of the catalog's root namespaces
// (including the array-indexed "rc"/"gvar" namespaces).
func (c *Catalog) HasRoot(name string) bool {
	for _, r := range c.roots {
		if r == name {
			return true
		}
	}
	return false
}

// FindByRead returns the path of the leaf whose read-operand encoding
// exactly matches op, used by the decompiler to map a decoded operand back
// to a source-level identifier (spec.md §4.6 step 6).
func (c *Catalog) FindByRead(op rules.Operand) (string, bool) {
	for path, l := range c.leaves {
		if l.Read != nil && *l.Read == op {
			return path, true
		}
	}
	return "", false
}

// FindByWrite returns the path of a leaf whose write opcode (and, if it has
// one, baked-in Arg) matches, used by the decompiler to recover an
// assignment target from an emitted record.
func (c *Catalog) FindByWrite(op rules.Op, arg int32, hasArg bool) (string, bool) {
	for path, l := range c.leaves {
		if !l.Writable || l.Op != op {
			continue
		}
		if l.HasArg != hasArg {
			continue
		}
		if hasArg && l.Arg != arg {
			continue
		}
		return path, true
	}
	return "", false
}
