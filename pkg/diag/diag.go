// Package diag implements the error and warning taxonomy of the
// compiler/decompiler pipeline (spec §7): every stage collects its
// findings into a Bag instead of failing fast on the first warning, and
// aborts only on a hard error.
package diag

import (
	"errors"
	"fmt"
)

// Severity distinguishes hard failures from accumulated warnings.
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Category is the taxonomy of §7.
type Category int

const (
	CategorySyntax Category = iota
	CategorySemantic
	CategoryResource
	CategoryShape
	CategorySoft
)

// Diagnostic is a single finding, carrying the source position when known.
type Diagnostic struct {
	Severity Severity
	Category Category
	Message  string
	Line     int // 1-based; 0 if not applicable
	Col      int // 1-based; 0 if not applicable
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d, col %d)", d.Severity, d.Message, d.Line, d.Col)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// Bag accumulates diagnostics across a single pipeline run. It is the
// generalization of the teacher's single CFlag/AReg error slot
// (pkg/interpreter.Interpreter) to a buffer that never discards a warning
// just because a later one arrived.
type Bag struct {
	items []Diagnostic
}

// Add appends a diagnostic to the bag.
func (b *Bag) Add(d Diagnostic) { b.items = append(b.items, d) }

// Errorf appends a hard-error diagnostic.
func (b *Bag) Errorf(cat Category, line, col int, format string, args ...any) {
	b.Add(Diagnostic{Severity: Error, Category: cat, Message: fmt.Sprintf(format, args...), Line: line, Col: col})
}

// Warnf appends a soft-warning diagnostic.
func (b *Bag) Warnf(cat Category, line, col int, format string, args ...any) {
	b.Add(Diagnostic{Severity: Warning, Category: cat, Message: fmt.Sprintf(format, args...), Line: line, Col: col})
}

// HasErrors reports whether any hard error was recorded.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// All returns every diagnostic recorded so far, in insertion order.
func (b *Bag) All() []Diagnostic { return b.items }

// Warnings returns only the soft warnings, in insertion order — the
// "warnings[]" half of the §6.2 output contract.
func (b *Bag) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, d := range b.items {
		if d.Severity == Warning {
			out = append(out, d)
		}
	}
	return out
}

// Strings renders diagnostics as plain text lines, for CLI output.
func Strings(items []Diagnostic) []string {
	out := make([]string, len(items))
	for i, d := range items {
		out[i] = d.String()
	}
	return out
}

// Sentinel kinds usable with errors.Is, for callers that only need to know
// which branch of the §7 taxonomy a hard failure belongs to.
var (
	ErrSyntax   = errors.New("syntax error")
	ErrSemantic = errors.New("semantic error")
	ErrResource = errors.New("resource error")
	ErrShape    = errors.New("shape error")
)

// WrapError wraps err so that errors.Is(wrapped, kind) succeeds, while
// String() still reports err's own message.
type WrapError struct {
	Kind error
	Err  error
}

func (w *WrapError) Error() string { return w.Err.Error() }
func (w *WrapError) Unwrap() error { return w.Err }
func (w *WrapError) Is(target error) bool {
	return target == w.Kind
}

// Wrap attaches a taxonomy sentinel to err.
func Wrap(kind error, err error) error {
	return &WrapError{Kind: kind, Err: err}
}

// WrapSyntax, WrapSemantic, WrapResource and WrapShape are Wrap specialized
// to one taxonomy branch each, for the stages that only ever fail one way.
func WrapSyntax(err error) error   { return Wrap(ErrSyntax, err) }
func WrapSemantic(err error) error { return Wrap(ErrSemantic, err) }
func WrapResource(err error) error { return Wrap(ErrResource, err) }
func WrapShape(err error) error    { return Wrap(ErrShape, err) }

// SentinelFor maps a §7 taxonomy Category to its errors.Is sentinel. It
// returns nil for CategorySoft, which never backs a hard error.
func SentinelFor(cat Category) error {
	switch cat {
	case CategorySyntax:
		return ErrSyntax
	case CategorySemantic:
		return ErrSemantic
	case CategoryResource:
		return ErrResource
	case CategoryShape:
		return ErrShape
	default:
		return nil
	}
}
