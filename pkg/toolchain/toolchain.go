// Package toolchain orchestrates the full compile and decompile pipelines
// (spec.md §4.7): reset diagnostics, run every stage in order, abort on the
// first hard error from the parser/analyzer/codegen while buffering
// warnings, and return the §6.2 {commands/warnings/stats} or
// {code/warnings/stats} contract. It plays the role the teacher's
// pkg/interpreter.New plays for PSIL: allocate everything once, hand back
// one ready-to-use entry point.
package toolchain

import (
	"go.uber.org/zap"

	"github.com/sensei-hacker/inav-configurator/pkg/catalog"
	"github.com/sensei-hacker/inav-configurator/pkg/codegen"
	"github.com/sensei-hacker/inav-configurator/pkg/decompile"
	"github.com/sensei-hacker/inav-configurator/pkg/diag"
	"github.com/sensei-hacker/inav-configurator/pkg/langparser"
	"github.com/sensei-hacker/inav-configurator/pkg/obslog"
	"github.com/sensei-hacker/inav-configurator/pkg/optimize"
	"github.com/sensei-hacker/inav-configurator/pkg/registers"
	"github.com/sensei-hacker/inav-configurator/pkg/rules"
	"github.com/sensei-hacker/inav-configurator/pkg/sema"
)

// CompileStats is the §6.2 compile stats contract.
type CompileStats struct {
	Handlers   int
	Conditions int
	Actions    int
	SlotsUsed  int
	GVarsUsed  int
}

// CompileResult is the full §6.2 compile output contract, collapsing the
// success/failure union into one struct: a hard error leaves Commands nil
// and Err set, with Line/Col carried on the error when the failing stage
// reported a position.
type CompileResult struct {
	Commands []string
	Warnings []diag.Diagnostic
	Stats    CompileStats
	Err      error
}

// DecompileResult is the §6.2 decompile output contract.
type DecompileResult struct {
	Code     string
	Warnings []diag.Diagnostic
	Stats    decompile.Stats
	Err      error
}

// Toolchain wires the API catalog and an optional logger to every
// Compile/Decompile call. It holds no per-run state, so one instance is
// safe to reuse across unrelated inputs (spec.md §5: "single-threaded and
// synchronous... re-entrant across independent inputs").
type Toolchain struct {
	cat    *catalog.Catalog
	logger *zap.Logger
}

// New returns a Toolchain backed by the embedded API catalog. A nil logger
// is replaced with a no-op logger.
func New(logger *zap.Logger) *Toolchain {
	if logger == nil {
		logger = obslog.Noop()
	}
	return &Toolchain{cat: catalog.Default(), logger: logger}
}

// Compile runs source through every stage of §4: parse, analyze, resolve
// registers, fold constants, generate code, encode to the §6.1 text
// format.
func (tc *Toolchain) Compile(source string) CompileResult {
	tc.logger.Debug("compile: parsing")
	prog, err := langparser.Parse(source)
	if err != nil {
		return CompileResult{Err: err}
	}

	tc.logger.Debug("compile: analyzing")
	bag := sema.Analyze(prog, tc.cat)
	if bag.HasErrors() {
		return CompileResult{Warnings: bag.All(), Err: firstError(bag)}
	}

	tc.logger.Debug("compile: resolving registers")
	resolved, alloc, err := registers.Resolve(prog)
	if err != nil {
		return CompileResult{Warnings: bag.All(), Err: err}
	}

	tc.logger.Debug("compile: folding constants")
	folded := optimize.Fold(resolved)

	tc.logger.Debug("compile: generating code")
	table, err := codegen.Generate(folded, alloc, tc.cat)
	if err != nil {
		return CompileResult{Warnings: bag.All(), Err: err}
	}

	instructions := table.Instructions()
	stats := CompileStats{
		SlotsUsed: len(instructions),
		GVarsUsed: len(alloc.Slots),
	}
	for _, ins := range instructions {
		if ins.Op.ProducesBoolean() {
			stats.Conditions++
		} else {
			stats.Actions++
		}
		if !ins.Gated() {
			stats.Handlers++
		}
	}

	tc.logger.Info("compile: done", zap.Int("slots_used", stats.SlotsUsed), zap.Int("gvars_used", stats.GVarsUsed))
	return CompileResult{
		Commands: rules.EncodeAll(instructions),
		Warnings: bag.Warnings(),
		Stats:    stats,
	}
}

// Decompile runs a rule table back through §4.6 to recover source text.
func (tc *Toolchain) Decompile(instructions []rules.Instruction) DecompileResult {
	tc.logger.Debug("decompile: recovering source", zap.Int("records", len(instructions)))
	code, warnings, stats, err := decompile.Decompile(instructions, tc.cat)
	if err != nil {
		return DecompileResult{Err: err}
	}
	tc.logger.Info("decompile: done", zap.Int("groups", stats.Groups))
	return DecompileResult{Code: code, Warnings: warnings, Stats: stats}
}

// DecompileText parses the §6.1 "logic ..." command lines (e.g. a raw dump
// pasted from the device CLI) and decompiles them.
func (tc *Toolchain) DecompileText(text string) DecompileResult {
	instructions, err := rules.DecodeAll(text)
	if err != nil {
		return DecompileResult{Err: err}
	}
	return tc.Decompile(instructions)
}

func firstError(bag *diag.Bag) error {
	for _, d := range bag.All() {
		if d.Severity == diag.Error {
			stage := &StageError{Diagnostic: d}
			if sentinel := diag.SentinelFor(d.Category); sentinel != nil {
				return diag.Wrap(sentinel, stage)
			}
			return stage
		}
	}
	return nil
}

// StageError wraps the first hard-error diagnostic the analyzer found, so
// callers that only want a single error value still see an accurate
// message and position. Compile wraps it with the matching §7 taxonomy
// sentinel before returning it, so errors.Is(result.Err, diag.ErrSemantic)
// works the same way it does for the parser's and codegen's own errors.
type StageError struct {
	Diagnostic diag.Diagnostic
}

func (e *StageError) Error() string { return e.Diagnostic.String() }
