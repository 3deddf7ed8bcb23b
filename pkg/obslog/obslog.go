// Package obslog wraps zap behind a single constructor so the rest of the
// toolchain never calls zap.New* directly.
package obslog

import "go.uber.org/zap"

// New returns a logger suitable for the toolchain's stage tracing. Verbose
// mode uses a development config (human-readable, caller info, debug
// level); quiet mode uses a production config restricted to warn-and-above
// so a library caller embedding the toolchain isn't flooded by default.
func New(verbose bool) *zap.Logger {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		// Config built above is static and known-valid; fall back to a
		// no-op logger rather than panicking a library caller.
		return zap.NewNop()
	}
	return logger
}

// Noop returns a logger that discards everything, for callers (and tests)
// that don't care about tracing.
func Noop() *zap.Logger { return zap.NewNop() }
