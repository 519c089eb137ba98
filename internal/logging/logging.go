// Package logging provides the compiler's zap-backed logging layer. The
// core phases log at debug level only; nothing is ever written to stdout,
// which is reserved for canonical output.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base = zap.NewNop()
)

// Init builds the process logger. Verbose enables debug level; otherwise
// production defaults apply. Safe to call once at host startup; library
// consumers that never call it get a no-op logger.
func Init(verbose bool) error {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	mu.Lock()
	base = logger
	mu.Unlock()
	return nil
}

// Named returns a logger scoped to a subsystem (parser, resolver, engine,
// alloc, ...).
func Named(name string) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.Named(name)
}

// Sync flushes buffered entries; call at host shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}
