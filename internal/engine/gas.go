package engine

import (
	"facet/internal/diag"
)

// DefaultGasLimit bounds pipeline evaluation when the host configures no
// explicit limit.
const DefaultGasLimit = 100000

// Gas is the monotonically increasing synthetic-cost counter. Every lens
// invocation charges at least one unit; crossing the limit aborts
// evaluation and the partial environment is discarded.
type Gas struct {
	used  int64
	limit int64
}

// NewGas builds a counter with the given limit. Non-positive limits fall
// back to the default.
func NewGas(limit int64) *Gas {
	if limit <= 0 {
		limit = DefaultGasLimit
	}
	return &Gas{limit: limit}
}

// Charge adds cost units (minimum one) and fails with E-GAS once the
// counter exceeds the limit.
func (g *Gas) Charge(cost int64) *diag.Diagnostic {
	if cost < 1 {
		cost = 1
	}
	g.used += cost
	if g.used > g.limit {
		return diag.New(diag.EngineGas,
			"gas limit of %d exceeded after %d units", g.limit, g.used)
	}
	return nil
}

// Used returns the accumulated cost.
func (g *Gas) Used() int64 { return g.used }

// Limit returns the configured ceiling.
func (g *Gas) Limit() int64 { return g.limit }
