package optimization

import "errors"

// Failure taxonomy for the engine. Every operation either returns a valid
// (weights, performance) pair or an error wrapping exactly one of these
// sentinels; callers branch with errors.Is.
var (
	// ErrInvalidInput marks structurally invalid input: empty price table,
	// zero assets, non-positive prices, mismatched dimensions.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientData marks a valid shape with too few observations for
	// a stable estimate (fewer than 2 rows).
	ErrInsufficientData = errors.New("insufficient data")

	// ErrOptimizationInfeasible marks a convex program whose constraints
	// cannot be satisfied, e.g. a target return outside the attainable range.
	ErrOptimizationInfeasible = errors.New("optimization infeasible")

	// ErrOptimizationError marks a solver or clustering failure on otherwise
	// feasible input.
	ErrOptimizationError = errors.New("optimization error")

	// ErrUnsupportedMetric marks an unknown Monte Carlo selection metric.
	ErrUnsupportedMetric = errors.New("unsupported metric")

	// ErrNotRun marks a Monte Carlo selection requested before any run.
	ErrNotRun = errors.New("simulation not run")
)
