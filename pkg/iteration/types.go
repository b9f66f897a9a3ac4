package iteration

import "context"

// Strategy defines how items are processed
type Strategy string

const (
	StrategySequential Strategy = "sequential" // Process items one by one
	StrategyParallel   Strategy = "parallel"   // Process items concurrently
)

// Config holds configuration for iteration
type Config struct {
	Strategy      Strategy // sequential or parallel
	MaxConcurrent int      // Max concurrent workers (0 = runtime.NumCPU())
}

// ProcessFunc is the function called for each item
type ProcessFunc func(ctx context.Context, item interface{}, index int) (interface{}, error)

// Result is the outcome for the item at Index. Exactly one of Output and Err
// is meaningful.
type Result struct {
	Index  int
	Output interface{}
	Err    error
}
