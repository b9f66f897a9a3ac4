package iteration

import (
	"context"
	"runtime"
	"sync"
)

// Iterator handles item iteration with configurable execution strategy.
// Failures are isolated: an error for one item never stops the others.
type Iterator struct {
	config Config
}

// NewIterator creates a new iterator with given config
func NewIterator(config Config) *Iterator {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = runtime.NumCPU()
	}
	if config.Strategy == "" {
		config.Strategy = StrategySequential
	}
	return &Iterator{config: config}
}

// Process runs processFn for every item and returns one Result per item, in
// item order. Items not started before ctx is done get ctx.Err().
func (it *Iterator) Process(ctx context.Context, items []interface{}, processFn ProcessFunc) []Result {
	if len(items) == 0 {
		return []Result{}
	}

	if it.config.Strategy == StrategySequential {
		return it.processSequential(ctx, items, processFn)
	}
	return it.processParallel(ctx, items, processFn)
}

// processSequential processes items one by one
func (it *Iterator) processSequential(ctx context.Context, items []interface{}, processFn ProcessFunc) []Result {
	results := make([]Result, len(items))

	for i, item := range items {
		results[i].Index = i
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		results[i].Output, results[i].Err = processFn(ctx, item, i)
	}

	return results
}

// processParallel processes items concurrently with a bounded worker pool
func (it *Iterator) processParallel(ctx context.Context, items []interface{}, processFn ProcessFunc) []Result {
	numItems := len(items)
	results := make([]Result, numItems)

	numWorkers := it.config.MaxConcurrent
	if numWorkers > numItems {
		numWorkers = numItems
	}

	workCh := make(chan int, numItems)
	for i := 0; i < numItems; i++ {
		workCh <- i
	}
	close(workCh)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				// each worker owns a distinct index, no lock needed
				results[idx].Index = idx
				if err := ctx.Err(); err != nil {
					results[idx].Err = err
					continue
				}
				results[idx].Output, results[idx].Err = processFn(ctx, items[idx], idx)
			}
		}()
	}

	wg.Wait()
	return results
}

// Strategy returns the configured strategy.
func (it *Iterator) Strategy() Strategy {
	return it.config.Strategy
}

// MaxConcurrent returns the configured worker bound.
func (it *Iterator) MaxConcurrent() int {
	return it.config.MaxConcurrent
}
