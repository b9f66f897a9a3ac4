package keygen

import (
	"context"

	"github.com/wehubfusion/keygen/pkg/iteration"
)

// BatchResult is the outcome for records[Index] in ApplyBatch.
type BatchResult struct {
	Index  int
	Result *Result
	Err    error
}

// ApplyBatch transforms records using the given iteration strategy. Results
// are positional and a failed record never affects the others.
func (t *Transform) ApplyBatch(ctx context.Context, records [][]byte, config iteration.Config) []BatchResult {
	items := make([]interface{}, len(records))
	for i, r := range records {
		items[i] = r
	}

	iterator := iteration.NewIterator(config)
	results := iterator.Process(ctx, items, func(ctx context.Context, item interface{}, index int) (interface{}, error) {
		return t.Apply(item.([]byte))
	})

	out := make([]BatchResult, len(results))
	for i, r := range results {
		out[i] = BatchResult{Index: r.Index, Err: r.Err}
		if res, ok := r.Output.(*Result); ok && r.Err == nil {
			out[i].Result = res
		}
	}
	return out
}
