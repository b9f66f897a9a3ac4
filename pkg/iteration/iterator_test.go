package iteration

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outputs(results []Result) []interface{} {
	out := make([]interface{}, len(results))
	for i, r := range results {
		out[i] = r.Output
	}
	return out
}

func TestIterator_ProcessSequential_Success(t *testing.T) {
	iterator := NewIterator(Config{
		Strategy: StrategySequential,
	})

	items := []interface{}{1, 2, 3}

	results := iterator.Process(context.Background(), items, func(ctx context.Context, item interface{}, index int) (interface{}, error) {
		num := item.(int)
		return num * 2, nil
	})

	require.Len(t, results, 3)
	assert.Equal(t, []interface{}{2, 4, 6}, outputs(results))
	for i, r := range results {
		assert.Equal(t, i, r.Index)
		assert.NoError(t, r.Err)
	}
}

func TestIterator_ProcessSequential_IsolatesFailures(t *testing.T) {
	iterator := NewIterator(Config{
		Strategy: StrategySequential,
	})

	items := []interface{}{1, 2, 3, 4, 5}
	processCount := 0

	results := iterator.Process(context.Background(), items, func(ctx context.Context, item interface{}, index int) (interface{}, error) {
		processCount++
		if index == 2 {
			return nil, errors.New("item 2 failed")
		}
		return item, nil
	})

	require.Len(t, results, 5)
	assert.Equal(t, 5, processCount, "a failing item must not stop the rest")
	assert.EqualError(t, results[2].Err, "item 2 failed")
	assert.Nil(t, results[2].Output)
	assert.Equal(t, 4, results[3].Output)
	assert.NoError(t, results[4].Err)
}

func TestIterator_ProcessSequential_EmptyArray(t *testing.T) {
	iterator := NewIterator(Config{
		Strategy: StrategySequential,
	})

	results := iterator.Process(context.Background(), []interface{}{}, func(ctx context.Context, item interface{}, index int) (interface{}, error) {
		t.Fatal("Should not be called for empty array")
		return nil, nil
	})

	assert.Equal(t, []Result{}, results)
}

func TestIterator_ProcessSequential_CancelledContext(t *testing.T) {
	iterator := NewIterator(Config{
		Strategy: StrategySequential,
	})

	ctx, cancel := context.WithCancel(context.Background())
	results := iterator.Process(ctx, []interface{}{1, 2, 3}, func(ctx context.Context, item interface{}, index int) (interface{}, error) {
		if index == 0 {
			cancel()
		}
		return item, nil
	})

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, context.Canceled)
	assert.ErrorIs(t, results[2].Err, context.Canceled)
}

func TestIterator_ProcessParallel_Success(t *testing.T) {
	iterator := NewIterator(Config{
		Strategy:      StrategyParallel,
		MaxConcurrent: 3,
	})

	items := make([]interface{}, 10)
	for i := 0; i < 10; i++ {
		items[i] = i
	}

	results := iterator.Process(context.Background(), items, func(ctx context.Context, item interface{}, index int) (interface{}, error) {
		time.Sleep(5 * time.Millisecond) // Simulate work
		num := item.(int)
		return num * 2, nil
	})

	require.Len(t, results, 10)
	for i := 0; i < 10; i++ {
		assert.Equal(t, i, results[i].Index)
		assert.Equal(t, i*2, results[i].Output)
	}
}

func TestIterator_ProcessParallel_IsolatesFailures(t *testing.T) {
	iterator := NewIterator(Config{
		Strategy:      StrategyParallel,
		MaxConcurrent: 5,
	})

	items := make([]interface{}, 20)
	for i := 0; i < 20; i++ {
		items[i] = i
	}

	var processed int64
	results := iterator.Process(context.Background(), items, func(ctx context.Context, item interface{}, index int) (interface{}, error) {
		atomic.AddInt64(&processed, 1)
		if index%5 == 0 {
			return nil, fmt.Errorf("item %d failed", index)
		}
		return item, nil
	})

	assert.Equal(t, int64(20), atomic.LoadInt64(&processed))
	failed := 0
	for i, r := range results {
		if i%5 == 0 {
			assert.EqualError(t, r.Err, fmt.Sprintf("item %d failed", i))
			failed++
			continue
		}
		assert.NoError(t, r.Err)
		assert.Equal(t, i, r.Output)
	}
	assert.Equal(t, 4, failed)
}

func TestIterator_ProcessParallel_BoundedWorkers(t *testing.T) {
	iterator := NewIterator(Config{
		Strategy:      StrategyParallel,
		MaxConcurrent: 2,
	})

	items := make([]interface{}, 12)
	var active, peak int64
	iterator.Process(context.Background(), items, func(ctx context.Context, item interface{}, index int) (interface{}, error) {
		current := atomic.AddInt64(&active, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if current <= p || atomic.CompareAndSwapInt64(&peak, p, current) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return nil, nil
	})

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestIterator_ProcessParallel_EmptyArray(t *testing.T) {
	iterator := NewIterator(Config{
		Strategy:      StrategyParallel,
		MaxConcurrent: 4,
	})

	results := iterator.Process(context.Background(), []interface{}{}, func(ctx context.Context, item interface{}, index int) (interface{}, error) {
		t.Fatal("Should not be called for empty array")
		return nil, nil
	})

	assert.Equal(t, []Result{}, results)
}

func TestIterator_NewIterator_Defaults(t *testing.T) {
	iterator := NewIterator(Config{})

	assert.Equal(t, runtime.NumCPU(), iterator.MaxConcurrent())
	assert.Equal(t, StrategySequential, iterator.Strategy())
}

func TestIterator_ProcessParallel_PreservesOrder(t *testing.T) {
	iterator := NewIterator(Config{
		Strategy:      StrategyParallel,
		MaxConcurrent: 4,
	})

	items := []interface{}{5, 4, 3, 2, 1, 0}

	results := iterator.Process(context.Background(), items, func(ctx context.Context, item interface{}, index int) (interface{}, error) {
		// Sleep different amounts to test order preservation
		time.Sleep(time.Duration(item.(int)) * time.Millisecond)
		return index * 10, nil
	})

	assert.Equal(t, []interface{}{0, 10, 20, 30, 40, 50}, outputs(results))
}
