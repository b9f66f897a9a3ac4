package concurrency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCircuitOpen is returned by Acquire while the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Stats is a snapshot of limiter activity.
type Stats struct {
	Acquired       int64
	Released       int64
	Active         int64
	PeakConcurrent int64
	AverageWait    time.Duration
}

// Limiter bounds the number of records a stream service handles at once.
type Limiter struct {
	sem     chan struct{}
	wg      sync.WaitGroup
	breaker *CircuitBreaker

	active    int64
	acquired  int64
	released  int64
	peak      int64
	waitNanos int64
}

// NewLimiter creates a limiter with maxConcurrent slots guarded by breaker.
// A nil breaker uses a breaker that opens after 100 consecutive failures for
// 30 seconds.
func NewLimiter(maxConcurrent int, breaker *CircuitBreaker) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if breaker == nil {
		breaker = NewCircuitBreaker(100, 30*time.Second)
	}
	return &Limiter{
		sem:     make(chan struct{}, maxConcurrent),
		breaker: breaker,
	}
}

// Acquire waits for a free slot. It fails fast with ErrCircuitOpen while the
// breaker is open and with ctx.Err() when ctx ends first.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.breaker.IsOpen() {
		return ErrCircuitOpen
	}

	start := time.Now()
	select {
	case l.sem <- struct{}{}:
		atomic.AddInt64(&l.waitNanos, time.Since(start).Nanoseconds())
		atomic.AddInt64(&l.acquired, 1)
		l.updatePeak(atomic.AddInt64(&l.active, 1))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	select {
	case <-l.sem:
		atomic.AddInt64(&l.active, -1)
		atomic.AddInt64(&l.released, 1)
	default:
	}
}

// Go runs fn in a goroutine once a slot is free. The outcome of fn feeds the
// circuit breaker. Wait blocks until every fn started by Go has returned.
func (l *Limiter) Go(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.Release()
		l.record(fn())
	}()
	return nil
}

// Do runs fn on the calling goroutine once a slot is free.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()

	err := fn()
	l.record(err)
	return err
}

// Wait blocks until all goroutines started by Go have finished.
func (l *Limiter) Wait() {
	l.wg.Wait()
}

// Breaker returns the limiter's circuit breaker.
func (l *Limiter) Breaker() *CircuitBreaker {
	return l.breaker
}

// Stats returns a snapshot of the limiter counters.
func (l *Limiter) Stats() Stats {
	s := Stats{
		Acquired:       atomic.LoadInt64(&l.acquired),
		Released:       atomic.LoadInt64(&l.released),
		Active:         atomic.LoadInt64(&l.active),
		PeakConcurrent: atomic.LoadInt64(&l.peak),
	}
	if s.Acquired > 0 {
		s.AverageWait = time.Duration(atomic.LoadInt64(&l.waitNanos) / s.Acquired)
	}
	return s
}

func (l *Limiter) record(err error) {
	if err != nil {
		l.breaker.RecordFailure()
		return
	}
	l.breaker.RecordSuccess()
}

func (l *Limiter) updatePeak(current int64) {
	for {
		peak := atomic.LoadInt64(&l.peak)
		if current <= peak || atomic.CompareAndSwapInt64(&l.peak, peak, current) {
			return
		}
	}
}
