package utils

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// WorkerPool runs jobs with bounded concurrency and a minimum interval
// between job starts. Both the slot wait and the rate-limit wait give up
// when the submitting context is cancelled.
type WorkerPool struct {
	slots    chan struct{}
	interval time.Duration
	wg       sync.WaitGroup

	mu        sync.Mutex
	lastStart time.Time
}

// NewWorkerPool creates a WorkerPool. maxWorkers below 1 is treated as 1 and
// rateLimitMs <= 0 disables the interval.
func NewWorkerPool(maxWorkers, rateLimitMs int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		slots:     make(chan struct{}, maxWorkers),
		interval:  time.Duration(rateLimitMs) * time.Millisecond,
		lastStart: time.Now(),
	}
}

// Submit schedules job once a slot is free. It returns false, without
// running job, when ctx is cancelled before a slot frees up. A job whose
// rate-limit wait is cut short by ctx still runs and observes the
// cancelled context itself.
func (wp *WorkerPool) Submit(ctx context.Context, job func()) bool {
	select {
	case wp.slots <- struct{}{}:
	case <-ctx.Done():
		return false
	}

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.slots }()

		wp.waitTurn(ctx)
		job()
	}()
	return true
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) waitTurn(ctx context.Context) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wait := wp.interval - time.Since(wp.lastStart); wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}
	wp.lastStart = time.Now()
}

// KeySet is a concurrent set of property references. The zero value is
// ready to use.
type KeySet struct {
	keys sync.Map
	size atomic.Int64
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{}
}

// Add records key and reports whether it was new.
func (s *KeySet) Add(key string) bool {
	if _, loaded := s.keys.LoadOrStore(key, struct{}{}); loaded {
		return false
	}
	s.size.Add(1)
	return true
}

// Contains reports whether key was recorded.
func (s *KeySet) Contains(key string) bool {
	_, ok := s.keys.Load(key)
	return ok
}

// Size returns the number of distinct keys.
func (s *KeySet) Size() int {
	return int(s.size.Load())
}
