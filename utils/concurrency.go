package utils

import (
	"sync"
	"time"
)

// WorkerPool manages a bounded pool of goroutines with optional throttling.
// The pipeline uses it to cap concurrent store writes so a long run never
// overwhelms the database's connection limits.
type WorkerPool struct {
	maxWorkers int
	throttleMs int
	semaphore  chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	lastSubmit time.Time
}

// NewWorkerPool creates a WorkerPool with the given concurrency limit and a
// minimum interval between job starts (0 disables throttling).
func NewWorkerPool(maxWorkers, throttleMs int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		throttleMs: throttleMs,
		semaphore:  make(chan struct{}, maxWorkers),
		lastSubmit: time.Now(),
	}
}

// Submit enqueues a job for execution in the pool, blocking while the pool
// is full.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		wp.throttle()
		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) throttle() {
	if wp.throttleMs <= 0 {
		return
	}
	wp.mu.Lock()
	defer wp.mu.Unlock()

	minInterval := time.Duration(wp.throttleMs) * time.Millisecond
	elapsed := time.Since(wp.lastSubmit)
	if elapsed < minInterval {
		time.Sleep(minInterval - elapsed)
	}
	wp.lastSubmit = time.Now()
}

// StringSet is a thread-safe set. The pipeline tracks the distinct entity
// codes and periods seen during a run with it.
type StringSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewStringSet creates an empty StringSet.
func NewStringSet() *StringSet {
	return &StringSet{seen: make(map[string]struct{})}
}

// Add returns true if the value was newly added, false if already present.
func (s *StringSet) Add(v string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[v]; exists {
		return false
	}
	s.seen[v] = struct{}{}
	return true
}

// Contains returns true if the value has been added.
func (s *StringSet) Contains(v string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[v]
	return exists
}

// Size returns the number of unique values tracked.
func (s *StringSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
