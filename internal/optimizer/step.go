package optimizer

import "sync/atomic"

// GlobalStep counts the optimization steps executed so far.
// Reads may happen from other goroutines while the training loop advances it.
type GlobalStep struct {
	n atomic.Int64
}

// NewGlobalStep creates a counter starting at start
func NewGlobalStep(start int64) *GlobalStep {
	s := &GlobalStep{}
	s.n.Store(start)
	return s
}

// Value returns the current step
func (s *GlobalStep) Value() int64 {
	return s.n.Load()
}

// Increment advances the counter by one and returns the new value
func (s *GlobalStep) Increment() int64 {
	return s.n.Add(1)
}

// Set moves the counter, e.g. when resuming from a checkpoint
func (s *GlobalStep) Set(step int64) {
	s.n.Store(step)
}
