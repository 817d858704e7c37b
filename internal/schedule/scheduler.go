package schedule

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrValueCount is returned when a piecewise schedule does not have
	// exactly one more value than it has boundaries
	ErrValueCount = errors.New("piecewise schedule needs len(values) == len(boundaries)+1")

	// ErrUnorderedBoundaries is returned when a boundary is smaller than the one before it
	ErrUnorderedBoundaries = errors.New("piecewise schedule boundaries must not decrease")
)

// LRScheduler defines the interface for learning rate scheduling.
// Implementations are pure functions of the global step.
type LRScheduler interface {
	GetLR(step int64) float64
}

// PiecewiseConstant holds a fixed learning rate inside each region of the
// step axis and changes value only at the boundary steps.
//
// Values[0] applies while step <= Boundaries[0], Values[i] while
// Boundaries[i-1] < step <= Boundaries[i], and the last value once the
// step is past the last boundary. Equal boundaries leave an empty region
// that no step maps to.
type PiecewiseConstant struct {
	boundaries []int64
	values     []float64
}

// NewPiecewiseConstant creates a piecewise-constant schedule
func NewPiecewiseConstant(boundaries []int64, values []float64) (*PiecewiseConstant, error) {
	if len(values) != len(boundaries)+1 {
		return nil, fmt.Errorf("%w: got %d boundaries and %d values",
			ErrValueCount, len(boundaries), len(values))
	}
	for i := 1; i < len(boundaries); i++ {
		if boundaries[i] < boundaries[i-1] {
			return nil, fmt.Errorf("%w: boundary %d (%d) < boundary %d (%d)",
				ErrUnorderedBoundaries, i, boundaries[i], i-1, boundaries[i-1])
		}
	}

	b := make([]int64, len(boundaries))
	copy(b, boundaries)
	v := make([]float64, len(values))
	copy(v, values)

	return &PiecewiseConstant{boundaries: b, values: v}, nil
}

// Region returns the index of the region the step falls into
func (s *PiecewiseConstant) Region(step int64) int {
	// first boundary that is >= step
	return sort.Search(len(s.boundaries), func(i int) bool {
		return s.boundaries[i] >= step
	})
}

// GetLR returns the learning rate for a given step
func (s *PiecewiseConstant) GetLR(step int64) float64 {
	return s.values[s.Region(step)]
}

// Boundaries returns a copy of the boundary steps
func (s *PiecewiseConstant) Boundaries() []int64 {
	out := make([]int64, len(s.boundaries))
	copy(out, s.boundaries)
	return out
}

// Values returns a copy of the per-region learning rates
func (s *PiecewiseConstant) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}
