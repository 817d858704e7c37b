package optimizer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrUnknownModel is returned when no builder is registered for a model name
	ErrUnknownModel = errors.New("unknown model")

	// ErrDuplicateModel is returned when registering a name twice
	ErrDuplicateModel = errors.New("model already registered")

	// ErrNilGlobalStep is returned when a builder gets no step counter
	ErrNilGlobalStep = errors.New("global step is nil")
)

// Builder constructs the optimizer and schedule for one model
type Builder func(step *GlobalStep, batchSize, numGPUs int, logger *zap.Logger) (*Optimizer, *Schedule, error)

// Selector maps model names to optimizer builders
type Selector struct {
	mu       sync.RWMutex
	builders map[string]Builder
	logger   *zap.Logger
}

// NewSelector creates a selector with the default builders registered
func NewSelector(logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Selector{
		builders: make(map[string]Builder),
		logger:   logger,
	}

	list := map[string]Builder{
		"alexnet": AdamPiecewise,
	}
	for name, b := range list {
		if err := s.Register(name, b); err != nil {
			panic(err.Error())
		}
	}

	return s
}

// Register adds a builder under name
func (s *Selector) Register(name string, b Builder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.builders[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateModel, name)
	}
	s.builders[name] = b
	return nil
}

// Names returns the registered model names in sorted order
func (s *Selector) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.builders))
	for name := range s.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get builds the optimizer and schedule registered for name.
// Callers without a GPU count should pass 1.
func (s *Selector) Get(name string, step *GlobalStep, batchSize, numGPUs int) (*Optimizer, *Schedule, error) {
	s.mu.RLock()
	b, ok := s.builders[name]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	if step == nil {
		return nil, nil, ErrNilGlobalStep
	}

	return b(step, batchSize, numGPUs, s.logger.With(zap.String("model", name)))
}

var defaultSelector = NewSelector(nil)

// Get builds the optimizer for name using the default builders
func Get(name string, step *GlobalStep, batchSize, numGPUs int) (*Optimizer, *Schedule, error) {
	return defaultSelector.Get(name, step, batchSize, numGPUs)
}
