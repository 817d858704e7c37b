package optimizer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wanshanhsieh/Riptide/internal/schedule"
)

// AdamPiecewise builds Adam with a piecewise-constant learning rate that
// drops by LRDecay at epochs 56 and 64. The starting rate scales linearly
// with the effective batch size across all GPUs.
func AdamPiecewise(step *GlobalStep, batchSize, numGPUs int, logger *zap.Logger) (*Optimizer, *Schedule, error) {
	if step == nil {
		return nil, nil, ErrNilGlobalStep
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	recipe := NewRecipe(batchSize, numGPUs)

	pc, err := schedule.NewPiecewiseConstant(recipe.StepBoundaries, recipe.Values)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build schedule for effective batch size %d: %w",
			recipe.EffectiveBatchSize, err)
	}

	sched := NewSchedule(pc, step)
	opt := NewAdam(sched, AdamEpsilon, logger)

	logger.Info("Optimizer built",
		zap.Int("effective_batch_size", recipe.EffectiveBatchSize),
		zap.Float64("starting_lr", recipe.StartingLR),
		zap.Float64s("lr_values", recipe.Values),
		zap.Int64s("step_boundaries", recipe.StepBoundaries),
		zap.Float64("epsilon", AdamEpsilon),
	)

	return opt, sched, nil
}
