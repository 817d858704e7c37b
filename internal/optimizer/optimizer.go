package optimizer

import (
	"fmt"

	"go.uber.org/zap"
	"gorgonia.org/gorgonia"

	"github.com/wanshanhsieh/Riptide/internal/schedule"
)

// Schedule is a piecewise-constant learning rate bound to a global step
type Schedule struct {
	*schedule.PiecewiseConstant
	step *GlobalStep
}

// NewSchedule binds a piecewise schedule to step
func NewSchedule(pc *schedule.PiecewiseConstant, step *GlobalStep) *Schedule {
	return &Schedule{PiecewiseConstant: pc, step: step}
}

// Current returns the learning rate at the counter's present value
func (s *Schedule) Current() float64 {
	return s.GetLR(s.step.Value())
}

// GlobalStep returns the counter the schedule is evaluated against
func (s *Schedule) GlobalStep() *GlobalStep {
	return s.step
}

// Optimizer is an Adam solver whose learning rate follows a Schedule.
//
// One AdamSolver is kept for the whole run; when the global step enters a
// new schedule region only its learn rate is replaced, so the moment
// estimates and iteration count carry over. Each successful Step advances
// the global step by one.
type Optimizer struct {
	schedule *Schedule
	eps      float64
	logger   *zap.Logger

	solver *gorgonia.AdamSolver
	region int
	lr     float64
}

var _ gorgonia.Solver = (*Optimizer)(nil)

// NewAdam creates an Adam optimizer driven by sched
func NewAdam(sched *Schedule, eps float64, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Optimizer{
		schedule: sched,
		eps:      eps,
		logger:   logger,
	}

	step := sched.GlobalStep().Value()
	o.solver = gorgonia.NewAdamSolver(
		gorgonia.WithLearnRate(sched.GetLR(step)),
		gorgonia.WithEps(eps),
	)
	o.retarget(step)

	return o
}

// retarget sets the solver's learn rate for the region containing step
func (o *Optimizer) retarget(step int64) {
	region := o.schedule.Region(step)
	lr := o.schedule.GetLR(step)

	gorgonia.WithLearnRate(lr)(o.solver)
	o.region = region
	o.lr = lr

	o.logger.Debug("Learning rate region entered",
		zap.Int64("step", step),
		zap.Int("region", region),
		zap.Float64("lr", lr),
	)
}

// Step applies one Adam update using the learning rate of the current step
func (o *Optimizer) Step(model []gorgonia.ValueGrad) error {
	step := o.schedule.GlobalStep().Value()
	if o.schedule.Region(step) != o.region {
		o.retarget(step)
	}

	if err := o.solver.Step(model); err != nil {
		return fmt.Errorf("adam step %d failed: %w", step, err)
	}

	o.schedule.GlobalStep().Increment()
	return nil
}

// LearningRate returns the learning rate the solver is currently using
func (o *Optimizer) LearningRate() float64 {
	return o.lr
}

// Epsilon returns the numerical stability term
func (o *Optimizer) Epsilon() float64 {
	return o.eps
}

// Schedule returns the schedule driving the optimizer
func (o *Optimizer) Schedule() *Schedule {
	return o.schedule
}
