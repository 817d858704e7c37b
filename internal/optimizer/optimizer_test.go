package optimizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/wanshanhsieh/Riptide/internal/schedule"
)

// quadratic builds sum(w^2) over a vector initialised to start
func quadratic(t *testing.T, start []float64) (*gorgonia.Node, gorgonia.VM) {
	t.Helper()

	backing := make([]float64, len(start))
	copy(backing, start)

	g := gorgonia.NewGraph()
	w := gorgonia.NewVector(g, tensor.Float64,
		gorgonia.WithShape(len(start)),
		gorgonia.WithName("w"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(len(start)), tensor.WithBacking(backing))),
	)

	cost := gorgonia.Must(gorgonia.Sum(gorgonia.Must(gorgonia.Square(w))))
	_, err := gorgonia.Grad(cost, w)
	require.NoError(t, err)

	vm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(w))
	t.Cleanup(func() { vm.Close() })

	return w, vm
}

func runStep(t *testing.T, opt *Optimizer, w *gorgonia.Node, vm gorgonia.VM) {
	t.Helper()

	require.NoError(t, vm.RunAll())
	require.NoError(t, opt.Step([]gorgonia.ValueGrad{w}))
	vm.Reset()
}

func TestGlobalStep(t *testing.T) {
	s := NewGlobalStep(5)
	assert.Equal(t, int64(5), s.Value())
	assert.Equal(t, int64(6), s.Increment())

	s.Set(100)
	assert.Equal(t, int64(100), s.Value())
}

func TestScheduleFollowsGlobalStep(t *testing.T) {
	pc, err := schedule.NewPiecewiseConstant([]int64{10}, []float64{0.1, 0.01})
	require.NoError(t, err)

	step := NewGlobalStep(0)
	sched := NewSchedule(pc, step)
	assert.Equal(t, 0.1, sched.Current())

	step.Set(11)
	assert.Equal(t, 0.01, sched.Current())
	assert.Same(t, step, sched.GlobalStep())
}

func TestOptimizerDescends(t *testing.T) {
	step := NewGlobalStep(0)
	opt, _, err := Get("alexnet", step, 128, 1)
	require.NoError(t, err)

	w, vm := quadratic(t, []float64{1.0, -1.0})
	runStep(t, opt, w, vm)

	got := w.Value().Data().([]float64)
	assert.Less(t, got[0], 1.0)
	assert.Greater(t, got[0], 0.999)
	assert.Greater(t, got[1], -1.0)
	assert.Less(t, got[1], -0.999)

	assert.Equal(t, int64(1), step.Value())
}

func TestOptimizerFollowsRegions(t *testing.T) {
	pc, err := schedule.NewPiecewiseConstant([]int64{1, 2}, []float64{0.1, 0.01, 0.001})
	require.NoError(t, err)

	step := NewGlobalStep(0)
	opt := NewAdam(NewSchedule(pc, step), AdamEpsilon, zap.NewNop())
	assert.Equal(t, 0.1, opt.LearningRate())
	assert.Equal(t, AdamEpsilon, opt.Epsilon())

	w, vm := quadratic(t, []float64{3.0})

	// step 0 and step 1 share the first region
	runStep(t, opt, w, vm)
	runStep(t, opt, w, vm)
	assert.Equal(t, 0.1, opt.LearningRate())

	runStep(t, opt, w, vm)
	assert.Equal(t, 0.01, opt.LearningRate())

	runStep(t, opt, w, vm)
	assert.Equal(t, 0.001, opt.LearningRate())
	assert.Equal(t, int64(4), step.Value())
}

func TestOptimizerKeepsAdamStateAcrossRegions(t *testing.T) {
	// the same rate in every region must track a plain Adam exactly
	pc, err := schedule.NewPiecewiseConstant([]int64{2}, []float64{0.1, 0.1})
	require.NoError(t, err)

	step := NewGlobalStep(0)
	opt := NewAdam(NewSchedule(pc, step), AdamEpsilon, nil)
	w, vm := quadratic(t, []float64{3.0})

	plain := gorgonia.NewAdamSolver(gorgonia.WithLearnRate(0.1), gorgonia.WithEps(AdamEpsilon))
	pw, pvm := quadratic(t, []float64{3.0})

	for i := 0; i < 6; i++ {
		runStep(t, opt, w, vm)

		require.NoError(t, pvm.RunAll())
		require.NoError(t, plain.Step([]gorgonia.ValueGrad{pw}))
		pvm.Reset()

		got := w.Value().Data().([]float64)
		want := pw.Value().Data().([]float64)
		assert.Equal(t, want, got, "step %d", i)
	}
	assert.Equal(t, int64(6), step.Value())
}

func TestOptimizerResumesInLaterRegion(t *testing.T) {
	step := NewGlobalStep(400000)
	opt, sched, err := Get("alexnet", step, 256, 1)
	require.NoError(t, err)

	assert.InDelta(t, 8e-6, opt.LearningRate(), 1e-18)
	assert.Equal(t, opt.LearningRate(), sched.Current())
	assert.Same(t, sched, opt.Schedule())
}

func TestSelectorUnknownModel(t *testing.T) {
	_, _, err := Get("unknown_model", NewGlobalStep(0), 128, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownModel))
	assert.Contains(t, err.Error(), "unknown_model")
}

func TestSelectorNilStep(t *testing.T) {
	_, _, err := Get("alexnet", nil, 128, 1)
	assert.ErrorIs(t, err, ErrNilGlobalStep)
}

func TestSelectorRegister(t *testing.T) {
	s := NewSelector(zap.NewNop())
	assert.Equal(t, []string{"alexnet"}, s.Names())

	err := s.Register("alexnet", AdamPiecewise)
	assert.ErrorIs(t, err, ErrDuplicateModel)

	called := false
	err = s.Register("resnet", func(step *GlobalStep, batchSize, numGPUs int, logger *zap.Logger) (*Optimizer, *Schedule, error) {
		called = true
		return AdamPiecewise(step, batchSize*2, numGPUs, logger)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alexnet", "resnet"}, s.Names())

	_, sched, err := s.Get("resnet", NewGlobalStep(0), 64, 1)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 1e-4, sched.Current())
}
