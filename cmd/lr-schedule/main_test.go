package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wanshanhsieh/Riptide/internal/config"
	"github.com/wanshanhsieh/Riptide/internal/optimizer"
	"github.com/wanshanhsieh/Riptide/internal/schedule"
)

func TestPrintSchedule(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Optimizer.BatchSize = 256

	_, sched, err := optimizer.Get("alexnet", optimizer.NewGlobalStep(0), 256, 1)
	require.NoError(t, err)

	var out bytes.Buffer
	printSchedule(&out, cfg, sched)

	text := out.String()
	assert.Contains(t, text, "alexnet")
	assert.Contains(t, text, "256 x 1 GPU(s)")
	assert.Contains(t, text, "280255")
	assert.Contains(t, text, "280256")
	assert.Contains(t, text, "320292")
	assert.Contains(t, text, "end")
}

func TestRunToyFit(t *testing.T) {
	pc, err := schedule.NewPiecewiseConstant([]int64{30}, []float64{0.1, 0.05})
	require.NoError(t, err)

	step := optimizer.NewGlobalStep(0)
	opt := optimizer.NewAdam(optimizer.NewSchedule(pc, step), optimizer.AdamEpsilon, zap.NewNop())

	// starting from zero the loss is 1.5^2 + 2^2 + 0.5^2 + 3^2
	loss, err := runToyFit(zap.NewNop(), opt, 40)
	require.NoError(t, err)

	assert.Less(t, loss, 15.5)
	assert.Equal(t, int64(40), step.Value())
	assert.Equal(t, 0.05, opt.LearningRate())
}
