package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/wanshanhsieh/Riptide/internal/config"
	"github.com/wanshanhsieh/Riptide/internal/logging"
	"github.com/wanshanhsieh/Riptide/internal/optimizer"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config (optional)")
	modelName := flag.String("model", "alexnet", "Model whose optimizer recipe to build")
	batchSize := flag.Int("batch-size", 128, "Per-device batch size")
	numGPUs := flag.Int("gpus", 1, "Number of GPUs (0 is treated as 1)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	startStep := flag.Int64("start-step", 0, "Global step to start from")
	trainSteps := flag.Int("train", 0, "Run N steps of a toy least-squares fit with the optimizer")

	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Explicit flags win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			cfg.Optimizer.Model = *modelName
		case "batch-size":
			cfg.Optimizer.BatchSize = *batchSize
		case "gpus":
			cfg.Optimizer.NumGPUs = *numGPUs
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	selector := optimizer.NewSelector(logger)
	step := optimizer.NewGlobalStep(*startStep)

	opt, sched, err := selector.Get(cfg.Optimizer.Model, step, cfg.Optimizer.BatchSize, cfg.Optimizer.NumGPUs)
	if err != nil {
		logger.Error("Failed to build optimizer",
			zap.Error(err),
			zap.Strings("registered", selector.Names()))
		os.Exit(1)
	}

	printSchedule(os.Stdout, cfg, sched)

	if *trainSteps > 0 {
		if _, err := runToyFit(logger, opt, *trainSteps); err != nil {
			logger.Error("Toy fit failed", zap.Error(err))
			os.Exit(1)
		}
	}
}

func printSchedule(out io.Writer, cfg *config.Config, sched *optimizer.Schedule) {
	fmt.Fprintln(out, "Learning Rate Schedule:")
	fmt.Fprintf(out, "  Model:           %s\n", cfg.Optimizer.Model)
	fmt.Fprintf(out, "  Batch size:      %d x %d GPU(s)\n", cfg.Optimizer.BatchSize, cfg.Optimizer.NumGPUs)
	fmt.Fprintf(out, "  Current step:    %d\n", sched.GlobalStep().Value())
	fmt.Fprintf(out, "  Current LR:      %.8g\n", sched.Current())
	fmt.Fprintln(out)

	boundaries := sched.Boundaries()
	values := sched.Values()
	lower := "0"
	for i, v := range values {
		upper := "end"
		if i < len(boundaries) {
			upper = fmt.Sprintf("%d", boundaries[i])
		}
		fmt.Fprintf(out, "  steps %10s .. %-10s lr=%.8g\n", lower, upper, v)
		if i < len(boundaries) {
			lower = fmt.Sprintf("%d", boundaries[i]+1)
		}
	}
	fmt.Fprintln(out)
}

// runToyFit pulls a vector towards a fixed target with the given optimizer
// and returns the last loss
func runToyFit(logger *zap.Logger, opt *optimizer.Optimizer, steps int) (float64, error) {
	target := []float64{1.5, -2.0, 0.5, 3.0}
	start := make([]float64, len(target))

	g := gorgonia.NewGraph()
	w := gorgonia.NewVector(g, tensor.Float64,
		gorgonia.WithShape(len(start)),
		gorgonia.WithName("w"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(len(start)), tensor.WithBacking(start))),
	)
	y := gorgonia.NewVector(g, tensor.Float64,
		gorgonia.WithShape(len(target)),
		gorgonia.WithName("y"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(len(target)), tensor.WithBacking(target))),
	)

	diff, err := gorgonia.Sub(w, y)
	if err != nil {
		return 0, fmt.Errorf("failed to build residual: %w", err)
	}
	sq, err := gorgonia.Square(diff)
	if err != nil {
		return 0, fmt.Errorf("failed to build square: %w", err)
	}
	cost, err := gorgonia.Sum(sq)
	if err != nil {
		return 0, fmt.Errorf("failed to build cost: %w", err)
	}

	if _, err := gorgonia.Grad(cost, w); err != nil {
		return 0, fmt.Errorf("failed to compute gradients: %w", err)
	}

	vm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(w))
	defer vm.Close()

	var loss float64
	logEvery := steps / 10
	if logEvery == 0 {
		logEvery = 1
	}

	for i := 0; i < steps; i++ {
		if err := vm.RunAll(); err != nil {
			return 0, fmt.Errorf("failed to run forward/backward: %w", err)
		}

		if err := opt.Step([]gorgonia.ValueGrad{w}); err != nil {
			return 0, err
		}

		if (i+1)%logEvery == 0 || i == steps-1 {
			loss, err = scalarValue(cost)
			if err != nil {
				return 0, err
			}
			logger.Info("Toy fit progress",
				zap.Int64("global_step", opt.Schedule().GlobalStep().Value()),
				zap.Float64("loss", loss),
				zap.Float64("lr", opt.LearningRate()),
			)
		}

		vm.Reset()
	}

	return loss, nil
}

func scalarValue(n *gorgonia.Node) (float64, error) {
	v := n.Value()
	if v == nil {
		return 0, fmt.Errorf("%s has no value", n.Name())
	}

	switch d := v.Data().(type) {
	case float64:
		return d, nil
	case []float64:
		if len(d) > 0 {
			return d[0], nil
		}
		return 0, fmt.Errorf("%s value array is empty", n.Name())
	default:
		return 0, fmt.Errorf("unexpected value type: %T", d)
	}
}
