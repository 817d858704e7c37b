package optimizer

const (
	// NumImages is the number of training examples in one epoch
	NumImages = 1281167

	// ReferenceBatchSize is the batch size BaseLearningRate was tuned for
	ReferenceBatchSize = 128

	// BaseLearningRate is the starting rate at ReferenceBatchSize
	BaseLearningRate = 1e-4

	// LRDecay is the factor applied at each schedule boundary
	LRDecay = 0.2

	// AdamEpsilon is the numerical stability term of the Adam update
	AdamEpsilon = 1e-5
)

// decayEpochs are the epochs at which the learning rate drops
var decayEpochs = []int{56, 64}

// Recipe holds the schedule parameters computed for one batch configuration
type Recipe struct {
	EffectiveBatchSize int
	StartingLR         float64
	LRDecay            float64
	Values             []float64
	EpochBoundaries    []int
	StepsPerEpoch      float64
	StepBoundaries     []int64
}

// NewRecipe computes the piecewise Adam schedule parameters.
//
// A GPU count of zero is treated as one. Batch size and GPU count are not
// otherwise checked, so large values give an unclamped starting rate.
func NewRecipe(batchSize, numGPUs int) Recipe {
	if numGPUs == 0 {
		numGPUs = 1
	}

	effective := batchSize * numGPUs

	// Linear scaling relative to the reference batch size
	startingLR := BaseLearningRate * (float64(effective) / ReferenceBatchSize)

	values := []float64{
		startingLR,
		startingLR * LRDecay,
		startingLR * (LRDecay * LRDecay),
	}

	stepsPerEpoch := float64(NumImages) / float64(effective)
	boundaries := make([]int64, len(decayEpochs))
	for i, epoch := range decayEpochs {
		boundaries[i] = int64(float64(epoch) * stepsPerEpoch)
	}

	epochs := make([]int, len(decayEpochs))
	copy(epochs, decayEpochs)

	return Recipe{
		EffectiveBatchSize: effective,
		StartingLR:         startingLR,
		LRDecay:            LRDecay,
		Values:             values,
		EpochBoundaries:    epochs,
		StepsPerEpoch:      stepsPerEpoch,
		StepBoundaries:     boundaries,
	}
}
