// Package ann trains a two-layer tanh network to map license-plate character
// images to the bipolar bit codes of their labels.
package ann

import (
	"log"

	"github.com/pkg/errors"
	"github.com/syhv-git/gonn-plates/dataset"
	"gonum.org/v1/gonum/mat"
)

var ErrUntrained = errors.New("the neural network is untrained")

func NewConfig(hiddenSize, epochs int, rate, momentum float64) Conf {
	return Conf{HiddenN: hiddenSize, Epochs: epochs, Rate: rate, Momentum: momentum}
}

// DefaultConfig returns a single hidden neuron trained for one epoch with
// rate 0.1 and momentum 1.
func DefaultConfig() Conf {
	return NewConfig(1, 1, 0.1, 1)
}

// CreateNewANN returns an untrained network. Nil functions default to Tanh
// and TanhDerivative.
func CreateNewANN(conf Conf, activator, derivative func(_, _ int, v float64) float64) *ANN {
	if activator == nil {
		activator = Tanh
	}
	if derivative == nil {
		derivative = TanhDerivative
	}
	return &ANN{Config: conf, Activation: activator, Derivative: derivative}
}

// CreateAccurateANN trains runs networks on ds and returns the one with the
// lowest final error. Seeded configs get a distinct non-zero seed per run.
// Epochs are logged to logger (the standard logger when nil); the summary of
// each run always goes to the standard logger.
func CreateAccurateANN(conf Conf, ds *dataset.Dataset, runs int, logger *log.Logger) (*ANN, error) {
	if runs < 1 {
		return nil, errors.Errorf("run count must be positive, got %d", runs)
	}
	var best *ANN
	for i := 0; i < runs; i++ {
		c := conf
		c.Seed = runSeed(conf.Seed, i)
		nn := CreateNewANN(c, nil, nil)
		nn.Logger = logger
		if err := nn.Train(ds); err != nil {
			return nil, err
		}
		log.Printf("run %d/%d %s: error percentage %f", i+1, runs, nn.RunID, nn.FinalError())
		if best == nil || nn.FinalError() < best.FinalError() {
			best = nn
		}
	}
	return best, nil
}

// runSeed offsets a non-zero base seed by run, stepping over zero so that a
// seeded run never falls back to the clock.
func runSeed(base int64, run int) int64 {
	if base == 0 {
		return 0
	}
	s := base + int64(run)
	if base < 0 && s >= 0 {
		s++
	}
	return s
}

// NewSession starts a training run on x and y using the network's
// configuration, activation and logger.
func (nn *ANN) NewSession(x, y *mat.Dense) (*Session, error) {
	s, err := NewSession(nn.Config, x, y, NewSource(nn.Config.Seed))
	if err != nil {
		return nil, err
	}
	if nn.Activation != nil {
		s.activation = nn.Activation
	}
	if nn.Derivative != nil {
		s.derivative = nn.Derivative
	}
	s.logger = nn.logger()
	return s, nil
}

// Train runs a full session on ds and keeps its weights and error history.
func (nn *ANN) Train(ds *dataset.Dataset) error {
	x, y, err := ds.Matrices()
	if err != nil {
		return err
	}
	s, err := nn.NewSession(x, y)
	if err != nil {
		return err
	}
	nn.logger().Printf("run %s: %d samples, %d inputs, %d hidden, %d outputs, %s", s.ID, ds.Len(), s.Config.InputN, s.Config.HiddenN, s.Config.OutputN, s.Config.Rule)
	s.Run()

	nn.Config = s.Config
	nn.WHidden = s.WHidden
	nn.WOut = s.WOut
	nn.History = s.History
	nn.Output = s.Output
	nn.RunID = s.ID
	return nil
}

// Predict runs a forward pass over x with the trained weights.
func (nn *ANN) Predict(x mat.Matrix) (*mat.Dense, error) {
	if nn.WHidden == nil || nn.WOut == nil {
		return nil, ErrUntrained
	}
	if _, c := x.Dims(); c != nn.Config.InputN {
		return nil, errors.Wrapf(ErrDimensions, "%d inputs, network takes %d", c, nn.Config.InputN)
	}
	activation := nn.Activation
	if activation == nil {
		activation = Tanh
	}
	hidden, output := &mat.Dense{}, &mat.Dense{}
	hidden.Mul(x, nn.WHidden)
	hidden.Apply(activation, hidden)
	output.Mul(hidden, nn.WOut)
	output.Apply(activation, output)
	return output, nil
}

// Test sets Config.Accuracy to the fraction of samples in ds whose outputs
// all have the sign of their targets.
func (nn *ANN) Test(ds *dataset.Dataset) error {
	x, y, err := ds.Matrices()
	if err != nil {
		return err
	}
	predictions, err := nn.Predict(x)
	if err != nil {
		return err
	}
	if _, c := y.Dims(); c != nn.Config.OutputN {
		return errors.Wrapf(ErrDimensions, "%d targets, network outputs %d", c, nn.Config.OutputN)
	}

	hits := &mat.Dense{}
	hits.Apply(func(i, j int, v float64) float64 {
		if (v > 0) == (y.At(i, j) > 0) {
			return 1
		}
		return 0
	}, predictions)
	perSample, err := SumAlongAxis(1, hits)
	if err != nil {
		return err
	}

	var truePred int
	numPred, width := predictions.Dims()
	for i := 0; i < numPred; i++ {
		if int(perSample.At(i, 0)) == width {
			truePred++
		}
	}
	nn.Config.Accuracy = float64(truePred) / float64(numPred)
	return nil
}
