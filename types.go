package ann

import (
	"log"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// UpdateRule selects how gradients are folded into the weights.
type UpdateRule int

const (
	// MomentumBlend sets W = momentum*W + rate*gradient.
	MomentumBlend UpdateRule = iota
	// PlainGradient sets W = W + gradient, with the output delta doubled.
	// Rate and momentum are not used.
	PlainGradient
)

func (r UpdateRule) String() string {
	switch r {
	case MomentumBlend:
		return "momentum-blend"
	case PlainGradient:
		return "plain-gradient"
	}
	return "unknown"
}

// ParseUpdateRule is the inverse of UpdateRule.String.
func ParseUpdateRule(s string) (UpdateRule, error) {
	switch s {
	case "momentum-blend":
		return MomentumBlend, nil
	case "plain-gradient":
		return PlainGradient, nil
	}
	return 0, errors.Errorf("unknown update rule %q", s)
}

type Conf struct {
	Accuracy float64
	InputN   int
	HiddenN  int
	OutputN  int
	Epochs   int
	Rate     float64
	Momentum float64
	Rule     UpdateRule
	// Seed makes weight initialization reproducible. Zero seeds from the clock.
	Seed     int64
}

// Validate reports configuration values training cannot start with.
func (c Conf) Validate() error {
	if c.HiddenN < 1 {
		return errors.Errorf("hidden neuron count must be positive, got %d", c.HiddenN)
	}
	if c.Epochs < 1 {
		return errors.Errorf("epoch count must be positive, got %d", c.Epochs)
	}
	if c.InputN < 0 || c.OutputN < 0 {
		return errors.Errorf("negative layer size %d/%d", c.InputN, c.OutputN)
	}
	return nil
}

// ANN is a two-layer network mapping flattened character images to their
// bipolar label codes. It holds the weights of its last training run in
// memory only.
type ANN struct {
	Config     Conf
	WHidden    *mat.Dense
	WOut       *mat.Dense
	History    []float64
	Output     *mat.Dense
	RunID      uuid.UUID
	Activation func(_, _ int, v float64) float64
	Derivative func(_, _ int, v float64) float64
	Logger     *log.Logger
}

func (nn *ANN) logger() *log.Logger {
	if nn.Logger == nil {
		return log.Default()
	}
	return nn.Logger
}

// FinalError returns the error percentage of the last epoch trained, or -1
// if the network was never trained.
func (nn *ANN) FinalError() float64 {
	if len(nn.History) == 0 {
		return -1
	}
	return nn.History[len(nn.History)-1]
}
