package ann

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var ErrDimensions = errors.New("dataset does not match network dimensions")

// InitWeights returns a rows×cols matrix of values drawn uniformly from
// [-1, 1).
func InitWeights(rows, cols int, src rand.Source) *mat.Dense {
	dist := distuv.Uniform{Min: -1, Max: 1, Src: src}
	w := mat.NewDense(rows, cols, nil)
	data := w.RawMatrix().Data
	for i := range data {
		data[i] = dist.Rand()
	}
	return w
}

// NewSource returns the random source for a run. A zero seed uses the clock.
func NewSource(seed int64) rand.Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.NewSource(uint64(seed))
}

// Session is a single training run. It owns its weights and error history;
// nothing else mutates them while it runs.
type Session struct {
	ID      uuid.UUID
	Config  Conf
	X       *mat.Dense
	Y       *mat.Dense
	WHidden *mat.Dense
	WOut    *mat.Dense
	// Output is the forward pass of the last epoch, before its update.
	Output  *mat.Dense
	Epoch   int
	History []float64

	activation func(_, _ int, v float64) float64
	derivative func(_, _ int, v float64) float64
	logger     *log.Logger
}

// NewSession checks x (N×D) and y (N×K) against conf and initializes both
// weight matrices from src.
func NewSession(conf Conf, x, y *mat.Dense, src rand.Source) (*Session, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	xr, xc := x.Dims()
	yr, yc := y.Dims()
	if xr != yr {
		return nil, errors.Wrapf(ErrDimensions, "%d input rows but %d target rows", xr, yr)
	}
	if conf.InputN == 0 {
		conf.InputN = xc
	}
	if conf.OutputN == 0 {
		conf.OutputN = yc
	}
	if conf.InputN != xc || conf.OutputN != yc {
		return nil, errors.Wrapf(ErrDimensions, "network is %dx%d, dataset is %dx%d", conf.InputN, conf.OutputN, xc, yc)
	}

	return &Session{
		ID:         uuid.New(),
		Config:     conf,
		X:          x,
		Y:          y,
		WHidden:    InitWeights(conf.InputN, conf.HiddenN, src),
		WOut:       InitWeights(conf.HiddenN, conf.OutputN, src),
		History:    make([]float64, 0, conf.Epochs),
		activation: Tanh,
		derivative: TanhDerivative,
		logger:     log.Default(),
	}, nil
}

// Step runs one epoch over the whole training set and returns its error
// percentage.
func (s *Session) Step() float64 {
	hidden, output := &mat.Dense{}, &mat.Dense{}
	hidden.Mul(s.X, s.WHidden)
	hidden.Apply(s.activation, hidden)
	output.Mul(hidden, s.WOut)
	output.Apply(s.activation, output)
	s.Output = output

	matErr := &mat.Dense{}
	matErr.Sub(s.Y, output)
	pct := MeanAbsPercent(matErr)
	s.History = append(s.History, pct)
	s.Epoch++
	s.logger.Printf("epoch %d error %f", s.Epoch, pct)

	deltaOut := &mat.Dense{}
	deltaOut.Apply(s.derivative, output)
	deltaOut.MulElem(matErr, deltaOut)
	if s.Config.Rule == PlainGradient {
		deltaOut.Scale(2, deltaOut)
	}

	deltaHidden, dHidden := &mat.Dense{}, &mat.Dense{}
	deltaHidden.Mul(deltaOut, s.WOut.T())
	dHidden.Apply(s.derivative, hidden)
	deltaHidden.MulElem(deltaHidden, dHidden)

	gradOut, gradHidden := &mat.Dense{}, &mat.Dense{}
	gradOut.Mul(hidden.T(), deltaOut)
	gradHidden.Mul(s.X.T(), deltaHidden)
	s.update(s.WOut, gradOut)
	s.update(s.WHidden, gradHidden)
	return pct
}

func (s *Session) update(w, grad *mat.Dense) {
	if s.Config.Rule == PlainGradient {
		w.Add(w, grad)
		return
	}
	w.Scale(s.Config.Momentum, w)
	grad.Scale(s.Config.Rate, grad)
	w.Add(w, grad)
}

// Run steps through the configured number of epochs and returns the final
// error percentage.
func (s *Session) Run() float64 {
	var pct float64
	for s.Epoch < s.Config.Epochs {
		pct = s.Step()
	}
	return pct
}
