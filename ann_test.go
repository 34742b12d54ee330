package ann

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/syhv-git/gonn-plates/dataset"
	"github.com/syhv-git/gonn-plates/label"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

var quiet = log.New(io.Discard, "", 0)

func toyDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	a, err := label.Encode("A")
	if err != nil {
		t.Fatal(err.Error())
	}
	b, err := label.Encode("B")
	if err != nil {
		t.Fatal(err.Error())
	}
	return &dataset.Dataset{
		Names:   []string{"A.png", "B.png"},
		Inputs:  [][]float64{{1, 0}, {0, 1}},
		Targets: [][]float64{a, b},
	}
}

func writePNG(t *testing.T, dir, name string, y uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = y
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err.Error())
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err.Error())
	}
}

func TestInitWeights(t *testing.T) {
	src := NewSource(42)
	for _, dims := range [][2]int{{1, 1}, {16, 4}, {3, 150}, {784, 8}} {
		w := InitWeights(dims[0], dims[1], src)
		r, c := w.Dims()
		if r != dims[0] || c != dims[1] {
			t.Fatalf("got %dx%d, want %dx%d", r, c, dims[0], dims[1])
		}
		for _, v := range w.RawMatrix().Data {
			if v < -1 || v >= 1 {
				t.Fatalf("weight %v outside [-1, 1)", v)
			}
		}
	}

	a, b := InitWeights(5, 5, NewSource(7)), InitWeights(5, 5, NewSource(7))
	if !mat.Equal(a, b) {
		t.Error("same seed gave different weights")
	}
	if c := InitWeights(5, 5, NewSource(8)); mat.Equal(a, c) {
		t.Error("different seeds gave the same weights")
	}
}

func TestConvergence(t *testing.T) {
	for _, rule := range []UpdateRule{MomentumBlend, PlainGradient} {
		conf := NewConfig(4, 200, 0.1, 1)
		conf.Rule = rule
		conf.Seed = 1
		nn := CreateNewANN(conf, nil, nil)
		nn.Logger = quiet
		if err := nn.Train(toyDataset(t)); err != nil {
			t.Fatal(err.Error())
		}
		if len(nn.History) != 200 {
			t.Fatalf("%s: history has %d entries", rule, len(nn.History))
		}
		first, last := floats.Sum(nn.History[:20]), floats.Sum(nn.History[180:])
		if last >= first {
			t.Errorf("%s: error did not decrease, first window %f last window %f", rule, first/20, last/20)
		}
	}
}

func TestEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "5.png", 255)
	writePNG(t, dir, "7.png", 0)

	ds, err := dataset.Build(dataset.Options{Dir: dir, Logger: quiet})
	if err != nil {
		t.Fatal(err.Error())
	}
	conf := NewConfig(4, 50, 0.2, 1)
	conf.Seed = 2024
	nn := CreateNewANN(conf, nil, nil)
	nn.Logger = quiet
	if err := nn.Train(ds); err != nil {
		t.Fatal(err.Error())
	}
	if len(nn.History) != 50 {
		t.Fatalf("history has %d entries, want 50", len(nn.History))
	}
	final := nn.FinalError()
	if math.IsNaN(final) || math.IsInf(final, 0) || final < 0 || final > 100 {
		t.Errorf("final error %v is not in [0, 100]", final)
	}
	if nn.Config.InputN != 16 || nn.Config.OutputN != 8 {
		t.Errorf("network is %dx%d", nn.Config.InputN, nn.Config.OutputN)
	}
	if nn.Output == nil {
		t.Fatal("last epoch output was not kept")
	}
	if r, c := nn.Output.Dims(); r != 2 || c != 8 {
		t.Errorf("last epoch output is %dx%d, want 2x8", r, c)
	}
	if got := MeanAbsPercent(diff(t, ds, nn.Output)); !scalar.EqualWithinAbs(got, final, 1e-9) {
		t.Errorf("last epoch output gives error %v, history says %v", got, final)
	}
}

func diff(t *testing.T, ds *dataset.Dataset, out *mat.Dense) *mat.Dense {
	t.Helper()
	_, y, err := ds.Matrices()
	if err != nil {
		t.Fatal(err.Error())
	}
	d := &mat.Dense{}
	d.Sub(y, out)
	return d
}

func TestStepMatchesUpdateRules(t *testing.T) {
	x := mat.NewDense(1, 1, []float64{1})
	y := mat.NewDense(1, 1, []float64{1})
	d := func(v float64) float64 {
		th := math.Tanh(v)
		return 1 - th*th
	}

	for _, tc := range []struct {
		rule     UpdateRule
		momentum float64
	}{
		{MomentumBlend, 1},
		{MomentumBlend, 0.5},
		{PlainGradient, 0.5},
	} {
		conf := NewConfig(1, 1, 0.1, tc.momentum)
		conf.Rule = tc.rule
		s, err := NewSession(conf, x, y, NewSource(1))
		if err != nil {
			t.Fatal(err.Error())
		}
		s.logger = quiet
		s.WHidden.Set(0, 0, 0.5)
		s.WOut.Set(0, 0, 0.5)

		h := math.Tanh(0.5)
		o := math.Tanh(h * 0.5)
		e := 1 - o
		deltaOut := e * d(o)
		if tc.rule == PlainGradient {
			deltaOut *= 2
		}
		deltaHidden := deltaOut * 0.5 * d(h)
		wantOut, wantHidden := 0.5+h*deltaOut, 0.5+deltaHidden
		if tc.rule == MomentumBlend {
			wantOut = tc.momentum*0.5 + 0.1*h*deltaOut
			wantHidden = tc.momentum*0.5 + 0.1*deltaHidden
		}

		pct := s.Step()
		if !scalar.EqualWithinAbs(pct, math.Abs(e)*100, 1e-12) {
			t.Errorf("%s: error %v, want %v", tc.rule, pct, math.Abs(e)*100)
		}
		if got := s.WOut.At(0, 0); !scalar.EqualWithinAbs(got, wantOut, 1e-12) {
			t.Errorf("%s/%v: output weight %v, want %v", tc.rule, tc.momentum, got, wantOut)
		}
		if got := s.WHidden.At(0, 0); !scalar.EqualWithinAbs(got, wantHidden, 1e-12) {
			t.Errorf("%s/%v: hidden weight %v, want %v", tc.rule, tc.momentum, got, wantHidden)
		}
		if s.Epoch != 1 || len(s.History) != 1 {
			t.Errorf("%s: epoch %d history %v", tc.rule, s.Epoch, s.History)
		}
	}
}

func TestNewSessionErrors(t *testing.T) {
	x := mat.NewDense(2, 3, nil)
	y := mat.NewDense(2, 8, nil)

	conf := NewConfig(2, 1, 0.1, 1)
	conf.InputN = 4
	if _, err := NewSession(conf, x, y, NewSource(1)); errors.Cause(err) != ErrDimensions {
		t.Errorf("expected ErrDimensions for input width, got %v", err)
	}
	if _, err := NewSession(NewConfig(2, 1, 0.1, 1), x, mat.NewDense(3, 8, nil), NewSource(1)); errors.Cause(err) != ErrDimensions {
		t.Errorf("expected ErrDimensions for row count, got %v", err)
	}
	if _, err := NewSession(NewConfig(0, 1, 0.1, 1), x, y, NewSource(1)); err == nil {
		t.Error("expected error for zero hidden neurons")
	}
	if _, err := NewSession(NewConfig(2, 0, 0.1, 1), x, y, NewSource(1)); err == nil {
		t.Error("expected error for zero epochs")
	}
}

func TestTrainRaggedDataset(t *testing.T) {
	ds := toyDataset(t)
	ds.Inputs[1] = []float64{1}
	nn := CreateNewANN(DefaultConfig(), nil, nil)
	nn.Logger = quiet
	if err := nn.Train(ds); errors.Cause(err) != dataset.ErrShapeMismatch {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestPredictAndTest(t *testing.T) {
	nn := CreateNewANN(NewConfig(2, 1, 0.1, 1), nil, nil)
	if _, err := nn.Predict(mat.NewDense(1, 2, nil)); err != ErrUntrained {
		t.Fatalf("expected ErrUntrained, got %v", err)
	}
	if nn.FinalError() != -1 {
		t.Errorf("untrained final error %v", nn.FinalError())
	}

	nn.Config.InputN, nn.Config.OutputN = 2, 2
	nn.WHidden = mat.NewDense(2, 2, []float64{5, 0, 0, 5})
	nn.WOut = mat.NewDense(2, 2, []float64{5, 0, 0, 5})
	ds := &dataset.Dataset{
		Names:   []string{"a", "b"},
		Inputs:  [][]float64{{1, -1}, {-1, 1}},
		Targets: [][]float64{{1, -1}, {1, 1}},
	}
	if err := nn.Test(ds); err != nil {
		t.Fatal(err.Error())
	}
	if nn.Config.Accuracy != 0.5 {
		t.Errorf("accuracy %v, want 0.5", nn.Config.Accuracy)
	}
}

func TestCreateAccurateANN(t *testing.T) {
	conf := NewConfig(4, 30, 0.1, 1)
	conf.Seed = 3
	best, err := CreateAccurateANN(conf, toyDataset(t), 3, quiet)
	if err != nil {
		t.Fatal(err.Error())
	}
	if len(best.History) != 30 || best.WOut == nil {
		t.Fatalf("best run is untrained")
	}
	for i := 0; i < 3; i++ {
		c := conf
		c.Seed = runSeed(conf.Seed, i)
		nn := CreateNewANN(c, nil, nil)
		nn.Logger = quiet
		if err := nn.Train(toyDataset(t)); err != nil {
			t.Fatal(err.Error())
		}
		if nn.FinalError() < best.FinalError() {
			t.Errorf("run %d beat the selected run: %v < %v", i, nn.FinalError(), best.FinalError())
		}
	}
	if _, err := CreateAccurateANN(conf, toyDataset(t), 0, quiet); err == nil {
		t.Error("expected error for zero runs")
	}
}

func TestSumAlongAxis(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	cols, err := SumAlongAxis(0, m)
	if err != nil {
		t.Fatal(err.Error())
	}
	if !mat.Equal(cols, mat.NewDense(1, 3, []float64{5, 7, 9})) {
		t.Errorf("column sums %v", mat.Formatted(cols))
	}
	rows, err := SumAlongAxis(1, m)
	if err != nil {
		t.Fatal(err.Error())
	}
	if !mat.Equal(rows, mat.NewDense(2, 1, []float64{6, 15})) {
		t.Errorf("row sums %v", mat.Formatted(rows))
	}
	if _, err := SumAlongAxis(2, m); err == nil {
		t.Error("expected error for axis 2")
	}
	if got := MeanAbsPercent(mat.NewDense(1, 4, []float64{-1, 1, 0.5, -0.5})); got != 75 {
		t.Errorf("mean abs percent %v, want 75", got)
	}
}

func TestParseUpdateRule(t *testing.T) {
	for _, r := range []UpdateRule{MomentumBlend, PlainGradient} {
		got, err := ParseUpdateRule(r.String())
		if err != nil || got != r {
			t.Errorf("round trip of %s gave %v, %v", r, got, err)
		}
	}
	if _, err := ParseUpdateRule("adam"); err == nil {
		t.Error("expected error for unknown rule")
	}
}

func TestRunSeed(t *testing.T) {
	if got := runSeed(0, 3); got != 0 {
		t.Errorf("unseeded run got seed %d", got)
	}
	for _, base := range []int64{-3, -1, 1, 7} {
		seen := map[int64]bool{}
		for i := 0; i < 6; i++ {
			s := runSeed(base, i)
			if s == 0 {
				t.Errorf("base %d run %d fell back to the clock", base, i)
			}
			if seen[s] {
				t.Errorf("base %d run %d reused seed %d", base, i, s)
			}
			seen[s] = true
		}
	}
}

func TestCreateAccurateANNLogging(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	var epochs bytes.Buffer
	conf := NewConfig(2, 5, 0.1, 1)
	conf.Seed = -1
	if _, err := CreateAccurateANN(conf, toyDataset(t), 2, log.New(&epochs, "", 0)); err != nil {
		t.Fatal(err.Error())
	}
	if !strings.Contains(buf.String(), "run 1/2") || !strings.Contains(buf.String(), "run 2/2") {
		t.Errorf("run summaries missing from standard log: %q", buf.String())
	}
	if strings.Contains(buf.String(), "epoch ") {
		t.Errorf("epoch lines leaked into standard log: %q", buf.String())
	}
	if strings.Count(epochs.String(), "epoch ") != 10 {
		t.Errorf("expected 10 epoch lines, got %q", epochs.String())
	}
}
