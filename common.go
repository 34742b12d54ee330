package ann

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tanh is the default activation.
func Tanh(_, _ int, v float64) float64 {
	return math.Tanh(v)
}

// TanhDerivative is applied to values that already went through Tanh, so it
// squashes them a second time: 1 - tanh(v)^2.
func TanhDerivative(_, _ int, v float64) float64 {
	t := math.Tanh(v)
	return 1 - t*t
}

// MeanAbsPercent returns the mean of |m| over all elements, times 100.
func MeanAbsPercent(m mat.Matrix) float64 {
	r, c := m.Dims()
	data := mat.DenseCopyOf(m).RawMatrix().Data
	return floats.Norm(data, 1) / float64(r*c) * 100
}

// SumAlongAxis sums the columns (axis 0, giving 1×c) or the rows (axis 1,
// giving r×1) of m.
func SumAlongAxis(axis int, m mat.Matrix) (*mat.Dense, error) {
	numRows, numCols := m.Dims()
	switch axis {
	case 0:
		sums := make([]float64, numCols)
		for j := range sums {
			sums[j] = floats.Sum(mat.Col(nil, j, m))
		}
		return mat.NewDense(1, numCols, sums), nil
	case 1:
		sums := make([]float64, numRows)
		for i := range sums {
			sums[i] = floats.Sum(mat.Row(nil, i, m))
		}
		return mat.NewDense(numRows, 1, sums), nil
	}
	return nil, errors.Errorf("invalid axis %d, must be 0 or 1", axis)
}
