package mht

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a small dense real matrix used by the motion models for state
// propagation and gating. It is a thin wrapper over gonum/mat.Dense sized
// for the 2x2 and 4x4 shapes the constant-velocity corner model needs; any
// caller that requires bigger dense algebra should reach for gonum/mat
// directly instead of growing this type.
type Matrix struct {
	dense *mat.Dense
}

// NewMatrix builds a matrix from row-major literals, e.g.
//
//	NewMatrix(2, 2, []float64{1, 0, 0, 1})
func NewMatrix(rows, cols int, data []float64) *Matrix {
	d := make([]float64, len(data))
	copy(d, data)
	return &Matrix{dense: mat.NewDense(rows, cols, d)}
}

// NewZeroMatrix returns a rows x cols matrix of zeros.
func NewZeroMatrix(rows, cols int) *Matrix {
	return &Matrix{dense: mat.NewDense(rows, cols, nil)}
}

// Identity returns the n x n identity matrix.
func Identity(n int) *Matrix {
	m := NewZeroMatrix(n, n)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Dims returns row and column count.
func (m *Matrix) Dims() (int, int) { return m.dense.Dims() }

// At returns the element at (row, col).
func (m *Matrix) At(row, col int) float64 { return m.dense.At(row, col) }

// Set assigns the element at (row, col).
func (m *Matrix) Set(row, col int, v float64) { m.dense.Set(row, col, v) }

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	var d mat.Dense
	d.CloneFrom(m.dense)
	return &Matrix{dense: &d}
}

// Add returns m + other.
func (m *Matrix) Add(other *Matrix) *Matrix {
	r, c := m.Dims()
	out := NewZeroMatrix(r, c)
	out.dense.Add(m.dense, other.dense)
	return out
}

// Sub returns m - other.
func (m *Matrix) Sub(other *Matrix) *Matrix {
	r, c := m.Dims()
	out := NewZeroMatrix(r, c)
	out.dense.Sub(m.dense, other.dense)
	return out
}

// Mul returns m * other.
func (m *Matrix) Mul(other *Matrix) *Matrix {
	r, _ := m.Dims()
	_, c := other.Dims()
	out := NewZeroMatrix(r, c)
	out.dense.Mul(m.dense, other.dense)
	return out
}

// Scale returns k * m.
func (m *Matrix) Scale(k float64) *Matrix {
	r, c := m.Dims()
	out := NewZeroMatrix(r, c)
	out.dense.Scale(k, m.dense)
	return out
}

// T returns the transpose of m.
func (m *Matrix) T() *Matrix {
	r, c := m.Dims()
	out := NewZeroMatrix(c, r)
	out.dense.CloneFrom(m.dense.T())
	return out
}

// Det returns the determinant. Only meaningful for square matrices.
func (m *Matrix) Det() float64 {
	return mat.Det(m.dense)
}

// Inverse returns the matrix inverse, or an error if m is singular.
func (m *Matrix) Inverse() (*Matrix, error) {
	r, c := m.Dims()
	if r != c {
		return nil, errors.Errorf("mht: cannot invert non-square matrix %dx%d", r, c)
	}
	out := NewZeroMatrix(r, c)
	if err := out.dense.Inverse(m.dense); err != nil {
		return nil, errors.Wrap(err, "mht: matrix inverse")
	}
	return out, nil
}

// Raw exposes the underlying gonum matrix for interop with gonum/stat and
// other consumers that need direct mat.Matrix access.
func (m *Matrix) Raw() *mat.Dense { return m.dense }
