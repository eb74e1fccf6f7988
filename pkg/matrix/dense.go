package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DenseMatrix solves with LU factorization and partial pivoting.
type DenseMatrix struct {
	size     int
	a        *mat.Dense
	rhs      []float64
	solution []float64
	lu       mat.LU
}

func NewDenseMatrix(size int) *DenseMatrix {
	m := &DenseMatrix{
		size:     size,
		rhs:      make([]float64, size+1),
		solution: make([]float64, size+1),
	}
	if size > 0 {
		m.a = mat.NewDense(size, size, nil)
	}
	return m
}

func (m *DenseMatrix) Size() int { return m.size }

func (m *DenseMatrix) AddElement(i, j int, value float64) {
	if i <= 0 || j <= 0 || i > m.size || j > m.size {
		panic(fmt.Sprintf("matrix index out of bounds (i=%d, j=%d, size=%d)", i, j, m.size))
	}
	m.a.Set(i-1, j-1, m.a.At(i-1, j-1)+value)
}

func (m *DenseMatrix) AddRHS(i int, value float64) {
	if i <= 0 || i > m.size {
		panic(fmt.Sprintf("rhs index out of bounds (i=%d, size=%d)", i, m.size))
	}
	m.rhs[i] += value
}

func (m *DenseMatrix) Clear() {
	if m.a != nil {
		m.a.Zero()
	}
	for i := range m.rhs {
		m.rhs[i] = 0
	}
}

func (m *DenseMatrix) Solve() error {
	if m.size == 0 {
		return nil
	}

	m.lu.Factorize(m.a)
	solution, err := m.SolveRHS(m.rhs)
	if err != nil {
		return err
	}
	m.solution = solution

	return nil
}

func (m *DenseMatrix) SolveRHS(rhs []float64) ([]float64, error) {
	if m.size == 0 {
		return make([]float64, 1), nil
	}

	b := mat.NewVecDense(m.size, append([]float64(nil), rhs[1:m.size+1]...))
	var x mat.VecDense
	if err := m.lu.SolveVecTo(&x, false, b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSingular, err)
	}

	solution := make([]float64, m.size+1)
	for i := 0; i < m.size; i++ {
		solution[i+1] = x.AtVec(i)
	}
	return solution, nil
}

func (m *DenseMatrix) Solution() []float64 {
	return m.solution
}

// Cond is the condition number estimate of the last factorization.
func (m *DenseMatrix) Cond() float64 {
	if m.size == 0 {
		return 1
	}
	return m.lu.Cond()
}

func (m *DenseMatrix) Destroy() {}
