package matrix

import (
	"fmt"

	"github.com/edp1096/sparse"
)

type CircuitMatrix struct {
	size     int
	matrix   *sparse.Matrix
	rhs      []float64
	solution []float64
	config   *sparse.Configuration
}

func NewMatrix(size int) (*CircuitMatrix, error) {
	config := &sparse.Configuration{
		Real:           true,
		Complex:        false,
		Expandable:     true,
		Translate:      false,
		ModifiedNodal:  true,
		TiesMultiplier: 5,
		PrinterWidth:   140,
		Annotate:       0,
	}

	m := &CircuitMatrix{
		size:     size,
		rhs:      make([]float64, size+1), // 1-based indexing
		solution: make([]float64, size+1),
		config:   config,
	}
	if size == 0 {
		return m, nil
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("creating sparse matrix: %w", err)
	}
	m.matrix = mat

	return m, nil
}

func (m *CircuitMatrix) Size() int { return m.size }

func (m *CircuitMatrix) AddElement(i, j int, value float64) {
	if i <= 0 || j <= 0 || i > m.size || j > m.size {
		panic(fmt.Sprintf("matrix index out of bounds (i=%d, j=%d, size=%d)", i, j, m.size))
	}
	m.matrix.GetElement(int64(i), int64(j)).Real += value
}

func (m *CircuitMatrix) AddRHS(i int, value float64) {
	if i <= 0 || i > m.size {
		panic(fmt.Sprintf("rhs index out of bounds (i=%d, size=%d)", i, m.size))
	}
	m.rhs[i] += value
}

func (m *CircuitMatrix) Clear() {
	if m.matrix != nil {
		m.matrix.Clear()
	}
	for i := range m.rhs {
		m.rhs[i] = 0
	}
}

func (m *CircuitMatrix) Solve() error {
	if m.size == 0 {
		return nil
	}

	if err := m.matrix.Factor(); err != nil {
		return fmt.Errorf("%w: factorization failed: %w", ErrSingular, err)
	}

	solution, err := m.SolveRHS(m.rhs)
	if err != nil {
		return err
	}
	m.solution = solution

	return nil
}

// SolveRHS reuses the factors of the last Solve for another right-hand side.
func (m *CircuitMatrix) SolveRHS(rhs []float64) ([]float64, error) {
	if m.size == 0 {
		return make([]float64, 1), nil
	}

	solution, err := m.matrix.Solve(rhs)
	if err != nil {
		return nil, fmt.Errorf("%w: solve failed: %w", ErrSingular, err)
	}
	if len(solution) < m.size+1 {
		return nil, fmt.Errorf("%w: solution has %d entries, want %d", ErrSingular, len(solution), m.size+1)
	}

	return solution, nil
}

func (m *CircuitMatrix) RHS() []float64 {
	return m.rhs
}

func (m *CircuitMatrix) Solution() []float64 {
	return m.solution
}

func (m *CircuitMatrix) Destroy() {
	if m.matrix != nil {
		m.matrix.Destroy()
		m.matrix = nil
	}
}
