package matrix

import (
	"errors"
	"fmt"
)

// ErrSingular reports a system without a unique solution.
var ErrSingular = errors.New("singular matrix")

type DeviceMatrix interface {
	AddElement(i, j int, value float64) // 1-based indexing
	AddRHS(i int, value float64)
}

// LinearSystem is a factorable DeviceMatrix. Solution and SolveRHS return
// 1-based vectors; index 0 is unused.
type LinearSystem interface {
	DeviceMatrix
	Size() int
	Clear()
	Solve() error
	SolveRHS(rhs []float64) ([]float64, error)
	Solution() []float64
	Destroy()
}

type Backend string

const (
	Sparse Backend = "sparse"
	Dense  Backend = "dense"
)

func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case Sparse, "":
		return Sparse, nil
	case Dense:
		return Dense, nil
	}
	return "", fmt.Errorf("unknown matrix backend %q", s)
}

func NewSystem(backend Backend, size int) (LinearSystem, error) {
	switch backend {
	case Sparse, "":
		return NewMatrix(size)
	case Dense:
		return NewDenseMatrix(size), nil
	}
	return nil, fmt.Errorf("unknown matrix backend %q", backend)
}
