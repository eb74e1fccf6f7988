// Package mna assembles the modified nodal analysis equations of one solve.
// Rows 1..numNodes-1 are the KCL equations of the non-reference nodes,
// followed by one constraint row per voltage-defining branch.
package mna

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/edp1096/cck-mna/pkg/matrix"
	"github.com/edp1096/cck-mna/pkg/pool"
)

// ErrNonFinite reports a NaN or infinite stamp value.
var ErrNonFinite = errors.New("non-finite stamp value")

type Term struct {
	Coefficient float64
	Unknown     Unknown
}

type Equation struct {
	Row   int
	Terms []pool.Handle
	RHS   float64
}

// Arena holds the term and equation pools shared by consecutive solves.
type Arena struct {
	Terms     *pool.Pool[Term]
	Equations *pool.Pool[Equation]
}

func NewArena() *Arena {
	return &Arena{
		Terms:     pool.New[Term](256),
		Equations: pool.New[Equation](64),
	}
}

type System struct {
	arena       *Arena
	owner       pool.Owner
	numNodes    int
	numBranches int
	rows        []pool.Handle // rows[row-1], -1 until the row gets a term
}

// New builds a system on a private arena.
func New(numNodes, numBranches int) *System {
	return NewArena().NewSystem(numNodes, numBranches)
}

// NewSystem checks out a system whose terms and equations are owned by a
// fresh owner tag. numNodes counts the reference node.
func (a *Arena) NewSystem(numNodes, numBranches int) *System {
	if numNodes < 1 {
		numNodes = 1
	}
	s := &System{
		arena:       a,
		owner:       pool.NextOwner(),
		numNodes:    numNodes,
		numBranches: numBranches,
	}
	s.rows = make([]pool.Handle, s.Unknowns())
	for i := range s.rows {
		s.rows[i] = -1
	}
	return s
}

// Unknowns is the matrix size; it always equals the number of equations.
func (s *System) Unknowns() int {
	return s.numNodes - 1 + s.numBranches
}

func (s *System) NumNodes() int { return s.numNodes }
func (s *System) NumBranches() int { return s.numBranches }
func (s *System) Owner() pool.Owner { return s.owner }

func (s *System) BranchRow(branch int) int {
	return s.numNodes + branch
}

func (s *System) equation(row int) *Equation {
	h := s.rows[row-1]
	if h >= 0 {
		return s.arena.Equations.Get(h)
	}
	h, eq := s.arena.Equations.Acquire(s.owner, func(e *Equation) {
		e.Row = row
		e.Terms = e.Terms[:0]
		e.RHS = 0
	})
	s.rows[row-1] = h
	return eq
}

func (s *System) addTerm(row int, u Unknown, coef float64) {
	eq := s.equation(row)
	h, _ := s.arena.Terms.Acquire(s.owner, func(t *Term) {
		t.Coefficient = coef
		t.Unknown = u
	})
	eq.Terms = append(eq.Terms, h)
}

func (s *System) addRHS(row int, v float64) {
	s.equation(row).RHS += v
}

func finite(vals ...float64) error {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %g", ErrNonFinite, v)
		}
	}
	return nil
}

func (s *System) checkNodes(nodes ...int) error {
	for _, n := range nodes {
		if n < 0 || n >= s.numNodes {
			return fmt.Errorf("node %d out of range [0, %d)", n, s.numNodes)
		}
	}
	return nil
}

// StampConductance places g between n0 and n1. Node 0 is the reference
// and contributes neither a row nor a column.
func (s *System) StampConductance(n0, n1 int, g float64) error {
	if err := finite(g); err != nil {
		return err
	}
	if err := s.checkNodes(n0, n1); err != nil {
		return err
	}
	if g == 0 || n0 == n1 {
		return nil
	}

	if n0 != 0 {
		s.addTerm(n0, NodeVoltage(n0), g)
		if n1 != 0 {
			s.addTerm(n0, NodeVoltage(n1), -g)
		}
	}
	if n1 != 0 {
		s.addTerm(n1, NodeVoltage(n1), g)
		if n0 != 0 {
			s.addTerm(n1, NodeVoltage(n0), -g)
		}
	}
	return nil
}

// StampCurrent places an independent current i flowing from n0 to n1
// through the element, which draws i out of n0 and pushes it into n1.
func (s *System) StampCurrent(n0, n1 int, i float64) error {
	if err := finite(i); err != nil {
		return err
	}
	if err := s.checkNodes(n0, n1); err != nil {
		return err
	}
	if i == 0 || n0 == n1 {
		return nil
	}

	if n0 != 0 {
		s.addRHS(n0, -i)
	}
	if n1 != 0 {
		s.addRHS(n1, i)
	}
	return nil
}

// StampVoltageSource adds the constraint V(n0) - V(n1) = v on its branch
// row and couples the branch current, taken as flowing from n0 to n1
// through the source, into both KCL rows.
func (s *System) StampVoltageSource(n0, n1, branch int, v float64) error {
	if err := finite(v); err != nil {
		return err
	}
	if err := s.checkNodes(n0, n1); err != nil {
		return err
	}
	if branch < 0 || branch >= s.numBranches {
		return fmt.Errorf("branch %d out of range [0, %d)", branch, s.numBranches)
	}

	row := s.BranchRow(branch)
	if n0 != 0 {
		s.addTerm(n0, BranchCurrent(branch), 1)
		s.addTerm(row, NodeVoltage(n0), 1)
	}
	if n1 != 0 {
		s.addTerm(n1, BranchCurrent(branch), -1)
		s.addTerm(row, NodeVoltage(n1), -1)
	}
	// A source shorted onto itself still owns its row; keep it present
	// so the singularity shows up in the factorization.
	s.equation(row)
	s.addRHS(row, v)
	return nil
}

// Load pushes every equation into m.
func (s *System) Load(m matrix.DeviceMatrix) {
	for _, h := range s.rows {
		if h < 0 {
			continue
		}
		eq := s.arena.Equations.Get(h)
		for _, th := range eq.Terms {
			t := s.arena.Terms.Get(th)
			m.AddElement(eq.Row, t.Unknown.Column(s.numNodes), t.Coefficient)
		}
		if eq.RHS != 0 {
			m.AddRHS(eq.Row, eq.RHS)
		}
	}
}

// RHS returns the assembled right-hand side, 1-based.
func (s *System) RHS() []float64 {
	z := make([]float64, s.Unknowns()+1)
	for _, h := range s.rows {
		if h < 0 {
			continue
		}
		eq := s.arena.Equations.Get(h)
		z[eq.Row] = eq.RHS
	}
	return z
}

// ResidualVector returns z - A*x, 1-based.
func (s *System) ResidualVector(x []float64) []float64 {
	r := s.RHS()
	for _, h := range s.rows {
		if h < 0 {
			continue
		}
		eq := s.arena.Equations.Get(h)
		for _, th := range eq.Terms {
			t := s.arena.Terms.Get(th)
			r[eq.Row] -= t.Coefficient * x[t.Unknown.Column(s.numNodes)]
		}
	}
	return r
}

// Residual is the max norm of z - A*x.
func (s *System) Residual(x []float64) float64 {
	r := s.ResidualVector(x)
	if len(r) <= 1 {
		return 0
	}
	return floats.Norm(r[1:], math.Inf(1))
}

// RHSNorm is the max norm of z.
func (s *System) RHSNorm() float64 {
	z := s.RHS()
	if len(z) <= 1 {
		return 0
	}
	return floats.Norm(z[1:], math.Inf(1))
}

// MatrixNorm is the max absolute row sum of A.
func (s *System) MatrixNorm() float64 {
	norm := 0.0
	for _, h := range s.rows {
		if h < 0 {
			continue
		}
		sum := 0.0
		for _, th := range s.arena.Equations.Get(h).Terms {
			sum += math.Abs(s.arena.Terms.Get(th).Coefficient)
		}
		norm = math.Max(norm, sum)
	}
	return norm
}

// EmptyRows lists rows without any term; such a system cannot be solved.
func (s *System) EmptyRows() []int {
	var rows []int
	for i, h := range s.rows {
		if h < 0 || len(s.arena.Equations.Get(h).Terms) == 0 {
			rows = append(rows, i+1)
		}
	}
	return rows
}

// Release gives every term and equation back to the arena.
func (s *System) Release() int {
	n := s.arena.Terms.ReleaseAll(s.owner)
	n += s.arena.Equations.ReleaseAll(s.owner)
	for i := range s.rows {
		s.rows[i] = -1
	}
	return n
}

func (s *System) PrintSystem(w io.Writer) {
	fmt.Fprintf(w, "\nCircuit Equations (%dx%d):\n", s.Unknowns(), s.Unknowns())
	fmt.Fprintln(w, "Node equations 1..n, followed by branch equations")

	for _, h := range s.rows {
		if h < 0 {
			continue
		}
		eq := s.arena.Equations.Get(h)
		fmt.Fprintf(w, "Equation %d:", eq.Row)
		for _, th := range eq.Terms {
			t := s.arena.Terms.Get(th)
			fmt.Fprintf(w, "  %+g*%s", t.Coefficient, t.Unknown)
		}
		fmt.Fprintf(w, " = %g\n", eq.RHS)
	}
}
