package analysis

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/edp1096/cck-mna/internal/consts"
	"github.com/edp1096/cck-mna/pkg/circuit"
	"github.com/edp1096/cck-mna/pkg/device"
	"github.com/edp1096/cck-mna/pkg/matrix"
	"github.com/edp1096/cck-mna/pkg/mna"
)

type Option func(*Solver)

func WithBackend(backend matrix.Backend) Option {
	return func(s *Solver) { s.backend = backend }
}

// WithMethod selects device.BE or device.TR.
func WithMethod(method int) Option {
	return func(s *Solver) { s.method = method }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Solver) { s.logger = logger }
}

func WithResidualTolerance(tol float64) Option {
	return func(s *Solver) { s.residualTol = tol }
}

// WithMaxIterations caps the refinement passes of one linear solve.
func WithMaxIterations(n int) Option {
	return func(s *Solver) { s.maxIter = n }
}

// Solver is the modified nodal analysis solver. A solve is a critical
// section; concurrent callers are serialized.
type Solver struct {
	mu sync.Mutex

	backend     matrix.Backend
	method      int
	logger      *slog.Logger
	residualTol float64
	maxIter     int

	arena    *mna.Arena
	time     float64
	lastGood *State
	fault    error
}

func NewSolver(opts ...Option) *Solver {
	s := &Solver{
		backend:     matrix.Sparse,
		method:      device.BE,
		residualTol: consts.ResidualTolerance,
		maxIter:     consts.MaxIterations,
		arena:       mna.NewArena(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxIter < 1 {
		s.maxIter = 1
	}
	return s
}

// Solve advances the solver clock by dt and solves at the new time. The
// clock only moves when the solve succeeds.
func (s *Solver) Solve(ckt *circuit.Circuit, dt float64) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkStep(dt, s.time+dt); err != nil {
		return s.fail(s.time, err)
	}
	t := s.time + dt
	state, err := s.solve(ckt, &device.CircuitStatus{
		Time:     t,
		TimeStep: dt,
		Gmin:     consts.Gmin,
		Mode:     device.TransientAnalysis,
		Method:   s.method,
	})
	if err == nil {
		s.time = t
	}
	return state, err
}

// SolveAt solves one step of length dt ending at simulation time t.
func (s *Solver) SolveAt(ckt *circuit.Circuit, dt, t float64) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkStep(dt, t); err != nil {
		return s.fail(s.time, err)
	}
	state, err := s.solve(ckt, &device.CircuitStatus{
		Time:     t,
		TimeStep: dt,
		Gmin:     consts.Gmin,
		Mode:     device.TransientAnalysis,
		Method:   s.method,
	})
	if err == nil {
		s.time = t
	}
	return state, err
}

// OperatingPoint solves the DC state with capacitors open and inductors
// shorted. The solver clock is left alone.
func (s *Solver) OperatingPoint(ckt *circuit.Circuit) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.solve(ckt, &device.CircuitStatus{
		Time: 0,
		Gmin: consts.Gmin,
		Mode: device.OperatingPointAnalysis,
	})
}

// LastGood returns the state of the last successful solve, nil before one.
func (s *Solver) LastGood() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastGood
}

// Fault returns the error of the last solve, nil when it succeeded.
func (s *Solver) Fault() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault
}

func (s *Solver) Time() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.time
}

// Reset rewinds the clock and forgets the last good state.
func (s *Solver) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.time = 0
	s.lastGood = nil
	s.fault = nil
	s.arena.Terms.Reset()
	s.arena.Equations.Reset()
}

func (s *Solver) fail(t float64, err error) (*State, error) {
	s.fault = err

	attrs := []any{"time", t, "err", err}
	var ee *device.ElementError
	if errors.As(err, &ee) {
		attrs = append(attrs, "element", ee.Name)
	}
	s.logger.Warn("circuit unsolvable", attrs...)

	return &State{Status: StatusUnsolvable, Time: t, Err: err}, err
}

func (s *Solver) solve(ckt *circuit.Circuit, status *device.CircuitStatus) (*State, error) {
	t := status.Time

	graph, rebuilt, err := ckt.Graph()
	if err != nil {
		return s.fail(t, err)
	}
	if rebuilt {
		s.logger.Debug("topology rebuilt",
			"circuit", ckt.Name(),
			"nodes", graph.NumNodes(),
			"branches", graph.NumBranches(),
			"floating", graph.Floating(),
		)
	}

	devs := ckt.GetDevices()
	companions := make([]device.Companion, len(devs))
	for i, dev := range devs {
		if graph.Shorted(i) {
			continue
		}
		c, err := dev.Stamp(status)
		if err != nil {
			return s.fail(t, err)
		}
		if c.VoltageSource != (graph.Branch(i) >= 0) {
			return s.fail(t, &device.ElementError{
				Name: dev.GetName(),
				Err:  fmt.Errorf("%w: branch assignment out of date", ErrTopology),
			})
		}
		if c.Clamped {
			s.logger.Warn("parameter clamped", "element", dev.GetName(), "time", t)
		}
		companions[i] = c
	}

	sys := s.arena.NewSystem(graph.NumNodes(), graph.NumBranches())
	defer sys.Release()

	for i, dev := range devs {
		if graph.Shorted(i) {
			continue
		}
		c := companions[i]
		n0, n1 := graph.Nodes(i)

		var err error
		if c.VoltageSource {
			err = sys.StampVoltageSource(n0, n1, graph.Branch(i), c.Voltage)
		} else {
			if err = sys.StampConductance(n0, n1, c.Conductance); err == nil {
				err = sys.StampCurrent(n0, n1, c.Offset)
			}
		}
		if err != nil {
			return s.fail(t, &device.ElementError{
				Name: dev.GetName(),
				Err:  fmt.Errorf("%w: %w", ErrNumericInstability, err),
			})
		}
	}

	if rows := sys.EmptyRows(); len(rows) > 0 {
		return s.fail(t, fmt.Errorf("%w: rows %v have no coefficients", ErrSingular, rows))
	}

	x, residual, err := s.solveLinear(sys)
	if err != nil {
		return s.fail(t, err)
	}

	numNodes := graph.NumNodes()
	state := &State{
		Status:   StatusOK,
		Time:     t,
		Residual: residual,
		graph:    graph,
		voltages: make([]float64, numNodes),
		branches: make([]float64, graph.NumBranches()),
	}
	copy(state.voltages[1:], x[1:numNodes])
	copy(state.branches, x[numNodes:])

	flows := make([]float64, len(devs))
	for i := range devs {
		if graph.Shorted(i) {
			continue
		}
		if b := graph.Branch(i); b >= 0 {
			flows[i] = state.branches[b]
			continue
		}
		n0, n1 := graph.Nodes(i)
		c := companions[i]
		flows[i] = c.Conductance*(state.voltages[n0]-state.voltages[n1]) + c.Offset
	}
	state.flows = graph.WireFlows(flows)
	if !allFinite(state.flows) {
		return s.fail(t, fmt.Errorf("%w: element current overflow", ErrNumericInstability))
	}

	for i, dev := range devs {
		n0, n1 := graph.Nodes(i)
		dev.Apply(state.voltages[n0]-state.voltages[n1], state.flows[i], status)
	}

	s.lastGood = state
	s.fault = nil
	return state, nil
}

// solveLinear factors the assembled system and refines the solution while
// the residual exceeds tolerance, at most maxIter passes in total.
func (s *Solver) solveLinear(sys *mna.System) ([]float64, float64, error) {
	size := sys.Unknowns()
	if size == 0 {
		return make([]float64, 1), 0, nil
	}

	m, err := matrix.NewSystem(s.backend, size)
	if err != nil {
		return nil, 0, err
	}
	defer m.Destroy()

	sys.Load(m)
	if err := m.Solve(); err != nil {
		return nil, 0, err
	}
	if c, ok := m.(interface{ Cond() float64 }); ok {
		s.logger.Debug("dense factorization", "size", size, "cond", c.Cond())
	}
	x := append([]float64(nil), m.Solution()...)
	if !allFinite(x) {
		return nil, 0, fmt.Errorf("%w: solution is not finite", ErrNumericInstability)
	}

	// backward error: |z - A*x| <= tol * (|A|*|x| + |z|)
	scale := sys.MatrixNorm()*floats.Norm(x[1:], math.Inf(1)) + sys.RHSNorm()
	tol := s.residualTol * math.Max(1, scale)
	residual := sys.Residual(x)
	for iter := 1; residual > tol && iter < s.maxIter; iter++ {
		dx, err := m.SolveRHS(sys.ResidualVector(x))
		if err != nil || !allFinite(dx) {
			break
		}
		for i := 1; i < len(x); i++ {
			x[i] += dx[i]
		}
		residual = sys.Residual(x)
	}

	if math.IsNaN(residual) || math.IsInf(residual, 0) {
		return nil, 0, fmt.Errorf("%w: residual is not finite", ErrNumericInstability)
	}
	if residual > tol {
		return nil, 0, fmt.Errorf("%w: residual %g exceeds %g", ErrSingular, residual, tol)
	}
	return x, residual, nil
}

// checkStep rejects a step that would move the clock backwards or off
// the real line, whatever the circuit holds.
func checkStep(dt, t float64) error {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt <= 0 {
		return fmt.Errorf("%w: time step %g", ErrInvalidParameter, dt)
	}
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("%w: time %g", ErrInvalidParameter, t)
	}
	return nil
}

func allFinite(v []float64) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
