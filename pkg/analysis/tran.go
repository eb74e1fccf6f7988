package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/edp1096/cck-mna/pkg/circuit"
	"github.com/edp1096/cck-mna/pkg/util"
)

// Fault is a tick that could not be solved.
type Fault struct {
	Time float64
	Err  error
}

// Transient steps the circuit with a fixed time step from t=0 to stopTime
// and records every tick at or after startTime. A failed tick is recorded
// as a fault and the run continues from the last good state.
type Transient struct {
	BaseAnalysis
	startTime float64
	stopTime  float64
	timeStep  float64
	faults    []Fault
}

func NewTransient(solver *Solver, tStep, tStop, tStart float64) *Transient {
	return &Transient{
		BaseAnalysis: *NewBaseAnalysis(solver),
		startTime:    tStart,
		stopTime:     tStop,
		timeStep:     tStep,
	}
}

func (tr *Transient) Setup(ckt *circuit.Circuit) error {
	if ckt == nil {
		return fmt.Errorf("circuit not set")
	}
	if !(tr.timeStep > 0) || math.IsInf(tr.timeStep, 0) {
		return fmt.Errorf("%w: time step %g", ErrInvalidParameter, tr.timeStep)
	}
	if !(tr.stopTime > 0) || tr.startTime < 0 || tr.startTime > tr.stopTime {
		return fmt.Errorf("%w: time window [%g, %g]", ErrInvalidParameter, tr.startTime, tr.stopTime)
	}
	if _, _, err := ckt.Graph(); err != nil {
		return err
	}
	tr.Circuit = ckt
	return nil
}

func (tr *Transient) Execute(ctx context.Context) error {
	if tr.Circuit == nil {
		return fmt.Errorf("circuit not set")
	}

	steps := int(math.Ceil(tr.stopTime/tr.timeStep - 1e-9))
	prev := 0.0
	for k := 1; k <= steps; k++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("transient stopped at t=%s: %w", util.FormatValueFactor(prev, "s"), err)
		}

		t := math.Min(float64(k)*tr.timeStep, tr.stopTime)
		state, err := tr.Solver.SolveAt(tr.Circuit, t-prev, t)
		if err != nil {
			tr.faults = append(tr.faults, Fault{Time: t, Err: err})
			state = tr.Solver.LastGood()
		} else {
			prev = t
		}

		if t >= tr.startTime {
			tr.StoreTimeResult(t, Snapshot(tr.Circuit, state))
		}
	}

	return nil
}

func (tr *Transient) Faults() []Fault { return tr.faults }
