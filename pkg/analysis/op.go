package analysis

import (
	"context"
	"fmt"

	"github.com/edp1096/cck-mna/pkg/circuit"
)

type OperatingPoint struct {
	BaseAnalysis
	state *State
}

func NewOP(solver *Solver) *OperatingPoint {
	return &OperatingPoint{
		BaseAnalysis: *NewBaseAnalysis(solver),
	}
}

func (op *OperatingPoint) Setup(ckt *circuit.Circuit) error {
	if ckt == nil {
		return fmt.Errorf("circuit not set")
	}
	op.Circuit = ckt
	return nil
}

func (op *OperatingPoint) Execute(ctx context.Context) error {
	if op.Circuit == nil {
		return fmt.Errorf("circuit not set")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	state, err := op.Solver.OperatingPoint(op.Circuit)
	if err != nil {
		return fmt.Errorf("operating point: %w", err)
	}
	op.state = state

	for name, value := range Snapshot(op.Circuit, state) {
		op.results[name] = []float64{value}
	}
	return nil
}

// State is nil until Execute succeeds.
func (op *OperatingPoint) State() *State { return op.state }
