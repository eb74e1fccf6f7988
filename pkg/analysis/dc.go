package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/edp1096/cck-mna/pkg/circuit"
	"github.com/edp1096/cck-mna/pkg/device"
)

// DCSweep steps the value of one battery or current source and records an
// operating point per step. The source value is restored afterwards.
type DCSweep struct {
	BaseAnalysis
	sourceName string
	sweepVals  []float64
	get        func() float64
	set        func(float64)
}

func NewDCSweep(solver *Solver, source string, start, stop, step float64) *DCSweep {
	dc := &DCSweep{
		BaseAnalysis: *NewBaseAnalysis(solver),
		sourceName:   source,
	}
	dc.sweepVals = sweepValues(start, stop, step)
	return dc
}

func sweepValues(start, stop, step float64) []float64 {
	if step == 0 || math.IsNaN(step) || (stop-start)/step < 0 {
		return nil
	}
	n := int(math.Floor((stop-start)/step+1e-9)) + 1
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = start + float64(i)*step
	}
	return vals
}

func (dc *DCSweep) Setup(ckt *circuit.Circuit) error {
	if len(dc.sweepVals) == 0 {
		return fmt.Errorf("%w: empty sweep of %s", ErrInvalidParameter, dc.sourceName)
	}

	dev, ok := ckt.Device(dc.sourceName)
	if !ok {
		return fmt.Errorf("source %s not found", dc.sourceName)
	}
	switch src := dev.(type) {
	case *device.Battery:
		dc.get = func() float64 { return src.Voltage }
		dc.set = src.SetVoltage
	case *device.CurrentSource:
		dc.get = func() float64 { return src.Value }
		dc.set = src.SetCurrent
	default:
		return fmt.Errorf("%s is a %s, not a sweepable source", dc.sourceName, dev.GetKind())
	}

	dc.Circuit = ckt
	return nil
}

func (dc *DCSweep) Execute(ctx context.Context) error {
	if dc.Circuit == nil {
		return fmt.Errorf("circuit not set")
	}

	orig := dc.get()
	defer dc.set(orig)

	for _, val := range dc.sweepVals {
		if err := ctx.Err(); err != nil {
			return err
		}
		dc.set(val)

		state, err := dc.Solver.OperatingPoint(dc.Circuit)
		if err != nil {
			return fmt.Errorf("operating point at %s=%g: %w", dc.sourceName, val, err)
		}
		dc.StoreResult("SWEEP", val, Snapshot(dc.Circuit, state))
	}

	return nil
}

func (dc *DCSweep) SweepValues() []float64 { return dc.sweepVals }
