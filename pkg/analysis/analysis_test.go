package analysis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"slices"
	"testing"

	"github.com/edp1096/cck-mna/pkg/circuit"
	"github.com/edp1096/cck-mna/pkg/device"
)

func quietSolver(opts ...Option) *Solver {
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return NewSolver(opts...)
}

func rcCircuit(t *testing.T) *circuit.Circuit {
	t.Helper()
	ckt := circuit.New("rc")
	err := ckt.Add(
		device.NewBattery("V1", []string{"1", "0"}, 1),
		device.NewResistor("R1", []string{"1", "2"}, 1000),
		device.NewCapacitor("C1", []string{"2", "0"}, 1e-6),
	)
	if err != nil {
		t.Fatal(err)
	}
	return ckt
}

func dividerCircuit(t *testing.T) *circuit.Circuit {
	t.Helper()
	ckt := circuit.New("divider")
	err := ckt.Add(
		device.NewBattery("V1", []string{"1", "0"}, 10),
		device.NewResistor("R1", []string{"1", "2"}, 1000),
		device.NewResistor("R2", []string{"2", "0"}, 1000),
	)
	if err != nil {
		t.Fatal(err)
	}
	return ckt
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{StatusOK, "ok"},
		{StatusUnsolvable, "unsolvable"},
		{Status(7), "Status(7)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestNumericInstabilityWrapsAsSingular(t *testing.T) {
	err := &device.ElementError{Name: "R1", Err: errors.Join(ErrNumericInstability)}
	if !errors.Is(err, ErrSingular) {
		t.Error("expected numeric instability to match ErrSingular")
	}
	if !errors.Is(err, ErrNumericInstability) {
		t.Error("expected numeric instability to match itself")
	}
}

func TestNilStateAccessors(t *testing.T) {
	var st *State
	if st.OK() || st.NodeVoltage(1) != 0 || st.Voltage("1") != 0 || st.KCLError(1) != 0 {
		t.Error("nil state should read as zero")
	}
}

func TestTransientResults(t *testing.T) {
	tr := NewTransient(quietSolver(), 1e-4, 1e-3, 0)
	if err := tr.Setup(rcCircuit(t)); err != nil {
		t.Fatal(err)
	}
	if err := tr.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	res := tr.GetResults()
	times := res["TIME"]
	if len(times) != 10 {
		t.Fatalf("expected 10 time points, got %d", len(times))
	}
	if math.Abs(times[9]-1e-3) > 1e-15 {
		t.Errorf("expected last time 1ms, got %g", times[9])
	}
	for _, key := range []string{"V(1)", "V(2)", "I(V1)", "I(R1)", "I(C1)"} {
		if len(res[key]) != len(times) {
			t.Errorf("%s: expected %d points, got %d", key, len(times), len(res[key]))
		}
	}

	// tau = 1ms; BE lags the exact curve slightly
	v := res["V(2)"][9]
	if math.Abs(v-(1-math.Exp(-1))) > 2e-2 {
		t.Errorf("expected about %g at t=RC, got %g", 1-math.Exp(-1), v)
	}
	if !slices.IsSorted(res["V(2)"]) {
		t.Error("capacitor voltage should rise monotonically")
	}
	if len(tr.Faults()) != 0 {
		t.Errorf("unexpected faults %v", tr.Faults())
	}
}

func TestTransientStartTime(t *testing.T) {
	tr := NewTransient(quietSolver(), 1e-4, 1e-3, 4.5e-4)
	if err := tr.Setup(rcCircuit(t)); err != nil {
		t.Fatal(err)
	}
	if err := tr.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := len(tr.GetResults()["TIME"]); n != 6 {
		t.Errorf("expected 6 recorded points, got %d", n)
	}
}

func TestTransientRecordsFaults(t *testing.T) {
	ckt := dividerCircuit(t)
	_ = ckt.Add(device.NewCurrentSource("I1", []string{"0", "x"}, 1e-3))

	tr := NewTransient(quietSolver(), 1e-3, 5e-3, 0)
	if err := tr.Setup(ckt); err != nil {
		t.Fatal(err)
	}
	if err := tr.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	faults := tr.Faults()
	if len(faults) != 5 {
		t.Fatalf("expected 5 faults, got %d", len(faults))
	}
	if !errors.Is(faults[0].Err, ErrSingular) {
		t.Errorf("expected ErrSingular, got %v", faults[0].Err)
	}
	if n := len(tr.GetResults()["TIME"]); n != 5 {
		t.Errorf("run should keep recording, got %d points", n)
	}
}

func TestTransientContinuesAfterFault(t *testing.T) {
	ckt := dividerCircuit(t)
	solver := quietSolver()
	tr := NewTransient(solver, 1e-3, 3e-3, 0)
	if err := tr.Setup(ckt); err != nil {
		t.Fatal(err)
	}

	// break the circuit for the run, then check the recorded values are the last good ones
	if _, err := solver.SolveAt(ckt, 1e-3, 0); err != nil {
		t.Fatal(err)
	}
	r2, _ := ckt.Device("R2")
	r2.(*device.Resistor).SetResistance(-1)

	if err := tr.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(tr.Faults()) != 3 {
		t.Fatalf("expected 3 faults, got %d", len(tr.Faults()))
	}
	for _, v := range tr.GetResults()["V(2)"] {
		if math.Abs(v-5) > 1e-9 {
			t.Errorf("expected last good 5V, got %g", v)
		}
	}
}

func TestTransientCancel(t *testing.T) {
	tr := NewTransient(quietSolver(), 1e-4, 1e-3, 0)
	if err := tr.Setup(rcCircuit(t)); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tr.Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTransientSetupRejects(t *testing.T) {
	tests := []struct {
		name              string
		step, stop, start float64
	}{
		{"zero step", 0, 1, 0},
		{"negative step", -1e-3, 1, 0},
		{"nan step", math.NaN(), 1, 0},
		{"zero stop", 1e-3, 0, 0},
		{"start after stop", 1e-3, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTransient(quietSolver(), tt.step, tt.stop, tt.start)
			if err := tr.Setup(rcCircuit(t)); !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestOperatingPoint(t *testing.T) {
	op := NewOP(quietSolver())
	if err := op.Setup(rcCircuit(t)); err != nil {
		t.Fatal(err)
	}
	if err := op.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	// capacitor open: no drop across R1
	res := op.GetResults()
	if math.Abs(res["V(2)"][0]-1) > 1e-6 {
		t.Errorf("expected V(2)=1, got %g", res["V(2)"][0])
	}
	if math.Abs(res["I(R1)"][0]) > 1e-9 {
		t.Errorf("expected no current, got %g", res["I(R1)"][0])
	}
	if !op.State().OK() {
		t.Error("expected ok state")
	}
}

func TestOperatingPointShortsInductor(t *testing.T) {
	ckt := circuit.New("rl")
	l := device.NewInductor("L1", []string{"2", "0"}, 1e-3)
	_ = ckt.Add(
		device.NewBattery("V1", []string{"1", "0"}, 1),
		device.NewResistor("R1", []string{"1", "2"}, 1),
		l,
	)

	solver := quietSolver()
	if _, err := solver.OperatingPoint(ckt); err != nil {
		t.Fatal(err)
	}
	if math.Abs(l.Current()-1) > 1e-6 {
		t.Errorf("expected 1A through the inductor, got %g", l.Current())
	}
	if solver.Time() != 0 {
		t.Errorf("operating point should not move the clock, got %g", solver.Time())
	}
}

func TestDCSweep(t *testing.T) {
	ckt := dividerCircuit(t)
	dc := NewDCSweep(quietSolver(), "V1", 0, 7.5, 2.5)
	if err := dc.Setup(ckt); err != nil {
		t.Fatal(err)
	}
	if err := dc.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	res := dc.GetResults()
	sweep := res["SWEEP"]
	if !slices.Equal(sweep, []float64{0, 2.5, 5, 7.5}) {
		t.Fatalf("unexpected sweep points %v", sweep)
	}
	for i, v := range sweep {
		if math.Abs(res["V(2)"][i]-v/2) > 1e-9 {
			t.Errorf("at %g: expected V(2)=%g, got %g", v, v/2, res["V(2)"][i])
		}
	}

	v1, _ := ckt.Device("V1")
	if v1.(*device.Battery).Voltage != 10 {
		t.Errorf("source not restored, got %g", v1.(*device.Battery).Voltage)
	}
}

func TestDCSweepCurrentSource(t *testing.T) {
	ckt := circuit.New("norton")
	_ = ckt.Add(
		device.NewCurrentSource("I1", []string{"0", "1"}, 0),
		device.NewResistor("R1", []string{"1", "0"}, 100),
	)
	dc := NewDCSweep(quietSolver(), "I1", 1e-3, 3e-3, 1e-3)
	if err := dc.Setup(ckt); err != nil {
		t.Fatal(err)
	}
	if err := dc.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := dc.GetResults()["V(1)"]
	want := []float64{0.1, 0.2, 0.3}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("point %d: expected %g, got %g", i, want[i], got[i])
		}
	}
}

func TestDCSweepSetupErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		step   float64
	}{
		{"unknown source", "V9", 1},
		{"not a source", "R1", 1},
		{"zero step", "V1", 0},
		{"wrong direction", "V1", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc := NewDCSweep(quietSolver(), tt.source, 0, 5, tt.step)
			if err := dc.Setup(dividerCircuit(t)); err == nil {
				t.Error("expected setup error")
			}
		})
	}
}

func TestSweepValues(t *testing.T) {
	if n := len(sweepValues(0, 1, 0.1)); n != 11 {
		t.Errorf("expected 11 points, got %d", n)
	}
	if got := sweepValues(5, 0, -2.5); !slices.Equal(got, []float64{5, 2.5, 0}) {
		t.Errorf("unexpected descending sweep %v", got)
	}
}

func TestVariablesOrder(t *testing.T) {
	got := Variables(map[string][]float64{"V(2)": nil, "TIME": nil, "I(R1)": nil, "V(1)": nil})
	want := []string{"TIME", "I(R1)", "V(1)", "V(2)"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSolverReset(t *testing.T) {
	solver := quietSolver()
	if _, err := solver.Solve(dividerCircuit(t), 1e-3); err != nil {
		t.Fatal(err)
	}
	solver.Reset()
	if solver.Time() != 0 || solver.LastGood() != nil || solver.Fault() != nil {
		t.Error("reset should clear clock and history")
	}
}
