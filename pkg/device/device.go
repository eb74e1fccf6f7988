package device

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParameter reports a non-physical element parameter.
var ErrInvalidParameter = errors.New("invalid parameter")

type Kind int

const (
	KindResistor Kind = iota
	KindWire
	KindBattery
	KindACSource
	KindCapacitor
	KindInductor
	KindCurrentSource
)

var kindNames = [...]string{"R", "W", "V", "VAC", "C", "L", "I"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

type AnalysisMode int

const (
	OperatingPointAnalysis AnalysisMode = iota
	TransientAnalysis
)

const (
	BE = iota // Backward Euler
	TR        // Trapezoidal
)

type CircuitStatus struct {
	Time     float64
	TimeStep float64
	Gmin     float64
	Mode     AnalysisMode
	Method   int // BE or TR
}

// Companion is the linear stand-in of one element for one solve. The
// element current from node0 to node1 is Conductance*(V0-V1) + Offset,
// unless VoltageSource is set, in which case the element pins
// V0-V1 = Voltage and its current is a solution unknown.
type Companion struct {
	Conductance   float64
	Offset        float64
	VoltageSource bool
	Voltage       float64
	Clamped       bool // a parameter was raised to a safe minimum
}

type Device interface {
	GetName() string
	GetKind() Kind
	GetNodeNames() []string
	SetNodeNames(node0, node1 string)
	// NeedsBranch reports whether the element adds a branch-current unknown.
	NeedsBranch() bool
	// Stamp reads element state only.
	Stamp(status *CircuitStatus) (Companion, error)
	// Apply stores the solved drop V0-V1 and the current flowing from
	// node0 to node1 through the element.
	Apply(voltageDrop, flow float64, status *CircuitStatus)
	VoltageDrop() float64
	Current() float64
}

// Shorting is implemented by elements the graph builder may merge into a
// single node.
type Shorting interface {
	Shorted() bool
}

type ElementError struct {
	Name string
	Err  error
}

func (e *ElementError) Error() string { return fmt.Sprintf("element %s: %v", e.Name, e.Err) }

func (e *ElementError) Unwrap() error { return e.Err }

type BaseDevice struct {
	Name        string
	NodeNames   []string
	voltageDrop float64
	current     float64
}

func NewBaseDevice(name string, nodeNames []string) BaseDevice {
	names := make([]string, 2)
	copy(names, nodeNames)
	return BaseDevice{Name: name, NodeNames: names}
}

func (d *BaseDevice) GetName() string { return d.Name }

func (d *BaseDevice) GetNodeNames() []string { return d.NodeNames }

func (d *BaseDevice) SetNodeNames(node0, node1 string) {
	d.NodeNames = []string{node0, node1}
}

func (d *BaseDevice) NeedsBranch() bool { return false }

func (d *BaseDevice) VoltageDrop() float64 { return d.voltageDrop }

func (d *BaseDevice) Current() float64 { return d.current }

func (d *BaseDevice) Apply(voltageDrop, flow float64, status *CircuitStatus) {
	d.voltageDrop = voltageDrop
	d.current = flow
}

func (d *BaseDevice) invalid(format string, args ...any) error {
	return &ElementError{Name: d.Name, Err: fmt.Errorf("%w: "+format, append([]any{ErrInvalidParameter}, args...)...)}
}

func (d *BaseDevice) checkFinite(param string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return d.invalid("%s is %g", param, v)
	}
	return nil
}

func (d *BaseDevice) checkPositive(param string, v float64) error {
	if err := d.checkFinite(param, v); err != nil {
		return err
	}
	if v <= 0 {
		return d.invalid("%s must be positive, got %g", param, v)
	}
	return nil
}

func (d *BaseDevice) checkNonNegative(param string, v float64) error {
	if err := d.checkFinite(param, v); err != nil {
		return err
	}
	if v < 0 {
		return d.invalid("%s must not be negative, got %g", param, v)
	}
	return nil
}

func timeStep(d *BaseDevice, status *CircuitStatus) (float64, error) {
	if err := d.checkPositive("time step", status.TimeStep); err != nil {
		return 0, err
	}
	return status.TimeStep, nil
}
