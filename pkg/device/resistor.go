package device

import "github.com/edp1096/cck-mna/internal/consts"

type Resistor struct {
	BaseDevice
	Resistance float64
}

func NewResistor(name string, nodeNames []string, value float64) *Resistor {
	return &Resistor{
		BaseDevice: NewBaseDevice(name, nodeNames),
		Resistance: value,
	}
}

func (r *Resistor) GetKind() Kind { return KindResistor }

func (r *Resistor) SetResistance(value float64) { r.Resistance = value }

// Shorted reports a zero resistance. The graph builder merges such a
// resistor like a wire and its current comes from KCL.
func (r *Resistor) Shorted() bool { return r.Resistance == 0 }

// Stamp clamps a resistance below consts.MinResistance and rejects
// negative or non-finite values.
func (r *Resistor) Stamp(status *CircuitStatus) (Companion, error) {
	if r.Shorted() {
		return Companion{}, nil
	}
	return conductance(&r.BaseDevice, "resistance", r.Resistance)
}

func conductance(d *BaseDevice, param string, resistance float64) (Companion, error) {
	if err := d.checkNonNegative(param, resistance); err != nil {
		return Companion{}, err
	}
	if resistance < consts.MinResistance {
		return Companion{Conductance: 1.0 / consts.MinResistance, Clamped: true}, nil
	}
	return Companion{Conductance: 1.0 / resistance}, nil
}

// Wire with zero resistance is merged into one node by the graph builder
// and never stamped. A resistive wire stamps like a resistor.
type Wire struct {
	BaseDevice
	Resistance float64
}

func NewWire(name string, nodeNames []string, resistance float64) *Wire {
	return &Wire{
		BaseDevice: NewBaseDevice(name, nodeNames),
		Resistance: resistance,
	}
}

func (w *Wire) GetKind() Kind { return KindWire }

func (w *Wire) Shorted() bool { return w.Resistance == 0 }

func (w *Wire) SetResistance(value float64) { w.Resistance = value }

func (w *Wire) Stamp(status *CircuitStatus) (Companion, error) {
	if w.Shorted() {
		return Companion{}, nil
	}
	return conductance(&w.BaseDevice, "resistance", w.Resistance)
}
