package device

import (
	"github.com/edp1096/cck-mna/internal/consts"
	"github.com/edp1096/cck-mna/pkg/util"
)

// Capacitor keeps the drop and current of the last applied solve; they are
// the history terms of its companion model.
type Capacitor struct {
	BaseDevice
	Capacitance float64
}

func NewCapacitor(name string, nodeNames []string, value float64) *Capacitor {
	return &Capacitor{
		BaseDevice:  NewBaseDevice(name, nodeNames),
		Capacitance: value,
	}
}

func (c *Capacitor) GetKind() Kind { return KindCapacitor }

func (c *Capacitor) SetCapacitance(value float64) { c.Capacitance = value }

// SetInitialVoltage seeds the history before the first transient step.
func (c *Capacitor) SetInitialVoltage(v float64) {
	c.voltageDrop = v
	c.current = 0
}

func (c *Capacitor) Stamp(status *CircuitStatus) (Companion, error) {
	if err := c.checkPositive("capacitance", c.Capacitance); err != nil {
		return Companion{}, err
	}

	if status.Mode == OperatingPointAnalysis {
		gmin := status.Gmin
		if gmin < consts.Gmin {
			gmin = consts.Gmin
		}
		return Companion{Conductance: gmin}, nil
	}

	dt, err := timeStep(&c.BaseDevice, status)
	if err != nil {
		return Companion{}, err
	}

	// i = C dv/dt
	// BE: i(n) = C/dt (v(n) - v(n-1))
	// TR: i(n) = 2C/dt (v(n) - v(n-1)) - i(n-1)
	if status.Method == TR {
		geq := c.Capacitance * util.GetIntegratorCoeffs(util.TrapezoidalMethod, 2, dt)[0]
		return Companion{Conductance: geq, Offset: -(geq*c.voltageDrop + c.current)}, nil
	}
	geq := c.Capacitance * util.GetIntegratorCoeffs(util.GearMethod, 1, dt)[0]
	return Companion{Conductance: geq, Offset: -geq * c.voltageDrop}, nil
}

// Charge is C times the present drop.
func (c *Capacitor) Charge() float64 {
	return c.Capacitance * c.voltageDrop
}
