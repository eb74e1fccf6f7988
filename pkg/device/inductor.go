package device

import (
	"github.com/edp1096/cck-mna/internal/consts"
	"github.com/edp1096/cck-mna/pkg/util"
)

type Inductor struct {
	BaseDevice
	Inductance float64
}

func NewInductor(name string, nodeNames []string, value float64) *Inductor {
	return &Inductor{
		BaseDevice: NewBaseDevice(name, nodeNames),
		Inductance: value,
	}
}

func (l *Inductor) GetKind() Kind { return KindInductor }

func (l *Inductor) SetInductance(value float64) { l.Inductance = value }

// SetInitialCurrent seeds the history before the first transient step.
func (l *Inductor) SetInitialCurrent(i float64) {
	l.current = i
	l.voltageDrop = 0
}

func (l *Inductor) Stamp(status *CircuitStatus) (Companion, error) {
	if err := l.checkPositive("inductance", l.Inductance); err != nil {
		return Companion{}, err
	}

	if status.Mode == OperatingPointAnalysis {
		return Companion{Conductance: 1.0 / consts.MinResistance}, nil
	}

	dt, err := timeStep(&l.BaseDevice, status)
	if err != nil {
		return Companion{}, err
	}

	// v = L di/dt
	// BE: i(n) = i(n-1) + dt/L v(n)
	// TR: i(n) = i(n-1) + dt/2L (v(n) + v(n-1))
	if status.Method == TR {
		geq := 1.0 / (l.Inductance * util.GetIntegratorCoeffs(util.TrapezoidalMethod, 2, dt)[0])
		return Companion{Conductance: geq, Offset: l.current + geq*l.voltageDrop}, nil
	}
	geq := 1.0 / (l.Inductance * util.GetIntegratorCoeffs(util.GearMethod, 1, dt)[0])
	return Companion{Conductance: geq, Offset: l.current}, nil
}

// Flux is L times the present current.
func (l *Inductor) Flux() float64 {
	return l.Inductance * l.current
}
