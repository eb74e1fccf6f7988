package device

import "math"

// Battery is a DC source with node0 as the + terminal. With a zero internal
// resistance it is an ideal source and owns a branch-current unknown.
type Battery struct {
	BaseDevice
	Voltage            float64
	InternalResistance float64
}

func NewBattery(name string, nodeNames []string, voltage float64) *Battery {
	return &Battery{
		BaseDevice: NewBaseDevice(name, nodeNames),
		Voltage:    voltage,
	}
}

func NewBatteryWithResistance(name string, nodeNames []string, voltage, resistance float64) *Battery {
	b := NewBattery(name, nodeNames, voltage)
	b.InternalResistance = resistance
	return b
}

func (b *Battery) GetKind() Kind { return KindBattery }

func (b *Battery) NeedsBranch() bool { return b.InternalResistance == 0 }

func (b *Battery) SetVoltage(value float64) { b.Voltage = value }

func (b *Battery) SetInternalResistance(value float64) { b.InternalResistance = value }

func (b *Battery) Stamp(status *CircuitStatus) (Companion, error) {
	if err := b.checkFinite("voltage", b.Voltage); err != nil {
		return Companion{}, err
	}
	if err := b.checkNonNegative("internal resistance", b.InternalResistance); err != nil {
		return Companion{}, err
	}
	if b.InternalResistance == 0 {
		return Companion{VoltageSource: true, Voltage: b.Voltage}, nil
	}

	// Thevenin: i(n0->n1) = (V0 - V1 - V) / r
	g := 1.0 / b.InternalResistance
	return Companion{Conductance: g, Offset: -b.Voltage * g}, nil
}

// Apply records the current delivered out of the + terminal.
func (b *Battery) Apply(voltageDrop, flow float64, status *CircuitStatus) {
	b.voltageDrop = voltageDrop
	b.current = -flow
}

// ACVoltageSource is an ideal sine source, node0 is the + terminal.
type ACVoltageSource struct {
	BaseDevice
	Offset    float64
	Amplitude float64
	Frequency float64
	Phase     float64 // degrees
}

func NewACVoltageSource(name string, nodeNames []string, offset, amplitude, freq, phase float64) *ACVoltageSource {
	return &ACVoltageSource{
		BaseDevice: NewBaseDevice(name, nodeNames),
		Offset:     offset,
		Amplitude:  amplitude,
		Frequency:  freq,
		Phase:      phase,
	}
}

func (v *ACVoltageSource) GetKind() Kind { return KindACSource }

func (v *ACVoltageSource) NeedsBranch() bool { return true }

func (v *ACVoltageSource) SetAmplitude(value float64) { v.Amplitude = value }

func (v *ACVoltageSource) SetFrequency(value float64) { v.Frequency = value }

func (v *ACVoltageSource) GetVoltage(t float64) float64 {
	phaseRad := v.Phase * math.Pi / 180.0
	return v.Offset + v.Amplitude*math.Sin(2.0*math.Pi*v.Frequency*t+phaseRad)
}

func (v *ACVoltageSource) Stamp(status *CircuitStatus) (Companion, error) {
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"offset", v.Offset},
		{"amplitude", v.Amplitude},
		{"phase", v.Phase},
	} {
		if err := v.checkFinite(p.name, p.value); err != nil {
			return Companion{}, err
		}
	}
	if err := v.checkNonNegative("frequency", v.Frequency); err != nil {
		return Companion{}, err
	}

	t := status.Time
	if status.Mode == OperatingPointAnalysis {
		t = 0
	}
	return Companion{VoltageSource: true, Voltage: v.GetVoltage(t)}, nil
}

func (v *ACVoltageSource) Apply(voltageDrop, flow float64, status *CircuitStatus) {
	v.voltageDrop = voltageDrop
	v.current = -flow
}
