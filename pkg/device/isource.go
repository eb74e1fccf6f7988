package device

// CurrentSource pushes Value from node0 to node1 through itself.
type CurrentSource struct {
	BaseDevice
	Value float64
}

func NewCurrentSource(name string, nodeNames []string, value float64) *CurrentSource {
	return &CurrentSource{
		BaseDevice: NewBaseDevice(name, nodeNames),
		Value:      value,
	}
}

func (i *CurrentSource) GetKind() Kind { return KindCurrentSource }

func (i *CurrentSource) SetCurrent(value float64) { i.Value = value }

func (i *CurrentSource) Stamp(status *CircuitStatus) (Companion, error) {
	if err := i.checkFinite("current", i.Value); err != nil {
		return Companion{}, err
	}
	return Companion{Offset: i.Value}, nil
}
