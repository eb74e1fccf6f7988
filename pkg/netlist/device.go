package netlist

import (
	"fmt"
	"strings"

	"github.com/edp1096/cck-mna/pkg/circuit"
	"github.com/edp1096/cck-mna/pkg/device"
)

func CreateDevice(elem Element) (device.Device, error) {
	if len(elem.Nodes) != 2 {
		return nil, fmt.Errorf("%s: expected 2 nodes, got %d", elem.Name, len(elem.Nodes))
	}

	switch strings.ToUpper(elem.Type) {
	case "R":
		return device.NewResistor(elem.Name, elem.Nodes, elem.Value), nil

	case "W":
		return device.NewWire(elem.Name, elem.Nodes, elem.Value), nil

	case "C":
		return device.NewCapacitor(elem.Name, elem.Nodes, elem.Value), nil

	case "L":
		return device.NewInductor(elem.Name, elem.Nodes, elem.Value), nil

	case "I":
		return device.NewCurrentSource(elem.Name, elem.Nodes, elem.Value), nil

	case "V":
		switch elem.Params["type"] {
		case "sin":
			offset, amplitude, freq, phase, err := parseSinParams(elem.Params["sin"])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", elem.Name, err)
			}
			return device.NewACVoltageSource(elem.Name, elem.Nodes, offset, amplitude, freq, phase), nil

		case "dc", "":
			bat := device.NewBattery(elem.Name, elem.Nodes, elem.Value)
			if r, ok := elem.Params["r"]; ok {
				value, err := ParseValue(r)
				if err != nil {
					return nil, fmt.Errorf("%s: invalid internal resistance: %w", elem.Name, err)
				}
				bat.SetInternalResistance(value)
			}
			return bat, nil
		}
		return nil, fmt.Errorf("%s: unsupported source type %s", elem.Name, elem.Params["type"])
	}

	return nil, fmt.Errorf("unsupported device type: %s", elem.Type)
}

// BuildCircuit creates every element of data and adds it to a new circuit.
func BuildCircuit(data *NetlistData) (*circuit.Circuit, error) {
	ckt := circuit.New(data.Title)
	for _, elem := range data.Elements {
		dev, err := CreateDevice(elem)
		if err != nil {
			return nil, fmt.Errorf("creating device %s: %w", elem.Name, err)
		}
		if err := ckt.Add(dev); err != nil {
			return nil, err
		}
	}
	return ckt, nil
}
