package netlist

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Value decodes either a number or a string with an SI suffix ("4.7k").
type Value float64

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: value must be a scalar", node.Line)
	}
	f, err := ParseValue(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*v = Value(f)
	return nil
}

type yamlElement struct {
	Name   string            `yaml:"name"`
	Kind   string            `yaml:"kind"`
	Nodes  []string          `yaml:"nodes"`
	Value  Value             `yaml:"value"`
	Params map[string]string `yaml:"params"`
}

type yamlAnalysis struct {
	Type   string `yaml:"type"`
	TStep  Value  `yaml:"tstep"`
	TStop  Value  `yaml:"tstop"`
	TStart Value  `yaml:"tstart"`
	Source string `yaml:"source"`
	Start  Value  `yaml:"start"`
	Stop   Value  `yaml:"stop"`
	Step   Value  `yaml:"step"`
}

type yamlCircuit struct {
	Title    string        `yaml:"title"`
	Elements []yamlElement `yaml:"elements"`
	Analysis *yamlAnalysis `yaml:"analysis"`
}

// ParseYAML reads a circuit described as
//
//	title: divider
//	elements:
//	  - {name: V1, kind: V, nodes: ["1", "0"], value: 10}
//	  - {name: R1, kind: R, nodes: ["1", "2"], value: 1k}
//	analysis: {type: tran, tstep: 1m, tstop: 10m}
func ParseYAML(data []byte) (*NetlistData, error) {
	var doc yamlCircuit
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse circuit: %w", err)
	}

	netlistData := newNetlistData()
	netlistData.Title = doc.Title

	for i, e := range doc.Elements {
		if e.Name == "" {
			return nil, fmt.Errorf("element %d: missing name", i)
		}
		kind := strings.ToUpper(e.Kind)
		if kind == "" {
			kind = strings.ToUpper(e.Name[:1])
		}
		elem := Element{
			Type:   kind,
			Name:   e.Name,
			Nodes:  e.Nodes,
			Value:  float64(e.Value),
			Params: make(map[string]string),
		}
		for k, v := range e.Params {
			elem.Params[strings.ToLower(k)] = v
		}
		if kind == "VAC" {
			elem.Type = "V"
			elem.Params["type"] = "sin"
			elem.Params["sin"] = strings.Join([]string{
				paramOr(elem.Params, "offset", "0"),
				paramOr(elem.Params, "amplitude", "0"),
				paramOr(elem.Params, "frequency", "0"),
				paramOr(elem.Params, "phase", "0"),
			}, " ")
		}
		if err := netlistData.addElement(elem); err != nil {
			return nil, err
		}
	}

	if a := doc.Analysis; a != nil {
		switch strings.ToLower(a.Type) {
		case "op":
			netlistData.Analysis = AnalysisOP
		case "tran":
			netlistData.Analysis = AnalysisTRAN
			netlistData.TranParam = TranParam{TStep: float64(a.TStep), TStop: float64(a.TStop), TStart: float64(a.TStart)}
		case "dc":
			netlistData.Analysis = AnalysisDC
			netlistData.DCParam = DCParam{Source: a.Source, Start: float64(a.Start), Stop: float64(a.Stop), Increment: float64(a.Step)}
		default:
			return nil, fmt.Errorf("unsupported analysis type: %s", a.Type)
		}
	}

	return netlistData, nil
}

func paramOr(params map[string]string, key, def string) string {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}

func LoadYAML(path string) (*NetlistData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseYAML(data)
}

// Load reads a YAML circuit for .yaml/.yml paths and a netlist otherwise.
func Load(path string) (*NetlistData, error) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return LoadYAML(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}
