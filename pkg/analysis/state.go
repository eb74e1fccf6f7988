package analysis

import (
	"fmt"

	"github.com/edp1096/cck-mna/pkg/circuit"
)

type Status int

const (
	StatusOK Status = iota
	StatusUnsolvable
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnsolvable:
		return "unsolvable"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// State is the result of one solve. An unsolvable state carries only
// Status, Time and Err.
type State struct {
	Status   Status
	Time     float64
	Residual float64
	Err      error

	graph    *circuit.Graph
	voltages []float64 // by node, reference included
	branches []float64 // current from node0 to node1 through each source
	flows    []float64 // by element, node0 to node1
}

func (st *State) OK() bool { return st != nil && st.Status == StatusOK }

// NodeVoltage is 0 for the reference and for unknown nodes.
func (st *State) NodeVoltage(node int) float64 {
	if st == nil || node <= 0 || node >= len(st.voltages) {
		return 0
	}
	return st.voltages[node]
}

// Voltage resolves an endpoint name to its node voltage.
func (st *State) Voltage(endpoint string) float64 {
	if st == nil || st.graph == nil {
		return 0
	}
	node, ok := st.graph.NodeOf(endpoint)
	if !ok {
		return 0
	}
	return st.NodeVoltage(node)
}

// BranchCurrent is the solved branch unknown: the current entering the +
// terminal of the source and leaving through the - terminal.
func (st *State) BranchCurrent(branch int) float64 {
	if st == nil || branch < 0 || branch >= len(st.branches) {
		return 0
	}
	return st.branches[branch]
}

// Flow is the current from node0 to node1 through element i.
func (st *State) Flow(i int) float64 {
	if st == nil || i < 0 || i >= len(st.flows) {
		return 0
	}
	return st.flows[i]
}

func (st *State) NumNodes() int { return len(st.voltages) }

func (st *State) Graph() *circuit.Graph { return st.graph }

// KCLError sums the currents leaving node through every element.
func (st *State) KCLError(node int) float64 {
	if st == nil || st.graph == nil {
		return 0
	}
	sum := 0.0
	for i, f := range st.flows {
		n0, n1 := st.graph.Nodes(i)
		if n0 == n1 {
			continue
		}
		if n0 == node {
			sum += f
		}
		if n1 == node {
			sum -= f
		}
	}
	return sum
}
