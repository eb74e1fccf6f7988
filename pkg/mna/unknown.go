package mna

import "fmt"

type UnknownKind uint8

const (
	UnknownVoltage UnknownKind = iota // node voltage
	UnknownCurrent                    // branch current of a voltage-defining element
)

// Unknown is one solution variable. Index is a node index (>= 1) for
// voltages and a branch index (>= 0) for currents.
type Unknown struct {
	Kind  UnknownKind
	Index int
}

func NodeVoltage(node int) Unknown { return Unknown{Kind: UnknownVoltage, Index: node} }

func BranchCurrent(branch int) Unknown { return Unknown{Kind: UnknownCurrent, Index: branch} }

// Column maps the unknown to its 1-based matrix column. numNodes counts the
// reference node, so node columns are 1..numNodes-1 and branch columns
// follow.
func (u Unknown) Column(numNodes int) int {
	if u.Kind == UnknownCurrent {
		return numNodes + u.Index
	}
	return u.Index
}

func (u Unknown) String() string {
	if u.Kind == UnknownCurrent {
		return fmt.Sprintf("I%d", u.Index)
	}
	return fmt.Sprintf("V%d", u.Index)
}
