// Package analysis solves circuits by modified nodal analysis and runs
// operating point, transient and DC sweep analyses on top of the solver.
package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/edp1096/cck-mna/pkg/circuit"
)

type Analysis interface {
	Setup(ckt *circuit.Circuit) error
	Execute(ctx context.Context) error
	GetResults() map[string][]float64
}

type BaseAnalysis struct {
	Circuit *circuit.Circuit
	Solver  *Solver
	results map[string][]float64 // key: variable name, value: result by time or sweep point
}

func NewBaseAnalysis(solver *Solver) *BaseAnalysis {
	if solver == nil {
		solver = NewSolver()
	}
	return &BaseAnalysis{Solver: solver, results: make(map[string][]float64)}
}

// Snapshot maps V(endpoint) for every named endpoint and I(element) for
// every element. Element currents follow each element's own convention.
func Snapshot(ckt *circuit.Circuit, state *State) map[string]float64 {
	solution := make(map[string]float64)
	if state != nil && state.graph != nil {
		for _, name := range state.graph.EndpointNames() {
			if circuit.IsGround(name) {
				continue
			}
			solution[fmt.Sprintf("V(%s)", name)] = state.Voltage(name)
		}
	}
	for _, dev := range ckt.GetDevices() {
		solution[fmt.Sprintf("I(%s)", dev.GetName())] = dev.Current()
	}
	return solution
}

func (a *BaseAnalysis) StoreTimeResult(time float64, solution map[string]float64) {
	// Ignore same time
	if len(a.results["TIME"]) > 0 {
		lastTime := a.results["TIME"][len(a.results["TIME"])-1]
		// 1.999999e-05 == 2.000000e-05
		if math.Abs(time-lastTime) <= 1e-9*math.Max(math.Abs(time), math.Abs(lastTime)) {
			return
		}
	}
	a.StoreResult("TIME", time, solution)
}

// StoreResult appends one row keyed by axis.
func (a *BaseAnalysis) StoreResult(axis string, value float64, solution map[string]float64) {
	rows := len(a.results[axis])
	a.results[axis] = append(a.results[axis], value)

	for name, v := range solution {
		if _, exists := a.results[name]; !exists {
			// a variable showing up late is zero before
			a.results[name] = make([]float64, rows, rows+1)
		}
		a.results[name] = append(a.results[name], v)
	}
}

func (a *BaseAnalysis) GetResults() map[string][]float64 {
	return a.results
}

// Variables lists the result keys, sorted, axis first.
func Variables(results map[string][]float64) []string {
	var axis, names []string
	for name := range results {
		switch name {
		case "TIME", "SWEEP":
			axis = append(axis, name)
		default:
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return append(axis, names...)
}
