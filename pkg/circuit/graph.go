package circuit

import (
	"errors"
	"fmt"

	"github.com/edp1096/cck-mna/pkg/device"
)

// ErrTopology reports a circuit whose node graph cannot be built.
var ErrTopology = errors.New("topology error")

// IsGround reports whether an endpoint name denotes the reference node.
func IsGround(name string) bool {
	return name == "0" || name == "gnd"
}

type unionFind struct {
	parent []int
	rank   []int
}

func (u *unionFind) add() int {
	id := len(u.parent)
	u.parent = append(u.parent, id)
	u.rank = append(u.rank, 0)
	return id
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}

func (u *unionFind) clone() *unionFind {
	return &unionFind{
		parent: append([]int(nil), u.parent...),
		rank:   append([]int(nil), u.rank...),
	}
}

// Graph maps the elements of one topology onto matrix node indices. Node 0
// is the reference. Endpoint 0 is the ground endpoint and always exists.
type Graph struct {
	numNodes    int
	numBranches int

	endpoints    []string // endpoint id -> name
	endpointNode []int    // endpoint id -> node
	endpointID   map[string]int
	nodeEnds     [][]int // node -> endpoint ids, first-seen order

	ends    [][2]int // element -> endpoint ids
	nodes   [][2]int // element -> node indices
	branch  []int    // element -> branch index, -1 without one
	shorted []bool
	wires   []int // shorted wire element indices

	floating []string
}

// BuildGraph numbers the nodes of devs. Zero-resistance wires merge their
// endpoints. A connected component that never reaches ground is referenced
// to 0 V at its first-seen endpoint; Floating lists those endpoints.
func BuildGraph(devs []device.Device) (*Graph, error) {
	g := &Graph{
		endpointID: map[string]int{},
		ends:       make([][2]int, len(devs)),
		nodes:      make([][2]int, len(devs)),
		branch:     make([]int, len(devs)),
		shorted:    make([]bool, len(devs)),
	}

	uf := &unionFind{}
	g.endpointID["0"] = uf.add()
	g.endpoints = append(g.endpoints, "0")

	endpoint := func(name string) int {
		if IsGround(name) {
			return 0
		}
		if id, ok := g.endpointID[name]; ok {
			return id
		}
		id := uf.add()
		g.endpointID[name] = id
		g.endpoints = append(g.endpoints, name)
		return id
	}

	for i, dev := range devs {
		names := dev.GetNodeNames()
		if len(names) != 2 {
			return nil, fmt.Errorf("%w: element %s has %d endpoints", ErrTopology, dev.GetName(), len(names))
		}
		for k, name := range names {
			if name == "" {
				return nil, fmt.Errorf("%w: element %s endpoint %d is not connected", ErrTopology, dev.GetName(), k)
			}
			g.ends[i][k] = endpoint(name)
		}
		if s, ok := dev.(device.Shorting); ok && s.Shorted() {
			g.shorted[i] = true
			g.wires = append(g.wires, i)
		}
	}

	// components over every element, wires included
	comp := uf.clone()
	for i := range devs {
		comp.union(g.ends[i][0], g.ends[i][1])
	}
	for _, i := range g.wires {
		uf.union(g.ends[i][0], g.ends[i][1])
	}

	grounded := map[int]bool{comp.find(0): true}
	for id := 1; id < len(g.endpoints); id++ {
		root := comp.find(id)
		if grounded[root] {
			continue
		}
		grounded[root] = true
		g.floating = append(g.floating, g.endpoints[id])
		uf.union(id, 0)
	}

	nodeOfRoot := map[int]int{uf.find(0): 0}
	g.endpointNode = make([]int, len(g.endpoints))
	g.nodeEnds = [][]int{nil}
	for id := range g.endpoints {
		root := uf.find(id)
		n, ok := nodeOfRoot[root]
		if !ok {
			n = len(g.nodeEnds)
			nodeOfRoot[root] = n
			g.nodeEnds = append(g.nodeEnds, nil)
		}
		g.endpointNode[id] = n
		g.nodeEnds[n] = append(g.nodeEnds[n], id)
	}
	g.numNodes = len(g.nodeEnds)

	for i, dev := range devs {
		g.nodes[i] = [2]int{g.endpointNode[g.ends[i][0]], g.endpointNode[g.ends[i][1]]}
		g.branch[i] = -1
		if !g.shorted[i] && dev.NeedsBranch() {
			g.branch[i] = g.numBranches
			g.numBranches++
		}
	}

	return g, nil
}

// NumNodes counts the reference node.
func (g *Graph) NumNodes() int { return g.numNodes }

func (g *Graph) NumBranches() int { return g.numBranches }

// Nodes returns the node indices of element i.
func (g *Graph) Nodes(i int) (int, int) { return g.nodes[i][0], g.nodes[i][1] }

// Branch returns the branch index of element i, or -1.
func (g *Graph) Branch(i int) int { return g.branch[i] }

func (g *Graph) Shorted(i int) bool { return g.shorted[i] }

// NodeOf resolves an endpoint name.
func (g *Graph) NodeOf(endpoint string) (int, bool) {
	if IsGround(endpoint) {
		return 0, true
	}
	id, ok := g.endpointID[endpoint]
	if !ok {
		return 0, false
	}
	return g.endpointNode[id], true
}

// Endpoints lists the endpoint names merged into node.
func (g *Graph) Endpoints(node int) []string {
	if node < 0 || node >= len(g.nodeEnds) {
		return nil
	}
	names := make([]string, 0, len(g.nodeEnds[node]))
	for _, id := range g.nodeEnds[node] {
		names = append(names, g.endpoints[id])
	}
	return names
}

// EndpointNames lists every endpoint in first-seen order, ground first.
func (g *Graph) EndpointNames() []string {
	return append([]string(nil), g.endpoints...)
}

// Wires lists the element indices of merged wires.
func (g *Graph) Wires() []int { return g.wires }

// Floating lists the endpoints pinned to the reference because their
// component has no path to ground.
func (g *Graph) Floating() []string { return g.floating }
