package circuit

// WireFlows fills in the currents of merged wires. flows holds the current
// from node0 to node1 through every element, indexed like the graph's
// elements; the entries of merged wires are overwritten. Each wire carries
// what KCL requires on a spanning forest of the merged endpoints. Wires that
// close a loop carry nothing.
func (g *Graph) WireFlows(flows []float64) []float64 {
	out := append([]float64(nil), flows...)
	if len(g.wires) == 0 {
		return out
	}

	// current drawn out of each endpoint by everything but merged wires
	drawn := make([]float64, len(g.endpoints))
	for i, e := range g.ends {
		if g.shorted[i] {
			continue
		}
		drawn[e[0]] += flows[i]
		drawn[e[1]] -= flows[i]
	}

	type edge struct{ wire, to int }
	adj := make([][]edge, len(g.endpoints))
	for _, w := range g.wires {
		out[w] = 0
		a, b := g.ends[w][0], g.ends[w][1]
		if a == b {
			continue
		}
		adj[a] = append(adj[a], edge{w, b})
		adj[b] = append(adj[b], edge{w, a})
	}

	visited := make([]bool, len(g.endpoints))
	parentWire := make([]int, len(g.endpoints))
	parent := make([]int, len(g.endpoints))
	var order []int

	for root := range g.endpoints {
		if visited[root] || len(adj[root]) == 0 {
			continue
		}
		visited[root] = true
		parentWire[root] = -1
		queue := []int{root}
		for len(queue) > 0 {
			e := queue[0]
			queue = queue[1:]
			order = append(order, e)
			for _, ed := range adj[e] {
				if visited[ed.to] {
					continue
				}
				visited[ed.to] = true
				parent[ed.to] = e
				parentWire[ed.to] = ed.wire
				queue = append(queue, ed.to)
			}
		}
	}

	// leaves first: the tree wire into e supplies what e's subtree draws
	for k := len(order) - 1; k >= 0; k-- {
		e := order[k]
		w := parentWire[e]
		if w < 0 {
			continue
		}
		p := parent[e]
		if g.ends[w][0] == p {
			out[w] = drawn[e]
		} else {
			out[w] = -drawn[e]
		}
		drawn[p] += drawn[e]
	}

	return out
}
