// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError lists the nodes left with unmet dependencies.
	CycleError struct {
		Cycle []string
	}

	// dag orders nodes so that every edge from -> to places from first.
	dag struct {
		index     map[string]int
		nodes     []string
		adjacency map[string][]string
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

func newDAG() *dag {
	return &dag{index: make(map[string]int), adjacency: make(map[string][]string)}
}

func (g *dag) addNode(name string) {
	if _, ok := g.index[name]; ok {
		return
	}
	g.index[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

func (g *dag) addEdge(from, to string) {
	g.addNode(from)
	g.addNode(to)
	if !slices.Contains(g.adjacency[from], to) {
		g.adjacency[from] = append(g.adjacency[from], to)
	}
}

// sort is Kahn's algorithm where the ready set is always drained lowest
// insertion index first, so independent nodes keep insertion order.
func (g *dag) sort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for _, targets := range g.adjacency {
		for _, t := range targets {
			inDegree[t]++
		}
	}
	var ready []int
	for i, n := range g.nodes {
		if inDegree[n] == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		n := g.nodes[ready[0]]
		ready = ready[1:]
		order = append(order, n)
		for _, t := range g.adjacency[n] {
			inDegree[t]--
			if inDegree[t] == 0 {
				idx := g.index[t]
				pos, _ := slices.BinarySearch(ready, idx)
				ready = slices.Insert(ready, pos, idx)
			}
		}
	}
	if len(order) != len(g.nodes) {
		var cycle []string
		for _, n := range g.nodes {
			if inDegree[n] > 0 {
				cycle = append(cycle, n)
			}
		}
		return nil, &CycleError{Cycle: cycle}
	}
	return order, nil
}
