// SPDX-License-Identifier: MPL-2.0

// Package dag orders module import graphs. The live-binding graph tolerates
// import cycles, so a cycle here is a diagnostic rather than a load failure:
// it explains which modules observed partially-initialized bindings while
// loading.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError reports an import cycle that prevents a full ordering.
	CycleError struct {
		// Cycle is one closed path through the cycle, first node repeated
		// at the end (e.g. a -> b -> a).
		Cycle []string
		// Blocked lists every node that could not be ordered, in insertion order.
		Blocked []string
	}

	// Graph is a directed graph of module ids. An edge from A to B means
	// "A loads before B", i.e. B imports A.
	Graph struct {
		adjacency map[string][]string
		nodes     []string
		nodeSet   map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("import cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge adds from -> to, adding both nodes when missing. Duplicate edges
// are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if slices.Contains(g.adjacency[from], to) {
		return
	}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.nodes)
}

// Successors returns the nodes that must come after name.
func (g *Graph) Successors(name string) []string {
	return slices.Clone(g.adjacency[name])
}

// TopologicalSort returns an order in which every node follows its
// predecessors (Kahn's algorithm). Nodes at the same level keep insertion
// order. A *CycleError is returned when the graph has a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	queue := make([]string, 0)
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) == len(g.nodes) {
		return result, nil
	}

	var blocked []string
	for _, node := range g.nodes {
		if inDegree[node] > 0 {
			blocked = append(blocked, node)
		}
	}
	return nil, &CycleError{Cycle: g.findCycle(blocked), Blocked: blocked}
}

// findCycle walks the blocked subgraph depth-first from its first node
// until a node on the current path repeats.
func (g *Graph) findCycle(blocked []string) []string {
	if len(blocked) == 0 {
		return nil
	}
	inBlocked := make(map[string]bool, len(blocked))
	for _, node := range blocked {
		inBlocked[node] = true
	}

	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(blocked))
	var path []string

	var visit func(node string) []string
	visit = func(node string) []string {
		state[node] = onPath
		path = append(path, node)
		for _, next := range g.adjacency[node] {
			if !inBlocked[next] {
				continue
			}
			switch state[next] {
			case onPath:
				start := slices.Index(path, next)
				cycle := slices.Clone(path[start:])
				return append(cycle, next)
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		state[node] = done
		return nil
	}

	for _, node := range blocked {
		if state[node] == unvisited {
			if cycle := visit(node); cycle != nil {
				return cycle
			}
		}
	}
	return blocked
}
