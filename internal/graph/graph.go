// Package graph provides the undirected simple graph that every other
// package mutates. Nodes are dense integer indices 0..N-1; adjacency is a
// slice of neighbor sets. The representation never allows self-loops and
// keeps edges symmetric by construction.
package graph

import (
	"errors"
	"fmt"
)

// ErrInvalidDimensions is returned by NewTorus for non-positive grid sizes.
var ErrInvalidDimensions = errors.New("graph: grid dimensions must be positive")

// Graph is an undirected simple graph over a fixed node-index space.
// The node count never changes after construction; edges come and go.
type Graph struct {
	adj []map[int]struct{}
	// edge count maintained incrementally so NumEdges is O(1)
	edges int
}

// New creates a graph with n isolated nodes.
func New(n int) *Graph {
	adj := make([]map[int]struct{}, n)
	for i := range adj {
		adj[i] = make(map[int]struct{}, 4)
	}
	return &Graph{adj: adj}
}

// NumNodes returns the number of nodes.
func (g *Graph) NumNodes() int { return len(g.adj) }

// NumEdges returns the number of undirected edges.
func (g *Graph) NumEdges() int { return g.edges }

// HasEdge reports whether the undirected edge (a,b) exists.
func (g *Graph) HasEdge(a, b int) bool {
	if a < 0 || a >= len(g.adj) || b < 0 || b >= len(g.adj) {
		return false
	}
	_, ok := g.adj[a][b]
	return ok
}

// AddEdge adds the undirected edge (a,b). Adding an existing edge or a
// self-loop is a no-op; the return value reports whether the graph changed,
// so iteration statistics never double-count a duplicate.
func (g *Graph) AddEdge(a, b int) bool {
	if a == b || g.HasEdge(a, b) {
		return false
	}
	g.adj[a][b] = struct{}{}
	g.adj[b][a] = struct{}{}
	g.edges++
	return true
}

// RemoveEdge removes the undirected edge (a,b) if present.
func (g *Graph) RemoveEdge(a, b int) bool {
	if !g.HasEdge(a, b) {
		return false
	}
	delete(g.adj[a], b)
	delete(g.adj[b], a)
	g.edges--
	return true
}

// Degree returns the number of neighbors of n.
func (g *Graph) Degree(n int) int { return len(g.adj[n]) }

// Neighbors returns the neighbors of n as a fresh slice. Order is not
// deterministic; callers that sample must sort or weight explicitly.
func (g *Graph) Neighbors(n int) []int {
	out := make([]int, 0, len(g.adj[n]))
	for nbr := range g.adj[n] {
		out = append(out, nbr)
	}
	return out
}

// ForNeighbors calls fn for each neighbor of n, avoiding an allocation on
// hot paths such as BFS.
func (g *Graph) ForNeighbors(n int, fn func(nbr int)) {
	for nbr := range g.adj[n] {
		fn(nbr)
	}
}

// CommonNeighbors returns the number of nodes adjacent to both a and b.
func (g *Graph) CommonNeighbors(a, b int) int {
	small, large := g.adj[a], g.adj[b]
	if len(large) < len(small) {
		small, large = large, small
	}
	count := 0
	for n := range small {
		if _, ok := large[n]; ok {
			count++
		}
	}
	return count
}

// DetachNode removes every edge incident to n, leaving n isolated. The node
// itself stays in the index space — this models the original removal process
// where a node is deleted and immediately re-added.
func (g *Graph) DetachNode(n int) {
	for nbr := range g.adj[n] {
		delete(g.adj[nbr], n)
		g.edges--
	}
	g.adj[n] = make(map[int]struct{}, 4)
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := &Graph{adj: make([]map[int]struct{}, len(g.adj)), edges: g.edges}
	for i, set := range g.adj {
		m := make(map[int]struct{}, len(set))
		for n := range set {
			m[n] = struct{}{}
		}
		c.adj[i] = m
	}
	return c
}

// Validate checks the structural invariants: symmetric adjacency and no
// self-loops. It is used by snapshot loading and tests.
func (g *Graph) Validate() error {
	for a, set := range g.adj {
		for b := range set {
			if a == b {
				return fmt.Errorf("graph: node %d has a self-loop", a)
			}
			if _, ok := g.adj[b][a]; !ok {
				return fmt.Errorf("graph: edge (%d,%d) is not symmetric", a, b)
			}
		}
	}
	return nil
}
