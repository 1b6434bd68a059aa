// Package metrics computes the structural measurements that drive
// formation: eigenvector centrality, shortest-path distances, average path
// length (geodesic), clustering, and degree statistics. Everything is
// recomputed from the current graph on each call — the graph mutates
// between calls and stale results would corrupt the attachment odds.
package metrics

import (
	"errors"

	"github.com/socgrid/socgrid/internal/graph"
)

// ErrDisconnected is returned when a global path-length average is
// requested for a graph with unreachable node pairs.
var ErrDisconnected = errors.New("metrics: graph is disconnected")

// Distance returns the shortest-path hop count between a and b via BFS.
// The second return is false when b is unreachable from a.
func Distance(g *graph.Graph, a, b int) (int, bool) {
	if a == b {
		return 0, true
	}
	dist := DistanceMap(g, a, -1)
	d, ok := dist[b]
	return d, ok
}

// DistanceMap runs a breadth-first search from source and returns the hop
// count of every reachable node, including the source at distance 0. A
// non-negative cutoff bounds the search radius; cutoff < 0 means unbounded.
func DistanceMap(g *graph.Graph, source, cutoff int) map[int]int {
	dist := map[int]int{source: 0}
	frontier := []int{source}
	for depth := 0; len(frontier) > 0; depth++ {
		if cutoff >= 0 && depth >= cutoff {
			break
		}
		var next []int
		for _, n := range frontier {
			g.ForNeighbors(n, func(nbr int) {
				if _, seen := dist[nbr]; !seen {
					dist[nbr] = depth + 1
					next = append(next, nbr)
				}
			})
		}
		frontier = next
	}
	return dist
}

// distances runs an unbounded BFS from source into the reusable dist slice,
// where -1 marks unreachable. Returns the number of reached nodes and the
// sum of their distances. Used by AveragePathLength to avoid per-source
// map allocations on the dominant cost path.
func distances(g *graph.Graph, source int, dist []int, queue []int) (reached, sum int) {
	for i := range dist {
		dist[i] = -1
	}
	dist[source] = 0
	queue = queue[:0]
	queue = append(queue, source)
	reached = 1
	for head := 0; head < len(queue); head++ {
		n := queue[head]
		g.ForNeighbors(n, func(nbr int) {
			if dist[nbr] < 0 {
				dist[nbr] = dist[n] + 1
				sum += dist[nbr]
				reached++
				queue = append(queue, nbr)
			}
		})
	}
	return reached, sum
}

// AveragePathLength returns the mean shortest-path length over all ordered
// node pairs, the geodesic. Returns ErrDisconnected if any pair is
// unreachable; callers must detect this before trusting the average.
func AveragePathLength(g *graph.Graph) (float64, error) {
	n := g.NumNodes()
	if n < 2 {
		return 0, nil
	}
	dist := make([]int, n)
	queue := make([]int, 0, n)
	total := 0
	for source := 0; source < n; source++ {
		reached, sum := distances(g, source, dist, queue)
		if reached != n {
			return 0, ErrDisconnected
		}
		total += sum
	}
	return float64(total) / float64(n*(n-1)), nil
}

// IsConnected reports whether every node is reachable from node 0.
func IsConnected(g *graph.Graph) bool {
	if g.NumNodes() == 0 {
		return true
	}
	return len(DistanceMap(g, 0, -1)) == g.NumNodes()
}

// Components returns the connected components of the graph, each as a
// slice of node ids. Components are ordered by their smallest member.
func Components(g *graph.Graph) [][]int {
	n := g.NumNodes()
	seen := make([]bool, n)
	var comps [][]int
	for start := 0; start < n; start++ {
		if seen[start] {
			continue
		}
		var comp []int
		stack := []int{start}
		seen[start] = true
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, node)
			g.ForNeighbors(node, func(nbr int) {
				if !seen[nbr] {
					seen[nbr] = true
					stack = append(stack, nbr)
				}
			})
		}
		comps = append(comps, comp)
	}
	return comps
}
