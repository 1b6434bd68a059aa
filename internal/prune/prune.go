// Package prune implements the birth-death edge process that keeps the
// network from drifting toward completeness. A pruned node loses each
// non-anchor edge with probability falling in the number of mutual
// acquaintances behind it; the four lattice anchors always survive.
package prune

import (
	"math/rand/v2"

	"github.com/socgrid/socgrid/internal/graph"
	"github.com/socgrid/socgrid/internal/metrics"
)

// Result reports what a single pruning did, for the controller's counters.
type Result struct {
	Node    int
	Kept    int
	Removed int
}

// Pruner strips nodes back toward their initial lattice neighbors.
type Pruner struct {
	Initial graph.InitialNeighbors
}

// Prune selects the retained neighbors of rmv, detaches the node, and
// re-attaches only the kept set. Anchor neighbors from the initial lattice
// are always kept; every other neighbor survives with probability
// (mutuals+1)/degree. The anchor guarantee means a node that still holds
// its lattice edges can never lose them.
func (p *Pruner) Prune(g *graph.Graph, rmv int, rng *rand.Rand) Result {
	nbrs := g.Neighbors(rmv)
	numNbrs := len(nbrs)
	keep := make([]int, 0, numNbrs)
	for _, nbr := range nbrs {
		if p.Initial.Contains(rmv, nbr) {
			keep = append(keep, nbr)
			continue
		}
		mutuals := g.CommonNeighbors(rmv, nbr)
		odd := float64(mutuals+1) / float64(numNbrs)
		if rng.Float64() < odd {
			keep = append(keep, nbr)
		}
	}
	g.DetachNode(rmv)
	for _, choice := range keep {
		g.AddEdge(rmv, choice)
	}
	return Result{Node: rmv, Kept: len(keep), Removed: numNbrs - len(keep)}
}

// Reconnect repairs a disconnected graph by repeatedly picking a random
// member of the smallest component and restoring up to cap of its missing
// anchor edges, until the graph is connected again. Returns the number of
// edges added. Anchor edges always span back toward the main lattice, so
// the loop terminates: each round either restores an anchor or moves on to
// a node that can.
func Reconnect(g *graph.Graph, initial graph.InitialNeighbors, rng *rand.Rand, cap int) int {
	added := 0
	for !metrics.IsConnected(g) {
		comps := metrics.Components(g)
		smallest := comps[0]
		for _, c := range comps[1:] {
			if len(c) < len(smallest) {
				smallest = c
			}
		}
		el := smallest[rng.IntN(len(smallest))]
		restored := 0
		for _, anchor := range initial[el] {
			if restored == cap {
				break
			}
			if g.AddEdge(el, anchor) {
				restored++
				added++
			}
		}
	}
	return added
}
