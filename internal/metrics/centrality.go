package metrics

import (
	"errors"
	"math"

	"github.com/socgrid/socgrid/internal/graph"
)

// ErrCentralityDiverged is returned when power iteration fails to converge
// within the iteration budget.
var ErrCentralityDiverged = errors.New("metrics: eigenvector centrality did not converge")

// Centrality defaults, matching the tolerances the formation loop was
// tuned against.
const (
	DefaultCentralityIter = 1000
	DefaultCentralityTol  = 1e-10
)

// EigenvectorCentrality returns the eigenvector centrality of every node:
// the principal eigenvector of the adjacency matrix, computed by power
// iteration and normalized so the squares sum to 1. Isolated nodes get
// score 0. tol is the per-node convergence tolerance scaled by N.
func EigenvectorCentrality(g *graph.Graph, maxIter int, tol float64) ([]float64, error) {
	n := g.NumNodes()
	if n == 0 {
		return nil, nil
	}
	x := make([]float64, n)
	next := make([]float64, n)
	for i := range x {
		x[i] = 1.0 / float64(n)
	}
	for iter := 0; iter < maxIter; iter++ {
		for i := range next {
			// Shift by the current score: A+I has the same principal
			// eigenvector as A but converges on bipartite structures
			// (the initial torus lattice is bipartite).
			next[i] = x[i]
		}
		for i := 0; i < n; i++ {
			g.ForNeighbors(i, func(nbr int) {
				next[nbr] += x[i]
			})
		}
		norm := 0.0
		for _, v := range next {
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			norm = 1
		}
		delta := 0.0
		for i := range next {
			next[i] /= norm
			delta += math.Abs(next[i] - x[i])
		}
		x, next = next, x
		if delta < float64(n)*tol {
			return x, nil
		}
	}
	return nil, ErrCentralityDiverged
}
