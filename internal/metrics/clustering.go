package metrics

import (
	"math"

	"github.com/socgrid/socgrid/internal/graph"
)

// LocalClustering returns the clustering coefficient of node n: the
// fraction of its neighbor pairs that are themselves connected. Nodes with
// degree below 2 have coefficient 0.
func LocalClustering(g *graph.Graph, n int) float64 {
	nbrs := g.Neighbors(n)
	k := len(nbrs)
	if k < 2 {
		return 0
	}
	links := 0
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			if g.HasEdge(nbrs[i], nbrs[j]) {
				links++
			}
		}
	}
	return 2 * float64(links) / float64(k*(k-1))
}

// AverageClustering returns the mean local clustering coefficient over all
// nodes.
func AverageClustering(g *graph.Graph) float64 {
	n := g.NumNodes()
	if n == 0 {
		return 0
	}
	total := 0.0
	for i := 0; i < n; i++ {
		total += LocalClustering(g, i)
	}
	return total / float64(n)
}

// Degrees holds summary statistics of the degree sequence.
type Degrees struct {
	Mean   float64
	StdDev float64
	Skew   float64 // biased sample skewness, g1 = m3 / m2^1.5
	Min    int
	Max    int
}

// DegreeStats computes mean, standard deviation and skewness of the degree
// sequence. The skewness is the biased moment estimator, matching the
// statistic recorded by the original experiment logs.
func DegreeStats(g *graph.Graph) Degrees {
	n := g.NumNodes()
	if n == 0 {
		return Degrees{}
	}
	mean := 0.0
	min, max := g.Degree(0), g.Degree(0)
	for i := 0; i < n; i++ {
		d := g.Degree(i)
		mean += float64(d)
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	mean /= float64(n)
	m2, m3 := 0.0, 0.0
	for i := 0; i < n; i++ {
		dev := float64(g.Degree(i)) - mean
		m2 += dev * dev
		m3 += dev * dev * dev
	}
	m2 /= float64(n)
	m3 /= float64(n)
	out := Degrees{Mean: mean, StdDev: math.Sqrt(m2), Min: min, Max: max}
	if m2 > 0 {
		out.Skew = m3 / math.Pow(m2, 1.5)
	}
	return out
}
