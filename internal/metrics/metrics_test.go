package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/socgrid/socgrid/internal/graph"
)

func torus(t *testing.T, w, h int) *graph.Graph {
	t.Helper()
	g, _, _, err := graph.NewTorus(w, h)
	if err != nil {
		t.Fatalf("NewTorus(%d,%d): %v", w, h, err)
	}
	return g
}

func path(t *testing.T, n int) *graph.Graph {
	t.Helper()
	g := graph.New(n)
	for i := 0; i < n-1; i++ {
		g.AddEdge(i, i+1)
	}
	return g
}

func TestDistance(t *testing.T) {
	g := path(t, 5)

	tests := []struct {
		a, b   int
		want   int
		wantOK bool
	}{
		{a: 0, b: 0, want: 0, wantOK: true},
		{a: 0, b: 1, want: 1, wantOK: true},
		{a: 0, b: 4, want: 4, wantOK: true},
		{a: 4, b: 1, want: 3, wantOK: true},
	}
	for _, tt := range tests {
		got, ok := Distance(g, tt.a, tt.b)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Distance(%d,%d) = (%d,%v), want (%d,%v)", tt.a, tt.b, got, ok, tt.want, tt.wantOK)
		}
	}

	// Unreachable pair.
	disc := graph.New(3)
	disc.AddEdge(0, 1)
	if _, ok := Distance(disc, 0, 2); ok {
		t.Error("Distance to an unreachable node reported ok")
	}
}

func TestDistanceMapCutoff(t *testing.T) {
	g := path(t, 6)

	m := DistanceMap(g, 0, 2)
	if len(m) != 3 {
		t.Fatalf("DistanceMap cutoff 2 reached %d nodes, want 3", len(m))
	}
	for node, d := range m {
		if d > 2 {
			t.Errorf("node %d at distance %d exceeds cutoff", node, d)
		}
	}

	full := DistanceMap(g, 0, -1)
	if len(full) != 6 {
		t.Errorf("unbounded DistanceMap reached %d nodes, want 6", len(full))
	}
}

func TestAveragePathLength(t *testing.T) {
	// Triangle: every pair at distance 1.
	g := graph.New(3)
	g.AddEdge(0, 1)
	g.AddEdge(1, 2)
	g.AddEdge(2, 0)
	got, err := AveragePathLength(g)
	if err != nil {
		t.Fatalf("AveragePathLength: %v", err)
	}
	if got != 1 {
		t.Errorf("triangle geodesic = %v, want 1", got)
	}

	// 3x3 torus: each node has 4 at distance 1 and 4 at distance 2.
	tor := torus(t, 3, 3)
	got, err = AveragePathLength(tor)
	if err != nil {
		t.Fatalf("AveragePathLength: %v", err)
	}
	want := 1.5
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("3x3 torus geodesic = %v, want %v", got, want)
	}
}

func TestAveragePathLengthDisconnected(t *testing.T) {
	g := graph.New(4)
	g.AddEdge(0, 1)
	g.AddEdge(2, 3)
	if _, err := AveragePathLength(g); !errors.Is(err, ErrDisconnected) {
		t.Errorf("error = %v, want ErrDisconnected", err)
	}
}

func TestComponents(t *testing.T) {
	g := graph.New(5)
	g.AddEdge(0, 1)
	g.AddEdge(3, 4)

	comps := Components(g)
	if len(comps) != 3 {
		t.Fatalf("Components() = %d components, want 3", len(comps))
	}
	if IsConnected(g) {
		t.Error("IsConnected() = true for a split graph")
	}
	if !IsConnected(torus(t, 4, 4)) {
		t.Error("IsConnected() = false for a torus")
	}
}

func TestEigenvectorCentrality(t *testing.T) {
	// On a vertex-transitive graph every node has equal centrality.
	tor := torus(t, 4, 4)
	c, err := EigenvectorCentrality(tor, DefaultCentralityIter, DefaultCentralityTol)
	if err != nil {
		t.Fatalf("EigenvectorCentrality: %v", err)
	}
	want := 1.0 / math.Sqrt(float64(tor.NumNodes()))
	sumsq := 0.0
	for n, v := range c {
		if math.Abs(v-want) > 1e-6 {
			t.Fatalf("centrality[%d] = %v, want %v", n, v, want)
		}
		sumsq += v * v
	}
	if math.Abs(sumsq-1) > 1e-9 {
		t.Errorf("sum of squares = %v, want 1", sumsq)
	}
}

func TestEigenvectorCentralityStar(t *testing.T) {
	// Star: the hub must dominate the leaves.
	g := graph.New(5)
	for leaf := 1; leaf < 5; leaf++ {
		g.AddEdge(0, leaf)
	}
	c, err := EigenvectorCentrality(g, DefaultCentralityIter, DefaultCentralityTol)
	if err != nil {
		t.Fatalf("EigenvectorCentrality: %v", err)
	}
	for leaf := 1; leaf < 5; leaf++ {
		if c[0] <= c[leaf] {
			t.Errorf("hub centrality %v not above leaf %v", c[0], c[leaf])
		}
	}
}

func TestLocalClustering(t *testing.T) {
	g := graph.New(4)
	g.AddEdge(0, 1)
	g.AddEdge(0, 2)
	g.AddEdge(0, 3)
	g.AddEdge(1, 2)

	if got := LocalClustering(g, 0); math.Abs(got-1.0/3.0) > 1e-12 {
		t.Errorf("LocalClustering(0) = %v, want 1/3", got)
	}
	if got := LocalClustering(g, 3); got != 0 {
		t.Errorf("LocalClustering(3) = %v, want 0 for degree 1", got)
	}

	// The bare torus has no triangles.
	if got := AverageClustering(torus(t, 5, 5)); got != 0 {
		t.Errorf("torus AverageClustering = %v, want 0", got)
	}
}

func TestDegreeStats(t *testing.T) {
	tor := torus(t, 4, 4)
	stats := DegreeStats(tor)
	if stats.Mean != 4 || stats.StdDev != 0 || stats.Skew != 0 {
		t.Errorf("torus DegreeStats = %+v, want mean 4, zero spread", stats)
	}
	if stats.Min != 4 || stats.Max != 4 {
		t.Errorf("torus degree range = [%d,%d], want [4,4]", stats.Min, stats.Max)
	}

	star := graph.New(5)
	for leaf := 1; leaf < 5; leaf++ {
		star.AddEdge(0, leaf)
	}
	s := DegreeStats(star)
	if s.Skew <= 0 {
		t.Errorf("star degree skew = %v, want positive", s.Skew)
	}
	if s.Min != 1 || s.Max != 4 {
		t.Errorf("star degree range = [%d,%d], want [1,4]", s.Min, s.Max)
	}
}
