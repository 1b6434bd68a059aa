// Package migrate implements the migration-based formation process: nodes
// wander the torus grid with a per-node extraversion probability, and any
// two nodes that land on the same cell become connected. It is the older
// sibling of the prestige attachment process and shares its torus start.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/socgrid/socgrid/internal/graph"
	"github.com/socgrid/socgrid/internal/metrics"
)

// ErrNotConverged is returned when the pass ceiling is hit before the
// target geodesic is reached.
var ErrNotConverged = errors.New("migrate: did not converge")

// Config for a migration run. Exactly one of TargetGeodesic and Passes
// must be set: the first runs until the geodesic bound holds, the second
// for a fixed number of movement passes.
type Config struct {
	TargetGeodesic float64
	Passes         int
	// MaxPasses bounds a threshold-seeking run; 0 picks 10000.
	MaxPasses int
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if (c.TargetGeodesic > 0) == (c.Passes > 0) {
		return errors.New("migrate: set exactly one of target geodesic and pass count")
	}
	if c.TargetGeodesic < 0 || c.Passes < 0 || c.MaxPasses < 0 {
		return errors.New("migrate: settings must be non-negative")
	}
	return nil
}

// Result reports a finished run.
type Result struct {
	Passes     int
	EdgesAdded int
	Geodesic   float64
	Converged  bool
}

// Walker moves nodes around the grid and records co-location edges.
type Walker struct {
	cfg       Config
	coords    graph.CoordMap
	locations []graph.Coord
	log       *slog.Logger
}

// NewWalker creates a walker with every node at its home cell. logger may
// be nil.
func NewWalker(cfg Config, coords graph.CoordMap, logger *slog.Logger) (*Walker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	n := coords.Width * coords.Height
	locations := make([]graph.Coord, n)
	for id := 0; id < n; id++ {
		locations[id] = coords.Coord(id)
	}
	return &Walker{cfg: cfg, coords: coords, locations: locations, log: logger}, nil
}

// step moves a location to a random adjacent cell (including diagonals and
// staying put on either axis), wrapping around the torus.
func (w *Walker) step(loc graph.Coord, rng *rand.Rand) graph.Coord {
	return w.coords.Wrap(graph.Coord{
		Row: loc.Row + rng.IntN(3) - 1,
		Col: loc.Col + rng.IntN(3) - 1,
	})
}

// pass gives every node one movement opportunity, gated by its
// extraversion. Nodes that land on a cell another mover already claimed
// this pass become connected to all of them. Returns edges added.
func (w *Walker) pass(g *graph.Graph, attrs *graph.Attrs, rng *rand.Rand) int {
	overlaps := make(map[graph.Coord][]int)
	added := 0
	for person := 0; person < g.NumNodes(); person++ {
		if rng.Float64() >= attrs.Extraversion[person] {
			continue
		}
		loc := w.step(w.locations[person], rng)
		for _, friend := range overlaps[loc] {
			if g.AddEdge(person, friend) {
				added++
			}
		}
		overlaps[loc] = append(overlaps[loc], person)
		w.locations[person] = loc
	}
	return added
}

// Run executes movement passes until the configured stop condition.
// Threshold-seeking runs check the geodesic after every pass and are
// bounded by MaxPasses.
func (w *Walker) Run(ctx context.Context, g *graph.Graph, attrs *graph.Attrs, rng *rand.Rand) (Result, error) {
	var res Result
	if w.cfg.Passes > 0 {
		for i := 0; i < w.cfg.Passes; i++ {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			res.EdgesAdded += w.pass(g, attrs, rng)
			res.Passes++
		}
		geo, err := metrics.AveragePathLength(g)
		if err != nil {
			return res, fmt.Errorf("migrate: final geodesic: %w", err)
		}
		res.Geodesic = geo
		res.Converged = true
		return res, nil
	}

	maxPasses := w.cfg.MaxPasses
	if maxPasses == 0 {
		maxPasses = 10000
	}
	for {
		geo, err := metrics.AveragePathLength(g)
		if err != nil {
			return res, fmt.Errorf("migrate: geodesic: %w", err)
		}
		res.Geodesic = geo
		if geo <= w.cfg.TargetGeodesic {
			res.Converged = true
			return res, nil
		}
		if res.Passes >= maxPasses {
			return res, fmt.Errorf("migrate: %d passes at geodesic %.4f: %w", res.Passes, geo, ErrNotConverged)
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.EdgesAdded += w.pass(g, attrs, rng)
		res.Passes++
		w.log.Debug("migration pass", "pass", res.Passes, "geodesic", geo, "edges_added", res.EdgesAdded)
	}
}
