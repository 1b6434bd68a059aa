// Package equilibrium drives network formation: the Grower takes the torus
// lattice to a target geodesic by repeated attachment, and the Controller
// then alternates attachment with pruning until the average path length
// stops drifting.
package equilibrium

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/socgrid/socgrid/internal/attach"
	"github.com/socgrid/socgrid/internal/graph"
	"github.com/socgrid/socgrid/internal/metrics"
)

// ErrNotConverged is returned when an iteration ceiling cuts a run short.
// Partial results are still returned alongside it.
var ErrNotConverged = errors.New("equilibrium: did not converge")

// GrowthConfig parameterizes the threshold-seeking growth phase.
type GrowthConfig struct {
	// TargetGeodesic is the upper bound on average path length; growth
	// stops once the graph is at or below it.
	TargetGeodesic float64
	// CheckEvery is the number of attachment draws between geodesic
	// checks, amortizing the expensive global measurement. 0 picks N/10,
	// or N/4 for eigen-decay, whose draws are expensive enough that the
	// geodesic check is no longer the dominant cost.
	CheckEvery int
	// MaxIterations bounds total draws; 0 picks 1000*N.
	MaxIterations int
}

// Validate checks the configuration.
func (c GrowthConfig) Validate() error {
	if c.TargetGeodesic <= 1 {
		return fmt.Errorf("equilibrium: target geodesic must exceed 1, got %v", c.TargetGeodesic)
	}
	if c.CheckEvery < 0 {
		return fmt.Errorf("equilibrium: check interval must be non-negative, got %d", c.CheckEvery)
	}
	return nil
}

// GrowthResult reports a finished growth phase.
type GrowthResult struct {
	Iterations int
	Skipped    int // draws abandoned for lack of candidates
	Geodesic   float64
	Converged  bool
}

// Grower runs the growth phase with a given attachment strategy.
type Grower struct {
	cfg      GrowthConfig
	strategy attach.Strategy
	log      *slog.Logger
}

// NewGrower creates a grower. logger may be nil.
func NewGrower(cfg GrowthConfig, strategy attach.Strategy, logger *slog.Logger) (*Grower, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strategy == nil {
		return nil, errors.New("equilibrium: nil attachment strategy")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Grower{cfg: cfg, strategy: strategy, log: logger}, nil
}

// Run grows g until its geodesic drops to the target, checking the
// geodesic only every CheckEvery draws. Attachment only ever adds edges,
// so on a connected start the geodesic is non-increasing and the loop
// terminates at the latest when the graph is complete — unless the ceiling
// cuts it off first, which returns ErrNotConverged.
func (gr *Grower) Run(ctx context.Context, g *graph.Graph, attrs *graph.Attrs, rng *rand.Rand) (GrowthResult, error) {
	numNodes := g.NumNodes()
	checkEvery := gr.cfg.CheckEvery
	if checkEvery == 0 {
		checkEvery = max(1, numNodes/10)
		if _, ok := gr.strategy.(*attach.EigenDecay); ok {
			checkEvery = max(1, numNodes/4)
		}
	}
	maxIter := gr.cfg.MaxIterations
	if maxIter == 0 {
		maxIter = 1000 * numNodes
	}

	var res GrowthResult
	for {
		geo, err := metrics.AveragePathLength(g)
		if err != nil {
			return res, fmt.Errorf("equilibrium: growth geodesic: %w", err)
		}
		res.Geodesic = geo
		gr.log.Debug("growth check", "iterations", res.Iterations, "geodesic", geo)
		if geo <= gr.cfg.TargetGeodesic {
			res.Converged = true
			return res, nil
		}
		if res.Iterations >= maxIter {
			return res, fmt.Errorf("equilibrium: growth hit %d iterations at geodesic %.4f: %w",
				res.Iterations, geo, ErrNotConverged)
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		for j := 0; j < checkEvery; j++ {
			n := rng.IntN(numNodes)
			a, err := gr.strategy.Propose(g, attrs, n, rng)
			if errors.Is(err, attach.ErrNoCandidates) {
				res.Skipped++
				res.Iterations++
				continue
			}
			if err != nil {
				return res, fmt.Errorf("equilibrium: growth attachment: %w", err)
			}
			g.AddEdge(n, a)
			res.Iterations++
		}
	}
}
