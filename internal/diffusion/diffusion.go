// Package diffusion runs the asynchronous conformity contagion over a
// fixed graph: one random node per step compares its binary value with its
// neighbors and flips with a conformity-weighted probability, until no node
// has changed for two full generations.
package diffusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/socgrid/socgrid/internal/graph"
	"github.com/socgrid/socgrid/internal/logging"
)

// ErrNotConverged is returned when the step ceiling is hit before the
// process freezes. The partial Result is still returned alongside it.
var ErrNotConverged = errors.New("diffusion: simulation did not converge")

// InitMode selects how node values are assigned before the process starts.
type InitMode string

const (
	// InitRandom assigns every node a uniform random binary value.
	InitRandom InitMode = "random"
	// InitSeeded zeroes every node and converts the most-extraverted node
	// into an immune seed adopter (value 1, conformity 0), optionally with
	// some of its neighbors.
	InitSeeded InitMode = "seeded"
)

// Config for one diffusion run.
type Config struct {
	// Init selects the initial value assignment.
	Init InitMode
	// Power is the exponent of the conformity weighting; 1 gives the
	// linear ratio diff/(same+diff).
	Power float64
	// SeedCount is the number of the seed adopter's neighbors converted
	// alongside it (seeded mode only). All of them if fewer exist.
	SeedCount int
	// ConversionThreshold stops a seeded run early once the fraction of
	// unconverted nodes falls to this level. Zero disables the early stop.
	ConversionThreshold float64
	// MaxSteps bounds the run; 0 picks a default of 1000*N steps.
	MaxSteps int
	// SampleEvery records a TracePoint every that many steps. Zero
	// disables tracing.
	SampleEvery int
}

// DefaultConfig returns the canonical settings: random init, linear
// conformity weighting.
func DefaultConfig() Config {
	return Config{Init: InitRandom, Power: 1}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Init != InitRandom && c.Init != InitSeeded {
		return fmt.Errorf("diffusion: unknown init mode %q", c.Init)
	}
	if c.Power <= 0 {
		return fmt.Errorf("diffusion: power must be positive, got %v", c.Power)
	}
	if c.SeedCount < 0 {
		return fmt.Errorf("diffusion: seed count must be non-negative, got %d", c.SeedCount)
	}
	if c.ConversionThreshold < 0 || c.ConversionThreshold > 1 {
		return fmt.Errorf("diffusion: conversion threshold %v outside [0,1]", c.ConversionThreshold)
	}
	if c.SampleEvery < 0 {
		return fmt.Errorf("diffusion: sample interval must be non-negative, got %d", c.SampleEvery)
	}
	return nil
}

// TracePoint is one sampled observation of a running process.
type TracePoint struct {
	Step         int
	Generation   int
	Flips        int
	ZeroFraction float64
}

// Result summarizes a finished run.
type Result struct {
	// Steps is the number of update draws performed.
	Steps int
	// Flips is the number of accepted value changes.
	Flips int
	// Generations is Steps divided by the node count, rounded down.
	Generations int
	// ZeroFraction is the final fraction of nodes holding value 0.
	ZeroFraction float64
	// Converged is false only when the run was cut off by MaxSteps.
	Converged bool
	// EarlyAdoption is true when a seeded run stopped because the
	// unconverted fraction crossed the threshold.
	EarlyAdoption bool
	// Trace holds periodic observations when SampleEvery is set.
	Trace []TracePoint
}

// Simulator runs the contagion process. It mutates only attrs.Value; the
// graph is read-only throughout.
type Simulator struct {
	cfg    Config
	log    *slog.Logger
	events *logging.EventLogger
}

// NewSimulator creates a simulator. logger may be nil.
func NewSimulator(cfg Config, logger *slog.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Simulator{cfg: cfg, log: logger}, nil
}

// SetEventLogger attaches a per-flip event trace. events may be nil.
func (s *Simulator) SetEventLogger(events *logging.EventLogger) {
	s.events = events
}

// Init assigns starting values per the configured mode. Seeded mode sets
// the seed's conformity to zero, making it immune to reversion.
func (s *Simulator) Init(g *graph.Graph, attrs *graph.Attrs, rng *rand.Rand) {
	switch s.cfg.Init {
	case InitRandom:
		for n := range attrs.Value {
			attrs.Value[n] = uint8(rng.IntN(2))
		}
	case InitSeeded:
		for n := range attrs.Value {
			attrs.Value[n] = 0
		}
		seed := attrs.MostExtraverted()
		attrs.Value[seed] = 1
		attrs.Conformity[seed] = 0
		if s.cfg.SeedCount > 0 {
			nbrs := g.Neighbors(seed)
			rng.Shuffle(len(nbrs), func(i, j int) { nbrs[i], nbrs[j] = nbrs[j], nbrs[i] })
			take := min(s.cfg.SeedCount, len(nbrs))
			for _, nbr := range nbrs[:take] {
				attrs.Value[nbr] = 1
			}
		}
		s.log.Debug("seeded diffusion", "seed", seed, "disciples", min(s.cfg.SeedCount, g.Degree(seed)))
	}
}

// flipProbability is the conformity-weighted chance that node n adopts the
// opposing value: conformity * diff^p / (same^p + diff^p). A node with no
// disagreeing neighbors, or no neighbors at all, never flips.
func (s *Simulator) flipProbability(g *graph.Graph, attrs *graph.Attrs, n int) float64 {
	myValue := attrs.Value[n]
	same, diff := 0, 0
	g.ForNeighbors(n, func(nbr int) {
		if attrs.Value[nbr] == myValue {
			same++
		} else {
			diff++
		}
	})
	if diff == 0 {
		return 0
	}
	p := s.cfg.Power
	if p == 1 {
		return attrs.Conformity[n] * float64(diff) / float64(same+diff)
	}
	dp := math.Pow(float64(diff), p)
	return attrs.Conformity[n] * dp / (math.Pow(float64(same), p) + dp)
}

// Run executes the process until it freezes (no flip for two full
// generations), a seeded run crosses its adoption threshold, the step
// ceiling is hit, or ctx is cancelled. attrs.Value must already be
// initialized, normally via Init.
func (s *Simulator) Run(ctx context.Context, g *graph.Graph, attrs *graph.Attrs, rng *rand.Rand) (Result, error) {
	numNodes := g.NumNodes()
	maxSteps := s.cfg.MaxSteps
	if maxSteps == 0 {
		maxSteps = 1000 * numNodes
	}

	var res Result
	nStayedSame := 0
	for nStayedSame < 2*numNodes {
		if s.cfg.Init == InitSeeded && s.cfg.ConversionThreshold > 0 &&
			attrs.ZeroFraction() <= s.cfg.ConversionThreshold {
			res.EarlyAdoption = true
			break
		}
		if res.Steps >= maxSteps {
			res.Generations = res.Steps / numNodes
			res.ZeroFraction = attrs.ZeroFraction()
			return res, fmt.Errorf("diffusion: %d steps without freezing: %w", res.Steps, ErrNotConverged)
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		res.Steps++
		n := rng.IntN(numNodes)
		if rng.Float64() < s.flipProbability(g, attrs, n) {
			attrs.Value[n] = (attrs.Value[n] + 1) % 2
			res.Flips++
			nStayedSame = 0
			if s.events != nil {
				s.events.Log(map[string]any{
					"event": "flip", "step": res.Steps,
					"node": n, "value": attrs.Value[n],
				})
			}
		} else {
			nStayedSame++
		}
		if s.cfg.SampleEvery > 0 && res.Steps%s.cfg.SampleEvery == 0 {
			res.Trace = append(res.Trace, TracePoint{
				Step:         res.Steps,
				Generation:   res.Steps / numNodes,
				Flips:        res.Flips,
				ZeroFraction: attrs.ZeroFraction(),
			})
		}
	}

	res.Converged = true
	res.Generations = res.Steps / numNodes
	res.ZeroFraction = attrs.ZeroFraction()
	s.log.Debug("diffusion finished",
		"steps", res.Steps, "flips", res.Flips, "zero_fraction", res.ZeroFraction,
		"early_adoption", res.EarlyAdoption)
	return res, nil
}
