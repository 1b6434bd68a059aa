// Package attach implements the stochastic edge-attachment policies that
// grow the torus lattice into a small-world network. Each policy weights
// candidate partners for a randomly chosen ego and samples exactly one new
// edge per draw; the ego itself and its current neighbors are never
// candidates.
package attach

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/socgrid/socgrid/internal/graph"
	"github.com/socgrid/socgrid/internal/metrics"
)

// ErrNoCandidates is returned when a policy legitimately has nobody to
// propose — small graph, bounded radius, or full neighborhood. Callers
// skip the draw rather than fail the run.
var ErrNoCandidates = errors.New("attach: no candidate nodes")

// Strategy proposes one attachment partner for ego node n. Implementations
// must never return n itself or a current neighbor of n.
type Strategy interface {
	// Propose returns the node to connect n to. attrs may be consulted for
	// trait-driven policies and is ignored by the structural ones.
	Propose(g *graph.Graph, attrs *graph.Attrs, n int, rng *rand.Rand) (int, error)
	// Name identifies the strategy in run summaries.
	Name() string
}

// FromConfig builds a Strategy from its configured name and parameters.
func FromConfig(name string, decay float64, radius int, decayKind DecayKind, offset float64) (Strategy, error) {
	switch name {
	case "eigen-decay":
		return &EigenDecay{Decay: decay}, nil
	case "degree-radius":
		if decayKind == "" {
			decayKind = DecayNone
		}
		if !decayKind.Valid() {
			return nil, fmt.Errorf("attach: unknown decay kind %q", decayKind)
		}
		return &DegreeRadius{Radius: radius, Decay: decayKind}, nil
	case "degree-exp":
		return &DegreeExpDecay{Offset: offset}, nil
	case "mutual":
		return &MutualAcquaintance{StrangerRadius: radius}, nil
	case "prestige-fixed":
		return &FixedPrestige{}, nil
	default:
		return nil, fmt.Errorf("attach: unknown strategy %q", name)
	}
}

// weightedPick samples index i with probability weights[i] / sum(weights).
// Zero-weight entries are never picked. Returns ErrNoCandidates when the
// total weight is zero.
func weightedPick(rng *rand.Rand, weights []float64) (int, error) {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return 0, ErrNoCandidates
	}
	r := rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 && w > 0 {
			return i, nil
		}
	}
	// Float round-off can leave r at a hair above zero; take the last
	// positive-weight entry.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i, nil
		}
	}
	return 0, ErrNoCandidates
}

// uniformPick samples one element of a non-empty multiset; multiplicity in
// the slice is the weight.
func uniformPick(rng *rand.Rand, multiset []int) (int, error) {
	if len(multiset) == 0 {
		return 0, ErrNoCandidates
	}
	return multiset[rng.IntN(len(multiset))], nil
}

// exclusion returns the set that can never be proposed: n and its current
// neighbors.
func exclusion(g *graph.Graph, n int) map[int]struct{} {
	rmv := make(map[int]struct{}, g.Degree(n)+1)
	rmv[n] = struct{}{}
	g.ForNeighbors(n, func(nbr int) { rmv[nbr] = struct{}{} })
	return rmv
}

// powSelf computes x^x with the convention 0^0 = 1, so decay formulas stay
// defined when the exponent degenerates.
func powSelf(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Pow(x, x)
}

// EigenDecay weights every non-neighbor by its eigenvector centrality
// damped exponentially with distance: w = centrality * exp(-Decay * dist).
// Larger Decay values favor nearby partners and raise clustering.
type EigenDecay struct {
	Decay float64
}

func (s *EigenDecay) Name() string { return "eigen-decay" }

func (s *EigenDecay) Propose(g *graph.Graph, _ *graph.Attrs, n int, rng *rand.Rand) (int, error) {
	centrality, err := metrics.EigenvectorCentrality(g, metrics.DefaultCentralityIter, metrics.DefaultCentralityTol)
	if err != nil {
		return 0, fmt.Errorf("attach: %w", err)
	}
	rmv := exclusion(g, n)
	dist := metrics.DistanceMap(g, n, -1)
	weights := make([]float64, g.NumNodes())
	for optn := 0; optn < g.NumNodes(); optn++ {
		if _, excluded := rmv[optn]; excluded {
			continue
		}
		d, reachable := dist[optn]
		if !reachable {
			continue
		}
		weights[optn] = centrality[optn] * math.Exp(-s.Decay*float64(d))
	}
	return weightedPick(rng, weights)
}

// DecayKind selects the distance-decay divisor for DegreeRadius.
type DecayKind string

const (
	DecayNone        DecayKind = "none"
	DecayLinear      DecayKind = "linear"
	DecaySquare      DecayKind = "square"
	DecayExponential DecayKind = "exponential"
)

// Valid reports whether k names a known decay kind.
func (k DecayKind) Valid() bool {
	switch k {
	case DecayNone, DecayLinear, DecaySquare, DecayExponential:
		return true
	}
	return false
}

func (k DecayKind) divisor(dist int) float64 {
	d := float64(dist)
	switch k {
	case DecayLinear:
		return d
	case DecaySquare:
		return d * d
	case DecayExponential:
		return powSelf(d)
	default:
		return 1
	}
}

// DegreeRadius restricts candidates to nodes within Radius hops and weights
// each by its degree divided by the configured decay of its distance —
// popularity biased toward the local neighborhood.
type DegreeRadius struct {
	Radius int
	Decay  DecayKind
}

func (s *DegreeRadius) Name() string { return "degree-radius" }

func (s *DegreeRadius) Propose(g *graph.Graph, _ *graph.Attrs, n int, rng *rand.Rand) (int, error) {
	close := metrics.DistanceMap(g, n, s.Radius)
	candidates := make([]int, 0, len(close))
	weights := make([]float64, 0, len(close))
	for optn, dist := range close {
		// dist 0 is the ego, dist 1 an existing neighbor.
		if dist < 2 {
			continue
		}
		candidates = append(candidates, optn)
		weights = append(weights, float64(g.Degree(optn))/s.Decay.divisor(dist))
	}
	i, err := weightedPick(rng, weights)
	if err != nil {
		return 0, err
	}
	return candidates[i], nil
}

// DegreeExpDecay weights every non-neighbor by degree / (dist-l)^(dist-l).
// Offset l in [0,1] softens the decay; at the degenerate point dist == l
// the exponent 0^0 is defined as 1.
type DegreeExpDecay struct {
	Offset float64
}

func (s *DegreeExpDecay) Name() string { return "degree-exp" }

func (s *DegreeExpDecay) Propose(g *graph.Graph, _ *graph.Attrs, n int, rng *rand.Rand) (int, error) {
	rmv := exclusion(g, n)
	dist := metrics.DistanceMap(g, n, -1)
	weights := make([]float64, g.NumNodes())
	for optn := 0; optn < g.NumNodes(); optn++ {
		if _, excluded := rmv[optn]; excluded {
			continue
		}
		d, reachable := dist[optn]
		if !reachable {
			continue
		}
		weights[optn] = float64(g.Degree(optn)) / powSelf(float64(d)-s.Offset)
	}
	return weightedPick(rng, weights)
}

// MutualAcquaintance proposes a friend of a friend, each candidate weighted
// by how many shared neighbors connect it to the ego. One extra "stranger"
// slot lets the ego meet somebody outside its circles; the stranger is
// drawn degree-weighted from within StrangerRadius hops. StrangerRadius 0
// disables the stranger option entirely.
type MutualAcquaintance struct {
	StrangerRadius int
}

func (s *MutualAcquaintance) Name() string { return "mutual" }

// strangerToken marks the meet-a-stranger slot in the candidate multiset.
const strangerToken = -1

func (s *MutualAcquaintance) Propose(g *graph.Graph, _ *graph.Attrs, n int, rng *rand.Rand) (int, error) {
	rmv := exclusion(g, n)
	var optns []int
	g.ForNeighbors(n, func(nbr int) {
		g.ForNeighbors(nbr, func(optn int) {
			if _, excluded := rmv[optn]; !excluded {
				optns = append(optns, optn)
			}
		})
	})
	if s.StrangerRadius > 0 {
		optns = append(optns, strangerToken)
	}
	a, err := uniformPick(rng, optns)
	if err != nil {
		return 0, err
	}
	if a != strangerToken {
		return a, nil
	}
	// A friend of a friend is not a stranger: exclude the candidate
	// multiset as well as the ego's own circle.
	for _, optn := range optns {
		if optn != strangerToken {
			rmv[optn] = struct{}{}
		}
	}
	return s.stranger(g, n, rmv, rng)
}

// stranger draws a degree-weighted node within StrangerRadius hops that
// the ego has no mutual acquaintance with.
func (s *MutualAcquaintance) stranger(g *graph.Graph, n int, rmv map[int]struct{}, rng *rand.Rand) (int, error) {
	close := metrics.DistanceMap(g, n, s.StrangerRadius)
	candidates := make([]int, 0, len(close))
	weights := make([]float64, 0, len(close))
	for optn := range close {
		if _, excluded := rmv[optn]; excluded {
			continue
		}
		candidates = append(candidates, optn)
		weights = append(weights, float64(g.Degree(optn)))
	}
	i, err := weightedPick(rng, weights)
	if err != nil {
		return 0, err
	}
	return candidates[i], nil
}

// FixedPrestige proposes a friend of a friend by shared-neighbor
// multiplicity, with every prestigious node added once to the candidate
// list. Prestige is flat and static: a node either has it or it does not.
type FixedPrestige struct{}

func (s *FixedPrestige) Name() string { return "prestige-fixed" }

func (s *FixedPrestige) Propose(g *graph.Graph, attrs *graph.Attrs, n int, rng *rand.Rand) (int, error) {
	if attrs == nil {
		return 0, errors.New("attach: prestige-fixed requires node attributes")
	}
	rmv := exclusion(g, n)
	var optns []int
	g.ForNeighbors(n, func(nbr int) {
		g.ForNeighbors(nbr, func(optn int) {
			if _, excluded := rmv[optn]; !excluded {
				optns = append(optns, optn)
			}
		})
	})
	for optn, prestigious := range attrs.Prestige {
		if !prestigious {
			continue
		}
		if _, excluded := rmv[optn]; !excluded {
			optns = append(optns, optn)
		}
	}
	return uniformPick(rng, optns)
}
