package equilibrium

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/socgrid/socgrid/internal/attach"
	"github.com/socgrid/socgrid/internal/graph"
	"github.com/socgrid/socgrid/internal/logging"
	"github.com/socgrid/socgrid/internal/metrics"
	"github.com/socgrid/socgrid/internal/prune"
)

// Config parameterizes the equilibrium phase.
type Config struct {
	// PruneProbability is the per-draw chance that a random node is
	// stripped back toward its lattice anchors.
	PruneProbability float64
	// Epsilon is the stability bound on the running mean of geodesic
	// movement. 0 picks 0.001.
	Epsilon float64
	// StablePasses is how many consecutive stable passes end the run.
	// 0 picks 3. One quiet pass is not equilibrium; any unstable reading
	// resets the count.
	StablePasses int
	// MaxPasses bounds the run; 0 picks 10000.
	MaxPasses int
	// ReconnectCap is the per-repair-round limit on restored anchor edges
	// when pruning disconnects the graph. 0 picks 2.
	ReconnectCap int
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.PruneProbability < 0 || c.PruneProbability > 1 {
		return fmt.Errorf("equilibrium: prune probability %v outside [0,1]", c.PruneProbability)
	}
	if c.Epsilon < 0 {
		return fmt.Errorf("equilibrium: epsilon must be non-negative, got %v", c.Epsilon)
	}
	if c.StablePasses < 0 || c.MaxPasses < 0 || c.ReconnectCap < 0 {
		return errors.New("equilibrium: pass and cap settings must be non-negative")
	}
	return nil
}

// Sample is one end-of-pass measurement appended to the Trace.
type Sample struct {
	Pass       int
	Iterations int
	Edges      int
	Geodesic   float64
	Clustering float64
	AvgDegree  float64
	DegreeSkew float64
	Movement   float64 // geodesic delta against the previous pass
}

// Trace is the append-only convergence record of a run.
type Trace []Sample

// Summary aggregates a trace for the run report: mean and population
// standard deviation of each sampled measure.
type Summary struct {
	AvgGeodesic   float64
	StdGeodesic   float64
	AvgClustering float64
	StdClustering float64
	AvgDegree     float64
	StdDegree     float64
	AvgMovement   float64
	StdMovement   float64
}

// Summarize averages the trace, ignoring the first skip samples where the
// network is still settling (all of them if the trace is shorter).
func (t Trace) Summarize(skip int) Summary {
	if skip >= len(t) {
		skip = 0
	}
	rest := t[skip:]
	if len(rest) == 0 {
		return Summary{}
	}
	var s Summary
	for _, smp := range rest {
		s.AvgGeodesic += smp.Geodesic
		s.AvgClustering += smp.Clustering
		s.AvgDegree += smp.AvgDegree
		s.AvgMovement += smp.Movement
	}
	n := float64(len(rest))
	s.AvgGeodesic /= n
	s.AvgClustering /= n
	s.AvgDegree /= n
	s.AvgMovement /= n
	for _, smp := range rest {
		s.StdGeodesic += (smp.Geodesic - s.AvgGeodesic) * (smp.Geodesic - s.AvgGeodesic)
		s.StdClustering += (smp.Clustering - s.AvgClustering) * (smp.Clustering - s.AvgClustering)
		s.StdDegree += (smp.AvgDegree - s.AvgDegree) * (smp.AvgDegree - s.AvgDegree)
		s.StdMovement += (smp.Movement - s.AvgMovement) * (smp.Movement - s.AvgMovement)
	}
	s.StdGeodesic = math.Sqrt(s.StdGeodesic / n)
	s.StdClustering = math.Sqrt(s.StdClustering / n)
	s.StdDegree = math.Sqrt(s.StdDegree / n)
	s.StdMovement = math.Sqrt(s.StdMovement / n)
	return s
}

// Counters tally the structural churn across a run.
type Counters struct {
	EdgesAdded    int
	NodesPruned   int
	EdgesKept     int
	EdgesCut      int
	EdgesRestored int
	SkippedDraws  int
}

// Result is a finished equilibrium run.
type Result struct {
	Trace     Trace
	Counters  Counters
	Passes    int
	Converged bool
}

// Controller alternates attachment and pruning until the geodesic
// stabilizes. All configuration is explicit; the controller holds no
// global state and one instance drives exactly one run at a time.
type Controller struct {
	cfg      Config
	strategy attach.Strategy
	pruner   *prune.Pruner
	log      *slog.Logger
	events   *logging.EventLogger
}

// NewController creates a controller over the given strategy and anchor
// set. logger may be nil.
func NewController(cfg Config, strategy attach.Strategy, initial graph.InitialNeighbors, logger *slog.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strategy == nil {
		return nil, errors.New("equilibrium: nil attachment strategy")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		cfg:      cfg,
		strategy: strategy,
		pruner:   &prune.Pruner{Initial: initial},
		log:      logger,
	}, nil
}

// SetEventLogger attaches a per-draw event trace. events may be nil.
func (c *Controller) SetEventLogger(events *logging.EventLogger) {
	c.events = events
}

// Run executes equilibrium passes until stable. Each pass performs N
// draws of attach-then-maybe-prune, then samples the graph. The run is
// stable once the running mean of per-pass geodesic movement stays within
// Epsilon for StablePasses consecutive passes.
func (c *Controller) Run(ctx context.Context, g *graph.Graph, attrs *graph.Attrs, rng *rand.Rand) (Result, error) {
	numNodes := g.NumNodes()
	epsilon := c.cfg.Epsilon
	if epsilon == 0 {
		epsilon = 0.001
	}
	stableNeeded := c.cfg.StablePasses
	if stableNeeded == 0 {
		stableNeeded = 3
	}
	maxPasses := c.cfg.MaxPasses
	if maxPasses == 0 {
		maxPasses = 10000
	}
	reconnectCap := c.cfg.ReconnectCap
	if reconnectCap == 0 {
		reconnectCap = 2
	}

	prevGeo, err := metrics.AveragePathLength(g)
	if err != nil {
		return Result{}, fmt.Errorf("equilibrium: starting geodesic: %w", err)
	}

	var res Result
	iterations := 0
	movementSum := 0.0
	inARow := 0
	for inARow < stableNeeded {
		if res.Passes >= maxPasses {
			return res, fmt.Errorf("equilibrium: %d passes without stabilizing: %w", res.Passes, ErrNotConverged)
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		for i := 0; i < numNodes; i++ {
			iterations++
			n := rng.IntN(numNodes)
			a, err := c.strategy.Propose(g, attrs, n, rng)
			switch {
			case errors.Is(err, attach.ErrNoCandidates):
				res.Counters.SkippedDraws++
			case err != nil:
				return res, fmt.Errorf("equilibrium: attachment: %w", err)
			default:
				if g.AddEdge(n, a) {
					res.Counters.EdgesAdded++
					if c.events != nil {
						c.events.Log(map[string]any{
							"event": "attach", "pass": res.Passes + 1,
							"node": n, "target": a,
						})
					}
				}
			}

			if rng.Float64() < c.cfg.PruneProbability {
				rmv := rng.IntN(numNodes)
				pr := c.pruner.Prune(g, rmv, rng)
				res.Counters.NodesPruned++
				res.Counters.EdgesKept += pr.Kept
				res.Counters.EdgesCut += pr.Removed
				// Pruning can strand a component; repair immediately so
				// the end-of-pass geodesic stays defined.
				restored := prune.Reconnect(g, c.pruner.Initial, rng, reconnectCap)
				res.Counters.EdgesRestored += restored
				if c.events != nil {
					c.events.Log(map[string]any{
						"event": "prune", "pass": res.Passes + 1, "node": rmv,
						"kept": pr.Kept, "cut": pr.Removed, "restored": restored,
					})
				}
			}
		}

		res.Passes++
		geo, err := metrics.AveragePathLength(g)
		if err != nil {
			return res, fmt.Errorf("equilibrium: pass %d geodesic: %w", res.Passes, err)
		}
		move := geo - prevGeo
		prevGeo = geo
		movementSum += move
		meanMove := movementSum / float64(res.Passes)

		deg := metrics.DegreeStats(g)
		res.Trace = append(res.Trace, Sample{
			Pass:       res.Passes,
			Iterations: iterations,
			Edges:      g.NumEdges(),
			Geodesic:   geo,
			Clustering: metrics.AverageClustering(g),
			AvgDegree:  deg.Mean,
			DegreeSkew: deg.Skew,
			Movement:   move,
		})

		if math.Abs(meanMove) < epsilon {
			inARow++
		} else {
			inARow = 0
		}
		c.log.Debug("equilibrium pass",
			"pass", res.Passes, "geodesic", geo, "movement", move,
			"mean_movement", meanMove, "stable_run", inARow)
	}

	res.Converged = true
	return res, nil
}
