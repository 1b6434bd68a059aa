package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/socgrid/socgrid/internal/config"
	"github.com/socgrid/socgrid/internal/diffusion"
	"github.com/socgrid/socgrid/internal/equilibrium"
	"github.com/socgrid/socgrid/internal/graph"
	"github.com/socgrid/socgrid/internal/report"
	"github.com/socgrid/socgrid/internal/snapshot"
	"github.com/socgrid/socgrid/internal/store"
)

// newDiffuseCmd creates the 'diffuse' command: run opinion contagion over
// a stored network, or over a freshly grown one.
func newDiffuseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diffuse",
		Short: "Run opinion contagion over a network",
		Long: `Runs the conformity-weighted contagion process: each step picks a
random node and flips its opinion with probability proportional to the
disagreeing share of its neighborhood.

Reads the network from --network when given; otherwise grows one first
with the configured attachment strategy.

Examples:
  socgrid diffuse --network stable.json --seed 7
  socgrid diffuse --trace-out trace.csv --json`,
		RunE: runDiffuse,
	}

	cmd.Flags().String("network", "", "Node-link JSON file to run over")
	cmd.Flags().String("trace-out", "", "Write the sampled trace as CSV")
	cmd.Flags().Float64("power", 0, "Override the conformity-weight exponent")
	cmd.Flags().Int("disciples", -1, "Override the seed's converted-neighbor count")
	cmd.Flags().Bool("seeded", false, "Use seeded init regardless of config")
	cmd.Flags().Bool("random-values", false, "Use random init regardless of config")

	return cmd
}

func runDiffuse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	seed := resolveSeed(cmd)
	rng := newRand(seed)

	var (
		g     *graph.Graph
		attrs *graph.Attrs
	)
	if path, _ := cmd.Flags().GetString("network"); path != "" {
		snap, err := snapshot.Load(path)
		if err != nil {
			return err
		}
		if g, attrs, err = snap.Restore(); err != nil {
			return err
		}
	} else {
		var err error
		g, _, _, attrs, err = buildWorld(cfg, rng)
		if err != nil {
			return err
		}
		strategy, err := cfg.Attachment.Build()
		if err != nil {
			return err
		}
		grower, err := equilibrium.NewGrower(equilibrium.GrowthConfig{
			TargetGeodesic: cfg.Growth.TargetGeodesic,
			CheckEvery:     cfg.Growth.CheckEvery,
			MaxIterations:  cfg.Growth.MaxIterations,
		}, strategy, logger)
		if err != nil {
			return err
		}
		if _, err := grower.Run(cmd.Context(), g, attrs, rng); err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("power") {
		cfg.Diffusion.Power, _ = cmd.Flags().GetFloat64("power")
	}
	if cmd.Flags().Changed("disciples") {
		cfg.Diffusion.SeedCount, _ = cmd.Flags().GetInt("disciples")
	}
	if seeded, _ := cmd.Flags().GetBool("seeded"); seeded {
		cfg.Diffusion.Init = string(diffusion.InitSeeded)
	}
	if random, _ := cmd.Flags().GetBool("random-values"); random {
		cfg.Diffusion.Init = string(diffusion.InitRandom)
	}

	sim, err := diffusion.NewSimulator(diffusion.Config{
		Init:                diffusion.InitMode(cfg.Diffusion.Init),
		Power:               cfg.Diffusion.Power,
		SeedCount:           cfg.Diffusion.SeedCount,
		ConversionThreshold: cfg.Diffusion.ConversionThreshold,
		MaxSteps:            cfg.Diffusion.MaxSteps,
		SampleEvery:         cfg.Diffusion.SampleEvery,
	}, logger)
	if err != nil {
		return err
	}
	events := newEventLogger(cfg)
	defer events.Close()
	sim.SetEventLogger(events)

	sim.Init(g, attrs, rng)
	res, err := sim.Run(cmd.Context(), g, attrs, rng)
	if err != nil && !errors.Is(err, diffusion.ErrNotConverged) {
		return err
	}
	if !res.Converged {
		logger.Warn("diffusion cut off", "steps", res.Steps)
	}

	if out, _ := cmd.Flags().GetString("trace-out"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating trace file: %w", err)
		}
		defer f.Close()
		if err := report.WriteDiffusionTrace(f, res.Trace); err != nil {
			return err
		}
		logger.Info("trace written", "path", out, "points", len(res.Trace))
	}

	if cfg.Store.Path != "" {
		stats, merr := measure(g)
		if merr != nil {
			return merr
		}
		runID, err := persistRunWithDims(cmd, cfg, "diffuse", seed, stats, res.Converged, dimsOf(g, cfg))
		if err != nil {
			return err
		}
		logger.Info("run stored", "id", runID)
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"seed":           seed,
			"steps":          res.Steps,
			"flips":          res.Flips,
			"generations":    res.Generations,
			"zero_fraction":  res.ZeroFraction,
			"converged":      res.Converged,
			"early_adoption": res.EarlyAdoption,
		})
	}
	fmt.Printf("seed:           %d\n", seed)
	fmt.Printf("steps:          %d\n", res.Steps)
	fmt.Printf("flips:          %d\n", res.Flips)
	fmt.Printf("generations:    %d\n", res.Generations)
	fmt.Printf("zero fraction:  %.4f\n", res.ZeroFraction)
	fmt.Printf("early adoption: %v\n", res.EarlyAdoption)
	return nil
}

// persistRunWithDims is persistRun for networks whose dimensions may not
// match the configured grid (a loaded snapshot).
func persistRunWithDims(cmd *cobra.Command, cfg *config.Config, kind string, seed uint64, stats networkStats, converged bool, dims [2]int) (string, error) {
	rs, err := store.Open(cfg.Store.Path)
	if err != nil {
		return "", err
	}
	defer rs.Close()
	return rs.SaveRun(cmd.Context(), store.Run{
		Kind:       kind,
		Width:      dims[0],
		Height:     dims[1],
		Seed:       seed,
		Config:     cfg,
		Geodesic:   stats.Geodesic,
		Clustering: stats.Clustering,
		AvgDegree:  stats.AvgDegree,
		DegreeSkew: stats.DegreeSkew,
		Converged:  converged,
	})
}

// dimsOf reports the configured grid when the node count matches it, and
// a degenerate Nx1 shape otherwise (a snapshot of unknown provenance).
func dimsOf(g *graph.Graph, cfg *config.Config) [2]int {
	if g.NumNodes() == cfg.Grid.Width*cfg.Grid.Height {
		return [2]int{cfg.Grid.Width, cfg.Grid.Height}
	}
	return [2]int{g.NumNodes(), 1}
}
