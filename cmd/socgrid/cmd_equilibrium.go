package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/socgrid/socgrid/internal/equilibrium"
	"github.com/socgrid/socgrid/internal/report"
	"github.com/socgrid/socgrid/internal/snapshot"
	"github.com/socgrid/socgrid/internal/store"
)

// newEquilibriumCmd creates the 'equilibrium' command: run the full
// birth-death loop until the network's structure stops moving.
func newEquilibriumCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "equilibrium",
		Short: "Run attachment and pruning until the network stabilizes",
		Long: `Alternates attachment draws with probabilistic pruning, sampling the
network once per pass, until the running mean of the geodesic movement
falls below epsilon for the configured number of consecutive passes.

The per-pass trace is stored when a store path is configured.

Examples:
  socgrid equilibrium --seed 7
  socgrid equilibrium --out stable.json --json`,
		RunE: runEquilibrium,
	}

	cmd.Flags().String("out", "", "Write the stabilized network as node-link JSON")
	cmd.Flags().String("network", "", "Start from this node-link JSON network instead of a fresh torus")
	cmd.Flags().String("summary-out", "", "Write a one-row summary CSV")

	return cmd
}

func runEquilibrium(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	seed := resolveSeed(cmd)
	rng := newRand(seed)

	g, initial, _, attrs, err := buildWorld(cfg, rng)
	if err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("network"); path != "" {
		// The anchor set is the lattice adjacency, so a loaded network
		// must have the configured grid's node count.
		snap, err := snapshot.Load(path)
		if err != nil {
			return err
		}
		loaded, loadedAttrs, err := snap.Restore()
		if err != nil {
			return err
		}
		if loaded.NumNodes() != g.NumNodes() {
			return fmt.Errorf("network has %d nodes but the configured grid is %dx%d",
				loaded.NumNodes(), cfg.Grid.Width, cfg.Grid.Height)
		}
		g, attrs = loaded, loadedAttrs
	}
	strategy, err := cfg.Attachment.Build()
	if err != nil {
		return err
	}

	ctrl, err := equilibrium.NewController(equilibrium.Config{
		PruneProbability: cfg.Equilibrium.PruneProbability,
		Epsilon:          cfg.Equilibrium.Epsilon,
		StablePasses:     cfg.Equilibrium.StablePasses,
		MaxPasses:        cfg.Equilibrium.MaxPasses,
		ReconnectCap:     cfg.Equilibrium.ReconnectCap,
	}, strategy, initial, logger)
	if err != nil {
		return err
	}
	events := newEventLogger(cfg)
	defer events.Close()
	ctrl.SetEventLogger(events)

	res, err := ctrl.Run(cmd.Context(), g, attrs, rng)
	if err != nil && !errors.Is(err, equilibrium.ErrNotConverged) {
		return err
	}
	if !res.Converged {
		logger.Warn("equilibrium not reached", "passes", res.Passes)
	}

	stats, merr := measure(g)
	if merr != nil {
		return merr
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := snapshot.Capture(g, attrs).Save(out); err != nil {
			return err
		}
		logger.Info("network written", "path", out)
	}

	if out, _ := cmd.Flags().GetString("summary-out"); out != "" {
		cond := report.Condition{
			Width:     cfg.Grid.Width,
			Height:    cfg.Grid.Height,
			PruneProb: cfg.Equilibrium.PruneProbability,
			Strategy:  strategy.Name(),
			Seed:      seed,
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating summary file: %w", err)
		}
		defer f.Close()
		if err := report.WriteEquilibriumSummary(f, []report.SummaryRow{
			report.NewSummaryRow(cond, res, 5),
		}); err != nil {
			return err
		}
		logger.Info("summary written", "path", out)
	}

	if cfg.Store.Path != "" {
		rs, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer rs.Close()
		runID, err := rs.SaveRun(cmd.Context(), store.Run{
			Kind:       "equilibrium",
			Width:      cfg.Grid.Width,
			Height:     cfg.Grid.Height,
			Seed:       seed,
			Config:     cfg,
			Geodesic:   stats.Geodesic,
			Clustering: stats.Clustering,
			AvgDegree:  stats.AvgDegree,
			DegreeSkew: stats.DegreeSkew,
			Converged:  res.Converged,
		})
		if err != nil {
			return err
		}
		if err := rs.SaveTrace(cmd.Context(), runID, res.Trace); err != nil {
			return err
		}
		logger.Info("run stored", "id", runID, "samples", len(res.Trace))
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"seed":      seed,
			"passes":    res.Passes,
			"converged": res.Converged,
			"counters":  res.Counters,
			"stats":     stats,
		})
	}
	fmt.Printf("seed:        %d\n", seed)
	fmt.Printf("passes:      %d\n", res.Passes)
	fmt.Printf("converged:   %v\n", res.Converged)
	printStats(stats)
	return nil
}
