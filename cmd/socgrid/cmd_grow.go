package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/socgrid/socgrid/internal/config"
	"github.com/socgrid/socgrid/internal/equilibrium"
	"github.com/socgrid/socgrid/internal/migrate"
	"github.com/socgrid/socgrid/internal/snapshot"
)

// newGrowCmd creates the 'grow' command: build a network from the torus
// lattice by repeated attachment until the target geodesic is reached.
func newGrowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grow",
		Short: "Grow a network to a target average path length",
		Long: `Starts from the configured torus lattice and repeatedly adds edges
with the configured attachment strategy until the average path length
drops to the growth target.

With --migration the network grows by the migration process instead:
nodes wander the grid and connect when they co-locate.

Examples:
  socgrid grow --seed 7 --out network.json
  socgrid grow --migration --config sweep.yaml`,
		RunE: runGrow,
	}

	cmd.Flags().String("out", "", "Write the grown network as node-link JSON")
	cmd.Flags().Bool("migration", false, "Grow by grid migration instead of attachment")

	return cmd
}

func runGrow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	seed := resolveSeed(cmd)
	rng := newRand(seed)

	g, _, coords, attrs, err := buildWorld(cfg, rng)
	if err != nil {
		return err
	}

	var (
		iterations int
		converged  bool
	)
	if useMigration, _ := cmd.Flags().GetBool("migration"); useMigration {
		walker, err := migrate.NewWalker(migrate.Config{
			TargetGeodesic: cfg.Growth.TargetGeodesic,
			MaxPasses:      cfg.Growth.MaxIterations,
		}, coords, logger)
		if err != nil {
			return err
		}
		res, err := walker.Run(cmd.Context(), g, attrs, rng)
		if err != nil {
			return err
		}
		iterations, converged = res.Passes, res.Converged
	} else {
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
		res, err := grower.Run(cmd.Context(), g, attrs, rng)
		if err != nil {
			return err
		}
		iterations, converged = res.Iterations, res.Converged
	}

	stats, err := measure(g)
	if err != nil {
		return err
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := snapshot.Capture(g, attrs).Save(out); err != nil {
			return err
		}
		logger.Info("network written", "path", out)
	}

	if cfg.Store.Path != "" {
		runID, err := persistRun(cmd, cfg, "grow", seed, stats, converged)
		if err != nil {
			return err
		}
		logger.Info("run stored", "id", runID)
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"seed":       seed,
			"iterations": iterations,
			"converged":  converged,
			"stats":      stats,
		})
	}
	fmt.Printf("seed:        %d\n", seed)
	fmt.Printf("iterations:  %d\n", iterations)
	printStats(stats)
	return nil
}

// persistRun saves a finished run's summary row to the configured store.
func persistRun(cmd *cobra.Command, cfg *config.Config, kind string, seed uint64, stats networkStats, converged bool) (string, error) {
	return persistRunWithDims(cmd, cfg, kind, seed, stats, converged,
		[2]int{cfg.Grid.Width, cfg.Grid.Height})
}
