package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/socgrid/socgrid/internal/config"
	"github.com/socgrid/socgrid/internal/equilibrium"
	"github.com/socgrid/socgrid/internal/report"
	"github.com/socgrid/socgrid/internal/store"
)

// newBatchCmd creates the 'batch' command: run an equilibrium sweep over
// prune probabilities, several independent seeds per condition.
func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run an equilibrium parameter sweep",
		Long: `Runs the equilibrium loop once per (prune probability, seed) pair,
independent runs in parallel, and writes one summary row per run.

Examples:
  socgrid batch --prune-probs 0,0.1,0.5 --runs 10 --out sweep.csv
  socgrid batch --runs 3 --workers 2 --json`,
		RunE: runBatch,
	}

	cmd.Flags().String("prune-probs", "", "Comma-separated prune probabilities (default: configured value)")
	cmd.Flags().Int("runs", 1, "Independent seeded runs per condition")
	cmd.Flags().Int("workers", runtime.NumCPU(), "Concurrent runs")
	cmd.Flags().Int("skip", 5, "Leading passes excluded from the tail summary")
	cmd.Flags().String("out", "", "Write the summary as CSV")

	return cmd
}

type batchJob struct {
	index     int
	pruneProb float64
	seed      uint64
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	baseSeed := resolveSeed(cmd)

	probs, err := parseProbs(cmd, cfg)
	if err != nil {
		return err
	}
	runs, _ := cmd.Flags().GetInt("runs")
	if runs < 1 {
		return fmt.Errorf("--runs must be at least 1, got %d", runs)
	}
	workers, _ := cmd.Flags().GetInt("workers")
	if workers < 1 {
		workers = 1
	}
	skip, _ := cmd.Flags().GetInt("skip")

	var jobs []batchJob
	for _, p := range probs {
		for r := 0; r < runs; r++ {
			jobs = append(jobs, batchJob{
				index:     len(jobs),
				pruneProb: p,
				seed:      baseSeed + uint64(len(jobs)),
			})
		}
	}
	logger.Info("batch starting", "conditions", len(probs), "runs_each", runs, "workers", workers)

	rows := make([]report.SummaryRow, len(jobs))
	runRows := make([]store.Run, len(jobs))
	errs := make([]error, len(jobs))
	jobCh := make(chan batchJob)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				rows[job.index], runRows[job.index], errs[job.index] = runBatchJob(cmd, cfg, job, skip)
			}
		}()
	}
	for _, job := range jobs {
		select {
		case jobCh <- job:
		case <-cmd.Context().Done():
			close(jobCh)
			wg.Wait()
			return cmd.Context().Err()
		}
	}
	close(jobCh)
	wg.Wait()

	var failed int
	for i, jerr := range errs {
		if jerr != nil {
			failed++
			logger.Error("run failed", "prune_prob", jobs[i].pruneProb, "seed", jobs[i].seed, "error", jerr)
		}
	}
	if failed == len(jobs) {
		return errors.New("every batch run failed")
	}

	// Drop failed rows, keep deterministic order.
	kept := rows[:0]
	for i, row := range rows {
		if errs[i] == nil {
			kept = append(kept, row)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Condition.PruneProb != kept[j].Condition.PruneProb {
			return kept[i].Condition.PruneProb < kept[j].Condition.PruneProb
		}
		return kept[i].Condition.Seed < kept[j].Condition.Seed
	})

	if cfg.Store.Path != "" {
		rs, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer rs.Close()
		stored := 0
		for i := range runRows {
			if errs[i] != nil {
				continue
			}
			if _, err := rs.SaveRun(cmd.Context(), runRows[i]); err != nil {
				return err
			}
			stored++
		}
		logger.Info("runs stored", "count", stored)
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating summary file: %w", err)
		}
		defer f.Close()
		if err := report.WriteEquilibriumSummary(f, kept); err != nil {
			return err
		}
		logger.Info("summary written", "path", out, "rows", len(kept))
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"base_seed": baseSeed,
			"completed": len(kept),
			"failed":    failed,
			"rows":      kept,
		})
	}
	fmt.Printf("base seed: %d\n", baseSeed)
	fmt.Printf("completed: %d\n", len(kept))
	fmt.Printf("failed:    %d\n", failed)
	for _, row := range kept {
		fmt.Printf("  p=%.3f seed=%-6d passes=%-5d geodesic=%.4f clustering=%.4f\n",
			row.Condition.PruneProb, row.Condition.Seed, row.Passes,
			row.Tail.AvgGeodesic, row.Tail.AvgClustering)
	}
	return nil
}

// runBatchJob executes one independent equilibrium run. Each job gets its
// own RNG, graph and controller; nothing is shared across goroutines.
func runBatchJob(cmd *cobra.Command, cfg *config.Config, job batchJob, skip int) (report.SummaryRow, store.Run, error) {
	rng := newRand(job.seed)

	g, initial, _, attrs, err := buildWorld(cfg, rng)
	if err != nil {
		return report.SummaryRow{}, store.Run{}, err
	}
	strategy, err := cfg.Attachment.Build()
	if err != nil {
		return report.SummaryRow{}, store.Run{}, err
	}
	ctrl, err := equilibrium.NewController(equilibrium.Config{
		PruneProbability: job.pruneProb,
		Epsilon:          cfg.Equilibrium.Epsilon,
		StablePasses:     cfg.Equilibrium.StablePasses,
		MaxPasses:        cfg.Equilibrium.MaxPasses,
		ReconnectCap:     cfg.Equilibrium.ReconnectCap,
	}, strategy, initial, nil)
	if err != nil {
		return report.SummaryRow{}, store.Run{}, err
	}

	res, err := ctrl.Run(cmd.Context(), g, attrs, rng)
	if err != nil && !errors.Is(err, equilibrium.ErrNotConverged) {
		return report.SummaryRow{}, store.Run{}, err
	}

	stats, err := measure(g)
	if err != nil {
		return report.SummaryRow{}, store.Run{}, err
	}
	runRow := store.Run{
		Kind:       "equilibrium",
		Width:      cfg.Grid.Width,
		Height:     cfg.Grid.Height,
		Seed:       job.seed,
		Config:     map[string]any{"prune_probability": job.pruneProb, "strategy": strategy.Name()},
		Geodesic:   stats.Geodesic,
		Clustering: stats.Clustering,
		AvgDegree:  stats.AvgDegree,
		DegreeSkew: stats.DegreeSkew,
		Converged:  res.Converged,
	}

	cond := report.Condition{
		Width:     cfg.Grid.Width,
		Height:    cfg.Grid.Height,
		PruneProb: job.pruneProb,
		Strategy:  strategy.Name(),
		Seed:      job.seed,
	}
	return report.NewSummaryRow(cond, res, skip), runRow, nil
}

func parseProbs(cmd *cobra.Command, cfg *config.Config) ([]float64, error) {
	raw, _ := cmd.Flags().GetString("prune-probs")
	if raw == "" {
		return []float64{cfg.Equilibrium.PruneProbability}, nil
	}
	var probs []float64
	for _, part := range strings.Split(raw, ",") {
		p, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid prune probability %q: %w", part, err)
		}
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("prune probability %v outside [0,1]", p)
		}
		probs = append(probs, p)
	}
	return probs, nil
}
