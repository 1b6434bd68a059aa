// Package report writes simulation output as CSV, one writer per table
// shape: the per-step diffusion trace and the per-condition equilibrium
// summary used to compare parameter sweeps.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/socgrid/socgrid/internal/diffusion"
	"github.com/socgrid/socgrid/internal/equilibrium"
)

// WriteDiffusionTrace writes the sampled observations of a diffusion run.
func WriteDiffusionTrace(w io.Writer, trace []diffusion.TracePoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"step", "generation", "flips", "zero_fraction"}); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	for _, pt := range trace {
		rec := []string{
			strconv.Itoa(pt.Step),
			strconv.Itoa(pt.Generation),
			strconv.Itoa(pt.Flips),
			formatFloat(pt.ZeroFraction),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("report: write step %d: %w", pt.Step, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: flush: %w", err)
	}
	return nil
}

// WriteEquilibriumTrace writes the per-pass samples of a single run.
func WriteEquilibriumTrace(w io.Writer, trace equilibrium.Trace) error {
	cw := csv.NewWriter(w)
	header := []string{
		"pass", "iterations", "edges", "geodesic", "clustering",
		"avg_degree", "degree_skew", "movement",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	for _, sm := range trace {
		rec := []string{
			strconv.Itoa(sm.Pass),
			strconv.Itoa(sm.Iterations),
			strconv.Itoa(sm.Edges),
			formatFloat(sm.Geodesic),
			formatFloat(sm.Clustering),
			formatFloat(sm.AvgDegree),
			formatFloat(sm.DegreeSkew),
			formatFloat(sm.Movement),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("report: write pass %d: %w", sm.Pass, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: flush: %w", err)
	}
	return nil
}

// Condition identifies one cell of a parameter sweep.
type Condition struct {
	Width     int
	Height    int
	PruneProb float64
	Strategy  string
	Seed      uint64
}

// SummaryRow pairs a sweep condition with its trace summaries: one over
// the whole trace and one skipping the transient head.
type SummaryRow struct {
	Condition Condition
	Passes    int
	Converged bool
	Full      equilibrium.Summary
	Tail      equilibrium.Summary
}

// NewSummaryRow summarizes a finished equilibrium result under a
// condition. skip is the number of leading passes excluded from Tail.
func NewSummaryRow(cond Condition, res equilibrium.Result, skip int) SummaryRow {
	return SummaryRow{
		Condition: cond,
		Passes:    res.Passes,
		Converged: res.Converged,
		Full:      res.Trace.Summarize(0),
		Tail:      res.Trace.Summarize(skip),
	}
}

// WriteEquilibriumSummary writes one row per sweep condition.
func WriteEquilibriumSummary(w io.Writer, rows []SummaryRow) error {
	cw := csv.NewWriter(w)
	header := []string{
		"width", "height", "prune_prob", "strategy", "seed", "passes", "converged",
		"geodesic", "clustering", "avg_degree", "movement",
		"tail_geodesic", "tail_clustering", "tail_avg_degree", "tail_movement",
		"tail_geodesic_std", "tail_clustering_std", "tail_avg_degree_std", "tail_movement_std",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	for i, row := range rows {
		rec := []string{
			strconv.Itoa(row.Condition.Width),
			strconv.Itoa(row.Condition.Height),
			formatFloat(row.Condition.PruneProb),
			row.Condition.Strategy,
			strconv.FormatUint(row.Condition.Seed, 10),
			strconv.Itoa(row.Passes),
			strconv.FormatBool(row.Converged),
			formatFloat(row.Full.AvgGeodesic),
			formatFloat(row.Full.AvgClustering),
			formatFloat(row.Full.AvgDegree),
			formatFloat(row.Full.AvgMovement),
			formatFloat(row.Tail.AvgGeodesic),
			formatFloat(row.Tail.AvgClustering),
			formatFloat(row.Tail.AvgDegree),
			formatFloat(row.Tail.AvgMovement),
			formatFloat(row.Tail.StdGeodesic),
			formatFloat(row.Tail.StdClustering),
			formatFloat(row.Tail.StdDegree),
			formatFloat(row.Tail.StdMovement),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("report: write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: flush: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
