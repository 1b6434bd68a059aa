package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/socgrid/socgrid/internal/report"
	"github.com/socgrid/socgrid/internal/snapshot"
	"github.com/socgrid/socgrid/internal/store"
	"github.com/socgrid/socgrid/internal/visualization"
)

// newExportCmd creates the 'export' command and its subcommands for
// getting stored runs back out of the database.
func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "List and export stored runs",
	}
	cmd.AddCommand(newExportListCmd(), newExportRunCmd(), newExportTraceCmd(), newExportDotCmd())
	return cmd
}

func newExportRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <run-id>",
		Short: "Dump a stored run and its samples as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Store.Path == "" {
				return fmt.Errorf("no store configured (set store.path or SOCGRID_STORE_PATH)")
			}
			rs, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer rs.Close()

			run, err := rs.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			trace, err := rs.GetTrace(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"run": run, "samples": trace})
		},
	}
}

func newExportDotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dot <network.json>",
		Short: "Render a stored network as Graphviz DOT",
		Long: `Renders a node-link JSON network as a Graphviz DOT document, nodes
filled by opinion value.

Example:
  socgrid export dot stable.json --out stable.dot`,
		Args: cobra.ExactArgs(1),
		RunE: runExportDot,
	}
	cmd.Flags().String("out", "", "Output file (default: stdout)")
	return cmd
}

func runExportDot(cmd *cobra.Command, args []string) error {
	snap, err := snapshot.Load(args[0])
	if err != nil {
		return err
	}
	g, attrs, err := snap.Restore()
	if err != nil {
		return err
	}

	doc, err := visualization.Render(g, attrs, visualization.FormatDOT)
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("out"); path != "" {
		if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
			return fmt.Errorf("writing DOT file: %w", err)
		}
		return nil
	}
	_, err = fmt.Print(doc)
	return err
}

func newExportListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs",
		Long: `Lists runs in the configured store, newest first.

Example:
  socgrid export list --kind equilibrium`,
		RunE: runExportList,
	}
	cmd.Flags().String("kind", "", "Only list runs of this kind")
	return cmd
}

func runExportList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("no store configured (set store.path or SOCGRID_STORE_PATH)")
	}
	rs, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer rs.Close()

	kind, _ := cmd.Flags().GetString("kind")
	runs, err := rs.ListRuns(cmd.Context(), kind)
	if err != nil {
		return err
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(runs)
	}
	for _, run := range runs {
		fmt.Printf("%s  %-12s %s  %dx%-4d seed=%-8d geodesic=%.4f converged=%v\n",
			run.ID, run.Kind, run.CreatedAt.Format("2006-01-02 15:04"),
			run.Width, run.Height, run.Seed, run.Geodesic, run.Converged)
	}
	return nil
}

func newExportTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <run-id>",
		Short: "Export a stored equilibrium trace as CSV",
		Long: `Writes the per-pass samples of a stored equilibrium run as CSV.

Example:
  socgrid export trace 6fa0... --out trace.csv`,
		Args: cobra.ExactArgs(1),
		RunE: runExportTrace,
	}
	cmd.Flags().String("out", "", "Output file (default: stdout)")
	return cmd
}

func runExportTrace(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("no store configured (set store.path or SOCGRID_STORE_PATH)")
	}
	rs, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer rs.Close()

	// Fail early with a useful error when the run id is wrong.
	if _, err := rs.GetRun(cmd.Context(), args[0]); err != nil {
		return err
	}
	trace, err := rs.GetTrace(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := os.Stdout
	if path, _ := cmd.Flags().GetString("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	return report.WriteEquilibriumTrace(out, trace)
}
