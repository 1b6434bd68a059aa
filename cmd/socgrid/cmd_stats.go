package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/socgrid/socgrid/internal/metrics"
	"github.com/socgrid/socgrid/internal/snapshot"
)

// newStatsCmd creates the 'stats' command: measure a stored network.
func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <network.json>",
		Short: "Print structural measures of a stored network",
		Long: `Loads a node-link JSON network and reports its average path length,
clustering, degree distribution and the most central nodes.

Example:
  socgrid stats stable.json --top 5`,
		Args: cobra.ExactArgs(1),
		RunE: runStats,
	}

	cmd.Flags().Int("top", 5, "How many top-centrality nodes to list")

	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	snap, err := snapshot.Load(args[0])
	if err != nil {
		return err
	}
	g, _, err := snap.Restore()
	if err != nil {
		return err
	}

	stats, err := measure(g)
	if err != nil {
		return err
	}

	centrality, err := metrics.EigenvectorCentrality(g,
		metrics.DefaultCentralityIter, metrics.DefaultCentralityTol)
	if err != nil {
		return fmt.Errorf("measuring centrality: %w", err)
	}
	top, _ := cmd.Flags().GetInt("top")
	hubs := topNodes(centrality, top)

	jsonOut, _ := cmd.Flags().GetBool("json")
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"stats": stats,
			"hubs":  hubs,
		})
	}
	printStats(stats)
	fmt.Println("top centrality:")
	for _, h := range hubs {
		fmt.Printf("  node %-5d %.4f (degree %d)\n", h.Node, h.Centrality, g.Degree(h.Node))
	}
	return nil
}

type hub struct {
	Node       int     `json:"node"`
	Centrality float64 `json:"centrality"`
}

func topNodes(centrality []float64, n int) []hub {
	hubs := make([]hub, len(centrality))
	for i, c := range centrality {
		hubs[i] = hub{Node: i, Centrality: c}
	}
	sort.Slice(hubs, func(i, j int) bool {
		if hubs[i].Centrality != hubs[j].Centrality {
			return hubs[i].Centrality > hubs[j].Centrality
		}
		return hubs[i].Node < hubs[j].Node
	})
	if n > len(hubs) {
		n = len(hubs)
	}
	return hubs[:n]
}
