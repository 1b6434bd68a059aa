package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "socgrid",
		Short: "Social network formation and opinion diffusion simulator",
		Long: `socgrid grows social networks from a torus lattice by stochastic
attachment and birth-death pruning, runs them to structural equilibrium,
and simulates opinion contagion over the result.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log verbosity: info, debug, trace")
	rootCmd.PersistentFlags().Uint64("seed", 0, "RNG seed (0 picks one from the clock)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newGrowCmd(),
		newEquilibriumCmd(),
		newDiffuseCmd(),
		newStatsCmd(),
		newBatchCmd(),
		newExportCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"version": version})
			} else {
				fmt.Printf("socgrid version %s\n", version)
			}
		},
	}
}
