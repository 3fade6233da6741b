package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	benchQueries int
	benchK       int
)

var buildIndexCmd = &cobra.Command{
	Use:   "build-index",
	Short: "Build an index generation from the sources and save it to MinIO",
	Long: `Takes a snapshot of Qdrant embeddings and the Postgres catalog, builds the index
with the configured strategy and saves it as the latest artifact. Running services
pick it up on their next start when REBUILD_LOAD_ON_START is enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, log, err := newApp()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := application.BuildIndex(ctx); err != nil {
			log.Errorf(err, "build-index failed")
			return err
		}
		return nil
	},
}

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Compare flat, ivf and hnsw indexes on the current embeddings",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, log, err := newApp()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := application.Benchmark(ctx, cmd.OutOrStdout(), benchQueries, benchK); err != nil {
			log.Errorf(err, "benchmark failed")
			return err
		}
		return nil
	},
}

func init() {
	benchmarkCmd.Flags().IntVar(&benchQueries, "queries", 1000, "number of sampled query vectors")
	benchmarkCmd.Flags().IntVar(&benchK, "k", 10, "neighbours per query, recall is measured at k")
}
