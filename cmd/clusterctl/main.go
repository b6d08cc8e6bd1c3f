package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/clustercore/pkg/config"
	"github.com/cuemby/clustercore/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "clusterctl",
	Short:   "clusterctl operates a distributed job-processing cluster",
	Long:    `clusterctl starts and drives a cluster's Cluster Manager, Node Agent, and Worker Runtime processes, and submits jobs to a running cluster.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("clusterctl version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(managerCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(jobCmd)
}

func initLogging() {
	cfg, err := config.LoadLogging()
	if err != nil {
		fmt.Fprintf(os.Stderr, "log config: %v\n", err)
		cfg = log.Config{Level: log.InfoLevel}
	}
	log.Init(cfg)
}
