package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/clustercore/pkg/api"
	"github.com/cuemby/clustercore/pkg/config"
	"github.com/cuemby/clustercore/pkg/log"
	"github.com/cuemby/clustercore/pkg/node"
	"github.com/cuemby/clustercore/pkg/registry"
	"github.com/cuemby/clustercore/pkg/storage"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Node Agent operations",
}

var nodeRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a Node Agent process",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadNode()
		if err != nil {
			return fmt.Errorf("load node config: %w", err)
		}

		store, err := storage.NewBoltStore(cfg.RegistryDir)
		if err != nil {
			return fmt.Errorf("open registry cache: %w", err)
		}
		defer store.Close()
		reg := registry.New(store)

		n := node.New(node.Config{
			NodeID:    cfg.NodeID,
			Factories: workerFactories,
		}, reg)

		srv := api.NewNodeServer(n)
		httpSrv := &http.Server{Addr: cfg.BindAddr, Handler: srv}

		errCh := make(chan error, 1)
		go func() {
			log.WithComponent("clusterctl").Info().Str("addr", cfg.BindAddr).Msg("node agent listening")
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return fmt.Errorf("node server: %w", err)
		case <-sigCh:
			log.Info("shutting down node agent")
			return httpSrv.Close()
		}
	},
}

func init() {
	nodeCmd.AddCommand(nodeRunCmd)
}
