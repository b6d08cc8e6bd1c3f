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
	"github.com/cuemby/clustercore/pkg/events"
	"github.com/cuemby/clustercore/pkg/log"
	"github.com/cuemby/clustercore/pkg/manager"
	"github.com/cuemby/clustercore/pkg/metrics"
	"github.com/cuemby/clustercore/pkg/orchestrator"
	"github.com/cuemby/clustercore/pkg/queue"
	"github.com/cuemby/clustercore/pkg/registry"
	"github.com/cuemby/clustercore/pkg/storage"
)

var managerCmd = &cobra.Command{
	Use:   "manager",
	Short: "Cluster Manager operations",
}

var managerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the Cluster Manager",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadManager()
		if err != nil {
			return fmt.Errorf("load manager config: %w", err)
		}

		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}

		backendArgs := map[string]interface{}{
			"backend":   cfg.Orchestrator.Backend,
			"redis_url": cfg.Orchestrator.RedisURL,
			"amqp_url":  cfg.Orchestrator.AMQPURL,
		}
		backend, err := queue.NewBackend(backendArgs)
		if err != nil {
			return fmt.Errorf("build queue backend: %w", err)
		}
		orch := orchestrator.New(backend)

		reg := registry.New(store)

		mgr := manager.New(manager.Config{
			NodeID:           cfg.NodeID,
			DataDir:          cfg.DataDir,
			BaseURL:          "http://" + cfg.BindAddr,
			RegistryEndpoint: cfg.RegistryDir,
			BackendArgs:      backendArgs,
		}, store, orch, reg)
		defer mgr.Close()

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()
		mgr.SetEventBroker(broker)

		collector := metrics.NewCollector(orch, store)
		collector.Start()
		defer collector.Stop()

		srv := api.NewManagerServer(mgr)
		httpSrv := &http.Server{Addr: cfg.BindAddr, Handler: srv}

		errCh := make(chan error, 1)
		go func() {
			log.WithComponent("clusterctl").Info().Str("addr", cfg.BindAddr).Msg("cluster manager listening")
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return fmt.Errorf("manager server: %w", err)
		case <-sigCh:
			log.Info("shutting down cluster manager")
			return httpSrv.Close()
		}
	},
}

func init() {
	managerCmd.AddCommand(managerRunCmd)
}
