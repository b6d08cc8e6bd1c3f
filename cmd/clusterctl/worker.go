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
	"github.com/cuemby/clustercore/pkg/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Worker Runtime operations",
}

var workerQueueName string

var workerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a Worker Runtime process",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWorker()
		if err != nil {
			return fmt.Errorf("load worker config: %w", err)
		}

		handler, ok := jobHandlers[cfg.WorkerType]
		if !ok {
			return fmt.Errorf("no compiled-in handler registered for worker type %q (known: %v)", cfg.WorkerType, handlerNames())
		}

		w := worker.New(worker.Config{
			WorkerID:   cfg.WorkerID,
			WorkerType: cfg.WorkerType,
			Handler:    handler,
		})

		if workerQueueName != "" {
			backendArgs := map[string]interface{}{
				"backend":   cfg.Orchestrator.Backend,
				"redis_url": cfg.Orchestrator.RedisURL,
				"amqp_url":  cfg.Orchestrator.AMQPURL,
			}
			if err := w.ConnectToCluster(cmd.Context(), backendArgs, workerQueueName, cfg.ManagerURL); err != nil {
				return fmt.Errorf("connect to cluster: %w", err)
			}
		} else if err := w.Start(cmd.Context()); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}

		srv := api.NewWorkerServer(w)
		httpSrv := &http.Server{Addr: cfg.BindAddr, Handler: srv}

		errCh := make(chan error, 1)
		go func() {
			log.WithComponent("clusterctl").Info().Str("addr", cfg.BindAddr).Str("worker_type", cfg.WorkerType).Msg("worker listening")
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return fmt.Errorf("worker server: %w", err)
		case <-sigCh:
			log.Info("shutting down worker")
			_ = w.Shutdown(cmd.Context())
			return httpSrv.Close()
		}
	},
}

func handlerNames() []string {
	names := make([]string, 0, len(jobHandlers))
	for name := range jobHandlers {
		names = append(names, name)
	}
	return names
}

func init() {
	workerRunCmd.Flags().StringVar(&workerQueueName, "queue", "", "queue name to consume from the cluster's orchestrator backend; if unset the worker starts disconnected and only serves /run")
	workerCmd.AddCommand(workerRunCmd)
}
