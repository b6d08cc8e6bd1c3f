package node

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/clustercore/pkg/health"
	"github.com/cuemby/clustercore/pkg/log"
	"github.com/cuemby/clustercore/pkg/registry"
	"github.com/cuemby/clustercore/pkg/types"
	"github.com/cuemby/clustercore/pkg/worker"
)

// WorkerFactory builds a worker.JobHandler for a ProxyWorker bundle's
// WorkerType ("class_ref" in spec.md's register_worker_type), given its
// stored params. sourceDir is the scratch checkout made from the bundle's
// SourceFetchSpec, or "" if none was set; a factory that exec's a script
// from a fetched repository reads it from there.
type WorkerFactory func(params map[string]interface{}, sourceDir string) (worker.JobHandler, error)

// Config holds a Node's fixed identity and pluggable worker factories. The
// factory map is the Go stand-in for the original's dynamic class
// instantiation by class_ref string: Go has no runtime class loading, so
// each class_ref a deployment expects to launch must have a factory
// registered here at process start.
type Config struct {
	NodeID      string
	BackendArgs map[string]interface{}
	Factories   map[string]WorkerFactory
	ScratchDir  string // base directory for source_fetch_spec checkouts; defaults to os.TempDir()

	// HealthCheck configures how launched workers are polled for liveness.
	// Zero value falls back to health.DefaultConfig().
	HealthCheck health.Config
}

// Node is the Node Agent (spec.md section 4.5): a per-host supervisor that
// materializes worker-type bundles from the Worker Registry and tracks the
// resulting Worker instances for shutdown.
type Node struct {
	cfg       Config
	reg       *registry.Registry
	healthCfg health.Config

	mu          sync.Mutex
	workers     map[string]*worker.Worker // keyed by worker_url
	monitorStop map[string]chan struct{}  // keyed by worker_url
}

// New wires a Node over an already-open Worker Registry, supervising each
// launched worker's liveness with cfg.HealthCheck, or with
// health.DefaultConfig() when cfg.HealthCheck.Interval is zero.
func New(cfg Config, reg *registry.Registry) *Node {
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	healthCfg := cfg.HealthCheck
	if healthCfg.Interval == 0 {
		healthCfg = health.DefaultConfig()
	}
	return &Node{
		cfg:         cfg,
		reg:         reg,
		healthCfg:   healthCfg,
		workers:     make(map[string]*worker.Worker),
		monitorStop: make(map[string]chan struct{}),
	}
}

// LaunchWorker loads worker:<workerType> from the Worker Registry, fetches
// its source if a SourceFetchSpec is set, instantiates the registered
// factory, and tracks the resulting Worker under workerURL. It does not
// itself bind workerURL's HTTP surface or call connect_to_cluster — the
// caller (pkg/api's NodeServer) is responsible for serving the worker's RPC
// surface, and the Cluster Manager drives connect_to_cluster remotely once
// it observes the worker is live.
func (n *Node) LaunchWorker(ctx context.Context, workerType, workerURL string) error {
	bundle, _, err := n.reg.Load(workerType)
	if err != nil {
		return fmt.Errorf("node %s: launch_worker %s: %w", n.cfg.NodeID, workerType, err)
	}

	var sourceDir string
	if bundle.SourceFetchSpec != nil {
		sourceDir, err = n.fetchSource(ctx, bundle.SourceFetchSpec)
		if err != nil {
			return fmt.Errorf("node %s: launch_worker %s: %w", n.cfg.NodeID, workerType, err)
		}
	}

	factory, ok := n.cfg.Factories[bundle.WorkerType]
	if !ok {
		return fmt.Errorf("node %s: launch_worker %s: no factory registered for class %q", n.cfg.NodeID, workerType, bundle.WorkerType)
	}
	handler, err := factory(bundle.WorkerParams, sourceDir)
	if err != nil {
		return fmt.Errorf("node %s: launch_worker %s: %w", n.cfg.NodeID, workerType, err)
	}

	w := worker.New(worker.Config{WorkerID: workerURL, WorkerType: workerType, Handler: handler})
	stop := make(chan struct{})
	n.mu.Lock()
	n.workers[workerURL] = w
	n.monitorStop[workerURL] = stop
	n.mu.Unlock()

	go n.monitorWorker(workerURL, stop)
	return nil
}

// monitorWorker polls workerURL's /heartbeat endpoint on healthCfg.Interval
// using an HTTPChecker, logging at Warn the first time a worker crosses
// healthCfg.Retries consecutive failures and at Info when it recovers. This is
// the Node Agent's own view of worker liveness, independent of the Cluster
// Manager's GetWorkerStatus-based tracking.
func (n *Node) monitorWorker(workerURL string, stop chan struct{}) {
	checker := health.NewHTTPChecker(strings.TrimRight(workerURL, "/") + "/heartbeat").WithMethod("POST")
	status := health.NewStatus()
	ticker := time.NewTicker(n.healthCfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			wasHealthy := status.Healthy
			ctx, cancel := context.WithTimeout(context.Background(), n.healthCfg.Timeout)
			result := checker.Check(ctx)
			cancel()
			status.Update(result, n.healthCfg)

			if wasHealthy && !status.Healthy {
				log.WithNodeID(n.cfg.NodeID).Warn(fmt.Sprintf("worker %s unhealthy: %s", workerURL, result.Message))
			} else if !wasHealthy && status.Healthy {
				log.WithNodeID(n.cfg.NodeID).Info(fmt.Sprintf("worker %s recovered", workerURL))
			}
		}
	}
}

// Worker returns the Worker instance launched at workerURL, if any — used
// by pkg/api's NodeServer to mount the worker's RPC surface right after
// LaunchWorker returns.
func (n *Node) Worker(workerURL string) (*worker.Worker, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	w, ok := n.workers[workerURL]
	return w, ok
}

// fetchSource clones spec.URL into a scratch directory, checking out Branch
// and/or Commit, and returns the (possibly Subdir-qualified) checkout path.
func (n *Node) fetchSource(ctx context.Context, spec *types.SourceFetchSpec) (string, error) {
	dir, err := os.MkdirTemp(n.cfg.ScratchDir, "worker-src-")
	if err != nil {
		return "", fmt.Errorf("node: scratch dir: %w", err)
	}

	args := []string{"clone"}
	if spec.Branch != "" {
		args = append(args, "--branch", spec.Branch)
	}
	args = append(args, spec.URL, dir)
	if out, err := exec.CommandContext(ctx, "git", args...).CombinedOutput(); err != nil {
		return "", fmt.Errorf("node: git clone %s: %w: %s", spec.URL, err, out)
	}

	if spec.Commit != "" {
		cmd := exec.CommandContext(ctx, "git", "-C", dir, "checkout", spec.Commit)
		if out, err := cmd.CombinedOutput(); err != nil {
			return "", fmt.Errorf("node: git checkout %s: %w: %s", spec.Commit, err, out)
		}
	}

	if spec.Subdir != "" {
		dir = filepath.Join(dir, spec.Subdir)
	}
	return dir, nil
}

// Shutdown stops every tracked worker (exceptions logged, not propagated)
// and clears the tracking map.
func (n *Node) Shutdown(ctx context.Context) error {
	n.mu.Lock()
	workers := n.workers
	stops := n.monitorStop
	n.workers = make(map[string]*worker.Worker)
	n.monitorStop = make(map[string]chan struct{})
	n.mu.Unlock()

	for _, stop := range stops {
		close(stop)
	}

	for workerURL, w := range workers {
		if err := w.Shutdown(ctx); err != nil {
			log.WithNodeID(n.cfg.NodeID).Warn(fmt.Sprintf("shutdown worker %s: %v", workerURL, err))
		}
	}
	return nil
}
