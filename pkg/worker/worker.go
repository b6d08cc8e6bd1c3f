package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/clustercore/pkg/client"
	"github.com/cuemby/clustercore/pkg/log"
	"github.com/cuemby/clustercore/pkg/orchestrator"
	"github.com/cuemby/clustercore/pkg/queue"
	"github.com/cuemby/clustercore/pkg/types"
)

// popTimeout bounds each blocking pop so the consumption loop can notice
// shutdown without an indefinite wait.
const popTimeout = 2 * time.Second

// JobHandler is user-defined job logic, the Go equivalent of the original
// worker class's overridden _run(payload) method.
type JobHandler func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error)

// Config holds the fixed identity and logic a Worker is constructed with.
type Config struct {
	WorkerID   string
	WorkerType string
	Handler    JobHandler

	// OnStart is invoked once, either directly via Start or as the first
	// step of ConnectToCluster, mirroring the original's user-defined
	// start() hook. Optional.
	OnStart func(ctx context.Context) error
}

// Worker is the Worker Runtime (spec.md section 4.4): a long-lived process
// that consumes a queue, invokes user logic, reports job start/completion
// to the cluster, and advertises liveness. Generalized from the teacher's
// containerd-backed Worker (worker.go original) to run arbitrary Go
// handlers instead of container images.
type Worker struct {
	id         string
	workerType string
	handler    JobHandler
	onStart    func(ctx context.Context) error

	mu         sync.RWMutex
	status     types.WorkerStatusLocal
	clusterURL string
	queueName  string
	shutdown   bool

	orch   *orchestrator.Orchestrator
	mc     *client.ManagerClient
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Worker in disconnected mode; ConnectToCluster must be
// called before it consumes any jobs.
func New(cfg Config) *Worker {
	return &Worker{
		id:         cfg.WorkerID,
		workerType: cfg.WorkerType,
		handler:    cfg.Handler,
		onStart:    cfg.OnStart,
		status:     types.WorkerStatusLocal{WorkerID: cfg.WorkerID, Status: types.WorkerStateIdle},
	}
}

// Start invokes the user-defined start() hook, if any. Safe to call
// directly (the /start RPC) or implicitly via ConnectToCluster.
func (w *Worker) Start(ctx context.Context) error {
	if w.onStart == nil {
		return nil
	}
	return w.onStart(ctx)
}

// ConnectToCluster stores the cluster URL, runs Start, declares queueName
// on an Orchestrator built from backendArgs, and spawns the background
// consumption loop. Matches spec.md section 4.4.
func (w *Worker) ConnectToCluster(ctx context.Context, backendArgs map[string]interface{}, queueName, clusterURL string) error {
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("worker %s: start: %w", w.id, err)
	}

	backend, err := queue.NewBackend(backendArgs)
	if err != nil {
		return fmt.Errorf("worker %s: connect_to_cluster: %w", w.id, err)
	}
	orch := orchestrator.New(backend)
	if _, err := orch.Register(ctx, queueName, queue.FIFO); err != nil {
		return fmt.Errorf("worker %s: connect_to_cluster: declare %s: %w", w.id, queueName, err)
	}

	w.mu.Lock()
	w.clusterURL = clusterURL
	w.queueName = queueName
	w.orch = orch
	if clusterURL != "" {
		w.mc = client.NewManagerClient(clusterURL)
	}
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	if clusterURL == "" {
		log.WithWorkerID(w.id).Warn("connected in disconnected mode: job start/complete callbacks will be skipped")
	}

	w.wg.Add(1)
	go w.consumeLoop()
	return nil
}

// consumeLoop pops and runs jobs until Shutdown closes stopCh.
func (w *Worker) consumeLoop() {
	defer w.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		w.mu.RLock()
		orch, queueName := w.orch, w.queueName
		w.mu.RUnlock()

		job, err := orch.ReceiveMessage(ctx, queueName, true, popTimeout)
		if err != nil {
			if err != queue.ErrEmpty {
				log.WithWorkerID(w.id).Warn(fmt.Sprintf("pop from %s failed: %v", queueName, err))
			}
			continue
		}
		w.Run(ctx, job)
	}
}

// Run executes job, reporting its lifecycle to the cluster (spec.md section
// 4.4's five-step sequence). In disconnected mode, steps 2 and 5 (the
// cluster callbacks) are skipped.
func (w *Worker) Run(ctx context.Context, job *types.Job) {
	w.mu.RLock()
	mc := w.mc
	w.mu.RUnlock()

	w.setStatus(types.WorkerStateRunning, job.ID)
	if mc != nil {
		if err := mc.WorkerAlertStartedJob(ctx, job.ID, w.id); err != nil {
			log.WithJobID(job.ID).Warn(fmt.Sprintf("worker_alert_started_job failed: %v", err))
		}
	}

	output, runErr := w.invokeHandler(ctx, job)

	w.setStatus(types.WorkerStateIdle, "")
	if mc == nil {
		return
	}

	if runErr != nil {
		log.WithJobID(job.ID).Warn(fmt.Sprintf("job handler failed: %v", runErr))
		if err := mc.WorkerAlertCompletedJob(ctx, job.ID, w.id, types.JobStateFailed, nil); err != nil {
			log.WithJobID(job.ID).Warn(fmt.Sprintf("worker_alert_completed_job failed: %v", err))
		}
		return
	}
	if err := mc.WorkerAlertCompletedJob(ctx, job.ID, w.id, types.JobStateCompleted, output); err != nil {
		log.WithJobID(job.ID).Warn(fmt.Sprintf("worker_alert_completed_job failed: %v", err))
	}
}

// invokeHandler calls the user-defined handler, converting a panic into an
// error so a single bad job never kills the consumption loop.
func (w *Worker) invokeHandler(ctx context.Context, job *types.Job) (output map[string]interface{}, err error) {
	if w.handler == nil {
		return nil, fmt.Errorf("worker %s: no job handler configured", w.id)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %s: job %s panicked: %v", w.id, job.ID, r)
		}
	}()
	return w.handler(ctx, job.Payload)
}

func (w *Worker) setStatus(state types.WorkerState, jobID string) {
	now := time.Now()
	w.mu.Lock()
	w.status.Status = state
	w.status.JobID = jobID
	w.status.LastHeartbeat = &now
	w.mu.Unlock()
}

// GetStatus returns a copy of the worker's local status mirror.
func (w *Worker) GetStatus() *types.WorkerStatusLocal {
	w.mu.RLock()
	defer w.mu.RUnlock()
	status := w.status
	return &status
}

// Heartbeat reports availability for the /heartbeat RPC.
func (w *Worker) Heartbeat() *types.Heartbeat {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.shutdown {
		return &types.Heartbeat{Status: types.HeartbeatDown, ServerID: w.id}
	}
	return &types.Heartbeat{Status: types.HeartbeatAvailable, ServerID: w.id}
}

// Shutdown stops the consumption loop and releases the queue connection.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if w.shutdown {
		w.mu.Unlock()
		return nil
	}
	w.shutdown = true
	stopCh, orch := w.stopCh, w.orch
	w.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		w.wg.Wait()
	}
	if orch != nil {
		return orch.Close()
	}
	return nil
}
