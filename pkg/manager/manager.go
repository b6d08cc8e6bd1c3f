package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/clustercore/pkg/client"
	"github.com/cuemby/clustercore/pkg/events"
	"github.com/cuemby/clustercore/pkg/log"
	"github.com/cuemby/clustercore/pkg/metrics"
	"github.com/cuemby/clustercore/pkg/orchestrator"
	"github.com/cuemby/clustercore/pkg/queue"
	"github.com/cuemby/clustercore/pkg/registry"
	"github.com/cuemby/clustercore/pkg/storage"
	"github.com/cuemby/clustercore/pkg/types"
)

// Config holds configuration for creating a Manager, replacing the
// teacher's NodeID/BindAddr/DataDir trio with the fields the Cluster
// Manager's operations (spec.md section 4.3) actually need.
type Config struct {
	NodeID  string
	DataDir string

	// BaseURL is this manager's own externally reachable address. It is
	// handed to workers in connect_to_cluster so they know where to send
	// worker_alert_started_job/worker_alert_completed_job, and used as the
	// prefix for register_job_to_endpoint's direct-HTTP-proxy routing.
	BaseURL string

	// RegistryEndpoint is returned to nodes from register_node as the
	// address they should use to fetch worker bundles.
	RegistryEndpoint string

	// BackendArgs is forwarded verbatim to a worker's connect_to_cluster
	// call so it can construct a matching Orchestrator consumer bound to
	// the same queue backend this manager publishes to.
	BackendArgs map[string]interface{}
}

// Manager is the Cluster Manager: the single-owner authority over job
// status, worker status, routing, worker registry and node membership
// (spec.md section 3, "Ownership"). It replaces the teacher's Raft-backed
// *Manager (manager.go original) with a single-process owner, since no
// SPEC_FULL.md component requires multi-manager replication (see
// DESIGN.md's dropped-dependency note on hashicorp/raft).
type Manager struct {
	cfg    Config
	store  storage.Store
	orch   *orchestrator.Orchestrator
	reg    *registry.Registry
	creds  *CredentialManager
	events *events.Broker

	// submissions tracks each pending job's schema name and submission
	// time between submit_job and whichever call resolves it (a
	// synchronous endpoint proxy and routing-miss resolve it within
	// SubmitJob itself; an orchestrator-routed job resolves it later in
	// WorkerAlertCompletedJob), so metrics.JobLatency and the
	// completed/failed counters can be labeled and timed at resolution.
	subMu       sync.Mutex
	submissions map[string]jobSubmission
}

type jobSubmission struct {
	schema string
	at     time.Time
}

// recordSubmission remembers job's schema and submission time.
func (m *Manager) recordSubmission(jobID, schema string) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if m.submissions == nil {
		m.submissions = make(map[string]jobSubmission)
	}
	m.submissions[jobID] = jobSubmission{schema: schema, at: time.Now()}
}

// popSubmission removes and returns jobID's tracked submission, if any.
func (m *Manager) popSubmission(jobID string) (jobSubmission, bool) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	sub, ok := m.submissions[jobID]
	if ok {
		delete(m.submissions, jobID)
	}
	return sub, ok
}

// observeJobResolution records the completed/failed counter and job latency
// histogram for a job that has just reached a terminal state.
func observeJobResolution(schema string, state types.JobState, since time.Time) {
	if state == types.JobStateFailed || state == types.JobStateError {
		metrics.JobsFailedTotal.WithLabelValues(schema).Inc()
	} else {
		metrics.JobsCompletedTotal.WithLabelValues(schema).Inc()
	}
	metrics.JobLatency.WithLabelValues(schema).Observe(time.Since(since).Seconds())
}

// SetEventBroker attaches a Broker that lifecycle operations publish to.
// Optional: a Manager with no broker attached simply skips publishing.
func (m *Manager) SetEventBroker(b *events.Broker) {
	m.events = b
}

func (m *Manager) publish(evtType events.EventType, message string, metadata map[string]string) {
	if m.events == nil {
		return
	}
	m.events.Publish(&events.Event{Type: evtType, Message: message, Metadata: metadata})
}

// New wires a Manager over an already-open store, orchestrator and
// registry (constructed by the caller from pkg/config, mirroring the
// teacher's NewManager(cfg *Config) constructor shape).
func New(cfg Config, store storage.Store, orch *orchestrator.Orchestrator, reg *registry.Registry) *Manager {
	m := &Manager{
		cfg:   cfg,
		store: store,
		orch:  orch,
		reg:   reg,
		creds: NewCredentialManager(),
	}
	// Rebuild the orchestrator's schema mapping from the durable routing table.
	targetings, err := store.ListJobSchemaTargetings()
	if err != nil {
		log.WithComponent("manager").Warn().Err(err).Msg("list job schema targetings failed, schema mapping not rebuilt")
	}
	for _, t := range targetings {
		if t.TargetEndpoint != types.OrchestratorSentinel {
			continue
		}
		if _, err := orch.Register(context.Background(), t.SchemaName, queue.FIFO); err != nil {
			log.WithComponent("manager").Warn().Err(err).Str("schema_name", t.SchemaName).Msg("re-register schema failed")
		}
	}
	return m
}

// Close releases the Manager's storage and orchestrator resources.
func (m *Manager) Close() error {
	if err := m.orch.Close(); err != nil {
		return err
	}
	return m.store.Close()
}

// RegisterJobToEndpoint routes schemaName's jobs to a direct HTTP endpoint
// on this manager's own HTTP surface, replacing any prior routing for the
// schema (invariant 9: re-applying with the same inputs is idempotent).
func (m *Manager) RegisterJobToEndpoint(ctx context.Context, schemaName, endpoint string) error {
	entry := &types.JobSchemaTargeting{SchemaName: schemaName, TargetEndpoint: endpoint}
	if err := m.store.SetJobSchemaTargeting(entry); err != nil {
		return fmt.Errorf("manager: register_job_to_endpoint %s: %w", schemaName, err)
	}
	return nil
}

// RegisterJobToWorker routes schemaName's jobs through the Orchestrator to
// a queue consumed by the worker at workerURL. If the worker's heartbeat
// reports down (or is unreachable), the registration is skipped entirely:
// no queue binding, no WorkerStatus row, and no error (spec.md S5).
func (m *Manager) RegisterJobToWorker(ctx context.Context, schemaName, workerURL string) error {
	wc := client.NewWorkerClient(workerURL)
	hb, _ := wc.Heartbeat(ctx)
	if hb.Status == types.HeartbeatDown {
		log.WithComponent("manager").Warn().
			Str("schema_name", schemaName).
			Str("worker_url", workerURL).
			Msg("worker heartbeat down, skipping registration")
		return nil
	}

	entry := &types.JobSchemaTargeting{SchemaName: schemaName, TargetEndpoint: types.OrchestratorSentinel}
	if err := m.store.SetJobSchemaTargeting(entry); err != nil {
		return fmt.Errorf("manager: register_job_to_worker %s: %w", schemaName, err)
	}
	if _, err := m.orch.Register(ctx, schemaName, queue.FIFO); err != nil {
		return fmt.Errorf("manager: declare queue for %s: %w", schemaName, err)
	}

	if err := wc.ConnectToCluster(ctx, m.cfg.BackendArgs, schemaName, m.cfg.BaseURL); err != nil {
		return fmt.Errorf("manager: connect_to_cluster on %s: %w", workerURL, err)
	}

	now := time.Now()
	status := &types.WorkerStatus{
		// The real worker_id surfaces later via worker_alert_started_job;
		// until then the worker's own URL is the only identity this
		// registration flow has, so it doubles as a provisional key (also
		// reachable through GetWorkerStatusByURL).
		WorkerID:      workerURL,
		WorkerURL:     workerURL,
		Status:        types.WorkerStateIdle,
		LastHeartbeat: &now,
	}
	if err := m.store.SaveWorkerStatus(status); err != nil {
		return fmt.Errorf("manager: save worker status for %s: %w", workerURL, err)
	}
	return nil
}

// RegisterWorkerType assembles a ProxyWorker bundle and saves it in the
// Worker Registry under name. If jobType is non-empty it additionally
// chains register_job_schema_to_worker_type(jobType, name).
func (m *Manager) RegisterWorkerType(ctx context.Context, name, classRef string, params map[string]interface{}, sourceFetchSpec *types.SourceFetchSpec, jobType string) error {
	bundle := &types.ProxyWorker{
		WorkerType:      classRef,
		WorkerParams:    params,
		SourceFetchSpec: sourceFetchSpec,
	}
	if _, err := m.reg.Save(name, bundle); err != nil {
		return fmt.Errorf("manager: register_worker_type %s: %w", name, err)
	}
	if jobType != "" {
		if err := m.RegisterJobSchemaToWorkerType(ctx, jobType, name); err != nil {
			return err
		}
	}
	return nil
}

// RegisterJobSchemaToWorkerType binds schemaName to worker type
// workerType, if workerType exists in the Worker Registry; otherwise it is
// a no-op (spec.md section 4.3).
func (m *Manager) RegisterJobSchemaToWorkerType(ctx context.Context, schemaName, workerType string) error {
	if _, _, err := m.reg.Load(workerType); err != nil {
		return nil
	}

	entry := &types.JobSchemaTargeting{SchemaName: schemaName, TargetEndpoint: types.OrchestratorSentinel}
	if err := m.store.SetJobSchemaTargeting(entry); err != nil {
		return fmt.Errorf("manager: register_job_schema_to_worker_type %s: %w", schemaName, err)
	}
	autoConnect := &types.WorkerAutoConnect{WorkerType: workerType, SchemaName: schemaName}
	if err := m.store.AddWorkerAutoConnect(autoConnect); err != nil {
		return fmt.Errorf("manager: register_job_schema_to_worker_type %s: %w", schemaName, err)
	}
	return nil
}

// LaunchWorker instructs the Node at nodeURL to launch a worker of
// workerType bound to workerURL, then chains register_job_to_worker for
// every schema that worker type auto-connects to.
func (m *Manager) LaunchWorker(ctx context.Context, nodeURL, workerType, workerURL string) error {
	nc := client.NewNodeClient(nodeURL)
	if err := nc.LaunchWorker(ctx, workerType, workerURL); err != nil {
		return fmt.Errorf("manager: launch_worker on %s: %w", nodeURL, err)
	}

	autoConnects, err := m.store.ListWorkerAutoConnectsByType(workerType)
	if err != nil {
		return fmt.Errorf("manager: list auto-connects for %s: %w", workerType, err)
	}
	for _, entry := range autoConnects {
		if err := m.RegisterJobToWorker(ctx, entry.SchemaName, workerURL); err != nil {
			return err
		}
	}
	return nil
}

// RegisterNode records nodeURL as a cluster member and issues it a fresh
// worker-registry access credential.
func (m *Manager) RegisterNode(ctx context.Context, nodeURL string) (*types.RegisterNodeResult, error) {
	if err := m.store.SaveNode(&types.Node{NodeURL: nodeURL}); err != nil {
		return nil, fmt.Errorf("manager: register_node %s: %w", nodeURL, err)
	}
	cred, err := m.creds.Issue(nodeURL)
	if err != nil {
		return nil, fmt.Errorf("manager: register_node %s: %w", nodeURL, err)
	}
	m.publish(events.EventNodeJoined, fmt.Sprintf("node %s joined", nodeURL), map[string]string{"node_url": nodeURL})
	return &types.RegisterNodeResult{
		Endpoint:  m.cfg.RegistryEndpoint,
		AccessKey: cred.AccessKey,
		SecretKey: cred.SecretKey,
		Bucket:    "worker-registry",
	}, nil
}

// SubmitJob creates a queued JobStatus for job and either publishes it to
// the Orchestrator or proxies it synchronously to a direct HTTP endpoint,
// depending on how job.SchemaName was routed.
func (m *Manager) SubmitJob(ctx context.Context, job *types.Job) (*types.JobStatus, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	status := &types.JobStatus{JobID: job.ID, Status: types.JobStateQueued}
	if err := m.store.CreateJobStatus(status); err != nil {
		return nil, fmt.Errorf("manager: submit_job %s: %w", job.ID, err)
	}
	submittedAt := time.Now()
	metrics.JobsSubmittedTotal.WithLabelValues(job.SchemaName).Inc()
	m.publish(events.EventJobSubmitted, fmt.Sprintf("job %s submitted", job.ID), map[string]string{"job_id": job.ID, "schema_name": job.SchemaName})

	targeting, err := m.store.GetJobSchemaTargeting(job.SchemaName)
	if err != nil {
		status.Status = types.JobStateError
		status.Output = map[string]interface{}{"error": fmt.Sprintf("No job schema targeting found for job type %s", job.SchemaName)}
		if uerr := m.store.UpdateJobStatus(status); uerr != nil {
			return nil, fmt.Errorf("manager: submit_job %s: %w", job.ID, uerr)
		}
		observeJobResolution(job.SchemaName, status.Status, submittedAt)
		return status, nil
	}

	if targeting.TargetEndpoint == types.OrchestratorSentinel {
		if _, err := m.orch.Register(ctx, job.SchemaName, queue.FIFO); err != nil {
			return nil, fmt.Errorf("manager: submit_job %s: %w", job.ID, err)
		}
		if _, err := m.orch.Publish(ctx, job.SchemaName, job, orchestrator.PublishOpts{}); err != nil {
			return nil, fmt.Errorf("manager: submit_job %s: %w", job.ID, err)
		}
		m.recordSubmission(job.ID, job.SchemaName)
		return status, nil
	}

	mc := client.NewManagerClient(m.cfg.BaseURL)
	proxied, err := mc.SubmitJobAt(ctx, targeting.TargetEndpoint, job)
	if err != nil {
		return nil, fmt.Errorf("manager: submit_job %s: %w", job.ID, err)
	}

	status.Status = proxied.Status
	status.Output = proxied.Output
	status.WorkerID = proxied.WorkerID
	if err := m.store.UpdateJobStatus(status); err != nil {
		return nil, fmt.Errorf("manager: submit_job %s: %w", job.ID, err)
	}
	observeJobResolution(job.SchemaName, status.Status, submittedAt)
	return status, nil
}

// WorkerAlertStartedJob marks jobID as running and assigns it to workerID,
// and marks that worker busy. It raises types.ErrInvariantViolation if
// jobID has no JobStatus row.
func (m *Manager) WorkerAlertStartedJob(ctx context.Context, jobID, workerID string) error {
	status, err := m.store.GetJobStatus(jobID)
	if err != nil {
		return fmt.Errorf("manager: worker_alert_started_job %s: %w", jobID, types.ErrInvariantViolation)
	}
	status.Status = types.JobStateRunning
	status.WorkerID = workerID
	if err := m.store.UpdateJobStatus(status); err != nil {
		return fmt.Errorf("manager: worker_alert_started_job %s: %w", jobID, err)
	}

	now := time.Now()
	ws := m.workerStatusOrNew(workerID)
	ws.Status = types.WorkerStateRunning
	ws.JobID = jobID
	ws.LastHeartbeat = &now
	if err := m.store.SaveWorkerStatus(ws); err != nil {
		return fmt.Errorf("manager: worker_alert_started_job %s: %w", jobID, err)
	}
	m.publish(events.EventJobStarted, fmt.Sprintf("job %s started on worker %s", jobID, workerID), map[string]string{"job_id": jobID, "worker_id": workerID})
	return nil
}

// WorkerAlertCompletedJob marks jobID terminal with status and output, and
// frees the reporting worker. If the JobStatus's recorded worker_id
// differs from workerID, the update is still applied (last-writer-wins)
// and a warning is logged — see DESIGN.md's Open Question (a) decision.
func (m *Manager) WorkerAlertCompletedJob(ctx context.Context, jobID, workerID string, jobStatus types.JobState, output map[string]interface{}) error {
	status, err := m.store.GetJobStatus(jobID)
	if err != nil {
		return fmt.Errorf("manager: worker_alert_completed_job %s: %w", jobID, types.ErrInvariantViolation)
	}

	if status.WorkerID != "" && status.WorkerID != workerID {
		log.WithComponent("manager").Warn().
			Str("job_id", jobID).
			Str("recorded_worker_id", status.WorkerID).
			Str("reporting_worker_id", workerID).
			Msg("worker_alert_completed_job from a different worker than assigned; applying last-writer-wins")
	}

	status.Status = jobStatus
	status.Output = output
	status.WorkerID = workerID
	if err := m.store.UpdateJobStatus(status); err != nil {
		return fmt.Errorf("manager: worker_alert_completed_job %s: %w", jobID, err)
	}

	now := time.Now()
	ws := m.workerStatusOrNew(workerID)
	ws.Status = types.WorkerStateIdle
	ws.JobID = ""
	ws.LastHeartbeat = &now
	if err := m.store.SaveWorkerStatus(ws); err != nil {
		return fmt.Errorf("manager: worker_alert_completed_job %s: %w", jobID, err)
	}
	if jobStatus == types.JobStateFailed {
		m.publish(events.EventJobFailed, fmt.Sprintf("job %s failed on worker %s", jobID, workerID), map[string]string{"job_id": jobID, "worker_id": workerID})
	} else {
		m.publish(events.EventJobCompleted, fmt.Sprintf("job %s completed on worker %s", jobID, workerID), map[string]string{"job_id": jobID, "worker_id": workerID})
	}
	if sub, ok := m.popSubmission(jobID); ok {
		observeJobResolution(sub.schema, jobStatus, sub.at)
	}
	return nil
}

func (m *Manager) workerStatusOrNew(workerID string) *types.WorkerStatus {
	if existing, err := m.store.GetWorkerStatus(workerID); err == nil {
		return existing
	}
	return &types.WorkerStatus{WorkerID: workerID}
}

// GetJobStatus finds jobID's JobStatus, raising types.ErrStoreMiss if it
// does not exist.
func (m *Manager) GetJobStatus(ctx context.Context, jobID string) (*types.JobStatus, error) {
	status, err := m.store.GetJobStatus(jobID)
	if err != nil {
		return nil, fmt.Errorf("manager: get_job_status %s: %w", jobID, err)
	}
	return status, nil
}

func syntheticWorkerStatus(workerID string) *types.WorkerStatus {
	return &types.WorkerStatus{WorkerID: workerID, Status: types.WorkerStateNonexistent}
}

// GetWorkerStatus returns workerID's stored WorkerStatus, or a synthetic
// nonexistent row on miss. It never raises.
func (m *Manager) GetWorkerStatus(ctx context.Context, workerID string) (*types.WorkerStatus, error) {
	status, err := m.store.GetWorkerStatus(workerID)
	if err != nil {
		return syntheticWorkerStatus(workerID), nil
	}
	return status, nil
}

// GetWorkerStatusByURL returns the stored WorkerStatus for workerURL, or a
// synthetic nonexistent row on miss. It never raises.
func (m *Manager) GetWorkerStatusByURL(ctx context.Context, workerURL string) (*types.WorkerStatus, error) {
	status, err := m.store.GetWorkerStatusByURL(workerURL)
	if err != nil {
		return syntheticWorkerStatus(""), nil
	}
	return status, nil
}

// QueryWorkerStatus reconciles the stored WorkerStatus for workerID against
// a live heartbeat/get_status call to that worker, overwriting the stored
// row with whatever is learned (spec.md S6).
func (m *Manager) QueryWorkerStatus(ctx context.Context, workerID string) (*types.WorkerStatus, error) {
	status, err := m.store.GetWorkerStatus(workerID)
	if err != nil {
		return syntheticWorkerStatus(workerID), nil
	}

	wc := client.NewWorkerClient(status.WorkerURL)
	hb, err := wc.Heartbeat(ctx)
	now := time.Now()
	if err != nil || hb.Status == types.HeartbeatDown {
		status.Status = types.WorkerStateNonexistent
		status.JobID = ""
		status.LastHeartbeat = &now
		if err := m.store.SaveWorkerStatus(status); err != nil {
			return nil, fmt.Errorf("manager: query_worker_status %s: %w", workerID, err)
		}
		return status, nil
	}

	local, err := wc.GetStatus(ctx)
	if err != nil {
		status.Status = types.WorkerStateNonexistent
		status.JobID = ""
		status.LastHeartbeat = &now
		if err := m.store.SaveWorkerStatus(status); err != nil {
			return nil, fmt.Errorf("manager: query_worker_status %s: %w", workerID, err)
		}
		return status, nil
	}

	status.Status = local.Status
	status.JobID = local.JobID
	status.LastHeartbeat = &now
	if err := m.store.SaveWorkerStatus(status); err != nil {
		return nil, fmt.Errorf("manager: query_worker_status %s: %w", workerID, err)
	}
	return status, nil
}

// ClearDatabases deletes every row from every store this manager owns.
// The first error aborts the sweep and propagates (spec.md section 4.3).
func (m *Manager) ClearDatabases(ctx context.Context) error {
	steps := []func() error{
		m.store.DeleteAllJobStatuses,
		m.store.DeleteAllWorkerStatuses,
		m.store.DeleteAllJobSchemaTargetings,
		m.store.DeleteAllWorkerAutoConnects,
		m.store.DeleteAllNodes,
		m.store.DeleteAllWorkerBundles,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("manager: clear_databases: %w", err)
		}
	}
	return nil
}
