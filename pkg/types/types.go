package types

import "time"

// Job is an immutable unit of work submitted by a client. It is never
// mutated by the cluster after acceptance; lifecycle is tracked separately
// in JobStatus.
type Job struct {
	ID         string                 `json:"id"`
	SchemaName string                 `json:"schema_name"`
	Payload    map[string]interface{} `json:"payload"`
	CreatedAt  time.Time              `json:"created_at"`
}

// JobState is the lifecycle state of a JobStatus record.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateError     JobState = "error"
)

// Terminal reports whether a JobState accepts no further transitions.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateError:
		return true
	default:
		return false
	}
}

// JobStatus is the mutable lifecycle record for a Job. Exactly one
// JobStatus exists per accepted Job until an explicit clear.
type JobStatus struct {
	JobID    string                 `json:"job_id"`
	Status   JobState               `json:"status"`
	Output   map[string]interface{} `json:"output,omitempty"`
	WorkerID string                 `json:"worker_id,omitempty"`
}

// WorkerState is the cluster-side lifecycle state of a worker.
type WorkerState string

const (
	WorkerStateIdle        WorkerState = "idle"
	WorkerStateRunning     WorkerState = "running"
	WorkerStateError       WorkerState = "error"
	WorkerStateShutdown    WorkerState = "shutdown"
	WorkerStateNonexistent WorkerState = "nonexistent"
)

// WorkerStatus is the Cluster Manager's view of a worker's lifecycle and
// liveness. Created on connect; mutated on every lifecycle callback and on
// explicit status query.
type WorkerStatus struct {
	WorkerID      string      `json:"worker_id"`
	WorkerType    string      `json:"worker_type"`
	WorkerURL     string      `json:"worker_url"`
	Status        WorkerState `json:"status"`
	JobID         string      `json:"job_id,omitempty"`
	LastHeartbeat *time.Time  `json:"last_heartbeat,omitempty"`
}

// WorkerStatusLocal mirrors WorkerStatus from inside the worker process. It
// is the source of truth for the worker's own get_status endpoint and is
// written before every lifecycle callback is sent to the cluster.
type WorkerStatusLocal struct {
	WorkerID      string      `json:"worker_id"`
	Status        WorkerState `json:"status"`
	JobID         string      `json:"job_id,omitempty"`
	LastHeartbeat *time.Time  `json:"last_heartbeat,omitempty"`
}

// JobSchemaTargeting is a routing table entry mapping a schema name to a
// target endpoint. At most one entry exists per SchemaName; re-registering
// deletes the prior entry first.
type JobSchemaTargeting struct {
	SchemaName     string `json:"schema_name"`
	TargetEndpoint string `json:"target_endpoint"`
}

// OrchestratorSentinel is the TargetEndpoint value meaning "route through
// the orchestrator's queue" rather than an HTTP path.
const OrchestratorSentinel = "@orchestrator"

// WorkerAutoConnect binds a worker type to a schema name. When a worker of
// WorkerType is launched, the cluster additionally registers it against
// SchemaName for orchestrator routing.
type WorkerAutoConnect struct {
	WorkerType string `json:"worker_type"`
	SchemaName string `json:"schema_name"`
}

// SourceFetchSpec describes where to fetch a worker type's source from, for
// worker-type bundles not already present on the node.
type SourceFetchSpec struct {
	URL    string `json:"url"`
	Branch string `json:"branch,omitempty"`
	Commit string `json:"commit,omitempty"`
	Subdir string `json:"subdirectory,omitempty"`
}

// ProxyWorker is a worker-type bundle: a recipe for instantiating a worker
// on a node. Stored in the Worker Registry under its worker-type name.
// Immutable once saved under a given name; a subsequent save creates a new
// version.
type ProxyWorker struct {
	WorkerType      string                 `json:"worker_type"`
	WorkerParams    map[string]interface{} `json:"worker_params"`
	SourceFetchSpec *SourceFetchSpec       `json:"source_fetch_spec,omitempty"`
}

// Node is a registered host capable of launching workers.
type Node struct {
	NodeURL string `json:"node_url"`
}

// RegisterNodeResult carries the worker-registry access credentials
// returned to a node so it can materialise bundles.
type RegisterNodeResult struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
}

// HeartbeatState is the availability reported by a worker's /heartbeat
// endpoint.
type HeartbeatState string

const (
	HeartbeatAvailable HeartbeatState = "available"
	HeartbeatDown      HeartbeatState = "down"
)

// Heartbeat is the response shape of a worker's /heartbeat endpoint.
type Heartbeat struct {
	Status   HeartbeatState `json:"status"`
	ServerID string         `json:"server_id"`
}
