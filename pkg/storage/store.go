// Package storage persists the Cluster Manager's owned records: job status,
// worker status, the job-schema routing table, worker auto-connect bindings,
// registered nodes, and versioned worker-type bundles.
package storage

import (
	"github.com/cuemby/clustercore/pkg/types"
)

// Store is implemented by every storage backend (BoltDB-backed and
// in-memory). All methods are safe for concurrent use.
type Store interface {
	// Job status: exactly one row per JobID (see types.JobStatus).
	CreateJobStatus(status *types.JobStatus) error
	UpdateJobStatus(status *types.JobStatus) error
	GetJobStatus(jobID string) (*types.JobStatus, error)
	ListJobStatuses() ([]*types.JobStatus, error)
	DeleteAllJobStatuses() error

	// Worker status: last-writer-wins upsert per WorkerID.
	SaveWorkerStatus(status *types.WorkerStatus) error
	GetWorkerStatus(workerID string) (*types.WorkerStatus, error)
	GetWorkerStatusByURL(workerURL string) (*types.WorkerStatus, error)
	ListWorkerStatuses() ([]*types.WorkerStatus, error)
	DeleteAllWorkerStatuses() error

	// Job schema targeting: at most one entry per SchemaName.
	SetJobSchemaTargeting(entry *types.JobSchemaTargeting) error
	GetJobSchemaTargeting(schemaName string) (*types.JobSchemaTargeting, error)
	DeleteJobSchemaTargeting(schemaName string) error
	ListJobSchemaTargetings() ([]*types.JobSchemaTargeting, error)
	DeleteAllJobSchemaTargetings() error

	// Worker auto-connect bindings, keyed by (WorkerType, SchemaName).
	AddWorkerAutoConnect(entry *types.WorkerAutoConnect) error
	ListWorkerAutoConnectsByType(workerType string) ([]*types.WorkerAutoConnect, error)
	DeleteAllWorkerAutoConnects() error

	// Registered nodes, keyed by NodeURL.
	SaveNode(node *types.Node) error
	ListNodes() ([]*types.Node, error)
	DeleteAllNodes() error

	// Worker-type bundles: versioned per name, with a latest-version
	// pointer per name. SaveWorkerBundle always creates a new version and
	// never overwrites an existing one.
	SaveWorkerBundle(name string, bundle *types.ProxyWorker) (version int, err error)
	GetLatestWorkerBundle(name string) (bundle *types.ProxyWorker, version int, err error)
	GetWorkerBundleVersion(name string, version int) (*types.ProxyWorker, error)
	ListWorkerBundleVersions(name string) ([]int, error)
	DeleteAllWorkerBundles() error

	Close() error
}
