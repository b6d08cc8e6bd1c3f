// Package orchestrator is a facade over a single queue.Backend: it declares
// named queues for job schemas, publishes and receives Jobs, and tracks an
// in-memory schema → queue mapping that the Cluster Manager rebuilds on
// startup by re-registering its durable JobSchemaTargeting entries.
//
// Modeled on mindtrace/jobs/core/orchestrator.py (original_source).
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/clustercore/pkg/metrics"
	"github.com/cuemby/clustercore/pkg/queue"
	"github.com/cuemby/clustercore/pkg/types"
)

// PublishOpts carries per-publish options.
type PublishOpts struct {
	// Priority is only honored when the target queue was declared with
	// queue.Priority.
	Priority *int
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	backend queue.Backend

	mu      sync.RWMutex
	schemas map[string]queue.Type
}

// New wraps backend in an Orchestrator with an empty schema mapping.
func New(backend queue.Backend) *Orchestrator {
	return &Orchestrator{backend: backend, schemas: make(map[string]queue.Type)}
}

// Register declares the queue named schemaName of the given type and
// records it in the in-memory schema mapping. Idempotent for repeated
// calls with the same name and type.
func (o *Orchestrator) Register(ctx context.Context, schemaName string, qtype queue.Type) (string, error) {
	if qtype == "" {
		qtype = queue.FIFO
	}
	if err := o.backend.DeclareQueue(ctx, schemaName, qtype); err != nil {
		return "", fmt.Errorf("orchestrator: register %s: %w", schemaName, err)
	}
	o.mu.Lock()
	o.schemas[schemaName] = qtype
	o.mu.Unlock()
	return schemaName, nil
}

// Publish serializes job and pushes it onto queueName. If job.ID is empty a
// fresh UUID is assigned. Returns the job's ID.
func (o *Orchestrator) Publish(ctx context.Context, queueName string, job *types.Job, opts PublishOpts) (string, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.OrchestratorPublishDuration, queueName)

	o.mu.RLock()
	qtype, known := o.schemas[queueName]
	o.mu.RUnlock()
	if !known {
		return "", fmt.Errorf("orchestrator: publish to %s: %w", queueName, queue.ErrNoQueue)
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("orchestrator: marshal job %s: %w", job.ID, err)
	}

	var priority *int
	if qtype == queue.Priority {
		priority = opts.Priority
	}

	if err := o.backend.Push(ctx, queueName, data, priority); err != nil {
		return "", fmt.Errorf("orchestrator: publish %s: %w", job.ID, err)
	}
	return job.ID, nil
}

// ReceiveMessage pops and deserializes the next Job from queueName.
func (o *Orchestrator) ReceiveMessage(ctx context.Context, queueName string, block bool, timeout time.Duration) (*types.Job, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.OrchestratorReceiveDuration, queueName)

	data, err := o.backend.Pop(ctx, queueName, block, timeout)
	if err != nil {
		return nil, err
	}
	var job types.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("orchestrator: unmarshal message from %s: %w", queueName, err)
	}
	return &job, nil
}

// QueueNames lists every queue currently registered, for metrics collection.
func (o *Orchestrator) QueueNames() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.schemas))
	for name := range o.schemas {
		names = append(names, name)
	}
	return names
}

// CountQueueMessages reports the number of items currently queued.
func (o *Orchestrator) CountQueueMessages(ctx context.Context, queueName string) (int, error) {
	return o.backend.QSize(ctx, queueName)
}

// CleanQueue discards every queued item on queueName.
func (o *Orchestrator) CleanQueue(ctx context.Context, queueName string) (int, error) {
	return o.backend.Clean(ctx, queueName)
}

// DeleteQueue removes queueName from the backend and the schema mapping.
func (o *Orchestrator) DeleteQueue(ctx context.Context, queueName string) error {
	if err := o.backend.DeleteQueue(ctx, queueName); err != nil {
		return fmt.Errorf("orchestrator: delete %s: %w", queueName, err)
	}
	o.mu.Lock()
	delete(o.schemas, queueName)
	o.mu.Unlock()
	return nil
}

// MoveToDLQ publishes a raw message to queueName's dead-letter queue
// (queueName + ".dlq"), declaring it as a FIFO queue on first use. This
// supplements the original implementation's no-op move_to_dlq stub with a
// real, minimal dead-letter path.
func (o *Orchestrator) MoveToDLQ(ctx context.Context, queueName string, data []byte) error {
	dlq := queueName + ".dlq"
	o.mu.RLock()
	_, known := o.schemas[dlq]
	o.mu.RUnlock()
	if !known {
		if _, err := o.Register(ctx, dlq, queue.FIFO); err != nil {
			return fmt.Errorf("orchestrator: declare dlq %s: %w", dlq, err)
		}
	}
	if err := o.backend.Push(ctx, dlq, data, nil); err != nil {
		return fmt.Errorf("orchestrator: move to dlq %s: %w", dlq, err)
	}
	return nil
}

// ResultCache is implemented by backends that support the optional
// store_job_result / get_job_result convenience (currently pkg/queue/local
// only; it is a single-process cache, not meaningful for the distributed
// backends).
type ResultCache interface {
	StoreResult(jobID string, data []byte)
	GetResult(jobID string) ([]byte, bool)
}

// ErrResultCacheUnsupported is returned by StoreJobResult/GetJobResult when
// the underlying backend has no ResultCache support.
var ErrResultCacheUnsupported = fmt.Errorf("orchestrator: backend does not support job result caching")

// StoreJobResult caches output for jobID, when the backend supports it.
func (o *Orchestrator) StoreJobResult(jobID string, output map[string]interface{}) error {
	cache, ok := o.backend.(ResultCache)
	if !ok {
		return ErrResultCacheUnsupported
	}
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("orchestrator: marshal result for %s: %w", jobID, err)
	}
	cache.StoreResult(jobID, data)
	return nil
}

// GetJobResult returns a previously cached result for jobID, when the
// backend supports it.
func (o *Orchestrator) GetJobResult(jobID string) (map[string]interface{}, bool, error) {
	cache, ok := o.backend.(ResultCache)
	if !ok {
		return nil, false, ErrResultCacheUnsupported
	}
	data, found := cache.GetResult(jobID)
	if !found {
		return nil, false, nil
	}
	var output map[string]interface{}
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, false, fmt.Errorf("orchestrator: unmarshal result for %s: %w", jobID, err)
	}
	return output, true, nil
}

// Close releases the underlying backend's resources.
func (o *Orchestrator) Close() error {
	return o.backend.Close()
}
