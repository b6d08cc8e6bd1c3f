package metrics

import (
	"context"
	"time"

	"github.com/cuemby/clustercore/pkg/types"
)

// QueueInspector is the slice of *orchestrator.Orchestrator the Collector
// needs, kept as an interface so pkg/metrics does not import pkg/queue's
// backend dependency tree just to sample queue depth.
type QueueInspector interface {
	QueueNames() []string
	CountQueueMessages(ctx context.Context, queueName string) (int, error)
}

// WorkerStatusSource is the slice of storage.Store the Collector needs to
// count workers by type and status.
type WorkerStatusSource interface {
	ListWorkerStatuses() ([]*types.WorkerStatus, error)
}

// Collector periodically samples the Orchestrator and the worker status
// store and publishes the results as gauges, mirroring the teacher's
// ticker-driven pkg/metrics/collector.go (there: node/service/task/Raft
// gauges sampled from *manager.Manager; here: queue/worker gauges sampled
// from the orchestrator and the Cluster Manager's storage.Store).
type Collector struct {
	queues  QueueInspector
	workers WorkerStatusSource
	stopCh  chan struct{}
}

// NewCollector creates a Collector over queues and workers.
func NewCollector(queues QueueInspector, workers WorkerStatusSource) *Collector {
	return &Collector{
		queues:  queues,
		workers: workers,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds until Stop is called.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts collection.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectQueueMetrics()
	c.collectWorkerMetrics()
}

func (c *Collector) collectQueueMetrics() {
	if c.queues == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, name := range c.queues.QueueNames() {
		depth, err := c.queues.CountQueueMessages(ctx, name)
		if err != nil {
			continue
		}
		QueueDepth.WithLabelValues(name).Set(float64(depth))
	}
}

func (c *Collector) collectWorkerMetrics() {
	if c.workers == nil {
		return
	}
	statuses, err := c.workers.ListWorkerStatuses()
	if err != nil {
		return
	}

	counts := make(map[string]map[string]int)
	for _, ws := range statuses {
		if counts[ws.WorkerType] == nil {
			counts[ws.WorkerType] = make(map[string]int)
		}
		counts[ws.WorkerType][string(ws.Status)]++
	}

	for workerType, byStatus := range counts {
		for status, count := range byStatus {
			WorkersTotal.WithLabelValues(workerType, status).Set(float64(count))
		}
	}
}
