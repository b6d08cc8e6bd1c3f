// Package local implements an in-memory queue.Backend: one mutex and one
// broadcast-on-push channel per named queue, matching the teacher's
// single-mutex-plus-condition-variable idiom for protecting shared state.
package local

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/cuemby/clustercore/pkg/queue"
)

type item struct {
	data     []byte
	priority int
	seq      int64
}

// priorityHeap orders by priority descending, then by seq ascending so
// equal-priority items dequeue in enqueue order.
type priorityHeap []item

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h priorityHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *priorityHeap) Push(x interface{}) { *h = append(*h, x.(item)) }
func (h *priorityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// namedQueue holds the state for one declared queue.
type namedQueue struct {
	mu       sync.Mutex
	qtype    queue.Type
	fifoLifo []item
	pq       priorityHeap
	seq      int64
	notify   chan struct{}
}

func newNamedQueue(t queue.Type) *namedQueue {
	return &namedQueue{qtype: t, notify: make(chan struct{})}
}

func (q *namedQueue) len() int {
	if q.qtype == queue.Priority {
		return len(q.pq)
	}
	return len(q.fifoLifo)
}

func (q *namedQueue) push(data []byte, priority int) {
	q.mu.Lock()
	q.seq++
	it := item{data: data, priority: priority, seq: q.seq}
	switch q.qtype {
	case queue.Priority:
		heap.Push(&q.pq, it)
	default:
		q.fifoLifo = append(q.fifoLifo, it)
	}
	ch := q.notify
	q.notify = make(chan struct{})
	q.mu.Unlock()
	close(ch)
}

func (q *namedQueue) tryPop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch q.qtype {
	case queue.Priority:
		if len(q.pq) == 0 {
			return nil, false
		}
		it := heap.Pop(&q.pq).(item)
		return it.data, true
	case queue.LIFO:
		if len(q.fifoLifo) == 0 {
			return nil, false
		}
		n := len(q.fifoLifo)
		it := q.fifoLifo[n-1]
		q.fifoLifo = q.fifoLifo[:n-1]
		return it.data, true
	default: // FIFO
		if len(q.fifoLifo) == 0 {
			return nil, false
		}
		it := q.fifoLifo[0]
		q.fifoLifo = q.fifoLifo[1:]
		return it.data, true
	}
}

func (q *namedQueue) waitChan() chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.notify
}

func (q *namedQueue) clean() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.len()
	q.fifoLifo = nil
	q.pq = nil
	return n
}

// Backend is the local (single-process) queue.Backend implementation.
type Backend struct {
	mu     sync.RWMutex
	queues map[string]*namedQueue

	resultsMu sync.RWMutex
	results   map[string][]byte
}

// New returns an empty local backend.
func New() *Backend {
	return &Backend{
		queues:  make(map[string]*namedQueue),
		results: make(map[string][]byte),
	}
}

// StoreResult caches a job's serialized result, keyed by job ID. This is a
// local-backend-only convenience (see pkg/orchestrator's ResultCache
// interface); it is not shared across processes.
func (b *Backend) StoreResult(jobID string, data []byte) {
	b.resultsMu.Lock()
	defer b.resultsMu.Unlock()
	b.results[jobID] = data
}

// GetResult returns a previously stored result for jobID, if any.
func (b *Backend) GetResult(jobID string) ([]byte, bool) {
	b.resultsMu.RLock()
	defer b.resultsMu.RUnlock()
	data, ok := b.results[jobID]
	return data, ok
}

func (b *Backend) DeclareQueue(_ context.Context, name string, t queue.Type) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.queues[name]; ok {
		if existing.qtype != t {
			return queue.ErrQueueExists
		}
		return nil
	}
	b.queues[name] = newNamedQueue(t)
	return nil
}

func (b *Backend) DeleteQueue(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.queues, name)
	return nil
}

func (b *Backend) get(name string) (*namedQueue, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.queues[name]
	if !ok {
		return nil, queue.ErrNoQueue
	}
	return q, nil
}

func (b *Backend) Push(_ context.Context, name string, data []byte, priority *int) error {
	q, err := b.get(name)
	if err != nil {
		return err
	}
	p := 0
	if priority != nil {
		p = *priority
	}
	q.push(data, p)
	return nil
}

func (b *Backend) Pop(ctx context.Context, name string, block bool, timeout time.Duration) ([]byte, error) {
	q, err := b.get(name)
	if err != nil {
		return nil, err
	}

	if data, ok := q.tryPop(); ok {
		return data, nil
	}
	if !block {
		return nil, queue.ErrEmpty
	}

	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	for {
		wait := q.waitChan()
		select {
		case <-wait:
			if data, ok := q.tryPop(); ok {
				return data, nil
			}
			// spurious wake (another popper won the race); loop and wait again.
		case <-timeoutCh:
			return nil, queue.ErrEmpty
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (b *Backend) QSize(_ context.Context, name string) (int, error) {
	q, err := b.get(name)
	if err != nil {
		return 0, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len(), nil
}

func (b *Backend) Clean(_ context.Context, name string) (int, error) {
	q, err := b.get(name)
	if err != nil {
		return 0, err
	}
	return q.clean(), nil
}

func (b *Backend) Close() error { return nil }
