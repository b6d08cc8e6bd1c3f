package storage

import (
	"fmt"
	"sync"

	"github.com/cuemby/clustercore/pkg/types"
)

// MemoryStore is an in-memory Store used by the local profile and by tests.
// State does not survive process restart.
type MemoryStore struct {
	mu sync.RWMutex

	jobStatus    map[string]*types.JobStatus
	workerStatus map[string]*types.WorkerStatus
	targeting    map[string]*types.JobSchemaTargeting
	autoConnect  map[string]*types.WorkerAutoConnect
	nodes        map[string]*types.Node

	bundles      map[string]map[int]*types.ProxyWorker
	bundleLatest map[string]int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobStatus:    make(map[string]*types.JobStatus),
		workerStatus: make(map[string]*types.WorkerStatus),
		targeting:    make(map[string]*types.JobSchemaTargeting),
		autoConnect:  make(map[string]*types.WorkerAutoConnect),
		nodes:        make(map[string]*types.Node),
		bundles:      make(map[string]map[int]*types.ProxyWorker),
		bundleLatest: make(map[string]int),
	}
}

func (s *MemoryStore) Close() error { return nil }

func clone[T any](v T) *T {
	c := v
	return &c
}

// --- Job status ---

func (s *MemoryStore) CreateJobStatus(status *types.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobStatus[status.JobID]; ok {
		return fmt.Errorf("storage: job status %s: %w", status.JobID, types.ErrInvariantViolation)
	}
	s.jobStatus[status.JobID] = clone(*status)
	return nil
}

func (s *MemoryStore) UpdateJobStatus(status *types.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobStatus[status.JobID]; !ok {
		return fmt.Errorf("storage: job status %s: %w", status.JobID, types.ErrStoreMiss)
	}
	s.jobStatus[status.JobID] = clone(*status)
	return nil
}

func (s *MemoryStore) GetJobStatus(jobID string) (*types.JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.jobStatus[jobID]
	if !ok {
		return nil, fmt.Errorf("storage: job status %s: %w", jobID, types.ErrStoreMiss)
	}
	return clone(*status), nil
}

func (s *MemoryStore) ListJobStatuses() ([]*types.JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.JobStatus, 0, len(s.jobStatus))
	for _, status := range s.jobStatus {
		out = append(out, clone(*status))
	}
	return out, nil
}

func (s *MemoryStore) DeleteAllJobStatuses() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobStatus = make(map[string]*types.JobStatus)
	return nil
}

// --- Worker status ---

func (s *MemoryStore) SaveWorkerStatus(status *types.WorkerStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workerStatus[status.WorkerID] = clone(*status)
	return nil
}

func (s *MemoryStore) GetWorkerStatus(workerID string) (*types.WorkerStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.workerStatus[workerID]
	if !ok {
		return nil, fmt.Errorf("storage: worker status %s: %w", workerID, types.ErrStoreMiss)
	}
	return clone(*status), nil
}

func (s *MemoryStore) GetWorkerStatusByURL(workerURL string) (*types.WorkerStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, status := range s.workerStatus {
		if status.WorkerURL == workerURL {
			return clone(*status), nil
		}
	}
	return nil, fmt.Errorf("storage: worker status for url %s: %w", workerURL, types.ErrStoreMiss)
}

func (s *MemoryStore) ListWorkerStatuses() ([]*types.WorkerStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.WorkerStatus, 0, len(s.workerStatus))
	for _, status := range s.workerStatus {
		out = append(out, clone(*status))
	}
	return out, nil
}

func (s *MemoryStore) DeleteAllWorkerStatuses() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workerStatus = make(map[string]*types.WorkerStatus)
	return nil
}

// --- Job schema targeting ---

func (s *MemoryStore) SetJobSchemaTargeting(entry *types.JobSchemaTargeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targeting[entry.SchemaName] = clone(*entry)
	return nil
}

func (s *MemoryStore) GetJobSchemaTargeting(schemaName string) (*types.JobSchemaTargeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.targeting[schemaName]
	if !ok {
		return nil, fmt.Errorf("storage: job targeting %s: %w", schemaName, types.ErrStoreMiss)
	}
	return clone(*entry), nil
}

func (s *MemoryStore) DeleteJobSchemaTargeting(schemaName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.targeting, schemaName)
	return nil
}

func (s *MemoryStore) ListJobSchemaTargetings() ([]*types.JobSchemaTargeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.JobSchemaTargeting, 0, len(s.targeting))
	for _, entry := range s.targeting {
		out = append(out, clone(*entry))
	}
	return out, nil
}

func (s *MemoryStore) DeleteAllJobSchemaTargetings() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targeting = make(map[string]*types.JobSchemaTargeting)
	return nil
}

// --- Worker auto-connect ---

func (s *MemoryStore) AddWorkerAutoConnect(entry *types.WorkerAutoConnect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoConnect[autoConnectKey(entry)] = clone(*entry)
	return nil
}

func (s *MemoryStore) ListWorkerAutoConnectsByType(workerType string) ([]*types.WorkerAutoConnect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.WorkerAutoConnect
	for _, entry := range s.autoConnect {
		if entry.WorkerType == workerType {
			out = append(out, clone(*entry))
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteAllWorkerAutoConnects() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoConnect = make(map[string]*types.WorkerAutoConnect)
	return nil
}

// --- Nodes ---

func (s *MemoryStore) SaveNode(node *types.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[node.NodeURL] = clone(*node)
	return nil
}

func (s *MemoryStore) ListNodes() ([]*types.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		out = append(out, clone(*node))
	}
	return out, nil
}

func (s *MemoryStore) DeleteAllNodes() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]*types.Node)
	return nil
}

// --- Worker registry ---

func (s *MemoryStore) SaveWorkerBundle(name string, bundle *types.ProxyWorker) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version := s.bundleLatest[name] + 1
	if s.bundles[name] == nil {
		s.bundles[name] = make(map[int]*types.ProxyWorker)
	}
	s.bundles[name][version] = clone(*bundle)
	s.bundleLatest[name] = version
	return version, nil
}

func (s *MemoryStore) GetLatestWorkerBundle(name string) (*types.ProxyWorker, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	version, ok := s.bundleLatest[name]
	if !ok {
		return nil, 0, fmt.Errorf("storage: worker bundle %s: %w", name, types.ErrStoreMiss)
	}
	return clone(*s.bundles[name][version]), version, nil
}

func (s *MemoryStore) GetWorkerBundleVersion(name string, version int) (*types.ProxyWorker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions, ok := s.bundles[name]
	if !ok {
		return nil, fmt.Errorf("storage: worker bundle %s: %w", name, types.ErrStoreMiss)
	}
	bundle, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("storage: worker bundle %s version %d: %w", name, version, types.ErrStoreMiss)
	}
	return clone(*bundle), nil
}

func (s *MemoryStore) ListWorkerBundleVersions(name string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int
	for v := range s.bundles[name] {
		out = append(out, v)
	}
	return out, nil
}

func (s *MemoryStore) DeleteAllWorkerBundles() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles = make(map[string]map[int]*types.ProxyWorker)
	s.bundleLatest = make(map[string]int)
	return nil
}
