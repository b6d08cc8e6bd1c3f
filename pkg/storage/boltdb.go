package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cuemby/clustercore/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketJobStatus         = []byte("job_status")
	bucketWorkerStatus      = []byte("worker_status")
	bucketJobTargeting      = []byte("job_targeting")
	bucketWorkerAutoConnect = []byte("worker_autoconnect")
	bucketNodes             = []byte("nodes")
	bucketWorkerRegistry    = []byte("worker_registry")
	bucketWorkerLatest      = []byte("worker_registry_latest")
)

// BoltStore implements Store on top of a single BoltDB file.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a BoltDB file under dataDir and
// ensures every bucket this package owns exists.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "cluster.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketJobStatus,
			bucketWorkerStatus,
			bucketJobTargeting,
			bucketWorkerAutoConnect,
			bucketNodes,
			bucketWorkerRegistry,
			bucketWorkerLatest,
		}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("storage: create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// --- Job status ---

func (s *BoltStore) CreateJobStatus(status *types.JobStatus) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobStatus)
		if b.Get([]byte(status.JobID)) != nil {
			return fmt.Errorf("storage: job status %s: %w", status.JobID, types.ErrInvariantViolation)
		}
		return putJSON(b, status.JobID, status)
	})
}

func (s *BoltStore) UpdateJobStatus(status *types.JobStatus) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobStatus)
		if b.Get([]byte(status.JobID)) == nil {
			return fmt.Errorf("storage: job status %s: %w", status.JobID, types.ErrStoreMiss)
		}
		return putJSON(b, status.JobID, status)
	})
}

func (s *BoltStore) GetJobStatus(jobID string) (*types.JobStatus, error) {
	var out types.JobStatus
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobStatus)
		data := b.Get([]byte(jobID))
		if data == nil {
			return fmt.Errorf("storage: job status %s: %w", jobID, types.ErrStoreMiss)
		}
		return json.Unmarshal(data, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *BoltStore) ListJobStatuses() ([]*types.JobStatus, error) {
	var out []*types.JobStatus
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobStatus)
		return b.ForEach(func(k, v []byte) error {
			var status types.JobStatus
			if err := json.Unmarshal(v, &status); err != nil {
				return err
			}
			out = append(out, &status)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteAllJobStatuses() error {
	return s.clearBucket(bucketJobStatus)
}

// --- Worker status ---

func (s *BoltStore) SaveWorkerStatus(status *types.WorkerStatus) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkerStatus)
		return putJSON(b, status.WorkerID, status)
	})
}

func (s *BoltStore) GetWorkerStatus(workerID string) (*types.WorkerStatus, error) {
	var out types.WorkerStatus
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkerStatus)
		data := b.Get([]byte(workerID))
		if data == nil {
			return fmt.Errorf("storage: worker status %s: %w", workerID, types.ErrStoreMiss)
		}
		return json.Unmarshal(data, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *BoltStore) GetWorkerStatusByURL(workerURL string) (*types.WorkerStatus, error) {
	var out *types.WorkerStatus
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkerStatus)
		return b.ForEach(func(k, v []byte) error {
			var status types.WorkerStatus
			if err := json.Unmarshal(v, &status); err != nil {
				return err
			}
			if status.WorkerURL == workerURL {
				out = &status
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("storage: worker status for url %s: %w", workerURL, types.ErrStoreMiss)
	}
	return out, nil
}

func (s *BoltStore) ListWorkerStatuses() ([]*types.WorkerStatus, error) {
	var out []*types.WorkerStatus
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkerStatus)
		return b.ForEach(func(k, v []byte) error {
			var status types.WorkerStatus
			if err := json.Unmarshal(v, &status); err != nil {
				return err
			}
			out = append(out, &status)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteAllWorkerStatuses() error {
	return s.clearBucket(bucketWorkerStatus)
}

// --- Job schema targeting ---

func (s *BoltStore) SetJobSchemaTargeting(entry *types.JobSchemaTargeting) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobTargeting)
		return putJSON(b, entry.SchemaName, entry)
	})
}

func (s *BoltStore) GetJobSchemaTargeting(schemaName string) (*types.JobSchemaTargeting, error) {
	var out types.JobSchemaTargeting
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobTargeting)
		data := b.Get([]byte(schemaName))
		if data == nil {
			return fmt.Errorf("storage: job targeting %s: %w", schemaName, types.ErrStoreMiss)
		}
		return json.Unmarshal(data, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *BoltStore) DeleteJobSchemaTargeting(schemaName string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobTargeting).Delete([]byte(schemaName))
	})
}

func (s *BoltStore) ListJobSchemaTargetings() ([]*types.JobSchemaTargeting, error) {
	var out []*types.JobSchemaTargeting
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobTargeting)
		return b.ForEach(func(k, v []byte) error {
			var entry types.JobSchemaTargeting
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			out = append(out, &entry)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteAllJobSchemaTargetings() error {
	return s.clearBucket(bucketJobTargeting)
}

// --- Worker auto-connect ---

func autoConnectKey(entry *types.WorkerAutoConnect) string {
	return entry.WorkerType + "\x00" + entry.SchemaName
}

func (s *BoltStore) AddWorkerAutoConnect(entry *types.WorkerAutoConnect) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkerAutoConnect)
		return putJSON(b, autoConnectKey(entry), entry)
	})
}

func (s *BoltStore) ListWorkerAutoConnectsByType(workerType string) ([]*types.WorkerAutoConnect, error) {
	var out []*types.WorkerAutoConnect
	prefix := workerType + "\x00"
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkerAutoConnect)
		return b.ForEach(func(k, v []byte) error {
			if !strings.HasPrefix(string(k), prefix) {
				return nil
			}
			var entry types.WorkerAutoConnect
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			out = append(out, &entry)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteAllWorkerAutoConnects() error {
	return s.clearBucket(bucketWorkerAutoConnect)
}

// --- Nodes ---

func (s *BoltStore) SaveNode(node *types.Node) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketNodes), node.NodeURL, node)
	})
}

func (s *BoltStore) ListNodes() ([]*types.Node, error) {
	var out []*types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		return b.ForEach(func(k, v []byte) error {
			var node types.Node
			if err := json.Unmarshal(v, &node); err != nil {
				return err
			}
			out = append(out, &node)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteAllNodes() error {
	return s.clearBucket(bucketNodes)
}

// --- Worker registry (versioned bundles) ---

func (s *BoltStore) SaveWorkerBundle(name string, bundle *types.ProxyWorker) (int, error) {
	var version int
	err := s.db.Update(func(tx *bolt.Tx) error {
		latest := tx.Bucket(bucketWorkerLatest)
		registry := tx.Bucket(bucketWorkerRegistry)

		version = 1
		if cur := latest.Get([]byte(name)); cur != nil {
			n, err := strconv.Atoi(string(cur))
			if err != nil {
				return fmt.Errorf("storage: corrupt version pointer for %s: %w", name, err)
			}
			version = n + 1
		}

		if err := putJSON(registry, versionKey(name, version), bundle); err != nil {
			return err
		}
		return latest.Put([]byte(name), []byte(strconv.Itoa(version)))
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (s *BoltStore) GetLatestWorkerBundle(name string) (*types.ProxyWorker, int, error) {
	var (
		bundle  types.ProxyWorker
		version int
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		latest := tx.Bucket(bucketWorkerLatest)
		cur := latest.Get([]byte(name))
		if cur == nil {
			return fmt.Errorf("storage: worker bundle %s: %w", name, types.ErrStoreMiss)
		}
		n, err := strconv.Atoi(string(cur))
		if err != nil {
			return fmt.Errorf("storage: corrupt version pointer for %s: %w", name, err)
		}
		version = n

		registry := tx.Bucket(bucketWorkerRegistry)
		data := registry.Get([]byte(versionKey(name, version)))
		if data == nil {
			return fmt.Errorf("storage: worker bundle %s version %d: %w", name, version, types.ErrStoreMiss)
		}
		return json.Unmarshal(data, &bundle)
	})
	if err != nil {
		return nil, 0, err
	}
	return &bundle, version, nil
}

func (s *BoltStore) GetWorkerBundleVersion(name string, version int) (*types.ProxyWorker, error) {
	var bundle types.ProxyWorker
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketWorkerRegistry).Get([]byte(versionKey(name, version)))
		if data == nil {
			return fmt.Errorf("storage: worker bundle %s version %d: %w", name, version, types.ErrStoreMiss)
		}
		return json.Unmarshal(data, &bundle)
	})
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (s *BoltStore) ListWorkerBundleVersions(name string) ([]int, error) {
	var versions []int
	prefix := name + "\x00"
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkerRegistry)
		return b.ForEach(func(k, v []byte) error {
			key := string(k)
			if !strings.HasPrefix(key, prefix) {
				return nil
			}
			n, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
			if err != nil {
				return nil
			}
			versions = append(versions, n)
			return nil
		})
	})
	return versions, err
}

func (s *BoltStore) DeleteAllWorkerBundles() error {
	if err := s.clearBucket(bucketWorkerRegistry); err != nil {
		return err
	}
	return s.clearBucket(bucketWorkerLatest)
}

func versionKey(name string, version int) string {
	return name + "\x00" + strconv.Itoa(version)
}

func putJSON(b *bolt.Bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

func (s *BoltStore) clearBucket(name []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(name); err != nil {
			return err
		}
		_, err := tx.CreateBucket(name)
		return err
	})
}
