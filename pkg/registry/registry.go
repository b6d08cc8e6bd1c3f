// Package registry is the Worker Registry: a versioned store of worker-type
// bundles (types.ProxyWorker), keyed by worker-type name.
// Saving under an existing name never overwrites; it creates a new version
// and advances the name's latest pointer, so concurrent readers always see
// a consistent version.
//
// Modeled on mindtrace/registry/core/registry.py's save/load/versioning
// semantics (original_source); backed by pkg/storage so the Worker Registry
// shares one physical store with the rest of the Cluster Manager's records.
package registry

import (
	"fmt"

	"github.com/cuemby/clustercore/pkg/storage"
	"github.com/cuemby/clustercore/pkg/types"
)

// Registry is safe for concurrent use; all synchronization is delegated to
// the underlying storage.Store.
type Registry struct {
	store storage.Store
}

// New wraps store as a Worker Registry.
func New(store storage.Store) *Registry {
	return &Registry{store: store}
}

// Save stores bundle as a new version under name and returns that version
// number. The first save of a name produces version 1.
func (r *Registry) Save(name string, bundle *types.ProxyWorker) (int, error) {
	version, err := r.store.SaveWorkerBundle(name, bundle)
	if err != nil {
		return 0, fmt.Errorf("registry: save %s: %w", name, err)
	}
	return version, nil
}

// Load returns the latest version of the bundle saved under name.
func (r *Registry) Load(name string) (*types.ProxyWorker, int, error) {
	bundle, version, err := r.store.GetLatestWorkerBundle(name)
	if err != nil {
		return nil, 0, fmt.Errorf("registry: load %s: %w", name, err)
	}
	return bundle, version, nil
}

// LoadVersion returns a specific version of the bundle saved under name.
func (r *Registry) LoadVersion(name string, version int) (*types.ProxyWorker, error) {
	bundle, err := r.store.GetWorkerBundleVersion(name, version)
	if err != nil {
		return nil, fmt.Errorf("registry: load %s version %d: %w", name, version, err)
	}
	return bundle, nil
}

// Versions lists every version number saved under name.
func (r *Registry) Versions(name string) ([]int, error) {
	versions, err := r.store.ListWorkerBundleVersions(name)
	if err != nil {
		return nil, fmt.Errorf("registry: versions %s: %w", name, err)
	}
	return versions, nil
}

// Clear discards every saved bundle and version history.
func (r *Registry) Clear() error {
	if err := r.store.DeleteAllWorkerBundles(); err != nil {
		return fmt.Errorf("registry: clear: %w", err)
	}
	return nil
}
