package node_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/clustercore/pkg/health"
	"github.com/cuemby/clustercore/pkg/node"
	"github.com/cuemby/clustercore/pkg/registry"
	"github.com/cuemby/clustercore/pkg/storage"
	"github.com/cuemby/clustercore/pkg/types"
	"github.com/cuemby/clustercore/pkg/worker"
)

func echoFactory(params map[string]interface{}, sourceDir string) (worker.JobHandler, error) {
	return func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		return payload, nil
	}, nil
}

func TestLaunchWorkerInstantiatesRegisteredBundle(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := registry.New(store)
	_, err := reg.Save("echo", &types.ProxyWorker{WorkerType: "echo-class", WorkerParams: map[string]interface{}{"x": 1.0}})
	require.NoError(t, err)

	n := node.New(node.Config{
		NodeID:    "n1",
		Factories: map[string]node.WorkerFactory{"echo-class": echoFactory},
	}, reg)

	require.NoError(t, n.LaunchWorker(t.Context(), "echo", "http://localhost:7800"))

	w, ok := n.Worker("http://localhost:7800")
	require.True(t, ok)
	require.Equal(t, types.HeartbeatAvailable, w.Heartbeat().Status)
}

func TestLaunchWorkerFailsWithoutRegisteredFactory(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := registry.New(store)
	_, err := reg.Save("echo", &types.ProxyWorker{WorkerType: "unregistered-class"})
	require.NoError(t, err)

	n := node.New(node.Config{NodeID: "n1"}, reg)
	err = n.LaunchWorker(t.Context(), "echo", "http://localhost:7800")
	require.Error(t, err)

	_, ok := n.Worker("http://localhost:7800")
	require.False(t, ok)
}

func TestLaunchWorkerFailsForUnknownBundle(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := registry.New(store)
	n := node.New(node.Config{NodeID: "n1"}, reg)

	err := n.LaunchWorker(t.Context(), "ghost", "http://localhost:7800")
	require.Error(t, err)
}

func TestShutdownStopsTrackedWorkers(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := registry.New(store)
	_, err := reg.Save("echo", &types.ProxyWorker{WorkerType: "echo-class"})
	require.NoError(t, err)

	n := node.New(node.Config{
		NodeID:    "n1",
		Factories: map[string]node.WorkerFactory{"echo-class": echoFactory},
	}, reg)
	require.NoError(t, n.LaunchWorker(t.Context(), "echo", "http://localhost:7800"))

	w, _ := n.Worker("http://localhost:7800")
	require.NoError(t, w.ConnectToCluster(t.Context(), map[string]interface{}{"backend": "local"}, "echo", ""))

	require.NoError(t, n.Shutdown(t.Context()))
	require.Equal(t, types.HeartbeatDown, w.Heartbeat().Status)
}

func TestHealthMonitorStopsCleanlyOnShutdown(t *testing.T) {
	var checks int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&checks, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	store := storage.NewMemoryStore()
	reg := registry.New(store)
	_, err := reg.Save("echo", &types.ProxyWorker{WorkerType: "echo-class"})
	require.NoError(t, err)

	n := node.New(node.Config{
		NodeID:      "n1",
		Factories:   map[string]node.WorkerFactory{"echo-class": echoFactory},
		HealthCheck: health.Config{Interval: 10 * time.Millisecond, Timeout: time.Second, Retries: 1},
	}, reg)
	require.NoError(t, n.LaunchWorker(t.Context(), "echo", server.URL))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&checks) > 0
	}, time.Second, 10*time.Millisecond, "health monitor never polled the worker's heartbeat endpoint")

	require.NoError(t, n.Shutdown(t.Context()))

	seenAtShutdown := atomic.LoadInt32(&checks)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, seenAtShutdown, atomic.LoadInt32(&checks), "health monitor kept polling after shutdown")
}
