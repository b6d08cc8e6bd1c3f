package api_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/clustercore/pkg/api"
	"github.com/cuemby/clustercore/pkg/client"
	"github.com/cuemby/clustercore/pkg/node"
	"github.com/cuemby/clustercore/pkg/registry"
	"github.com/cuemby/clustercore/pkg/storage"
	"github.com/cuemby/clustercore/pkg/types"
	"github.com/cuemby/clustercore/pkg/worker"
)

func nodeEchoFactory(params map[string]interface{}, sourceDir string) (worker.JobHandler, error) {
	return func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		return payload, nil
	}, nil
}

func TestNodeServerLaunchWorkerAndShutdown(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := registry.New(store)
	_, err := reg.Save("echo", &types.ProxyWorker{WorkerType: "echo-class"})
	require.NoError(t, err)

	n := node.New(node.Config{
		NodeID:    "n1",
		Factories: map[string]node.WorkerFactory{"echo-class": nodeEchoFactory},
	}, reg)

	srv := httptest.NewServer(api.NewNodeServer(n))
	defer srv.Close()
	c := client.NewNodeClient(srv.URL)

	require.NoError(t, c.LaunchWorker(t.Context(), "echo", "http://127.0.0.1:0"))

	require.NoError(t, c.Shutdown(t.Context()))
}

func TestNodeServerLaunchWorkerFailsForUnknownBundle(t *testing.T) {
	store := storage.NewMemoryStore()
	reg := registry.New(store)
	n := node.New(node.Config{NodeID: "n1"}, reg)

	srv := httptest.NewServer(api.NewNodeServer(n))
	defer srv.Close()
	c := client.NewNodeClient(srv.URL)

	err := c.LaunchWorker(t.Context(), "ghost", "http://127.0.0.1:0")
	require.Error(t, err)
}
