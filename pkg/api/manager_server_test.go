package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/clustercore/pkg/api"
	"github.com/cuemby/clustercore/pkg/client"
	"github.com/cuemby/clustercore/pkg/manager"
	"github.com/cuemby/clustercore/pkg/orchestrator"
	"github.com/cuemby/clustercore/pkg/queue/local"
	"github.com/cuemby/clustercore/pkg/registry"
	"github.com/cuemby/clustercore/pkg/storage"
	"github.com/cuemby/clustercore/pkg/types"
)

func newTestManagerServer(t *testing.T, baseURL string) *httptest.Server {
	t.Helper()
	store := storage.NewMemoryStore()
	orch := orchestrator.New(local.New())
	reg := registry.New(store)
	mgr := manager.New(manager.Config{NodeID: "m1", BaseURL: baseURL}, store, orch, reg)
	return httptest.NewServer(api.NewManagerServer(mgr))
}

func TestManagerServerSubmitAndGetJobStatus(t *testing.T) {
	srv := newTestManagerServer(t, "")
	defer srv.Close()
	c := client.NewManagerClient(srv.URL)

	require.NoError(t, c.RegisterWorkerType(t.Context(), client.RegisterWorkerTypeRequest{
		Name: "echo", ClassRef: "echo-class",
	}))
	require.NoError(t, c.RegisterJobSchemaToWorkerType(t.Context(), "echo-job", "echo"))

	status, err := c.SubmitJob(t.Context(), &types.Job{ID: "j1", SchemaName: "echo-job", Payload: map[string]interface{}{"n": 1.0}})
	require.NoError(t, err)
	require.Equal(t, types.JobStateQueued, status.Status)

	got, err := c.GetJobStatus(t.Context(), "j1")
	require.NoError(t, err)
	require.Equal(t, "j1", got.JobID)
}

func TestManagerServerGetJobStatusMissReturnsNotFound(t *testing.T) {
	srv := newTestManagerServer(t, "")
	defer srv.Close()
	c := client.NewManagerClient(srv.URL)

	_, err := c.GetJobStatus(t.Context(), "ghost")
	require.Error(t, err)
}

func TestManagerServerWorkerAlertLifecycle(t *testing.T) {
	srv := newTestManagerServer(t, "")
	defer srv.Close()
	c := client.NewManagerClient(srv.URL)

	require.NoError(t, c.RegisterWorkerType(t.Context(), client.RegisterWorkerTypeRequest{Name: "echo", ClassRef: "echo-class"}))
	require.NoError(t, c.RegisterJobSchemaToWorkerType(t.Context(), "echo-job", "echo"))
	_, err := c.SubmitJob(t.Context(), &types.Job{ID: "j2", SchemaName: "echo-job"})
	require.NoError(t, err)

	require.NoError(t, c.WorkerAlertStartedJob(t.Context(), "j2", "w1"))
	require.NoError(t, c.WorkerAlertCompletedJob(t.Context(), "j2", "w1", types.JobStateCompleted, map[string]interface{}{"ok": true}))

	got, err := c.GetJobStatus(t.Context(), "j2")
	require.NoError(t, err)
	require.Equal(t, types.JobStateCompleted, got.Status)
}

func TestManagerServerWorkerAlertOnUnknownJobIsConflict(t *testing.T) {
	srv := newTestManagerServer(t, "")
	defer srv.Close()
	c := client.NewManagerClient(srv.URL)

	err := c.WorkerAlertStartedJob(t.Context(), "ghost-job", "w1")
	require.Error(t, err)
}

func TestManagerServerRegisterNodeIssuesCredentials(t *testing.T) {
	srv := newTestManagerServer(t, "")
	defer srv.Close()
	c := client.NewManagerClient(srv.URL)

	result, err := c.RegisterNode(t.Context(), "http://localhost:7900")
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessKey)
	require.NotEmpty(t, result.SecretKey)
}

func TestManagerServerHealthz(t *testing.T) {
	srv := newTestManagerServer(t, "")
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
