package manager_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/clustercore/pkg/manager"
	"github.com/cuemby/clustercore/pkg/orchestrator"
	"github.com/cuemby/clustercore/pkg/queue/local"
	"github.com/cuemby/clustercore/pkg/registry"
	"github.com/cuemby/clustercore/pkg/storage"
	"github.com/cuemby/clustercore/pkg/types"
)

func newTestManager(t *testing.T, baseURL string) *manager.Manager {
	t.Helper()
	store := storage.NewMemoryStore()
	orch := orchestrator.New(local.New())
	reg := registry.New(store)
	return manager.New(manager.Config{NodeID: "m1", BaseURL: baseURL}, store, orch, reg)
}

func TestRegisterJobToEndpointIsIdempotent(t *testing.T) {
	m := newTestManager(t, "")
	ctx := t.Context()

	require.NoError(t, m.RegisterJobToEndpoint(ctx, "echo", "/echo"))
	require.NoError(t, m.RegisterJobToEndpoint(ctx, "echo", "/echo"))

	status, err := m.SubmitJob(ctx, &types.Job{ID: "probe", SchemaName: "missing-schema"})
	require.NoError(t, err)
	require.Equal(t, types.JobStateError, status.Status)
}

func TestSubmitJobRoutingMissErrorMatchesSpecWording(t *testing.T) {
	m := newTestManager(t, "")

	status, err := m.SubmitJob(t.Context(), &types.Job{ID: "probe2", SchemaName: "ghost"})
	require.NoError(t, err)
	require.Equal(t, types.JobStateError, status.Status)
	require.Equal(t, "No job schema targeting found for job type ghost", status.Output["error"])
}

func TestSubmitJobDirectEndpointRouting(t *testing.T) {
	var echoMux *http.ServeMux
	echoMux = http.NewServeMux()
	echoMux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		var job types.Job
		require.NoError(t, json.NewDecoder(r.Body).Decode(&job))
		message, _ := job.Payload["message"].(string)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.JobStatus{
			JobID:  job.ID,
			Status: types.JobStateCompleted,
			Output: map[string]interface{}{"echoed": message},
		})
	})
	server := httptest.NewServer(echoMux)
	defer server.Close()

	m := newTestManager(t, server.URL)
	ctx := t.Context()

	require.NoError(t, m.RegisterJobToEndpoint(ctx, "echo", "/echo"))

	status, err := m.SubmitJob(ctx, &types.Job{
		ID:         "j1",
		SchemaName: "echo",
		Payload:    map[string]interface{}{"message": "hi"},
	})
	require.NoError(t, err)
	require.Equal(t, "j1", status.JobID)
	require.Equal(t, types.JobStateCompleted, status.Status)
	require.Equal(t, "hi", status.Output["echoed"])
	require.Empty(t, status.WorkerID)
}

func TestWorkerAlertLifecycleOrdering(t *testing.T) {
	m := newTestManager(t, "")
	ctx := t.Context()

	require.NoError(t, m.RegisterJobToEndpoint(ctx, "echo", "@orchestrator"))
	status, err := m.SubmitJob(ctx, &types.Job{ID: "j2", SchemaName: "echo"})
	require.NoError(t, err)
	require.Equal(t, types.JobStateQueued, status.Status)

	require.NoError(t, m.WorkerAlertStartedJob(ctx, "j2", "w1"))
	running, err := m.GetJobStatus(ctx, "j2")
	require.NoError(t, err)
	require.Equal(t, types.JobStateRunning, running.Status)
	require.Equal(t, "w1", running.WorkerID)

	ws, err := m.GetWorkerStatus(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, types.WorkerStateRunning, ws.Status)
	require.Equal(t, "j2", ws.JobID)

	require.NoError(t, m.WorkerAlertCompletedJob(ctx, "j2", "w1", types.JobStateCompleted, map[string]interface{}{"ok": true}))
	done, err := m.GetJobStatus(ctx, "j2")
	require.NoError(t, err)
	require.Equal(t, types.JobStateCompleted, done.Status)

	idleWorker, err := m.GetWorkerStatus(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, types.WorkerStateIdle, idleWorker.Status)
	require.Empty(t, idleWorker.JobID)
}

func TestWorkerAlertStartedJobOnUnknownJobRaises(t *testing.T) {
	m := newTestManager(t, "")
	err := m.WorkerAlertStartedJob(t.Context(), "ghost", "w1")
	require.ErrorIs(t, err, types.ErrInvariantViolation)
}

func TestRegisterJobToWorkerSkipsWhenHeartbeatDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/heartbeat":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(types.Heartbeat{Status: types.HeartbeatDown, ServerID: "w1"})
		default:
			t.Fatalf("unexpected call to %s; registration should have stopped after a down heartbeat", r.URL.Path)
		}
	}))
	defer server.Close()

	m := newTestManager(t, "")
	ctx := t.Context()

	require.NoError(t, m.RegisterJobToWorker(ctx, "echo", server.URL))

	ws, err := m.GetWorkerStatusByURL(ctx, server.URL)
	require.NoError(t, err)
	require.Equal(t, types.WorkerStateNonexistent, ws.Status)
}

func TestRegisterJobToWorkerConnectsWhenHeartbeatAvailable(t *testing.T) {
	var connected bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/heartbeat":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(types.Heartbeat{Status: types.HeartbeatAvailable, ServerID: "w1"})
		case "/connect_to_cluster":
			connected = true
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected call to %s", r.URL.Path)
		}
	}))
	defer server.Close()

	m := newTestManager(t, "")
	ctx := t.Context()

	require.NoError(t, m.RegisterJobToWorker(ctx, "echo", server.URL))
	require.True(t, connected)

	ws, err := m.GetWorkerStatusByURL(ctx, server.URL)
	require.NoError(t, err)
	require.Equal(t, types.WorkerStateIdle, ws.Status)
}

func TestGetWorkerStatusSyntheticOnMiss(t *testing.T) {
	m := newTestManager(t, "")
	ws, err := m.GetWorkerStatus(t.Context(), "ghost")
	require.NoError(t, err)
	require.Equal(t, types.WorkerStateNonexistent, ws.Status)
}

func TestRegisterNodeIssuesCredentials(t *testing.T) {
	m := newTestManager(t, "")
	result, err := m.RegisterNode(t.Context(), "http://node1:7900")
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessKey)
	require.NotEmpty(t, result.SecretKey)
	require.Equal(t, "worker-registry", result.Bucket)
}

func TestClearDatabasesRemovesJobStatus(t *testing.T) {
	m := newTestManager(t, "")
	ctx := t.Context()
	require.NoError(t, m.RegisterJobToEndpoint(ctx, "echo", "@orchestrator"))
	_, err := m.SubmitJob(ctx, &types.Job{ID: "j3", SchemaName: "echo"})
	require.NoError(t, err)

	require.NoError(t, m.ClearDatabases(ctx))

	_, err = m.GetJobStatus(ctx, "j3")
	require.Error(t, err)
}
