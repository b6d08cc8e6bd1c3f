package worker_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/clustercore/pkg/types"
	"github.com/cuemby/clustercore/pkg/worker"
)

func TestWorkerRunReportsStartedAndCompleted(t *testing.T) {
	var mu sync.Mutex
	var calls []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	handler := func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"doubled": payload["n"].(float64) * 2}, nil
	}
	w := worker.New(worker.Config{WorkerID: "w1", WorkerType: "echo", Handler: handler})

	require.NoError(t, w.ConnectToCluster(t.Context(), map[string]interface{}{"backend": "local"}, "echo", server.URL))
	defer w.Shutdown(t.Context())

	w.Run(t.Context(), &types.Job{ID: "j1", Payload: map[string]interface{}{"n": 21.0}})

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"/worker_alert_started_job", "/worker_alert_completed_job"}, calls)

	status := w.GetStatus()
	require.Equal(t, types.WorkerStateIdle, status.Status)
	require.Empty(t, status.JobID)
}

func TestWorkerRunReportsFailureOnHandlerError(t *testing.T) {
	var completed types.JobStatus
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/worker_alert_completed_job" {
			var body struct {
				Status types.JobState `json:"status"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			completed.Status = body.Status
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	handler := func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		return nil, fmt.Errorf("boom")
	}
	w := worker.New(worker.Config{WorkerID: "w2", WorkerType: "boom", Handler: handler})
	require.NoError(t, w.ConnectToCluster(t.Context(), map[string]interface{}{"backend": "local"}, "boom", server.URL))
	defer w.Shutdown(t.Context())

	w.Run(t.Context(), &types.Job{ID: "j2"})
	require.Equal(t, types.JobStateFailed, completed.Status)
}

func TestWorkerRunSkipsCallbacksWhenDisconnected(t *testing.T) {
	ran := false
	handler := func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		ran = true
		return nil, nil
	}
	w := worker.New(worker.Config{WorkerID: "w3", Handler: handler})
	require.NoError(t, w.ConnectToCluster(t.Context(), map[string]interface{}{"backend": "local"}, "q", ""))
	defer w.Shutdown(t.Context())

	w.Run(t.Context(), &types.Job{ID: "j3"})
	require.True(t, ran)
}

func TestWorkerConsumeLoopIdleWhileQueueEmpty(t *testing.T) {
	done := make(chan struct{})
	handler := func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		close(done)
		return nil, nil
	}
	w := worker.New(worker.Config{WorkerID: "w4", Handler: handler})
	require.NoError(t, w.ConnectToCluster(t.Context(), map[string]interface{}{"backend": "local"}, "q4", ""))
	defer w.Shutdown(t.Context())

	select {
	case <-done:
		t.Fatal("handler ran before any job was published")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWorkerHeartbeatReportsDownAfterShutdown(t *testing.T) {
	w := worker.New(worker.Config{WorkerID: "w5"})
	require.NoError(t, w.ConnectToCluster(t.Context(), map[string]interface{}{"backend": "local"}, "q5", ""))

	require.Equal(t, types.HeartbeatAvailable, w.Heartbeat().Status)
	require.NoError(t, w.Shutdown(t.Context()))
	require.Equal(t, types.HeartbeatDown, w.Heartbeat().Status)
}
