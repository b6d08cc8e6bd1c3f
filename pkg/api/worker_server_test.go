package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/clustercore/pkg/api"
	"github.com/cuemby/clustercore/pkg/client"
	"github.com/cuemby/clustercore/pkg/types"
	"github.com/cuemby/clustercore/pkg/worker"
)

func echoHandler(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
	return payload, nil
}

func TestWorkerServerConnectGetStatusHeartbeat(t *testing.T) {
	w := worker.New(worker.Config{WorkerID: "w1", WorkerType: "echo", Handler: echoHandler})
	srv := httptest.NewServer(api.NewWorkerServer(w))
	defer srv.Close()
	c := client.NewWorkerClient(srv.URL)

	require.NoError(t, c.ConnectToCluster(t.Context(), map[string]interface{}{"backend": "local"}, "echo-q", ""))

	status, err := c.GetStatus(t.Context())
	require.NoError(t, err)
	require.Equal(t, "w1", status.WorkerID)

	hb, err := c.Heartbeat(t.Context())
	require.NoError(t, err)
	require.Equal(t, types.HeartbeatAvailable, hb.Status)

	require.NoError(t, c.Shutdown(t.Context()))

	hb, err = c.Heartbeat(t.Context())
	require.NoError(t, err)
	require.Equal(t, types.HeartbeatDown, hb.Status)
}

func TestWorkerServerRunInvokesHandlerDirectly(t *testing.T) {
	called := make(chan struct{}, 1)
	handler := func(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
		called <- struct{}{}
		return payload, nil
	}
	w := worker.New(worker.Config{WorkerID: "w2", WorkerType: "echo", Handler: handler})
	srv := httptest.NewServer(api.NewWorkerServer(w))
	defer srv.Close()

	body, err := json.Marshal(types.Job{ID: "j1", SchemaName: "echo-job", Payload: map[string]interface{}{"x": 1.0}})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/run", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked by /run")
	}
}
