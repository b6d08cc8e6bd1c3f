package client_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/clustercore/pkg/client"
	"github.com/cuemby/clustercore/pkg/types"
)

func TestManagerClientSubmitJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/submit_job", r.URL.Path)
		var job types.Job
		require.NoError(t, json.NewDecoder(r.Body).Decode(&job))
		require.Equal(t, "j1", job.ID)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.JobStatus{JobID: "j1", Status: types.JobStateCompleted})
	}))
	defer server.Close()

	c := client.NewManagerClient(server.URL)
	status, err := c.SubmitJob(t.Context(), &types.Job{ID: "j1", SchemaName: "echo"})
	require.NoError(t, err)
	require.Equal(t, types.JobStateCompleted, status.Status)
}

func TestManagerClientProxyFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := client.NewManagerClient(server.URL)
	_, err := c.GetJobStatus(t.Context(), "ghost")
	require.ErrorIs(t, err, types.ErrProxyFailure)
}

func TestWorkerClientHeartbeatDownOnTransportFailure(t *testing.T) {
	c := client.NewWorkerClient("http://127.0.0.1:1")
	hb, err := c.Heartbeat(t.Context())
	require.NoError(t, err)
	require.Equal(t, types.HeartbeatDown, hb.Status)
}
