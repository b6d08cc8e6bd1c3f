package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuemby/clustercore/pkg/types"
)

// submitJobTimeout is the 60-second proxy timeout spec.md section 5
// mandates for submit_job's HTTP fan-out.
const submitJobTimeout = 60 * time.Second

func postJSON(ctx context.Context, hc *http.Client, url string, reqBody, respBody interface{}) error {
	var payload io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("client: marshal request to %s: %w", url, err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		return fmt.Errorf("client: build request to %s: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrTransportFailure, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s returned %d: %s", types.ErrProxyFailure, url, resp.StatusCode, string(body))
	}

	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("client: decode response from %s: %w", url, err)
	}
	return nil
}

// ManagerClient talks to a Cluster Manager's RPC surface (spec.md section
// 6's "Cluster Manager RPC surface" table): one method per endpoint.
type ManagerClient struct {
	baseURL string
	http    *http.Client
}

// NewManagerClient wraps baseURL (e.g. "http://localhost:7700").
func NewManagerClient(baseURL string) *ManagerClient {
	return &ManagerClient{baseURL: baseURL, http: &http.Client{}}
}

func (c *ManagerClient) url(path string) string {
	return c.baseURL + path
}

// SubmitJob posts job to /submit_job with the spec-mandated 60s timeout.
func (c *ManagerClient) SubmitJob(ctx context.Context, job *types.Job) (*types.JobStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, submitJobTimeout)
	defer cancel()
	var status types.JobStatus
	if err := postJSON(ctx, c.http, c.url("/submit_job"), job, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

type registerJobToEndpointRequest struct {
	SchemaName string `json:"schema_name"`
	Endpoint   string `json:"endpoint"`
}

// RegisterJobToEndpoint calls /register_job_to_endpoint.
func (c *ManagerClient) RegisterJobToEndpoint(ctx context.Context, schemaName, endpoint string) error {
	req := registerJobToEndpointRequest{SchemaName: schemaName, Endpoint: endpoint}
	return postJSON(ctx, c.http, c.url("/register_job_to_endpoint"), req, nil)
}

type registerJobToWorkerRequest struct {
	SchemaName string `json:"schema_name"`
	WorkerURL  string `json:"worker_url"`
}

// RegisterJobToWorker calls /register_job_to_worker.
func (c *ManagerClient) RegisterJobToWorker(ctx context.Context, schemaName, workerURL string) error {
	req := registerJobToWorkerRequest{SchemaName: schemaName, WorkerURL: workerURL}
	return postJSON(ctx, c.http, c.url("/register_job_to_worker"), req, nil)
}

// RegisterWorkerTypeRequest is the body of /register_worker_type.
type RegisterWorkerTypeRequest struct {
	Name            string                 `json:"name"`
	ClassRef        string                 `json:"class_ref"`
	Params          map[string]interface{} `json:"params"`
	SourceFetchSpec *types.SourceFetchSpec `json:"source_fetch_spec,omitempty"`
	JobType         string                 `json:"job_type,omitempty"`
}

// RegisterWorkerType calls /register_worker_type.
func (c *ManagerClient) RegisterWorkerType(ctx context.Context, req RegisterWorkerTypeRequest) error {
	return postJSON(ctx, c.http, c.url("/register_worker_type"), req, nil)
}

type registerJobSchemaToWorkerTypeRequest struct {
	SchemaName string `json:"schema_name"`
	WorkerType string `json:"worker_type"`
}

// RegisterJobSchemaToWorkerType calls /register_job_schema_to_worker_type.
func (c *ManagerClient) RegisterJobSchemaToWorkerType(ctx context.Context, schemaName, workerType string) error {
	req := registerJobSchemaToWorkerTypeRequest{SchemaName: schemaName, WorkerType: workerType}
	return postJSON(ctx, c.http, c.url("/register_job_schema_to_worker_type"), req, nil)
}

type launchWorkerRequest struct {
	NodeURL    string `json:"node_url"`
	WorkerType string `json:"worker_type"`
	WorkerURL  string `json:"worker_url"`
}

// LaunchWorker calls /launch_worker.
func (c *ManagerClient) LaunchWorker(ctx context.Context, nodeURL, workerType, workerURL string) error {
	req := launchWorkerRequest{NodeURL: nodeURL, WorkerType: workerType, WorkerURL: workerURL}
	return postJSON(ctx, c.http, c.url("/launch_worker"), req, nil)
}

type registerNodeRequest struct {
	NodeURL string `json:"node_url"`
}

// RegisterNode calls /register_node.
func (c *ManagerClient) RegisterNode(ctx context.Context, nodeURL string) (*types.RegisterNodeResult, error) {
	req := registerNodeRequest{NodeURL: nodeURL}
	var result types.RegisterNodeResult
	if err := postJSON(ctx, c.http, c.url("/register_node"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type jobIDRequest struct {
	JobID string `json:"job_id"`
}

// GetJobStatus calls /get_job_status.
func (c *ManagerClient) GetJobStatus(ctx context.Context, jobID string) (*types.JobStatus, error) {
	req := jobIDRequest{JobID: jobID}
	var status types.JobStatus
	if err := postJSON(ctx, c.http, c.url("/get_job_status"), req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

type workerIDRequest struct {
	WorkerID string `json:"worker_id"`
}

// GetWorkerStatus calls /get_worker_status.
func (c *ManagerClient) GetWorkerStatus(ctx context.Context, workerID string) (*types.WorkerStatus, error) {
	req := workerIDRequest{WorkerID: workerID}
	var status types.WorkerStatus
	if err := postJSON(ctx, c.http, c.url("/get_worker_status"), req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// QueryWorkerStatus calls /query_worker_status.
func (c *ManagerClient) QueryWorkerStatus(ctx context.Context, workerID string) (*types.WorkerStatus, error) {
	req := workerIDRequest{WorkerID: workerID}
	var status types.WorkerStatus
	if err := postJSON(ctx, c.http, c.url("/query_worker_status"), req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

type workerAlertStartedJobRequest struct {
	JobID    string `json:"job_id"`
	WorkerID string `json:"worker_id"`
}

// WorkerAlertStartedJob calls /worker_alert_started_job.
func (c *ManagerClient) WorkerAlertStartedJob(ctx context.Context, jobID, workerID string) error {
	req := workerAlertStartedJobRequest{JobID: jobID, WorkerID: workerID}
	return postJSON(ctx, c.http, c.url("/worker_alert_started_job"), req, nil)
}

type workerAlertCompletedJobRequest struct {
	JobID    string                 `json:"job_id"`
	WorkerID string                 `json:"worker_id"`
	Status   types.JobState         `json:"status"`
	Output   map[string]interface{} `json:"output,omitempty"`
}

// WorkerAlertCompletedJob calls /worker_alert_completed_job.
func (c *ManagerClient) WorkerAlertCompletedJob(ctx context.Context, jobID, workerID string, status types.JobState, output map[string]interface{}) error {
	req := workerAlertCompletedJobRequest{JobID: jobID, WorkerID: workerID, Status: status, Output: output}
	return postJSON(ctx, c.http, c.url("/worker_alert_completed_job"), req, nil)
}

// SubmitJobAt posts job to an arbitrary path on this manager's own HTTP
// surface, used by submit_job's direct-endpoint routing (spec.md section
// 4.3: "if an HTTP path, proxy synchronously via HTTP POST to
// <cluster_base>/<path>"), with the same 60s timeout as SubmitJob.
func (c *ManagerClient) SubmitJobAt(ctx context.Context, path string, job *types.Job) (*types.JobStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, submitJobTimeout)
	defer cancel()
	var status types.JobStatus
	if err := postJSON(ctx, c.http, c.url(path), job, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ClearDatabases calls /clear_databases.
func (c *ManagerClient) ClearDatabases(ctx context.Context) error {
	return postJSON(ctx, c.http, c.url("/clear_databases"), struct{}{}, nil)
}

// WorkerClient talks to a Worker's RPC surface (spec.md section 6's
// "Worker RPC surface": /start, /run, /connect_to_cluster, /get_status,
// /shutdown, /heartbeat).
type WorkerClient struct {
	baseURL string
	http    *http.Client
}

// NewWorkerClient wraps baseURL (e.g. "http://localhost:7800").
func NewWorkerClient(baseURL string) *WorkerClient {
	return &WorkerClient{baseURL: baseURL, http: &http.Client{}}
}

func (c *WorkerClient) url(path string) string {
	return c.baseURL + path
}

type connectToClusterRequest struct {
	BackendArgs map[string]interface{} `json:"backend_args"`
	QueueName   string                 `json:"queue_name"`
	ClusterURL  string                 `json:"cluster_url"`
}

// ConnectToCluster calls /connect_to_cluster.
func (c *WorkerClient) ConnectToCluster(ctx context.Context, backendArgs map[string]interface{}, queueName, clusterURL string) error {
	req := connectToClusterRequest{BackendArgs: backendArgs, QueueName: queueName, ClusterURL: clusterURL}
	return postJSON(ctx, c.http, c.url("/connect_to_cluster"), req, nil)
}

// GetStatus calls /get_status.
func (c *WorkerClient) GetStatus(ctx context.Context) (*types.WorkerStatusLocal, error) {
	var status types.WorkerStatusLocal
	if err := postJSON(ctx, c.http, c.url("/get_status"), struct{}{}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Shutdown calls /shutdown.
func (c *WorkerClient) Shutdown(ctx context.Context) error {
	return postJSON(ctx, c.http, c.url("/shutdown"), struct{}{}, nil)
}

// Heartbeat calls /heartbeat. A transport failure is reported as a Heartbeat
// with status=down rather than an error, matching spec.md's WorkerDown
// detection at the call sites (register_job_to_worker, query_worker_status):
// those sites treat "can't reach the worker" the same as "worker said down".
func (c *WorkerClient) Heartbeat(ctx context.Context) (*types.Heartbeat, error) {
	var hb types.Heartbeat
	if err := postJSON(ctx, c.http, c.url("/heartbeat"), struct{}{}, &hb); err != nil {
		return &types.Heartbeat{Status: types.HeartbeatDown}, nil
	}
	return &hb, nil
}

// NodeClient talks to a Node's RPC surface (spec.md section 6's "Node RPC
// surface": /launch_worker, /shutdown).
type NodeClient struct {
	baseURL string
	http    *http.Client
}

// NewNodeClient wraps baseURL (e.g. "http://localhost:7900").
func NewNodeClient(baseURL string) *NodeClient {
	return &NodeClient{baseURL: baseURL, http: &http.Client{}}
}

func (c *NodeClient) url(path string) string {
	return c.baseURL + path
}

type nodeLaunchWorkerRequest struct {
	WorkerType string `json:"worker_type"`
	WorkerURL  string `json:"worker_url"`
}

// LaunchWorker calls /launch_worker.
func (c *NodeClient) LaunchWorker(ctx context.Context, workerType, workerURL string) error {
	req := nodeLaunchWorkerRequest{WorkerType: workerType, WorkerURL: workerURL}
	return postJSON(ctx, c.http, c.url("/launch_worker"), req, nil)
}

// Shutdown calls /shutdown.
func (c *NodeClient) Shutdown(ctx context.Context) error {
	return postJSON(ctx, c.http, c.url("/shutdown"), struct{}{}, nil)
}
