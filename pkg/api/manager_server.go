package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cuemby/clustercore/pkg/client"
	"github.com/cuemby/clustercore/pkg/manager"
	"github.com/cuemby/clustercore/pkg/metrics"
	"github.com/cuemby/clustercore/pkg/types"
)

// ManagerServer serves the Cluster Manager RPC surface (spec.md section
// 6's "Cluster Manager RPC surface" table) as JSON over HTTP POST,
// replacing the teacher's gRPC+mTLS *Server (pkg/api/server.go original)
// with a chi.Router of one handler per cluster operation.
type ManagerServer struct {
	mgr    *manager.Manager
	router chi.Router
}

// NewManagerServer wires every endpoint onto a fresh chi.Router.
func NewManagerServer(mgr *manager.Manager) *ManagerServer {
	s := &ManagerServer{mgr: mgr}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger("manager-api"))

	r.Post("/submit_job", s.handleSubmitJob)
	r.Post("/register_job_to_endpoint", s.handleRegisterJobToEndpoint)
	r.Post("/register_job_to_worker", s.handleRegisterJobToWorker)
	r.Post("/register_worker_type", s.handleRegisterWorkerType)
	r.Post("/register_job_schema_to_worker_type", s.handleRegisterJobSchemaToWorkerType)
	r.Post("/launch_worker", s.handleLaunchWorker)
	r.Post("/register_node", s.handleRegisterNode)
	r.Post("/get_job_status", s.handleGetJobStatus)
	r.Post("/get_worker_status", s.handleGetWorkerStatus)
	r.Post("/query_worker_status", s.handleQueryWorkerStatus)
	r.Post("/worker_alert_started_job", s.handleWorkerAlertStartedJob)
	r.Post("/worker_alert_completed_job", s.handleWorkerAlertCompletedJob)
	r.Post("/clear_databases", s.handleClearDatabases)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", metrics.Handler())

	s.router = r
	return s
}

// ServeHTTP makes ManagerServer an http.Handler.
func (s *ManagerServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *ManagerServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *ManagerServer) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var job types.Job
	if err := decodeJSON(r, &job); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := s.mgr.SubmitJob(r.Context(), &job)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *ManagerServer) handleRegisterJobToEndpoint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SchemaName string `json:"schema_name"`
		Endpoint   string `json:"endpoint"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.mgr.RegisterJobToEndpoint(r.Context(), req.SchemaName, req.Endpoint); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *ManagerServer) handleRegisterJobToWorker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SchemaName string `json:"schema_name"`
		WorkerURL  string `json:"worker_url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.mgr.RegisterJobToWorker(r.Context(), req.SchemaName, req.WorkerURL); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *ManagerServer) handleRegisterWorkerType(w http.ResponseWriter, r *http.Request) {
	var req client.RegisterWorkerTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.mgr.RegisterWorkerType(r.Context(), req.Name, req.ClassRef, req.Params, req.SourceFetchSpec, req.JobType); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *ManagerServer) handleRegisterJobSchemaToWorkerType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SchemaName string `json:"schema_name"`
		WorkerType string `json:"worker_type"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.mgr.RegisterJobSchemaToWorkerType(r.Context(), req.SchemaName, req.WorkerType); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *ManagerServer) handleLaunchWorker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NodeURL    string `json:"node_url"`
		WorkerType string `json:"worker_type"`
		WorkerURL  string `json:"worker_url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.mgr.LaunchWorker(r.Context(), req.NodeURL, req.WorkerType, req.WorkerURL); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *ManagerServer) handleRegisterNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NodeURL string `json:"node_url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.mgr.RegisterNode(r.Context(), req.NodeURL)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *ManagerServer) handleGetJobStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobID string `json:"job_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := s.mgr.GetJobStatus(r.Context(), req.JobID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *ManagerServer) handleGetWorkerStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkerID string `json:"worker_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := s.mgr.GetWorkerStatus(r.Context(), req.WorkerID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *ManagerServer) handleQueryWorkerStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkerID string `json:"worker_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := s.mgr.QueryWorkerStatus(r.Context(), req.WorkerID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *ManagerServer) handleWorkerAlertStartedJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobID    string `json:"job_id"`
		WorkerID string `json:"worker_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.mgr.WorkerAlertStartedJob(r.Context(), req.JobID, req.WorkerID); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *ManagerServer) handleWorkerAlertCompletedJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobID    string                 `json:"job_id"`
		WorkerID string                 `json:"worker_id"`
		Status   types.JobState         `json:"status"`
		Output   map[string]interface{} `json:"output,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.mgr.WorkerAlertCompletedJob(r.Context(), req.JobID, req.WorkerID, req.Status, req.Output); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *ManagerServer) handleClearDatabases(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.ClearDatabases(r.Context()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// statusFor maps the error taxonomy (spec.md section 7) onto the HTTP status
// code every ManagerServer handler writes when its operation fails.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrStoreMiss):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInvariantViolation):
		return http.StatusConflict
	case errors.Is(err, types.ErrProxyFailure), errors.Is(err, types.ErrTransportFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
