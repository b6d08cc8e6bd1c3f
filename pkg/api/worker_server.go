package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cuemby/clustercore/pkg/types"
	"github.com/cuemby/clustercore/pkg/worker"
)

// WorkerServer serves the Worker RPC surface (spec.md section 6): /start,
// /run, /connect_to_cluster, /get_status, /shutdown, /heartbeat. It
// replaces the teacher's gRPC WarrenAPI worker endpoints with plain JSON
// handlers over a *worker.Worker.
type WorkerServer struct {
	w      *worker.Worker
	router chi.Router
}

func NewWorkerServer(w *worker.Worker) *WorkerServer {
	s := &WorkerServer{w: w}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger("worker-api"))

	r.Post("/start", s.handleStart)
	r.Post("/run", s.handleRun)
	r.Post("/connect_to_cluster", s.handleConnectToCluster)
	r.Post("/get_status", s.handleGetStatus)
	r.Post("/shutdown", s.handleShutdown)
	r.Post("/heartbeat", s.handleHeartbeat)

	s.router = r
	return s
}

func (s *WorkerServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *WorkerServer) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.w.Start(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// handleRun invokes the worker's job-handling sequence synchronously for a
// job delivered directly over HTTP rather than popped off a queue — the
// direct-invocation counterpart to the background consumption loop.
func (s *WorkerServer) handleRun(w http.ResponseWriter, r *http.Request) {
	var job types.Job
	if err := decodeJSON(r, &job); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.w.Run(r.Context(), &job)
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *WorkerServer) handleConnectToCluster(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BackendArgs map[string]interface{} `json:"backend_args"`
		QueueName   string                 `json:"queue_name"`
		ClusterURL  string                 `json:"cluster_url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.w.ConnectToCluster(r.Context(), req.BackendArgs, req.QueueName, req.ClusterURL); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *WorkerServer) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.w.GetStatus())
}

func (s *WorkerServer) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if err := s.w.Shutdown(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *WorkerServer) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.w.Heartbeat())
}
