package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cuemby/clustercore/pkg/log"
	"github.com/cuemby/clustercore/pkg/node"
)

var errWorkerNotTracked = errors.New("node: worker not tracked after launch")

// NodeServer serves the Node RPC surface (spec.md section 6): /launch_worker
// and /shutdown. Launching a worker only instantiates it in memory
// (node.Node.LaunchWorker); NodeServer additionally binds an HTTP listener
// at the requested worker_url and mounts a WorkerServer onto it, since
// node.Node itself owns no transport.
type NodeServer struct {
	n      *node.Node
	router chi.Router

	mu      sync.Mutex
	servers map[string]*http.Server // keyed by worker_url
}

func NewNodeServer(n *node.Node) *NodeServer {
	s := &NodeServer{n: n, servers: make(map[string]*http.Server)}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger("node-api"))

	r.Post("/launch_worker", s.handleLaunchWorker)
	r.Post("/shutdown", s.handleShutdown)

	s.router = r
	return s
}

func (s *NodeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *NodeServer) handleLaunchWorker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkerType string `json:"worker_type"`
		WorkerURL  string `json:"worker_url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.n.LaunchWorker(r.Context(), req.WorkerType, req.WorkerURL); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	wk, ok := s.n.Worker(req.WorkerURL)
	if !ok {
		writeError(w, http.StatusInternalServerError, errWorkerNotTracked)
		return
	}
	if err := s.bindWorker(req.WorkerURL, NewWorkerServer(wk)); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// bindWorker opens a listener for the launched worker at worker_url and
// mounts a WorkerServer on it, running it in the background.
func (s *NodeServer) bindWorker(workerURL string, ws *WorkerServer) error {
	u, err := url.Parse(workerURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.servers[workerURL]; exists {
		return nil
	}

	srv := &http.Server{Addr: u.Host, Handler: ws}
	s.servers[workerURL] = srv
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithComponent("node-api").Error().Err(err).Str("worker_url", workerURL).Msg("worker listener stopped")
		}
	}()
	return nil
}

func (s *NodeServer) handleShutdown(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	servers := s.servers
	s.servers = make(map[string]*http.Server)
	s.mu.Unlock()

	for workerURL, srv := range servers {
		if err := srv.Shutdown(context.Background()); err != nil {
			log.WithComponent("node-api").Warn().Err(err).Str("worker_url", workerURL).Msg("worker listener shutdown failed")
		}
	}

	if err := s.n.Shutdown(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
