// Package api exposes the Cluster Manager, Worker, and Node processes as
// JSON-over-HTTP RPC surfaces (spec.md section 6), one chi.Router-backed
// server per process kind: ManagerServer, WorkerServer, NodeServer.
//
// The teacher's pkg/api served a single gRPC WarrenAPI behind mTLS and a
// read-only Unix-socket interceptor; this domain has no container fleet,
// Raft leadership, or certificate authority to protect, so the
// cross-cutting concerns it keeps are request logging and panic recovery,
// both ordinary chi middleware (middleware.go) rather than a bespoke
// interceptor. Handlers translate the sentinel errors in pkg/types/errors.go
// into HTTP status codes (statusFor in manager_server.go); everything else
// is a thin JSON decode, a call into the wrapped pkg/manager, pkg/worker,
// or pkg/node value, and a JSON encode.
package api
