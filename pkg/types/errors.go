package types

import "errors"

// Error kinds surfaced by the Cluster Manager and Worker Runtime. These are
// sentinel errors; callers match with errors.Is against the wrapped chain.
var (
	// ErrStoreMiss is returned when a lookup by job_id or worker_id finds
	// nothing and the caller's contract does not permit a synthetic result.
	ErrStoreMiss = errors.New("store: no matching record")

	// ErrInvariantViolation is returned when a store operation finds zero
	// or multiple rows where exactly one is required, e.g. worker lifecycle
	// callbacks keyed by job_id.
	ErrInvariantViolation = errors.New("store: invariant violation")

	// ErrProxyFailure is returned when a downstream HTTP endpoint proxied
	// by submit_job responds with a non-success status.
	ErrProxyFailure = errors.New("proxy: downstream endpoint failure")

	// ErrTransportFailure is returned for connect, heartbeat and launch
	// RPCs that fail at the transport layer.
	ErrTransportFailure = errors.New("transport: request failed")

	// ErrWorkerDown names a worker whose heartbeat reports down. No
	// operation returns it: register_job_to_worker treats a down (or
	// unreachable) heartbeat as a skip, logging and returning nil.
	ErrWorkerDown = errors.New("worker: heartbeat reports down")
)
