// Package health is a single liveness probe, generalized from the teacher's
// HTTP/TCP/Exec checker design down to the one check the job cluster needs:
// is a launched worker's /heartbeat endpoint responding. pkg/node's Node
// uses HTTPChecker and Status to supervise each worker it launches,
// independent of the Cluster Manager's own GetWorkerStatus-based tracking.
package health
