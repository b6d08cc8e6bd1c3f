// Package worker implements the Worker Runtime (spec.md section 4.4): a
// long-lived process that consumes a queue, invokes a user-supplied
// JobHandler, and reports job start/completion back to the Cluster Manager.
//
// Generalized from the teacher's containerd-backed Worker (worker.go,
// health_monitor.go, secrets.go, volumes.go, dns.go in the original) down to
// the one thing this domain's workers actually do: run a Go function per
// job instead of a container. ConnectToCluster plays the role of the
// teacher's Start — it builds an Orchestrator consumer from backend_args
// and spawns the background consumption loop; Run mirrors the teacher's
// executeContainer, down to reporting failure without killing the loop.
package worker
