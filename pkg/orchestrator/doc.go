// Package orchestrator sits between pkg/manager and pkg/queue. It owns the
// in-memory schema → queue-type mapping (lost on restart, per spec.md §9's
// explicit open question — the Cluster Manager rebuilds it by re-registering
// known schemas from its durable JobSchemaTargeting store on startup) and
// adapts raw queue.Backend bytes to and from types.Job.
package orchestrator
