// Package manager implements the Cluster Manager: the single-owner
// authority over job status, worker status, job-schema routing, the
// worker registry and node membership (spec.md sections 3 and 4.3).
//
// Generalized from the teacher's Raft-backed *Manager (manager.go,
// fsm.go) to a single-process owner backed directly by a storage.Store —
// no consensus layer, since nothing in this spec requires multi-manager
// replication (see DESIGN.md). token.go's CredentialManager is adapted
// from the teacher's join-token generator to issue register_node's
// worker-registry access credentials instead of mTLS join tokens.
package manager
