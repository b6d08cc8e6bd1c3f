/*
Package storage persists the records the Cluster Manager owns: job status,
worker status, the job-schema routing table, worker auto-connect bindings,
registered nodes, and versioned worker-type bundles.

BoltStore backs these with a single BoltDB file, one bucket per record type,
JSON-encoded values. MemoryStore implements the same Store interface without
persistence, for the local profile and for tests. Both enforce the same
invariants (e.g. CreateJobStatus rejects a second row for a JobID already
present), so callers in pkg/manager are storage-backend agnostic.
*/
package storage
