/*
Package types defines the core data model shared across the cluster:
Job, JobStatus, WorkerStatus, WorkerStatusLocal, JobSchemaTargeting,
WorkerAutoConnect, ProxyWorker and Node.

Jobs are immutable once created; everything else here is a mutable record
owned by exactly one subsystem (the Cluster Manager owns every store except
WorkerStatusLocal, which belongs to the worker that maintains it). See
pkg/storage for persistence and pkg/manager for the operations that mutate
these records.
*/
package types
