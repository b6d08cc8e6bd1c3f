// Package local is the in-memory queue.Backend: one mutex per named queue
// and a broadcast-on-push channel that blocking Pop callers select on,
// instead of a sync.Cond (which cannot natively participate in a select
// with a timeout or context cancellation).
package local
