// Package redisqueue is the Redis-backed queue.Backend. See the package
// comment on redisqueue.go for the wire layout (queue_metadata,
// queue_events, queue_lock, queue:<name> keys).
package redisqueue
