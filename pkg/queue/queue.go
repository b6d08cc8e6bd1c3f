// Package queue defines the pluggable queue abstraction consumed by the
// Orchestrator: named, typed queues with push/pop/qsize/clean over an
// in-memory, Redis, or AMQP backend.
package queue

import (
	"context"
	"errors"
	"time"
)

// Type is the ordering discipline of a declared queue.
type Type string

const (
	FIFO     Type = "fifo"
	LIFO     Type = "lifo"
	Priority Type = "priority"
)

// ErrQueueExists is returned by DeclareQueue when the name is already
// declared with a different Type.
var ErrQueueExists = errors.New("queue: already declared with a different type")

// ErrNoQueue is returned when an operation names a queue that has not been
// declared.
var ErrNoQueue = errors.New("queue: not declared")

// ErrEmpty is returned by Pop when no item is available, block is false, or
// the blocking wait expires.
var ErrEmpty = errors.New("queue: empty")

// Backend is implemented by every queue backend (local, Redis, AMQP). A
// single Backend instance multiplexes many named queues.
type Backend interface {
	// DeclareQueue creates queue name of the given Type if it does not
	// already exist. Idempotent: declaring the same name and Type twice is
	// equivalent to once; declaring an existing name with a different Type
	// returns ErrQueueExists.
	DeclareQueue(ctx context.Context, name string, t Type) error

	// DeleteQueue removes queue name and discards any queued items.
	// Deleting an unknown queue is a no-op.
	DeleteQueue(ctx context.Context, name string) error

	// Push enqueues item on queue name. priority is only meaningful for a
	// Priority queue; pass nil for the default priority (0).
	Push(ctx context.Context, name string, item []byte, priority *int) error

	// Pop dequeues the next item per the queue's ordering discipline. If
	// block is true and the queue is empty, Pop suspends until an item
	// arrives or timeout elapses (timeout <= 0 means wait indefinitely).
	// If block is false, Pop returns ErrEmpty immediately when empty.
	Pop(ctx context.Context, name string, block bool, timeout time.Duration) ([]byte, error)

	// QSize reports the number of items currently queued.
	QSize(ctx context.Context, name string) (int, error)

	// Clean discards every queued item and reports how many were removed.
	Clean(ctx context.Context, name string) (int, error)

	// Close releases backend resources (connections, listener goroutines).
	Close() error
}
