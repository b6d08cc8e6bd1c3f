/*
Package queue is the pluggable queue layer consumed by pkg/orchestrator.

Three backends implement the same Backend interface:

  - pkg/queue/local: an in-memory, single-process backend, one mutex and
    broadcast channel per named queue.
  - pkg/queue/redisqueue: list operations (BLPOP/BRPOP) for FIFO/LIFO and a
    sorted set with a composite priority+sequence score for Priority,
    shared across client processes via a queue_metadata hash and a
    queue_events pub/sub channel.
  - pkg/queue/amqpqueue: RabbitMQ-native queues, priority via a per-queue
    x-max-priority argument.

All three honor the same ordering guarantees: FIFO preserves enqueue order,
Priority delivers highest-priority first with enqueue order breaking ties
(amqpqueue clamps priorities into 0..10, so values outside that range tie
with its end points), and a blocking Pop suspends up to an optional timeout before returning
ErrEmpty.
*/
package queue
