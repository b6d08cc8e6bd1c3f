// Package amqpqueue is the RabbitMQ-backed queue.Backend. See the package
// comment on amqpqueue.go for how LIFO is translated onto AMQP's
// FIFO-only native queues.
package amqpqueue
