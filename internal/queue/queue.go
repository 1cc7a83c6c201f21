// Package queue carries batch jobs from the scheduler to the pipeline
// workers over RabbitMQ. One scheduled trigger publishes one job per
// configured (municipality, batch name) pair; workers consume them and run
// the pipeline.
package queue

import "context"

const (
	// WorkQueueName is the single batch-job work queue.
	WorkQueueName = "batches"
	// DLQName receives jobs rejected as malformed.
	DLQName = "dlq.batches"
)

// Publisher publishes batch job messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg BatchJobMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg BatchJobMessage) error

// Consumer consumes batch job messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
