package queue

import (
	"context"

	"github.com/voidshard/vidpipe/pkg/structs"
)

// Service is the part of the scheduler a Queue is allowed to call.
type Service interface {
	// Report the outcome of one execution attempt.
	Report(ctx context.Context, o *structs.Outcome) error
}

type Queue interface {
	// Register the job handler. This is a function that will be called for every enqueued job.
	//
	// The handler records what happened on the given Meta (SetOutput / SetError); once it
	// returns the Queue reports the outcome to the Service.
	Register(handler func(ctx context.Context, m *Meta)) error

	// Run the queue & process jobs (via the Register func). This should block until Close() is called.
	Run() error

	// Enqueue an execution of the given job. The job's Attempt is the attempt being executed.
	//
	// The Queue returns a unique id for the queued task with which we can call
	// Kill(the-given-id) to stop it running.
	Enqueue(j *structs.Job) (string, error)

	// Kill a queued task with ID given to us by Enqueue. Best effort.
	Kill(queuedTaskID string) error

	// Close & shutdown the queue.
	Close() error
}
