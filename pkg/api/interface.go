package api

import (
	"context"

	"github.com/voidshard/vidpipe/pkg/structs"
)

// API represents the functions vidpipe servers should expose.
//
// Owner & requester identities are trusted verbatim; whatever sits in front of
// the API is responsible for authenticating them.
type API interface {
	// Submit validates & records a new job, then hands it to the scheduler.
	// It never waits for the job to execute.
	Submit(ctx context.Context, owner string, req *structs.SubmitRequest) (*structs.StatusResponse, error)

	// Status is a read only view of a job.
	Status(ctx context.Context, id string) (*structs.StatusResponse, error)

	// Cancel asks for a job to be canceled. Only the owner may cancel.
	Cancel(ctx context.Context, id, requester string) (*structs.StatusResponse, error)

	// Jobs lists jobs in submission order.
	Jobs(ctx context.Context, q *structs.Query) (*structs.ListResponse, error)

	// Result returns a time limited link to a succeeded job's output.
	Result(ctx context.Context, id, requester string) (*structs.ResultResponse, error)
}

// Scheduler is the part of the scheduler the API drives; implemented by internal/core.Scheduler
type Scheduler interface {
	Enqueue(j *structs.Job) error
	Cancel(ctx context.Context, id string) (*structs.Job, error)
}

type Server interface {
	ServeForever(api API) error
	Close() error
}
