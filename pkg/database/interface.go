package database

import (
	"context"

	"github.com/voidshard/vidpipe/pkg/structs"
)

// Database is the job store; the single source of truth for job lifecycle.
//
// It makes no calls to the blob store or transcoder.
type Database interface {
	// InsertJob durably records a new job and returns its id. If the job has no
	// id one is assigned.
	InsertJob(ctx context.Context, j *structs.Job) (string, error)

	// Job returns the job with the given id, or errors.ErrNotFound.
	Job(ctx context.Context, id string) (*structs.Job, error)

	// UpdateJobState is a compare-and-swap on the job's state. The update applies
	// only if the stored state is `expect`; otherwise errors.ErrConflict is returned
	// and nothing is written. Fields are written alongside the new state and
	// UpdatedAt is refreshed. The updated job is returned.
	UpdateJobState(ctx context.Context, id string, expect, next structs.Status, f *structs.Fields) (*structs.Job, error)

	// Jobs returns one page of jobs matching the query, in submission order,
	// plus a token for the next page ("" when there are no more).
	Jobs(ctx context.Context, q *structs.Query) ([]*structs.Job, string, error)

	Close() error
}

// New opens the database described by opts.
func New(opts *Options) (Database, error) {
	opts.SetDefaults()
	switch opts.Driver() {
	case DriverPostgres:
		return NewPostgres(opts)
	case DriverSQLite:
		return NewSQLite(opts)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, errUnknownDriver(opts.URL)
	}
}
