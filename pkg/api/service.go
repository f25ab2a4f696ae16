package api

import (
	"context"
	stderr "errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/voidshard/vidpipe/pkg/blob"
	"github.com/voidshard/vidpipe/pkg/database"
	"github.com/voidshard/vidpipe/pkg/errors"
	"github.com/voidshard/vidpipe/pkg/structs"
)

var timeNow = time.Now

// Service implements API on top of the job store, the scheduler & the blob store.
type Service struct {
	opts    *Options
	logger  zerolog.Logger
	db      database.Database
	sched   Scheduler
	blobs   blob.Store
	formats map[string]bool
	limits  *ownerLimits
}

func NewService(logger zerolog.Logger, db database.Database, sched Scheduler, blobs blob.Store, opts *Options) *Service {
	if opts == nil {
		opts = &Options{}
	}
	opts.SetDefaults()

	formats := map[string]bool{}
	for _, f := range opts.Formats {
		formats[f] = true
	}

	return &Service{
		opts:    opts,
		logger:  logger.With().Str("component", "api").Logger(),
		db:      db,
		sched:   sched,
		blobs:   blobs,
		formats: formats,
		limits:  newOwnerLimits(opts.SubmitRate, opts.SubmitBurst),
	}
}

func (s *Service) Submit(ctx context.Context, owner string, req *structs.SubmitRequest) (*structs.StatusResponse, error) {
	err := validateSubmit(s.formats, owner, req)
	if err != nil {
		return nil, err
	}
	if !s.limits.Allow(owner) {
		return nil, fmt.Errorf("%w owner %s", errors.ErrRateLimited, owner)
	}

	j := buildJob(owner, req)
	_, err = s.db.InsertJob(ctx, j)
	if err != nil {
		return nil, err
	}

	err = s.sched.Enqueue(j)
	if err != nil {
		// the record is durable & QUEUED; scheduler recovery will pick it up
		s.logger.Warn().Err(err).Str("job_id", j.ID).Msg("failed to enqueue job")
	}

	s.logger.Debug().Str("job_id", j.ID).Str("owner", owner).Str("input_format", j.InputFormat).Str("output_format", j.OutputFormat).Msg("job submitted")
	return structs.ToStatusResponse(j), nil
}

func (s *Service) Status(ctx context.Context, id string) (*structs.StatusResponse, error) {
	j, err := s.db.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	return structs.ToStatusResponse(j), nil
}

func (s *Service) Cancel(ctx context.Context, id, requester string) (*structs.StatusResponse, error) {
	j, err := s.db.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.Owner != requester {
		return nil, fmt.Errorf("%w job %s", errors.ErrForbidden, id)
	}

	j, err = s.sched.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	return structs.ToStatusResponse(j), nil
}

func (s *Service) Jobs(ctx context.Context, q *structs.Query) (*structs.ListResponse, error) {
	if q == nil || q.Owner == "" {
		return nil, fmt.Errorf("%w owner is required", errors.ErrInvalidArg)
	}
	q.Sanitize()

	jobs, next, err := s.db.Jobs(ctx, q)
	if err != nil {
		return nil, err
	}

	out := &structs.ListResponse{Jobs: make([]*structs.JobSummary, 0, len(jobs)), NextPageToken: next}
	for _, j := range jobs {
		out.Jobs = append(out.Jobs, structs.ToSummary(j))
	}
	return out, nil
}

func (s *Service) Result(ctx context.Context, id, requester string) (*structs.ResultResponse, error) {
	j, err := s.db.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.Owner != requester {
		return nil, fmt.Errorf("%w job %s", errors.ErrForbidden, id)
	}
	if j.State != structs.SUCCEEDED {
		return nil, fmt.Errorf("%w job %s is %s", errors.ErrNotReady, id, j.State)
	}

	expires := timeNow().Add(s.opts.ResultTTL)
	url, err := s.blobs.SignedURL(ctx, j.OutputRef, s.opts.ResultTTL)
	if stderr.Is(err, errors.ErrNotFound) {
		return nil, fmt.Errorf("%w output of job %s", errors.ErrNotFound, id)
	} else if err != nil {
		s.logger.Error().Err(err).Str("job_id", id).Msg("failed to sign result url")
		return nil, fmt.Errorf("failed to sign result url for job %s", id)
	}

	return &structs.ResultResponse{URL: url, ExpiresAt: expires.UnixMilli()}, nil
}
