package core

import (
	"context"
	stderr "errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voidshard/vidpipe/pkg/database"
	"github.com/voidshard/vidpipe/pkg/errors"
	"github.com/voidshard/vidpipe/pkg/events"
	"github.com/voidshard/vidpipe/pkg/queue"
	"github.com/voidshard/vidpipe/pkg/structs"
)

const (
	recoverPageSize = 500

	msgWorkerLost = "worker lost"
)

// execution is one in-flight attempt of a job
type execution struct {
	attempt  int64
	timeouts int64
	taskID   string
	started  time.Time

	// canceling is set once a cancel was requested
	canceling bool
	grace     *time.Timer

	// done is set once the attempt's outcome has been claimed (report, grace
	// expiry or reaper); only the claimant writes the result.
	done bool

	// writes counts failed attempts at storing the outcome
	writes  int64
	rewrite *time.Timer
}

// Scheduler owns every job state transition after submission.
//
// It admits QUEUED jobs up to MaxRunning, hands them to the queue, and applies
// the outcomes workers report: success, retry with backoff, or failure.
// All writes are compare-and-swaps on the job's state.
type Scheduler struct {
	opts   *Options
	logger zerolog.Logger
	db     database.Database
	events events.Notifier
	qu     queue.Queue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	wake   chan struct{}

	lock    sync.Mutex
	waiting *fairQueue
	delayed map[string]*time.Timer
	running map[string]*execution

	// unsure holds the attempt of admissions whose write errored; the write
	// may still have landed.
	unsure map[string]int64
}

func NewScheduler(logger zerolog.Logger, db database.Database, notifier events.Notifier, opts *Options) *Scheduler {
	if opts == nil {
		opts = &Options{}
	}
	opts.SetDefaults()
	if notifier == nil {
		notifier = &events.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		opts:    opts,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		db:      db,
		events:  notifier,
		ctx:     ctx,
		cancel:  cancel,
		wake:    make(chan struct{}, 1),
		waiting: newFairQueue(!opts.GlobalFIFO),
		delayed: map[string]*time.Timer{},
		running: map[string]*execution{},
		unsure:  map[string]int64{},
	}
}

// Start recovers state left by a previous process & begins admitting jobs to qu.
func (s *Scheduler) Start(ctx context.Context, qu queue.Queue) error {
	s.qu = qu
	if err := s.recover(ctx); err != nil {
		return err
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.dispatch()
	}()
	go func() {
		defer s.wg.Done()
		s.reap()
	}()

	s.signal()
	return nil
}

// Close stops admitting & waits for background routines. In-flight executions are
// left RUNNING; the next Start recovers them.
func (s *Scheduler) Close() error {
	s.cancel()

	s.lock.Lock()
	for _, t := range s.delayed {
		t.Stop()
	}
	for _, e := range s.running {
		if e.grace != nil {
			e.grace.Stop()
		}
		if e.rewrite != nil {
			e.rewrite.Stop()
		}
	}
	s.lock.Unlock()

	s.wg.Wait()
	return nil
}

// Enqueue adds a freshly created (QUEUED) job to the admission queue.
func (s *Scheduler) Enqueue(j *structs.Job) error {
	if s.ctx.Err() != nil {
		// it's durably QUEUED; the next Start picks it up
		return fmt.Errorf("%w scheduler", errors.ErrClosed)
	}
	s.lock.Lock()
	s.waiting.Push(j.Owner, j.ID)
	s.lock.Unlock()
	s.signal()
	return nil
}

// Cancel requests a job be canceled. QUEUED jobs are canceled at once; RUNNING jobs
// are signalled to stop and remain RUNNING until the worker acknowledges or
// CancelGrace elapses. The job as it stands after the request is returned.
func (s *Scheduler) Cancel(ctx context.Context, id string) (*structs.Job, error) {
	for {
		j, err := s.db.Job(ctx, id)
		if err != nil {
			return nil, err
		}

		switch j.State {
		case structs.QUEUED:
			s.lock.Lock()
			s.waiting.Remove(id)
			if t, ok := s.delayed[id]; ok {
				t.Stop()
				delete(s.delayed, id)
			}
			s.lock.Unlock()

			f := structs.FieldsOf(j)
			f.Error = ""
			updated, err := s.transition(ctx, j, structs.CANCELED, f)
			if stderr.Is(err, errors.ErrConflict) {
				continue // admitted under us; go again
			}
			return updated, err

		case structs.RUNNING:
			s.lock.Lock()
			e, ok := s.running[id]
			if !ok || e.done {
				s.lock.Unlock()
				if ok {
					return j, nil // outcome being written right now
				}
				// not ours; we can't signal it so cancel outright
				f := structs.FieldsOf(j)
				f.Error = ""
				updated, err := s.transition(ctx, j, structs.CANCELED, f)
				if stderr.Is(err, errors.ErrConflict) {
					continue
				}
				return updated, err
			}
			taskID := e.taskID
			if !e.canceling {
				e.canceling = true
				attempt := e.attempt
				e.grace = time.AfterFunc(s.opts.CancelGrace, func() { s.expireCancel(id, attempt) })
			}
			s.lock.Unlock()

			if taskID != "" {
				if err := s.qu.Kill(taskID); err != nil {
					s.logger.Warn().Err(err).Str("job_id", id).Msg("failed to signal worker")
				}
			}
			return j, nil

		default:
			return nil, fmt.Errorf("%w job %s is %s", errors.ErrInvalidState, id, j.State)
		}
	}
}

// Report implements queue.Service. Reports for anything other than the attempt
// in flight are ignored.
func (s *Scheduler) Report(ctx context.Context, o *structs.Outcome) error {
	if s.ctx.Err() != nil {
		return fmt.Errorf("%w scheduler", errors.ErrClosed)
	}

	s.lock.Lock()
	e, ok := s.running[o.JobID]
	if !ok || e.attempt != o.Attempt || e.done {
		s.lock.Unlock()
		s.logger.Debug().Str("job_id", o.JobID).Int64("attempt", o.Attempt).Msg("ignoring stale report")
		return nil
	}
	e.done = true
	s.lock.Unlock()

	return s.complete(ctx, o, e)
}

// complete writes the result of an attempt. The caller must have claimed e.
//
// If the store can't be written to, e stays claimed & the write is tried again
// after a backoff; the job is RUNNING in the store until it lands.
func (s *Scheduler) complete(ctx context.Context, o *structs.Outcome, e *execution) error {
	err := s.resolve(ctx, o, e)
	if writeFailed(err) && s.rewriteLater(o, e) {
		return err
	}
	s.release(o.JobID, e)
	return err
}

// writeFailed reports whether err is the store failing rather than refusing
func writeFailed(err error) bool {
	if err == nil {
		return false
	}
	for _, refused := range []error{errors.ErrConflict, errors.ErrNotFound, errors.ErrInvalidState, errors.ErrInvalidArg} {
		if stderr.Is(err, refused) {
			return false
		}
	}
	return true
}

// rewriteLater schedules another go at storing o. Returns false if we're shutting down.
func (s *Scheduler) rewriteLater(o *structs.Outcome, e *execution) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	e.writes++
	delay := s.opts.backoff(e.writes)
	s.logger.Warn().Str("job_id", o.JobID).Int64("attempt", o.Attempt).Dur("delay", delay).Msg("retrying outcome write")
	e.rewrite = time.AfterFunc(delay, func() {
		if s.ctx.Err() != nil {
			s.release(o.JobID, e)
			return
		}
		if err := s.complete(s.ctx, o, e); err != nil {
			s.logger.Error().Err(err).Str("job_id", o.JobID).Msg("failed to record outcome")
		}
	})
	return true
}

// resolve moves the job out of RUNNING according to o
func (s *Scheduler) resolve(ctx context.Context, o *structs.Outcome, e *execution) error {
	j, err := s.db.Job(ctx, o.JobID)
	if err != nil {
		return err
	}

	s.lock.Lock()
	rewriting := e.writes > 0
	s.lock.Unlock()
	if rewriting && j.State == structs.QUEUED && j.Attempt == e.attempt {
		// an earlier retry write of ours landed after all
		s.retryLater(j.ID, j.Owner, s.opts.backoff(j.Attempt))
		return nil
	}
	if j.State != structs.RUNNING || j.Attempt != e.attempt {
		return nil // someone else already resolved it
	}

	f := &structs.Fields{Attempt: e.attempt, Timeouts: e.timeouts}
	kind := errors.Kind(o.Failure)

	var next structs.Status
	switch {
	case o.Succeeded():
		next = structs.SUCCEEDED
		f.OutputRef = o.OutputRef
	case e.canceling:
		next = structs.CANCELED
	case kind == errors.KindPermanent:
		next = structs.FAILED
		f.Error = o.Message
	default:
		if kind == errors.KindTimeout {
			f.Timeouts++
		}
		f.Error = o.Message
		next = structs.QUEUED
		if f.Attempt >= s.opts.MaxAttempts || f.Timeouts >= s.opts.MaxTimeouts {
			next = structs.FAILED
		}
	}

	updated, err := s.transition(ctx, j, next, f)
	if err != nil {
		return err
	}
	if next == structs.QUEUED {
		s.retryLater(updated.ID, updated.Owner, s.opts.backoff(updated.Attempt))
	}
	return nil
}

// release frees the admission slot held by e
func (s *Scheduler) release(id string, e *execution) {
	s.lock.Lock()
	if cur, ok := s.running[id]; ok && cur == e {
		delete(s.running, id)
	}
	if e.grace != nil {
		e.grace.Stop()
	}
	if e.rewrite != nil {
		e.rewrite.Stop()
	}
	s.lock.Unlock()
	s.signal()
}

// expireCancel cancels a job whose worker never acknowledged the cancel
func (s *Scheduler) expireCancel(id string, attempt int64) {
	s.lock.Lock()
	e, ok := s.running[id]
	if !ok || e.attempt != attempt || e.done {
		s.lock.Unlock()
		return
	}
	e.done = true
	s.lock.Unlock()

	s.logger.Info().Str("job_id", id).Int64("attempt", attempt).Msg("cancel grace elapsed")
	err := s.complete(s.ctx, &structs.Outcome{JobID: id, Attempt: attempt, Failure: string(errors.KindCanceled)}, e)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", id).Msg("failed to cancel job")
	}
}

// retryLater puts a job back in the admission queue once delay elapses
func (s *Scheduler) retryLater(id, owner string, delay time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	s.delayed[id] = time.AfterFunc(delay, func() {
		s.lock.Lock()
		delete(s.delayed, id)
		s.waiting.Push(owner, id)
		s.lock.Unlock()
		s.signal()
	})
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// dispatch admits jobs whenever we're woken up
func (s *Scheduler) dispatch() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
			s.admitAll()
		}
	}
}

// admitAll admits waiting jobs until we're out of jobs or capacity
func (s *Scheduler) admitAll() {
	for s.ctx.Err() == nil {
		s.lock.Lock()
		if len(s.running) >= s.opts.MaxRunning {
			s.lock.Unlock()
			return
		}
		id, owner, ok := s.waiting.Pop()
		if !ok {
			s.lock.Unlock()
			return
		}
		// reserve the slot before we let go of the lock
		e := &execution{started: time.Now()}
		s.running[id] = e
		s.lock.Unlock()

		if !s.admit(id, owner, e) {
			s.lock.Lock()
			if cur, ok := s.running[id]; ok && cur == e {
				delete(s.running, id)
			}
			s.lock.Unlock()
		}
	}
}

// admit moves one job QUEUED -> RUNNING & hands it to the queue. Returns false if
// the job wasn't admitted (& the reserved slot should be freed).
func (s *Scheduler) admit(id, owner string, e *execution) bool {
	ctx := s.ctx
	j, err := s.db.Job(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", id).Msg("failed to read job for admission")
		if !stderr.Is(err, errors.ErrNotFound) {
			s.retryLater(id, owner, s.opts.RetryBase)
		}
		return false
	}

	s.lock.Lock()
	unsure, wasUnsure := s.unsure[id]
	delete(s.unsure, id)
	s.lock.Unlock()

	var updated *structs.Job
	switch {
	case j.State == structs.RUNNING && wasUnsure && j.Attempt == unsure:
		// our last admission landed even though the write errored
		s.lock.Lock()
		e.attempt = j.Attempt
		e.timeouts = j.Timeouts
		s.lock.Unlock()
		s.logger.Info().Str("job_id", id).Int64("attempt", j.Attempt).Msg("admission write landed")
		s.notify(j)
		updated = j
	case j.State != structs.QUEUED:
		return false // canceled while waiting
	default:
		s.lock.Lock()
		e.attempt = j.Attempt + 1
		e.timeouts = j.Timeouts
		s.lock.Unlock()

		updated, err = s.transition(ctx, j, structs.RUNNING, &structs.Fields{Attempt: j.Attempt + 1, Timeouts: j.Timeouts})
		if stderr.Is(err, errors.ErrConflict) {
			return false // canceled under us
		} else if err != nil {
			s.logger.Error().Err(err).Str("job_id", id).Msg("failed to admit job")
			s.lock.Lock()
			s.unsure[id] = j.Attempt + 1
			s.lock.Unlock()
			s.retryLater(id, owner, s.opts.RetryBase)
			return false
		}
	}

	taskID, err := s.qu.Enqueue(updated)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", id).Msg("failed to enqueue job")
		s.lock.Lock()
		e.done = true
		s.lock.Unlock()
		err = s.complete(ctx, &structs.Outcome{
			JobID:   id,
			Attempt: e.attempt,
			Failure: string(errors.KindTransient),
			Message: "failed to hand job to a worker",
		}, e)
		if err != nil {
			s.logger.Error().Err(err).Str("job_id", id).Msg("failed to record enqueue failure")
		}
		return true // complete released the slot
	}

	s.lock.Lock()
	e.taskID = taskID
	e.started = time.Now()
	kill := e.canceling
	s.lock.Unlock()

	if kill {
		if err := s.qu.Kill(taskID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", id).Msg("failed to signal worker")
		}
	}
	return true
}

// transition is a compare-and-swap from j's current state to next. On success the
// transition is logged & published.
func (s *Scheduler) transition(ctx context.Context, j *structs.Job, next structs.Status, f *structs.Fields) (*structs.Job, error) {
	updated, err := s.db.UpdateJobState(ctx, j.ID, j.State, next, f)
	if err != nil {
		return nil, err
	}

	evt := s.logger.Info()
	if next == structs.FAILED {
		evt = s.logger.Warn().Str("error", f.Error)
	}
	evt.Str("job_id", j.ID).
		Str("owner", j.Owner).
		Str("from", string(j.State)).
		Str("to", string(next)).
		Int64("attempt", updated.Attempt).
		Msg("job transition")

	s.notify(updated)
	return updated, nil
}

// notify publishes a transition; failure to do so never undoes it
func (s *Scheduler) notify(j *structs.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), defNotifyWait)
	defer cancel()
	if err := s.events.Notify(ctx, j); err != nil {
		s.logger.Warn().Err(err).Str("job_id", j.ID).Msg("failed to publish job event")
	}
}

// recover loads QUEUED jobs & resolves RUNNING jobs orphaned by a dead process.
func (s *Scheduler) recover(ctx context.Context) error {
	q := &structs.Query{Limit: recoverPageSize, States: []structs.Status{structs.QUEUED, structs.RUNNING}}
	requeued := 0
	for {
		jobs, token, err := s.db.Jobs(ctx, q)
		if err != nil {
			return err
		}

		for _, j := range jobs {
			if j.State == structs.RUNNING {
				next := structs.QUEUED
				if j.Attempt >= s.opts.MaxAttempts {
					next = structs.FAILED
				}
				f := structs.FieldsOf(j)
				f.Error = msgWorkerLost
				j, err = s.transition(ctx, j, next, f)
				if stderr.Is(err, errors.ErrConflict) {
					continue
				} else if err != nil {
					return err
				}
				if next != structs.QUEUED {
					continue
				}
			}
			s.lock.Lock()
			s.waiting.Push(j.Owner, j.ID)
			s.lock.Unlock()
			requeued++
		}

		if token == "" {
			break
		}
		q.PageToken = token
	}

	s.logger.Info().Int("queued", requeued).Msg("recovered jobs")
	return nil
}

// reap periodically fails executions that have gone quiet for too long
func (s *Scheduler) reap() {
	tick := time.NewTicker(s.opts.ReapInterval)
	defer tick.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-tick.C:
			s.reapLost()
		}
	}
}

func (s *Scheduler) reapLost() {
	limit := s.opts.JobDeadline + s.opts.CancelGrace + s.opts.ReapSlack
	now := time.Now()

	lost := map[string]*execution{}
	s.lock.Lock()
	for id, e := range s.running {
		if e.done || e.taskID == "" || now.Sub(e.started) < limit {
			continue
		}
		e.done = true
		lost[id] = e
	}
	s.lock.Unlock()

	for id, e := range lost {
		s.logger.Warn().Str("job_id", id).Int64("attempt", e.attempt).Msg("reaping lost execution")
		if err := s.qu.Kill(e.taskID); err != nil {
			s.logger.Debug().Err(err).Str("job_id", id).Msg("failed to kill lost execution")
		}
		err := s.complete(s.ctx, &structs.Outcome{
			JobID:   id,
			Attempt: e.attempt,
			Failure: string(errors.KindTimeout),
			Message: msgWorkerLost,
		}, e)
		if err != nil {
			s.logger.Error().Err(err).Str("job_id", id).Msg("failed to reap execution")
		}
	}
}
