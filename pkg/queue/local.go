package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/voidshard/vidpipe/pkg/errors"
	"github.com/voidshard/vidpipe/pkg/structs"
)

// Local is an in process Queue; a fixed pool of goroutines pulling from a channel.
//
// Nothing is durable; the scheduler re-derives work from the job store on restart.
type Local struct {
	opts   *Options
	logger zerolog.Logger
	svc    Service

	ctx    context.Context
	cancel context.CancelFunc
	work   chan *Meta

	lock    sync.Mutex
	handler func(ctx context.Context, m *Meta)
	waiting map[string]bool
	running map[string]context.CancelFunc
	killed  map[string]bool
}

func NewLocalQueue(logger zerolog.Logger, svc Service, opts *Options) *Local {
	opts.SetDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Local{
		opts:    opts,
		logger:  logger.With().Str("component", "queue").Logger(),
		svc:     svc,
		ctx:     ctx,
		cancel:  cancel,
		work:    make(chan *Meta, opts.Workers*64),
		waiting: map[string]bool{},
		running: map[string]context.CancelFunc{},
		killed:  map[string]bool{},
	}
}

func (l *Local) Register(handler func(ctx context.Context, m *Meta)) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.handler = handler
	return nil
}

// Run starts the workers & blocks until Close is called.
func (l *Local) Run() error {
	l.lock.Lock()
	handler := l.handler
	l.lock.Unlock()
	if handler == nil {
		return fmt.Errorf("%w no handler registered", errors.ErrInvalidArg)
	}

	var wg sync.WaitGroup
	for i := 0; i < l.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-l.ctx.Done():
					return
				case m := <-l.work:
					l.execute(handler, m)
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

func (l *Local) execute(handler func(ctx context.Context, m *Meta), m *Meta) {
	id := taskID(m.Job)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if l.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(l.ctx, l.opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(l.ctx)
	}
	defer cancel()

	l.lock.Lock()
	delete(l.waiting, id)
	if l.killed[id] {
		delete(l.killed, id)
		l.lock.Unlock()
		m.SetError(errors.Canceled(fmt.Errorf("killed before start")))
		l.report(m)
		return
	}
	l.running[id] = cancel
	l.lock.Unlock()

	handler(ctx, m)

	l.lock.Lock()
	delete(l.running, id)
	l.lock.Unlock()

	l.report(m)
}

func (l *Local) report(m *Meta) {
	err := l.svc.Report(context.Background(), m.Outcome())
	if err != nil {
		l.logger.Warn().Err(err).Str("job_id", m.Job.ID).Int64("attempt", m.Job.Attempt).Msg("failed to report outcome")
	}
}

func (l *Local) Enqueue(j *structs.Job) (string, error) {
	cpy := *j
	m := &Meta{Job: &cpy}
	id := taskID(j)

	l.lock.Lock()
	l.waiting[id] = true
	l.lock.Unlock()

	select {
	case <-l.ctx.Done():
		l.lock.Lock()
		delete(l.waiting, id)
		l.lock.Unlock()
		return "", fmt.Errorf("%w queue", errors.ErrClosed)
	case l.work <- m:
		return id, nil
	}
}

// Kill cancels a running task, or stops a waiting one from starting.
func (l *Local) Kill(queuedTaskID string) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	cancel, ok := l.running[queuedTaskID]
	if ok {
		cancel()
		return nil
	}
	if l.waiting[queuedTaskID] {
		l.killed[queuedTaskID] = true
		return nil
	}
	return fmt.Errorf("%w task %s", errors.ErrNotFound, queuedTaskID)
}

func (l *Local) Close() error {
	l.cancel()
	return nil
}
