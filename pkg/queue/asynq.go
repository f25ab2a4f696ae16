package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/voidshard/vidpipe/pkg/errors"
	"github.com/voidshard/vidpipe/pkg/structs"
)

const (
	asyncWorkQueue = "vidpipe:work"
	asyncTaskType  = "transcode"
)

// Asynq hands executions to workers through redis. Retries are the scheduler's
// business, so asynq is told never to retry a task itself.
type Asynq struct {
	opts   *Options
	logger zerolog.Logger

	// the asynq client & inspector
	ins *asynq.Inspector
	cli *asynq.Client

	// the funcs we're allowed to call on the scheduler
	svc Service

	// if register is called we're intended to start a server
	lock sync.Mutex
	mux  *asynq.ServeMux
	srv  *asynq.Server
	conn asynq.RedisConnOpt

	done chan struct{}
	once sync.Once
}

func NewAsynqQueue(logger zerolog.Logger, svc Service, opts *Options) (*Asynq, error) {
	opts.SetDefaults()
	conn, err := redisConnOpt(opts)
	if err != nil {
		return nil, err
	}
	return &Asynq{
		opts:   opts,
		logger: logger.With().Str("component", "queue").Logger(),
		ins:    asynq.NewInspector(conn),
		cli:    asynq.NewClient(conn),
		svc:    svc,
		conn:   conn,
		done:   make(chan struct{}),
	}, nil
}

// redisConnOpt parses the queue URL & applies any TLS config
func redisConnOpt(opts *Options) (asynq.RedisConnOpt, error) {
	conn, err := asynq.ParseRedisURI(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("%w queue url: %v", errors.ErrInvalidArg, err)
	}
	if opts.TLSConfig == nil {
		return conn, nil
	}
	switch c := conn.(type) {
	case asynq.RedisClientOpt:
		c.TLSConfig = opts.TLSConfig
		return c, nil
	case asynq.RedisFailoverClientOpt:
		c.TLSConfig = opts.TLSConfig
		return c, nil
	case asynq.RedisClusterClientOpt:
		c.TLSConfig = opts.TLSConfig
		return c, nil
	}
	return conn, nil
}

func (a *Asynq) Close() error {
	a.once.Do(func() { close(a.done) })

	a.lock.Lock()
	srv := a.srv
	a.lock.Unlock()
	if srv != nil {
		srv.Stop()
		srv.Shutdown()
	}
	a.ins.Close()
	return a.cli.Close()
}

func (a *Asynq) Register(handler func(ctx context.Context, m *Meta)) error {
	a.buildServer()
	a.mux.HandleFunc(asyncTaskType, func(ctx context.Context, t *asynq.Task) error {
		m, err := decodeTask(t)
		if err != nil {
			// nothing we can report against; let asynq archive it
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		handler(ctx, m)

		err = a.svc.Report(context.Background(), m.Outcome())
		if err != nil {
			a.logger.Warn().Err(err).Str("job_id", m.Job.ID).Int64("attempt", m.Job.Attempt).Msg("failed to report outcome")
		}
		return nil
	})
	return nil
}

// Run starts the asynq server (if a handler is registered) & blocks until Close.
func (a *Asynq) Run() error {
	a.lock.Lock()
	srv, mux := a.srv, a.mux
	a.lock.Unlock()

	if srv != nil {
		if err := srv.Start(mux); err != nil {
			return err
		}
	}
	<-a.done
	return nil
}

// Kill removes a task that hasn't started, or asks the worker running it to stop.
func (a *Asynq) Kill(queuedTaskID string) error {
	err := a.ins.DeleteTask(asyncWorkQueue, queuedTaskID)
	if err == nil {
		return nil
	}
	// Best effort cancel; asynq can't guarantee this will kill it
	return a.ins.CancelProcessing(queuedTaskID)
}

func (a *Asynq) Enqueue(j *structs.Job) (string, error) {
	select {
	case <-a.done:
		return "", fmt.Errorf("%w queue", errors.ErrClosed)
	default:
	}

	qtask, err := encodeTask(j)
	if err != nil {
		return "", err
	}
	opts := []asynq.Option{
		asynq.Queue(asyncWorkQueue),
		asynq.TaskID(taskID(j)),
		asynq.MaxRetry(0),
	}
	if a.opts.Timeout > 0 {
		opts = append(opts, asynq.Timeout(a.opts.Timeout))
	}
	info, err := a.cli.Enqueue(qtask, opts...)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (a *Asynq) buildServer() {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.mux != nil {
		// someone locked and set this first
		return
	}
	a.srv = asynq.NewServer(
		a.conn,
		asynq.Config{
			Concurrency: a.opts.Workers,
			Queues:      map[string]int{asyncWorkQueue: 1},
			Logger:      &asynqLogger{logger: a.logger},
		},
	)
	a.mux = asynq.NewServeMux()
}

func encodeTask(j *structs.Job) (*asynq.Task, error) {
	payload, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(asyncTaskType, payload), nil
}

func decodeTask(t *asynq.Task) (*Meta, error) {
	j := &structs.Job{}
	err := json.Unmarshal(t.Payload(), j)
	if err != nil {
		return nil, err
	}
	if j.ID == "" {
		return nil, fmt.Errorf("%w task payload has no job id", errors.ErrInvalidArg)
	}
	return &Meta{Job: j}, nil
}

// asynqLogger routes asynq's own logging into zerolog
type asynqLogger struct {
	logger zerolog.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Fatal().Msg(fmt.Sprint(args...))
}
