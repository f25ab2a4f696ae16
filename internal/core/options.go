package core

import (
	"time"
)

const (
	defMaxRunning   = 4
	defMaxAttempts  = 3
	defMaxTimeouts  = 2
	defRetryBase    = 2 * time.Second
	defRetryMax     = 2 * time.Minute
	defJobDeadline  = 30 * time.Minute
	defCancelGrace  = 15 * time.Second
	defReapSlack    = time.Minute
	defReapInterval = 30 * time.Second
	defNotifyWait   = 5 * time.Second
)

// Options for the Scheduler.
type Options struct {
	// MaxRunning is the most jobs we allow to be RUNNING at once.
	MaxRunning int

	// MaxAttempts is the most times a job is executed before we give up on it.
	MaxAttempts int64

	// MaxTimeouts is how many deadline failures we tolerate before a job is failed
	// (even if it has attempts left).
	MaxTimeouts int64

	// RetryBase & RetryMax bound the backoff between attempts: min(base * 2^attempt, max)
	RetryBase time.Duration
	RetryMax  time.Duration

	// JobDeadline is how long an execution may take (should match the transcoder's deadline).
	JobDeadline time.Duration

	// CancelGrace is how long we wait for a worker to acknowledge a cancel.
	CancelGrace time.Duration

	// An execution that hasn't reported after JobDeadline + CancelGrace + ReapSlack is
	// assumed lost. ReapInterval is how often we look.
	ReapSlack    time.Duration
	ReapInterval time.Duration

	// GlobalFIFO admits strictly in submission order. By default owners are served
	// round robin (FIFO within each owner) so one owner can't starve the rest.
	GlobalFIFO bool
}

func (o *Options) SetDefaults() {
	if o.MaxRunning <= 0 {
		o.MaxRunning = defMaxRunning
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defMaxAttempts
	}
	if o.MaxTimeouts <= 0 {
		o.MaxTimeouts = defMaxTimeouts
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defRetryBase
	}
	if o.RetryMax <= 0 {
		o.RetryMax = defRetryMax
	}
	if o.RetryMax < o.RetryBase {
		o.RetryMax = o.RetryBase
	}
	if o.JobDeadline <= 0 {
		o.JobDeadline = defJobDeadline
	}
	if o.CancelGrace <= 0 {
		o.CancelGrace = defCancelGrace
	}
	if o.ReapSlack <= 0 {
		o.ReapSlack = defReapSlack
	}
	if o.ReapInterval <= 0 {
		o.ReapInterval = defReapInterval
	}
}

// backoff returns how long to wait before the next attempt, given the number of
// attempts made so far.
func (o *Options) backoff(attempt int64) time.Duration {
	d := o.RetryBase
	for i := int64(0); i < attempt; i++ {
		d *= 2
		if d >= o.RetryMax || d <= 0 {
			return o.RetryMax
		}
	}
	return d
}
