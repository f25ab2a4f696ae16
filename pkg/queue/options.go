package queue

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voidshard/vidpipe/pkg/errors"
)

const (
	DriverLocal = "local"
	DriverAsynq = "asynq"

	defaultWorkers = 4
)

// Options are options for the queue.
type Options struct {
	// URL encodes how we'll connect to the queue.
	//   local://            in process
	//   redis://host:6379   asynq over redis (also rediss://, redis-sentinel://)
	URL string

	// TLSConfig needed to connect to the queue (optional).
	TLSConfig *tls.Config

	// Workers is how many jobs this process executes at once.
	Workers int

	// Timeout is a backstop the queue itself enforces per task (optional).
	Timeout time.Duration
}

func (o *Options) SetDefaults() {
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
}

// Driver returns the queue implied by the URL scheme.
func (o *Options) Driver() string {
	switch {
	case o.URL == "", strings.HasPrefix(o.URL, "local://"):
		return DriverLocal
	case strings.HasPrefix(o.URL, "redis"):
		return DriverAsynq
	default:
		return ""
	}
}

// New returns the queue described by opts, reporting outcomes to svc.
func New(logger zerolog.Logger, svc Service, opts *Options) (Queue, error) {
	opts.SetDefaults()
	switch opts.Driver() {
	case DriverLocal:
		return NewLocalQueue(logger, svc, opts), nil
	case DriverAsynq:
		return NewAsynqQueue(logger, svc, opts)
	default:
		return nil, fmt.Errorf("%w queue url %q", errors.ErrNotSupported, opts.URL)
	}
}
