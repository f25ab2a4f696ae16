package events

import (
	"context"

	"github.com/voidshard/vidpipe/pkg/structs"
)

// Notifier publishes job state transitions for anyone who'd rather not poll.
//
// Delivery is best effort; a failed Notify never undoes a transition.
type Notifier interface {
	Notify(ctx context.Context, j *structs.Job) error
	Close() error
}

// New returns the Notifier described by opts.
func New(opts *Options) (Notifier, error) {
	opts.SetDefaults()
	switch opts.Driver() {
	case DriverNop:
		return &Nop{}, nil
	case DriverRedis:
		return NewRedis(opts)
	case DriverKafka:
		return NewKafka(opts)
	default:
		return nil, errUnknownDriver(opts.URL)
	}
}

// Nop drops every event.
type Nop struct{}

func (n *Nop) Notify(ctx context.Context, j *structs.Job) error {
	return nil
}

func (n *Nop) Close() error {
	return nil
}
