package events

import (
	"fmt"
	"strings"

	"github.com/voidshard/vidpipe/pkg/errors"
)

const (
	DriverNop   = "nop"
	DriverRedis = "redis"
	DriverKafka = "kafka"

	defaultTopic = "vidpipe.jobs"
)

// Options configure where job events go.
type Options struct {
	// URL picks the transport by scheme:
	//   redis://localhost:6379/0
	//   kafka://broker1:9092,broker2:9092
	// Empty disables events.
	URL string

	// Topic is the redis channel or kafka topic events are published to.
	Topic string
}

func (o *Options) SetDefaults() {
	if o.Topic == "" {
		o.Topic = defaultTopic
	}
}

// Driver returns the transport implied by the URL scheme.
func (o *Options) Driver() string {
	switch {
	case o.URL == "":
		return DriverNop
	case strings.HasPrefix(o.URL, "redis://"), strings.HasPrefix(o.URL, "rediss://"):
		return DriverRedis
	case strings.HasPrefix(o.URL, "kafka://"):
		return DriverKafka
	default:
		return ""
	}
}

// brokers returns the kafka broker addresses of a kafka:// URL
func (o *Options) brokers() []string {
	out := []string{}
	for _, b := range strings.Split(strings.TrimPrefix(o.URL, "kafka://"), ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}

func errUnknownDriver(u string) error {
	scheme := u
	if i := strings.Index(u, "://"); i >= 0 {
		scheme = u[:i]
	}
	return fmt.Errorf("%w events scheme %q", errors.ErrNotSupported, scheme)
}
