package events

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/voidshard/vidpipe/pkg/structs"
)

// publisher is the part of the redis client we use
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Redis publishes events on a redis pub/sub channel.
type Redis struct {
	client  publisher
	channel string
}

// NewRedis connects to the redis at opts.URL
func NewRedis(opts *Options) (*Redis, error) {
	ropts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, err
	}
	return &Redis{client: redis.NewClient(ropts), channel: opts.Topic}, nil
}

func (r *Redis) Notify(ctx context.Context, j *structs.Job) error {
	data, err := encode(j)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
