package blob

import (
	"context"
	"io"
	"time"
)

// Store is a narrow client for wherever assets live. Keys are opaque strings
// chosen by the caller.
type Store interface {
	// Put streams r to key, replacing anything already there.
	Put(ctx context.Context, key string, r io.Reader) error

	// Get opens key for reading, or returns errors.ErrNotFound.
	// The caller must close the returned reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// SignedURL returns a URL granting read access to key until ttl elapses.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// New returns the Store described by opts.
func New(ctx context.Context, opts *Options) (Store, error) {
	opts.SetDefaults()
	switch opts.Driver() {
	case DriverFile:
		return NewFileStore(opts)
	case DriverS3:
		return NewS3(ctx, opts)
	default:
		return nil, errUnknownDriver(opts.URL)
	}
}
