package worker

const (
	defMaxInputBytes = 4 << 30 // 4GiB
)

// Options for a Worker.
type Options struct {
	// OutputPrefix is prepended to output keys (eg. "processed/videos/").
	OutputPrefix string

	// MaxInputBytes is the largest input we'll read; anything larger fails the job.
	MaxInputBytes int64
}

func (o *Options) SetDefaults() {
	if o.MaxInputBytes <= 0 {
		o.MaxInputBytes = defMaxInputBytes
	}
}
