package api

import (
	"time"

	"github.com/voidshard/vidpipe/pkg/transcode"
)

const (
	defResultTTL = 15 * time.Minute
)

// Options passed to the vidpipe API on creation
type Options struct {
	// Formats are the input / output formats we accept. Defaults to everything the
	// transcoder supports.
	Formats []string

	// SubmitRate is the number of submissions per second allowed per owner.
	// Zero disables rate limiting.
	SubmitRate float64

	// SubmitBurst is the number of submissions an owner may make at once before
	// SubmitRate applies. Defaults to 1 if SubmitRate is set.
	SubmitBurst int

	// ResultTTL is how long result links remain valid.
	ResultTTL time.Duration
}

func (o *Options) SetDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = transcode.Formats()
	}
	if o.SubmitRate > 0 && o.SubmitBurst <= 0 {
		o.SubmitBurst = 1
	}
	if o.ResultTTL <= 0 {
		o.ResultTTL = defResultTTL
	}
}
