package transcode

import (
	"time"
)

const (
	defaultBinary   = "ffmpeg"
	defaultDeadline = 30 * time.Minute
	defaultTailSize = 4096
)

// Options configure the ffmpeg transcoder.
type Options struct {
	// Binary is the ffmpeg executable; looked up in $PATH if not absolute.
	Binary string

	// Deadline is the hard limit on a single transcode.
	Deadline time.Duration

	// ScratchDir holds inputs that must be seekable (mp4, mov). Defaults to
	// the OS temp dir.
	ScratchDir string

	// StderrTail is how many trailing bytes of ffmpeg's stderr we keep to
	// classify failures.
	StderrTail int
}

func (o *Options) SetDefaults() {
	if o.Binary == "" {
		o.Binary = defaultBinary
	}
	if o.Deadline <= 0 {
		o.Deadline = defaultDeadline
	}
	if o.StderrTail <= 0 {
		o.StderrTail = defaultTailSize
	}
}
