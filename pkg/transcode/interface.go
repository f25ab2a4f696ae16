package transcode

import (
	"context"
	"io"
)

// Transcoder converts a media stream from one format to another.
//
// Failures are returned as classified errors (see errors.KindOf): a deadline hit
// is a timeout, bad input or an unsupported codec is permanent, anything else is
// transient.
type Transcoder interface {
	Transcode(ctx context.Context, in io.Reader, out io.Writer, inFormat, outFormat string) error
}
