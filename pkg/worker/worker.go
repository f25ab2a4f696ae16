package worker

import (
	"context"
	stderr "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/voidshard/vidpipe/pkg/blob"
	"github.com/voidshard/vidpipe/pkg/errors"
	"github.com/voidshard/vidpipe/pkg/queue"
	"github.com/voidshard/vidpipe/pkg/structs"
	"github.com/voidshard/vidpipe/pkg/transcode"
)

// Worker executes jobs: download the input, transcode it, upload the result.
//
// Workers never touch the job store; what happened is reported through the
// queue.Meta they're handed.
type Worker struct {
	opts   *Options
	logger zerolog.Logger
	blobs  blob.Store
	tc     transcode.Transcoder
}

func NewWorker(logger zerolog.Logger, blobs blob.Store, tc transcode.Transcoder, opts *Options) *Worker {
	if opts == nil {
		opts = &Options{}
	}
	opts.SetDefaults()
	return &Worker{
		opts:   opts,
		logger: logger.With().Str("component", "worker").Logger(),
		blobs:  blobs,
		tc:     tc,
	}
}

// Handle is registered with a queue.Queue
func (w *Worker) Handle(ctx context.Context, m *queue.Meta) {
	start := time.Now()
	log := w.logger.With().Str("job_id", m.Job.ID).Int64("attempt", m.Job.Attempt).Logger()

	ref, err := w.Execute(ctx, m.Job)
	if err != nil {
		log.Info().Err(err).Str("kind", string(errors.KindOf(err))).Dur("took", time.Since(start)).Msg("execution failed")
		m.SetError(err)
		return
	}

	log.Info().Str("output_ref", ref).Dur("took", time.Since(start)).Msg("execution succeeded")
	m.SetOutput(ref)
}

// Execute streams the job's input through the transcoder into the blob store and
// returns the output key. Errors are classified (see errors.KindOf).
func (w *Worker) Execute(ctx context.Context, j *structs.Job) (string, error) {
	key := OutputKey(w.opts.OutputPrefix, j)

	in, err := w.blobs.Get(ctx, j.InputRef)
	if err != nil {
		err = classify(fmt.Errorf("failed to read input %s: %w", j.InputRef, err))
		return "", errors.Describe(err, readPhrase(err))
	}
	defer in.Close()

	pr, pw := io.Pipe()
	var tErr, pErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tErr = w.tc.Transcode(gctx, newBoundedReader(in, w.opts.MaxInputBytes), pw, j.InputFormat, j.OutputFormat)
		pw.CloseWithError(tErr) // nil is a clean EOF
		return tErr
	})
	g.Go(func() error {
		pErr = w.blobs.Put(gctx, key, pr)
		pr.CloseWithError(pErr)
		return pErr
	})
	g.Wait()

	// the transcoder's view of a failure is the more useful one, unless it was
	// only aborted because the upload failed first
	uploadFirst := pErr != nil && ctx.Err() == nil && errors.KindOf(tErr) == errors.KindCanceled
	if tErr != nil && !uploadFirst {
		err := classify(tErr)
		return "", errors.Describe(err, transcodePhrase(err))
	}
	if pErr != nil {
		return "", errors.Describe(classify(fmt.Errorf("failed to write output %s: %w", key, pErr)), "failed to write output")
	}
	return key, nil
}

// OutputKey returns the blob key a job's output is written to: {prefix}{jobId}.{outputFormat}
func OutputKey(prefix string, j *structs.Job) string {
	return fmt.Sprintf("%s%s.%s", prefix, j.ID, strings.ToLower(j.OutputFormat))
}

// classify tags an error with a Kind if it doesn't have one yet.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ee *errors.ExecError
	if stderr.As(err, &ee) {
		return err
	}
	for _, perm := range []error{
		errors.ErrNotFound,
		errors.ErrInvalidArg,
		errors.ErrInvalidFormat,
		errors.ErrMaxExceeded,
		errors.ErrNotSupported,
		errors.ErrForbidden,
	} {
		if stderr.Is(err, perm) {
			return errors.Permanent(err)
		}
	}
	if errors.IsTransientNetwork(err) {
		return errors.Transient(err)
	}
	return err
}

// readPhrase is what clients are told about a failed input read
func readPhrase(err error) string {
	switch {
	case stderr.Is(err, errors.ErrNotFound):
		return "input not found"
	case stderr.Is(err, errors.ErrForbidden):
		return "input not accessible"
	}
	return "failed to read input"
}

// transcodePhrase is what clients are told about a failed transcode. Transcoder
// output (stderr and the like) is never passed on.
func transcodePhrase(err error) string {
	switch {
	case stderr.Is(err, errors.ErrMaxExceeded):
		return "input too large"
	case stderr.Is(err, errors.ErrInvalidFormat), stderr.Is(err, errors.ErrNotSupported):
		return "input format not supported"
	}
	switch errors.KindOf(err) {
	case errors.KindTimeout:
		return "transcode deadline exceeded"
	case errors.KindCanceled:
		return "execution canceled"
	case errors.KindPermanent:
		return "input could not be transcoded"
	}
	return "transcode failed"
}

// boundedReader fails once more than n bytes have been read
type boundedReader struct {
	r    io.Reader
	n    int64
	read int64
}

func newBoundedReader(r io.Reader, n int64) *boundedReader {
	return &boundedReader{r: r, n: n}
}

func (b *boundedReader) Read(p []byte) (int, error) {
	if b.read > b.n {
		return 0, b.exceeded()
	}
	// allow reading one byte past the limit so we can tell "exactly n" from "more than n"
	if max := b.n - b.read + 1; int64(len(p)) > max {
		p = p[:max]
	}
	n, err := b.r.Read(p)
	b.read += int64(n)
	if b.read > b.n {
		return n, b.exceeded()
	}
	return n, err
}

func (b *boundedReader) exceeded() error {
	return errors.Permanent(fmt.Errorf("%w input larger than %d bytes", errors.ErrMaxExceeded, b.n))
}
