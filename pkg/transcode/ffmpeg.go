package transcode

import (
	"context"
	stderr "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voidshard/vidpipe/pkg/errors"
)

// waitDelay bounds how long we wait for ffmpeg's pipes to drain once it's killed
const waitDelay = 5 * time.Second

// permanentPatterns in ffmpeg's stderr mean retrying won't help.
var permanentPatterns = []string{
	"invalid data found",
	"moov atom not found",
	"unknown encoder",
	"unknown decoder",
	"unknown format",
	"encoder not found",
	"decoder not found",
	"not supported",
	"could not find codec parameters",
	"does not contain any stream",
	"invalid argument",
	"no such file or directory",
}

// FFmpeg runs an ffmpeg subprocess per transcode, streaming stdin -> stdout.
type FFmpeg struct {
	opts   *Options
	logger zerolog.Logger
}

// NewFFmpeg returns a Transcoder that shells out to ffmpeg.
func NewFFmpeg(logger zerolog.Logger, opts *Options) *FFmpeg {
	opts.SetDefaults()
	return &FFmpeg{opts: opts, logger: logger.With().Str("component", "transcoder").Logger()}
}

// Transcode converts in (of inFormat) to outFormat, writing the result to out.
func (f *FFmpeg) Transcode(ctx context.Context, in io.Reader, out io.Writer, inFormat, outFormat string) error {
	src, ok := lookup(inFormat)
	if !ok {
		return errors.Permanent(fmt.Errorf("%w input %q", errors.ErrInvalidFormat, inFormat))
	}
	dst, ok := lookup(outFormat)
	if !ok {
		return errors.Permanent(fmt.Errorf("%w output %q", errors.ErrInvalidFormat, outFormat))
	}

	tctx, cancel := context.WithTimeout(ctx, f.opts.Deadline)
	defer cancel()

	input := "pipe:0"
	if src.seek {
		// the container index may be at the end; ffmpeg needs to seek
		path, err := f.spool(tctx, in)
		if err != nil {
			return f.classify(ctx, tctx, err, "")
		}
		defer os.Remove(path)
		input = path
		in = nil
	}

	tail := newTailBuffer(f.opts.StderrTail)
	cmd := exec.CommandContext(tctx, f.opts.Binary, buildArgs(src, dst, input)...)
	cmd.Stdin = in
	cmd.Stdout = out
	cmd.Stderr = tail
	cmd.WaitDelay = waitDelay

	f.logger.Debug().Str("cmd", cmd.String()).Msg("running transcoder")
	err := cmd.Run()
	return f.classify(ctx, tctx, err, tail.String())
}

// buildArgs returns ffmpeg args reading from input & writing to stdout
func buildArgs(src, dst *format, input string) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}
	if input == "pipe:0" {
		args = append(args, "-f", src.muxer)
	}
	args = append(args, "-i", input)
	if dst.audio {
		args = append(args, "-vn")
	}
	args = append(args, dst.args...)
	return append(args, "-f", dst.muxer, "pipe:1")
}

// spool copies in to a scratch file so ffmpeg can seek within it
func (f *FFmpeg) spool(ctx context.Context, in io.Reader) (string, error) {
	tmp, err := os.CreateTemp(f.opts.ScratchDir, "vidpipe-in-*")
	if err != nil {
		return "", err
	}
	_, err = io.Copy(tmp, &ctxReader{ctx: ctx, r: in})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// classify tags err with a Kind. ctx is the caller's context, tctx our deadline.
func (f *FFmpeg) classify(ctx, tctx context.Context, err error, stderrText string) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return errors.Canceled(fmt.Errorf("transcode aborted: %w", ctx.Err()))
	}
	if stderr.Is(tctx.Err(), context.DeadlineExceeded) {
		return errors.Timeout(fmt.Errorf("transcode exceeded %s deadline", f.opts.Deadline))
	}

	var ee *errors.ExecError
	if stderr.As(err, &ee) {
		return err
	}
	if stderr.Is(err, exec.ErrNotFound) {
		return errors.Permanent(fmt.Errorf("transcoder binary: %w", err))
	}

	msg := strings.TrimSpace(stderrText)
	lower := strings.ToLower(msg)
	for _, p := range permanentPatterns {
		if strings.Contains(lower, p) {
			return errors.Permanent(fmt.Errorf("transcode failed: %s", lastLine(msg)))
		}
	}

	var exitErr *exec.ExitError
	if stderr.As(err, &exitErr) && msg != "" {
		return errors.Transient(fmt.Errorf("transcode failed (exit %d): %s", exitErr.ExitCode(), lastLine(msg)))
	}
	return errors.Transient(fmt.Errorf("transcode failed: %w", err))
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// tailBuffer keeps the last n bytes written to it
type tailBuffer struct {
	n   int
	buf []byte
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.n {
		t.buf = t.buf[len(t.buf)-t.n:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

// ctxReader stops a copy once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
