package transcode

import (
	"bytes"
	"context"
	stderr "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidshard/vidpipe/pkg/errors"
)

const (
	// echoes its input, wherever ffmpeg would have read it from
	scriptPassthrough = `#!/bin/sh
in=""
while [ $# -gt 0 ]; do
	if [ "$1" = "-i" ]; then shift; in="$1"; fi
	shift
done
if [ "$in" = "pipe:0" ]; then cat; else cat "$in"; fi
`
	scriptCorrupt   = "#!/bin/sh\necho 'pipe:0: Invalid data found when processing input' >&2\nexit 1\n"
	scriptFlaky     = "#!/bin/sh\necho 'Connection reset by peer' >&2\nexit 1\n"
	scriptSilentErr = "#!/bin/sh\nexit 3\n"
	scriptSlow      = "#!/bin/sh\nexec sleep 5\n"
)

// fakeFFmpeg writes a script standing in for the ffmpeg binary
func fakeFFmpeg(t *testing.T, script string, deadline time.Duration) *FFmpeg {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	require.Nil(t, os.WriteFile(bin, []byte(script), 0o755))
	return NewFFmpeg(zerolog.Nop(), &Options{Binary: bin, Deadline: deadline, ScratchDir: dir})
}

func TestTranscodePipe(t *testing.T) {
	f := fakeFFmpeg(t, scriptPassthrough, time.Minute)
	out := &bytes.Buffer{}

	err := f.Transcode(context.Background(), strings.NewReader("media"), out, "mkv", "wav")

	assert.Nil(t, err)
	assert.Equal(t, "media", out.String())
}

func TestTranscodeSpoolsSeekableInput(t *testing.T) {
	f := fakeFFmpeg(t, scriptPassthrough, time.Minute)
	out := &bytes.Buffer{}

	err := f.Transcode(context.Background(), strings.NewReader("movie"), out, "mp4", "wav")

	assert.Nil(t, err)
	assert.Equal(t, "movie", out.String())

	// scratch file is cleaned up
	left, _ := filepath.Glob(filepath.Join(f.opts.ScratchDir, "vidpipe-in-*"))
	assert.Len(t, left, 0)
}

func TestTranscodeClassification(t *testing.T) {
	cases := []struct {
		Name   string
		Script string
		Expect errors.Kind
	}{
		{Name: "CorruptInput", Script: scriptCorrupt, Expect: errors.KindPermanent},
		{Name: "Flaky", Script: scriptFlaky, Expect: errors.KindTransient},
		{Name: "SilentExit", Script: scriptSilentErr, Expect: errors.KindTransient},
		{Name: "Deadline", Script: scriptSlow, Expect: errors.KindTimeout},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			f := fakeFFmpeg(t, c.Script, 200*time.Millisecond)

			err := f.Transcode(context.Background(), strings.NewReader("x"), &bytes.Buffer{}, "mkv", "wav")

			assert.Equal(t, c.Expect, errors.KindOf(err))
		})
	}
}

func TestTranscodeCanceled(t *testing.T) {
	f := fakeFFmpeg(t, scriptSlow, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	err := f.Transcode(ctx, strings.NewReader("x"), &bytes.Buffer{}, "mkv", "wav")

	assert.Equal(t, errors.KindCanceled, errors.KindOf(err))
}

func TestTranscodeUnsupportedFormat(t *testing.T) {
	f := fakeFFmpeg(t, scriptPassthrough, time.Minute)

	err := f.Transcode(context.Background(), strings.NewReader("x"), &bytes.Buffer{}, "mkv", "docx")

	assert.Equal(t, errors.KindPermanent, errors.KindOf(err))
	assert.True(t, stderr.Is(err, errors.ErrInvalidFormat))
}

func TestTranscodeMissingBinary(t *testing.T) {
	f := NewFFmpeg(zerolog.Nop(), &Options{Binary: "vidpipe-no-such-ffmpeg"})

	err := f.Transcode(context.Background(), strings.NewReader("x"), &bytes.Buffer{}, "mkv", "wav")

	assert.Equal(t, errors.KindPermanent, errors.KindOf(err))
}

func TestBuildArgs(t *testing.T) {
	cases := []struct {
		Name   string
		In     string
		Out    string
		Input  string
		Expect []string
	}{
		{
			Name:   "PipeToAudio",
			In:     "mkv",
			Out:    "wav",
			Input:  "pipe:0",
			Expect: []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y", "-f", "matroska", "-i", "pipe:0", "-vn", "-f", "wav", "pipe:1"},
		},
		{
			Name:   "FileToMp4",
			In:     "mp4",
			Out:    "mp4",
			Input:  "/tmp/in",
			Expect: []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y", "-i", "/tmp/in", "-movflags", "frag_keyframe+empty_moov", "-f", "mp4", "pipe:1"},
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			src, _ := lookup(c.In)
			dst, _ := lookup(c.Out)

			assert.Equal(t, c.Expect, buildArgs(src, dst, c.Input))
		})
	}
}

func TestFormats(t *testing.T) {
	all := Formats()

	assert.Contains(t, all, "mp4")
	assert.Contains(t, all, "wav")
	assert.True(t, IsSupported("MP4"))
	assert.False(t, IsSupported("docx"))
}

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(4)
	b.Write([]byte("abc"))
	b.Write([]byte("defg"))

	assert.Equal(t, "defg", b.String())
}
