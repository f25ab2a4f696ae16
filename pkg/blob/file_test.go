package blob

import (
	"context"
	stderr "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidshard/vidpipe/pkg/errors"
)

func newTestFileStore(t *testing.T) *FileStore {
	fs, err := NewFileStore(&Options{
		URL:       "file://" + t.TempDir(),
		Secret:    "shh",
		PublicURL: "http://example.com/blobs/",
	})
	require.Nil(t, err)
	return fs
}

func TestFileStorePutGet(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()

	err := fs.Put(ctx, "in/a.mp4", strings.NewReader("hello"))
	assert.Nil(t, err)

	r, err := fs.Get(ctx, "in/a.mp4")
	require.Nil(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	assert.Nil(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestFileStorePutOverwrites(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()

	assert.Nil(t, fs.Put(ctx, "a", strings.NewReader("one")))
	assert.Nil(t, fs.Put(ctx, "a", strings.NewReader("two")))

	r, err := fs.Get(ctx, "a")
	require.Nil(t, err)
	defer r.Close()

	data, _ := io.ReadAll(r)
	assert.Equal(t, "two", string(data))
}

func TestFileStoreGetMissing(t *testing.T) {
	fs := newTestFileStore(t)

	_, err := fs.Get(context.Background(), "nope")

	assert.True(t, stderr.Is(err, errors.ErrNotFound))
}

func TestFileStorePutCanceled(t *testing.T) {
	fs := newTestFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fs.Put(ctx, "a", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = fs.Get(context.Background(), "a")
	assert.True(t, stderr.Is(err, errors.ErrNotFound))
}

func TestSanitizeKey(t *testing.T) {
	cases := []struct {
		Name   string
		Key    string
		Expect string
		Err    bool
	}{
		{Name: "Plain", Key: "a.mp4", Expect: "a.mp4"},
		{Name: "Nested", Key: "in/x/a.mp4", Expect: "in/x/a.mp4"},
		{Name: "LeadingSlash", Key: "/a.mp4", Expect: "a.mp4"},
		{Name: "Backslash", Key: "in\\a.mp4", Expect: "in/a.mp4"},
		{Name: "Dots", Key: "in/../a.mp4", Expect: "a.mp4"},
		{Name: "Escape", Key: "../etc/passwd", Err: true},
		{Name: "Empty", Key: " ", Err: true},
		{Name: "Root", Key: "/", Err: true},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			result, err := sanitizeKey(c.Key)

			if c.Err {
				assert.True(t, stderr.Is(err, errors.ErrInvalidArg))
			} else {
				assert.Nil(t, err)
				assert.Equal(t, c.Expect, result)
			}
		})
	}
}

func TestFileStoreSignedURL(t *testing.T) {
	fs := newTestFileStore(t)
	orig := timeNow
	timeNow = func() time.Time { return time.Unix(1000, 0) }
	defer func() { timeNow = orig }()

	raw, err := fs.SignedURL(context.Background(), "out/job.wav", time.Minute)
	require.Nil(t, err)

	u, err := url.Parse(raw)
	require.Nil(t, err)
	assert.Equal(t, "example.com", u.Host)
	assert.Equal(t, "/blobs/out/job.wav", u.Path)
	assert.Equal(t, "1060", u.Query().Get(paramExpires))
	assert.Equal(t, fs.sign("out/job.wav", "1060"), u.Query().Get(paramSignature))

	_, err = fs.SignedURL(context.Background(), "out/job.wav", 0)
	assert.True(t, stderr.Is(err, errors.ErrInvalidArg))
}

func TestFileStoreServeHTTP(t *testing.T) {
	fs := newTestFileStore(t)
	assert.Nil(t, fs.Put(context.Background(), "out/job.wav", strings.NewReader("audio")))

	srv := httptest.NewServer(http.StripPrefix("/blobs/", fs))
	defer srv.Close()

	signed, err := fs.SignedURL(context.Background(), "out/job.wav", time.Minute)
	require.Nil(t, err)
	u, _ := url.Parse(signed)
	query := u.Query()

	cases := []struct {
		Name   string
		Path   string
		Query  url.Values
		Expect int
		Body   string
	}{
		{Name: "Valid", Path: "/blobs/out/job.wav", Query: query, Expect: http.StatusOK, Body: "audio"},
		{Name: "WrongKey", Path: "/blobs/out/other.wav", Query: query, Expect: http.StatusForbidden},
		{Name: "NoSignature", Path: "/blobs/out/job.wav", Query: url.Values{}, Expect: http.StatusForbidden},
		{
			Name: "TamperedExpiry",
			Path: "/blobs/out/job.wav",
			Query: url.Values{
				paramExpires:   []string{"99999999999"},
				paramSignature: []string{query.Get(paramSignature)},
			},
			Expect: http.StatusForbidden,
		},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + c.Path + "?" + c.Query.Encode())
			require.Nil(t, err)
			defer resp.Body.Close()

			assert.Equal(t, c.Expect, resp.StatusCode)
			if c.Body != "" {
				data, _ := io.ReadAll(resp.Body)
				assert.Equal(t, c.Body, string(data))
			}
		})
	}
}

func TestFileStoreServeHTTPExpired(t *testing.T) {
	fs := newTestFileStore(t)
	assert.Nil(t, fs.Put(context.Background(), "a", strings.NewReader("x")))

	signed, err := fs.SignedURL(context.Background(), "a", time.Second)
	require.Nil(t, err)
	u, _ := url.Parse(signed)

	orig := timeNow
	timeNow = func() time.Time { return time.Now().Add(time.Hour) }
	defer func() { timeNow = orig }()

	req := httptest.NewRequest(http.MethodGet, "/a?"+u.RawQuery, nil)
	rec := httptest.NewRecorder()
	fs.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
