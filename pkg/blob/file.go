package blob

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/voidshard/vidpipe/pkg/errors"
)

const (
	paramExpires   = "expires"
	paramSignature = "sig"
)

// timeNow is swapped out in tests
var timeNow = time.Now

// FileStore keeps blobs on the local filesystem. It's intended for single node
// deployments & development where an object storage service isn't available.
//
// FileStore is also an http.Handler that serves the URLs it signs; mount it
// (minus its path prefix) wherever PublicURL points.
type FileStore struct {
	basePath  string
	publicURL string
	secret    []byte
}

// NewFileStore initializes a FileStore rooted at the path in opts.URL
func NewFileStore(opts *Options) (*FileStore, error) {
	opts.SetDefaults()

	basePath := strings.TrimSpace(opts.filePath())
	if basePath == "" {
		return nil, fmt.Errorf("%w blob base path is required", errors.ErrInvalidArg)
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure blob base path: %w", err)
	}

	secret := []byte(opts.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
	}

	return &FileStore{basePath: basePath, publicURL: opts.PublicURL, secret: secret}, nil
}

// Put writes to a temp file & renames it into place, so readers never see a
// partial blob.
func (s *FileStore) Put(ctx context.Context, key string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to ensure blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	_, err = io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fullPath)
}

func (s *FileStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w blob %s", errors.ErrNotFound, key)
	}
	return f, err
}

// SignedURL returns {PublicURL}/{key}?expires=..&sig=..
func (s *FileStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w ttl must be positive", errors.ErrInvalidArg)
	}
	expires := strconv.FormatInt(timeNow().Add(ttl).Unix(), 10)

	q := url.Values{}
	q.Set(paramExpires, expires)
	q.Set(paramSignature, s.sign(clean, expires))

	u := &url.URL{Path: clean}
	return fmt.Sprintf("%s/%s?%s", s.publicURL, u.EscapedPath(), q.Encode()), nil
}

// ServeHTTP serves a blob if the request carries a valid unexpired signature.
// The request path is the blob key.
func (s *FileStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	key, err := sanitizeKey(r.URL.Path)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err := s.verify(key, r.URL.Query().Get(paramExpires), r.URL.Query().Get(paramSignature)); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	f, err := os.Open(fullPath)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.ServeContent(w, r, filepath.Base(fullPath), info.ModTime(), f)
}

func (s *FileStore) sign(key, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(expires))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *FileStore) verify(key, expires, sig string) error {
	at, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return fmt.Errorf("%w expires", errors.ErrInvalidArg)
	}
	if timeNow().Unix() > at {
		return fmt.Errorf("%w url expired", errors.ErrForbidden)
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("%w signature", errors.ErrInvalidArg)
	}
	want, _ := hex.DecodeString(s.sign(key, expires))
	if !hmac.Equal(got, want) {
		return fmt.Errorf("%w bad signature", errors.ErrForbidden)
	}
	return nil
}

func (s *FileStore) path(key string) (string, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(clean)), nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w blob key is required", errors.ErrInvalidArg)
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w blob key %q", errors.ErrInvalidArg, key)
	}
	return cleaned, nil
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
