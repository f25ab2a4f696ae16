package blob

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/voidshard/vidpipe/pkg/errors"
)

const (
	DriverFile = "file"
	DriverS3   = "s3"

	defaultPublicURL = "http://localhost:8080/blobs"
)

// Options configure a blob store.
type Options struct {
	// URL picks the store by scheme:
	//   file:///var/lib/vidpipe/blobs
	//   s3://bucket/optional/prefix
	URL string

	// Secret signs file store URLs. If unset a random secret is generated, so
	// URLs won't survive a restart.
	Secret string

	// PublicURL is where the file store handler is reachable by clients.
	PublicURL string

	// Region, Endpoint & PathStyle are passed to the S3 client. Endpoint is only
	// needed for S3 compatible stores (eg. minio).
	Region    string
	Endpoint  string
	PathStyle bool
}

func (o *Options) SetDefaults() {
	if o.PublicURL == "" {
		o.PublicURL = defaultPublicURL
	}
	o.PublicURL = strings.TrimSuffix(o.PublicURL, "/")
}

// Driver returns the store implied by the URL scheme.
func (o *Options) Driver() string {
	switch {
	case strings.HasPrefix(o.URL, "file://"):
		return DriverFile
	case strings.HasPrefix(o.URL, "s3://"):
		return DriverS3
	default:
		return ""
	}
}

// filePath returns the root directory of a file:// URL
func (o *Options) filePath() string {
	return strings.TrimPrefix(o.URL, "file://")
}

// bucket returns the bucket & key prefix of an s3:// URL
func (o *Options) bucket() (string, string, error) {
	u, err := url.Parse(o.URL)
	if err != nil {
		return "", "", fmt.Errorf("%w blob url: %v", errors.ErrInvalidArg, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("%w blob url %s has no bucket", errors.ErrInvalidArg, o.URL)
	}
	prefix := strings.TrimPrefix(u.Path, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return u.Host, prefix, nil
}

func errUnknownDriver(u string) error {
	scheme := u
	if i := strings.Index(u, "://"); i >= 0 {
		scheme = u[:i]
	}
	return fmt.Errorf("%w blob scheme %q", errors.ErrNotSupported, scheme)
}
