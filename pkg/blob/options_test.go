package blob

import (
	"context"
	stderr "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voidshard/vidpipe/pkg/errors"
)

func TestDriver(t *testing.T) {
	assert.Equal(t, DriverFile, (&Options{URL: "file:///tmp/x"}).Driver())
	assert.Equal(t, DriverS3, (&Options{URL: "s3://bucket"}).Driver())
	assert.Equal(t, "", (&Options{URL: "gs://bucket"}).Driver())
}

func TestBucket(t *testing.T) {
	cases := []struct {
		Name   string
		URL    string
		Bucket string
		Prefix string
		Err    bool
	}{
		{Name: "BucketOnly", URL: "s3://media", Bucket: "media"},
		{Name: "Prefix", URL: "s3://media/processed/videos", Bucket: "media", Prefix: "processed/videos/"},
		{Name: "PrefixSlash", URL: "s3://media/processed/", Bucket: "media", Prefix: "processed/"},
		{Name: "NoBucket", URL: "s3:///x", Err: true},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			bucket, prefix, err := (&Options{URL: c.URL}).bucket()

			if c.Err {
				assert.True(t, stderr.Is(err, errors.ErrInvalidArg))
				return
			}
			assert.Nil(t, err)
			assert.Equal(t, c.Bucket, bucket)
			assert.Equal(t, c.Prefix, prefix)
		})
	}
}

func TestNewUnknown(t *testing.T) {
	_, err := New(context.Background(), &Options{URL: "gs://bucket"})
	assert.True(t, stderr.Is(err, errors.ErrNotSupported))
}

func TestSetDefaults(t *testing.T) {
	o := &Options{PublicURL: "http://x/blobs/"}
	o.SetDefaults()
	assert.Equal(t, "http://x/blobs", o.PublicURL)

	o = &Options{}
	o.SetDefaults()
	assert.Equal(t, defaultPublicURL, o.PublicURL)
}
