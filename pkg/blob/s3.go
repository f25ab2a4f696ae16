package blob

import (
	"context"
	stderr "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/voidshard/vidpipe/pkg/errors"
)

// S3 is a Store backed by an S3 (or S3 compatible) bucket.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient

	bucket string
	prefix string
}

// NewS3 builds a client from the default AWS credential chain.
func NewS3(ctx context.Context, opts *Options) (*S3, error) {
	bucket, prefix, err := opts.bucket()
	if err != nil {
		return nil, err
	}

	loaders := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		loaders = append(loaders, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})

	return &S3{
		client:   client,
		uploader: manager.NewUploader(client),
		presign:  s3.NewPresignClient(client),
		bucket:   bucket,
		prefix:   prefix,
	}, nil
}

// Put uploads r in parts, so we never need the whole object in memory.
func (s *S3) Put(ctx context.Context, key string, r io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
		Body:   r,
	})
	return classifyS3(key, err)
}

func (s *S3) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		return nil, classifyS3(key, err)
	}
	return out.Body, nil
}

func (s *S3) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("%w ttl must be positive", errors.ErrInvalidArg)
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", classifyS3(key, err)
	}
	return req.URL, nil
}

// classifyS3 maps SDK errors onto our error types. Server side (5xx) & network
// errors are transient; other client errors are permanent.
func classifyS3(key string, err error) error {
	if err == nil {
		return nil
	}

	var nsk *types.NoSuchKey
	if stderr.As(err, &nsk) {
		return fmt.Errorf("%w blob %s", errors.ErrNotFound, key)
	}

	var re *awshttp.ResponseError
	if stderr.As(err, &re) {
		code := re.HTTPStatusCode()
		switch {
		case code == http.StatusNotFound:
			return fmt.Errorf("%w blob %s", errors.ErrNotFound, key)
		case code >= 500, code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
			return errors.Transient(err)
		case code >= 400:
			return errors.Permanent(err)
		}
	}

	if errors.IsTransientNetwork(err) {
		return errors.Transient(err)
	}
	return err
}
