// Package s3ds reads objects from S3 or an S3-compatible store (MinIO, R2,
// GCS interop) with ranged GetObject requests, so split readers can enter an
// object at any offset without downloading the prefix.
package s3ds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// API is the subset of *s3.Client used by Source.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Config holds client settings not covered by the default AWS credential
// chain.
type Config struct {
	Region       string
	Endpoint     string // custom endpoint for S3-compatible stores
	UsePathStyle bool
}

// ConfigFromEnv reads S3_ENDPOINT and S3_USE_PATH_STYLE. Region and
// credentials come from the usual AWS_* variables and shared config files.
func ConfigFromEnv() Config {
	ps, _ := strconv.ParseBool(os.Getenv("S3_USE_PATH_STYLE"))
	return Config{
		Region:       os.Getenv("AWS_REGION"),
		Endpoint:     os.Getenv("S3_ENDPOINT"),
		UsePathStyle: ps,
	}
}

// NewClient builds an S3 client from the default AWS config plus cfg.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3ds: loading AWS config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// ParseURL splits s3://bucket/key.
func ParseURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("s3ds: parse %q: %w", raw, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("s3ds: %q is not an s3:// URL", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("s3ds: %q must name a bucket and a key", raw)
	}
	return u.Host, key, nil
}

// Source is a datasource.RangeSource for one object.
type Source struct {
	bucket string
	key    string

	once   sync.Once
	newAPI func(context.Context) (API, error)
	api    API
	apiErr error
}

// NewSource binds api to bucket/key.
func NewSource(api API, bucket, key string) *Source {
	return &Source{bucket: bucket, key: key, api: api}
}

// FromURL returns a Source for an s3:// URL. The client is built from the
// environment on first use.
func FromURL(raw string) (*Source, error) {
	bucket, key, err := ParseURL(raw)
	if err != nil {
		return nil, err
	}
	return &Source{
		bucket: bucket,
		key:    key,
		newAPI: func(ctx context.Context) (API, error) { return NewClient(ctx, ConfigFromEnv()) },
	}, nil
}

func (s *Source) client(ctx context.Context) (API, error) {
	s.once.Do(func() {
		if s.api == nil && s.newAPI != nil {
			s.api, s.apiErr = s.newAPI(ctx)
		}
	})
	if s.api == nil && s.apiErr == nil {
		return nil, errors.New("s3ds: no client")
	}
	return s.api, s.apiErr
}

func (s *Source) String() string { return "s3://" + s.bucket + "/" + s.key }

// OpenAt issues GetObject with "Range: bytes=offset-". An offset at or past
// the end of the object yields an empty stream.
func (s *Source) OpenAt(ctx context.Context, offset int64) (io.ReadCloser, error) {
	if offset < 0 {
		return nil, fmt.Errorf("s3ds: negative offset %d", offset)
	}
	api, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	in := &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key)}
	if offset > 0 {
		in.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
	}
	out, err := api.GetObject(ctx, in)
	if err != nil {
		var ae smithy.APIError
		if offset > 0 && errors.As(err, &ae) && ae.ErrorCode() == "InvalidRange" {
			return io.NopCloser(http.NoBody), nil
		}
		return nil, fmt.Errorf("s3ds: get %s: %w", s, err)
	}
	return out.Body, nil
}

// Size returns the object's ContentLength from HeadObject.
func (s *Source) Size(ctx context.Context) (int64, error) {
	api, err := s.client(ctx)
	if err != nil {
		return 0, err
	}
	out, err := api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key)})
	if err != nil {
		return 0, fmt.Errorf("s3ds: head %s: %w", s, err)
	}
	if out.ContentLength == nil {
		return 0, fmt.Errorf("s3ds: head %s: no content length", s)
	}
	return *out.ContentLength, nil
}
