package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/document-locker/locker/internal/logging"
)

// S3Options configures the S3 backend. Without AccessKey the default AWS
// credential chain is used. Endpoint switches to path-style addressing for
// MinIO and other S3-compatible stores.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3 stores objects in one bucket.
type S3 struct {
	client *s3.Client
	bucket string
	logger *logging.Logger
	retry  retryPolicy
}

// NewS3 builds the client. It does not contact the bucket.
func NewS3(ctx context.Context, opts S3Options, logger *logging.Logger) (*S3, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Info().Str("bucket", opts.Bucket).Str("region", opts.Region).Str("endpoint", opts.Endpoint).Msg("Using S3 storage")
	return &S3{client: client, bucket: opts.Bucket, logger: logger, retry: defaultRetryPolicy}, nil
}

func (b *S3) Name() string     { return "s3" }
func (b *S3) Location() string { return b.bucket }

// Put uploads with a known length. r should be seekable so the request can
// be signed without buffering; only seekable bodies are retried.
func (b *S3) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	rewind := rewindable(r)
	policy := b.retry
	if rewind == nil {
		policy.Attempts = 1
	}
	err := withRetry(ctx, policy, b.logger, "put "+key, func() error {
		if rewind != nil {
			if err := rewind(); err != nil {
				return err
			}
		}
		_, err := b.client.PutObject(ctx, in)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (b *S3) Get(ctx context.Context, key string) (io.ReadCloser, Object, error) {
	var out *s3.GetObjectOutput
	err := withRetry(ctx, b.retry, b.logger, "get "+key, func() (err error) {
		out, err = b.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, Object{}, ErrNotFound
		}
		return nil, Object{}, fmt.Errorf("failed to download %s: %w", key, err)
	}
	obj := Object{
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}
	if out.LastModified != nil {
		obj.LastModified = out.LastModified.UTC()
	}
	return out.Body, obj, nil
}

func (b *S3) Stat(ctx context.Context, key string) (Object, error) {
	var out *s3.HeadObjectOutput
	err := withRetry(ctx, b.retry, b.logger, "stat "+key, func() (err error) {
		out, err = b.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	obj := Object{
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}
	if out.LastModified != nil {
		obj.LastModified = out.LastModified.UTC()
	}
	return obj, nil
}

// Delete removes key. S3 does not report missing keys on delete, so the
// key is checked first.
func (b *S3) Delete(ctx context.Context, key string) error {
	if _, err := b.Stat(ctx, key); err != nil {
		return err
	}
	err := withRetry(ctx, b.retry, b.logger, "delete "+key, func() error {
		_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// List pages through the bucket. Listings carry no content type, so each
// object is looked up with HeadObject.
func (b *S3) List(ctx context.Context) ([]Object, error) {
	var objs []Object
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{Bucket: aws.String(b.bucket)})
	for p.HasMorePages() {
		var page *s3.ListObjectsV2Output
		err := withRetry(ctx, b.retry, b.logger, "list", func() (err error) {
			page, err = p.NextPage(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", b.bucket, err)
		}
		for _, item := range page.Contents {
			obj := Object{Key: aws.ToString(item.Key), Size: aws.ToInt64(item.Size)}
			if item.LastModified != nil {
				obj.LastModified = item.LastModified.UTC()
			}
			if head, err := b.Stat(ctx, obj.Key); err == nil {
				obj.ContentType = head.ContentType
			} else {
				b.logger.Debug().Err(err).Str("key", obj.Key).Msg("HeadObject failed during list")
			}
			objs = append(objs, obj)
		}
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key < objs[j].Key })
	return objs, nil
}
