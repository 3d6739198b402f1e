package fsxs3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
	"github.com/Abraxas-365/flashmoji/pkg/fsx"
	"github.com/Abraxas-365/flashmoji/pkg/logx"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3FileSystem implements fsx.ObjectStore on an S3 (or S3-compatible) bucket
type S3FileSystem struct {
	client        *s3.Client
	bucket        string
	prefix        string
	region        string
	publicBaseURL string
}

// Option configures an S3FileSystem
type Option func(*S3FileSystem)

// WithPublicBaseURL serves objects from a CDN or custom domain instead of
// the virtual-hosted bucket URL.
func WithPublicBaseURL(base string) Option {
	return func(fs *S3FileSystem) {
		fs.publicBaseURL = strings.TrimRight(base, "/")
	}
}

// WithRegion overrides the region used for bucket creation and URLs
func WithRegion(region string) Option {
	return func(fs *S3FileSystem) {
		fs.region = region
	}
}

// NewS3FileSystem creates a store for bucket. All keys are placed under
// prefix when it is non-empty.
func NewS3FileSystem(client *s3.Client, bucket, prefix string, opts ...Option) *S3FileSystem {
	fs := &S3FileSystem{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		region: client.Options().Region,
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// ============================================================================
// FileReader Implementation
// ============================================================================

func (fs *S3FileSystem) ReadFile(ctx context.Context, name string) ([]byte, error) {
	out, err := fs.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(fs.bucket),
		Key:    aws.String(fs.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fsx.NotFound(name)
		}
		return nil, fsx.Wrap(fsx.ErrReadFailed, name, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fsx.Wrap(fsx.ErrReadFailed, name, err)
	}
	return data, nil
}

func (fs *S3FileSystem) Stat(ctx context.Context, name string) (fsx.FileInfo, error) {
	out, err := fs.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(fs.bucket),
		Key:    aws.String(fs.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return fsx.FileInfo{}, fsx.NotFound(name)
		}
		return fsx.FileInfo{}, fsx.Wrap(fsx.ErrReadFailed, name, err)
	}

	info := fsx.FileInfo{
		Name:        path.Base(name),
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		Metadata:    out.Metadata,
	}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	return info, nil
}

func (fs *S3FileSystem) Exists(ctx context.Context, name string) (bool, error) {
	_, err := fs.Stat(ctx, name)
	if err == nil {
		return true, nil
	}
	if errx.IsCode(err, fsx.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// ============================================================================
// FileWriter Implementation
// ============================================================================

func (fs *S3FileSystem) WriteFile(ctx context.Context, name string, data []byte, opts ...fsx.WriteOption) error {
	o := fsx.ApplyWriteOptions(opts...)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(fs.bucket),
		Key:           aws.String(fs.key(name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(o.ContentType),
	}
	if o.CacheControl != "" {
		input.CacheControl = aws.String(o.CacheControl)
	}

	if _, err := fs.client.PutObject(ctx, input); err != nil {
		return fsx.Wrap(fsx.ErrWriteFailed, name, err)
	}
	return nil
}

// ============================================================================
// FileDeleter Implementation
// ============================================================================

func (fs *S3FileSystem) DeleteFile(ctx context.Context, name string) error {
	_, err := fs.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(fs.bucket),
		Key:    aws.String(fs.key(name)),
	})
	if err != nil && !isNotFound(err) {
		return fsx.Wrap(fsx.ErrDeleteFailed, name, err)
	}
	return nil
}

// ============================================================================
// Container / URL
// ============================================================================

// EnsureContainer creates the bucket when HeadBucket reports it missing.
// A bucket that already exists and is owned by the caller is not an error.
func (fs *S3FileSystem) EnsureContainer(ctx context.Context) error {
	_, err := fs.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(fs.bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fsx.Wrap(fsx.ErrContainerFailed, fs.bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(fs.bucket)}
	if fs.region != "" && fs.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(fs.region),
		}
	}

	if _, err := fs.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fsx.Wrap(fsx.ErrContainerFailed, fs.bucket, err)
	}

	logx.WithFields(logx.Fields{"bucket": fs.bucket, "region": fs.region}).Info("fsxs3: bucket created")
	return nil
}

// PublicURL returns the URL under the configured base, or the
// virtual-hosted S3 URL when none is set.
func (fs *S3FileSystem) PublicURL(name string) string {
	key := fs.key(name)
	if fs.publicBaseURL != "" {
		return fs.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", fs.bucket, fs.region, key)
}

// Bucket returns the bucket name
func (fs *S3FileSystem) Bucket() string {
	return fs.bucket
}

func (fs *S3FileSystem) key(name string) string {
	name = strings.TrimLeft(path.Clean("/"+name), "/")
	if fs.prefix == "" {
		return name
	}
	return fs.prefix + "/" + name
}

func isNotFound(err error) bool {
	var (
		nf  *types.NotFound
		nsk *types.NoSuchKey
		nsb *types.NoSuchBucket
	)
	if errors.As(err, &nf) || errors.As(err, &nsk) || errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}
