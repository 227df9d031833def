package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/holtet/backstack/internal/model"
)

// S3Gateway stores artifacts in an S3-compatible bucket. It works against
// AWS as well as MinIO and Ceph RGW endpoints (path-style addressing).
type S3Gateway struct {
	client *s3.Client
	bucket string
}

// NewS3Gateway creates a gateway for the given backend configuration.
func NewS3Gateway(backend *model.StorageBackend) *S3Gateway {
	opts := s3.Options{
		Region:       backend.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(backend.AccessKey, backend.SecretKey, ""),
		UsePathStyle: true,
	}
	if backend.Endpoint != "" {
		opts.BaseEndpoint = aws.String(backend.Endpoint)
	}
	return &S3Gateway{
		client: s3.New(opts),
		bucket: backend.Bucket,
	}
}

func (g *S3Gateway) Put(ctx context.Context, path string, r io.Reader, size int64) (int64, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(path),
		Body:   r,
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := g.client.PutObject(ctx, input); err != nil {
		return 0, fmt.Errorf("put s3 object %s: %w", path, err)
	}
	return size, nil
}

func (g *S3Gateway) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3 object %s: %w", path, err)
	}
	return out.Body, nil
}

func (g *S3Gateway) Delete(ctx context.Context, path string) (bool, error) {
	// HeadObject first so callers can distinguish "removed now" from
	// "already gone"; S3 DeleteObject succeeds either way.
	_, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("head s3 object %s: %w", path, err)
	}

	if _, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(path),
	}); err != nil {
		return false, fmt.Errorf("delete s3 object %s: %w", path, err)
	}
	return true, nil
}

func (g *S3Gateway) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	paginator := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3 objects under %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			paths = append(paths, aws.ToString(obj.Key))
		}
	}
	return paths, nil
}

func (g *S3Gateway) Usage(ctx context.Context, prefix string) (model.StorageUsage, error) {
	var usage model.StorageUsage
	paginator := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return model.StorageUsage{}, fmt.Errorf("measure s3 usage under %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			usage.ObjectCount++
			usage.UsedBytes += aws.ToInt64(obj.Size)
		}
	}
	return usage, nil
}
