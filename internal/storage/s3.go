package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/filevault/backend/internal/config"
)

// preconditionFailed is the error code S3 returns when IfNoneMatch finds an existing key
const preconditionFailed = "PreconditionFailed"

// s3API is the subset of the S3 client used by s3Storage
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// s3Storage keeps file bytes as objects of an S3-compatible bucket (AWS, MinIO)
type s3Storage struct {
	client s3API
	bucket string
}

// NewS3Storage creates an S3 backed storage from the storage configuration.
// A custom endpoint switches the client to path-style addressing.
func NewS3Storage(ctx context.Context, cfg config.StorageConfig) (*s3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Storage(client, cfg.Bucket), nil
}

func newS3Storage(client s3API, bucket string) *s3Storage {
	return &s3Storage{
		client: client,
		bucket: bucket,
	}
}

// Save uploads r as object "name" and returns the size reported by the bucket.
// An existing object is never overwritten.
func (s *s3Storage) Save(ctx context.Context, name string, r io.Reader) (int64, error) {
	if !IsValidStoredName(name) {
		return 0, ErrInvalidName
	}

	// Request signing needs a seekable body
	body, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return 0, fmt.Errorf("failed to read upload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	// IfNoneMatch makes the put fail instead of replacing an existing object
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        body,
		IfNoneMatch: aws.String("*"),
	}); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == preconditionFailed {
			return 0, ErrAlreadyExists
		}
		return 0, fmt.Errorf("failed to put object: %w", err)
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to head object: %w", err)
	}

	return aws.ToInt64(head.ContentLength), nil
}

// Open streams the object "name"
func (s *s3Storage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !IsValidStoredName(name) {
		return nil, ErrInvalidName
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	return out.Body, nil
}

// Delete removes the object "name".
// S3 deletes are silent for missing keys, so existence is checked first.
func (s *s3Storage) Delete(ctx context.Context, name string) error {
	if !IsValidStoredName(name) {
		return ErrInvalidName
	}

	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	}); err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to head object: %w", err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// List returns every object of the bucket whose key is a generated stored name
func (s *s3Storage) List(ctx context.Context) ([]Object, error) {
	var objects []Object

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			name := aws.ToString(obj.Key)
			if !IsGeneratedName(name) {
				continue
			}
			objects = append(objects, Object{Name: name, ModTime: aws.ToTime(obj.LastModified)})
		}
	}

	return objects, nil
}
