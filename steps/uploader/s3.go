package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/rasha-hantash/confluence-mirror/steps/types"
)

// S3Sink writes objects into an S3 bucket named after the container.
type S3Sink struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	region   string
}

// NewS3Sink loads credentials and region from the default AWS chain.
func NewS3Sink(ctx context.Context, bucket string) (*S3Sink, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Sink{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		region:   cfg.Region,
	}, nil
}

func (s *S3Sink) EnsureContainer(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}

	in := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if s.region != "" && s.region != "us-east-1" {
		in.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(s.region),
		}
	}

	_, err := s.client.CreateBucket(ctx, in)
	var owned *s3types.BucketAlreadyOwnedByYou
	switch {
	case err == nil:
		slog.Info("created bucket", slog.String("bucket", s.bucket))
		return nil
	case errors.As(err, &owned):
		return nil
	default:
		return &StorageError{Backend: BackendS3, Op: "create bucket", Path: s.bucket, Err: err}
	}
}

func (s *S3Sink) Upload(ctx context.Context, obj types.StorageObject) error {
	in := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(obj.Path),
		Body:     bytes.NewReader(obj.Content),
		Metadata: obj.Metadata,
	}
	if obj.ContentType != "" {
		in.ContentType = aws.String(obj.ContentType)
	}

	if _, err := s.uploader.Upload(ctx, in); err != nil {
		return &StorageError{Backend: BackendS3, Op: "upload", Path: obj.Path, Err: err}
	}
	return nil
}
