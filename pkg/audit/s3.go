package audit

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Uploader archives evidence packs to an object-storage bucket.
type S3Uploader struct {
	client *s3.Client
	bucket string
}

// NewS3Uploader builds an uploader from the ambient AWS configuration
// (environment, shared config, instance role).
func NewS3Uploader(ctx context.Context, bucket string) (*S3Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: load aws config: %w", err)
	}
	return &S3Uploader{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// NewS3UploaderWithClient wires an explicit client; used by tests with a
// stubbed transport.
func NewS3UploaderWithClient(client *s3.Client, bucket string) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket}
}

// Upload puts a pack under key and returns the object's storage URI.
func (u *S3Uploader) Upload(ctx context.Context, key string, pack []byte) (string, error) {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(pack),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return "", fmt.Errorf("audit: upload %q: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}
