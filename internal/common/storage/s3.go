// internal/common/storage/s3.go
package storage

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Resolver turns a stored object key into a retrievable URL. Implementations
// must be safe for concurrent use.
type Resolver interface {
	SignedURL(ctx context.Context, key string) (string, error)
}

// S3Resolver issues pre-signed GET URLs for objects in the configured bucket.
type S3Resolver struct {
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

func NewS3Resolver(ctx context.Context, region, bucket string, expiry time.Duration) (*S3Resolver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg)
	return &S3Resolver{
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		expiry:  expiry,
	}, nil
}

func (r *S3Resolver) SignedURL(ctx context.Context, key string) (string, error) {
	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(r.expiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
