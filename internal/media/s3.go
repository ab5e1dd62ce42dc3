// internal/media/s3.go
// Package media stores user-submitted videos in S3-compatible object storage.
// Clients upload and play back media through presigned URLs.
package media

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Client wraps the AWS S3 client for media operations.
type S3Client struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string // S3 bucket name for media storage
}

// NewS3Client creates a new S3 client for media operations.
// It supports both AWS S3 and S3-compatible services like MinIO.
// Parameters:
//   - endpoint: S3 service endpoint URL
//   - region: AWS region (or equivalent for S3-compatible services)
//   - bucket: S3 bucket name for media storage
//   - accessKey: Access key for authentication
//   - secretKey: Secret key for authentication
func NewS3Client(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string) (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     accessKey,
					SecretAccessKey: secretKey,
				}, nil
			})),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true // Required for MinIO and other S3-compatible services
	})

	return &S3Client{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}, nil
}

// Ref returns the s3:// locator of key in the client's bucket.
func (s *S3Client) Ref(key string) string {
	return "s3://" + s.bucket + "/" + key
}

// ParseRef splits an s3://bucket/key locator. ok is false for any other scheme.
func ParseRef(ref string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(ref, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// NewKey returns a fresh object key for an upload, keeping filename's extension.
func NewKey(userID, filename string) string {
	return "videos/" + userID + "/" + uuid.NewString() + strings.ToLower(path.Ext(filename))
}

// PresignUpload returns a presigned PUT URL for key.
func (s *S3Client) PresignUpload(ctx context.Context, key, mimeType string, expires time.Duration) (string, error) {
	res, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(mimeType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return res.URL, nil
}

// PlaybackURL resolves a media ref to a URL a player can fetch. s3:// refs in
// the client's bucket are presigned; other refs are returned unchanged.
func (s *S3Client) PlaybackURL(ctx context.Context, ref string, expires time.Duration) (string, error) {
	bucket, key, ok := ParseRef(ref)
	if !ok || bucket != s.bucket {
		return ref, nil
	}
	res, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return res.URL, nil
}

// Stat returns the size of an uploaded object.
func (s *S3Client) Stat(ctx context.Context, key string) (int64, error) {
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get object metadata: %w", err)
	}
	return aws.ToInt64(result.ContentLength), nil
}
