package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Config holds connection settings for an S3-compatible backend.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	KeyPrefix string
}

// S3Store stores blobs in an S3-compatible object store (AWS S3,
// MinIO, etc). The locator is the object key.
type S3Store struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Store creates an S3-backed blob store.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}

	return &S3Store{
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   cfg.Bucket,
		prefix:   cfg.KeyPrefix,
	}, nil
}

// Put uploads the stream under a content-addressed object key.
// Re-uploading an existing key overwrites it with identical bytes,
// which satisfies the idempotency contract.
func (s *S3Store) Put(ctx context.Context, key string, size int64, r io.Reader) (string, error) {
	locator := s.objectKey(key)
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(locator),
		Body:   r,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload content: %w", err)
	}
	return locator, nil
}

// Get opens the stored object for reading.
func (s *S3Store) Get(ctx context.Context, locator string) (io.ReadCloser, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(locator),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch content: %w", err)
	}
	return out.Body, nil
}

// Delete removes the stored object.
func (s *S3Store) Delete(ctx context.Context, locator string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(locator),
	})
	if err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix != "" {
		return s.prefix + "/" + key[:2] + "/" + key
	}
	return key[:2] + "/" + key
}
