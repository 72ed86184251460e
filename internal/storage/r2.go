package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// defaultPresignExpiry applies when URL is asked for a private object
// without an expiry.
const defaultPresignExpiry = 15 * time.Minute

// R2Storage stores objects in a Cloudflare R2 bucket through the S3 API.
type R2Storage struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	publicURL string
	logger    *slog.Logger
}

// NewR2Storage builds an S3 client pointed at the account's R2 endpoint.
func NewR2Storage(cfg R2Config, logger *slog.Logger) (*R2Storage, error) {
	if cfg.AccountID == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("r2: account id and bucket name are required")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)

	client := s3.NewFromConfig(aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	logger.Info("initialized R2 storage", "bucket", cfg.BucketName, "endpoint", endpoint)

	return &R2Storage{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    cfg.BucketName,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		logger:    logger,
	}, nil
}

// Put buffers the object so its size is known before the request is sent;
// R2 rejects streaming uploads without a content length.
func (s *R2Storage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if err := validateKey(key); err != nil {
		return &StorageError{Op: "Put", Key: key, Err: err}
	}

	if !opts.Overwrite {
		exists, err := s.exists(ctx, key)
		if err != nil {
			return &StorageError{Op: "Put", Key: key, Err: err}
		}
		if exists {
			return &StorageError{Op: "Put", Key: key, Err: ErrKeyExists}
		}
	}

	src := data
	if opts.MaxSize > 0 {
		src = io.LimitReader(data, opts.MaxSize+1)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: fmt.Errorf("failed to read object: %w", err)}
	}
	if opts.MaxSize > 0 && int64(len(body)) > opts.MaxSize {
		return &StorageError{Op: "Put", Key: key, Err: ErrTooLarge}
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return &StorageError{Op: "Put", Key: key, Err: mapS3Error(err)}
	}

	s.logger.Debug("stored object in R2", "key", key, "size", len(body), "etag", aws.ToString(out.ETag))
	return nil
}

// Get opens the object at key.
func (s *R2Storage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := validateKey(key); err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: err}
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: mapS3Error(err)}
	}

	return out.Body, ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// Delete removes the object at key. S3 deletes are idempotent.
func (s *R2Storage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: err}
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &StorageError{Op: "Delete", Key: key, Err: mapS3Error(err)}
	}

	s.logger.Debug("deleted object from R2", "key", key)
	return nil
}

// URL returns the public link when a public URL is configured and no expiry
// is requested, otherwise a presigned GET link.
func (s *R2Storage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: err}
	}

	if s.publicURL != "" && expires == 0 {
		return s.publicURL + "/" + key, nil
	}
	if expires == 0 {
		expires = defaultPresignExpiry
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", &StorageError{Op: "URL", Key: key, Err: fmt.Errorf("failed to presign: %w", err)}
	}
	return req.URL, nil
}

func (s *R2Storage) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	mapped := mapS3Error(err)
	if errors.Is(mapped, ErrNotFound) {
		return false, nil
	}
	return false, mapped
}

func validateKey(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	return nil
}

// mapS3Error translates SDK errors onto the package's sentinels.
func mapS3Error(err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return ErrNotFound
		case "AccessDenied", "Forbidden":
			return ErrAccessDenied
		case "EntityTooLarge":
			return ErrTooLarge
		}
	}

	return fmt.Errorf("r2: %w", err)
}
