package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/reelforge/api/internal/config"
)

// StorageClient is the object store behind frame uploads and chained frames
type StorageClient interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// R2Client talks to a Cloudflare R2 bucket over its S3-compatible API.
// Objects are addressed by key and served from cdnBase.
type R2Client struct {
	s3      *s3.Client
	bucket  string
	cdnBase string
}

func NewR2Client(ctx context.Context, cfg *config.R2Config) (*R2Client, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("r2: account id and access keys are required")
	}
	if cfg.BucketName == "" {
		return nil, errors.New("r2: bucket name is required")
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("r2: load aws config: %w", err)
	}

	return &R2Client{
		s3: s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(accountEndpoint(cfg.AccountID))
		}),
		bucket:  cfg.BucketName,
		cdnBase: cdnBase(cfg.PublicURL, cfg.BucketName),
	}, nil
}

func accountEndpoint(accountID string) string {
	return "https://" + accountID + ".r2.cloudflarestorage.com"
}

// cdnBase prefers the configured public domain and falls back to the
// bucket's r2.cloudflarestorage.com host.
func cdnBase(public, bucket string) string {
	if public = strings.TrimRight(public, "/"); public != "" {
		return public
	}
	return "https://" + bucket + ".r2.cloudflarestorage.com"
}

// Upload puts body under key and returns the URL clients should fetch
func (c *R2Client) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	in := &s3.PutObjectInput{
		Bucket:      &c.bucket,
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if _, err := c.s3.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("r2: put %s: %w", key, err)
	}
	return c.URL(key), nil
}

// Delete removes key. R2 reports success for keys that do not exist.
func (c *R2Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &c.bucket, Key: aws.String(key)})
	if err != nil {
		return fmt.Errorf("r2: delete %s: %w", key, err)
	}
	return nil
}

func (c *R2Client) URL(key string) string {
	return c.cdnBase + "/" + strings.TrimLeft(key, "/")
}
