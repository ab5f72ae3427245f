package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"labelbot/internal/pkg/logx"
)

// deleteBatchSize is the DeleteObjects limit per request.
const deleteBatchSize = 1000

// s3Client implements the StorageService interface, handling interactions with S3-compatible storage.
type s3Client struct {
	cfg      ServiceConfig
	s3Client *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
}

// newS3Client initializes the S3 client using a custom configuration that supports S3-compatible endpoints.
func newS3Client(ctx context.Context, cfg ServiceConfig) (*s3Client, error) {
	sdkCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		logx.Error(err, "Failed to load AWS SDK config")
		return nil, errors.New("failed to initialize S3 client configuration")
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})

	if cfg.PresignExpiry <= 0 || cfg.PresignExpiry > MaxPresignExpiry {
		cfg.PresignExpiry = MaxPresignExpiry
	}
	cfg.S3PublicBaseURL = strings.TrimRight(cfg.S3PublicBaseURL, "/")

	return &s3Client{
		cfg:      cfg,
		s3Client: client,
		uploader: manager.NewUploader(client),
		presign:  s3.NewPresignClient(client),
	}, nil
}

// Put uploads body with the multipart-capable uploader so the size need not be known upfront.
func (c *s3Client) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &c.cfg.S3BucketName,
		Key:         &key,
		Body:        body,
		ContentType: &contentType,
	})
	if err != nil {
		logx.Error(err, "S3 upload failed", "key", key)
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// URL returns the public URL when a public base is configured, otherwise a presigned download URL.
func (c *s3Client) URL(ctx context.Context, key string) (string, error) {
	if c.cfg.S3PublicBaseURL != "" {
		return c.cfg.S3PublicBaseURL + "/" + key, nil
	}

	resp, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.cfg.S3BucketName,
		Key:    &key,
	}, s3.WithPresignExpires(c.cfg.PresignExpiry))
	if err != nil {
		logx.Error(err, "Failed to generate presigned URL", "key", key)
		return "", fmt.Errorf("presign %s: %w", key, err)
	}

	return resp.URL, nil
}

func (c *s3Client) ListPrefixes(ctx context.Context, prefix string) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket:    &c.cfg.S3BucketName,
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var out []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			out = append(out, aws.ToString(cp.Prefix))
		}
	}
	return out, nil
}

// DeletePrefix lists every object under prefix and removes them in batches.
func (c *s3Client) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, fmt.Errorf("%w: empty prefix", ErrInvalidKey)
	}

	p := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: &c.cfg.S3BucketName,
		Prefix: aws.String(prefix),
	})

	deleted := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("list %s: %w", prefix, err)
		}

		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}

		for len(ids) > 0 {
			n := min(len(ids), deleteBatchSize)
			batch := ids[:n]
			ids = ids[n:]

			out, err := c.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: &c.cfg.S3BucketName,
				Delete: &types.Delete{Objects: batch, Quiet: aws.Bool(true)},
			})
			if err != nil {
				logx.Error(err, "S3 delete failed", "prefix", prefix)
				return deleted, fmt.Errorf("delete %s: %w", prefix, err)
			}
			for _, e := range out.Errors {
				logx.Warn("S3 object not deleted", "key", aws.ToString(e.Key), "code", aws.ToString(e.Code))
			}
			deleted += len(batch) - len(out.Errors)
		}
	}

	return deleted, nil
}
