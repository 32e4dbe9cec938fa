// Package objectstore keeps user uploaded files in S3 or, without S3, on the
// local disk.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Vahana/internal/pkg/env"
)

// Store saves an object under key and returns its public URL. KeyFor maps
// such a URL back to its key, "" for foreign URLs.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
	KeyFor(url string) string
}

// Client wraps the S3 client
type Client struct {
	s3Client *s3.Client
	config   *Config
}

// NewClient creates a new S3 client and checks the bucket
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("S3 is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	client := &Client{
		s3Client: s3Client,
		config:   cfg,
	}

	if err := client.testConnection(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Infof("[ObjectStore] Using S3 bucket: %s", cfg.BucketName)
	return client, nil
}

// testConnection checks the bucket and creates it outside production
func (c *Client) testConnection(ctx context.Context) error {
	_, err := c.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.config.BucketName),
	})
	if err == nil {
		return nil
	}
	if env.GetEnv("APP_ENV", "dev") == "prod" {
		return fmt.Errorf("bucket %s not accessible: %w", c.config.BucketName, err)
	}

	log.Warnf("[ObjectStore] Bucket %s not found, attempting to create it", c.config.BucketName)
	input := &s3.CreateBucketInput{Bucket: aws.String(c.config.BucketName)}
	if c.config.EndpointURL == "" && c.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.config.Region),
		}
	}
	if _, err := c.s3Client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", c.config.BucketName, err)
	}
	return nil
}

func (c *Client) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.config.BucketName),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
		Metadata: map[string]string{
			"upload-source": "vahana",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Infof("[ObjectStore] Uploaded s3://%s/%s (%d bytes)", c.config.BucketName, key, size)
	return c.config.URLFor(key), nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

func (c *Client) KeyFor(url string) string {
	return KeyFromURL(c.config.URLFor(""), url)
}

// Local writes objects below Root and serves them from URLPrefix.
type Local struct {
	Root      string
	URLPrefix string
}

func (l *Local) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(l.Root, clean), nil
}

func (l *Local) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	p, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, body); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return strings.TrimRight(l.URLPrefix, "/") + "/" + key, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *Local) KeyFor(url string) string {
	return KeyFromURL(l.URLPrefix, url)
}

// KeyFromURL reverses the URL built by Put for a store rooted at prefix.
// It returns "" when url does not belong to the store.
func KeyFromURL(prefix, url string) string {
	prefix = strings.TrimRight(prefix, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}

// NewFromEnv returns the S3 client when S3_ENABLED is set and a Local store
// below uploadsDir otherwise.
func NewFromEnv(ctx context.Context, uploadsDir, urlPrefix string) (Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		log.Infof("[ObjectStore] S3 disabled, storing uploads in %s", uploadsDir)
		return &Local{Root: uploadsDir, URLPrefix: urlPrefix}, nil
	}
	return NewClient(ctx, cfg)
}
