package objectstore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ManuelReschke/Vahana/internal/pkg/env"
)

// Config holds the S3 settings for uploaded review images
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	PublicURL       string // Optional CDN or bucket URL used to build links
	Enabled         bool
}

// LoadConfig loads S3 configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "ap-northeast-2"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		PublicURL:       env.GetEnv("S3_PUBLIC_URL", ""),
		Enabled:         env.GetEnvBool("S3_ENABLED", false),
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when S3 is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when S3 is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when S3 is enabled")
		}
	}

	return config, nil
}

// ObjectKey builds the key for an upload: <prefix>/YYYY/MM/<uuid><ext>
func ObjectKey(prefix, ext string, at time.Time) string {
	ext = strings.ToLower(ext)
	return fmt.Sprintf("%s/%04d/%02d/%s%s", strings.Trim(prefix, "/"), at.Year(), int(at.Month()), uuid.NewString(), ext)
}

// URLFor returns the public link of key.
func (c *Config) URLFor(key string) string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/") + "/" + key
	}
	if c.EndpointURL != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.EndpointURL, "/"), c.BucketName, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.BucketName, c.Region, key)
}
