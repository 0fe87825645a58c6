package assets

import (
	"strings"

	"github.com/LucasPerrin/Crealance/internal/pkg/env"
)

// Config holds the object storage settings for delivery assets.
type Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	EndpointURL     string
}

// NewConfigFromEnv reads the S3 configuration from the environment.
func NewConfigFromEnv() *Config {
	return &Config{
		Region:          env.GetEnv("S3_REGION", "eu-central-1"),
		Bucket:          env.GetEnv("S3_BUCKET", ""),
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		EndpointURL:     strings.TrimRight(env.GetEnv("S3_ENDPOINT_URL", ""), "/"),
	}
}

// IsEnabled reports whether enough settings are present to build a client.
func (c *Config) IsEnabled() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}
