package storesvc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// Backend names.
const (
	BackendFS     = "fs"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Config selects the store that backs the service.
type Config struct {
	// Backend is fs, s3 or memory.
	Backend string
	// Path is the root directory (fs) or "bucket/prefix" (s3).
	Path string
	// Region is the AWS region (s3, optional; default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not subdomain).
	UsePathStyle bool
}

// Validate checks that required backend configuration is present.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFS:
		if c.Path == "" {
			return errors.New("fs backend requires a path")
		}
	case BackendS3:
		if bucket, _ := ParseS3Path(c.Path); bucket == "" {
			return errors.New("s3 backend requires a bucket (path \"bucket/prefix\")")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown remote backend %q (want %s, %s or %s)", c.Backend, BackendFS, BackendS3, BackendMemory)
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// Factory returns the Lode store factory for cfg.
func Factory(ctx context.Context, cfg Config) (lode.StoreFactory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendFS:
		return lode.NewFSFactory(cfg.Path), nil
	case BackendS3:
		return s3Factory(ctx, cfg)
	default:
		store := lode.NewMemory()
		return func() (lode.Store, error) { return store, nil }, nil
	}
}

// Open validates cfg and returns a service on the configured store.
// S3 credentials come from the AWS SDK default chain (env vars, shared
// config, IAM role).
func Open(ctx context.Context, cfg Config) (*Service, error) {
	factory, err := Factory(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewFromFactory(factory)
}

func s3Factory(ctx context.Context, cfg Config) (lode.StoreFactory, error) {
	bucket, prefix := ParseS3Path(cfg.Path)

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsConfig, s3Opts...)

	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: bucket,
			Prefix: prefix,
		})
	}, nil
}
