package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client is the subset of *s3.Client used here.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config describes the bucket images go to. Endpoint and ForcePathStyle are for
// S3-compatible services such as MinIO.
type S3Config struct {
	Bucket         string
	Region         string
	AccessKeyID    string
	SecretKey      string
	Endpoint       string
	BaseURL        string
	Prefix         string
	ForcePathStyle bool
}

// S3Store uploads images to a bucket and returns their public URL.
type S3Store struct {
	client  S3Client
	bucket  string
	prefix  string
	baseURL string
}

// NewS3Store builds a client from cfg unless one is given.
func NewS3Store(ctx context.Context, cfg S3Config, client S3Client) (*S3Store, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, errors.New("storage: s3 bucket and region are required")
	}
	if client == nil {
		opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
			))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.ForcePathStyle
		})
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Endpoint != "" {
			baseURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *S3Store) Save(ctx context.Context, name, contentType string, body io.ReadSeeker) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	key := name
	if s.prefix != "" {
		key = path.Join(s.prefix, name)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}
