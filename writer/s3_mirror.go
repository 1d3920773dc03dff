package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "marketscraper/config"
	"marketscraper/logger"
)

const defaultUploadTimeout = 30 * time.Second

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror copies local log documents to an S3 bucket under an optional
// prefix, keeping the local relative path as the object key.
type S3Mirror struct {
	client  objectPutter
	bucket  string
	prefix  string
	timeout time.Duration
	log     *logger.Log
}

func NewS3Mirror(ctx context.Context, cfg appconfig.S3Config) (*S3Mirror, error) {
	log := logger.GetLogger()

	bucket, err := normalizeBucketName(cfg.Bucket)
	if err != nil {
		return nil, err
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	log.WithComponent("s3_mirror").WithFields(logger.Fields{
		"bucket":     bucket,
		"region":     cfg.Region,
		"endpoint":   cfg.Endpoint,
		"path_style": cfg.PathStyle,
		"prefix":     cfg.Prefix,
	}).Info("s3 mirror initialized")

	return newS3Mirror(client, bucket, cfg.Prefix), nil
}

func newS3Mirror(client objectPutter, bucket, prefix string) *S3Mirror {
	return &S3Mirror{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		timeout: defaultUploadTimeout,
		log:     logger.GetLogger(),
	}
}

// Put uploads data under the mirrored key. The upload is not cancelled by
// ctx so a document written during shutdown still reaches the bucket.
func (m *S3Mirror) Put(ctx context.Context, key string, data []byte) error {
	if m.bucket == "" {
		return fmt.Errorf("s3 bucket not configured")
	}
	objectKey := m.objectKey(key)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
	defer cancel()

	start := time.Now()
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", m.bucket, objectKey, err)
	}

	logger.LogPerformanceEntry(m.log.WithComponent("s3_mirror"), "s3_mirror", "put_object", time.Since(start), logger.Fields{
		"key":   objectKey,
		"bytes": len(data),
	})
	return nil
}

func (m *S3Mirror) objectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if m.prefix == "" {
		return key
	}
	return path.Join(m.prefix, key)
}

func normalizeBucketName(raw string) (string, error) {
	bucket := strings.TrimSpace(raw)
	if bucket == "" {
		return "", fmt.Errorf("s3 bucket not configured")
	}
	return bucket, nil
}
